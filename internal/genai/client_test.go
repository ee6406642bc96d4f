package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.Client())
}

func TestGenerateImage(t *testing.T) {
	png := []byte("\x89PNG fake")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-3-pro-image-preview:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "key-1" {
			t.Errorf("missing api key header")
		}
		var req generateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Contents[0].Parts[0].Text != "a banana knight" {
			t.Errorf("unexpected prompt %+v", req.Contents)
		}
		if req.GenerationConfig.ImageConfig.AspectRatio != "1:1" || req.GenerationConfig.ImageConfig.ImageSize != "1K" {
			t.Errorf("unexpected image config %+v", req.GenerationConfig.ImageConfig)
		}
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/jpeg","data":%q}}]}}]}`,
			base64.StdEncoding.EncodeToString(png))
	})

	img, err := c.GenerateImage(context.Background(), "key-1", "a banana knight")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if img.MIMEType != "image/jpeg" || string(img.Data) != string(png) {
		t.Fatalf("unexpected image %+v", img)
	}
}

func TestGenerateImage_NoImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`)
	})
	if _, err := c.GenerateImage(context.Background(), "k", "p"); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage got %v", err)
	}
}

func TestEditImage_SendsImageThenInstruction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateContentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		parts := req.Contents[0].Parts
		if len(parts) != 2 || parts[0].InlineData == nil || parts[1].Text != "add a hat" {
			t.Errorf("unexpected parts %+v", parts)
		}
		if parts[0].InlineData.MIMEType != "image/png" || parts[0].InlineData.Data != base64.StdEncoding.EncodeToString([]byte("src")) {
			t.Errorf("unexpected inline data %+v", parts[0].InlineData)
		}
		if req.GenerationConfig.ImageConfig.AspectRatio != "" {
			t.Errorf("edit should not force an aspect ratio")
		}
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"data":%q}}]}}]}`,
			base64.StdEncoding.EncodeToString([]byte("edited")))
	})

	img, err := c.EditImage(context.Background(), "k", InlineImage{Data: []byte("src")}, "add a hat")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if img.MIMEType != "image/png" || string(img.Data) != "edited" {
		t.Fatalf("unexpected image %+v", img)
	}
}

func TestStartVideoAndPoll(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1beta/models/veo-3.1-fast-generate-preview:predictLongRunning":
			var req predictLongRunningRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Parameters.AspectRatio != "9:16" || req.Parameters.Resolution != "720p" || req.Parameters.SampleCount != 1 {
				t.Errorf("unexpected parameters %+v", req.Parameters)
			}
			if req.Instances[0].Prompt != "wave" || req.Instances[0].Image.MIMEType != "image/png" {
				t.Errorf("unexpected instance %+v", req.Instances[0])
			}
			_, _ = io.WriteString(w, `{"name":"models/veo-3.1-fast-generate-preview/operations/op1"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1beta/models/veo-3.1-fast-generate-preview/operations/op1":
			_, _ = io.WriteString(w, `{"name":"models/veo-3.1-fast-generate-preview/operations/op1","done":true,
				"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":"https://files.example/v1?alt=media"}}]}}}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	op, err := c.StartVideo(context.Background(), "k", VideoRequest{
		Model:       DefaultVideoModel,
		Prompt:      "wave",
		Image:       InlineImage{Data: []byte("img")},
		AspectRatio: Portrait,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if op.Done {
		t.Fatalf("expected fresh operation not done")
	}
	op, err = c.GetOperation(context.Background(), "k", op)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !op.Done || op.VideoURI() != "https://files.example/v1?alt=media" {
		t.Fatalf("unexpected operation %+v", op)
	}
}

func TestAPIError_EntityNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`)
	})
	_, err := c.StartVideo(context.Background(), "k", VideoRequest{Model: "veo-x", Image: InlineImage{Data: []byte("i")}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError got %v", err)
	}
	if apiErr.StatusCode != 404 || apiErr.Status != "NOT_FOUND" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if !IsEntityNotFound(err) {
		t.Fatalf("expected entity-not-found detection")
	}
}

func TestAPIError_PlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream sad")
	})
	_, err := c.GenerateImage(context.Background(), "k", "p")
	if err == nil || !strings.Contains(err.Error(), "http 502: upstream sad") {
		t.Fatalf("unexpected error %v", err)
	}
	if IsEntityNotFound(err) {
		t.Fatalf("plain error is not entity-not-found")
	}
}

func TestDownload_AppendsKey(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = io.WriteString(w, "MP4DATA")
	})

	blob, err := c.Download(context.Background(), "k&1", c.BaseURL+"/files/abc:download?alt=media")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if gotQuery != "alt=media&key=k%261" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if blob.MIMEType != "video/mp4" || string(blob.Data) != "MP4DATA" {
		t.Fatalf("unexpected blob %+v", blob)
	}
}

func TestDownload_NonSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := c.Download(context.Background(), "k", c.BaseURL+"/files/x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 APIError got %v", err)
	}
}

func TestDownload_TooLarge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = io.WriteString(w, "12345678")
	})
	c.MaxDownload = 4
	if _, err := c.Download(context.Background(), "k", c.BaseURL+"/files/big"); err == nil || !strings.Contains(err.Error(), "exceeds 4 bytes") {
		t.Fatalf("expected size error got %v", err)
	}

	c.MaxDownload = 8
	blob, err := c.Download(context.Background(), "k", c.BaseURL+"/files/big")
	if err != nil || len(blob.Data) != 8 {
		t.Fatalf("expected exact-size download to pass got %d bytes %v", len(blob.Data), err)
	}
}

func TestDownloadURL(t *testing.T) {
	if got := DownloadURL("https://x/y", "k"); got != "https://x/y?key=k" {
		t.Fatalf("unexpected %s", got)
	}
	if got := DownloadURL("https://x/y?alt=media", "k"); got != "https://x/y?alt=media&key=k" {
		t.Fatalf("unexpected %s", got)
	}
}

func TestParseInlineImage(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte("pixels"))

	img, err := ParseInlineImage("data:image/webp;base64," + raw)
	if err != nil || img.MIMEType != "image/webp" || string(img.Data) != "pixels" {
		t.Fatalf("data url: %+v %v", img, err)
	}
	img, err = ParseInlineImage(raw)
	if err != nil || img.MIMEType != "image/png" {
		t.Fatalf("bare: %+v %v", img, err)
	}
	if img.DataURL() != "data:image/png;base64,"+raw {
		t.Fatalf("unexpected data url %s", img.DataURL())
	}
	for _, bad := range []string{"", "data:image/png;base64", "not base64!!"} {
		if _, err := ParseInlineImage(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestCatalog(t *testing.T) {
	if _, ok := LookupVideoModel(DefaultVideoModel); !ok {
		t.Fatalf("default model missing from catalog")
	}
	if _, ok := LookupVideoModel("veo-9"); ok {
		t.Fatalf("unexpected model found")
	}
	if ar, err := ParseAspectRatio(""); err != nil || ar != Landscape {
		t.Fatalf("expected default landscape got %q %v", ar, err)
	}
	if ar, err := ParseAspectRatio("9:16"); err != nil || ar != Portrait {
		t.Fatalf("expected portrait got %q %v", ar, err)
	}
	if _, err := ParseAspectRatio("4:3"); err == nil {
		t.Fatalf("expected error for 4:3")
	}
}
