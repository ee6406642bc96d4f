// Package genai talks to the Gemini REST API for image generation, image
// editing and Veo image-to-video jobs.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

const (
	apiVersion       = "v1beta"
	maxErrorBody     = 64 << 10
	maxDownloadBytes = 512 << 20
)

// HTTPDoer abstracts the HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	BaseURL string
	HTTP    HTTPDoer
	// MaxDownload caps artifact size; 0 means 512MB.
	MaxDownload int64
}

func New(baseURL string, doer HTTPDoer) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: doer}
}

// GenerateImage renders a square 1K image from prompt.
func (c *Client) GenerateImage(ctx context.Context, apiKey, prompt string) (InlineImage, error) {
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &imageConfig{AspectRatio: "1:1", ImageSize: "1K"},
		},
	}
	return c.generateContent(ctx, apiKey, req)
}

// EditImage applies instruction to img.
func (c *Client) EditImage(ctx context.Context, apiKey string, img InlineImage, instruction string) (InlineImage, error) {
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{
			{InlineData: &inlineData{MIMEType: img.mime(), Data: img.Base64()}},
			{Text: instruction},
		}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &imageConfig{ImageSize: "1K"},
		},
	}
	return c.generateContent(ctx, apiKey, req)
}

func (c *Client) generateContent(ctx context.Context, apiKey string, body generateContentRequest) (InlineImage, error) {
	var resp generateContentResponse
	path := fmt.Sprintf("/%s/models/%s:generateContent", apiVersion, ImageModel)
	if err := c.do(ctx, http.MethodPost, path, apiKey, body, &resp); err != nil {
		return InlineImage{}, err
	}
	if len(resp.Candidates) == 0 {
		return InlineImage{}, ErrNoImage
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		img, err := ParseInlineImage(p.InlineData.Data)
		if err != nil {
			return InlineImage{}, err
		}
		if p.InlineData.MIMEType != "" {
			img.MIMEType = p.InlineData.MIMEType
		}
		return img, nil
	}
	return InlineImage{}, ErrNoImage
}

// StartVideo submits an image-to-video job and returns its operation handle.
func (c *Client) StartVideo(ctx context.Context, apiKey string, vr VideoRequest) (*Operation, error) {
	body := predictLongRunningRequest{
		Instances: []videoInstance{{
			Prompt: vr.Prompt,
			Image:  &videoImage{BytesBase64Encoded: vr.Image.Base64(), MIMEType: vr.Image.mime()},
		}},
		Parameters: videoParameters{
			AspectRatio: string(vr.AspectRatio),
			Resolution:  "720p",
			SampleCount: 1,
		},
	}
	var op Operation
	path := fmt.Sprintf("/%s/models/%s:predictLongRunning", apiVersion, vr.Model)
	if err := c.do(ctx, http.MethodPost, path, apiKey, body, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, errors.New("genai: operation handle missing name")
	}
	return &op, nil
}

// GetOperation re-reads the status of op.
func (c *Client) GetOperation(ctx context.Context, apiKey string, op *Operation) (*Operation, error) {
	if op == nil || op.Name == "" {
		return nil, errors.New("genai: operation handle missing name")
	}
	var out Operation
	if err := c.do(ctx, http.MethodGet, "/"+apiVersion+"/"+strings.TrimPrefix(op.Name, "/"), apiKey, nil, &out); err != nil {
		return nil, err
	}
	if out.Name == "" {
		out.Name = op.Name
	}
	return &out, nil
}

// DownloadURL is uri with the credential appended as the key parameter.
func DownloadURL(uri, apiKey string) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + "key=" + url.QueryEscape(apiKey)
}

// Download fetches a generated artifact.
func (c *Client) Download(ctx context.Context, apiKey, uri string) (Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DownloadURL(uri, apiKey), nil)
	if err != nil {
		return Blob{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Blob{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Blob{}, decodeAPIError(resp.StatusCode, body)
	}
	limit := c.MaxDownload
	if limit <= 0 {
		limit = maxDownloadBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return Blob{}, fmt.Errorf("read download: %w", err)
	}
	if int64(len(data)) > limit {
		return Blob{}, fmt.Errorf("download exceeds %d bytes", limit)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return Blob{MIMEType: mime, Data: data}, nil
}

func (c *Client) do(ctx context.Context, method, path, apiKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeAPIError(resp.StatusCode, b)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
