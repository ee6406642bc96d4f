package genai

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const defaultImageMIME = "image/png"

// InlineImage is an image carried inside a request or response body.
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// ParseInlineImage accepts a data URL or bare base64.
func ParseInlineImage(s string) (InlineImage, error) {
	s = strings.TrimSpace(s)
	mime := defaultImageMIME
	if strings.HasPrefix(s, "data:") {
		meta, payload, ok := strings.Cut(s[len("data:"):], ",")
		if !ok {
			return InlineImage{}, fmt.Errorf("malformed data url")
		}
		if m, _, _ := strings.Cut(meta, ";"); m != "" {
			mime = m
		}
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return InlineImage{}, fmt.Errorf("decode image: %w", err)
	}
	if len(data) == 0 {
		return InlineImage{}, fmt.Errorf("empty image")
	}
	return InlineImage{MIMEType: mime, Data: data}, nil
}

func (i InlineImage) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

func (i InlineImage) DataURL() string {
	return "data:" + i.mime() + ";base64," + i.Base64()
}

func (i InlineImage) mime() string {
	if i.MIMEType == "" {
		return defaultImageMIME
	}
	return i.MIMEType
}
