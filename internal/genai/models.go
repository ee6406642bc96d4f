package genai

import "fmt"

// ImageModel serves both character generation and prompt-based editing.
const ImageModel = "gemini-3-pro-image-preview"

type VideoModel struct {
	ID          string
	Name        string
	Description string
}

var VideoModels = []VideoModel{
	{ID: "veo-3.1-generate-preview", Name: "Veo 3.1 Pro", Description: "highest quality"},
	{ID: "veo-3.1-fast-generate-preview", Name: "Veo 3.1 Fast", Description: "balanced speed and quality"},
	{ID: "veo-3.0-generate-001", Name: "Veo 3.0 Pro", Description: "stable pro"},
	{ID: "veo-3.0-fast-generate-001", Name: "Veo 3.0 Fast", Description: "stable fast"},
	{ID: "veo-2.0-generate-001", Name: "Veo 2.0", Description: "legacy generator"},
}

const DefaultVideoModel = "veo-3.1-fast-generate-preview"

func LookupVideoModel(id string) (VideoModel, bool) {
	for _, m := range VideoModels {
		if m.ID == id {
			return m, true
		}
	}
	return VideoModel{}, false
}

type AspectRatio string

const (
	Landscape AspectRatio = "16:9"
	Portrait  AspectRatio = "9:16"
)

func ParseAspectRatio(s string) (AspectRatio, error) {
	switch AspectRatio(s) {
	case "":
		return Landscape, nil
	case Landscape, Portrait:
		return AspectRatio(s), nil
	}
	return "", fmt.Errorf("unsupported aspect ratio %q (want %s or %s)", s, Landscape, Portrait)
}
