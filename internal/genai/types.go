package genai

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type videoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MIMEType           string `json:"mimeType"`
}

type videoInstance struct {
	Prompt string      `json:"prompt"`
	Image  *videoImage `json:"image,omitempty"`
}

type videoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	SampleCount int    `json:"sampleCount,omitempty"`
}

type predictLongRunningRequest struct {
	Instances  []videoInstance `json:"instances"`
	Parameters videoParameters `json:"parameters"`
}

// Operation is a long-running video job handle. Done never reverts to false.
type Operation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done,omitempty"`
	Response *VideoResponse  `json:"response,omitempty"`
	Error    *OperationError `json:"error,omitempty"`
}

type VideoResponse struct {
	GenerateVideoResponse struct {
		GeneratedSamples []struct {
			Video struct {
				URI string `json:"uri"`
			} `json:"video"`
		} `json:"generatedSamples"`
	} `json:"generateVideoResponse"`
}

type OperationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// VideoURI returns the first generated sample's download reference, or "".
func (o *Operation) VideoURI() string {
	if o == nil || o.Response == nil {
		return ""
	}
	for _, s := range o.Response.GenerateVideoResponse.GeneratedSamples {
		if s.Video.URI != "" {
			return s.Video.URI
		}
	}
	return ""
}

// VideoRequest starts one image-to-video generation.
type VideoRequest struct {
	Model       string
	Prompt      string
	Image       InlineImage
	AspectRatio AspectRatio
}

// Blob is downloaded artifact content.
type Blob struct {
	MIMEType string
	Data     []byte
}
