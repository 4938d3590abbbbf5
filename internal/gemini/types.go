package gemini

import (
	"fmt"

	"google.golang.org/genai"
)

// ImageRequest describes a text-to-image generation call.
type ImageRequest struct {
	Model          string // Image model name
	Prompt         string // Full prompt sent to the model
	NumberOfImages int    // Images to generate
	OutputMIMEType string // e.g. "image/png"
	AspectRatio    string // e.g. "1:1"
}

// GeneratedImage is a single image returned by the service.
type GeneratedImage struct {
	Data     []byte
	MIMEType string
}

// VideoRequest describes an image-to-video generation call.
type VideoRequest struct {
	Model          string // Video model name
	Prompt         string // Animation prompt
	Image          []byte // Source image bytes
	ImageMIMEType  string // MIME type of Image
	NumberOfVideos int    // Videos to generate
	Resolution     string // e.g. "720p"
	AspectRatio    string // "16:9" or "9:16"
}

// Operation is the handle of a long-running video generation.
// It is returned by GenerateVideos and refreshed by GetVideosOperation.
type Operation struct {
	Name            string          // Opaque operation name
	Done            bool            // True once the operation finished
	VideoURIs       []string        // Result locations, set when Done
	Error           *OperationError // Set when the operation failed
	FilteredReasons []string        // Safety filter reasons, if any videos were dropped

	raw *genai.GenerateVideosOperation
}

// OperationError is the error payload of a finished operation.
type OperationError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("gemini: operation failed (code %d): %s", e.Code, e.Message)
}

// fromSDKOperation converts an SDK operation into the package handle.
func fromSDKOperation(op *genai.GenerateVideosOperation) *Operation {
	out := &Operation{
		Name: op.Name,
		Done: op.Done,
		raw:  op,
	}

	if len(op.Error) > 0 {
		out.Error = operationErrorFromMap(op.Error)
	}

	if op.Response != nil {
		for _, v := range op.Response.GeneratedVideos {
			if v == nil || v.Video == nil || v.Video.URI == "" {
				continue
			}
			out.VideoURIs = append(out.VideoURIs, v.Video.URI)
		}
		out.FilteredReasons = append(out.FilteredReasons, op.Response.RAIMediaFilteredReasons...)
	}

	return out
}

func operationErrorFromMap(m map[string]any) *OperationError {
	e := &OperationError{}
	switch code := m["code"].(type) {
	case float64:
		e.Code = int(code)
	case int:
		e.Code = code
	}
	if msg, ok := m["message"].(string); ok {
		e.Message = msg
	} else {
		e.Message = fmt.Sprintf("%v", m)
	}
	return e
}
