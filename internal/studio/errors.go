package studio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maauso/logo-animator-api/internal/credential"
	"github.com/maauso/logo-animator-api/internal/gemini"
	"google.golang.org/genai"
)

// RequestedEntityNotFound is the message fragment the video service returns
// when the selected API key cannot access the model.
const RequestedEntityNotFound = "Requested entity was not found"

// apiKeyInvalidReason is the ErrorInfo reason for a rejected API key.
const apiKeyInvalidReason = "API_KEY_INVALID"

// ErrValidation is the parent of every input validation error.
var ErrValidation = errors.New("studio: invalid input")

// Validation errors.
var (
	// ErrEmptyDescription is returned for an empty or whitespace-only logo description.
	ErrEmptyDescription = fmt.Errorf("%w: description is required", ErrValidation)
	// ErrMissingLogo is returned when an animation is requested without a logo.
	ErrMissingLogo = fmt.Errorf("%w: a logo image is required", ErrValidation)
	// ErrFileTooLarge is returned for uploads over MaxUploadBytes.
	ErrFileTooLarge = fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, MaxUploadBytes)
	// ErrUnsupportedImage is returned for uploads that are not PNG or JPEG.
	ErrUnsupportedImage = fmt.Errorf("%w: unsupported image type", ErrValidation)
	// ErrInvalidAspectRatio is returned for aspect ratios other than 16:9 and 9:16.
	ErrInvalidAspectRatio = fmt.Errorf("%w: aspect ratio must be 16:9 or 9:16", ErrValidation)
)

// Generation errors.
var (
	// ErrGenerationEmpty is returned when the image service returns no images.
	ErrGenerationEmpty = errors.New("studio: image generation returned no images")
	// ErrMissingResult is returned when a finished operation has no video URI.
	ErrMissingResult = errors.New("studio: video generation finished without a result")
	// ErrInvalidCredential is returned when the service rejects the API key.
	ErrInvalidCredential = errors.New("studio: invalid API credential")
	// ErrFileRead is returned when an uploaded file cannot be read.
	ErrFileRead = errors.New("studio: failed to read file")
	// ErrPollTimeout is returned when polling exceeds its time bound.
	ErrPollTimeout = errors.New("studio: video generation timed out")
	// ErrPollAttemptsExceeded is returned when polling exceeds its attempt bound.
	ErrPollAttemptsExceeded = errors.New("studio: video generation exceeded poll attempts")
)

// DownloadError is returned when the result download fails with a non-2xx status.
type DownloadError = gemini.DownloadError

// OperationError is returned when the video operation finishes with an error.
type OperationError = gemini.OperationError

// classifyCredentialError wraps err with ErrInvalidCredential when it
// signals a missing or rejected API key. Structured API errors are
// inspected first, then the error text. Other errors are returned unchanged.
func classifyCredentialError(err error) error {
	if err == nil || errors.Is(err, ErrInvalidCredential) {
		return err
	}

	if errors.Is(err, credential.ErrNoKey) {
		return fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && isInvalidKeyAPIError(apiErr) {
		return fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	if strings.Contains(err.Error(), RequestedEntityNotFound) {
		return fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	return err
}

func isInvalidKeyAPIError(e genai.APIError) bool {
	for _, d := range e.Details {
		if reason, ok := d["reason"].(string); ok && reason == apiKeyInvalidReason {
			return true
		}
	}
	return e.Status == "NOT_FOUND" && strings.Contains(e.Message, RequestedEntityNotFound)
}
