// Package server provides the HTTP server for the Logo Animator API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// SelectKeyRequest is the HTTP request body for selecting an API key.
type SelectKeyRequest struct {
	// APIKey is stored with the credential host when set.
	APIKey string `json:"api_key" validate:"omitempty,max=512"`
}

// GenerateLogoRequest is the HTTP request body for generating a logo.
type GenerateLogoRequest struct {
	// Description is the logo design aesthetic.
	Description string `json:"description" validate:"required,max=2000"`
}

// AnimateRequest is the HTTP request body for starting a render.
type AnimateRequest struct {
	// Prompt is the animation prompt. Empty uses the default prompt.
	Prompt string `json:"prompt" validate:"max=2000"`
	// AspectRatio is "16:9" or "9:16". Empty means 16:9.
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,oneof=16:9 9:16"`
	// PushToS3 publishes the finished video to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// SessionResponse is the snapshot of a session.
type SessionResponse struct {
	ID              string         `json:"id"`
	Ready           bool           `json:"ready"`
	Description     string         `json:"description"`
	Prompt          string         `json:"prompt"`
	AspectRatio     string         `json:"aspect_ratio"`
	GeneratingImage bool           `json:"generating_image"`
	GeneratingVideo bool           `json:"generating_video"`
	Message         string         `json:"message,omitempty"`
	Logo            *LogoResponse  `json:"logo,omitempty"`
	Video           *VideoResponse `json:"video,omitempty"`
	Job             *JobResponse   `json:"job,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// LogoResponse describes the current logo.
type LogoResponse struct {
	// MIMEType is the image type, e.g. "image/png".
	MIMEType string `json:"mime_type"`
	// DataURL is the logo as a base64 data: URL.
	DataURL string `json:"data_url"`
	// URL serves the raw logo bytes.
	URL string `json:"url"`
}

// VideoResponse describes the current video.
type VideoResponse struct {
	// URL streams the video from this service.
	URL       string `json:"url"`
	MIMEType  string `json:"mime_type"`
	Size      int64  `json:"size"`
	PublicURL string `json:"public_url,omitempty"`
	PosterURL string `json:"poster_url,omitempty"`
}

// JobResponse is the HTTP response for a render job.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// OperationName is the remote operation handle.
	OperationName string `json:"operation_name,omitempty"`
	Prompt        string `json:"prompt"`
	AspectRatio   string `json:"aspect_ratio"`
	// Polls is the number of status queries issued so far.
	Polls int `json:"polls"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// VideoURL is the S3 URL if the video was published.
	VideoURL    string     `json:"video_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Sessions is the number of live sessions.
	Sessions int `json:"sessions"`
}
