// Package gemini adapts the Google Gen AI SDK to the image and video
// generation calls the studio needs, and downloads finished results.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Static errors for Gemini client operations.
var (
	// ErrAPIKeyRequired is returned when a client is built without a key.
	ErrAPIKeyRequired = errors.New("gemini: API key is required")
	// ErrOperationRequired is returned when polling without an operation name.
	ErrOperationRequired = errors.New("gemini: operation name is required")
)

// Client defines the remote calls used by the studio.
type Client interface {
	// GenerateImages runs a text-to-image request and returns the images
	// that carry a payload. Safety-filtered entries are dropped.
	GenerateImages(ctx context.Context, req ImageRequest) ([]GeneratedImage, error)

	// GenerateVideos starts an image-to-video operation.
	GenerateVideos(ctx context.Context, req VideoRequest) (*Operation, error)

	// GetVideosOperation refreshes the status of an operation.
	GetVideosOperation(ctx context.Context, op *Operation) (*Operation, error)
}

// Factory builds a Client bound to one API key.
// A new client is created for every call so a rotated key is picked up.
type Factory func(ctx context.Context, apiKey string) (Client, error)

type clientOptions struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// ClientOption is a function that configures the SDK client.
type ClientOption func(*clientOptions)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithAPIVersion overrides the API version (default "v1beta").
func WithAPIVersion(v string) ClientOption {
	return func(o *clientOptions) {
		o.apiVersion = v
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// SDKClient implements Client on top of google.golang.org/genai.
type SDKClient struct {
	client *genai.Client
}

// NewSDKClient creates a Gemini API client authenticated with apiKey.
func NewSDKClient(ctx context.Context, apiKey string, opts ...ClientOption) (*SDKClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrAPIKeyRequired
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    o.baseURL,
			APIVersion: o.apiVersion,
		},
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &SDKClient{client: client}, nil
}

// NewFactory returns a Factory that builds SDK clients with the given options.
func NewFactory(opts ...ClientOption) Factory {
	return func(ctx context.Context, apiKey string) (Client, error) {
		return NewSDKClient(ctx, apiKey, opts...)
	}
}

// GenerateImages runs a text-to-image request.
func (c *SDKClient) GenerateImages(ctx context.Context, req ImageRequest) ([]GeneratedImage, error) {
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: int32(req.NumberOfImages),
		OutputMIMEType: req.OutputMIMEType,
		AspectRatio:    req.AspectRatio,
	}

	resp, err := c.client.Models.GenerateImages(ctx, req.Model, req.Prompt, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate images: %w", err)
	}

	var images []GeneratedImage
	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		mime := gi.Image.MIMEType
		if mime == "" {
			mime = req.OutputMIMEType
		}
		images = append(images, GeneratedImage{
			Data:     gi.Image.ImageBytes,
			MIMEType: mime,
		})
	}

	return images, nil
}

// GenerateVideos starts an image-to-video operation.
func (c *SDKClient) GenerateVideos(ctx context.Context, req VideoRequest) (*Operation, error) {
	var image *genai.Image
	if len(req.Image) > 0 {
		image = &genai.Image{
			ImageBytes: req.Image,
			MIMEType:   req.ImageMIMEType,
		}
	}

	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos: int32(req.NumberOfVideos),
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
	}

	op, err := c.client.Models.GenerateVideos(ctx, req.Model, req.Prompt, image, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate videos: %w", err)
	}

	return fromSDKOperation(op), nil
}

// GetVideosOperation refreshes an operation. Handles built only from a
// name (for example after a restart) are accepted.
func (c *SDKClient) GetVideosOperation(ctx context.Context, op *Operation) (*Operation, error) {
	if op == nil || op.Name == "" {
		return nil, ErrOperationRequired
	}

	raw := op.raw
	if raw == nil {
		raw = &genai.GenerateVideosOperation{Name: op.Name}
	}

	next, err := c.client.Operations.GetVideosOperation(ctx, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: get operation %s: %w", op.Name, err)
	}

	return fromSDKOperation(next), nil
}
