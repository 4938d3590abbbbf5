// Package studio orchestrates logo generation and animation against the
// remote image and video services.
package studio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maauso/logo-animator-api/internal/credential"
	"github.com/maauso/logo-animator-api/internal/gemini"
)

// Model and request defaults.
const (
	DefaultImageModel      = "imagen-4.0-generate-001"
	DefaultVideoModel      = "veo-3.1-fast-generate-preview"
	DefaultVideoResolution = "720p"
	DefaultAspectRatio     = "16:9"
	DefaultPollInterval    = 10 * time.Second

	logoMIMEType         = "image/png"
	logoAspectRatio      = "1:1"
	logoPromptTemplate   = "A modern, professional company logo for a company. The logo should be clean, iconic, and memorable. Design aesthetic: %s. The logo should be on a solid, neutral background."
	defaultVideoMIMEType = "video/mp4"
)

// Supported animation aspect ratios.
const (
	AspectLandscape = "16:9"
	AspectPortrait  = "9:16"
)

// ValidAspectRatio reports whether ar is a supported animation aspect ratio.
func ValidAspectRatio(ar string) bool {
	return ar == AspectLandscape || ar == AspectPortrait
}

// LogoPrompt wraps a user description in the logo design template.
func LogoPrompt(description string) string {
	return fmt.Sprintf(logoPromptTemplate, description)
}

// AnimateRequest describes an animation.
type AnimateRequest struct {
	Prompt      string // Animation prompt
	Image       Image  // Logo to animate
	AspectRatio string // "16:9" or "9:16"; empty means 16:9
}

// Video is a downloaded render.
type Video struct {
	Data          []byte
	MIMEType      string
	SourceURI     string // Remote location the video was fetched from
	OperationName string
}

// Studio talks to the remote services on behalf of a session.
type Studio struct {
	factory    gemini.Factory
	downloader gemini.Downloader
	keys       credential.Provider
	logger     *slog.Logger

	imageModel string
	videoModel string
	resolution string
	polling    PollOptions
}

// Option is a function that configures a Studio.
type Option func(*Studio)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Studio) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithImageModel sets the image model name.
func WithImageModel(model string) Option {
	return func(s *Studio) {
		if model != "" {
			s.imageModel = model
		}
	}
}

// WithVideoModel sets the video model name.
func WithVideoModel(model string) Option {
	return func(s *Studio) {
		if model != "" {
			s.videoModel = model
		}
	}
}

// WithResolution sets the video resolution.
func WithResolution(res string) Option {
	return func(s *Studio) {
		if res != "" {
			s.resolution = res
		}
	}
}

// WithDefaultPolling sets the poll options applied to every animation.
// Options passed to AnimateLogo are applied on top.
func WithDefaultPolling(opts ...PollOption) Option {
	return func(s *Studio) {
		for _, opt := range opts {
			opt(&s.polling)
		}
	}
}

// New creates a Studio.
func New(factory gemini.Factory, downloader gemini.Downloader, keys credential.Provider, opts ...Option) *Studio {
	s := &Studio{
		factory:    factory,
		downloader: downloader,
		keys:       keys,
		logger:     slog.Default(),
		imageModel: DefaultImageModel,
		videoModel: DefaultVideoModel,
		resolution: DefaultVideoResolution,
		polling:    PollOptions{Interval: DefaultPollInterval},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// client reads the current API key and builds a client bound to it.
func (s *Studio) client(ctx context.Context) (gemini.Client, error) {
	key, err := s.keys.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("studio: read API key: %w", err)
	}
	return s.factory(ctx, key)
}

// GenerateLogoImage generates a logo from a text description and returns
// the first image produced.
func (s *Studio) GenerateLogoImage(ctx context.Context, description string) (Image, error) {
	if strings.TrimSpace(description) == "" {
		return Image{}, ErrEmptyDescription
	}

	c, err := s.client(ctx)
	if err != nil {
		return Image{}, err
	}

	s.logger.Info("generating logo", slog.String("model", s.imageModel))

	images, err := c.GenerateImages(ctx, gemini.ImageRequest{
		Model:          s.imageModel,
		Prompt:         LogoPrompt(description),
		NumberOfImages: 1,
		OutputMIMEType: logoMIMEType,
		AspectRatio:    logoAspectRatio,
	})
	if err != nil {
		return Image{}, err
	}
	if len(images) == 0 {
		return Image{}, ErrGenerationEmpty
	}

	mime := images[0].MIMEType
	if mime == "" {
		mime = logoMIMEType
	}
	return NewImage(images[0].Data, mime), nil
}

// AnimateLogo starts a video render of the logo, polls until it finishes
// and downloads the result. Credential failures are reported as
// ErrInvalidCredential.
func (s *Studio) AnimateLogo(ctx context.Context, req AnimateRequest, opts ...PollOption) (*Video, error) {
	if req.Image.Empty() {
		return nil, ErrMissingLogo
	}
	ar := req.AspectRatio
	if ar == "" {
		ar = DefaultAspectRatio
	}
	if !ValidAspectRatio(ar) {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidAspectRatio, ar)
	}

	po := s.polling
	for _, opt := range opts {
		opt(&po)
	}

	video, err := s.animate(ctx, req.Prompt, req.Image, ar, po)
	return video, classifyCredentialError(err)
}

func (s *Studio) animate(ctx context.Context, prompt string, image Image, aspectRatio string, po PollOptions) (*Video, error) {
	c, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	op, err := c.GenerateVideos(ctx, gemini.VideoRequest{
		Model:          s.videoModel,
		Prompt:         prompt,
		Image:          image.Data,
		ImageMIMEType:  image.MIMEType,
		NumberOfVideos: 1,
		Resolution:     s.resolution,
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("video generation started",
		slog.String("operation", op.Name),
		slog.String("aspect_ratio", aspectRatio),
	)
	po.notify(Progress{Attempt: 0, OperationName: op.Name, Done: op.Done})

	op, err = pollOperation(ctx, c, op, po)
	if err != nil {
		return nil, err
	}

	if op.Error != nil {
		return nil, op.Error
	}
	if len(op.VideoURIs) == 0 {
		if len(op.FilteredReasons) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingResult, strings.Join(op.FilteredReasons, "; "))
		}
		return nil, ErrMissingResult
	}

	// The key is read again so the download uses the current selection.
	key, err := s.keys.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("studio: read API key: %w", err)
	}

	uri := op.VideoURIs[0]
	blob, err := s.downloader.Download(ctx, uri, key)
	if err != nil {
		return nil, fmt.Errorf("studio: download video: %w", err)
	}

	mime := blob.MIMEType
	if mime == "" || !strings.HasPrefix(mime, "video/") {
		mime = defaultVideoMIMEType
	}

	s.logger.Info("video downloaded",
		slog.String("operation", op.Name),
		slog.Int("bytes", len(blob.Data)),
	)

	return &Video{
		Data:          blob.Data,
		MIMEType:      mime,
		SourceURI:     uri,
		OperationName: op.Name,
	}, nil
}
