package studio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maauso/logo-animator-api/internal/credential"
	"github.com/maauso/logo-animator-api/internal/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// mockClient implements gemini.Client for testing.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) GenerateImages(ctx context.Context, req gemini.ImageRequest) ([]gemini.GeneratedImage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gemini.GeneratedImage), args.Error(1)
}

func (m *mockClient) GenerateVideos(ctx context.Context, req gemini.VideoRequest) (*gemini.Operation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.Operation), args.Error(1)
}

func (m *mockClient) GetVideosOperation(ctx context.Context, op *gemini.Operation) (*gemini.Operation, error) {
	args := m.Called(ctx, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.Operation), args.Error(1)
}

// fakeDownloader records download calls.
type fakeDownloader struct {
	mu    sync.Mutex
	calls []downloadCall
	blob  *gemini.Blob
	err   error
}

type downloadCall struct {
	uri string
	key string
}

func (d *fakeDownloader) Download(_ context.Context, uri, apiKey string) (*gemini.Blob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, downloadCall{uri: uri, key: apiKey})
	if d.err != nil {
		return nil, d.err
	}
	return d.blob, nil
}

type fixture struct {
	studio     *Studio
	client     *mockClient
	downloader *fakeDownloader
	keys       *credential.MemoryStore
	factoryHit *atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := &mockClient{}
	downloader := &fakeDownloader{blob: &gemini.Blob{Data: []byte("mp4-bytes"), MIMEType: "video/mp4"}}
	keys := credential.NewMemoryStore(nil)
	require.NoError(t, keys.SetKey(context.Background(), "test-key"))

	var hits atomic.Int32
	factory := func(_ context.Context, apiKey string) (gemini.Client, error) {
		hits.Add(1)
		assert.Equal(t, "test-key", apiKey)
		return client, nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := New(factory, downloader, keys,
		WithLogger(logger),
		WithDefaultPolling(WithInterval(time.Millisecond)),
	)

	return &fixture{studio: s, client: client, downloader: downloader, keys: keys, factoryHit: &hits}
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake")

func logo() Image {
	return NewImage(pngBytes, "image/png")
}

func pending() *gemini.Operation {
	return &gemini.Operation{Name: "operations/op-1"}
}

func finished(uri string) *gemini.Operation {
	return &gemini.Operation{Name: "operations/op-1", Done: true, VideoURIs: []string{uri}}
}

func TestGenerateLogoImage_ReturnsFirstImage(t *testing.T) {
	f := newFixture(t)

	f.client.On("GenerateImages", mock.Anything, gemini.ImageRequest{
		Model:          DefaultImageModel,
		Prompt:         LogoPrompt("a red circle logo"),
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
		AspectRatio:    "1:1",
	}).Return([]gemini.GeneratedImage{
		{Data: pngBytes, MIMEType: "image/png"},
		{Data: []byte("second"), MIMEType: "image/png"},
	}, nil).Once()

	img, err := f.studio.GenerateLogoImage(context.Background(), "a red circle logo")

	require.NoError(t, err)
	assert.Equal(t, pngBytes, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, NewImage(pngBytes, "image/png").Base64, img.Base64)
	f.client.AssertExpectations(t)
}

func TestGenerateLogoImage_PromptTemplate(t *testing.T) {
	assert.Equal(t,
		"A modern, professional company logo for a company. The logo should be clean, iconic, and memorable. Design aesthetic: minimalist fox. The logo should be on a solid, neutral background.",
		LogoPrompt("minimalist fox"),
	)
}

func TestGenerateLogoImage_EmptyDescription(t *testing.T) {
	for _, desc := range []string{"", "   ", "\n\t "} {
		t.Run("desc="+desc, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.studio.GenerateLogoImage(context.Background(), desc)

			assert.ErrorIs(t, err, ErrEmptyDescription)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Zero(t, f.factoryHit.Load(), "no remote client should be built")
			f.client.AssertNotCalled(t, "GenerateImages", mock.Anything, mock.Anything)
		})
	}
}

func TestGenerateLogoImage_NoImages(t *testing.T) {
	f := newFixture(t)
	f.client.On("GenerateImages", mock.Anything, mock.Anything).Return([]gemini.GeneratedImage{}, nil)

	_, err := f.studio.GenerateLogoImage(context.Background(), "logo")
	assert.ErrorIs(t, err, ErrGenerationEmpty)
}

func TestGenerateLogoImage_RemoteErrorPropagates(t *testing.T) {
	f := newFixture(t)
	remoteErr := errors.New("quota exceeded")
	f.client.On("GenerateImages", mock.Anything, mock.Anything).Return(nil, remoteErr)

	_, err := f.studio.GenerateLogoImage(context.Background(), "logo")
	assert.Equal(t, remoteErr, err)
}

func TestGenerateLogoImage_CustomModel(t *testing.T) {
	f := newFixture(t)
	WithImageModel("imagen-custom")(f.studio)

	f.client.On("GenerateImages", mock.Anything, mock.MatchedBy(func(req gemini.ImageRequest) bool {
		return req.Model == "imagen-custom"
	})).Return([]gemini.GeneratedImage{{Data: pngBytes}}, nil)

	img, err := f.studio.GenerateLogoImage(context.Background(), "logo")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
}

func TestAnimateLogo_CompletesOnThirdPoll(t *testing.T) {
	f := newFixture(t)

	f.client.On("GenerateVideos", mock.Anything, gemini.VideoRequest{
		Model:          DefaultVideoModel,
		Prompt:         "spin",
		Image:          pngBytes,
		ImageMIMEType:  "image/png",
		NumberOfVideos: 1,
		Resolution:     DefaultVideoResolution,
		AspectRatio:    "9:16",
	}).Return(pending(), nil).Once()
	f.client.On("GetVideosOperation", mock.Anything, mock.Anything).Return(pending(), nil).Twice()
	f.client.On("GetVideosOperation", mock.Anything, mock.Anything).Return(finished("https://x/y"), nil).Once()

	var progress []Progress
	video, err := f.studio.AnimateLogo(context.Background(),
		AnimateRequest{Prompt: "spin", Image: logo(), AspectRatio: "9:16"},
		WithObserver(func(p Progress) { progress = append(progress, p) }),
	)

	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), video.Data)
	assert.Equal(t, "video/mp4", video.MIMEType)
	assert.Equal(t, "https://x/y", video.SourceURI)
	assert.Equal(t, "operations/op-1", video.OperationName)

	f.client.AssertNumberOfCalls(t, "GenerateVideos", 1)
	f.client.AssertNumberOfCalls(t, "GetVideosOperation", 3)

	require.Len(t, f.downloader.calls, 1)
	assert.Equal(t, downloadCall{uri: "https://x/y", key: "test-key"}, f.downloader.calls[0])

	require.Len(t, progress, 4)
	assert.Equal(t, 0, progress[0].Attempt)
	assert.Equal(t, 3, progress[3].Attempt)
	assert.True(t, progress[3].Done)
}

func TestAnimateLogo_PollsAreSpacedByInterval(t *testing.T) {
	f := newFixture(t)
	interval := 20 * time.Millisecond

	f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(pending(), nil).Once()
	f.client.On("GetVideosOperation", mock.Anything, mock.Anything).Return(pending(), nil).Twice()
	f.client.On("GetVideosOperation", mock.Anything, mock.Anything).Return(finished("https://x/y"), nil).Once()

	start := time.Now()
	_, err := f.studio.AnimateLogo(context.Background(),
		AnimateRequest{Prompt: "spin", Image: logo()},
		WithInterval(interval),
	)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 3*interval)
}

func TestAnimateLogo_AlreadyDoneSkipsPolling(t *testing.T) {
	f := newFixture(t)
	f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(finished("https://x/y"), nil).Once()

	_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})

	require.NoError(t, err)
	f.client.AssertNotCalled(t, "GetVideosOperation", mock.Anything, mock.Anything)
}

func TestAnimateLogo_DefaultsAspectRatio(t *testing.T) {
	f := newFixture(t)
	f.client.On("GenerateVideos", mock.Anything, mock.MatchedBy(func(req gemini.VideoRequest) bool {
		return req.AspectRatio == "16:9"
	})).Return(finished("https://x/y"), nil).Once()

	_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})
	require.NoError(t, err)
	f.client.AssertExpectations(t)
}

func TestAnimateLogo_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     AnimateRequest
		wantErr error
	}{
		{"missing logo", AnimateRequest{Prompt: "x"}, ErrMissingLogo},
		{"bad aspect ratio", AnimateRequest{Image: logo(), AspectRatio: "4:3"}, ErrInvalidAspectRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.studio.AnimateLogo(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Zero(t, f.factoryHit.Load())
		})
	}
}

func TestAnimateLogo_InvalidCredential(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{
			name: "submission text",
			setup: func(f *fixture) {
				f.client.On("GenerateVideos", mock.Anything, mock.Anything).
					Return(nil, errors.New("Requested entity was not found.")).Once()
			},
		},
		{
			name: "operation error text",
			setup: func(f *fixture) {
				f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(pending(), nil).Once()
				f.client.On("GetVideosOperation", mock.Anything, mock.Anything).Return(&gemini.Operation{
					Name:  "operations/op-1",
					Done:  true,
					Error: &gemini.OperationError{Code: 5, Message: "Requested entity was not found."},
				}, nil).Once()
			},
		},
		{
			name: "structured API_KEY_INVALID",
			setup: func(f *fixture) {
				f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(nil, genai.APIError{
					Code:    400,
					Message: "API key not valid. Please pass a valid API key.",
					Status:  "INVALID_ARGUMENT",
					Details: []map[string]any{{"reason": "API_KEY_INVALID"}},
				}).Once()
			},
		},
		{
			name: "structured NOT_FOUND",
			setup: func(f *fixture) {
				f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(nil,
					errors.Join(errors.New("gemini: generate videos"), genai.APIError{
						Code:    404,
						Message: "Requested entity was not found.",
						Status:  "NOT_FOUND",
					})).Once()
			},
		},
		{
			name: "missing key",
			setup: func(f *fixture) {
				_ = f.keys.SetKey(context.Background(), "")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})

			assert.ErrorIs(t, err, ErrInvalidCredential)
			assert.Empty(t, f.downloader.calls)
		})
	}
}

func TestAnimateLogo_OtherErrorsAreNotCredentialErrors(t *testing.T) {
	f := newFixture(t)
	f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(nil, genai.APIError{
		Code: 429, Message: "Resource has been exhausted", Status: "RESOURCE_EXHAUSTED",
	}).Once()

	_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredential)
	var apiErr genai.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestAnimateLogo_OperationError(t *testing.T) {
	f := newFixture(t)
	f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(pending(), nil).Once()
	f.client.On("GetVideosOperation", mock.Anything, mock.Anything).Return(&gemini.Operation{
		Name: "operations/op-1", Done: true,
		Error: &gemini.OperationError{Code: 13, Message: "internal error"},
	}, nil).Once()

	_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, 13, opErr.Code)
	assert.NotErrorIs(t, err, ErrInvalidCredential)
}

func TestAnimateLogo_MissingResult(t *testing.T) {
	t.Run("no uri", func(t *testing.T) {
		f := newFixture(t)
		f.client.On("GenerateVideos", mock.Anything, mock.Anything).
			Return(&gemini.Operation{Name: "op", Done: true}, nil).Once()

		_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})
		assert.ErrorIs(t, err, ErrMissingResult)
	})

	t.Run("filtered", func(t *testing.T) {
		f := newFixture(t)
		f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(&gemini.Operation{
			Name: "op", Done: true, FilteredReasons: []string{"unsafe"},
		}, nil).Once()

		_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})
		assert.ErrorIs(t, err, ErrMissingResult)
		assert.Contains(t, err.Error(), "unsafe")
	})
}

func TestAnimateLogo_DownloadError(t *testing.T) {
	f := newFixture(t)
	f.downloader.err = &gemini.DownloadError{StatusCode: 403, Status: "403 Forbidden"}
	f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(finished("https://x/y"), nil).Once()

	_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})

	var dlErr *DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, 403, dlErr.StatusCode)
}

func TestAnimateLogo_PollQueryErrorStopsLoop(t *testing.T) {
	f := newFixture(t)
	f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(pending(), nil).Once()
	f.client.On("GetVideosOperation", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	f.client.AssertNumberOfCalls(t, "GetVideosOperation", 1)
}

func TestAnimateLogo_UnboundedPollingRunsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(pending(), nil).Once()
	f.client.On("GetVideosOperation", mock.Anything, mock.Anything).Return(pending(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const wantPolls = 25
	var polls atomic.Int32
	_, err := f.studio.AnimateLogo(ctx, AnimateRequest{Image: logo()},
		WithObserver(func(p Progress) {
			if p.Attempt > 0 && polls.Add(1) == wantPolls {
				cancel()
			}
		}),
	)

	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, polls.Load(), int32(wantPolls))
	assert.Empty(t, f.downloader.calls)
}

func TestAnimateLogo_Timeout(t *testing.T) {
	f := newFixture(t)
	f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(pending(), nil).Once()
	f.client.On("GetVideosOperation", mock.Anything, mock.Anything).Return(pending(), nil)

	_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()},
		WithTimeout(30*time.Millisecond),
	)

	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.NotErrorIs(t, err, ErrInvalidCredential)
}

func TestAnimateLogo_MaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.client.On("GenerateVideos", mock.Anything, mock.Anything).Return(pending(), nil).Once()
	f.client.On("GetVideosOperation", mock.Anything, mock.Anything).Return(pending(), nil)

	_, err := f.studio.AnimateLogo(context.Background(), AnimateRequest{Image: logo()},
		WithMaxAttempts(3),
	)

	assert.ErrorIs(t, err, ErrPollAttemptsExceeded)
	f.client.AssertNumberOfCalls(t, "GetVideosOperation", 3)
}

func TestAnimateLogo_ReadsKeyFreshForEachCall(t *testing.T) {
	client := &mockClient{}
	keys := credential.NewMemoryStore(nil)
	require.NoError(t, keys.SetKey(context.Background(), "first"))

	var seen []string
	factory := func(_ context.Context, apiKey string) (gemini.Client, error) {
		seen = append(seen, apiKey)
		return client, nil
	}
	downloader := &fakeDownloader{blob: &gemini.Blob{Data: []byte("v"), MIMEType: "video/mp4"}}
	s := New(factory, downloader, keys, WithDefaultPolling(WithInterval(time.Millisecond)))

	client.On("GenerateVideos", mock.Anything, mock.Anything).Return(finished("https://x/y"), nil)

	_, err := s.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})
	require.NoError(t, err)

	require.NoError(t, keys.SetKey(context.Background(), "second"))
	_, err = s.AnimateLogo(context.Background(), AnimateRequest{Image: logo()})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, seen)
	assert.Equal(t, "second", downloader.calls[1].key)
}

// failingReader fails the test if it is read.
type failingReader struct {
	t *testing.T
}

func (r failingReader) Read([]byte) (int, error) {
	r.t.Error("oversized upload must not be read")
	return 0, io.EOF
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("disk gone")
}

func TestEncodeUpload(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		img, err := EncodeUpload(bytes.NewReader(pngBytes), int64(len(pngBytes)))
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MIMEType)

		decoded, err := base64.StdEncoding.DecodeString(img.Base64)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, decoded)
		assert.Equal(t, "data:image/png;base64,"+img.Base64, img.DataURL())
	})

	t.Run("jpeg accepted", func(t *testing.T) {
		jpeg := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
		img, err := EncodeUpload(bytes.NewReader(jpeg), int64(len(jpeg)))
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", img.MIMEType)
	})

	t.Run("declared size over limit is rejected before reading", func(t *testing.T) {
		_, err := EncodeUpload(failingReader{t: t}, MaxUploadBytes+1)
		assert.ErrorIs(t, err, ErrFileTooLarge)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("exactly at limit is accepted", func(t *testing.T) {
		data := make([]byte, MaxUploadBytes)
		copy(data, pngBytes)
		_, err := EncodeUpload(bytes.NewReader(data), MaxUploadBytes)
		assert.NoError(t, err)
	})

	t.Run("undeclared oversize is rejected", func(t *testing.T) {
		data := make([]byte, MaxUploadBytes+10)
		copy(data, pngBytes)
		_, err := EncodeUpload(bytes.NewReader(data), -1)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := EncodeUpload(bytes.NewReader([]byte("GIF89a....")), 10)
		assert.ErrorIs(t, err, ErrUnsupportedImage)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("read failure", func(t *testing.T) {
		_, err := EncodeUpload(errReader{}, 10)
		assert.ErrorIs(t, err, ErrFileRead)
	})
}
