package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/maauso/logo-animator-api/internal/job"
	"github.com/maauso/logo-animator-api/internal/studio"
)

// VideoResource is a rendered video held in local storage.
type VideoResource struct {
	JobID      string
	Path       string
	MIMEType   string
	Size       int64
	URL        string // Service URL the video is streamed from
	PublicURL  string // S3 URL when published
	PosterPath string
	PosterURL  string
	SourceURI  string
	CreatedAt  time.Time
}

// AnimateInput holds the animation form values.
type AnimateInput struct {
	Prompt      string
	AspectRatio string
	PublishToS3 bool
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID              string
	Ready           bool
	Description     string
	Prompt          string
	AspectRatio     string
	Logo            *studio.Image
	GeneratingImage bool
	GeneratingVideo bool
	Message         string
	Video           *VideoResource
	Job             *job.Job
	CreatedAt       time.Time
}

// Workspace is one user's session.
type Workspace struct {
	id        string
	createdAt time.Time
	deps      *deps
	logger    *slog.Logger

	mu              sync.Mutex
	ready           bool
	description     string
	prompt          string
	aspectRatio     string
	logo            *studio.Image
	video           *VideoResource
	message         string
	generatingImage bool
	generatingVideo bool
	currentJob      *job.Job
	cancel          context.CancelFunc
	logoGen         uint64 // bumped whenever the logo is replaced
	closed          bool

	renders sync.WaitGroup
}

func newWorkspace(sessionID string, ready bool, d *deps) *Workspace {
	return &Workspace{
		id:          sessionID,
		createdAt:   time.Now(),
		deps:        d,
		logger:      d.logger.With(slog.String("session_id", sessionID)),
		ready:       ready,
		prompt:      DefaultAnimationPrompt,
		aspectRatio: studio.DefaultAspectRatio,
	}
}

// ID returns the session ID.
func (w *Workspace) ID() string {
	return w.id
}

// GenerateLogo generates a new logo from a description. The current logo
// and video are cleared before the remote call.
func (w *Workspace) GenerateLogo(ctx context.Context, description string) (studio.Image, error) {
	if strings.TrimSpace(description) == "" {
		w.setMessage(MsgEmptyDescription)
		return studio.Image{}, studio.ErrEmptyDescription
	}

	old, err := w.beginImageStep(func() { w.description = description })
	if err != nil {
		return studio.Image{}, err
	}
	w.releaseVideo(ctx, old)

	img, err := w.deps.gen.GenerateLogoImage(ctx, description)
	return w.endImageStep(img, err, MsgGenerateFailed)
}

// UploadLogo replaces the logo with an uploaded image. An oversize upload is
// rejected before anything is read and leaves the current state intact.
func (w *Workspace) UploadLogo(ctx context.Context, r io.Reader, size int64) (studio.Image, error) {
	w.mu.Lock()
	if err := w.checkImageStepLocked(); err != nil {
		w.mu.Unlock()
		return studio.Image{}, err
	}
	if size > studio.MaxUploadBytes {
		w.message = MsgUploadTooLarge
		w.mu.Unlock()
		return studio.Image{}, studio.ErrFileTooLarge
	}
	w.mu.Unlock()

	old, err := w.beginImageStep(nil)
	if err != nil {
		return studio.Image{}, err
	}
	w.releaseVideo(ctx, old)

	img, err := studio.EncodeUpload(r, size)
	if errors.Is(err, studio.ErrFileTooLarge) {
		return w.endImageStep(img, err, MsgUploadTooLarge)
	}
	return w.endImageStep(img, err, MsgUploadFailed)
}

func (w *Workspace) checkImageStepLocked() error {
	switch {
	case w.closed:
		return ErrClosed
	case !w.ready:
		return ErrKeyNotSelected
	case w.generatingImage:
		return ErrStepBusy
	}
	return nil
}

// setMessage replaces the user-facing message unless the session is closed.
func (w *Workspace) setMessage(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.message = msg
	}
}

// beginImageStep marks the image step busy and clears the message, logo and
// video. A running render belongs to the old logo and is cancelled. The
// detached video is returned for release.
func (w *Workspace) beginImageStep(update func()) (*VideoResource, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkImageStepLocked(); err != nil {
		return nil, err
	}
	if update != nil {
		update()
	}
	w.generatingImage = true
	w.message = ""
	w.logo = nil
	w.logoGen++
	if w.cancel != nil {
		w.cancel()
		w.logger.Info("animation cancelled by new logo")
	}
	return w.detachVideoLocked(), nil
}

func (w *Workspace) endImageStep(img studio.Image, err error, failMsg string) (studio.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.generatingImage = false
	if err != nil {
		w.message = failMsg
		w.logger.Error("logo step failed", slog.String("error", err.Error()))
		return studio.Image{}, err
	}
	w.logo = &img
	w.logger.Info("logo ready",
		slog.String("mime_type", img.MIMEType),
		slog.Int("bytes", len(img.Data)),
	)
	return img, nil
}

// AnimateLogo starts a render of the current logo in the background and
// returns its job. The previous video is released first.
func (w *Workspace) AnimateLogo(ctx context.Context, in AnimateInput) (*job.Job, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		prompt = DefaultAnimationPrompt
	}
	ar := in.AspectRatio
	if ar == "" {
		ar = studio.DefaultAspectRatio
	}
	if !studio.ValidAspectRatio(ar) {
		w.setMessage(MsgInvalidAspectRatio)
		return nil, fmt.Errorf("%w: got %q", studio.ErrInvalidAspectRatio, ar)
	}

	w.mu.Lock()
	switch {
	case w.closed:
		w.mu.Unlock()
		return nil, ErrClosed
	case w.logo == nil:
		w.message = MsgNoLogo
		w.mu.Unlock()
		return nil, studio.ErrMissingLogo
	case !w.ready:
		w.mu.Unlock()
		return nil, ErrKeyNotSelected
	case w.generatingVideo:
		w.mu.Unlock()
		return nil, ErrStepBusy
	}

	j := job.New(w.id)
	j.Prompt = prompt
	j.AspectRatio = ar
	j.PushToS3 = in.PublishToS3
	if err := w.deps.jobs.Save(ctx, j); err != nil {
		w.mu.Unlock()
		return nil, fmt.Errorf("session: save job: %w", err)
	}

	renderCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	logo := *w.logo
	gen := w.logoGen
	old := w.detachVideoLocked()
	w.prompt = prompt
	w.aspectRatio = ar
	w.message = ""
	w.generatingVideo = true
	w.currentJob = j
	w.cancel = cancel
	w.renders.Add(1)
	w.mu.Unlock()

	w.releaseVideo(ctx, old)

	w.logger.Info("animation started",
		slog.String("job_id", j.ID),
		slog.String("aspect_ratio", ar),
		slog.Bool("push_to_s3", in.PublishToS3),
	)

	go w.render(renderCtx, cancel, j, gen, studio.AnimateRequest{
		Prompt:      prompt,
		Image:       logo,
		AspectRatio: ar,
	})

	return j.Clone(), nil
}

// render runs one animation to completion and records the outcome.
// gen is the logo generation the render was started from.
func (w *Workspace) render(ctx context.Context, cancel context.CancelFunc, j *job.Job, gen uint64, req studio.AnimateRequest) {
	defer w.renders.Done()
	defer cancel()

	if err := j.Start(); err != nil {
		w.logger.Warn("job start rejected", slog.String("job_id", j.ID), slog.String("error", err.Error()))
	}
	w.saveJob(j)

	opts := append([]studio.PollOption{}, w.deps.pollOpts...)
	opts = append(opts, studio.WithObserver(func(p studio.Progress) {
		if p.OperationName != "" {
			j.SetOperation(p.OperationName)
		}
		j.RecordPoll(p.Attempt)
		w.saveJob(j)
	}))

	video, err := w.deps.gen.AnimateLogo(ctx, req, opts...)

	var res *VideoResource
	if err == nil {
		res, err = w.storeVideo(ctx, j, video)
	}
	w.finishRender(ctx, j, gen, res, err)
}

// storeVideo saves the render and optionally publishes it and extracts a poster.
func (w *Workspace) storeVideo(ctx context.Context, j *job.Job, video *studio.Video) (*VideoResource, error) {
	ext := ".mp4"
	if mt := mimetype.Lookup(video.MIMEType); mt != nil && mt.Extension() != "" {
		ext = mt.Extension()
	}

	path, err := w.deps.store.SaveTemp(ctx, "logo"+ext, bytes.NewReader(video.Data))
	if err != nil {
		return nil, fmt.Errorf("session: save video: %w", err)
	}

	res := &VideoResource{
		JobID:     j.ID,
		Path:      path,
		MIMEType:  video.MIMEType,
		Size:      int64(len(video.Data)),
		URL:       fmt.Sprintf("/sessions/%s/video", w.id),
		SourceURI: video.SourceURI,
		CreatedAt: time.Now(),
	}

	if j.PushToS3 {
		key := fmt.Sprintf("%s/%s%s", w.id, j.ID, ext)
		url, err := w.deps.store.UploadToS3(ctx, key, video.MIMEType, bytes.NewReader(video.Data))
		if err != nil {
			w.logger.Warn("failed to publish video",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
		} else {
			res.PublicURL = url
		}
	}

	if w.deps.poster != nil {
		w.attachPoster(ctx, res)
	}

	return res, nil
}

func (w *Workspace) attachPoster(ctx context.Context, res *VideoResource) {
	frame, err := w.deps.poster.ExtractFirstFrame(ctx, res.Path)
	if err != nil {
		w.logger.Warn("failed to extract poster frame",
			slog.String("job_id", res.JobID),
			slog.String("error", err.Error()),
		)
		return
	}
	posterPath, err := w.deps.store.SaveTemp(ctx, "poster.png", bytes.NewReader(frame))
	if err != nil {
		w.logger.Warn("failed to save poster frame",
			slog.String("job_id", res.JobID),
			slog.String("error", err.Error()),
		)
		return
	}
	res.PosterPath = posterPath
	res.PosterURL = res.URL + "/poster"
}

// finishRender records the outcome of a render. A result that arrives after
// the session closed or after the logo was replaced is discarded.
func (w *Workspace) finishRender(ctx context.Context, j *job.Job, gen uint64, res *VideoResource, err error) {
	w.mu.Lock()
	w.generatingVideo = false
	w.cancel = nil
	discard := w.closed || gen != w.logoGen

	switch {
	case discard && !errors.Is(err, studio.ErrInvalidCredential):
		_ = j.Cancel()
	case err == nil:
		w.video = res
		j.SetOutput(res.Path, res.PublicURL)
		_ = j.Complete()
	case errors.Is(err, studio.ErrInvalidCredential):
		w.message = MsgInvalidKey
		w.ready = false
		_ = j.Fail(err.Error())
	case errors.Is(err, studio.ErrPollTimeout), errors.Is(err, studio.ErrPollAttemptsExceeded):
		w.message = MsgAnimateTimedOut
		_ = j.Timeout(err.Error())
	case errors.Is(err, context.Canceled):
		_ = j.Cancel()
	default:
		w.message = MsgAnimateFailed
		_ = j.Fail(err.Error())
	}
	w.mu.Unlock()

	w.saveJob(j)

	if err == nil && discard {
		w.releaseVideo(context.WithoutCancel(ctx), res)
	}

	if err != nil {
		w.logger.Error("animation ended",
			slog.String("job_id", j.ID),
			slog.String("status", string(j.GetStatus())),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("animation completed",
		slog.String("job_id", j.ID),
		slog.String("status", string(j.GetStatus())),
	)
}

// CancelAnimation aborts the running render. It reports whether a render
// was running.
func (w *Workspace) CancelAnimation() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return false
	}
	w.cancel()
	w.logger.Info("animation cancel requested")
	return true
}

// Wait blocks until no render is running or ctx is done.
func (w *Workspace) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.renders.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SelectKey asks the credential host for a key. When apiKey is set it is
// stored first. The gate opens optimistically.
func (w *Workspace) SelectKey(ctx context.Context, apiKey string) error {
	if apiKey != "" {
		if w.deps.setter == nil {
			return ErrKeyEntryUnsupported
		}
		if err := w.deps.setter.SetKey(ctx, apiKey); err != nil {
			return fmt.Errorf("session: store key: %w", err)
		}
	}
	if w.deps.keys != nil {
		if err := w.deps.keys.OpenSelectKey(ctx); err != nil {
			return fmt.Errorf("session: open key selector: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.ready = true
	w.logger.Info("key selected")
	return nil
}

// Logo returns the current logo.
func (w *Workspace) Logo() (studio.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logo == nil {
		return studio.Image{}, ErrNoLogo
	}
	return *w.logo, nil
}

// OpenVideo opens the current video for reading. The caller closes the reader.
func (w *Workspace) OpenVideo(ctx context.Context) (io.ReadCloser, VideoResource, error) {
	w.mu.Lock()
	if w.video == nil {
		w.mu.Unlock()
		return nil, VideoResource{}, ErrNoVideo
	}
	res := *w.video
	w.mu.Unlock()

	rc, err := w.deps.store.LoadTemp(ctx, res.Path)
	if err != nil {
		return nil, VideoResource{}, fmt.Errorf("session: open video: %w", err)
	}
	return rc, res, nil
}

// OpenPoster opens the poster frame of the current video.
func (w *Workspace) OpenPoster(ctx context.Context) (io.ReadCloser, error) {
	w.mu.Lock()
	if w.video == nil {
		w.mu.Unlock()
		return nil, ErrNoVideo
	}
	posterPath := w.video.PosterPath
	w.mu.Unlock()
	if posterPath == "" {
		return nil, ErrNoPoster
	}

	rc, err := w.deps.store.LoadTemp(ctx, posterPath)
	if err != nil {
		return nil, fmt.Errorf("session: open poster: %w", err)
	}
	return rc, nil
}

// Snapshot returns a copy of the session state.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		ID:              w.id,
		Ready:           w.ready,
		Description:     w.description,
		Prompt:          w.prompt,
		AspectRatio:     w.aspectRatio,
		GeneratingImage: w.generatingImage,
		GeneratingVideo: w.generatingVideo,
		Message:         w.message,
		CreatedAt:       w.createdAt,
	}
	if w.logo != nil {
		logo := *w.logo
		s.Logo = &logo
	}
	if w.video != nil {
		video := *w.video
		s.Video = &video
	}
	if w.currentJob != nil {
		s.Job = w.currentJob.Clone()
	}
	return s
}

// Close cancels the running render, waits for it to stop and releases the
// current video.
func (w *Workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
	}
	old := w.detachVideoLocked()
	w.mu.Unlock()

	err := w.Wait(ctx)
	w.releaseVideo(context.WithoutCancel(ctx), old)
	return err
}

// detachVideoLocked removes the current video from the session and returns it.
func (w *Workspace) detachVideoLocked() *VideoResource {
	v := w.video
	w.video = nil
	return v
}

// releaseVideo deletes the stored files of a detached video.
func (w *Workspace) releaseVideo(ctx context.Context, v *VideoResource) {
	if v == nil {
		return
	}
	if err := w.deps.store.CleanupTemp(ctx, []string{v.Path, v.PosterPath}); err != nil {
		w.logger.Warn("failed to release video",
			slog.String("job_id", v.JobID),
			slog.String("error", err.Error()),
		)
	}

	w.mu.Lock()
	j := w.currentJob
	w.mu.Unlock()
	if j == nil || j.ID != v.JobID {
		var err error
		if j, err = w.deps.jobs.FindByID(ctx, v.JobID); err != nil {
			return
		}
	}
	j.ClearOutput()
	w.saveJob(j)
	w.logger.Debug("video released", slog.String("job_id", v.JobID))
}

func (w *Workspace) saveJob(j *job.Job) {
	if err := w.deps.jobs.Save(context.Background(), j); err != nil {
		w.logger.Warn("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}
