package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/maauso/logo-animator-api/internal/job"
	"github.com/maauso/logo-animator-api/internal/session"
	"github.com/maauso/logo-animator-api/internal/studio"
)

// uploadBodyLimit caps multipart request bodies. It leaves room above
// studio.MaxUploadBytes so oversize files reach the size check.
const uploadBodyLimit = 2 * studio.MaxUploadBytes

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	sessions  *session.Manager
	jobs      job.Repository
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sessions *session.Manager, jobs job.Repository, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		sessions:  sessions,
		jobs:      jobs,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sessions: h.sessions.Len()})
}

// CreateSession handles POST /sessions requests.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	ws, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logger.Error("failed to create session", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "failed to create session", "SESSION_CREATION_FAILED")
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(ws.Snapshot()))
}

// GetSession handles GET /sessions/{id} requests.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(ws.Snapshot()))
}

// DeleteSession handles DELETE /sessions/{id} requests.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	err := h.sessions.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
		return
	}
	if err != nil {
		h.logger.Warn("session teardown incomplete",
			slog.String("session_id", r.PathValue("id")),
			slog.String("error", err.Error()),
		)
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectKey handles POST /sessions/{id}/key requests.
func (h *Handlers) SelectKey(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectKeyRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	if err := ws.SelectKey(r.Context(), req.APIKey); err != nil {
		h.writeSessionError(w, ws, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(ws.Snapshot()))
}

// GenerateLogo handles POST /sessions/{id}/logo requests.
func (h *Handlers) GenerateLogo(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.session(w, r)
	if !ok {
		return
	}

	var req GenerateLogoRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	if _, err := ws.GenerateLogo(r.Context(), req.Description); err != nil {
		h.writeSessionError(w, ws, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(ws.Snapshot()))
}

// UploadLogo handles POST /sessions/{id}/logo/upload multipart requests.
// The image is read from the "file" part.
func (h *Handlers) UploadLogo(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, uploadBodyLimit)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, session.MsgUploadTooLarge, "FILE_TOO_LARGE")
			return
		}
		h.logger.Warn("failed to read upload", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required", "VALIDATION_ERROR")
		return
	}
	defer func() { _ = file.Close() }()

	if _, err := ws.UploadLogo(r.Context(), file, header.Size); err != nil {
		h.writeSessionError(w, ws, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(ws.Snapshot()))
}

// GetLogo handles GET /sessions/{id}/logo requests with the raw image bytes.
func (h *Handlers) GetLogo(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.session(w, r)
	if !ok {
		return
	}

	logo, err := ws.Logo()
	if err != nil {
		h.writeSessionError(w, ws, err)
		return
	}

	w.Header().Set("Content-Type", logo.MIMEType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(logo.Data); err != nil {
		h.logger.Warn("failed to write logo", slog.String("error", err.Error()))
	}
}

// StartAnimation handles POST /sessions/{id}/animation requests.
func (h *Handlers) StartAnimation(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.session(w, r)
	if !ok {
		return
	}

	var req AnimateRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	j, err := ws.AnimateLogo(r.Context(), session.AnimateInput{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		PublishToS3: req.PushToS3,
	})
	if err != nil {
		h.writeSessionError(w, ws, err)
		return
	}

	h.logger.Info("render accepted",
		slog.String("session_id", ws.ID()),
		slog.String("job_id", j.ID),
	)
	writeJSON(w, http.StatusAccepted, toJobResponse(j))
}

// CancelAnimation handles DELETE /sessions/{id}/animation requests.
func (h *Handlers) CancelAnimation(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.session(w, r)
	if !ok {
		return
	}

	if !ws.CancelAnimation() {
		writeError(w, http.StatusConflict, "no render in progress", "NOT_RENDERING")
		return
	}
	writeJSON(w, http.StatusAccepted, toSessionResponse(ws.Snapshot()))
}

// GetVideo handles GET /sessions/{id}/video requests. Range requests are
// supported so browsers can seek.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.session(w, r)
	if !ok {
		return
	}

	rc, res, err := ws.OpenVideo(r.Context())
	if err != nil {
		h.writeSessionError(w, ws, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", res.MIMEType)
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "", res.CreatedAt, rs)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream video", slog.String("error", err.Error()))
	}
}

// GetPoster handles GET /sessions/{id}/video/poster requests.
func (h *Handlers) GetPoster(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.session(w, r)
	if !ok {
		return
	}

	rc, err := ws.OpenPoster(r.Context())
	if err != nil {
		h.writeSessionError(w, ws, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "image/png")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream poster", slog.String("error", err.Error()))
	}
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.jobs.FindByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// session resolves the {id} path value, writing a 404 when it is unknown.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Workspace, bool) {
	ws, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
		return nil, false
	}
	return ws, true
}

// decode reads and validates a JSON body. An empty body is accepted when
// optional is set.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !(optional && errors.Is(err, io.EOF)) {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(v); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeSessionError maps a workspace error to a status and code. Failures
// with a user-facing session message report that message.
func (h *Handlers) writeSessionError(w http.ResponseWriter, ws *session.Workspace, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
	case errors.Is(err, session.ErrKeyNotSelected):
		writeError(w, http.StatusForbidden, "select an API key first", "KEY_NOT_SELECTED")
	case errors.Is(err, session.ErrStepBusy):
		writeError(w, http.StatusConflict, err.Error(), "STEP_BUSY")
	case errors.Is(err, studio.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, session.MsgUploadTooLarge, "FILE_TOO_LARGE")
	case errors.Is(err, studio.ErrMissingLogo), errors.Is(err, session.ErrNoLogo):
		writeError(w, http.StatusNotFound, session.MsgNoLogo, "NO_LOGO")
	case errors.Is(err, session.ErrNoVideo), errors.Is(err, session.ErrNoPoster):
		writeError(w, http.StatusNotFound, err.Error(), "NO_VIDEO")
	case errors.Is(err, studio.ErrEmptyDescription):
		writeError(w, http.StatusBadRequest, session.MsgEmptyDescription, "VALIDATION_ERROR")
	case errors.Is(err, studio.ErrInvalidAspectRatio):
		writeError(w, http.StatusBadRequest, session.MsgInvalidAspectRatio, "VALIDATION_ERROR")
	case errors.Is(err, studio.ErrValidation), errors.Is(err, session.ErrKeyEntryUnsupported):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, studio.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, session.MsgInvalidKey, "INVALID_CREDENTIAL")
	default:
		msg := ws.Snapshot().Message
		if msg == "" {
			msg = "request failed"
		}
		h.logger.Error("session operation failed",
			slog.String("session_id", ws.ID()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, msg, "GENERATION_FAILED")
	}
}

func toSessionResponse(s session.Snapshot) SessionResponse {
	resp := SessionResponse{
		ID:              s.ID,
		Ready:           s.Ready,
		Description:     s.Description,
		Prompt:          s.Prompt,
		AspectRatio:     s.AspectRatio,
		GeneratingImage: s.GeneratingImage,
		GeneratingVideo: s.GeneratingVideo,
		Message:         s.Message,
		CreatedAt:       s.CreatedAt,
	}
	if s.Logo != nil {
		resp.Logo = &LogoResponse{
			MIMEType: s.Logo.MIMEType,
			DataURL:  s.Logo.DataURL(),
			URL:      "/sessions/" + s.ID + "/logo",
		}
	}
	if s.Video != nil {
		resp.Video = &VideoResponse{
			URL:       s.Video.URL,
			MIMEType:  s.Video.MIMEType,
			Size:      s.Video.Size,
			PublicURL: s.Video.PublicURL,
			PosterURL: s.Video.PosterURL,
		}
	}
	if s.Job != nil {
		jr := toJobResponse(s.Job)
		resp.Job = &jr
	}
	return resp
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:            j.ID,
		Status:        string(j.Status),
		OperationName: j.OperationName,
		Prompt:        j.Prompt,
		AspectRatio:   j.AspectRatio,
		Polls:         j.Polls,
		Error:         j.Error,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
	if j.IsTerminal() {
		completedAt := j.CompletedAt
		resp.CompletedAt = &completedAt
	}

	// Only published videos are linked; the session video URL carries the session ID.
	if j.Status == job.StatusCompleted {
		resp.VideoURL = j.VideoURL
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
