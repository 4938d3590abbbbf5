package session

import "errors"

// User-facing messages. Only one is held by a session at a time.
const (
	MsgEmptyDescription   = "Please enter a description for your logo."
	MsgGenerateFailed     = "Failed to generate logo. Please try again."
	MsgUploadTooLarge     = "Image file is too large. Please upload an image smaller than 4MB."
	MsgUploadFailed       = "Failed to process uploaded image. Please try again."
	MsgNoLogo             = "Please generate or upload a logo first."
	MsgInvalidAspectRatio = "Please choose a 16:9 or 9:16 aspect ratio."
	MsgInvalidKey         = "API Key is invalid. Please select a valid API key to generate videos."
	MsgAnimateFailed      = "Failed to generate video. Please try again."
	MsgAnimateTimedOut    = "Video generation is taking too long. Please try again."
)

// DefaultAnimationPrompt is used when an animation is requested without a prompt.
const DefaultAnimationPrompt = "An epic, cinematic reveal of this logo, with dramatic lighting."

var (
	// ErrNotFound is returned when a session ID is unknown.
	ErrNotFound = errors.New("session: not found")
	// ErrClosed is returned for operations on a closed session or manager.
	ErrClosed = errors.New("session: closed")
	// ErrStepBusy is returned when a step is submitted while it is already running.
	ErrStepBusy = errors.New("session: step already in progress")
	// ErrKeyNotSelected is returned while the readiness gate is closed.
	ErrKeyNotSelected = errors.New("session: no API key selected")
	// ErrKeyEntryUnsupported is returned when a key is supplied but the
	// credential host cannot store one.
	ErrKeyEntryUnsupported = errors.New("session: credential host does not accept keys")
	// ErrNoLogo is returned when the session holds no logo.
	ErrNoLogo = errors.New("session: no logo")
	// ErrNoVideo is returned when the session holds no video.
	ErrNoVideo = errors.New("session: no video")
	// ErrNoPoster is returned when the current video has no poster frame.
	ErrNoPoster = errors.New("session: no poster frame")
)
