// Package media derives still images from rendered videos.
package media

import "context"

// Processor defines the interface for video frame operations.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// ExtractFirstFrame decodes the first frame of a video file and returns
	// it as PNG bytes.
	ExtractFirstFrame(ctx context.Context, videoPath string) ([]byte, error)
}
