package studio

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// MaxUploadBytes is the largest accepted logo upload (4 MiB).
const MaxUploadBytes int64 = 4 * 1024 * 1024

// acceptedUploadTypes are the image types accepted for upload.
var acceptedUploadTypes = []string{"image/png", "image/jpeg"}

// Image is a logo image held in memory.
type Image struct {
	Data     []byte // Raw image bytes
	MIMEType string // e.g. "image/png"
	Base64   string // Standard base64 encoding of Data
}

// NewImage builds an Image from raw bytes.
func NewImage(data []byte, mimeType string) Image {
	return Image{
		Data:     data,
		MIMEType: mimeType,
		Base64:   base64.StdEncoding.EncodeToString(data),
	}
}

// DataURL returns the image as a data: URL.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64
}

// Empty reports whether the image has no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// EncodeUpload reads an uploaded logo and returns it as an Image.
// size is the declared upload size; anything over MaxUploadBytes is
// rejected before the reader is touched. Only PNG and JPEG are accepted.
func EncodeUpload(r io.Reader, size int64) (Image, error) {
	if size > MaxUploadBytes {
		return Image{}, ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	if int64(len(data)) > MaxUploadBytes {
		return Image{}, ErrFileTooLarge
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), acceptedUploadTypes...) {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}

	return NewImage(data, mt.String()), nil
}
