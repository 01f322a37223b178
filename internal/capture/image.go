package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageSize is the largest image accepted from either capture path (10MB).
const MaxImageSize = 10 * 1024 * 1024

// DefaultMIMEType is assumed when a caller does not know the encoding.
const DefaultMIMEType = "image/jpeg"

var (
	ErrNotImage  = errors.New("not an image")
	ErrTooLarge  = errors.New("image too large")
	ErrEmpty     = errors.New("empty image")
	ErrMalformed = errors.New("malformed data url")
)

// Image is an encoded still image produced by the camera or by an upload.
// It is held in memory only and never written to disk.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL encodes the image as a "data:<mime>;base64,<payload>" string.
func (img Image) DataURL() string {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Size returns the encoded size in bytes.
func (img Image) Size() int {
	return len(img.Data)
}

// StripDataURLPrefix returns the base64 payload of s, whether or not it carries
// a "data:...;base64," prefix.
func StripDataURLPrefix(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ParseDataURL decodes a data URL (or a bare base64 payload) into an Image.
// The declared MIME type is only trusted when content sniffing agrees it is an
// image.
func ParseDataURL(s string) (Image, error) {
	s = strings.TrimSpace(s)
	declared := ""
	if strings.HasPrefix(s, "data:") {
		comma := strings.Index(s, ",")
		if comma < 0 {
			return Image{}, ErrMalformed
		}
		meta := s[len("data:"):comma]
		if !strings.HasSuffix(meta, ";base64") {
			return Image{}, fmt.Errorf("%w: payload is not base64", ErrMalformed)
		}
		declared = strings.TrimSuffix(meta, ";base64")
	}

	data, err := base64.StdEncoding.DecodeString(StripDataURLPrefix(s))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return FromBytes(data, declared)
}

// FromBytes validates raw upload bytes. Only image content is accepted,
// regardless of what the uploader declared.
func FromBytes(data []byte, declaredMIME string) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmpty
	}
	if len(data) > MaxImageSize {
		return Image{}, fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrTooLarge, len(data), MaxImageSize)
	}

	detected := mimetype.Detect(data).String()
	if !strings.HasPrefix(detected, "image/") {
		return Image{}, fmt.Errorf("%w: detected %s (declared %q)", ErrNotImage, detected, declaredMIME)
	}
	// Sniffing wins over the declared type, it is what the model will decode.
	if i := strings.Index(detected, ";"); i >= 0 {
		detected = detected[:i]
	}
	return Image{Data: data, MIMEType: detected}, nil
}

// FromFile reads an image file selected by the user.
func FromFile(path string) (Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to stat image: %w", err)
	}
	if info.Size() > MaxImageSize {
		return Image{}, fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrTooLarge, info.Size(), MaxImageSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	return FromBytes(data, "")
}
