package processor

import (
	"errors"
	"fmt"

	"github.com/phambaophuc/image-optimizer/internal/models"
)

var (
	ErrEmptyInput      = errors.New("empty image data")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrEmptyRaster     = errors.New("raster has zero width or height")
	ErrNoOutput        = errors.New("encoder produced no output")
)

// DecodeError reports bytes that could not be turned into a raster.
type DecodeError struct {
	Name     string
	MimeType string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("decode %q (%s): %v", e.Name, e.MimeType, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.MimeType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) FailureKind() models.FailureKind { return models.FailureDecode }

// EncodeError reports a raster the encoder could not serialise.
type EncodeError struct {
	Name   string
	Format string
	Err    error
}

func (e *EncodeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("encode %q as %s: %v", e.Name, e.Format, e.Err)
	}
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *EncodeError) FailureKind() models.FailureKind { return models.FailureEncode }
