package processor

import (
	"fmt"

	"github.com/phambaophuc/image-optimizer/internal/models"
)

// ValidateInput rejects inputs that must not reach the decoder.
func (p *ImageProcessor) ValidateInput(input models.ImageInput) error {
	if len(input.Data) == 0 {
		return &DecodeError{Name: input.Name, MimeType: input.MimeType, Err: ErrEmptyInput}
	}

	if p.maxFileSize > 0 && int64(len(input.Data)) > p.maxFileSize {
		return &DecodeError{
			Name:     input.Name,
			MimeType: input.MimeType,
			Err:      fmt.Errorf("%w: %d > %d", ErrFileTooLarge, len(input.Data), p.maxFileSize),
		}
	}

	if !p.accepts(input.MimeType) {
		return &DecodeError{Name: input.Name, MimeType: input.MimeType, Err: ErrUnsupportedType}
	}

	return nil
}
