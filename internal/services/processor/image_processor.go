package processor

import (
	"context"
	"errors"

	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/pkg/utils"
	"go.uber.org/zap"
)

const MaxFileSize = 10 << 20 // 10MB

// ItemProcessor optimizes a single input.
type ItemProcessor interface {
	Optimize(ctx context.Context, input models.ImageInput, quality int) (*models.OptimizationResult, error)
}

type ImageProcessor struct {
	decoder     *Decoder
	encoder     *Encoder
	maxFileSize int64
	// allowed narrows the decodable types; nil accepts every supported one.
	allowed map[string]struct{}
	logger  *zap.Logger
}

type ProcessorOption func(*ImageProcessor)

// WithAllowedTypes restricts input to the given content types. An empty list
// leaves every decodable type enabled.
func WithAllowedTypes(types []string) ProcessorOption {
	return func(p *ImageProcessor) {
		if len(types) == 0 {
			return
		}
		p.allowed = make(map[string]struct{}, len(types))
		for _, t := range types {
			if t = utils.NormalizeMimeType(t); t != "" {
				p.allowed[t] = struct{}{}
			}
		}
	}
}

func NewImageProcessor(maxFileSize int64, logger *zap.Logger, opts ...ProcessorOption) *ImageProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &ImageProcessor{
		decoder:     NewDecoder(),
		encoder:     NewEncoder(),
		maxFileSize: maxFileSize,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ImageProcessor) accepts(mimeType string) bool {
	if !p.decoder.Supports(mimeType) {
		return false
	}
	if p.allowed == nil {
		return true
	}
	_, ok := p.allowed[utils.NormalizeMimeType(mimeType)]
	return ok
}

// Optimize decodes input and re-encodes it at quality.
func (p *ImageProcessor) Optimize(ctx context.Context, input models.ImageInput, quality int) (*models.OptimizationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.ValidateInput(input); err != nil {
		return nil, err
	}

	raster, err := p.decoder.Decode(input.Data, input.MimeType)
	if err != nil {
		return nil, withName(err, input.Name)
	}

	// Decoding can take a while for large inputs; honour cancellation before
	// spending time on the encode.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encoded, err := p.encoder.Encode(raster, quality, OutputFormatFor(input.MimeType))
	if err != nil {
		return nil, withName(err, input.Name)
	}

	p.logger.Debug("Image optimized",
		zap.String("filename", input.Name),
		zap.Int("width", raster.Width),
		zap.Int("height", raster.Height),
		zap.Int64("original_size", input.Size),
		zap.Int("optimized_size", len(encoded.Data)),
		zap.String("output_type", encoded.MimeType))

	return &models.OptimizationResult{
		OriginalName:   input.Name,
		OriginalSize:   originalSize(input),
		OptimizedBytes: encoded.Data,
		OptimizedSize:  int64(len(encoded.Data)),
		OutputMimeType: encoded.MimeType,
		OriginalBytes:  input.Data,
	}, nil
}

func originalSize(input models.ImageInput) int64 {
	if input.Size > 0 {
		return input.Size
	}
	return int64(len(input.Data))
}

func withName(err error, name string) error {
	var de *DecodeError
	if errors.As(err, &de) && de.Name == "" {
		de.Name = name
	}
	var ee *EncodeError
	if errors.As(err, &ee) && ee.Name == "" {
		ee.Name = name
	}
	return err
}
