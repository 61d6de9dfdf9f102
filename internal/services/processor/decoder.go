package processor

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/pkg/utils"
	"golang.org/x/image/webp"
)

// Raster is a decoded pixel grid owned by a single encode call.
type Raster struct {
	Width  int
	Height int
	pix    *image.NRGBA
}

// NewRaster copies img into a raster the caller owns exclusively.
func NewRaster(img image.Image) *Raster {
	pix := imaging.Clone(img)
	b := pix.Bounds()
	return &Raster{Width: b.Dx(), Height: b.Dy(), pix: pix}
}

// Image exposes the pixels read-only.
func (r *Raster) Image() image.Image {
	return r.pix
}

type decodeFunc func(io.Reader) (image.Image, error)

var decoders = map[string]decodeFunc{
	models.MimeJPEG: jpeg.Decode,
	models.MimePNG:  png.Decode,
	models.MimeWebP: webp.Decode,
}

type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Supports reports whether mimeType has a registered decoder.
func (d *Decoder) Supports(mimeType string) bool {
	_, ok := decoders[utils.NormalizeMimeType(mimeType)]
	return ok
}

// Decode parses data with the decoder of the declared type.
func (d *Decoder) Decode(data []byte, mimeType string) (*Raster, error) {
	if len(data) == 0 {
		return nil, &DecodeError{MimeType: mimeType, Err: ErrEmptyInput}
	}

	decode, ok := decoders[utils.NormalizeMimeType(mimeType)]
	if !ok {
		return nil, &DecodeError{MimeType: mimeType, Err: ErrUnsupportedType}
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{MimeType: mimeType, Err: err}
	}

	return NewRaster(img), nil
}
