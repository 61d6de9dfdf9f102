package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/pkg/utils"
)

// Encoded is the serialised output of one raster.
type Encoded struct {
	Data     []byte
	MimeType string
}

type Encoder struct {
	pngCompression png.CompressionLevel
}

func NewEncoder() *Encoder {
	return &Encoder{pngCompression: png.BestCompression}
}

// OutputFormatFor picks the output type for an input type: PNG stays PNG,
// everything else becomes JPEG.
func OutputFormatFor(inputMime string) string {
	if utils.NormalizeMimeType(inputMime) == models.MimePNG {
		return models.MimePNG
	}
	return models.MimeJPEG
}

func isLossless(format string) bool {
	return utils.NormalizeMimeType(format) == models.MimePNG
}

// Encode serialises r. Lossless formats ignore quality; everything else is
// written as JPEG at the clamped quality.
func (e *Encoder) Encode(r *Raster, quality int, preferredFormat string) (*Encoded, error) {
	outType := OutputFormatFor(preferredFormat)
	if r == nil || r.pix == nil || r.Width == 0 || r.Height == 0 {
		return nil, &EncodeError{Format: outType, Err: ErrEmptyRaster}
	}

	buffer := &bytes.Buffer{}
	var err error
	if isLossless(preferredFormat) {
		err = imaging.Encode(buffer, r.pix, imaging.PNG, imaging.PNGCompressionLevel(e.pngCompression))
	} else {
		err = imaging.Encode(buffer, flatten(r.pix), imaging.JPEG, imaging.JPEGQuality(nativeJPEGQuality(quality)))
	}
	if err != nil {
		return nil, &EncodeError{Format: outType, Err: err}
	}
	if buffer.Len() == 0 {
		return nil, &EncodeError{Format: outType, Err: ErrNoOutput}
	}

	return &Encoded{Data: buffer.Bytes(), MimeType: outType}, nil
}

// flatten composites translucent pixels over white, since JPEG has no alpha.
func flatten(img *image.NRGBA) image.Image {
	if img.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
