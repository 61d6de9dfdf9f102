package processor

import (
	"errors"
	"image"
	"testing"
)

func TestDecoder_Decode(t *testing.T) {
	d := NewDecoder()

	tests := []struct {
		name     string
		data     []byte
		mimeType string
	}{
		{"png", pngBytes(t, 32, 24), "image/png"},
		{"jpeg", jpegBytes(t, 32, 24), "image/jpeg"},
		{"jpg alias", jpegBytes(t, 32, 24), "image/jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := d.Decode(tt.data, tt.mimeType)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if r.Width != 32 || r.Height != 24 {
				t.Errorf("raster = %dx%d, want 32x24", r.Width, r.Height)
			}
		})
	}
}

func TestDecoder_DecodeErrors(t *testing.T) {
	d := NewDecoder()
	png := pngBytes(t, 8, 8)

	tests := []struct {
		name     string
		data     []byte
		mimeType string
		wantIs   error
	}{
		{"empty", nil, "image/png", ErrEmptyInput},
		{"unsupported", png, "image/gif", ErrUnsupportedType},
		{"corrupt", []byte("definitely not an image"), "image/jpeg", nil},
		{"truncated", png[:len(png)/2], "image/png", nil},
		{"type mismatch", png, "image/jpeg", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(tt.data, tt.mimeType)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("err = %v, want *DecodeError", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want %v", err, tt.wantIs)
			}
		})
	}
}

func TestNewRaster_CopiesPixels(t *testing.T) {
	src := makeTestImage(4, 4, true)
	r := NewRaster(src)
	src.Pix[0] = ^src.Pix[0]

	got := r.Image().(*image.NRGBA).Pix[0]
	if got == src.Pix[0] {
		t.Error("raster shares pixel memory with its source")
	}
}
