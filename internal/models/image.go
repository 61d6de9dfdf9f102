package models

// ImageInput is one caller-supplied image. It is never modified by the pipeline.
type ImageInput struct {
	Name     string `json:"name"`
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// NewImageInput fills Size from the payload length.
func NewImageInput(name, mimeType string, data []byte) ImageInput {
	return ImageInput{
		Name:     name,
		Data:     data,
		MimeType: mimeType,
		Size:     int64(len(data)),
	}
}

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
)
