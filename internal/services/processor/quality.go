package processor

import "math"

const (
	MinQuality     = 1
	MaxQuality     = 100
	DefaultQuality = 85

	jpegMaxQuality = 100
)

// ClampQuality forces q into [MinQuality, MaxQuality].
func ClampQuality(q int) int {
	return min(MaxQuality, max(MinQuality, q))
}

// nativeJPEGQuality maps the clamped quality linearly onto the JPEG scale.
func nativeJPEGQuality(q int) int {
	ratio := float64(ClampQuality(q)) / MaxQuality
	return max(1, int(math.Round(ratio*jpegMaxQuality)))
}
