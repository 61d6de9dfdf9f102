package models

import "strconv"

// OptimizationResult is the outcome of re-encoding a single input.
type OptimizationResult struct {
	OriginalName   string `json:"original_name"`
	OriginalSize   int64  `json:"original_size"`
	OptimizedBytes []byte `json:"-"`
	OptimizedSize  int64  `json:"optimized_size"`
	OutputMimeType string `json:"output_mime_type"`
	// OriginalBytes is kept so callers can preview both versions.
	OriginalBytes []byte `json:"-"`
}

// ReductionPercent reports how much smaller the output is, with one decimal.
func (r *OptimizationResult) ReductionPercent() string {
	return ReductionPercent(r.OriginalSize, r.OptimizedSize)
}

// ReductionPercent computes (original-optimized)/original as a percentage.
// Growth is reported as a negative value; a zero original reports "0.0".
func ReductionPercent(originalSize, optimizedSize int64) string {
	if originalSize <= 0 {
		return "0.0"
	}
	pct := float64(originalSize-optimizedSize) * 100 / float64(originalSize)
	s := strconv.FormatFloat(pct, 'f', 1, 64)
	if s == "-0.0" {
		return "0.0"
	}
	return s
}

// ImageResponse is the per-item record exposed over the API.
type ImageResponse struct {
	Index            int    `json:"index"`
	OriginalName     string `json:"original_name"`
	OriginalSize     int64  `json:"original_size"`
	OptimizedSize    int64  `json:"optimized_size"`
	OutputMimeType   string `json:"output_mime_type"`
	ReductionPercent string `json:"reduction_percent"`
	DownloadName     string `json:"download_name"`
	URL              string `json:"url,omitempty"`
	OriginalURL      string `json:"original_url,omitempty"`
}
