package utils

import (
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const fallbackStem = "image"

var mimeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
	"image/x-png": "image/png",
}

// NormalizeMimeType lowercases, drops parameters and folds common aliases.
func NormalizeMimeType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if canonical, ok := mimeAliases[ct]; ok {
		return canonical
	}
	return ct
}

// DetectMimeType prefers the declared type and sniffs the payload when the
// declaration is missing or generic.
func DetectMimeType(declared string, data []byte) string {
	ct := NormalizeMimeType(declared)
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return NormalizeMimeType(http.DetectContentType(data))
}

// ExtensionForMime maps an output mime type to the file extension used in
// download and archive names. The subtype is used as-is.
func ExtensionForMime(mimeType string) string {
	ct := NormalizeMimeType(mimeType)
	if _, sub, ok := strings.Cut(ct, "/"); ok && sub != "" {
		return sub
	}
	return "bin"
}

// OptimizedFilename turns "photos/cat.PNG" into "cat-optimized.png" for the
// given output type.
func OptimizedFilename(originalName, mimeType string) string {
	return fmt.Sprintf("%s-optimized.%s", Stem(originalName), ExtensionForMime(mimeType))
}

// Stem strips directories and the final extension from a name.
func Stem(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return fallbackStem
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" {
		return fallbackStem
	}
	return stem
}

// GenerateStorageKey creates a unique object key under prefix.
func GenerateStorageKey(prefix, filename string) string {
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filepath.Base(filename), ext)
	timestamp := time.Now().Unix()
	id := uuid.New().String()[:8]

	return fmt.Sprintf("%s/%s_%d_%s%s", prefix, name, timestamp, id, ext)
}

// FormatBytes returns a human-readable size.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
