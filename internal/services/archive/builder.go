package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/phambaophuc/image-optimizer/internal/models"
)

const (
	MethodDeflate = "deflate"
	MethodStore   = "store"
	MethodZstd    = "zstd"

	// DefaultFilename is the download name of a batch archive.
	DefaultFilename = "optimized-images.zip"
	MimeType        = "application/zip"
)

// Compressor wraps an entry writer, same shape as zip.Compressor.
type Compressor func(w io.Writer) (io.WriteCloser, error)

type Options struct {
	Method string
	// Level applies to deflate; 0 means flate.DefaultCompression.
	Level int
	// Compressor replaces the method's stock compressor when set.
	Compressor Compressor
}

// Entry is one file to place in the archive.
type Entry struct {
	Name     string
	MimeType string
	Data     []byte
	ModTime  time.Time
}

// EntriesFromJob returns one entry per successful result, in input order.
func EntriesFromJob(job *models.BatchJob) []Entry {
	successes := job.Successes()
	entries := make([]Entry, 0, len(successes))
	for _, r := range successes {
		entries = append(entries, Entry{
			Name:     r.OriginalName,
			MimeType: r.OutputMimeType,
			Data:     r.OptimizedBytes,
			ModTime:  job.CompletedAt,
		})
	}
	return entries
}

// Builder packs optimized images into a zip container.
type Builder struct {
	method     uint16
	compressor Compressor
}

func NewBuilder(opts Options) (*Builder, error) {
	b := &Builder{}

	switch strings.ToLower(opts.Method) {
	case "", MethodDeflate:
		level := opts.Level
		if level == 0 {
			level = flate.DefaultCompression
		}
		if level < flate.HuffmanOnly || level > flate.BestCompression {
			return nil, fmt.Errorf("invalid deflate level %d", opts.Level)
		}
		b.method = zip.Deflate
		b.compressor = func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, level)
		}
	case MethodStore:
		b.method = zip.Store
	case MethodZstd:
		b.method = zstd.ZipMethodWinZip
		b.compressor = Compressor(zstd.ZipCompressor())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, opts.Method)
	}

	if opts.Compressor != nil {
		if b.method == zip.Store {
			b.method = zip.Deflate
		}
		b.compressor = opts.Compressor
	}

	return b, nil
}

// Build writes entries into a fresh archive. Names are derived from each
// entry's original name and mime type; duplicates get numeric suffixes.
func (b *Builder) Build(ctx context.Context, entries []Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, &ArchiveError{Err: ErrNoEntries}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if b.compressor != nil {
		zw.RegisterCompressor(b.method, zip.Compressor(b.compressor))
	}

	names := NewNameResolver()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, &ArchiveError{Err: err}
		}

		name := names.Resolve(e.Name, e.MimeType)
		if err := b.writeEntry(zw, name, e); err != nil {
			return nil, &ArchiveError{Entry: name, Err: err}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, &ArchiveError{Err: fmt.Errorf("failed to finalize archive: %w", err)}
	}

	return buf.Bytes(), nil
}

func (b *Builder) writeEntry(zw *zip.Writer, name string, e Entry) error {
	modified := e.ModTime
	if modified.IsZero() {
		modified = time.Now()
	}

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   b.method,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}

	if _, err := w.Write(e.Data); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

// Names previews the entry names Build would use.
func Names(entries []Entry) []string {
	r := NewNameResolver()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = r.Resolve(e.Name, e.MimeType)
	}
	return out
}
