package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/phambaophuc/image-optimizer/internal/models"
)

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = b
	}
	return out
}

func TestBuilder_Methods(t *testing.T) {
	entries := []Entry{
		{Name: "a.png", MimeType: "image/png", Data: bytes.Repeat([]byte("png"), 100)},
		{Name: "photos/b.jpg", MimeType: "image/jpeg", Data: []byte("jpeg-bytes")},
	}

	for _, method := range []string{MethodDeflate, MethodStore, MethodZstd, ""} {
		t.Run("method="+method, func(t *testing.T) {
			b, err := NewBuilder(Options{Method: method})
			if err != nil {
				t.Fatalf("NewBuilder: %v", err)
			}
			data, err := b.Build(context.Background(), entries)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}

			files := readArchive(t, data)
			if len(files) != 2 {
				t.Fatalf("entries = %d, want 2", len(files))
			}
			if !bytes.Equal(files["a-optimized.png"], entries[0].Data) {
				t.Error("a-optimized.png content mismatch")
			}
			if !bytes.Equal(files["b-optimized.jpeg"], entries[1].Data) {
				t.Error("b-optimized.jpeg content mismatch")
			}
		})
	}
}

func TestNewBuilder_RejectsUnknownMethod(t *testing.T) {
	if _, err := NewBuilder(Options{Method: "rar"}); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("err = %v, want ErrUnknownMethod", err)
	}
	if _, err := NewBuilder(Options{Method: MethodDeflate, Level: 42}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestBuilder_SameStemDifferentType(t *testing.T) {
	b, _ := NewBuilder(Options{})
	data, err := b.Build(context.Background(), []Entry{
		{Name: "a.png", MimeType: "image/png", Data: []byte{1}},
		{Name: "a.jpg", MimeType: "image/jpeg", Data: []byte{2}},
	})
	if err != nil {
		t.Fatal(err)
	}

	files := readArchive(t, data)
	if _, ok := files["a-optimized.png"]; !ok {
		t.Error("missing a-optimized.png")
	}
	if _, ok := files["a-optimized.jpeg"]; !ok {
		t.Error("missing a-optimized.jpeg")
	}
}

func TestBuilder_DuplicateNamesAreSuffixed(t *testing.T) {
	entries := []Entry{
		{Name: "a.png", MimeType: "image/png", Data: []byte{1}},
		{Name: "dir/a.png", MimeType: "image/png", Data: []byte{2}},
		{Name: "A.png", MimeType: "image/png", Data: []byte{3}},
	}

	want := []string{"a-optimized.png", "a-optimized-1.png", "A-optimized-2.png"}
	got := Names(entries)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	b, _ := NewBuilder(Options{})
	data, err := b.Build(context.Background(), entries)
	if err != nil {
		t.Fatal(err)
	}
	files := readArchive(t, data)
	for i, name := range want {
		if !bytes.Equal(files[name], entries[i].Data) {
			t.Errorf("%s content mismatch", name)
		}
	}
}

func TestBuilder_NoEntries(t *testing.T) {
	b, _ := NewBuilder(Options{})
	_, err := b.Build(context.Background(), nil)

	var ae *ArchiveError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *ArchiveError", err)
	}
	if !errors.Is(err, ErrNoEntries) {
		t.Errorf("err = %v, want ErrNoEntries", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (failingWriter) Close() error              { return nil }

func TestBuilder_CompressorFailureNamesEntry(t *testing.T) {
	b, err := NewBuilder(Options{Compressor: func(io.Writer) (io.WriteCloser, error) {
		return failingWriter{}, nil
	}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = b.Build(context.Background(), []Entry{{Name: "cat.png", MimeType: "image/png", Data: []byte{1, 2, 3}}})

	var ae *ArchiveError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *ArchiveError", err)
	}
	if ae.Entry != "cat-optimized.png" {
		t.Errorf("Entry = %q", ae.Entry)
	}
}

func TestBuilder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, _ := NewBuilder(Options{})
	_, err := b.Build(ctx, []Entry{{Name: "a.png", MimeType: "image/png", Data: []byte{1}}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestEntriesFromJob_OnlySuccesses(t *testing.T) {
	job := models.NewBatchJob("j", []models.ImageInput{
		models.NewImageInput("one.png", "image/png", []byte{1}),
		models.NewImageInput("two.jpg", "image/jpeg", []byte{2}),
		models.NewImageInput("three.webp", "image/webp", []byte{3}),
	}, 80)
	job.Results[0] = models.ItemResult{Result: &models.OptimizationResult{OriginalName: "one.png", OutputMimeType: "image/png", OptimizedBytes: []byte{9}}}
	job.Results[1] = models.ItemResult{Err: errors.New("corrupt")}
	job.Results[2] = models.ItemResult{Result: &models.OptimizationResult{OriginalName: "three.webp", OutputMimeType: "image/jpeg", OptimizedBytes: []byte{8}}}

	entries := EntriesFromJob(job)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	names := Names(entries)
	if names[0] != "one-optimized.png" || names[1] != "three-optimized.jpeg" {
		t.Errorf("names = %v", names)
	}

	b, _ := NewBuilder(Options{})
	if _, err := b.Build(context.Background(), entries); err != nil {
		t.Errorf("archive over successes failed: %v", err)
	}
}
