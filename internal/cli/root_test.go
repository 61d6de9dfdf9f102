package cli

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_WritesArchive(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png")
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	b := writePNG(t, sub, "a.png")
	archivePath := filepath.Join(dir, "out.zip")

	out, err := execute(t, a, b, "--out", archivePath, "--quality", "70", "--quiet")
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2/2 optimized") {
		t.Errorf("report missing summary:\n%s", out)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if len(names) != 2 || names[0] != "a-optimized.png" || names[1] != "a-optimized-1.png" {
		t.Errorf("entries = %v", names)
	}
}

func TestRun_PartialFailureStillWritesArchive(t *testing.T) {
	dir := t.TempDir()
	good := writePNG(t, dir, "good.png")
	bad := filepath.Join(dir, "bad.jpg")
	if err := os.WriteFile(bad, []byte("not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	archivePath := filepath.Join(dir, "out.zip")

	out, err := execute(t, good, bad, "--out", archivePath, "--quiet")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 files failed") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "bad.jpg FAILED (decode)") {
		t.Errorf("report missing failure:\n%s", out)
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Errorf("archive not written: %v", err)
	}
}

func TestRun_RejectsUnknownArchiveMethod(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, writePNG(t, dir, "a.png"), "--archive-method", "rar", "--quiet"); err == nil {
		t.Error("expected error")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "optimizer dev") {
		t.Errorf("out = %q", out)
	}
}
