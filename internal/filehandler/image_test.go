package filehandler

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	// Half-transparent fill so flattening has alpha to discard.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 128})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestPreprocessImageReencodesAsJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeTestPNG(t, src, 10, 8)

	out, err := PreprocessImage(src, dir)
	if err != nil {
		t.Fatalf("PreprocessImage() error = %v", err)
	}
	want := filepath.Join(dir, "photo", "photo_processed.jpg")
	if out != want {
		t.Errorf("output path = %q, want %q", out, want)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	decoded, format, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	b := decoded.Bounds()
	if b.Dx() != 10 || b.Dy() != 8 {
		t.Errorf("dimensions = %dx%d, want 10x8", b.Dx(), b.Dy())
	}
}

func TestPreprocessImageReusesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeTestPNG(t, src, 4, 4)

	out, err := PreprocessImage(src, dir)
	if err != nil {
		t.Fatalf("PreprocessImage() error = %v", err)
	}

	// Overwrite the output; a second run must not touch it.
	if err := os.WriteFile(out, []byte("sentinel"), 0o644); err != nil {
		t.Fatal(err)
	}
	again, err := PreprocessImage(src, dir)
	if err != nil {
		t.Fatalf("PreprocessImage() second run error = %v", err)
	}
	if again != out {
		t.Errorf("second run path = %q, want %q", again, out)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "sentinel" {
		t.Error("existing output was re-encoded instead of reused")
	}
}

func TestPreprocessImageRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.png")
	if err := os.WriteFile(src, []byte("not pixel data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := PreprocessImage(src, dir); err == nil {
		t.Fatal("expected a decode error for non-image content")
	}
}

func TestBoundedDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
	}{
		{"fits untouched", 800, 600, 2048, 800, 600},
		{"exact fit", 2048, 1024, 2048, 2048, 1024},
		{"landscape downscale", 4096, 3072, 2048, 2048, 1536},
		{"portrait downscale", 3072, 4096, 2048, 1536, 2048},
		{"extreme aspect keeps one pixel", 100000, 10, 2048, 2048, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotW, gotH := boundedDimensions(tt.w, tt.h, tt.maxDim)
			if gotW != tt.wantW || gotH != tt.wantH {
				t.Errorf("boundedDimensions(%d, %d, %d) = (%d, %d), want (%d, %d)",
					tt.w, tt.h, tt.maxDim, gotW, gotH, tt.wantW, tt.wantH)
			}
		})
	}
}
