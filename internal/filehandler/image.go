package filehandler

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// MaxImageDimension bounds the longest edge of a pre-processed image. Larger
// uploads cost tokens without improving multimodal analysis.
const MaxImageDimension = 2048

// jpegQuality for re-encoded images.
const jpegQuality = 85

// PreprocessImage prepares an image for upload: it strips embedded metadata,
// flattens any alpha channel onto an opaque background, downscales the
// longest edge to MaxImageDimension, and re-encodes as JPEG under outDir.
//
// The output path is deterministic from the source base name; an existing
// output is reused without re-encoding. Returns the path to the processed file.
func PreprocessImage(path, outDir string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(outDir, base, base+"_processed.jpg")

	if _, err := os.Stat(outPath); err == nil {
		log.Debug().Str("output", outPath).Msg("Processed image already exists, reusing")
		return outPath, nil
	}

	logStrippedMetadata(path)

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	scaledW, scaledH := boundedDimensions(width, height, MaxImageDimension)

	// Re-drawing normalizes the color model and drops every non-pixel byte
	// (EXIF, ICC, GPS) in one pass.
	flat := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if scaledW == width && scaledH == height {
		draw.Draw(flat, flat.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(flat, flat.Bounds(), src, bounds, draw.Over, nil)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	log.Info().
		Str("input", path).
		Str("output", outPath).
		Str("source_format", format).
		Int("width", scaledW).
		Int("height", scaledH).
		Msg("Image pre-processed for upload")

	return outPath, nil
}

// boundedDimensions scales (w, h) down so the longest edge fits maxDim,
// preserving aspect ratio. Never upscales.
func boundedDimensions(w, h, maxDim int) (int, int) {
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxDim {
		return w, h
	}
	scaledW := w * maxDim / longest
	scaledH := h * maxDim / longest
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}
	return scaledW, scaledH
}

// logStrippedMetadata records what EXIF the re-encode is about to discard.
// Best-effort: PNGs and stripped files simply have nothing to report.
func logStrippedMetadata(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	exifData, err := imagemeta.Decode(f)
	if err != nil {
		log.Debug().Str("path", path).Msg("No readable EXIF metadata in image")
		return
	}

	gps := exifData.GPS
	log.Debug().
		Str("path", path).
		Bool("had_gps", gps.Latitude() != 0 || gps.Longitude() != 0).
		Str("camera_make", strings.TrimSpace(exifData.Make)).
		Str("camera_model", strings.TrimSpace(exifData.Model)).
		Msg("Stripping image metadata before upload")
}
