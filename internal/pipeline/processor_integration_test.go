package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/glowpix/glow/internal/enhance"
)

func TestLocalProcessor_FileInEnhanceFileOut(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "input.png")
	outputDir := filepath.Join(tmp, "out")

	srcBytes := buildTestPNG(t, 64, 48)
	if err := os.WriteFile(inputPath, srcBytes, 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor, err := NewLocalProcessor(outputDir)
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		SessionID:  "session-local-1",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  inputPath,
		Settings:   enhance.DefaultSettings(),
	})
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	if result.SourceBytes != len(srcBytes) {
		t.Fatalf("expected source bytes %d, got %d", len(srcBytes), result.SourceBytes)
	}
	if result.Output.Format != "png" || !result.Output.Success {
		t.Fatalf("unexpected output %+v", result.Output)
	}
	if filepath.Base(result.Output.Path) != ResultFilename {
		t.Fatalf("expected output named %s, got %s", ResultFilename, result.Output.Path)
	}

	out := decodeTestPNG(t, result.Output.Path)
	if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 48 {
		t.Fatalf("unexpected output dimensions %v", out.Bounds())
	}

	// Default sharpness is above neutral, so the convolution ran and the
	// one-pixel border stays transparent while the interior is opaque.
	if _, _, _, a := out.At(0, 0).RGBA(); a != 0 {
		t.Fatalf("expected transparent border pixel, got alpha %d", a)
	}
	if _, _, _, a := out.At(10, 10).RGBA(); a != 0xffff {
		t.Fatalf("expected opaque interior pixel, got alpha %d", a)
	}

	outBytes, err := os.ReadFile(result.Output.Path)
	if err != nil {
		t.Fatalf("read output image: %v", err)
	}
	if bytes.Equal(srcBytes, outBytes) {
		t.Fatal("expected enhanced output to differ from source bytes")
	}
}

func TestLocalProcessor_NeutralSharpnessSkipsConvolution(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "gray.png")

	gray := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(gray.Pix); i += 4 {
		gray.Pix[i+0], gray.Pix[i+1], gray.Pix[i+2], gray.Pix[i+3] = 128, 128, 128, 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		t.Fatalf("encode gray png: %v", err)
	}
	if err := os.WriteFile(inputPath, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write gray png: %v", err)
	}

	processor, err := NewLocalProcessor(filepath.Join(tmp, "out"))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		SessionID:  "session-neutral",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  inputPath,
		Settings:   enhance.Settings{Brightness: 100, Contrast: 100, Sharpness: 100},
	})
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	out := decodeTestPNG(t, result.Output.Path)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			r, g, b, a := out.At(x, y).RGBA()
			if a != 0xffff {
				t.Fatalf("(%d,%d): expected fully opaque output, got alpha %d", x, y, a)
			}
			if r>>8 != 128 || g>>8 != 128 || b>>8 != 128 {
				t.Fatalf("(%d,%d): expected gray 128, got (%d,%d,%d)", x, y, r>>8, g>>8, b>>8)
			}
		}
	}
}

func TestLocalProcessor_RejectsNonImageInput(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "not-an-image.txt")
	if err := os.WriteFile(inputPath, []byte("plain text, no pixels here"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	processor, err := NewLocalProcessor(filepath.Join(tmp, "out"))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		SessionID:  "session-junk",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  inputPath,
		Settings:   enhance.DefaultSettings(),
	})
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}

	// No partial output may exist after a failed decode.
	if _, statErr := os.Stat(filepath.Join(tmp, "out", "session-junk")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output directory, got %v", statErr)
	}
}

func TestLocalProcessor_UnsupportedSourceType(t *testing.T) {
	processor, err := NewLocalProcessor(t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		SessionID:  "session-unsupported",
		SourceType: "s3_presigned",
		ObjectKey:  "uploads/session/source",
		Settings:   enhance.DefaultSettings(),
	})
	if !errors.Is(err, ErrUnsupportedSourceType) {
		t.Fatalf("expected unsupported source_type error, got %v", err)
	}
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func decodeTestPNG(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}
	return img
}
