// Command glow runs a single enhancement against a local file, without the
// queue or the API in the path. Useful for tuning settings and for smoke
// testing the pipeline.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glowpix/glow/internal/domain"
	"github.com/glowpix/glow/internal/enhance"
	"github.com/glowpix/glow/internal/id"
	"github.com/glowpix/glow/internal/pipeline"
)

func main() {
	logger := log.New(os.Stdout, "[glow] ", log.LstdFlags|log.Lmsgprefix)

	var (
		input      = flag.String("in", "", "path to the source image (png, jpeg or webp)")
		outputDir  = flag.String("out", "./.glow-output", "directory for the enhanced output")
		brightness = flag.Int("brightness", enhance.DefaultBrightness, "brightness percentage")
		contrast   = flag.Int("contrast", enhance.DefaultContrast, "contrast percentage")
		sharpness  = flag.Int("sharpness", enhance.DefaultSharpness, "sharpness percentage")
		timeout    = flag.Duration("timeout", time.Minute, "overall processing timeout")
	)
	flag.Parse()

	if *input == "" {
		logger.Fatal("flag -in is required")
	}

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("pipeline startup failed: %v", err)
	}
	defer pipeline.Shutdown()

	processor, err := pipeline.NewLocalProcessor(*outputDir)
	if err != nil {
		logger.Fatalf("processor setup failed: %v", err)
	}

	settings := enhance.Settings{
		Brightness: *brightness,
		Contrast:   *contrast,
		Sharpness:  *sharpness,
	}.Clamped()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	result, err := processor.Process(ctx, pipeline.Request{
		SessionID:  id.New(),
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  *input,
		Settings:   settings,
	})
	if err != nil {
		logger.Fatalf("enhancement failed: %v", err)
	}

	absPath, err := filepath.Abs(result.Output.Path)
	if err != nil {
		absPath = result.Output.Path
	}

	logger.Printf(
		"enhanced %s -> %s (%dx%d, %d bytes, settings b=%d c=%d s=%d, took %s)",
		*input,
		absPath,
		result.Output.Width,
		result.Output.Height,
		result.Output.Bytes,
		settings.Brightness,
		settings.Contrast,
		settings.Sharpness,
		time.Since(start).Round(time.Millisecond),
	)
}
