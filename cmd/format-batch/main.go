// format-batch applies a formatting profile to .docx files on disk. It
// exists for local runs and bulk backfills; the deployed path goes
// through the intake API and the Pub/Sub worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/docforge/docforge/internal/engine"
	"github.com/docforge/docforge/internal/profile"
)

func main() {
	profileName := flag.String("profile", profile.DefaultName, "formatting profile name")
	concurrency := flag.Int("concurrency", 4, "files processed in parallel")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [-profile name] [-concurrency n] <file-or-dir>...\n", os.Args[0])
		os.Exit(2)
	}

	files, err := collectInputs(flag.Args())
	if err != nil {
		slog.Error("Failed to collect inputs", "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		slog.Error("No .docx files found in the given paths")
		os.Exit(1)
	}

	eng := engine.New(profile.NewRegistry())

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(*concurrency)
	for _, path := range files {
		g.Go(func() error {
			return formatFile(eng, path, *profileName)
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("Batch run failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Batch run complete.", "files", len(files))
}

// collectInputs expands the arguments into .docx file paths. Directories
// are walked recursively; already formatted outputs are skipped.
func collectInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".docx") {
				return nil
			}
			if strings.HasSuffix(strings.TrimSuffix(path, filepath.Ext(path)), "_formatted") {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func formatFile(eng *engine.Engine, path, profileName string) error {
	logCtx := slog.With("file", path, "profile", profileName)

	input, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	result, err := eng.ApplyFormatOnly(input, profileName)
	if err != nil {
		return fmt.Errorf("formatting %s: %w", path, err)
	}

	outPath := strings.TrimSuffix(path, filepath.Ext(path)) + "_formatted.docx"
	if err := os.WriteFile(outPath, result.Output, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	logCtx.Info("Formatted.", "output", outPath, "bytes", len(result.Output))
	return nil
}
