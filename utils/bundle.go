package utils

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"

	"github.com/voxelsplace/model2glb/model"
)

// CreateBundle zips a model and its side files (materials, textures) into a
// .zip bundle the converter accepts as one input. Files are stored under their
// base names, which must be unique, and at least one must be a model format.
func CreateBundle(ctx context.Context, inputFiles []string, outputFile string) error {
	if len(inputFiles) == 0 {
		return errors.New("no files provided")
	}
	if !strings.EqualFold(filepath.Ext(outputFile), ".zip") {
		return errors.Errorf("bundle %s must have a .zip extension", outputFile)
	}

	formats := model.DefaultFormats()
	names := make(map[string]string, len(inputFiles))
	hasModel := false
	for _, path := range inputFiles {
		base := filepath.Base(path)
		if prev, ok := names[base]; ok {
			return errors.Errorf("%s and %s share the name %s", prev, path, base)
		}
		names[base] = path
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
		if ext != "zip" && formats.Supports(ext) {
			hasModel = true
		}
	}
	if !hasModel {
		return errors.New("no model file among the bundle files")
	}

	onDisk := make(map[string]string, len(inputFiles))
	for base, path := range names {
		onDisk[path] = base
	}
	files, err := archives.FilesFromDisk(ctx, nil, onDisk)
	if err != nil {
		return errors.Wrap(err, "collect bundle files")
	}

	return writeBundle(ctx, files, outputFile)
}

// writeBundle zips files into outputFile, removing it again on failure.
func writeBundle(ctx context.Context, files []archives.FileInfo, outputFile string) error {
	out, err := os.Create(outputFile)
	if err != nil {
		return errors.Wrap(err, "create bundle")
	}
	if err := (archives.Zip{}).Archive(ctx, out, files); err != nil {
		out.Close()
		os.Remove(outputFile)
		return errors.Wrapf(err, "write bundle %s", outputFile)
	}
	return out.Close()
}
