// Package utils holds file level helpers around the conversion pipeline:
// single conversions, batch manifests and zip bundles.
package utils

import (
	"context"

	"github.com/pkg/errors"

	"github.com/voxelsplace/model2glb/api"
	"github.com/voxelsplace/model2glb/notice"
)

// RunModel2GLB converts the model file at inPath into a .glb at outPath on
// the local filesystem with default options. A failed run is returned as an
// error carrying its error notice.
func RunModel2GLB(ctx context.Context, conv api.Converter, inPath, outPath string) error {
	res, err := api.RunConversion(ctx, inPath, outPath, nil, conv, nil)
	if err != nil {
		return err
	}
	return ResultError(res)
}

// ResultError returns nil for a successful run, else an error built from the
// run's error notices.
func ResultError(res *api.Result) error {
	if res.DidSucceed {
		return nil
	}
	for _, n := range res.Notices {
		if n.Tier() == notice.Error {
			return errors.New(n.String())
		}
	}
	return errors.Errorf("conversion failed in stage %s", res.FailedStage)
}
