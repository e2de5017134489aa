package utils

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/voxelsplace/model2glb/api"
	"github.com/voxelsplace/model2glb/model"
)

const fnLoadManifest = "LoadManifest"

// Job is one conversion of a batch manifest. Options is nil when the job
// carries none.
type Job struct {
	Input   string
	Output  string
	Options model.RawOptions
	Line    int
}

// Manifest is a batch of conversions:
//
//	jobs:
//	  - input: models/cube.obj
//	    output: out/cube.glb
//	    options: {noticeLevel: 1}
type Manifest struct {
	Jobs []Job
}

type manifestFile struct {
	Jobs []yaml.Node `yaml:"jobs"`
}

var jobKeys = map[string]bool{"input": true, "output": true, "options": true}

// LoadManifest reads and validates the YAML manifest at path. Input paths are
// checked against formats, or the built-in table when formats is nil.
func LoadManifest(path string, formats *model.FormatTable) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}
	m, err := ParseManifest(data, formats)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	return m, nil
}

// ParseManifest decodes and validates a YAML manifest. Values are checked the
// way RunConversion checks its arguments, so a job with `input: 123` is
// rejected with a type error.
func ParseManifest(data []byte, formats *model.FormatTable) (*Manifest, error) {
	var f manifestFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}
	if len(f.Jobs) == 0 {
		return nil, errors.New("manifest has no jobs")
	}

	validator := model.NewPathValidator(formats)
	resolver := &model.Resolver{Func: fnLoadManifest, Defaults: model.DefaultOptions()}
	m := &Manifest{Jobs: make([]Job, 0, len(f.Jobs))}
	for i := range f.Jobs {
		node := &f.Jobs[i]
		job, err := parseJob(node, validator, resolver)
		if err != nil {
			return nil, errors.Wrapf(err, "job %d (line %d)", i+1, node.Line)
		}
		m.Jobs = append(m.Jobs, job)
	}
	return m, nil
}

func parseJob(node *yaml.Node, validator *model.PathValidator, resolver *model.Resolver) (Job, error) {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return Job{}, errors.Wrap(err, "must be a mapping")
	}
	var unknown []string
	for k := range raw {
		if !jobKeys[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Job{}, errors.Errorf("unrecognized key(s): %s", strings.Join(unknown, ", "))
	}

	job := Job{Line: node.Line}
	var err error
	if job.Input, err = validator.PathFromValue(fnLoadManifest, model.Input, raw["input"]); err != nil {
		return Job{}, err
	}
	if job.Output, err = validator.PathFromValue(fnLoadManifest, model.Output, raw["output"]); err != nil {
		return Job{}, err
	}
	if opts, ok := raw["options"]; ok {
		if _, err := resolver.Resolve(opts); err != nil {
			return Job{}, err
		}
		rec, _ := opts.(map[string]any)
		job.Options = model.RawOptions(rec)
	}
	return job, nil
}

// JobResult pairs a job with its outcome. Err holds an argument error of the
// run; failures inside the run are in Result.
type JobResult struct {
	Job    Job
	Result *api.Result
	Err    error
}

// Succeeded reports whether the job converted without errors.
func (r JobResult) Succeeded() bool {
	return r.Err == nil && r.Result != nil && r.Result.DidSucceed
}

// RunManifest runs every job of m with at most parallel conversions at once.
// A failing job does not stop the others. Results keep the manifest order.
func RunManifest(ctx context.Context, m *Manifest, parallel int, conv api.Converter, store api.Storage, opts ...api.RunOption) []JobResult {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]JobResult, len(m.Jobs))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, job := range m.Jobs {
		results[i].Job = job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result, results[i].Err = api.RunConversion(ctx, job.Input, job.Output, job.Options, conv, store, opts...)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
