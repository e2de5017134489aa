package api_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelsplace/model2glb/api"
	"github.com/voxelsplace/model2glb/glb/glbtest"
	"github.com/voxelsplace/model2glb/model"
	"github.com/voxelsplace/model2glb/notice"
	"github.com/voxelsplace/model2glb/storage"
)

// recordingStore wraps a store and fails on demand.
type recordingStore struct {
	api.Storage
	fetchErr error
	storeErr error
	stores   []string
}

func (s *recordingStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.Storage.Fetch(ctx, path)
}

func (s *recordingStore) Store(ctx context.Context, path string, data []byte) error {
	s.stores = append(s.stores, path)
	if s.storeErr != nil {
		return s.storeErr
	}
	return s.Storage.Store(ctx, path, data)
}

func cubeFixture(t *testing.T) (*storage.Billy, *glbtest.Converter) {
	t.Helper()
	store := storage.NewMemory()
	require.NoError(t, store.Store(context.Background(), "models/cube.obj", []byte(glbtest.CubeOBJ)))
	conv, err := glbtest.NewCubeConverter()
	require.NoError(t, err)
	return store, conv
}

func codes(ns []notice.Notice) []int {
	out := make([]int, len(ns))
	for i, n := range ns {
		out[i] = n.Code
	}
	return out
}

func TestRunConversionCube(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	res, err := api.RunConversion(context.Background(), "models/cube.obj", "out/cube.glb",
		model.RawOptions{"noticeLevel": 2}, conv, store)
	require.NoError(t, err)

	assert.True(t, res.DidSucceed)
	assert.Equal(t, api.Idle, res.FailedStage)
	assert.Equal(t, []int{20001, 20002, 20003, 20004}, codes(res.Notices))

	last := res.Notices[len(res.Notices)-1]
	assert.Equal(t, notice.OutputWritten.Code(), last.Code)
	assert.Regexp(t, `^2_0004: output written \(\d+ bytes\)$`, last.String())

	written, err := store.Fetch(context.Background(), "out/cube.glb")
	require.NoError(t, err)
	assert.Equal(t, res.OutputBytes, len(written))
	assert.Equal(t, "glTF", string(written[:4]))

	calls := conv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "models/cube.obj", calls[0].Filename)
	assert.Equal(t, []byte(glbtest.CubeOBJ), calls[0].Data)
}

func TestRunConversionDefaultsWhenOptionsNil(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	res, err := api.RunConversion(context.Background(), "models/cube.obj", "cube.glb", nil, conv, store)
	require.NoError(t, err)
	assert.True(t, res.DidSucceed)
	for _, n := range res.Notices {
		assert.GreaterOrEqual(t, n.Tier(), notice.Tier(model.DefaultNoticeLevel))
	}
	assert.Equal(t, notice.OutputWritten.Code(), res.Notices[len(res.Notices)-1].Code)
}

func TestRunConversionReadFailureSkipsWrite(t *testing.T) {
	t.Parallel()

	_, conv := cubeFixture(t)
	store := &recordingStore{Storage: storage.NewMemory(), fetchErr: errors.New("no such file")}
	res, err := api.RunConversion(context.Background(), "missing.obj", "out.glb", nil, conv, store)
	require.NoError(t, err)

	assert.False(t, res.DidSucceed)
	assert.Equal(t, api.Reading, res.FailedStage)
	assert.Empty(t, store.stores)
	assert.Empty(t, conv.Calls())

	last := res.Notices[len(res.Notices)-1]
	assert.Equal(t, notice.ReadFailed.Code(), last.Code)
	assert.Equal(t, "missing.obj: no such file", last.Detail)
}

func TestRunConversionConvertFailure(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	conv.Err = errors.New("unsupported primitive")
	rec := &recordingStore{Storage: store}
	res, err := api.RunConversion(context.Background(), "models/cube.obj", "cube.glb", nil, conv, rec)
	require.NoError(t, err)

	assert.False(t, res.DidSucceed)
	assert.Equal(t, api.Converting, res.FailedStage)
	assert.Empty(t, rec.stores)
	assert.Equal(t, notice.ConvertFailed.Code(), res.Notices[len(res.Notices)-1].Code)
}

func TestRunConversionEmptyOutputFails(t *testing.T) {
	t.Parallel()

	store, _ := cubeFixture(t)
	conv := &glbtest.Converter{}
	res, err := api.RunConversion(context.Background(), "models/cube.obj", "cube.glb", nil, conv, store)
	require.NoError(t, err)
	assert.False(t, res.DidSucceed)
	assert.Contains(t, res.Notices[len(res.Notices)-1].Detail, "no output")
}

func TestRunConversionWriteFailure(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	rec := &recordingStore{Storage: store, storeErr: errors.New("disk full")}
	res, err := api.RunConversion(context.Background(), "models/cube.obj", "cube.glb", nil, conv, rec)
	require.NoError(t, err)

	assert.False(t, res.DidSucceed)
	assert.Equal(t, api.Writing, res.FailedStage)
	assert.Zero(t, res.OutputBytes)
	last := res.Notices[len(res.Notices)-1]
	assert.Equal(t, notice.WriteFailed.Code(), last.Code)
	assert.Equal(t, "cube.glb: disk full", last.Detail)
}

func TestRunConversionWarnsOnNonGLBOutput(t *testing.T) {
	t.Parallel()

	store, _ := cubeFixture(t)
	conv := &glbtest.Converter{Output: []byte("not a glb at all")}
	res, err := api.RunConversion(context.Background(), "models/cube.obj", "cube.glb", nil, conv, store)
	require.NoError(t, err)

	assert.True(t, res.DidSucceed)
	assert.Contains(t, codes(res.Notices), notice.OutputNotGLB2.Code())
}

func TestRunConversionEmptyInputWarns(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	require.NoError(t, store.Store(context.Background(), "empty.obj", nil))
	res, err := api.RunConversion(context.Background(), "empty.obj", "cube.glb", nil, conv, store)
	require.NoError(t, err)
	assert.Contains(t, codes(res.Notices), notice.InputEmpty.Code())
}

func TestRunConversionArgumentErrors(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	tests := []struct {
		name    string
		in, out string
		opts    model.RawOptions
		conv    api.Converter
		arg     string
		rule    model.Rule
	}{
		{"stl output", "models/cube.obj", "cube.stl", nil, conv, "outputPath", model.RuleUnsupportedExtension},
		{"stl output with bad input", "", "cube.stl", nil, conv, "outputPath", model.RuleUnsupportedExtension},
		{"unknown input format", "cube.xyz", "cube.glb", nil, conv, "inputPath", model.RuleUnsupportedExtension},
		{"empty input", "", "cube.glb", nil, conv, "inputPath", model.RuleEmpty},
		{"level too high", "cube.obj", "cube.glb", model.RawOptions{"noticeLevel": 5}, conv, "options.noticeLevel", model.RuleInvalidValue},
		{"unknown option", "cube.obj", "cube.glb", model.RawOptions{"verbose": true}, conv, "options", model.RuleUnknownKey},
		{"no converter", "cube.obj", "cube.glb", nil, nil, "converter", model.RuleMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingStore{Storage: store}
			_, err := api.RunConversion(context.Background(), tt.in, tt.out, tt.opts, tt.conv, rec)
			var argErr *model.ArgumentError
			require.True(t, errors.As(err, &argErr), "got %v", err)
			assert.Equal(t, "RunConversion", argErr.Func)
			assert.Equal(t, tt.arg, argErr.Arg)
			assert.Equal(t, tt.rule, argErr.Rule)
			assert.Empty(t, rec.stores)
		})
	}
}

func TestRunConversionIdempotent(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	ctx := context.Background()
	opts := model.RawOptions{"noticeLevel": 1}
	first, err := api.RunConversion(ctx, "models/cube.obj", "cube.glb", opts, conv, store)
	require.NoError(t, err)
	firstOut, err := store.Fetch(ctx, "cube.glb")
	require.NoError(t, err)

	second, err := api.RunConversion(ctx, "models/cube.obj", "cube.glb", opts, conv, store)
	require.NoError(t, err)
	secondOut, err := store.Fetch(ctx, "cube.glb")
	require.NoError(t, err)

	assert.Equal(t, first.Notices, second.Notices)
	assert.Equal(t, firstOut, secondOut)
}

func TestRunConversionLevelsAreMonotonic(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	var prev []notice.Notice
	for level := model.MinNoticeLevel; level <= model.MaxNoticeLevel; level++ {
		res, err := api.RunConversion(context.Background(), "models/cube.obj", "cube.glb",
			model.RawOptions{"noticeLevel": level}, conv, store)
		require.NoError(t, err)
		for _, n := range res.Notices {
			assert.GreaterOrEqual(t, int(n.Tier()), level)
		}
		if prev != nil {
			// every notice of a stricter level also appears at the looser one
			assert.Subset(t, prev, res.Notices)
		}
		prev = res.Notices
	}
	assert.Empty(t, prev)
}

func TestRunConversionLoggingAndObserver(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	var observed *api.Result
	var took time.Duration
	res, err := api.RunConversion(context.Background(), "models/cube.obj", "cube.glb", nil, conv, store,
		api.WithLogger(logrus.NewEntry(logger)),
		api.WithObserver(func(r *api.Result, d time.Duration) { observed, took = r, d }),
	)
	require.NoError(t, err)
	assert.Same(t, res, observed)
	assert.GreaterOrEqual(t, took, time.Duration(0))

	runID := ""
	for _, e := range hook.AllEntries() {
		id, ok := e.Data["run_id"].(string)
		require.True(t, ok)
		if runID == "" {
			runID = id
		}
		assert.Equal(t, runID, id)
	}
	assert.NotEmpty(t, runID)
}

// Not parallel: it hooks the standard logger and swaps the package logger.
func TestRunConversionDefaultLogger(t *testing.T) {
	std := test.NewLocal(logrus.StandardLogger())
	t.Cleanup(func() { logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks)) })

	store, conv := cubeFixture(t)
	_, err := api.RunConversion(context.Background(), "models/cube.obj", "cube.glb", nil, conv, store)
	require.NoError(t, err)
	assert.Empty(t, std.AllEntries())

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	api.SetLogger(logger)
	t.Cleanup(func() {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		api.SetLogger(quiet)
	})

	_, err = api.RunConversion(context.Background(), "models/cube.obj", "cube2.glb", nil, conv, store)
	require.NoError(t, err)
	assert.NotEmpty(t, hook.AllEntries())
	assert.Empty(t, std.AllEntries())
}

func TestRunConversionCustomFormats(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	require.NoError(t, store.Store(context.Background(), "scan.xyz", []byte("0 0 0")))
	formats := model.DefaultFormats()
	formats.Register("xyz", "XYZ point cloud")

	res, err := api.RunConversion(context.Background(), "scan.xyz", "scan.glb", nil, conv, store,
		api.WithFormats(formats))
	require.NoError(t, err)
	assert.True(t, res.DidSucceed)
}

func TestConvertBytes(t *testing.T) {
	t.Parallel()

	_, err := api.ConvertBytes(context.Background(), nil, "a.obj", nil)
	assert.Error(t, err)

	out, err := api.ConvertBytes(context.Background(), api.ConverterFunc(
		func(_ context.Context, filename string, data []byte) ([]byte, error) {
			return append([]byte(filename+":"), data...), nil
		}), "a.obj", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "a.obj:x", string(out))

	_, err = api.ConvertBytes(context.Background(), api.ConverterFunc(
		func(context.Context, string, []byte) ([]byte, error) { return nil, errors.New("boom") }), "b.obj", nil)
	assert.EqualError(t, err, "convert b.obj: boom")
}

func TestRunConversionWithResolver(t *testing.T) {
	t.Parallel()

	store, conv := cubeFixture(t)
	resolver, err := model.NewResolver(model.Options{NoticeLevel: 4})
	require.NoError(t, err)

	res, err := api.RunConversion(context.Background(), "models/cube.obj", "cube.glb", nil, conv, store,
		api.WithResolver(resolver))
	require.NoError(t, err)
	assert.True(t, res.DidSucceed)
	assert.Empty(t, res.Notices)

	res, err = api.RunConversion(context.Background(), "models/cube.obj", "cube.glb",
		model.RawOptions{"noticeLevel": 1}, conv, store, api.WithResolver(resolver))
	require.NoError(t, err)
	assert.Equal(t, notice.OptionsResolved.Code(), res.Notices[0].Code)
}
