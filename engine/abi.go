package engine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero/api"
)

// Exports the engine module must provide. The shim linked with assimp keeps
// a file list and the results of the last conversion in module memory.
const (
	fnMalloc      = "malloc"
	fnFree        = "free"
	fnAddFile     = "m2g_add_file"     // (namePtr, nameLen, dataPtr, dataLen) -> status
	fnConvert     = "m2g_convert"      // (formatPtr, formatLen) -> status
	fnResultCount = "m2g_result_count" // () -> n
	fnResultData  = "m2g_result_data"  // (i) -> ptr
	fnResultSize  = "m2g_result_size"  // (i) -> len
	fnErrorData   = "m2g_error_data"   // () -> ptr
	fnErrorSize   = "m2g_error_size"   // () -> len
)

var requiredExports = []string{
	fnMalloc, fnFree, fnAddFile, fnConvert,
	fnResultCount, fnResultData, fnResultSize,
	fnErrorData, fnErrorSize,
}

// instance is one instantiated engine module. It is used for a single
// conversion and then closed.
type instance struct {
	mod api.Module
}

func (in *instance) call(ctx context.Context, name string, params ...uint64) (uint32, error) {
	fn := in.mod.ExportedFunction(name)
	if fn == nil {
		return 0, errors.Errorf("engine: module does not export %q", name)
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return 0, errors.Wrapf(err, "engine: call %s", name)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return uint32(res[0]), nil
}

// put copies b into freshly allocated module memory.
func (in *instance) put(ctx context.Context, b []byte) (uint32, error) {
	size := len(b)
	if size == 0 {
		size = 1
	}
	ptr, err := in.call(ctx, fnMalloc, uint64(size))
	if err != nil {
		return 0, err
	}
	if ptr == 0 {
		return 0, errors.Errorf("engine: malloc(%d) failed", size)
	}
	if !in.mod.Memory().Write(ptr, b) {
		return 0, errors.Errorf("engine: write %d bytes at %#x out of range", len(b), ptr)
	}
	return ptr, nil
}

// get copies n bytes at ptr out of module memory.
func (in *instance) get(ptr, n uint32) ([]byte, error) {
	view, ok := in.mod.Memory().Read(ptr, n)
	if !ok {
		return nil, errors.Errorf("engine: read %d bytes at %#x out of range", n, ptr)
	}
	return append([]byte(nil), view...), nil
}

func (in *instance) free(ctx context.Context, ptr uint32) {
	_, _ = in.call(ctx, fnFree, uint64(ptr))
}

func (in *instance) addFile(ctx context.Context, f File) (uint32, error) {
	namePtr, err := in.put(ctx, []byte(f.Name))
	if err != nil {
		return 0, err
	}
	defer in.free(ctx, namePtr)
	dataPtr, err := in.put(ctx, f.Data)
	if err != nil {
		return 0, err
	}
	defer in.free(ctx, dataPtr)
	return in.call(ctx, fnAddFile, uint64(namePtr), uint64(len(f.Name)), uint64(dataPtr), uint64(len(f.Data)))
}

func (in *instance) convert(ctx context.Context, format string) (uint32, error) {
	fmtPtr, err := in.put(ctx, []byte(format))
	if err != nil {
		return 0, err
	}
	defer in.free(ctx, fmtPtr)
	return in.call(ctx, fnConvert, uint64(fmtPtr), uint64(len(format)))
}

func (in *instance) results(ctx context.Context) ([][]byte, error) {
	n, err := in.call(ctx, fnResultCount)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		ptr, err := in.call(ctx, fnResultData, uint64(i))
		if err != nil {
			return nil, err
		}
		size, err := in.call(ctx, fnResultSize, uint64(i))
		if err != nil {
			return nil, err
		}
		b, err := in.get(ptr, size)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// errorMessage returns the engine's last error text, or "" if it has none.
func (in *instance) errorMessage(ctx context.Context) string {
	ptr, err := in.call(ctx, fnErrorData)
	if err != nil || ptr == 0 {
		return ""
	}
	size, err := in.call(ctx, fnErrorSize)
	if err != nil || size == 0 {
		return ""
	}
	b, err := in.get(ptr, size)
	if err != nil {
		return ""
	}
	return string(b)
}
