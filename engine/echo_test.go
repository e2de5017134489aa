package engine

const (
	i32     = 0x7f
	funcRef = 0x00
	memRef  = 0x02

	// errorOffset is where engineModule places its error text.
	errorOffset = 16
)

// wasmFunc is one exported function of a test engine module.
type wasmFunc struct {
	name string
	typ  byte
	code []byte
}

// echoFuncs implement the m2g ABI by handing back the last file added.
// add_file rejects empty files with status 1.
func echoFuncs() []wasmFunc {
	return []wasmFunc{
		// heap bump allocator; free is a no-op
		{fnMalloc, 0, []byte{0x23, 0, 0x23, 0, 0x20, 0, 0x6a, 0x24, 0}},
		{fnFree, 1, nil},
		// globals 1 and 2 keep the data pointer and length
		{fnAddFile, 2, []byte{0x20, 2, 0x24, 1, 0x20, 3, 0x24, 2, 0x20, 3, 0x45}},
		{fnConvert, 3, []byte{0x41, 1, 0x24, 3, 0x41, 0}},
		{fnResultCount, 4, []byte{0x23, 3}},
		{fnResultData, 0, []byte{0x23, 1}},
		{fnResultSize, 0, []byte{0x23, 2}},
		{fnErrorData, 4, []byte{0x41, 0}},
		{fnErrorSize, 4, []byte{0x41, 0}},
	}
}

// withCode returns a copy of funcs with the body of name replaced.
func withCode(funcs []wasmFunc, name string, code []byte) []wasmFunc {
	out := append([]wasmFunc(nil), funcs...)
	for i := range out {
		if out[i].name == name {
			out[i].code = code
		}
	}
	return out
}

func echoModule() []byte {
	return engineModule(echoFuncs(), false, "")
}

// failingModule fails every conversion with status 7 and errText.
func failingModule(errText string) []byte {
	funcs := withCode(echoFuncs(), fnConvert, []byte{0x41, 7})
	funcs = withCode(funcs, fnErrorData, []byte{0x41, errorOffset})
	funcs = withCode(funcs, fnErrorSize, []byte{0x41, byte(len(errText))})
	return engineModule(funcs, false, errText)
}

// trappingModule hits unreachable in m2g_convert.
func trappingModule() []byte {
	return engineModule(withCode(echoFuncs(), fnConvert, []byte{0x00}), false, "")
}

// exitingModule calls WASI proc_exit(3) from m2g_convert.
func exitingModule() []byte {
	// function 0 is the imported proc_exit
	return engineModule(withCode(echoFuncs(), fnConvert, []byte{0x41, 3, 0x10, 0, 0x41, 0}), true, "")
}

// spinningModule never returns from m2g_convert.
func spinningModule() []byte {
	return engineModule(withCode(echoFuncs(), fnConvert, []byte{0x03, 0x40, 0x0c, 0, 0x0b, 0x41, 0}), false, "")
}

// resultCountModule reports n results, all of them the last file added.
func resultCountModule(n byte) []byte {
	return engineModule(withCode(echoFuncs(), fnResultCount, []byte{0x41, n}), false, "")
}

// engineModule assembles a module exporting funcs and a memory. errText, if
// set, is stored at errorOffset. importExit adds WASI proc_exit as function 0.
func engineModule(funcs []wasmFunc, importExit bool, errText string) []byte {
	types := [][]byte{
		funcType([]byte{i32}, []byte{i32}),                // 0: (i32) -> i32
		funcType([]byte{i32}, nil),                        // 1: (i32)
		funcType([]byte{i32, i32, i32, i32}, []byte{i32}), // 2: (i32 x4) -> i32
		funcType([]byte{i32, i32}, []byte{i32}),           // 3: (i32 i32) -> i32
		funcType(nil, []byte{i32}),                        // 4: () -> i32
	}

	var imports [][]byte
	first := 0
	if importExit {
		imports = append(imports, cat(name("wasi_snapshot_preview1"), name("proc_exit"), []byte{funcRef, 1}))
		first = 1
	}

	var fnTypes, exports, bodies [][]byte
	for i, f := range funcs {
		fnTypes = append(fnTypes, []byte{f.typ})
		exports = append(exports, cat(name(f.name), []byte{funcRef, byte(first + i)}))
		body := cat([]byte{0}, f.code, []byte{0x0b})
		bodies = append(bodies, cat(uleb(uint32(len(body))), body))
	}
	exports = append(exports, cat(name("memory"), []byte{memRef, 0}))

	globals := [][]byte{
		{i32, 1, 0x41, 0x80, 0x08, 0x0b}, // heap = 1024
		{i32, 1, 0x41, 0, 0x0b},
		{i32, 1, 0x41, 0, 0x0b},
		{i32, 1, 0x41, 0, 0x0b},
	}

	mod := cat([]byte{0x00, 'a', 's', 'm', 1, 0, 0, 0}, section(1, vec(types)))
	if len(imports) > 0 {
		mod = cat(mod, section(2, vec(imports)))
	}
	mod = cat(mod,
		section(3, vec(fnTypes)),
		section(5, vec([][]byte{{0x00, 2}})),
		section(6, vec(globals)),
		section(7, vec(exports)),
		section(10, vec(bodies)),
	)
	if errText != "" {
		segment := cat([]byte{0x00, 0x41, errorOffset, 0x0b}, name(errText))
		mod = cat(mod, section(11, vec([][]byte{segment})))
	}
	return mod
}

// memoryOnlyModule exports a memory and nothing else.
func memoryOnlyModule() []byte {
	return cat(
		[]byte{0x00, 'a', 's', 'm', 1, 0, 0, 0},
		section(5, vec([][]byte{{0x00, 1}})),
		section(7, vec([][]byte{cat(name("memory"), []byte{memRef, 0})})),
	)
}

func funcType(params, results []byte) []byte {
	return cat([]byte{0x60}, uleb(uint32(len(params))), params, uleb(uint32(len(results))), results)
}

func section(id byte, content []byte) []byte {
	return cat([]byte{id}, uleb(uint32(len(content))), content)
}

func vec(items [][]byte) []byte {
	return cat(uleb(uint32(len(items))), cat(items...))
}

func name(s string) []byte {
	return cat(uleb(uint32(len(s))), []byte(s))
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
