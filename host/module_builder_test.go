package host_test

// A minimal wasm binary writer for test modules. Every defined function
// either returns a constant or forwards its argument, optionally through one
// imported function.

const (
	typeI64I64 = iota // (i64) -> i64
	typeVoid          // () -> ()
	typeI32I32        // (i32) -> i32
)

type wasmImport struct {
	module, name string
}

type wasmFunc struct {
	export string
	typ    byte
	body   []byte
}

var (
	bodyZeroI64 = []byte{0x00, 0x42, 0x00, 0x0b}       // i64.const 0
	bodyEcho    = []byte{0x00, 0x20, 0x00, 0x0b}       // local.get 0
	bodyVoid    = []byte{0x00, 0x0b}                   // nothing
	bodyAlloc   = []byte{0x00, 0x41, 0x80, 0x08, 0x0b} // i32.const 1024
)

// bodyCallImport forwards the argument to imported function 0.
func bodyCallImport() []byte { return []byte{0x00, 0x20, 0x00, 0x10, 0x00, 0x0b} }

func uleb(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func wstr(s string) []byte { return append(uleb(len(s)), s...) }

func vec(items ...[]byte) []byte {
	out := uleb(len(items))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, body []byte) []byte {
	return append(append([]byte{id}, uleb(len(body))...), body...)
}

// contractFuncs returns init, dispose and allocate plus the given extras.
func contractFuncs(extra ...wasmFunc) []wasmFunc {
	return append([]wasmFunc{
		{"init", typeI64I64, bodyZeroI64},
		{"dispose", typeVoid, bodyVoid},
		{"allocate", typeI32I32, bodyAlloc},
	}, extra...)
}

// buildModule assembles a module with one page of exported memory. Imports
// all have type (i64) -> i64. An empty name omits the name section.
func buildModule(name string, imports []wasmImport, funcs []wasmFunc) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	out = append(out, section(1, vec(
		[]byte{0x60, 0x01, 0x7e, 0x01, 0x7e},
		[]byte{0x60, 0x00, 0x00},
		[]byte{0x60, 0x01, 0x7f, 0x01, 0x7f},
	))...)

	if len(imports) > 0 {
		items := make([][]byte, 0, len(imports))
		for _, im := range imports {
			item := append(wstr(im.module), wstr(im.name)...)
			items = append(items, append(item, 0x00, typeI64I64))
		}
		out = append(out, section(2, vec(items...))...)
	}

	types := make([][]byte, 0, len(funcs))
	for _, f := range funcs {
		types = append(types, []byte{f.typ})
	}
	out = append(out, section(3, vec(types...))...)

	out = append(out, section(5, vec([]byte{0x00, 0x01}))...)

	exports := [][]byte{append(wstr("memory"), 0x02, 0x00)}
	for i, f := range funcs {
		exports = append(exports, append(append(wstr(f.export), 0x00), uleb(len(imports)+i)...))
	}
	out = append(out, section(7, vec(exports...))...)

	bodies := make([][]byte, 0, len(funcs))
	for _, f := range funcs {
		bodies = append(bodies, append(uleb(len(f.body)), f.body...))
	}
	out = append(out, section(10, vec(bodies...))...)

	if name != "" {
		sub := wstr(name)
		body := append(wstr("name"), 0x00)
		body = append(body, uleb(len(sub))...)
		body = append(body, sub...)
		out = append(out, section(0, body)...)
	}
	return out
}
