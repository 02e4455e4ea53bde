package stdlib

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/types"
)

// RegisterStdio seeds Tables.ExtensionTable with the built-in stdin/stdout/
// stderr methods. These are registered eagerly, once,
// rather than discovered per-file, since stdin/stdout/stderr are builtin
// values (resolve.go's builtinNames) rather than something a program
// declares. errType is the shared StdError used for every other stdlib
// error channel, since stream I/O failures (a broken pipe, EOF on a
// closed fd) are not filesystem errors and so don't warrant FileError.
func RegisterStdio(tables *types.Tables, errType types.Type) {
	u8Array := &types.DynamicArrayType{Elem: types.U8}
	lineIter := &types.IteratorType{Elem: types.String}

	add := func(receiver, method string, params []types.Type, ret types.Type) {
		tables.AddExtension(receiver, &types.ExtensionMethod{
			Decl:       synthDecl(method),
			Receiver:   types.Stdin, // overwritten per call below; placeholder kept non-nil
			ParamTypes: params,
			ReturnType: ret,
			ErrType:    errType,
			Synthetic:  true,
		})
	}

	add("stdin", "readln", nil, types.String)
	add("stdin", "read", nil, types.String)
	add("stdin", "read_bytes", []types.Type{types.I32}, u8Array)
	add("stdin", "lines", nil, lineIter)

	for _, recv := range []string{"stdout", "stderr"} {
		add(recv, "write", []types.Type{types.String}, types.Blank)
		add(recv, "write_bytes", []types.Type{u8Array}, types.Blank)
	}

	// Receiver field must match the actual stream, not the stdin placeholder
	// used above while building each method uniformly.
	tables.ExtensionTable["stdin"]["readln"].Receiver = types.Stdin
	tables.ExtensionTable["stdin"]["read"].Receiver = types.Stdin
	tables.ExtensionTable["stdin"]["read_bytes"].Receiver = types.Stdin
	tables.ExtensionTable["stdin"]["lines"].Receiver = types.Stdin
	tables.ExtensionTable["stdout"]["write"].Receiver = types.Stdout
	tables.ExtensionTable["stdout"]["write_bytes"].Receiver = types.Stdout
	tables.ExtensionTable["stderr"]["write"].Receiver = types.Stderr
	tables.ExtensionTable["stderr"]["write_bytes"].Receiver = types.Stderr
}

// synthDecl gives each stdio extension method a named, body-less FnDecl so
// AddExtension's bucket key and diagnostics have a name to report;
// internal/codegen/llvm never reads its Body and instead emits a direct
// libc call (fgets/fread/fwrite) keyed by the method name.
func synthDecl(method string) *ast.FnDecl {
	return ast.NewFnDecl(method, nil, nil, nil, nil, nil, false, ast.Span{})
}
