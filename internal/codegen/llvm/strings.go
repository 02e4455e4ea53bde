package llvm

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/types"
)

// emitPrintln lowers the builtin `println` through printf with a per-type
// format string; the string case uses the fat pointer's explicit length.
func (g *Generator) emitPrintln(n *ast.PrintlnExpr) {
	v := g.rvalue(n.Value)
	t := derefType(semType(n.Value))

	switch tt := t.(type) {
	case *types.IntType:
		fmtStr := "%d\x0A"
		arg := v
		switch {
		case tt.Width == 64 && tt.Signed:
			fmtStr = "%lld\x0A"
		case tt.Width == 64:
			fmtStr = "%llu\x0A"
		case !tt.Signed:
			fmtStr = "%u\x0A"
			arg = g.coerceI32(v, tt)
		default:
			arg = g.coerceI32(v, tt)
		}
		g.block.NewCall(g.rt["printf"], g.cstring(fmtStr), arg)
	case *types.FloatType:
		arg := value.Value(v)
		if tt.Width == 32 {
			arg = g.block.NewFPExt(v, irtypes.Double)
		}
		g.block.NewCall(g.rt["printf"], g.cstring("%g\x0A"), arg)
	case *types.BoolType:
		sel := g.block.NewSelect(v, g.cstring("true"), g.cstring("false"))
		g.block.NewCall(g.rt["printf"], g.cstring("%s\x0A"), sel)
	case *types.StringType:
		ptr := g.block.NewExtractValue(v, 0)
		length := g.block.NewExtractValue(v, 1)
		g.block.NewCall(g.rt["printf"], g.cstring("%.*s\x0A"), length, ptr)
	default:
		g.block.NewCall(g.rt["printf"], g.cstring("~\x0A"))
	}
}

// emitSyntheticMethod lowers the built-in methods registered by
// internal/stdlib (stdio streams, string/number helpers) and the synthetic
// .hash calls; none of these have a sushi body to walk.
func (g *Generator) emitSyntheticMethod(n *ast.CallExpr, recv, method string, m *types.ExtensionMethod) value.Value {
	callee, ok := n.Callee.(*ast.FieldExpr)
	if !ok {
		return g.emitArgsDiscard(n)
	}

	switch recv {
	case "stdin", "stdout", "stderr":
		return g.emitStdioMethod(n, callee, recv, method)
	}

	switch method {
	case "hash":
		self := g.rvalue(callee.Target)
		return g.emitHashValue(self, derefType(semType(callee.Target)))
	case "len":
		self := g.rvalue(callee.Target)
		return g.block.NewExtractValue(self, 1)
	case "replace":
		self := g.rvalue(callee.Target)
		a := g.rvalue(n.Args[0])
		b := g.rvalue(n.Args[1])
		return g.block.NewCall(g.rt["sushi_string_replace"], self, a, b)
	case "destroy":
		// Explicit release of a heap string; operation results are move-only
		// and leak unless destroyed.
		self := g.rvalue(callee.Target)
		ptr := g.block.NewExtractValue(self, 0)
		g.block.NewCall(g.rt["free"], ptr)
		g.markDestroyed(callee.Target)
		return constant.NewInt(irtypes.I8, 0)
	case "to_string":
		return g.emitToString(callee.Target)
	}
	return g.emitArgsDiscard(n)
}

// emitToString converts a numeric receiver into a fresh 32-byte heap string
// via snprintf; a bool receiver yields the constant "true"/"false" string
// without allocating.
func (g *Generator) emitToString(recv ast.Expr) value.Value {
	v := g.rvalue(recv)
	t := derefType(semType(recv))

	if _, isBool := t.(*types.BoolType); isBool {
		st := g.stringType()
		truthy := g.block.NewSelect(v, g.cstring("true"), g.cstring("false"))
		length := g.block.NewSelect(v, i32c(4), i32c(5))
		out := value.Value(g.zeroValue(st))
		out = g.block.NewInsertValue(out, truthy, 0)
		out = g.block.NewInsertValue(out, length, 1)
		return out
	}

	buf := g.block.NewCall(g.rt["malloc"], i64c(32))
	var written value.Value
	switch tt := t.(type) {
	case *types.IntType:
		fmtStr := "%lld"
		if !tt.Signed {
			fmtStr = "%llu"
		}
		wide := g.convert(v, tt, types.I64)
		written = g.block.NewCall(g.rt["snprintf"], buf, i64c(32), g.cstring(fmtStr), wide)
	case *types.FloatType:
		arg := value.Value(v)
		if tt.Width == 32 {
			arg = g.block.NewFPExt(v, irtypes.Double)
		}
		written = g.block.NewCall(g.rt["snprintf"], buf, i64c(32), g.cstring("%g"), arg)
	default:
		written = i32c(0)
	}

	st := g.stringType()
	out := value.Value(g.zeroValue(st))
	out = g.block.NewInsertValue(out, buf, 0)
	out = g.block.NewInsertValue(out, written, 1)
	return out
}

// emitStdioMethod lowers the stream builtins onto fgets/fread/fwrite against
// the libc FILE* globals.
func (g *Generator) emitStdioMethod(n *ast.CallExpr, callee *ast.FieldExpr, stream, method string) value.Value {
	file := g.loadStdStream(stream)
	st := g.stringType()

	switch method {
	case "readln", "read":
		size := int64(1024)
		if method == "read" {
			size = 65536
		}
		buf := g.block.NewCall(g.rt["malloc"], i64c(size))
		g.block.NewCall(g.rt["fgets"], buf, i32c(size), file)
		length := g.block.NewTrunc(g.block.NewCall(g.rt["strlen"], buf), irtypes.I32)
		out := value.Value(g.zeroValue(st))
		out = g.block.NewInsertValue(out, buf, 0)
		out = g.block.NewInsertValue(out, length, 1)
		return out
	case "read_bytes":
		count := g.convert(g.rvalue(n.Args[0]), derefType(semType(n.Args[0])), types.I64)
		buf := g.block.NewCall(g.rt["malloc"], count)
		got := g.block.NewCall(g.rt["fread"], buf, i64c(1), count, file)
		dt := g.dynArrayType(types.U8)
		out := value.Value(g.zeroValue(dt))
		out = g.block.NewInsertValue(out, g.block.NewTrunc(got, irtypes.I32), 0)
		out = g.block.NewInsertValue(out, g.block.NewTrunc(count, irtypes.I32), 1)
		out = g.block.NewInsertValue(out, buf, 2)
		return out
	case "lines":
		f := g.stdinLinesDecl()
		return g.block.NewCall(f, file)
	case "write":
		s := g.rvalue(n.Args[0])
		ptr := g.block.NewExtractValue(s, 0)
		length := g.block.NewSExt(g.block.NewExtractValue(s, 1), irtypes.I64)
		g.block.NewCall(g.rt["fwrite"], ptr, i64c(1), length, file)
		return constant.NewInt(irtypes.I8, 0)
	case "write_bytes":
		arr := g.rvalue(n.Args[0])
		data := g.block.NewExtractValue(arr, 2)
		length := g.block.NewSExt(g.block.NewExtractValue(arr, 0), irtypes.I64)
		g.block.NewCall(g.rt["fwrite"], data, i64c(1), length, file)
		return constant.NewInt(irtypes.I8, 0)
	}
	return g.emitArgsDiscard(n)
}

// stdinLinesDecl declares the runtime helper that slurps a stream into a
// dense %string buffer and returns the iterator over it.
func (g *Generator) stdinLinesDecl() value.Value {
	if f, ok := g.rt["sushi_stream_lines"]; ok {
		return f
	}
	iterTy := g.iteratorType(types.String)
	f := g.mod.NewFunc("sushi_stream_lines", iterTy, ir.NewParam("file", irtypes.I8Ptr))
	g.rt["sushi_stream_lines"] = f
	return f
}
