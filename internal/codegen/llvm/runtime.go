package llvm

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// declareRuntime declares the libc and runtime-library helpers every emitted
// module links against and defines the small
// self-contained ones (runtime-error emitter, string concat/compare/hash,
// next-prime capacity step) directly in the module.
func (g *Generator) declareRuntime() {
	i8p := irtypes.I8Ptr

	decl := func(name string, ret irtypes.Type, variadic bool, params ...irtypes.Type) {
		ps := make([]*ir.Param, len(params))
		for i, p := range params {
			ps[i] = ir.NewParam("", p)
		}
		f := g.mod.NewFunc(name, ret, ps...)
		f.Sig.Variadic = variadic
		g.rt[name] = f
	}

	decl("malloc", i8p, false, irtypes.I64)
	decl("free", irtypes.Void, false, i8p)
	decl("realloc", i8p, false, i8p, irtypes.I64)
	decl("memcpy", i8p, false, i8p, i8p, irtypes.I64)
	decl("memset", i8p, false, i8p, irtypes.I32, irtypes.I64)
	decl("memcmp", irtypes.I32, false, i8p, i8p, irtypes.I64)
	decl("strlen", irtypes.I64, false, i8p)
	decl("strcmp", irtypes.I32, false, i8p, i8p)
	decl("printf", irtypes.I32, true, i8p)
	decl("fprintf", irtypes.I32, true, i8p, i8p)
	decl("snprintf", irtypes.I32, true, i8p, irtypes.I64, i8p)
	decl("fgets", i8p, false, i8p, irtypes.I32, i8p)
	decl("fopen", i8p, false, i8p, i8p)
	decl("fclose", irtypes.I32, false, i8p)
	decl("fread", irtypes.I64, false, i8p, irtypes.I64, irtypes.I64, i8p)
	decl("fwrite", irtypes.I64, false, i8p, irtypes.I64, irtypes.I64, i8p)
	decl("exit", irtypes.Void, false, irtypes.I32)
	decl("random", irtypes.I64, false)
	decl("srandom", irtypes.Void, false, irtypes.I32)
	decl("nanosleep", irtypes.I32, false, i8p, i8p)
	decl("access", irtypes.I32, false, i8p, irtypes.I32)
	decl("remove", irtypes.I32, false, i8p)
	decl("rmdir", irtypes.I32, false, i8p)
	decl("rename", irtypes.I32, false, i8p, i8p)
	decl("mkdir", irtypes.I32, false, i8p, irtypes.I32)

	// Runtime-library helpers not reducible to a bare libc symbol; linked
	// from the sushi runtime.
	decl("sushi_string_replace", g.stringType(), false, g.stringType(), g.stringType(), g.stringType())
	decl("sushi_io_is_file", irtypes.I32, false, g.stringType())
	decl("sushi_io_is_dir", irtypes.I32, false, g.stringType())
	decl("sushi_io_file_size", irtypes.I64, false, g.stringType())
	decl("sushi_io_copy", irtypes.I32, false, g.stringType(), g.stringType())

	g.defineRuntimeError()
	g.defineStringConcat()
	g.defineStringEq()
	g.defineStringHash()
	g.defineNextPrime()
}

// intrinsic declares (once) and returns an LLVM math intrinsic such as
// llvm.sqrt.f64.
func (g *Generator) intrinsic(name string, ret irtypes.Type, params ...irtypes.Type) *ir.Func {
	if f, ok := g.rt[name]; ok {
		return f
	}
	ps := make([]*ir.Param, len(params))
	for i, p := range params {
		ps[i] = ir.NewParam("", p)
	}
	f := g.mod.NewFunc(name, ret, ps...)
	g.rt[name] = f
	return f
}

// defineRuntimeError defines the fixed helper generated code calls on array
// bounds overflow and pattern-match fallthrough: print a message built from
// a format string and integer arguments, then exit(1).
func (g *Generator) defineRuntimeError() {
	f := g.mod.NewFunc("sushi_runtime_error", irtypes.Void,
		ir.NewParam("fmt", irtypes.I8Ptr),
		ir.NewParam("a", irtypes.I64),
		ir.NewParam("b", irtypes.I64))
	f.Linkage = enum.LinkageInternal
	bb := f.NewBlock("entry")
	bb.NewCall(g.rt["printf"], f.Params[0], f.Params[1], f.Params[2])
	bb.NewCall(g.rt["exit"], constant.NewInt(irtypes.I32, 1))
	bb.NewUnreachable()
	g.rt["sushi_runtime_error"] = f
}

// emitRuntimeError emits a call to the runtime-error helper followed by an
// unreachable terminator, switching emission to a fresh dead block.
func (g *Generator) emitRuntimeError(format string, a, b value.Value) {
	if a == nil {
		a = constant.NewInt(irtypes.I64, 0)
	}
	if b == nil {
		b = constant.NewInt(irtypes.I64, 0)
	}
	g.block.NewCall(g.rt["sushi_runtime_error"], g.cstring(format), a, b)
	g.block.NewUnreachable()
	g.block = g.fn.NewBlock("")
}

// defineStringConcat defines `%string @sushi_string_concat(%string, %string)`:
// heap-allocate len(a)+len(b), memcpy both halves. The result is move-only
// and leaks unless destroyed.
func (g *Generator) defineStringConcat() {
	st := g.stringType()
	f := g.mod.NewFunc("sushi_string_concat", st,
		ir.NewParam("a", st), ir.NewParam("b", st))
	f.Linkage = enum.LinkageInternal
	bb := f.NewBlock("entry")

	aPtr := bb.NewExtractValue(f.Params[0], 0)
	aLen := bb.NewExtractValue(f.Params[0], 1)
	bPtr := bb.NewExtractValue(f.Params[1], 0)
	bLen := bb.NewExtractValue(f.Params[1], 1)
	total := bb.NewAdd(aLen, bLen)
	total64 := bb.NewSExt(total, irtypes.I64)
	buf := bb.NewCall(g.rt["malloc"], total64)
	bb.NewCall(g.rt["memcpy"], buf, aPtr, bb.NewSExt(aLen, irtypes.I64))
	tail := bb.NewGetElementPtr(irtypes.I8, buf, bb.NewSExt(aLen, irtypes.I64))
	bb.NewCall(g.rt["memcpy"], tail, bPtr, bb.NewSExt(bLen, irtypes.I64))

	out := bb.NewInsertValue(constant.NewZeroInitializer(st), buf, 0)
	out2 := bb.NewInsertValue(out, total, 1)
	bb.NewRet(out2)
	g.rt["sushi_string_concat"] = f
}

// defineStringEq defines `i1 @sushi_string_eq(%string, %string)`:
// length-aware comparison via memcmp.
func (g *Generator) defineStringEq() {
	st := g.stringType()
	f := g.mod.NewFunc("sushi_string_eq", irtypes.I1,
		ir.NewParam("a", st), ir.NewParam("b", st))
	f.Linkage = enum.LinkageInternal
	bb := f.NewBlock("entry")
	neBB := f.NewBlock("ne")
	cmpBB := f.NewBlock("cmp")

	aLen := bb.NewExtractValue(f.Params[0], 1)
	bLen := bb.NewExtractValue(f.Params[1], 1)
	sameLen := bb.NewICmp(enum.IPredEQ, aLen, bLen)
	bb.NewCondBr(sameLen, cmpBB, neBB)

	neBB.NewRet(constant.False)

	aPtr := cmpBB.NewExtractValue(f.Params[0], 0)
	bPtr := cmpBB.NewExtractValue(f.Params[1], 0)
	rc := cmpBB.NewCall(g.rt["memcmp"], aPtr, bPtr, cmpBB.NewSExt(aLen, irtypes.I64))
	cmpBB.NewRet(cmpBB.NewICmp(enum.IPredEQ, rc, constant.NewInt(irtypes.I32, 0)))
	g.rt["sushi_string_eq"] = f
}

// defineStringHash defines `i64 @sushi_string_hash(%string)`: FNV-1a over the
// string's bytes, the base case of the auto-derived.hash family.
func (g *Generator) defineStringHash() {
	st := g.stringType()
	f := g.mod.NewFunc("sushi_string_hash", irtypes.I64, ir.NewParam("s", st))
	f.Linkage = enum.LinkageInternal
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	body := f.NewBlock("body")
	done := f.NewBlock("done")

	ptr := entry.NewExtractValue(f.Params[0], 0)
	length := entry.NewSExt(entry.NewExtractValue(f.Params[0], 1), irtypes.I64)
	entry.NewBr(loop)

	iPhi := loop.NewPhi(ir.NewIncoming(constant.NewInt(irtypes.I64, 0), entry))
	hPhi := loop.NewPhi(ir.NewIncoming(constant.NewInt(irtypes.I64, fnvOffset), entry))
	inBounds := loop.NewICmp(enum.IPredSLT, iPhi, length)
	loop.NewCondBr(inBounds, body, done)

	bPtr := body.NewGetElementPtr(irtypes.I8, ptr, iPhi)
	by := body.NewZExt(body.NewLoad(irtypes.I8, bPtr), irtypes.I64)
	mixed := body.NewMul(body.NewXor(hPhi, by), constant.NewInt(irtypes.I64, fnvPrime))
	next := body.NewAdd(iPhi, constant.NewInt(irtypes.I64, 1))
	body.NewBr(loop)
	iPhi.Incs = append(iPhi.Incs, ir.NewIncoming(next, body))
	hPhi.Incs = append(hPhi.Incs, ir.NewIncoming(mixed, body))

	done.NewRet(hPhi)
	g.rt["sushi_string_hash"] = f
}

const (
	fnvOffset = -3750763034362895579 // 14695981039346656037 as signed i64
	fnvPrime  = 1099511628211
)

// defineNextPrime defines `i32 @sushi_next_prime(i32)`: the capacity policy
// of the open-addressing HashMap, stepping a fixed prime table: a 0.75
// load factor triggers a resize to the next prime capacity.
func (g *Generator) defineNextPrime() {
	primes := []int64{11, 23, 47, 97, 197, 397, 797, 1597, 3203, 6421, 12853,
		25717, 51437, 102877, 205759, 411527, 823117, 1646237, 3292489,
		6584983, 13169977, 26339969, 52679969, 105359939}
	elems := make([]constant.Constant, len(primes))
	for i, p := range primes {
		elems[i] = constant.NewInt(irtypes.I32, p)
	}
	arrTy := irtypes.NewArray(uint64(len(primes)), irtypes.I32)
	tbl := g.mod.NewGlobalDef("sushi_prime_table", constant.NewArray(arrTy, elems...))
	tbl.Immutable = true
	tbl.Linkage = enum.LinkagePrivate

	f := g.mod.NewFunc("sushi_next_prime", irtypes.I32, ir.NewParam("min", irtypes.I32))
	f.Linkage = enum.LinkageInternal
	entry := f.NewBlock("entry")
	loop := f.NewBlock("loop")
	check := f.NewBlock("check")
	found := f.NewBlock("found")
	fallback := f.NewBlock("fallback")
	entry.NewBr(loop)

	iPhi := loop.NewPhi(ir.NewIncoming(constant.NewInt(irtypes.I32, 0), entry))
	inBounds := loop.NewICmp(enum.IPredSLT, iPhi, constant.NewInt(irtypes.I32, int64(len(primes))))
	loop.NewCondBr(inBounds, check, fallback)

	slotPtr := check.NewGetElementPtr(arrTy, tbl, constant.NewInt(irtypes.I32, 0), iPhi)
	p := check.NewLoad(irtypes.I32, slotPtr)
	big := check.NewICmp(enum.IPredSGT, p, f.Params[0])
	next := check.NewAdd(iPhi, constant.NewInt(irtypes.I32, 1))
	check.NewCondBr(big, found, loop)
	iPhi.Incs = append(iPhi.Incs, ir.NewIncoming(next, check))

	found.NewRet(p)

	// Past the table: double and give up on primality.
	fallback.NewRet(fallback.NewMul(f.Params[0], constant.NewInt(irtypes.I32, 2)))
	g.rt["sushi_next_prime"] = f
}
