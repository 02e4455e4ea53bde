// Package llvm implements Pass 4: a recursive walk over the
// fully-annotated, monomorphized AST producing LLVM IR into a single
// ir.Module via the llir/llvm object graph. Pass 2 attached resolved types to
// the AST nodes it validated; this package reads those annotations and never
// re-infers.
package llvm

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/types"
)

// Generator lowers one checked program to a single LLVM module.
type Generator struct {
	Tables   *types.Tables
	Reporter *diag.Reporter

	mod      *ir.Module
	funcs    map[string]*ir.Func
	rt       map[string]*ir.Func
	typeDefs map[string]irtypes.Type
	strs     map[string]constant.Constant
	strCount int
	helpers  map[string]*ir.Func
	streams  map[string]value.Value

	// Per-function emission state. Every function gets an `entry` block
	// holding all allocas and a `start` block where real code begins; entry
	// unconditionally branches to start so mem2reg can promote the allocas.
	fn     *ir.Func
	entry  *ir.Block
	block  *ir.Block
	frame  *frame
	loops  []loopTarget
	retOk  types.Type
	retErr types.Type
	bare   bool // extension/perk methods return a bare value, not a Result struct
}

type loopTarget struct {
	condBB *ir.Block
	endBB  *ir.Block
}

// NewGenerator builds a Pass 4 emitter over tables finalized by Passes 0-3.
func NewGenerator(tables *types.Tables, reporter *diag.Reporter) *Generator {
	return &Generator{
		Tables:   tables,
		Reporter: reporter,
		mod:      ir.NewModule(),
		funcs:    map[string]*ir.Func{},
		rt:       map[string]*ir.Func{},
		typeDefs: map[string]irtypes.Type{},
		strs:     map[string]constant.Constant{},
		helpers:  map[string]*ir.Func{},
	}
}

// Emit lowers the whole program: runtime declarations first, then every
// function signature, then every body, then the C main wrapper.
func (g *Generator) Emit(f *ast.File) *ir.Module {
	g.declareRuntime()

	emitted := map[string]bool{}
	var order []*ast.FnDecl
	for _, fn := range f.Functions {
		if fn.IsGeneric() || fn.Body == nil {
			continue
		}
		order = append(order, fn)
		emitted[fn.Name] = true
	}
	// Monomorphized clones registered by Pass 1.6 (: "registers... with
	// the program's function list so IR emission picks it up"). Tables.
	// Functions also carries extension-method decls; only entries backing a
	// FunctionTable registration are top-level functions.
	for _, fn := range g.Tables.Functions {
		entry, ok := g.Tables.FunctionTable[fn.Name]
		if !ok || entry.Decl != fn || fn.Body == nil || emitted[fn.Name] {
			continue
		}
		order = append(order, fn)
		emitted[fn.Name] = true
	}

	for _, fn := range order {
		g.declareFunction(fn)
	}
	for _, ext := range f.Extends {
		recv := g.Tables.Resolve(ext.Target)
		for _, m := range ext.Methods {
			g.declareMethod(recvName(recv), recv, m)
		}
	}
	g.declareHashMethods()

	for _, fn := range order {
		g.emitFunction(fn)
	}
	for _, ext := range f.Extends {
		recv := g.Tables.Resolve(ext.Target)
		for _, m := range ext.Methods {
			g.emitMethod(recvName(recv), recv, m)
		}
	}
	g.emitHashMethods()

	if emitted["main"] {
		g.emitMainWrapper()
	}
	return g.mod
}

func recvName(t types.Type) string {
	switch v := t.(type) {
	case *types.StructType:
		return v.Name
	case *types.EnumType:
		return v.Name
	default:
		return t.String()
	}
}

// sanitizeSymbol turns a canonical type or method spelling into a valid LLVM
// identifier.
var symbolReplacer = strings.NewReplacer(
	"<", "_", ">", "", ",", "_", " ", "", "&", "ref_", "*", "ptr", "[", "_arr", "]", "", ".", "_",
)

func sanitizeSymbol(s string) string { return symbolReplacer.Replace(s) }

func methodSymbol(recv, method string) string {
	return sanitizeSymbol(recv) + "__" + method
}

// ---------------------------------------------------------------------
// Type lowering
// ---------------------------------------------------------------------

// lowerType maps the semantic type universe onto LLVM types, caching
// named aggregates as module-level type definitions.
func (g *Generator) lowerType(t types.Type) irtypes.Type {
	switch v := t.(type) {
	case *types.IntType:
		return irtypes.NewInt(uint64(v.Width))
	case *types.FloatType:
		if v.Width == 32 {
			return irtypes.Float
		}
		return irtypes.Double
	case *types.BoolType:
		return irtypes.I1
	case *types.BlankType:
		return irtypes.I8
	case *types.StringType:
		return g.stringType()
	case *types.StreamType:
		return irtypes.I8Ptr // FILE*
	case *types.ArrayType:
		return irtypes.NewArray(uint64(v.Size), g.lowerType(v.Elem))
	case *types.DynamicArrayType:
		return g.dynArrayType(v.Elem)
	case *types.ReferenceType:
		return irtypes.NewPointer(g.lowerType(v.Referenced))
	case *types.PointerType:
		return irtypes.NewPointer(g.lowerType(v.Pointee))
	case *types.IteratorType:
		return g.iteratorType(v.Elem)
	case *types.ResultType:
		return g.lowerType(g.resultEnum(v.Ok, v.Err))
	case *types.GenericTypeRef:
		if g.Tables.MonoTypeFn != nil {
			r := g.Tables.MonoTypeFn(v.BaseName, v.TypeArgs)
			if _, still := r.(*types.GenericTypeRef); !still {
				return g.lowerType(r)
			}
		}
		return irtypes.I8Ptr
	case *types.StructType:
		return g.lowerStruct(v)
	case *types.EnumType:
		return g.lowerEnum(v)
	default:
		return irtypes.I8Ptr
	}
}

func (g *Generator) stringType() irtypes.Type {
	if t, ok := g.typeDefs["string"]; ok {
		return t
	}
	st := irtypes.NewStruct(irtypes.I8Ptr, irtypes.I32)
	def := g.mod.NewTypeDef("string", st)
	g.typeDefs["string"] = def
	return def
}

// dynArrayType is the uniform `{i32 len, i32 cap, T* data}` layout shared by
// `T[]` and `List<T>`.
func (g *Generator) dynArrayType(elem types.Type) irtypes.Type {
	key := "dyn." + elem.String()
	if t, ok := g.typeDefs[key]; ok {
		return t
	}
	st := irtypes.NewStruct(irtypes.I32, irtypes.I32, irtypes.NewPointer(g.lowerType(elem)))
	def := g.mod.NewTypeDef("dyn."+sanitizeSymbol(elem.String()), st)
	g.typeDefs[key] = def
	return def
}

// iteratorType is `{i32 index, i32 capacity_or_flag, T* data}` with the high
// bits of the capacity field encoding provenance.
func (g *Generator) iteratorType(elem types.Type) irtypes.Type {
	key := "iter." + elem.String()
	if t, ok := g.typeDefs[key]; ok {
		return t
	}
	st := irtypes.NewStruct(irtypes.I32, irtypes.I32, irtypes.NewPointer(g.lowerType(elem)))
	def := g.mod.NewTypeDef("iter."+sanitizeSymbol(elem.String()), st)
	g.typeDefs[key] = def
	return def
}

// hashmapEntryType is one open-addressing slot: `{i32 tag, K key, V value}`
// with tags Empty=0, Occupied=1, Tombstone=2.
func (g *Generator) hashmapEntryType(k, v types.Type) irtypes.Type {
	key := "hment." + k.String() + "," + v.String()
	if t, ok := g.typeDefs[key]; ok {
		return t
	}
	st := irtypes.NewStruct(irtypes.I32, g.lowerType(k), g.lowerType(v))
	def := g.mod.NewTypeDef("hment."+sanitizeSymbol(k.String())+"_"+sanitizeSymbol(v.String()), st)
	g.typeDefs[key] = def
	return def
}

func (g *Generator) hashmapType(k, v types.Type) irtypes.Type {
	key := "hmap." + k.String() + "," + v.String()
	if t, ok := g.typeDefs[key]; ok {
		return t
	}
	st := irtypes.NewStruct(irtypes.I32, irtypes.I32, irtypes.NewPointer(g.hashmapEntryType(k, v)))
	def := g.mod.NewTypeDef("hmap."+sanitizeSymbol(k.String())+"_"+sanitizeSymbol(v.String()), st)
	g.typeDefs[key] = def
	return def
}

// lowerStruct dispatches the built-in generic collections to their fixed
// layouts; everything else becomes a named field struct.
func (g *Generator) lowerStruct(st *types.StructType) irtypes.Type {
	switch st.GenericBase {
	case "Own":
		// Single-owner heap box: the value IS the pointer.
		return irtypes.NewPointer(g.lowerType(st.GenericArgs[0]))
	case "List":
		return g.dynArrayType(st.GenericArgs[0])
	case "HashMap":
		return g.hashmapType(st.GenericArgs[0], st.GenericArgs[1])
	}
	if t, ok := g.typeDefs[st.Name]; ok {
		return t
	}
	// Memoize a named opaque struct first so self-referential fields (legal
	// only through Own<T> indirection, ) terminate.
	named := g.mod.NewTypeDef(sanitizeSymbol(st.Name), irtypes.NewStruct())
	g.typeDefs[st.Name] = named
	fields := make([]irtypes.Type, len(st.Fields))
	for i, f := range st.Fields {
		fields[i] = g.lowerType(f.Type)
	}
	if body, ok := named.(*irtypes.StructType); ok {
		body.Fields = fields
	}
	return named
}

// lowerEnum lays every enum out as `{i32 tag, [N x i8] data}` where N is the
// max associated-type size.
func (g *Generator) lowerEnum(et *types.EnumType) irtypes.Type {
	if t, ok := g.typeDefs[et.Name]; ok {
		return t
	}
	n := g.enumPayloadBytes(et)
	st := irtypes.NewStruct(irtypes.I32, irtypes.NewArray(uint64(n), irtypes.I8))
	def := g.mod.NewTypeDef(sanitizeSymbol(et.Name), st)
	g.typeDefs[et.Name] = def
	return def
}

func (g *Generator) enumPayloadBytes(et *types.EnumType) int {
	n := types.SizeOf(et) - 4
	if n < 0 {
		n = 0
	}
	return n
}

// resultEnum resolves the concrete Result<Ok,Err> enum for a semantic
// ResultType marker, monomorphizing on demand when Pass 1.5 never saw it.
func (g *Generator) resultEnum(ok, err types.Type) *types.EnumType {
	name := types.CanonicalName("Result", []types.Type{ok, err})
	if et, found := g.Tables.EnumTable[name]; found {
		return et
	}
	if g.Tables.MonoTypeFn != nil {
		if et, isEnum := g.Tables.MonoTypeFn("Result", []types.Type{ok, err}).(*types.EnumType); isEnum {
			return et
		}
	}
	return &types.EnumType{
		Name:        name,
		GenericBase: "Result",
		GenericArgs: []types.Type{ok, err},
		Variants: []types.EnumVariant{
			{Name: "Ok", Assoc: []types.Type{ok}},
			{Name: "Err", Assoc: []types.Type{err}},
		},
	}
}

// ---------------------------------------------------------------------
// Function declaration / emission
// ---------------------------------------------------------------------

func (g *Generator) fnSymbol(name string) string {
	if name == "main" {
		// The user main is wrapped by a C main.
		return "sushi_main"
	}
	return sanitizeSymbol(name)
}

func (g *Generator) declaredTypes(fn *ast.FnDecl) (ret, errT types.Type) {
	ret = types.Blank
	if fn.ReturnType != nil {
		ret = g.Tables.Resolve(fn.ReturnType)
	}
	errT = types.Type(&types.StructType{Name: "StdError"})
	if st, ok := g.Tables.StructTable["StdError"]; ok {
		errT = st
	}
	if fn.ErrType != nil {
		errT = g.Tables.Resolve(fn.ErrType)
	}
	return ret, errT
}

func (g *Generator) declareFunction(fn *ast.FnDecl) *ir.Func {
	sym := g.fnSymbol(fn.Name)
	if f, ok := g.funcs[sym]; ok {
		return f
	}
	ret, errT := g.declaredTypes(fn)
	retTy := g.lowerType(g.resultEnum(ret, errT))
	params := make([]*ir.Param, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = ir.NewParam(p.Name, g.lowerType(g.Tables.Resolve(p.Type)))
	}
	f := g.mod.NewFunc(sym, retTy, params...)
	if !fn.Public && fn.Name != "main" {
		f.Linkage = enum.LinkageInternal
	}
	g.funcs[sym] = f
	return f
}

// declareMethod declares an extension/perk-impl method: self first, bare
// return value.
func (g *Generator) declareMethod(recv string, recvType types.Type, m *ast.FnDecl) *ir.Func {
	sym := methodSymbol(recv, m.Name)
	if f, ok := g.funcs[sym]; ok {
		return f
	}
	var retTy irtypes.Type = irtypes.Void
	if m.ReturnType != nil {
		if rt := g.Tables.Resolve(m.ReturnType); !isBlank(rt) {
			retTy = g.lowerType(rt)
		}
	}
	params := make([]*ir.Param, 0, len(m.Params)+1)
	params = append(params, ir.NewParam("self", g.lowerType(recvType)))
	for _, p := range m.Params {
		params = append(params, ir.NewParam(p.Name, g.lowerType(g.Tables.Resolve(p.Type))))
	}
	f := g.mod.NewFunc(sym, retTy, params...)
	f.Linkage = enum.LinkageInternal
	g.funcs[sym] = f
	return f
}

func isBlank(t types.Type) bool {
	_, ok := t.(*types.BlankType)
	return ok
}

// beginFunction opens the entry/start block pair and resets per-function
// state. All allocas land in entry; code emission continues in start.
func (g *Generator) beginFunction(f *ir.Func) {
	g.fn = f
	g.entry = f.NewBlock("entry")
	g.block = f.NewBlock("start")
	g.entry.NewBr(g.block)
	g.frame = newFrame()
	g.frame.push()
	g.loops = nil
}

func (g *Generator) emitFunction(fn *ast.FnDecl) {
	f := g.declareFunction(fn)
	g.beginFunction(f)
	g.bare = false
	g.retOk, g.retErr = g.declaredTypes(fn)

	for i, p := range fn.Params {
		pt := g.Tables.Resolve(p.Type)
		slot := g.entry.NewAlloca(f.Params[i].Typ)
		g.block.NewStore(f.Params[i], slot)
		_, isRef := pt.(*types.ReferenceType)
		g.frame.declare(p.Name, pt, slot, isRef)
		// Parameters are caller-owned; never RAII-cleaned here.
		g.frame.markMoved(p.Name)
	}

	g.emitBlockStmts(fn.Body)
	if g.block.Term == nil {
		// Blank-returning function falling off the end: Ok(~).
		g.emitCleanupScopes(len(g.frame.scopes))
		g.block.NewRet(g.zeroValue(g.lowerType(g.resultEnum(g.retOk, g.retErr))))
	}
}

func (g *Generator) emitMethod(recv string, recvType types.Type, m *ast.FnDecl) {
	f := g.declareMethod(recv, recvType, m)
	g.beginFunction(f)
	g.bare = true
	g.retOk, g.retErr = g.declaredTypes(m)

	selfSlot := g.entry.NewAlloca(f.Params[0].Typ)
	g.block.NewStore(f.Params[0], selfSlot)
	g.frame.declare("self", recvType, selfSlot, false)
	g.frame.markMoved("self")
	for i, p := range m.Params {
		pt := g.Tables.Resolve(p.Type)
		slot := g.entry.NewAlloca(f.Params[i+1].Typ)
		g.block.NewStore(f.Params[i+1], slot)
		_, isRef := pt.(*types.ReferenceType)
		g.frame.declare(p.Name, pt, slot, isRef)
		g.frame.markMoved(p.Name)
	}

	g.emitBlockStmts(m.Body)
	if g.block.Term == nil {
		g.emitCleanupScopes(len(g.frame.scopes))
		if f.Sig.RetType.Equal(irtypes.Void) {
			g.block.NewRet(nil)
		} else {
			g.block.NewRet(g.zeroValue(f.Sig.RetType))
		}
	}
}

// emitMainWrapper converts the Result<i32,_>-returning user main into a C
// `int main(int, char**)`.
func (g *Generator) emitMainWrapper() {
	user := g.funcs["sushi_main"]
	if user == nil {
		return
	}
	f := g.mod.NewFunc("main", irtypes.I32,
		ir.NewParam("argc", irtypes.I32),
		ir.NewParam("argv", irtypes.NewPointer(irtypes.I8Ptr)))
	bb := f.NewBlock("entry")
	res := bb.NewCall(user)
	tag := bb.NewExtractValue(res, 0)
	okBB := f.NewBlock("main.ok")
	errBB := f.NewBlock("main.err")
	isOk := bb.NewICmp(enum.IPredEQ, tag, constant.NewInt(irtypes.I32, 0))
	bb.NewCondBr(isOk, okBB, errBB)

	// Ok payload: an i32 exit code when main declares i32, otherwise 0.
	retStruct, okRet := user.Sig.RetType.(*irtypes.StructType)
	if okRet && len(retStruct.Fields) == 2 {
		tmp := bb.NewAlloca(retStruct)
		okBB.NewStore(res, tmp)
		data := okBB.NewGetElementPtr(retStruct, tmp, constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 1))
		if g.mainReturnsI32() {
			p := okBB.NewBitCast(data, irtypes.NewPointer(irtypes.I32))
			okBB.NewRet(okBB.NewLoad(irtypes.I32, p))
		} else {
			okBB.NewRet(constant.NewInt(irtypes.I32, 0))
		}
	} else {
		okBB.NewRet(constant.NewInt(irtypes.I32, 0))
	}
	errBB.NewRet(constant.NewInt(irtypes.I32, 1))
}

func (g *Generator) mainReturnsI32() bool {
	entry, ok := g.Tables.FunctionTable["main"]
	if !ok {
		return false
	}
	it, ok := entry.ReturnType.(*types.IntType)
	return ok && it.Width == 32 && it.Signed
}

// ---------------------------------------------------------------------
// Shared small helpers
// ---------------------------------------------------------------------

func (g *Generator) alloca(t irtypes.Type) *ir.InstAlloca {
	return g.entry.NewAlloca(t)
}

func (g *Generator) zeroValue(t irtypes.Type) constant.Constant {
	return constant.NewZeroInitializer(t)
}

// cstring interns a NUL-terminated rodata global and returns its i8*.
func (g *Generator) cstring(s string) constant.Constant {
	if c, ok := g.strs[s]; ok {
		return c
	}
	arr := constant.NewCharArrayFromString(s + "\x00")
	gl := g.mod.NewGlobalDef(fmt.Sprintf(".str.%d", g.strCount), arr)
	g.strCount++
	gl.Immutable = true
	gl.Linkage = enum.LinkagePrivate
	zero := constant.NewInt(irtypes.I64, 0)
	ptr := constant.NewGetElementPtr(arr.Typ, gl, zero, zero)
	g.strs[s] = ptr
	return ptr
}

// stringValue builds a %string fat-pointer value for a literal: constants
// live in rodata.
func (g *Generator) stringValue(s string) value.Value {
	ptr := g.cstring(s)
	v := value.Value(g.zeroValue(g.stringType()))
	v = g.block.NewInsertValue(v, ptr, 0)
	v = g.block.NewInsertValue(v, constant.NewInt(irtypes.I32, int64(len(s))), 1)
	return v
}

// semType reads the Pass 2 annotation off an expression node.
func semType(e ast.Expr) types.Type {
	if t, ok := e.ResolvedType().(types.Type); ok && t != nil {
		return t
	}
	return types.Blank
}

// sizeOfIR computes a target-accurate sizeof via the null-GEP idiom, so the
// collection helpers never bake in semantic size estimates.
func (g *Generator) sizeOfIR(bb *ir.Block, t irtypes.Type) value.Value {
	pt := irtypes.NewPointer(t)
	gep := bb.NewGetElementPtr(t, constant.NewNull(pt), constant.NewInt(irtypes.I32, 1))
	return bb.NewPtrToInt(gep, irtypes.I64)
}

// coerceI32 is the canonical integer-to-i32 conversion used for iterator
// indices, enum tags, and length fields; sign vs zero extension is selected
// by the semantic type, not the LLVM type.
func (g *Generator) coerceI32(v value.Value, from types.Type) value.Value {
	it, ok := from.(*types.IntType)
	if !ok {
		return v
	}
	switch {
	case it.Width == 32:
		return v
	case it.Width > 32:
		return g.block.NewTrunc(v, irtypes.I32)
	case it.Signed:
		return g.block.NewSExt(v, irtypes.I32)
	default:
		return g.block.NewZExt(v, irtypes.I32)
	}
}
