package llvm

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/types"
)

// Open-addressing entry tags.
const (
	hmEmpty     = 0
	hmOccupied  = 1
	hmTombstone = 2
)

// emitProviderCall lowers a method call on one of the built-in generic
// collections. The per-type helper
// functions are synthesized once per concrete instantiation and cached.
func (g *Generator) emitProviderCall(n *ast.CallExpr, base, method string) value.Value {
	callee, ok := n.Callee.(*ast.FieldExpr)
	if !ok {
		return g.emitArgsDiscard(n)
	}
	isStatic := method == "new" || method == "from" || method == "alloc"
	var args []types.Type
	if isStatic {
		if b, ga, found := genericArgsOf(semType(n)); found && b == base {
			args = ga
		}
	} else {
		if b, ga, found := genericArgsOf(derefType(semType(callee.Target))); found && b == base {
			args = ga
		}
	}
	if args == nil {
		return g.emitArgsDiscard(n)
	}

	switch base {
	case "List":
		return g.emitListMethod(n, callee, method, args[0], isStatic)
	case "HashMap":
		return g.emitHashMapMethod(n, callee, method, args[0], args[1], isStatic)
	case "Maybe":
		return g.emitMaybeMethod(n, callee, method, args[0])
	case "Result":
		return g.emitResultMethod(callee, method)
	case "Own":
		return g.emitOwnMethod(n, callee, method, args[0], isStatic)
	}
	return g.emitArgsDiscard(n)
}

func genericArgsOf(t types.Type) (string, []types.Type, bool) {
	switch v := t.(type) {
	case *types.DynamicArrayType:
		// T[] shares List<T>'s layout and method surface.
		return "List", []types.Type{v.Elem}, true
	case *types.StructType:
		if v.GenericBase != "" {
			return v.GenericBase, v.GenericArgs, true
		}
	case *types.EnumType:
		if v.GenericBase != "" {
			return v.GenericBase, v.GenericArgs, true
		}
	}
	return "", nil, false
}

// withNewFunc redirects emission into a fresh helper function's body, then
// restores the interrupted function's state.
func (g *Generator) withNewFunc(f *ir.Func, build func()) {
	savedFn, savedEntry, savedBlock := g.fn, g.entry, g.block
	savedFrame, savedLoops := g.frame, g.loops
	g.beginFunction(f)
	build()
	g.fn, g.entry, g.block = savedFn, savedEntry, savedBlock
	g.frame, g.loops = savedFrame, savedLoops
}

func gepf(bb *ir.Block, t irtypes.Type, p value.Value, field int64) value.Value {
	return bb.NewGetElementPtr(t, p,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, field))
}

func i32c(v int64) constant.Constant { return constant.NewInt(irtypes.I32, v) }
func i64c(v int64) constant.Constant { return constant.NewInt(irtypes.I64, v) }

// maybeEnum resolves the concrete Maybe<T> enum for helper return values.
func (g *Generator) maybeEnum(t types.Type) *types.EnumType {
	name := types.CanonicalName("Maybe", []types.Type{t})
	if et, ok := g.Tables.EnumTable[name]; ok {
		return et
	}
	if g.Tables.MonoTypeFn != nil {
		if et, ok := g.Tables.MonoTypeFn("Maybe", []types.Type{t}).(*types.EnumType); ok {
			return et
		}
	}
	return &types.EnumType{
		Name:        name,
		GenericBase: "Maybe",
		GenericArgs: []types.Type{t},
		Variants: []types.EnumVariant{
			{Name: "Some", Assoc: []types.Type{t}},
			{Name: "None"},
		},
	}
}

// ---------------------------------------------------------------------
// List<T> — `{i32 len, i32 cap, T*}` with an exclusively-owned buffer.
// ---------------------------------------------------------------------

func (g *Generator) emitListMethod(n *ast.CallExpr, callee *ast.FieldExpr, method string, elem types.Type, isStatic bool) value.Value {
	dt := g.dynArrayType(elem)
	switch method {
	case "new":
		return g.zeroValue(dt)
	case "from":
		// From a dynamic array, `from` is an ownership transfer (T[] and
		// List<T> share the `{i32, i32, T*}` layout); from a fixed-array
		// literal it's the fast-path copy into a fresh buffer.
		if _, isDyn := semType(n.Args[0]).(*types.DynamicArrayType); isDyn {
			v := g.emitExpr(n.Args[0])
			g.nullifyMovedSource(n.Args[0])
			return v
		}
		return g.emitDynArrayCtor(n, &types.DynamicArrayType{Elem: elem}, "from")
	}

	recvPtr, _ := g.emitAddr(callee.Target)
	switch method {
	case "push":
		v := g.convert(g.emitExpr(n.Args[0]), semType(n.Args[0]), elem)
		g.block.NewCall(g.listPushHelper(elem), recvPtr, v)
		return constant.NewInt(irtypes.I8, 0)
	case "pop":
		return g.block.NewCall(g.listPopHelper(elem), recvPtr)
	case "get":
		idx := g.coerceI32(g.rvalue(n.Args[0]), derefType(semType(n.Args[0])))
		return g.block.NewCall(g.listGetHelper(elem), recvPtr, idx)
	case "set":
		idx := g.coerceI32(g.rvalue(n.Args[0]), derefType(semType(n.Args[0])))
		v := g.convert(g.emitExpr(n.Args[1]), semType(n.Args[1]), elem)
		length := g.block.NewLoad(irtypes.I32, gepf(g.block, dt, recvPtr, 0))
		g.emitBoundsCheck(idx, length)
		data := g.block.NewLoad(irtypes.NewPointer(g.lowerType(elem)), gepf(g.block, dt, recvPtr, 2))
		g.block.NewStore(v, g.block.NewGetElementPtr(g.lowerType(elem), data, idx))
		return constant.NewInt(irtypes.I8, 0)
	case "len":
		return g.block.NewLoad(irtypes.I32, gepf(g.block, dt, recvPtr, 0))
	case "iter":
		it := g.iteratorType(elem)
		length := g.block.NewLoad(irtypes.I32, gepf(g.block, dt, recvPtr, 0))
		data := g.block.NewLoad(irtypes.NewPointer(g.lowerType(elem)), gepf(g.block, dt, recvPtr, 2))
		v := value.Value(g.zeroValue(it))
		v = g.block.NewInsertValue(v, length, 1)
		v = g.block.NewInsertValue(v, data, 2)
		return v
	case "destroy":
		g.emitFreeDynArray(recvPtr, elem)
		g.markDestroyed(callee.Target)
		return constant.NewInt(irtypes.I8, 0)
	}
	return g.emitArgsDiscard(n)
}

func (g *Generator) markDestroyed(recv ast.Expr) {
	if id, ok := recv.(*ast.Ident); ok {
		g.frame.markMoved(id.Name)
	}
}

func (g *Generator) listPushHelper(elem types.Type) *ir.Func {
	key := "list_push." + elem.String()
	if f, ok := g.helpers[key]; ok {
		return f
	}
	dt := g.dynArrayType(elem)
	et := g.lowerType(elem)
	f := g.mod.NewFunc("sushi_list_push__"+sanitizeSymbol(elem.String()), irtypes.Void,
		ir.NewParam("list", irtypes.NewPointer(dt)), ir.NewParam("v", et))
	f.Linkage = enum.LinkageInternal
	g.helpers[key] = f

	g.withNewFunc(f, func() {
		list, v := f.Params[0], f.Params[1]
		lenPtr := gepf(g.block, dt, list, 0)
		capPtr := gepf(g.block, dt, list, 1)
		dataPtr := gepf(g.block, dt, list, 2)
		length := g.block.NewLoad(irtypes.I32, lenPtr)
		capacity := g.block.NewLoad(irtypes.I32, capPtr)

		growBB := g.fn.NewBlock("grow")
		storeBB := g.fn.NewBlock("store")
		full := g.block.NewICmp(enum.IPredSGE, length, capacity)
		g.block.NewCondBr(full, growBB, storeBB)

		g.block = growBB
		isZero := g.block.NewICmp(enum.IPredEQ, capacity, i32c(0))
		doubled := g.block.NewMul(capacity, i32c(2))
		newCap := g.block.NewSelect(isZero, i32c(4), doubled)
		elemSize := g.sizeOfIR(g.block, et)
		bytes := g.block.NewMul(g.block.NewSExt(newCap, irtypes.I64), elemSize)
		old := g.block.NewLoad(irtypes.NewPointer(et), dataPtr)
		oldRaw := g.block.NewBitCast(old, irtypes.I8Ptr)
		newRaw := g.block.NewCall(g.rt["realloc"], oldRaw, bytes)
		g.block.NewStore(g.block.NewBitCast(newRaw, irtypes.NewPointer(et)), dataPtr)
		g.block.NewStore(newCap, capPtr)
		g.block.NewBr(storeBB)

		g.block = storeBB
		data := g.block.NewLoad(irtypes.NewPointer(et), dataPtr)
		g.block.NewStore(v, g.block.NewGetElementPtr(et, data, length))
		g.block.NewStore(g.block.NewAdd(length, i32c(1)), lenPtr)
		g.block.NewRet(nil)
	})
	return f
}

func (g *Generator) listPopHelper(elem types.Type) *ir.Func {
	key := "list_pop." + elem.String()
	if f, ok := g.helpers[key]; ok {
		return f
	}
	dt := g.dynArrayType(elem)
	et := g.lowerType(elem)
	me := g.maybeEnum(elem)
	f := g.mod.NewFunc("sushi_list_pop__"+sanitizeSymbol(elem.String()), g.lowerType(me),
		ir.NewParam("list", irtypes.NewPointer(dt)))
	f.Linkage = enum.LinkageInternal
	g.helpers[key] = f

	g.withNewFunc(f, func() {
		list := f.Params[0]
		lenPtr := gepf(g.block, dt, list, 0)
		length := g.block.NewLoad(irtypes.I32, lenPtr)
		emptyBB := g.fn.NewBlock("empty")
		someBB := g.fn.NewBlock("some")
		isEmpty := g.block.NewICmp(enum.IPredSLE, length, i32c(0))
		g.block.NewCondBr(isEmpty, emptyBB, someBB)

		g.block = emptyBB
		g.block.NewRet(g.buildEnum(me, 1, nil, nil))

		g.block = someBB
		last := g.block.NewSub(length, i32c(1))
		g.block.NewStore(last, lenPtr)
		data := g.block.NewLoad(irtypes.NewPointer(et), gepf(g.block, dt, list, 2))
		v := g.block.NewLoad(et, g.block.NewGetElementPtr(et, data, last))
		g.block.NewRet(g.buildEnum(me, 0, []value.Value{v}, []types.Type{elem}))
	})
	return f
}

func (g *Generator) listGetHelper(elem types.Type) *ir.Func {
	key := "list_get." + elem.String()
	if f, ok := g.helpers[key]; ok {
		return f
	}
	dt := g.dynArrayType(elem)
	et := g.lowerType(elem)
	me := g.maybeEnum(elem)
	f := g.mod.NewFunc("sushi_list_get__"+sanitizeSymbol(elem.String()), g.lowerType(me),
		ir.NewParam("list", irtypes.NewPointer(dt)), ir.NewParam("i", irtypes.I32))
	f.Linkage = enum.LinkageInternal
	g.helpers[key] = f

	g.withNewFunc(f, func() {
		list, idx := f.Params[0], f.Params[1]
		length := g.block.NewLoad(irtypes.I32, gepf(g.block, dt, list, 0))
		noneBB := g.fn.NewBlock("none")
		someBB := g.fn.NewBlock("some")
		neg := g.block.NewICmp(enum.IPredSLT, idx, i32c(0))
		over := g.block.NewICmp(enum.IPredSGE, idx, length)
		bad := g.block.NewOr(neg, over)
		g.block.NewCondBr(bad, noneBB, someBB)

		g.block = noneBB
		g.block.NewRet(g.buildEnum(me, 1, nil, nil))

		g.block = someBB
		data := g.block.NewLoad(irtypes.NewPointer(et), gepf(g.block, dt, list, 2))
		v := g.block.NewLoad(et, g.block.NewGetElementPtr(et, data, idx))
		g.block.NewRet(g.buildEnum(me, 0, []value.Value{v}, []types.Type{elem}))
	})
	return f
}

// ---------------------------------------------------------------------
// HashMap<K,V> — open addressing with linear probing, `{i32 tag, K, V}`
// entries, 0.75 load-factor resize to the next prime capacity.
// ---------------------------------------------------------------------

func (g *Generator) emitHashMapMethod(n *ast.CallExpr, callee *ast.FieldExpr, method string, k, v types.Type, isStatic bool) value.Value {
	mt := g.hashmapType(k, v)
	if method == "new" {
		return g.zeroValue(mt)
	}

	recvPtr, _ := g.emitAddr(callee.Target)
	switch method {
	case "insert":
		kv := g.convert(g.emitExpr(n.Args[0]), semType(n.Args[0]), k)
		vv := g.convert(g.emitExpr(n.Args[1]), semType(n.Args[1]), v)
		g.block.NewCall(g.hmInsertHelper(k, v), recvPtr, kv, vv)
		return constant.NewInt(irtypes.I8, 0)
	case "get":
		kv := g.convert(g.emitExpr(n.Args[0]), semType(n.Args[0]), k)
		return g.block.NewCall(g.hmGetHelper(k, v), recvPtr, kv)
	case "has":
		kv := g.convert(g.emitExpr(n.Args[0]), semType(n.Args[0]), k)
		m := g.block.NewCall(g.hmGetHelper(k, v), recvPtr, kv)
		tag := g.block.NewExtractValue(m, 0)
		return g.block.NewICmp(enum.IPredEQ, tag, i32c(0))
	case "remove":
		kv := g.convert(g.emitExpr(n.Args[0]), semType(n.Args[0]), k)
		return g.block.NewCall(g.hmRemoveHelper(k, v), recvPtr, kv)
	case "len":
		return g.block.NewLoad(irtypes.I32, gepf(g.block, mt, recvPtr, 0))
	case "keys":
		return g.block.NewCall(g.hmIterHelper(k, v, "keys"), recvPtr)
	case "values":
		return g.block.NewCall(g.hmIterHelper(k, v, "values"), recvPtr)
	case "entries":
		return g.block.NewCall(g.hmIterHelper(k, v, "entries"), recvPtr)
	case "destroy":
		g.emitFreeHashMap(recvPtr, k, v)
		g.markDestroyed(callee.Target)
		return constant.NewInt(irtypes.I8, 0)
	}
	return g.emitArgsDiscard(n)
}

// hmRehashHelper reallocates the entry array at newCap and reinserts every
// occupied slot (tombstones are dropped).
func (g *Generator) hmRehashHelper(k, v types.Type) *ir.Func {
	key := "hm_rehash." + k.String() + "," + v.String()
	if f, ok := g.helpers[key]; ok {
		return f
	}
	mt := g.hashmapType(k, v)
	ent := g.hashmapEntryType(k, v)
	entPtr := irtypes.NewPointer(ent)
	kt, vt := g.lowerType(k), g.lowerType(v)
	f := g.mod.NewFunc("sushi_hm_rehash__"+sanitizeSymbol(k.String())+"_"+sanitizeSymbol(v.String()),
		irtypes.Void, ir.NewParam("map", irtypes.NewPointer(mt)), ir.NewParam("newcap", irtypes.I32))
	f.Linkage = enum.LinkageInternal
	g.helpers[key] = f

	g.withNewFunc(f, func() {
		m, newCap := f.Params[0], f.Params[1]
		oldCap := g.block.NewLoad(irtypes.I32, gepf(g.block, mt, m, 1))
		oldData := g.block.NewLoad(entPtr, gepf(g.block, mt, m, 2))

		entSize := g.sizeOfIR(g.block, ent)
		bytes := g.block.NewMul(g.block.NewSExt(newCap, irtypes.I64), entSize)
		raw := g.block.NewCall(g.rt["malloc"], bytes)
		g.block.NewCall(g.rt["memset"], raw, i32c(0), bytes)
		newData := g.block.NewBitCast(raw, entPtr)

		iPtr := g.alloca(irtypes.I32)
		g.block.NewStore(i32c(0), iPtr)

		scanBB := g.fn.NewBlock("scan")
		slotBB := g.fn.NewBlock("slot")
		moveBB := g.fn.NewBlock("move")
		nextBB := g.fn.NewBlock("next")
		doneBB := g.fn.NewBlock("done")
		g.block.NewBr(scanBB)

		g.block = scanBB
		i := g.block.NewLoad(irtypes.I32, iPtr)
		inBounds := g.block.NewICmp(enum.IPredSLT, i, oldCap)
		g.block.NewCondBr(inBounds, slotBB, doneBB)

		g.block = slotBB
		slot := g.block.NewGetElementPtr(ent, oldData, i)
		tag := g.block.NewLoad(irtypes.I32, gepf(g.block, ent, slot, 0))
		occupied := g.block.NewICmp(enum.IPredEQ, tag, i32c(hmOccupied))
		g.block.NewCondBr(occupied, moveBB, nextBB)

		g.block = moveBB
		kv := g.block.NewLoad(kt, gepf(g.block, ent, slot, 1))
		vv := g.block.NewLoad(vt, gepf(g.block, ent, slot, 2))
		// Probe the new array; it has no tombstones and spare capacity, so an
		// empty slot always exists.
		h := g.block.NewTrunc(g.emitHashValue(kv, k), irtypes.I32)
		jPtr := g.alloca(irtypes.I32)
		g.block.NewStore(g.block.NewURem(h, newCap), jPtr)
		probeBB := g.fn.NewBlock("probe")
		placeBB := g.fn.NewBlock("place")
		stepBB := g.fn.NewBlock("step")
		g.block.NewBr(probeBB)

		g.block = probeBB
		j := g.block.NewLoad(irtypes.I32, jPtr)
		dst := g.block.NewGetElementPtr(ent, newData, j)
		dstTag := g.block.NewLoad(irtypes.I32, gepf(g.block, ent, dst, 0))
		empty := g.block.NewICmp(enum.IPredEQ, dstTag, i32c(hmEmpty))
		g.block.NewCondBr(empty, placeBB, stepBB)

		g.block = stepBB
		jn := g.block.NewURem(g.block.NewAdd(j, i32c(1)), newCap)
		g.block.NewStore(jn, jPtr)
		g.block.NewBr(probeBB)

		g.block = placeBB
		g.block.NewStore(i32c(hmOccupied), gepf(g.block, ent, dst, 0))
		g.block.NewStore(kv, gepf(g.block, ent, dst, 1))
		g.block.NewStore(vv, gepf(g.block, ent, dst, 2))
		g.block.NewBr(nextBB)

		g.block = nextBB
		g.block.NewStore(g.block.NewAdd(i, i32c(1)), iPtr)
		g.block.NewBr(scanBB)

		g.block = doneBB
		oldRaw := g.block.NewBitCast(oldData, irtypes.I8Ptr)
		notNull := g.block.NewICmp(enum.IPredNE, oldData, constant.NewNull(entPtr))
		freeBB := g.fn.NewBlock("free")
		finBB := g.fn.NewBlock("fin")
		g.block.NewCondBr(notNull, freeBB, finBB)
		g.block = freeBB
		g.block.NewCall(g.rt["free"], oldRaw)
		g.block.NewBr(finBB)
		g.block = finBB
		g.block.NewStore(newCap, gepf(g.block, mt, m, 1))
		g.block.NewStore(newData, gepf(g.block, mt, m, 2))
		g.block.NewRet(nil)
	})
	return f
}

func (g *Generator) hmInsertHelper(k, v types.Type) *ir.Func {
	key := "hm_insert." + k.String() + "," + v.String()
	if f, ok := g.helpers[key]; ok {
		return f
	}
	mt := g.hashmapType(k, v)
	ent := g.hashmapEntryType(k, v)
	entPtr := irtypes.NewPointer(ent)
	kt, vt := g.lowerType(k), g.lowerType(v)
	f := g.mod.NewFunc("sushi_hm_insert__"+sanitizeSymbol(k.String())+"_"+sanitizeSymbol(v.String()),
		irtypes.Void, ir.NewParam("map", irtypes.NewPointer(mt)),
		ir.NewParam("key", kt), ir.NewParam("val", vt))
	f.Linkage = enum.LinkageInternal
	g.helpers[key] = f
	rehash := g.hmRehashHelper(k, v)

	g.withNewFunc(f, func() {
		m, kv, vv := f.Params[0], f.Params[1], f.Params[2]
		capPtr := gepf(g.block, mt, m, 1)
		lenPtr := gepf(g.block, mt, m, 0)

		// Initial allocation.
		cap0 := g.block.NewLoad(irtypes.I32, capPtr)
		seedBB := g.fn.NewBlock("seed")
		sizedBB := g.fn.NewBlock("sized")
		isZero := g.block.NewICmp(enum.IPredEQ, cap0, i32c(0))
		g.block.NewCondBr(isZero, seedBB, sizedBB)
		g.block = seedBB
		g.block.NewCall(rehash, m, i32c(11))
		g.block.NewBr(sizedBB)

		// 0.75 load factor: (len+1)*4 > cap*3 triggers a resize.
		g.block = sizedBB
		length := g.block.NewLoad(irtypes.I32, lenPtr)
		capacity := g.block.NewLoad(irtypes.I32, capPtr)
		lhs := g.block.NewMul(g.block.NewAdd(length, i32c(1)), i32c(4))
		rhs := g.block.NewMul(capacity, i32c(3))
		growBB := g.fn.NewBlock("grow")
		probeEntryBB := g.fn.NewBlock("probe.entry")
		needGrow := g.block.NewICmp(enum.IPredSGT, lhs, rhs)
		g.block.NewCondBr(needGrow, growBB, probeEntryBB)
		g.block = growBB
		next := g.block.NewCall(g.rt["sushi_next_prime"], capacity)
		g.block.NewCall(rehash, m, next)
		g.block.NewBr(probeEntryBB)

		g.block = probeEntryBB
		capNow := g.block.NewLoad(irtypes.I32, capPtr)
		data := g.block.NewLoad(entPtr, gepf(g.block, mt, m, 2))
		h := g.block.NewTrunc(g.emitHashValue(kv, k), irtypes.I32)
		iPtr := g.alloca(irtypes.I32)
		g.block.NewStore(g.block.NewURem(h, capNow), iPtr)

		probeBB := g.fn.NewBlock("probe")
		emptyBB := g.fn.NewBlock("empty")
		occBB := g.fn.NewBlock("occupied")
		matchBB := g.fn.NewBlock("match")
		stepBB := g.fn.NewBlock("step")
		g.block.NewBr(probeBB)

		g.block = probeBB
		i := g.block.NewLoad(irtypes.I32, iPtr)
		slot := g.block.NewGetElementPtr(ent, data, i)
		tag := g.block.NewLoad(irtypes.I32, gepf(g.block, ent, slot, 0))
		isEmpty := g.block.NewICmp(enum.IPredNE, tag, i32c(hmOccupied))
		g.block.NewCondBr(isEmpty, emptyBB, occBB)

		// Empty or tombstone: claim the slot.
		g.block = emptyBB
		g.block.NewStore(i32c(hmOccupied), gepf(g.block, ent, slot, 0))
		g.block.NewStore(kv, gepf(g.block, ent, slot, 1))
		g.block.NewStore(vv, gepf(g.block, ent, slot, 2))
		lenNow := g.block.NewLoad(irtypes.I32, lenPtr)
		g.block.NewStore(g.block.NewAdd(lenNow, i32c(1)), lenPtr)
		g.block.NewRet(nil)

		g.block = occBB
		existing := g.block.NewLoad(kt, gepf(g.block, ent, slot, 1))
		same := g.emitKeyEq(existing, kv, k)
		g.block.NewCondBr(same, matchBB, stepBB)

		// Same key: overwrite the value, size unchanged.
		g.block = matchBB
		g.block.NewStore(vv, gepf(g.block, ent, slot, 2))
		g.block.NewRet(nil)

		g.block = stepBB
		in := g.block.NewURem(g.block.NewAdd(i, i32c(1)), capNow)
		g.block.NewStore(in, iPtr)
		g.block.NewBr(probeBB)
	})
	return f
}

func (g *Generator) hmGetHelper(k, v types.Type) *ir.Func {
	key := "hm_get." + k.String() + "," + v.String()
	if f, ok := g.helpers[key]; ok {
		return f
	}
	mt := g.hashmapType(k, v)
	ent := g.hashmapEntryType(k, v)
	entPtr := irtypes.NewPointer(ent)
	kt, vt := g.lowerType(k), g.lowerType(v)
	me := g.maybeEnum(v)
	f := g.mod.NewFunc("sushi_hm_get__"+sanitizeSymbol(k.String())+"_"+sanitizeSymbol(v.String()),
		g.lowerType(me), ir.NewParam("map", irtypes.NewPointer(mt)), ir.NewParam("key", kt))
	f.Linkage = enum.LinkageInternal
	g.helpers[key] = f

	g.withNewFunc(f, func() {
		m, kv := f.Params[0], f.Params[1]
		capacity := g.block.NewLoad(irtypes.I32, gepf(g.block, mt, m, 1))
		noneBB := g.fn.NewBlock("none")
		probeEntryBB := g.fn.NewBlock("probe.entry")
		isZero := g.block.NewICmp(enum.IPredEQ, capacity, i32c(0))
		g.block.NewCondBr(isZero, noneBB, probeEntryBB)

		g.block = probeEntryBB
		data := g.block.NewLoad(entPtr, gepf(g.block, mt, m, 2))
		h := g.block.NewTrunc(g.emitHashValue(kv, k), irtypes.I32)
		iPtr := g.alloca(irtypes.I32)
		cPtr := g.alloca(irtypes.I32)
		g.block.NewStore(g.block.NewURem(h, capacity), iPtr)
		g.block.NewStore(i32c(0), cPtr)

		probeBB := g.fn.NewBlock("probe")
		slotBB := g.fn.NewBlock("slot")
		occBB := g.fn.NewBlock("occupied")
		someBB := g.fn.NewBlock("some")
		stepBB := g.fn.NewBlock("step")
		g.block.NewBr(probeBB)

		// A full scan without a hit terminates the probe.
		g.block = probeBB
		c := g.block.NewLoad(irtypes.I32, cPtr)
		exhausted := g.block.NewICmp(enum.IPredSGE, c, capacity)
		g.block.NewCondBr(exhausted, noneBB, slotBB)

		g.block = slotBB
		i := g.block.NewLoad(irtypes.I32, iPtr)
		slot := g.block.NewGetElementPtr(ent, data, i)
		tag := g.block.NewLoad(irtypes.I32, gepf(g.block, ent, slot, 0))
		isEmpty := g.block.NewICmp(enum.IPredEQ, tag, i32c(hmEmpty))
		g.block.NewCondBr(isEmpty, noneBB, occBB)

		g.block = occBB
		occupied := g.block.NewICmp(enum.IPredEQ, tag, i32c(hmOccupied))
		existing := g.block.NewLoad(kt, gepf(g.block, ent, slot, 1))
		same := g.emitKeyEq(existing, kv, k)
		hit := g.block.NewAnd(occupied, same)
		g.block.NewCondBr(hit, someBB, stepBB)

		g.block = someBB
		vv := g.block.NewLoad(vt, gepf(g.block, ent, slot, 2))
		g.block.NewRet(g.buildEnum(me, 0, []value.Value{vv}, []types.Type{v}))

		g.block = stepBB
		in := g.block.NewURem(g.block.NewAdd(i, i32c(1)), capacity)
		g.block.NewStore(in, iPtr)
		g.block.NewStore(g.block.NewAdd(c, i32c(1)), cPtr)
		g.block.NewBr(probeBB)

		g.block = noneBB
		g.block.NewRet(g.buildEnum(me, 1, nil, nil))
	})
	return f
}

func (g *Generator) hmRemoveHelper(k, v types.Type) *ir.Func {
	key := "hm_remove." + k.String() + "," + v.String()
	if f, ok := g.helpers[key]; ok {
		return f
	}
	mt := g.hashmapType(k, v)
	ent := g.hashmapEntryType(k, v)
	entPtr := irtypes.NewPointer(ent)
	kt := g.lowerType(k)
	f := g.mod.NewFunc("sushi_hm_remove__"+sanitizeSymbol(k.String())+"_"+sanitizeSymbol(v.String()),
		irtypes.I1, ir.NewParam("map", irtypes.NewPointer(mt)), ir.NewParam("key", kt))
	f.Linkage = enum.LinkageInternal
	g.helpers[key] = f

	g.withNewFunc(f, func() {
		m, kv := f.Params[0], f.Params[1]
		capacity := g.block.NewLoad(irtypes.I32, gepf(g.block, mt, m, 1))
		missBB := g.fn.NewBlock("miss")
		probeEntryBB := g.fn.NewBlock("probe.entry")
		isZero := g.block.NewICmp(enum.IPredEQ, capacity, i32c(0))
		g.block.NewCondBr(isZero, missBB, probeEntryBB)

		g.block = probeEntryBB
		data := g.block.NewLoad(entPtr, gepf(g.block, mt, m, 2))
		h := g.block.NewTrunc(g.emitHashValue(kv, k), irtypes.I32)
		iPtr := g.alloca(irtypes.I32)
		cPtr := g.alloca(irtypes.I32)
		g.block.NewStore(g.block.NewURem(h, capacity), iPtr)
		g.block.NewStore(i32c(0), cPtr)

		probeBB := g.fn.NewBlock("probe")
		slotBB := g.fn.NewBlock("slot")
		occBB := g.fn.NewBlock("occupied")
		hitBB := g.fn.NewBlock("hit")
		stepBB := g.fn.NewBlock("step")
		g.block.NewBr(probeBB)

		g.block = probeBB
		c := g.block.NewLoad(irtypes.I32, cPtr)
		exhausted := g.block.NewICmp(enum.IPredSGE, c, capacity)
		g.block.NewCondBr(exhausted, missBB, slotBB)

		g.block = slotBB
		i := g.block.NewLoad(irtypes.I32, iPtr)
		slot := g.block.NewGetElementPtr(ent, data, i)
		tag := g.block.NewLoad(irtypes.I32, gepf(g.block, ent, slot, 0))
		isEmpty := g.block.NewICmp(enum.IPredEQ, tag, i32c(hmEmpty))
		g.block.NewCondBr(isEmpty, missBB, occBB)

		g.block = occBB
		occupied := g.block.NewICmp(enum.IPredEQ, tag, i32c(hmOccupied))
		existing := g.block.NewLoad(kt, gepf(g.block, ent, slot, 1))
		same := g.emitKeyEq(existing, kv, k)
		hit := g.block.NewAnd(occupied, same)
		g.block.NewCondBr(hit, hitBB, stepBB)

		// Tombstone the slot so later probes keep walking past it.
		g.block = hitBB
		g.block.NewStore(i32c(hmTombstone), gepf(g.block, ent, slot, 0))
		lenPtr := gepf(g.block, mt, m, 0)
		lenNow := g.block.NewLoad(irtypes.I32, lenPtr)
		g.block.NewStore(g.block.NewSub(lenNow, i32c(1)), lenPtr)
		g.block.NewRet(constant.True)

		g.block = stepBB
		in := g.block.NewURem(g.block.NewAdd(i, i32c(1)), capacity)
		g.block.NewStore(in, iPtr)
		g.block.NewStore(g.block.NewAdd(c, i32c(1)), cPtr)
		g.block.NewBr(probeBB)

		g.block = missBB
		g.block.NewRet(constant.False)
	})
	return f
}

// hmIterHelper materializes a dense buffer of keys/values/entries and tags
// the iterator's capacity field with the provenance bits; the buffer is
// dense, so foreach's next is the uniform memory walk.
func (g *Generator) hmIterHelper(k, v types.Type, kind string) *ir.Func {
	key := "hm_" + kind + "." + k.String() + "," + v.String()
	if f, ok := g.helpers[key]; ok {
		return f
	}
	mt := g.hashmapType(k, v)
	ent := g.hashmapEntryType(k, v)
	entPtr := irtypes.NewPointer(ent)
	kt, vt := g.lowerType(k), g.lowerType(v)

	var elemType types.Type
	var flag uint32
	switch kind {
	case "keys":
		elemType = k
		flag = iterFlagHashMap
	case "values":
		elemType = v
		flag = iterFlagValues
	default:
		elemType = g.pairType(k, v)
		flag = iterFlagEntries
	}
	elemTy := g.lowerType(elemType)
	iterTy := g.iteratorType(elemType)

	f := g.mod.NewFunc("sushi_hm_"+kind+"__"+sanitizeSymbol(k.String())+"_"+sanitizeSymbol(v.String()),
		iterTy, ir.NewParam("map", irtypes.NewPointer(mt)))
	f.Linkage = enum.LinkageInternal
	g.helpers[key] = f

	g.withNewFunc(f, func() {
		m := f.Params[0]
		count := g.block.NewLoad(irtypes.I32, gepf(g.block, mt, m, 0))
		capacity := g.block.NewLoad(irtypes.I32, gepf(g.block, mt, m, 1))
		data := g.block.NewLoad(entPtr, gepf(g.block, mt, m, 2))

		elemSize := g.sizeOfIR(g.block, elemTy)
		bytes := g.block.NewMul(g.block.NewSExt(count, irtypes.I64), elemSize)
		raw := g.block.NewCall(g.rt["malloc"], bytes)
		buf := g.block.NewBitCast(raw, irtypes.NewPointer(elemTy))

		iPtr := g.alloca(irtypes.I32)
		oPtr := g.alloca(irtypes.I32)
		g.block.NewStore(i32c(0), iPtr)
		g.block.NewStore(i32c(0), oPtr)

		scanBB := g.fn.NewBlock("scan")
		slotBB := g.fn.NewBlock("slot")
		copyBB := g.fn.NewBlock("copy")
		nextBB := g.fn.NewBlock("next")
		doneBB := g.fn.NewBlock("done")
		g.block.NewBr(scanBB)

		g.block = scanBB
		i := g.block.NewLoad(irtypes.I32, iPtr)
		inBounds := g.block.NewICmp(enum.IPredSLT, i, capacity)
		g.block.NewCondBr(inBounds, slotBB, doneBB)

		g.block = slotBB
		slot := g.block.NewGetElementPtr(ent, data, i)
		tag := g.block.NewLoad(irtypes.I32, gepf(g.block, ent, slot, 0))
		occupied := g.block.NewICmp(enum.IPredEQ, tag, i32c(hmOccupied))
		g.block.NewCondBr(occupied, copyBB, nextBB)

		g.block = copyBB
		o := g.block.NewLoad(irtypes.I32, oPtr)
		var item value.Value
		switch kind {
		case "keys":
			item = g.block.NewLoad(kt, gepf(g.block, ent, slot, 1))
		case "values":
			item = g.block.NewLoad(vt, gepf(g.block, ent, slot, 2))
		default:
			kv := g.block.NewLoad(kt, gepf(g.block, ent, slot, 1))
			vv := g.block.NewLoad(vt, gepf(g.block, ent, slot, 2))
			pair := value.Value(g.zeroValue(elemTy))
			pair = g.block.NewInsertValue(pair, kv, 0)
			pair = g.block.NewInsertValue(pair, vv, 1)
			item = pair
		}
		g.block.NewStore(item, g.block.NewGetElementPtr(elemTy, buf, o))
		g.block.NewStore(g.block.NewAdd(o, i32c(1)), oPtr)
		g.block.NewBr(nextBB)

		g.block = nextBB
		g.block.NewStore(g.block.NewAdd(i, i32c(1)), iPtr)
		g.block.NewBr(scanBB)

		g.block = doneBB
		tagged := g.block.NewOr(count, constant.NewInt(irtypes.I32, int64(int32(flag))))
		out := value.Value(g.zeroValue(iterTy))
		out = g.block.NewInsertValue(out, constant.NewInt(irtypes.I32, 0), 0)
		out = g.block.NewInsertValue(out, tagged, 1)
		out = g.block.NewInsertValue(out, buf, 2)
		g.block.NewRet(out)
	})
	return f
}

// pairType resolves the Pair<K,V> struct carried by entries iterators.
func (g *Generator) pairType(k, v types.Type) types.Type {
	if g.Tables.MonoTypeFn != nil {
		if st, ok := g.Tables.MonoTypeFn("Pair", []types.Type{k, v}).(*types.StructType); ok {
			return st
		}
	}
	return &types.StructType{
		Name:        types.CanonicalName("Pair", []types.Type{k, v}),
		GenericBase: "Pair",
		GenericArgs: []types.Type{k, v},
		Fields: []types.StructField{
			{Name: "key", Type: k},
			{Name: "value", Type: v},
		},
	}
}

// ---------------------------------------------------------------------
// Maybe<T> / Result<T,E> — tag inspection on the enum value.
// ---------------------------------------------------------------------

func (g *Generator) emitMaybeMethod(n *ast.CallExpr, callee *ast.FieldExpr, method string, t types.Type) value.Value {
	recv := g.rvalue(callee.Target)
	tag := g.block.NewExtractValue(recv, 0)
	switch method {
	case "is_some":
		return g.block.NewICmp(enum.IPredEQ, tag, i32c(0))
	case "is_none":
		return g.block.NewICmp(enum.IPredNE, tag, i32c(0))
	case "realise":
		et, ok := derefType(semType(callee.Target)).(*types.EnumType)
		if !ok {
			return g.emitArgsDiscard(n)
		}
		lt := g.lowerType(et)
		tmp := g.alloca(lt)
		g.block.NewStore(recv, tmp)
		tt := g.lowerType(t)
		payload := g.block.NewLoad(tt, g.enumPayloadPtr(tmp, lt, 0, tt))
		dflt := g.convert(g.emitExpr(n.Args[0]), semType(n.Args[0]), t)
		isSome := g.block.NewICmp(enum.IPredEQ, tag, i32c(0))
		return g.block.NewSelect(isSome, payload, dflt)
	case "map":
		et, ok := derefType(semType(callee.Target)).(*types.EnumType)
		if !ok {
			return g.emitArgsDiscard(n)
		}
		lt := g.lowerType(et)
		tmp := g.alloca(lt)
		g.block.NewStore(recv, tmp)
		nv := g.convert(g.emitExpr(n.Args[0]), semType(n.Args[0]), t)
		someBB := g.fn.NewBlock("")
		doneBB := g.fn.NewBlock("")
		isSome := g.block.NewICmp(enum.IPredEQ, tag, i32c(0))
		g.block.NewCondBr(isSome, someBB, doneBB)
		g.block = someBB
		tt := g.lowerType(t)
		g.block.NewStore(nv, g.enumPayloadPtr(tmp, lt, 0, tt))
		g.block.NewBr(doneBB)
		g.block = doneBB
		return g.block.NewLoad(lt, tmp)
	}
	return g.emitArgsDiscard(n)
}

func (g *Generator) emitResultMethod(callee *ast.FieldExpr, method string) value.Value {
	recv := g.rvalue(callee.Target)
	tag := g.block.NewExtractValue(recv, 0)
	if method == "is_err" {
		return g.block.NewICmp(enum.IPredNE, tag, i32c(0))
	}
	return g.block.NewICmp(enum.IPredEQ, tag, i32c(0))
}

// ---------------------------------------------------------------------
// Own<T> — single-owner heap box; the runtime value is the raw pointer.
// ---------------------------------------------------------------------

func (g *Generator) emitOwnMethod(n *ast.CallExpr, callee *ast.FieldExpr, method string, t types.Type, isStatic bool) value.Value {
	et := g.lowerType(t)
	switch method {
	case "alloc":
		v := g.convert(g.emitExpr(n.Args[0]), semType(n.Args[0]), t)
		size := g.sizeOfIR(g.block, et)
		raw := g.block.NewCall(g.rt["malloc"], size)
		box := g.block.NewBitCast(raw, irtypes.NewPointer(et))
		g.block.NewStore(v, box)
		g.nullifyMovedSource(n.Args[0])
		return box
	case "get":
		// The box pointer doubles as the &poke T reference.
		return g.rvalue(callee.Target)
	case "destroy":
		recvPtr, _ := g.emitAddr(callee.Target)
		g.emitFreeOwn(recvPtr, t)
		g.markDestroyed(callee.Target)
		return constant.NewInt(irtypes.I8, 0)
	}
	return g.emitArgsDiscard(n)
}
