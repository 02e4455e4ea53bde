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

// emitExpr lowers one expression to a value.
func (g *Generator) emitExpr(e ast.Expr) value.Value {
	switch n := e.(type) {
	case *ast.IntLiteral:
		it, ok := g.lowerType(semType(n)).(*irtypes.IntType)
		if !ok {
			it = irtypes.I32
		}
		return constant.NewInt(it, n.Value)
	case *ast.FloatLiteral:
		ft, ok := g.lowerType(semType(n)).(*irtypes.FloatType)
		if !ok {
			ft = irtypes.Double
		}
		return constant.NewFloat(ft, n.Value)
	case *ast.StringLiteral:
		return g.stringValue(n.Value)
	case *ast.BoolLiteral:
		return constant.NewBool(n.Value)
	case *ast.NilLiteral:
		return constant.NewNull(irtypes.I8Ptr)
	case *ast.BlankLiteral:
		return constant.NewInt(irtypes.I8, 0)
	case *ast.ArrayLiteral:
		return g.emitArrayLiteral(n)
	case *ast.Ident:
		return g.emitIdent(n)
	case *ast.PrefixExpr:
		return g.emitPrefix(n)
	case *ast.InfixExpr:
		return g.emitInfix(n)
	case *ast.RefExpr:
		addr, _ := g.emitAddr(n.Target)
		return addr
	case *ast.CallExpr:
		return g.emitCall(n)
	case *ast.FieldExpr:
		return g.emitField(n)
	case *ast.IndexExpr:
		addr, elemTy := g.indexAddr(n)
		return g.block.NewLoad(elemTy, addr)
	case *ast.CastExpr:
		v := g.rvalue(n.Value)
		return g.convert(v, derefType(semType(n.Value)), semType(n))
	case *ast.TryExpr:
		return g.emitTry(n)
	case *ast.IfExpr:
		return g.emitIf(n)
	case *ast.MatchExpr:
		return g.emitMatch(n)
	case *ast.BlockExpr:
		return g.emitBlockValue(n)
	case *ast.PrintlnExpr:
		g.emitPrintln(n)
		return constant.NewInt(irtypes.I8, 0)
	default:
		return constant.NewInt(irtypes.I8, 0)
	}
}

// rvalue emits e and dereferences once when e's semantic type is a
// reference: a reference slot holds the pointer itself, loaded once more
// when the underlying value is needed.
func (g *Generator) rvalue(e ast.Expr) value.Value {
	v := g.emitExpr(e)
	if ref, ok := semType(e).(*types.ReferenceType); ok {
		return g.block.NewLoad(g.lowerType(ref.Referenced), v)
	}
	return v
}

func derefType(t types.Type) types.Type {
	if ref, ok := t.(*types.ReferenceType); ok {
		return ref.Referenced
	}
	return t
}

func (g *Generator) emitIdent(n *ast.Ident) value.Value {
	if s, ok := g.frame.lookup(n.Name); ok {
		return g.block.NewLoad(slotElemType(s, g), s.ptr)
	}
	if entry, ok := g.Tables.ConstantTable[n.Name]; ok {
		return g.constantValue(entry)
	}
	switch n.Name {
	case "stdin", "stdout", "stderr":
		return g.loadStdStream(n.Name)
	}
	return constant.NewInt(irtypes.I8, 0)
}

func slotElemType(s *slot, g *Generator) irtypes.Type {
	return g.lowerType(s.typ)
}

func (g *Generator) constantValue(entry *types.ConstantEntry) value.Value {
	switch v := entry.Value.(type) {
	case int64:
		if it, ok := g.lowerType(entry.Type).(*irtypes.IntType); ok {
			return constant.NewInt(it, v)
		}
		return constant.NewInt(irtypes.I32, v)
	case float64:
		if ft, ok := g.lowerType(entry.Type).(*irtypes.FloatType); ok {
			return constant.NewFloat(ft, v)
		}
		return constant.NewFloat(irtypes.Double, v)
	case bool:
		return constant.NewBool(v)
	case string:
		return g.stringValue(v)
	default:
		return constant.NewInt(irtypes.I8, 0)
	}
}

// loadStdStream loads the libc FILE* global for a stream builtin.
func (g *Generator) loadStdStream(name string) value.Value {
	gl, ok := g.streamGlobals()[name]
	if !ok {
		return constant.NewNull(irtypes.I8Ptr)
	}
	return g.block.NewLoad(irtypes.I8Ptr, gl)
}

func (g *Generator) streamGlobals() map[string]value.Value {
	if g.streams == nil {
		g.streams = map[string]value.Value{}
		for _, name := range []string{"stdin", "stdout", "stderr"} {
			gl := g.mod.NewGlobal(name, irtypes.I8Ptr)
			gl.Linkage = enum.LinkageExternal
			g.streams[name] = gl
		}
	}
	return g.streams
}

func (g *Generator) emitArrayLiteral(n *ast.ArrayLiteral) value.Value {
	at, ok := semType(n).(*types.ArrayType)
	if !ok {
		return constant.NewInt(irtypes.I8, 0)
	}
	lt := g.lowerType(at)
	tmp := g.alloca(lt)
	g.block.NewStore(g.zeroValue(lt), tmp)
	for i, el := range n.Elements {
		v := g.convert(g.emitExpr(el), semType(el), at.Elem)
		p := g.block.NewGetElementPtr(lt, tmp,
			constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, int64(i)))
		g.block.NewStore(v, p)
	}
	return g.block.NewLoad(lt, tmp)
}

func (g *Generator) emitPrefix(n *ast.PrefixExpr) value.Value {
	v := g.rvalue(n.Right)
	t := derefType(semType(n.Right))
	switch n.Op {
	case "-":
		if _, ok := t.(*types.FloatType); ok {
			ft := g.lowerType(t).(*irtypes.FloatType)
			return g.block.NewFSub(constant.NewFloat(ft, 0), v)
		}
		it, ok := g.lowerType(t).(*irtypes.IntType)
		if !ok {
			it = irtypes.I32
		}
		return g.block.NewSub(constant.NewInt(it, 0), v)
	case "!":
		return g.block.NewXor(v, constant.True)
	default:
		return v
	}
}

// emitInfix dispatches on the operands' semantic type: signed vs unsigned
// integer variants chosen by the declared type, float variants for floats,
// i1 comparisons, and the string helpers for `+`/`==`/`!=`.
func (g *Generator) emitInfix(n *ast.InfixExpr) value.Value {
	a := g.rvalue(n.Left)
	b := g.rvalue(n.Right)
	t := derefType(semType(n.Left))

	switch v := t.(type) {
	case *types.IntType:
		return g.emitIntOp(n.Op, a, b, v.Signed)
	case *types.FloatType:
		return g.emitFloatOp(n.Op, a, b)
	case *types.BoolType:
		switch n.Op {
		case "&&":
			return g.block.NewAnd(a, b)
		case "||":
			return g.block.NewOr(a, b)
		case "==":
			return g.block.NewICmp(enum.IPredEQ, a, b)
		case "!=":
			return g.block.NewICmp(enum.IPredNE, a, b)
		}
	case *types.StringType:
		switch n.Op {
		case "+":
			return g.block.NewCall(g.rt["sushi_string_concat"], a, b)
		case "==":
			return g.block.NewCall(g.rt["sushi_string_eq"], a, b)
		case "!=":
			eq := g.block.NewCall(g.rt["sushi_string_eq"], a, b)
			return g.block.NewXor(eq, constant.True)
		}
	}
	return a
}

func (g *Generator) emitIntOp(op string, a, b value.Value, signed bool) value.Value {
	switch op {
	case "+":
		return g.block.NewAdd(a, b)
	case "-":
		return g.block.NewSub(a, b)
	case "*":
		return g.block.NewMul(a, b)
	case "/":
		if signed {
			return g.block.NewSDiv(a, b)
		}
		return g.block.NewUDiv(a, b)
	case "%":
		if signed {
			return g.block.NewSRem(a, b)
		}
		return g.block.NewURem(a, b)
	case "&":
		return g.block.NewAnd(a, b)
	case "|":
		return g.block.NewOr(a, b)
	case "^":
		return g.block.NewXor(a, b)
	case "<<":
		return g.block.NewShl(a, b)
	case ">>":
		if signed {
			return g.block.NewAShr(a, b)
		}
		return g.block.NewLShr(a, b)
	case "==":
		return g.block.NewICmp(enum.IPredEQ, a, b)
	case "!=":
		return g.block.NewICmp(enum.IPredNE, a, b)
	case "<":
		if signed {
			return g.block.NewICmp(enum.IPredSLT, a, b)
		}
		return g.block.NewICmp(enum.IPredULT, a, b)
	case "<=":
		if signed {
			return g.block.NewICmp(enum.IPredSLE, a, b)
		}
		return g.block.NewICmp(enum.IPredULE, a, b)
	case ">":
		if signed {
			return g.block.NewICmp(enum.IPredSGT, a, b)
		}
		return g.block.NewICmp(enum.IPredUGT, a, b)
	case ">=":
		if signed {
			return g.block.NewICmp(enum.IPredSGE, a, b)
		}
		return g.block.NewICmp(enum.IPredUGE, a, b)
	default:
		return a
	}
}

func (g *Generator) emitFloatOp(op string, a, b value.Value) value.Value {
	switch op {
	case "+":
		return g.block.NewFAdd(a, b)
	case "-":
		return g.block.NewFSub(a, b)
	case "*":
		return g.block.NewFMul(a, b)
	case "/":
		return g.block.NewFDiv(a, b)
	case "%":
		return g.block.NewFRem(a, b)
	case "==":
		return g.block.NewFCmp(enum.FPredOEQ, a, b)
	case "!=":
		return g.block.NewFCmp(enum.FPredONE, a, b)
	case "<":
		return g.block.NewFCmp(enum.FPredOLT, a, b)
	case "<=":
		return g.block.NewFCmp(enum.FPredOLE, a, b)
	case ">":
		return g.block.NewFCmp(enum.FPredOGT, a, b)
	case ">=":
		return g.block.NewFCmp(enum.FPredOGE, a, b)
	default:
		return a
	}
}

// convert implements the cast matrix of /: integer extend/truncate
// (sext for signed sources, zext for unsigned), sitofp/fptosi and friends,
// fpext/fptrunc, int<->bool.
func (g *Generator) convert(v value.Value, from, to types.Type) value.Value {
	if v == nil || from == nil || to == nil || types.Equal(from, to) {
		return v
	}
	// ResultType marker vs resolved concrete Result enum are the same value.
	if _, ok := from.(*types.ResultType); ok {
		return v
	}
	if _, ok := to.(*types.ResultType); ok {
		return v
	}

	switch f := from.(type) {
	case *types.IntType:
		switch t := to.(type) {
		case *types.IntType:
			switch {
			case t.Width == f.Width:
				return v
			case t.Width < f.Width:
				return g.block.NewTrunc(v, irtypes.NewInt(uint64(t.Width)))
			case f.Signed:
				return g.block.NewSExt(v, irtypes.NewInt(uint64(t.Width)))
			default:
				return g.block.NewZExt(v, irtypes.NewInt(uint64(t.Width)))
			}
		case *types.FloatType:
			if f.Signed {
				return g.block.NewSIToFP(v, g.lowerType(t))
			}
			return g.block.NewUIToFP(v, g.lowerType(t))
		case *types.BoolType:
			zero := constant.NewInt(irtypes.NewInt(uint64(f.Width)), 0)
			return g.block.NewICmp(enum.IPredNE, v, zero)
		}
	case *types.FloatType:
		switch t := to.(type) {
		case *types.FloatType:
			if t.Width > f.Width {
				return g.block.NewFPExt(v, g.lowerType(t))
			}
			if t.Width < f.Width {
				return g.block.NewFPTrunc(v, g.lowerType(t))
			}
			return v
		case *types.IntType:
			if t.Signed {
				return g.block.NewFPToSI(v, g.lowerType(t))
			}
			return g.block.NewFPToUI(v, g.lowerType(t))
		}
	case *types.BoolType:
		if t, ok := to.(*types.IntType); ok {
			return g.block.NewZExt(v, irtypes.NewInt(uint64(t.Width)))
		}
	}
	return v
}

// ---------------------------------------------------------------------
// Addresses (lvalues)
// ---------------------------------------------------------------------

// emitAddr produces the address of an lvalue; non-addressable expressions
// are spilled into a fresh alloca.
func (g *Generator) emitAddr(e ast.Expr) (value.Value, types.Type) {
	switch n := e.(type) {
	case *ast.Ident:
		if s, ok := g.frame.lookup(n.Name); ok {
			if s.isRef {
				ref := s.typ.(*types.ReferenceType)
				ptr := g.block.NewLoad(irtypes.NewPointer(g.lowerType(ref.Referenced)), s.ptr)
				return ptr, ref.Referenced
			}
			return s.ptr, s.typ
		}
	case *ast.FieldExpr:
		addr, ft, ok := g.fieldAddr(n)
		if ok {
			return addr, ft
		}
	case *ast.IndexExpr:
		addr, _ := g.indexAddr(n)
		return addr, semType(n)
	}
	// Spill: evaluate and place in a temporary.
	t := derefType(semType(e))
	v := g.rvalue(e)
	tmp := g.alloca(g.lowerType(t))
	g.block.NewStore(v, tmp)
	return tmp, t
}

// fieldAddr computes a pointer to `target.field`. Member access on an
// owning (dynamic-array) field goes through a GEP so mutating method calls
// can write back.
func (g *Generator) fieldAddr(n *ast.FieldExpr) (value.Value, types.Type, bool) {
	baseAddr, baseType := g.emitAddr(n.Target)
	st, ok := derefType(baseType).(*types.StructType)
	if !ok {
		return nil, nil, false
	}
	for i, f := range st.Fields {
		if f.Name == n.Field {
			p := g.block.NewGetElementPtr(g.lowerType(st), baseAddr,
				constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, int64(i)))
			return p, f.Type, true
		}
	}
	return nil, nil, false
}

func (g *Generator) emitField(n *ast.FieldExpr) value.Value {
	if addr, ft, ok := g.fieldAddr(n); ok {
		return g.block.NewLoad(g.lowerType(ft), addr)
	}
	// Fall back to extract-value of the loaded struct.
	v := g.rvalue(n.Target)
	st, ok := derefType(semType(n.Target)).(*types.StructType)
	if !ok {
		return constant.NewInt(irtypes.I8, 0)
	}
	for i, f := range st.Fields {
		if f.Name == n.Field {
			return g.block.NewExtractValue(v, uint64(i))
		}
	}
	return constant.NewInt(irtypes.I8, 0)
}

// indexAddr computes a bounds-checked element pointer for `target[index]`
// : compile-time size for fixed arrays, runtime length
// for dynamic arrays, with the runtime-error call on failure.
func (g *Generator) indexAddr(n *ast.IndexExpr) (value.Value, irtypes.Type) {
	idx := g.coerceI32(g.rvalue(n.Index), derefType(semType(n.Index)))
	targetType := derefType(semType(n.Target))

	switch at := targetType.(type) {
	case *types.ArrayType:
		addr, _ := g.emitAddr(n.Target)
		g.emitBoundsCheck(idx, constant.NewInt(irtypes.I32, int64(at.Size)))
		elemTy := g.lowerType(at.Elem)
		p := g.block.NewGetElementPtr(g.lowerType(at), addr, constant.NewInt(irtypes.I32, 0), idx)
		return p, elemTy
	case *types.DynamicArrayType:
		addr, _ := g.emitAddr(n.Target)
		dt := g.dynArrayType(at.Elem)
		lenPtr := g.block.NewGetElementPtr(dt, addr,
			constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 0))
		length := g.block.NewLoad(irtypes.I32, lenPtr)
		g.emitBoundsCheck(idx, length)
		elemTy := g.lowerType(at.Elem)
		dataPtr := g.block.NewGetElementPtr(dt, addr,
			constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 2))
		data := g.block.NewLoad(irtypes.NewPointer(elemTy), dataPtr)
		p := g.block.NewGetElementPtr(elemTy, data, idx)
		return p, elemTy
	default:
		tmp := g.alloca(irtypes.I8)
		return tmp, irtypes.I8
	}
}

func (g *Generator) emitBoundsCheck(idx, length value.Value) {
	okBB := g.fn.NewBlock("")
	failBB := g.fn.NewBlock("")
	neg := g.block.NewICmp(enum.IPredSLT, idx, constant.NewInt(irtypes.I32, 0))
	over := g.block.NewICmp(enum.IPredSGE, idx, length)
	bad := g.block.NewOr(neg, over)
	g.block.NewCondBr(bad, failBB, okBB)
	g.block = failBB
	g.emitRuntimeError("index %lld out of bounds for length %lld\x0A",
		g.block.NewSExt(idx, irtypes.I64), g.block.NewSExt(length, irtypes.I64))
	g.block = okBB
}

// ---------------------------------------------------------------------
// Try expression: evaluate inner, branch on the success tag;
// the failure branch cleans the frame up and returns the error reconverted
// into the enclosing function's Result type.
// ---------------------------------------------------------------------

func (g *Generator) emitTry(n *ast.TryExpr) value.Value {
	et, ok := n.InnerType.(*types.EnumType)
	if !ok {
		return g.emitExpr(n.Value)
	}
	inner := g.emitExpr(n.Value)
	lt := g.lowerType(et)
	tmp := g.alloca(lt)
	g.block.NewStore(inner, tmp)

	tagPtr := g.block.NewGetElementPtr(lt, tmp,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 0))
	tag := g.block.NewLoad(irtypes.I32, tagPtr)
	isOk := g.block.NewICmp(enum.IPredEQ, tag, constant.NewInt(irtypes.I32, int64(n.SuccessTag)))

	okBB := g.fn.NewBlock("")
	errBB := g.fn.NewBlock("")
	g.block.NewCondBr(isOk, okBB, errBB)

	// Failure branch: RAII cleanup for the whole frame, then return Err.
	g.block = errBB
	if g.bare {
		g.emitRuntimeError("unhandled error propagated out of extension method\x0A", nil, nil)
	} else {
		var errPayload value.Value
		var errType types.Type
		if t, ok := n.ErrType.(types.Type); ok && !isBlank(t) {
			errType = t
			errPayload = g.block.NewLoad(g.lowerType(t), g.enumPayloadPtr(tmp, lt, 0, g.lowerType(t)))
		}
		g.emitCleanupScopes(len(g.frame.scopes))
		out := g.resultEnum(g.retOk, g.retErr)
		var vals []value.Value
		var assoc []types.Type
		if errPayload != nil {
			vals = []value.Value{errPayload}
			assoc = []types.Type{errType}
		}
		g.block.NewRet(g.buildEnum(out, 1, vals, assoc))
	}

	// Success branch continues with the extracted payload.
	g.block = okBB
	succ, ok := n.SuccessType.(types.Type)
	if !ok {
		return constant.NewInt(irtypes.I8, 0)
	}
	succTy := g.lowerType(succ)
	return g.block.NewLoad(succTy, g.enumPayloadPtr(tmp, lt, 0, succTy))
}

// enumPayloadPtr returns a typed pointer into an enum's `[N x i8]` data
// array at the given byte offset.
func (g *Generator) enumPayloadPtr(enumPtr value.Value, enumTy irtypes.Type, byteOffset int, fieldTy irtypes.Type) value.Value {
	dataPtr := g.block.NewGetElementPtr(enumTy, enumPtr,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 1))
	bytePtr := g.block.NewBitCast(dataPtr, irtypes.I8Ptr)
	at := g.block.NewGetElementPtr(irtypes.I8, bytePtr, constant.NewInt(irtypes.I32, int64(byteOffset)))
	return g.block.NewBitCast(at, irtypes.NewPointer(fieldTy))
}

// buildEnum constructs an enum value `{tag, payload...}` in a temporary,
// zeroing the payload area first so padding bytes hash deterministically.
func (g *Generator) buildEnum(et *types.EnumType, tag int, vals []value.Value, assoc []types.Type) value.Value {
	lt := g.lowerType(et)
	tmp := g.alloca(lt)
	g.block.NewStore(g.zeroValue(lt), tmp)
	tagPtr := g.block.NewGetElementPtr(lt, tmp,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 0))
	g.block.NewStore(constant.NewInt(irtypes.I32, int64(tag)), tagPtr)
	offset := 0
	for i, v := range vals {
		ft := g.lowerType(assoc[i])
		g.block.NewStore(v, g.enumPayloadPtr(tmp, lt, offset, ft))
		offset += types.SizeOf(assoc[i])
	}
	return g.block.NewLoad(lt, tmp)
}

// ---------------------------------------------------------------------
// If (statement or value position)
// ---------------------------------------------------------------------

func (g *Generator) emitIf(n *ast.IfExpr) value.Value {
	cond := g.emitCondition(n.Cond)
	thenBB := g.fn.NewBlock("")
	mergeBB := g.fn.NewBlock("")
	elseBB := mergeBB
	if n.Else != nil {
		elseBB = g.fn.NewBlock("")
	}
	g.block.NewCondBr(cond, thenBB, elseBB)

	g.block = thenBB
	g.frame.push()
	thenVal := g.emitBlockTail(n.Then)
	g.leaveScope()
	thenEnd := g.block
	if g.block.Term == nil {
		g.block.NewBr(mergeBB)
	}

	if n.Else != nil {
		g.block = elseBB
		g.frame.push()
		elseVal := g.emitExpr(n.Else)
		g.leaveScope()
		elseEnd := g.block
		if g.block.Term == nil {
			g.block.NewBr(mergeBB)
		}
		g.block = mergeBB
		if thenVal != nil && elseVal != nil &&
			branchesTo(thenEnd, mergeBB) && branchesTo(elseEnd, mergeBB) &&
			thenVal.Type().Equal(elseVal.Type()) {
			return g.block.NewPhi(ir.NewIncoming(thenVal, thenEnd), ir.NewIncoming(elseVal, elseEnd))
		}
		return constant.NewInt(irtypes.I8, 0)
	}

	g.block = mergeBB
	return constant.NewInt(irtypes.I8, 0)
}

// branchesTo reports whether b ends in an unconditional branch to target, so
// an if-expression only builds a phi over arms that actually reach the merge.
func branchesTo(b, target *ir.Block) bool {
	br, ok := b.Term.(*ir.TermBr)
	return ok && br.Target == target
}

// emitBlockTail emits a block's statements and returns its tail value (nil
// when the block ends in a statement).
func (g *Generator) emitBlockTail(b *ast.BlockExpr) value.Value {
	for _, st := range b.Stmts {
		if g.block.Term != nil {
			return nil
		}
		g.emitStmt(st)
	}
	if b.Tail != nil && g.block.Term == nil {
		return g.emitExpr(b.Tail)
	}
	return nil
}

func (g *Generator) emitBlockValue(b *ast.BlockExpr) value.Value {
	g.frame.push()
	v := g.emitBlockTail(b)
	g.leaveScope()
	if v == nil {
		return constant.NewInt(irtypes.I8, 0)
	}
	return v
}
