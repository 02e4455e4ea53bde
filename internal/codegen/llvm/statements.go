package llvm

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/types"
)

// emitBlockStmts emits a block used as a statement sequence, with its own
// lexical scope (entering pushes, leaving pops and emits RAII cleanup).
func (g *Generator) emitBlockStmts(b *ast.BlockExpr) {
	g.frame.push()
	for _, st := range b.Stmts {
		if g.block.Term != nil {
			break // unreachable code after return/break
		}
		g.emitStmt(st)
	}
	if b.Tail != nil && g.block.Term == nil {
		g.emitExpr(b.Tail)
	}
	g.leaveScope()
}

func (g *Generator) emitStmt(st ast.Stmt) {
	switch n := st.(type) {
	case *ast.LetStmt:
		g.emitLet(n)
	case *ast.ReturnStmt:
		g.emitReturn(n)
	case *ast.RebindStmt:
		g.emitRebind(n)
	case *ast.ExprStmt:
		g.emitExpr(n.Expr)
	case *ast.WhileStmt:
		g.emitWhile(n)
	case *ast.ForeachStmt:
		g.emitForeach(n)
	case *ast.BreakStmt:
		if len(g.loops) > 0 {
			g.block.NewBr(g.loops[len(g.loops)-1].endBB)
			g.block = g.fn.NewBlock("")
		}
	case *ast.ContinueStmt:
		if len(g.loops) > 0 {
			g.block.NewBr(g.loops[len(g.loops)-1].condBB)
			g.block = g.fn.NewBlock("")
		}
	}
}

// emitLet creates the alloca, evaluates the RHS, casts, stores.
func (g *Generator) emitLet(n *ast.LetStmt) {
	declared := g.Tables.Resolve(n.Type)
	lt := g.lowerType(declared)
	ptr := g.alloca(lt)

	if _, blank := n.Value.(*ast.BlankLiteral); blank {
		// `let i32[] b = ~;` zero-initializes the slot.
		g.block.NewStore(g.zeroValue(lt), ptr)
		g.frame.declare(n.Name, declared, ptr, false)
		return
	}

	v := g.emitExpr(n.Value)
	v = g.convert(v, semType(n.Value), declared)
	g.block.NewStore(v, ptr)
	g.frame.declare(n.Name, declared, ptr, false)
	g.moveIfOwningSource(n.Value)
}

// moveIfOwningSource marks an owning RHS variable as moved so RAII skips it.
func (g *Generator) moveIfOwningSource(e ast.Expr) {
	id, ok := e.(*ast.Ident)
	if !ok {
		return
	}
	s, ok := g.frame.lookup(id.Name)
	if !ok || !ownsResource(s.typ) {
		return
	}
	s.moved = true
}

// emitRebind stores for a plain variable, stores through the pointer for a
// reference parameter, frees then stores for owning types (nullifying an
// owning RHS variable, which becomes moved), and GEPs+stores for a field
// rebind.
func (g *Generator) emitRebind(n *ast.RebindStmt) {
	switch tgt := n.Target.(type) {
	case *ast.Ident:
		s, ok := g.frame.lookup(tgt.Name)
		if !ok {
			g.emitExpr(n.Value)
			return
		}
		dst := value.Value(s.ptr)
		dstType := s.typ
		if s.isRef {
			// Reference parameter: load the slot to get the pointer, store
			// through it.
			ref := s.typ.(*types.ReferenceType)
			dst = g.block.NewLoad(irtypes.NewPointer(g.lowerType(ref.Referenced)), s.ptr)
			dstType = ref.Referenced
		}
		if ownsResource(dstType) {
			g.emitCleanupPtr(dst, dstType)
		}
		v := g.emitExpr(n.Value)
		v = g.convert(v, semType(n.Value), dstType)
		g.block.NewStore(v, dst)
		if ownsResource(dstType) {
			s.moved = false
			g.nullifyMovedSource(n.Value)
		}
	case *ast.FieldExpr:
		addr, fieldType, ok := g.fieldAddr(tgt)
		if !ok {
			return
		}
		if ownsResource(fieldType) {
			g.emitCleanupPtr(addr, fieldType)
		}
		v := g.emitExpr(n.Value)
		v = g.convert(v, semType(n.Value), fieldType)
		g.block.NewStore(v, addr)
		if ownsResource(fieldType) {
			g.nullifyMovedSource(n.Value)
		}
	}
}

// nullifyMovedSource zeroes an owning RHS variable's slot and marks it moved.
func (g *Generator) nullifyMovedSource(e ast.Expr) {
	id, ok := e.(*ast.Ident)
	if !ok {
		return
	}
	s, ok := g.frame.lookup(id.Name)
	if !ok || !ownsResource(s.typ) {
		return
	}
	g.block.NewStore(g.zeroValue(g.lowerType(s.typ)), s.ptr)
	s.moved = true
}

// emitReturn marks returned variables moved, evaluates the value, emits the
// whole function's RAII cleanup, and returns.
func (g *Generator) emitReturn(n *ast.ReturnStmt) {
	call, isCall := n.Value.(*ast.CallExpr)
	var field *ast.FieldExpr
	if isCall {
		field, _ = call.Callee.(*ast.FieldExpr)
	}
	if field == nil {
		// Pass 2 already rejected this shape; emit a zero return so the
		// block stays well-formed for best-effort diagnostics runs.
		g.emitCleanupScopes(len(g.frame.scopes))
		g.block.NewRet(g.zeroValue(g.fn.Sig.RetType))
		return
	}
	isOk := field.Field == "Ok"

	var payload value.Value
	var payloadType types.Type
	if len(call.Args) == 1 {
		payload = g.emitExpr(call.Args[0])
		payloadType = semType(call.Args[0])
		g.moveIfOwningSource(call.Args[0])
	}

	if g.bare {
		// Extension/perk methods return a bare value.
		if !isOk {
			g.emitRuntimeError("error returned from extension method\x0A", nil, nil)
			return
		}
		g.emitCleanupScopes(len(g.frame.scopes))
		if g.fn.Sig.RetType.Equal(irtypes.Void) {
			g.block.NewRet(nil)
			return
		}
		payload = g.convert(payload, payloadType, g.retOk)
		g.block.NewRet(payload)
		return
	}

	et := g.resultEnum(g.retOk, g.retErr)
	tag := 0
	target := g.retOk
	if !isOk {
		tag = 1
		target = g.retErr
	}
	if payload != nil {
		payload = g.convert(payload, payloadType, target)
	}
	g.emitCleanupScopes(len(g.frame.scopes))
	var vals []value.Value
	var assoc []types.Type
	if payload != nil {
		vals = []value.Value{payload}
		assoc = []types.Type{target}
	}
	res := g.buildEnum(et, tag, vals, assoc)
	g.block.NewRet(res)
}

func (g *Generator) emitWhile(n *ast.WhileStmt) {
	condBB := g.fn.NewBlock("")
	bodyBB := g.fn.NewBlock("")
	endBB := g.fn.NewBlock("")

	g.block.NewBr(condBB)
	g.block = condBB
	cond := g.emitCondition(n.Cond)
	g.block.NewCondBr(cond, bodyBB, endBB)

	g.loops = append(g.loops, loopTarget{condBB: condBB, endBB: endBB})
	g.block = bodyBB
	g.emitBlockStmts(n.Body)
	if g.block.Term == nil {
		g.block.NewBr(condBB)
	}
	g.loops = g.loops[:len(g.loops)-1]
	g.block = endBB
}

// emitCondition lowers an if/while condition: bool directly, or a
// Result<T,E> whose Ok tag (0) is truthy.
func (g *Generator) emitCondition(cond ast.Expr) value.Value {
	v := g.rvalue(cond)
	t := derefType(semType(cond))
	if et, ok := t.(*types.EnumType); ok && et.GenericBase == "Result" {
		tag := g.block.NewExtractValue(v, 0)
		return g.block.NewICmp(enum.IPredEQ, tag, constant.NewInt(irtypes.I32, 0))
	}
	return v
}

// emitForeach lowers `for x in iterable { ... }`: the
// iterator's index walks a dense buffer; the provenance bits in the capacity
// field are masked off to recover the element count.
func (g *Generator) emitForeach(n *ast.ForeachStmt) {
	elemType, ok := n.ElemType.(types.Type)
	if !ok {
		return
	}
	elemTy := g.lowerType(elemType)
	iterTy := g.iteratorType(elemType)

	iter := g.emitExpr(n.Iterable)
	iterPtr := g.alloca(iterTy)
	g.block.NewStore(iter, iterPtr)

	condBB := g.fn.NewBlock("")
	bodyBB := g.fn.NewBlock("")
	incBB := g.fn.NewBlock("")
	endBB := g.fn.NewBlock("")
	g.block.NewBr(condBB)

	g.block = condBB
	idxPtr := g.block.NewGetElementPtr(iterTy, iterPtr,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 0))
	idx := g.block.NewLoad(irtypes.I32, idxPtr)
	capPtr := g.block.NewGetElementPtr(iterTy, iterPtr,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 1))
	capFlags := g.block.NewLoad(irtypes.I32, capPtr)
	capacity := g.block.NewAnd(capFlags, constant.NewInt(irtypes.I32, iterCapMask))
	inBounds := g.block.NewICmp(enum.IPredSLT, idx, capacity)
	g.block.NewCondBr(inBounds, bodyBB, endBB)

	g.block = bodyBB
	dataPtr := g.block.NewGetElementPtr(iterTy, iterPtr,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 2))
	data := g.block.NewLoad(irtypes.NewPointer(elemTy), dataPtr)
	elemPtr := g.block.NewGetElementPtr(elemTy, data, idx)
	elem := g.block.NewLoad(elemTy, elemPtr)

	g.frame.push()
	varPtr := g.alloca(elemTy)
	g.block.NewStore(elem, varPtr)
	s := g.frame.declare(n.VarName, elemType, varPtr, false)
	s.moved = true // the iterator's buffer owns the elements, not the loop var

	g.loops = append(g.loops, loopTarget{condBB: incBB, endBB: endBB})
	for _, st := range n.Body.Stmts {
		if g.block.Term != nil {
			break
		}
		g.emitStmt(st)
	}
	if n.Body.Tail != nil && g.block.Term == nil {
		g.emitExpr(n.Body.Tail)
	}
	g.loops = g.loops[:len(g.loops)-1]
	g.leaveScope()
	if g.block.Term == nil {
		g.block.NewBr(incBB)
	}

	g.block = incBB
	next := g.block.NewAdd(idx, constant.NewInt(irtypes.I32, 1))
	g.block.NewStore(next, idxPtr)
	g.block.NewBr(condBB)

	g.block = endBB
}

// Iterator provenance bits: bit 31 set
// marks a HashMap iterator, bit 30 keys-vs-values, bits 31+30+29 entries.
// The remaining 29 bits hold the real capacity.
const (
	iterCapMask     = 0x1FFFFFFF
	iterFlagHashMap = 1 << 31
	iterFlagValues  = 1<<31 | 1<<30
	iterFlagEntries = 1<<31 | 1<<30 | 1<<29
)
