package llvm

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sushi-lang/sushic/internal/types"
)

// slot is one stack variable: its alloca, semantic type, and move state.
// Reference parameters hold the pointer itself in the slot, loaded once more
// when dereferenced.
type slot struct {
	name  string
	typ   types.Type
	ptr   value.Value
	isRef bool
	moved bool
}

// frame is the memory manager of "Scope management": a stack of
// lexical scopes tracking which variables own a resource, so scope exit and
// every return can emit RAII cleanup for everything not marked moved.
type frame struct {
	scopes [][]*slot
	byName map[string][]*slot
}

func newFrame() *frame {
	return &frame{byName: map[string][]*slot{}}
}

func (f *frame) push() { f.scopes = append(f.scopes, nil) }

func (f *frame) pop() []*slot {
	top := f.scopes[len(f.scopes)-1]
	f.scopes = f.scopes[:len(f.scopes)-1]
	for _, s := range top {
		stack := f.byName[s.name]
		f.byName[s.name] = stack[:len(stack)-1]
	}
	return top
}

func (f *frame) declare(name string, t types.Type, ptr value.Value, isRef bool) *slot {
	s := &slot{name: name, typ: t, ptr: ptr, isRef: isRef}
	f.scopes[len(f.scopes)-1] = append(f.scopes[len(f.scopes)-1], s)
	f.byName[name] = append(f.byName[name], s)
	return s
}

func (f *frame) lookup(name string) (*slot, bool) {
	stack := f.byName[name]
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1], true
}

func (f *frame) markMoved(name string) {
	if s, ok := f.lookup(name); ok {
		s.moved = true
	}
}

// ownsResource reports whether t needs RAII cleanup on scope exit: dynamic
// arrays, Own<T> boxes, and structs with owning fields.
func ownsResource(t types.Type) bool {
	switch v := t.(type) {
	case *types.DynamicArrayType:
		return true
	case *types.StructType:
		switch v.GenericBase {
		case "Own", "List", "HashMap":
			return true
		}
		for _, fld := range v.Fields {
			if ownsResource(fld.Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// emitCleanupScopes emits RAII cleanup for the innermost n scopes without
// popping them (used by return, which leaves the frame intact for the
// unreachable code after it; : a return inside a loop cleans the whole
// function's live scopes, not just the enclosing block).
func (g *Generator) emitCleanupScopes(n int) {
	total := len(g.frame.scopes)
	for i := total - 1; i >= total-n && i >= 0; i-- {
		for j := len(g.frame.scopes[i]) - 1; j >= 0; j-- {
			s := g.frame.scopes[i][j]
			if s.moved || !ownsResource(s.typ) {
				continue
			}
			g.emitCleanupSlot(s)
		}
	}
}

// leaveScope pops the innermost scope, emitting cleanup first (skipped when
// the block already terminated: a return/break already cleaned up).
func (g *Generator) leaveScope() {
	if g.block.Term == nil {
		g.emitCleanupScopes(1)
	}
	g.frame.pop()
}

func (g *Generator) emitCleanupSlot(s *slot) {
	g.emitCleanupPtr(s.ptr, s.typ)
}

// emitCleanupPtr releases the resource behind ptr for a value of semantic
// type t, then zeroes the slot so double-cleanup is inert.
func (g *Generator) emitCleanupPtr(ptr value.Value, t types.Type) {
	switch v := t.(type) {
	case *types.DynamicArrayType:
		g.emitFreeDynArray(ptr, v.Elem)
	case *types.StructType:
		switch v.GenericBase {
		case "Own":
			g.emitFreeOwn(ptr, v.GenericArgs[0])
		case "List":
			g.emitFreeDynArray(ptr, v.GenericArgs[0])
		case "HashMap":
			g.emitFreeHashMap(ptr, v.GenericArgs[0], v.GenericArgs[1])
		default:
			// Struct containing owning fields: recursively clean each field.
			st := g.lowerType(v)
			for i, fld := range v.Fields {
				if !ownsResource(fld.Type) {
					continue
				}
				fp := g.block.NewGetElementPtr(st, ptr,
					constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, int64(i)))
				g.emitCleanupPtr(fp, fld.Type)
			}
		}
	}
}

// emitFreeDynArray frees the buffer of a `{i32, i32, T*}` value if non-null,
// then zeroes the struct.
func (g *Generator) emitFreeDynArray(ptr value.Value, elem types.Type) {
	dt := g.dynArrayType(elem)
	dataPtr := g.block.NewGetElementPtr(dt, ptr,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 2))
	elemPtrTy := irtypes.NewPointer(g.lowerType(elem))
	data := g.block.NewLoad(elemPtrTy, dataPtr)
	notNull := g.block.NewICmp(enum.IPredNE, data, constant.NewNull(elemPtrTy))

	freeBB := g.fn.NewBlock("")
	doneBB := g.fn.NewBlock("")
	g.block.NewCondBr(notNull, freeBB, doneBB)
	g.block = freeBB
	raw := g.block.NewBitCast(data, irtypes.I8Ptr)
	g.block.NewCall(g.rt["free"], raw)
	g.block.NewBr(doneBB)
	g.block = doneBB
	g.block.NewStore(g.zeroValue(dt), ptr)
}

func (g *Generator) emitFreeOwn(ptr value.Value, inner types.Type) {
	boxPtrTy := irtypes.NewPointer(g.lowerType(inner))
	box := g.block.NewLoad(boxPtrTy, ptr)
	notNull := g.block.NewICmp(enum.IPredNE, box, constant.NewNull(boxPtrTy))

	freeBB := g.fn.NewBlock("")
	doneBB := g.fn.NewBlock("")
	g.block.NewCondBr(notNull, freeBB, doneBB)
	g.block = freeBB
	raw := g.block.NewBitCast(box, irtypes.I8Ptr)
	g.block.NewCall(g.rt["free"], raw)
	g.block.NewBr(doneBB)
	g.block = doneBB
	g.block.NewStore(constant.NewNull(boxPtrTy), ptr)
}

func (g *Generator) emitFreeHashMap(ptr value.Value, k, v types.Type) {
	mt := g.hashmapType(k, v)
	entPtrTy := irtypes.NewPointer(g.hashmapEntryType(k, v))
	dataPtr := g.block.NewGetElementPtr(mt, ptr,
		constant.NewInt(irtypes.I32, 0), constant.NewInt(irtypes.I32, 2))
	data := g.block.NewLoad(entPtrTy, dataPtr)
	notNull := g.block.NewICmp(enum.IPredNE, data, constant.NewNull(entPtrTy))

	freeBB := g.fn.NewBlock("")
	doneBB := g.fn.NewBlock("")
	g.block.NewCondBr(notNull, freeBB, doneBB)
	g.block = freeBB
	raw := g.block.NewBitCast(data, irtypes.I8Ptr)
	g.block.NewCall(g.rt["free"], raw)
	g.block.NewBr(doneBB)
	g.block = doneBB
	g.block.NewStore(g.zeroValue(mt), ptr)
}
