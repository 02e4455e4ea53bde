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

// emitMatch lowers a match to a switch on the scrutinee's tag. For
// duplicated outer tags only the first arm enters the switch table; the
// nested distinguisher is a runtime check inside the arm that branches to
// the next arm on mismatch (fallthrough).
func (g *Generator) emitMatch(n *ast.MatchExpr) value.Value {
	et, ok := derefType(semType(n.Scrutinee)).(*types.EnumType)
	if !ok {
		return constant.NewInt(irtypes.I8, 0)
	}
	scrut := g.rvalue(n.Scrutinee)
	lt := g.lowerType(et)
	tmp := g.alloca(lt)
	g.block.NewStore(scrut, tmp)
	tag := g.block.NewExtractValue(scrut, 0)

	mergeBB := g.fn.NewBlock("")

	// One block per arm, in source order.
	armBBs := make([]*ir.Block, len(n.Arms))
	for i := range n.Arms {
		armBBs[i] = g.fn.NewBlock("")
	}

	// Classify arms: outer tag, or default (wildcard / top-level binding).
	armTag := make([]int, len(n.Arms))
	defaultIdx := -1
	for i, arm := range n.Arms {
		switch p := arm.Pattern.(type) {
		case *ast.EnumPattern:
			armTag[i] = p.VariantIndex
		default:
			armTag[i] = -1
			if defaultIdx < 0 {
				defaultIdx = i
			}
		}
	}

	// The default block is the wildcard arm, or the runtime fallthrough
	// error when no wildcard exists.
	var defaultBB *ir.Block
	if defaultIdx >= 0 {
		defaultBB = armBBs[defaultIdx]
	} else {
		defaultBB = g.fn.NewBlock("")
		saved := g.block
		g.block = defaultBB
		g.emitRuntimeError("no match arm for enum tag %lld\x0A",
			g.block.NewSExt(tag, irtypes.I64), nil)
		g.block = saved
	}

	// Switch table: first arm per distinct tag.
	var cases []*ir.Case
	seen := map[int]bool{}
	for i := range n.Arms {
		t := armTag[i]
		if t < 0 || seen[t] {
			continue
		}
		seen[t] = true
		cases = append(cases, ir.NewCase(i32c(int64(t)), armBBs[i]))
	}
	g.block.NewSwitch(tag, defaultBB, cases...)

	// failTarget chains same-tag arms; the last falls through to default.
	failTarget := func(i int) *ir.Block {
		for j := i + 1; j < len(n.Arms); j++ {
			if armTag[j] == armTag[i] {
				return armBBs[j]
			}
		}
		return defaultBB
	}

	type armResult struct {
		val value.Value
		end *ir.Block
	}
	var results []armResult

	for i, arm := range n.Arms {
		g.block = armBBs[i]
		g.frame.push() // each arm begins a fresh lexical scope
		fail := defaultBB
		if armTag[i] >= 0 {
			fail = failTarget(i)
		}
		g.emitPatternTest(arm.Pattern, tmp, et, fail)
		v := g.emitBlockTail(arm.Body)
		g.leaveScope()
		if g.block.Term == nil {
			results = append(results, armResult{val: v, end: g.block})
			g.block.NewBr(mergeBB)
		}
	}

	g.block = mergeBB
	// Expression-position matches produce the common arm value when every
	// arm that reaches the merge agrees on the type.
	if len(results) > 0 && results[0].val != nil {
		same := true
		for _, r := range results {
			if r.val == nil || !r.val.Type().Equal(results[0].val.Type()) {
				same = false
				break
			}
		}
		if same {
			incs := make([]*ir.Incoming, len(results))
			for i, r := range results {
				incs[i] = ir.NewIncoming(r.val, r.end)
			}
			return g.block.NewPhi(incs...)
		}
	}
	return constant.NewInt(irtypes.I8, 0)
}

// emitPatternTest emits the checks and bindings for one pattern against the
// value stored behind ptr. On mismatch control branches to
// failBB; on success emission continues in the current block with all
// bindings declared.
func (g *Generator) emitPatternTest(p ast.Pattern, ptr value.Value, t types.Type, failBB *ir.Block) {
	switch n := p.(type) {
	case *ast.WildcardPattern:
	case *ast.BindPattern:
		lt := g.lowerType(t)
		v := g.block.NewLoad(lt, ptr)
		slotPtr := g.alloca(lt)
		g.block.NewStore(v, slotPtr)
		s := g.frame.declare(n.Name, t, slotPtr, false)
		s.moved = true // payloads stay owned by the scrutinee
	case *ast.OwnPattern:
		st, ok := t.(*types.StructType)
		if !ok || st.GenericBase != "Own" {
			return
		}
		inner := st.GenericArgs[0]
		boxPtrTy := irtypes.NewPointer(g.lowerType(inner))
		box := g.block.NewLoad(boxPtrTy, ptr)
		g.emitPatternTest(n.Inner, box, inner, failBB)
	case *ast.EnumPattern:
		et, ok := t.(*types.EnumType)
		if !ok {
			return
		}
		lt := g.lowerType(et)
		tagPtr := g.block.NewGetElementPtr(lt, ptr, i32c(0), i32c(0))
		tag := g.block.NewLoad(irtypes.I32, tagPtr)
		matches := g.block.NewICmp(enum.IPredEQ, tag, i32c(int64(n.VariantIndex)))
		contBB := g.fn.NewBlock("")
		g.block.NewCondBr(matches, contBB, failBB)
		g.block = contBB

		variant := &et.Variants[n.VariantIndex]
		offset := 0
		for i, sub := range n.SubPatterns {
			if i >= len(variant.Assoc) {
				break
			}
			ft := variant.Assoc[i]
			fieldPtr := g.enumPayloadPtr(ptr, lt, offset, g.lowerType(ft))
			g.emitPatternTest(sub, fieldPtr, ft, failBB)
			offset += types.SizeOf(ft)
		}
	}
}
