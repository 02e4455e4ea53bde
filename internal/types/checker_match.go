package types

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
)

// inferMatch validates a match expression's structure and its arm
// patterns, and infers a common arm-body type (the first arm's, as a
// best-effort convenience; sushi doesn't require expression-position matches
// to unify their arms beyond what Pass 2 already checks per-arm).
func (c *Checker) inferMatch(n *ast.MatchExpr) Type {
	scrut := c.inferExpr(n.Scrutinee)
	et, ok := scrut.(*EnumType)
	if !ok {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeUnknownType,
			"match scrutinee must be an enum type, found '"+scrut.String()+"'", toDiagSpan(n.Scrutinee.Span()))
	}

	var result Type = Blank
	for i, arm := range n.Arms {
		saved := c.snapshotVars()
		if et != nil {
			c.checkPattern(arm.Pattern, et)
		}
		t := c.inferBlockExpr(arm.Body)
		if i == 0 {
			result = t
		}
		c.restoreVars(saved)
	}
	return result
}

func (c *Checker) snapshotVars() map[string]Type {
	cp := make(map[string]Type, len(c.vars))
	for k, v := range c.vars {
		cp[k] = v
	}
	return cp
}

func (c *Checker) restoreVars(saved map[string]Type) { c.vars = saved }

// checkPattern validates one match-arm pattern against the scrutinee's enum
// type (or, for a nested EnumPattern, against a variant's own enum type) and
// declares any bindings it introduces.
func (c *Checker) checkPattern(p ast.Pattern, scrutType Type) {
	switch n := p.(type) {
	case *ast.WildcardPattern:
	case *ast.BindPattern:
		c.vars[n.Name] = scrutType
	case *ast.OwnPattern:
		inner := scrutType
		if base, args, ok := genericBaseOf(scrutType); ok && base == "Own" && len(args) == 1 {
			inner = args[0]
		}
		c.checkPattern(n.Inner, inner)
	case *ast.EnumPattern:
		et, ok := scrutType.(*EnumType)
		if !ok {
			return
		}
		if n.EnumName != et.Name && n.EnumName != et.GenericBase {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeUnknownType,
				"pattern enum '"+n.EnumName+"' does not match scrutinee type '"+et.Name+"'", toDiagSpan(n.Span()))
			return
		}
		variant, idx := et.Variant(n.Variant)
		if variant == nil {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeUnknownMethod,
				"enum '"+et.Name+"' has no variant '"+n.Variant+"'", toDiagSpan(n.Span()))
			return
		}
		n.VariantIndex = idx
		for i, sub := range n.SubPatterns {
			if i >= len(variant.Assoc) {
				break
			}
			c.checkPattern(sub, variant.Assoc[i])
		}
	}
}
