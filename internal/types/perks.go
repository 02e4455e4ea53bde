package types

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
)

// checkPerkImpl validates `extend T with P`: P's full method set must
// be present with matching signatures, and no method may collide with a
// plain extension method already registered for T.
func (c *Checker) checkPerkImpl(ext *ast.ExtendDecl, recv Type) {
	perk, ok := c.Tables.PerkTable[ext.PerkName]
	if !ok {
		c.Reporter.Error(diag.StageTypeCheck, diag.CodeMissingPerkMethod,
			"unknown perk '"+ext.PerkName+"'", toDiagSpan(ext.Span()))
		return
	}
	targetName := recvTypeName(recv)

	provided := map[string]*ast.FnDecl{}
	for _, m := range ext.Methods {
		provided[m.Name] = m
	}

	for name, sig := range perk.Methods {
		impl, ok := provided[name]
		if !ok {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodeMissingPerkMethod,
				"'"+targetName+"' does not implement perk method '"+ext.PerkName+"."+name+"'", toDiagSpan(ext.Span()))
			continue
		}
		if !sigMatches(c.Tables, sig, impl) {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodePerkMethodSigMismatch,
				"method '"+name+"' signature does not match perk '"+ext.PerkName+"'", toDiagSpan(impl.Span()))
		}
	}

	for name := range provided {
		if _, declaredByPerk := perk.Methods[name]; declaredByPerk {
			continue
		}
		if existing, ok := c.Tables.LookupExtension(targetName, name); ok && existing.FromPerk == "" {
			c.Reporter.Error(diag.StageTypeCheck, diag.CodePerkMethodCollision,
				"perk method '"+name+"' collides with an existing extension method on '"+targetName+"'", toDiagSpan(ext.Span()))
		}
	}
}

func sigMatches(t *Tables, sig *ast.PerkMethodSig, impl *ast.FnDecl) bool {
	if len(sig.Params) != len(impl.Params) {
		return false
	}
	for i := range sig.Params {
		if !Equal(t.Resolve(sig.Params[i].Type), t.Resolve(impl.Params[i].Type)) {
			return false
		}
	}
	sigRet := Type(Blank)
	if sig.ReturnType != nil {
		sigRet = t.Resolve(sig.ReturnType)
	}
	implRet := Type(Blank)
	if impl.ReturnType != nil {
		implRet = t.Resolve(impl.ReturnType)
	}
	return Equal(sigRet, implRet)
}
