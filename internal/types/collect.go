package types

import (
	"github.com/sushi-lang/sushic/internal/ast"
	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/sema"
)

// Collector runs Pass 0: a single walk of the AST building the
// process-wide tables. It does not resolve generic bodies or type-check
// expressions; later passes do that against the tables built here.
type Collector struct {
	Tables   *Tables
	Reporter *diag.Reporter

	names map[string]ast.Span // every top-level name -> first declaration span, across namespaces
}

// NewCollector creates a Pass 0 collector over an existing (possibly
// builtin-seeded) table set.
func NewCollector(tables *Tables, reporter *diag.Reporter) *Collector {
	return &Collector{Tables: tables, Reporter: reporter, names: map[string]ast.Span{}}
}

// RegisterBuiltins seeds the Result<Ok,Err> and Maybe<T> generic enum
// templates every sushi program implicitly has available.
func RegisterBuiltins(t *Tables) {
	resultDecl := ast.NewEnumDecl("Result",
		[]*ast.GenericParam{ast.NewGenericParam("Ok", nil, ast.Span{}), ast.NewGenericParam("Err", nil, ast.Span{})},
		[]*ast.EnumVariant{
			ast.NewEnumVariant("Ok", []ast.TypeExpr{ast.NewNamedTypeExpr("Ok", ast.Span{})}, ast.Span{}),
			ast.NewEnumVariant("Err", []ast.TypeExpr{ast.NewNamedTypeExpr("Err", ast.Span{})}, ast.Span{}),
		}, true, ast.Span{})
	maybeDecl := ast.NewEnumDecl("Maybe",
		[]*ast.GenericParam{ast.NewGenericParam("T", nil, ast.Span{})},
		[]*ast.EnumVariant{
			ast.NewEnumVariant("Some", []ast.TypeExpr{ast.NewNamedTypeExpr("T", ast.Span{})}, ast.Span{}),
			ast.NewEnumVariant("None", nil, ast.Span{}),
		}, true, ast.Span{})

	t.GenericEnumTable["Result"] = &GenericEnumTemplate{Decl: resultDecl}
	t.GenericEnumTable["Maybe"] = &GenericEnumTemplate{Decl: maybeDecl}
}

// CollectFile walks one parsed file, registering every top-level definition.
func (c *Collector) CollectFile(f *ast.File) {
	for _, u := range f.Consts {
		c.collectConst(u)
	}
	for _, s := range f.Structs {
		c.collectStruct(s)
	}
	for _, e := range f.Enums {
		c.collectEnum(e)
	}
	for _, p := range f.Perks {
		c.collectPerk(p)
	}
	for _, fn := range f.Functions {
		c.collectFunc(fn)
	}
	for _, ext := range f.Extends {
		c.collectExtend(ext)
	}
}

func (c *Collector) checkDuplicate(name string, span ast.Span) bool {
	if prev, ok := c.names[name]; ok {
		d := diag.Diagnostic{
			Stage: diag.StageCollect, Severity: diag.SeverityError, Code: diag.CodeDuplicateDefinition,
			Message: "duplicate top-level definition '" + name + "'", Span: toDiagSpan(span),
		}.WithSecondarySpan(toDiagSpan(prev), "previously defined here")
		c.Reporter.Report(d)
		return true
	}
	c.names[name] = span
	return false
}

func (c *Collector) collectConst(d *ast.ConstDecl) {
	if c.checkDuplicate(d.Name, d.Span()) {
		return
	}
	entry := &ConstantEntry{Decl: d, Type: c.Tables.Resolve(d.Type)}
	if v, err := sema.Eval(d.Value); err == nil {
		switch v.Kind {
		case sema.KindInt:
			entry.Value = v.Int
		case sema.KindFloat:
			entry.Value = v.Flt
		case sema.KindBool:
			entry.Value = v.Bool
		case sema.KindString:
			entry.Value = v.Str
		}
	} else {
		c.Reporter.Error(diag.StageCollect, diag.CodeUnresolvedConstExpr,
			"const '"+d.Name+"' initializer is not a compile-time constant: "+err.Error(), toDiagSpan(d.Span()))
	}
	c.Tables.ConstantTable[d.Name] = entry
}

func (c *Collector) collectStruct(d *ast.StructDecl) {
	if c.checkDuplicate(d.Name, d.Span()) {
		return
	}
	for _, f := range d.Fields {
		if f.Type == nil {
			c.Reporter.Error(diag.StageCollect, diag.CodeMissingFieldType,
				"field '"+f.Name+"' of struct '"+d.Name+"' has no declared type", toDiagSpan(f.Span()))
		}
	}
	if d.IsGeneric() {
		c.Tables.GenericStructTable[d.Name] = &GenericStructTemplate{Decl: d}
		return
	}
	fields := make([]StructField, 0, len(d.Fields))
	for _, f := range d.Fields {
		fields = append(fields, StructField{Name: f.Name, Type: c.Tables.Resolve(f.Type)})
	}
	c.Tables.StructTable[d.Name] = &StructType{Name: d.Name, Fields: fields, Public: d.Public}
}

func (c *Collector) collectEnum(d *ast.EnumDecl) {
	if c.checkDuplicate(d.Name, d.Span()) {
		return
	}
	if d.IsGeneric() {
		c.Tables.GenericEnumTable[d.Name] = &GenericEnumTemplate{Decl: d}
		return
	}
	variants := make([]EnumVariant, 0, len(d.Variants))
	for _, v := range d.Variants {
		assoc := make([]Type, 0, len(v.Assoc))
		for _, a := range v.Assoc {
			assoc = append(assoc, c.Tables.Resolve(a))
		}
		variants = append(variants, EnumVariant{Name: v.Name, Assoc: assoc})
	}
	c.Tables.EnumTable[d.Name] = &EnumType{Name: d.Name, Variants: variants, Public: d.Public}
}

func (c *Collector) collectPerk(d *ast.PerkDecl) {
	if c.checkDuplicate(d.Name, d.Span()) {
		return
	}
	methods := map[string]*ast.PerkMethodSig{}
	for _, m := range d.Methods {
		methods[m.Name] = m
	}
	c.Tables.PerkTable[d.Name] = &PerkEntry{Decl: d, Methods: methods}
}

func (c *Collector) collectFunc(d *ast.FnDecl) {
	if c.checkDuplicate(d.Name, d.Span()) {
		return
	}
	for _, p := range d.Params {
		if p.Type == nil {
			c.Reporter.Error(diag.StageCollect, diag.CodeMissingParamType,
				"parameter '"+p.Name+"' of '"+d.Name+"' has no declared type", toDiagSpan(p.Span()))
		}
	}
	if d.IsGeneric() {
		c.Tables.GenericFunctionTable[d.Name] = &GenericFunctionTemplate{Decl: d}
		return
	}
	c.registerConcreteFunc(d)
}

// registerConcreteFunc resolves and records the FunctionEntry of a
// non-generic top-level function (Pass 0). Monomorphized instances
// (Pass 1.6) are registered by internal/generics, not through here.
func (c *Collector) registerConcreteFunc(d *ast.FnDecl) {
	params := make([]Type, len(d.Params))
	for i, p := range d.Params {
		params[i] = c.Tables.Resolve(p.Type)
	}
	var ret Type = Blank
	if d.ReturnType != nil {
		ret = c.Tables.Resolve(d.ReturnType)
	}
	errType := Type(&StructType{Name: "StdError"})
	if d.ErrType != nil {
		errType = c.Tables.Resolve(d.ErrType)
	}
	c.Tables.FunctionTable[d.Name] = &FunctionEntry{
		Decl: d, Name: d.Name, ParamTypes: params, ReturnType: ret, ErrType: errType, Public: d.Public,
	}
	c.Tables.Functions = append(c.Tables.Functions, d)
}

func (c *Collector) collectExtend(d *ast.ExtendDecl) {
	targetName := typeExprName(d.Target)
	if d.IsPerkImpl() {
		bucket, ok := c.Tables.PerkImplTable[targetName]
		if !ok {
			bucket = map[string]*PerkImplEntry{}
			c.Tables.PerkImplTable[targetName] = bucket
		}
		bucket[d.PerkName] = &PerkImplEntry{TargetName: targetName, PerkName: d.PerkName, Decl: d}
	}
	receiver := c.Tables.Resolve(d.Target)
	for _, m := range d.Methods {
		params := make([]Type, len(m.Params))
		for i, p := range m.Params {
			params[i] = c.Tables.Resolve(p.Type)
		}
		var ret Type = Blank
		if m.ReturnType != nil {
			ret = c.Tables.Resolve(m.ReturnType)
		}
		errType := Type(&StructType{Name: "StdError"})
		if m.ErrType != nil {
			errType = c.Tables.Resolve(m.ErrType)
		}
		c.Tables.AddExtension(targetName, &ExtensionMethod{
			Decl: m, Receiver: receiver, ParamTypes: params, ReturnType: ret, ErrType: errType, FromPerk: d.PerkName,
		})
		c.Tables.Functions = append(c.Tables.Functions, m)
	}
}

func typeExprName(t ast.TypeExpr) string {
	switch n := t.(type) {
	case *ast.NamedTypeExpr:
		return n.Name
	case *ast.GenericTypeExpr:
		return n.Base
	default:
		return ""
	}
}

func toDiagSpan(s ast.Span) diag.Span {
	return diag.Span{Filename: s.Filename, Line: s.Line, Column: s.Column, Start: s.Start, End: s.End}
}
