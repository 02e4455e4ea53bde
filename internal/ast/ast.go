// Package ast defines the abstract syntax tree produced by internal/parser
// and consumed by internal/types, internal/generics, internal/borrow, and
// internal/codegen/llvm. Every node carries a source Span for diagnostics;
// Pass 2 (internal/types) annotates selected nodes in place with resolved
// types rather than building a side-table.
package ast

import "github.com/sushi-lang/sushic/internal/lexer"

// Span is re-exported from lexer so every package that walks the AST shares
// one source-location type.
type Span = lexer.Span

// Node is implemented by every AST node.
type Node interface {
	Span() Span
	SetSpan(Span)
}

type baseNode struct {
	span Span
}

func (n *baseNode) Span() Span     { return n.span }
func (n *baseNode) SetSpan(s Span) { n.span = s }

// RefMode is the borrow mode of a reference type or expression.
type RefMode int

const (
	RefNone RefMode = iota
	RefPeek
	RefPoke
)

func (m RefMode) String() string {
	switch m {
	case RefPeek:
		return "peek"
	case RefPoke:
		return "poke"
	default:
		return ""
	}
}

// ---------------------------------------------------------------------
// Top-level structure
// ---------------------------------------------------------------------

// File is the root of one parsed source file.
type File struct {
	baseNode
	Filename  string
	Package   *PackageDecl
	Uses      []*UseDecl
	Consts    []*ConstDecl
	Structs   []*StructDecl
	Enums     []*EnumDecl
	Perks     []*PerkDecl
	Functions []*FnDecl
	Extends   []*ExtendDecl
}

func NewFile(filename string) *File { return &File{Filename: filename} }

// PackageDecl names the package a file belongs to.
type PackageDecl struct {
	baseNode
	Name string
}

func NewPackageDecl(name string, span Span) *PackageDecl {
	p := &PackageDecl{Name: name}
	p.SetSpan(span)
	return p
}

// UseDecl imports another module/package path.
type UseDecl struct {
	baseNode
	Path  string
	Alias string
}

func NewUseDecl(path, alias string, span Span) *UseDecl {
	u := &UseDecl{Path: path, Alias: alias}
	u.SetSpan(span)
	return u
}

// GenericParam is one entry of a declaration's type-parameter list, with
// optional perk constraints (`T: Hashable + Eq`).
type GenericParam struct {
	baseNode
	Name        string
	Constraints []string
}

func NewGenericParam(name string, constraints []string, span Span) *GenericParam {
	g := &GenericParam{Name: name, Constraints: constraints}
	g.SetSpan(span)
	return g
}

// Param is one function/method parameter.
type Param struct {
	baseNode
	Name    string
	Type    TypeExpr
	RefMode RefMode
}

func NewParam(name string, t TypeExpr, mode RefMode, span Span) *Param {
	p := &Param{Name: name, Type: t, RefMode: mode}
	p.SetSpan(span)
	return p
}

// ConstDecl is a top-level `const` declaration.
type ConstDecl struct {
	baseNode
	Name   string
	Type   TypeExpr
	Value  Expr
	Public bool
}

func NewConstDecl(name string, t TypeExpr, value Expr, public bool, span Span) *ConstDecl {
	c := &ConstDecl{Name: name, Type: t, Value: value, Public: public}
	c.SetSpan(span)
	return c
}

// StructField is one field of a struct declaration.
type StructField struct {
	baseNode
	Name string
	Type TypeExpr
}

func NewStructField(name string, t TypeExpr, span Span) *StructField {
	f := &StructField{Name: name, Type: t}
	f.SetSpan(span)
	return f
}

// StructDecl declares a (possibly generic) struct type.
type StructDecl struct {
	baseNode
	Name       string
	TypeParams []*GenericParam
	Fields     []*StructField
	Public     bool
}

func NewStructDecl(name string, tparams []*GenericParam, fields []*StructField, public bool, span Span) *StructDecl {
	s := &StructDecl{Name: name, TypeParams: tparams, Fields: fields, Public: public}
	s.SetSpan(span)
	return s
}

func (s *StructDecl) IsGeneric() bool { return len(s.TypeParams) > 0 }

// EnumVariant is one variant of an enum declaration; Assoc holds the tuple
// of associated payload types (empty for a unit variant).
type EnumVariant struct {
	baseNode
	Name  string
	Assoc []TypeExpr
}

func NewEnumVariant(name string, assoc []TypeExpr, span Span) *EnumVariant {
	v := &EnumVariant{Name: name, Assoc: assoc}
	v.SetSpan(span)
	return v
}

// EnumDecl declares a (possibly generic) tagged-union enum type.
type EnumDecl struct {
	baseNode
	Name       string
	TypeParams []*GenericParam
	Variants   []*EnumVariant
	Public     bool
}

func NewEnumDecl(name string, tparams []*GenericParam, variants []*EnumVariant, public bool, span Span) *EnumDecl {
	e := &EnumDecl{Name: name, TypeParams: tparams, Variants: variants, Public: public}
	e.SetSpan(span)
	return e
}

func (e *EnumDecl) IsGeneric() bool { return len(e.TypeParams) > 0 }

// PerkMethodSig is one required method signature inside a perk declaration.
type PerkMethodSig struct {
	baseNode
	Name       string
	Params     []*Param
	ReturnType TypeExpr
}

func NewPerkMethodSig(name string, params []*Param, ret TypeExpr, span Span) *PerkMethodSig {
	m := &PerkMethodSig{Name: name, Params: params, ReturnType: ret}
	m.SetSpan(span)
	return m
}

// PerkDecl declares a perk (trait): a named set of required method
// signatures,/
type PerkDecl struct {
	baseNode
	Name    string
	Methods []*PerkMethodSig
}

func NewPerkDecl(name string, methods []*PerkMethodSig, span Span) *PerkDecl {
	p := &PerkDecl{Name: name, Methods: methods}
	p.SetSpan(span)
	return p
}

// FnDecl declares a top-level function, a perk method body, or an extension
// method body (those last two are held inside ExtendDecl.Methods instead).
// Every sushi function implicitly returns Result<ReturnType, ErrType>;
// ErrType defaults to StdError when nil.
type FnDecl struct {
	baseNode
	Name       string
	TypeParams []*GenericParam
	Params     []*Param
	ReturnType TypeExpr
	ErrType    TypeExpr
	Body       *BlockExpr
	Public     bool

	// MangledName is filled in by internal/generics during monomorphization;
	// empty for non-generic functions.
	MangledName string
}

func NewFnDecl(name string, tparams []*GenericParam, params []*Param, ret, errType TypeExpr, body *BlockExpr, public bool, span Span) *FnDecl {
	f := &FnDecl{Name: name, TypeParams: tparams, Params: params, ReturnType: ret, ErrType: errType, Body: body, Public: public}
	f.SetSpan(span)
	return f
}

func (f *FnDecl) IsGeneric() bool { return len(f.TypeParams) > 0 }

// ExtendDecl is `extend T with Perk { ... }` (a perk implementation) or the
// perk-less `extend T { ... }` (a plain extension-method block).
type ExtendDecl struct {
	baseNode
	Target     TypeExpr
	TypeParams []*GenericParam
	PerkName   string // empty for a plain extension block
	Methods    []*FnDecl
}

func NewExtendDecl(target TypeExpr, tparams []*GenericParam, perkName string, methods []*FnDecl, span Span) *ExtendDecl {
	e := &ExtendDecl{Target: target, TypeParams: tparams, PerkName: perkName, Methods: methods}
	e.SetSpan(span)
	return e
}

func (e *ExtendDecl) IsPerkImpl() bool { return e.PerkName != "" }

// ---------------------------------------------------------------------
// Type expressions (syntax; resolved to internal/types.Type in Pass 0/1.6/2)
// ---------------------------------------------------------------------

// TypeExpr is a type as written in source, before resolution.
type TypeExpr interface {
	Node
	typeExprNode()
}

type baseTypeExpr struct{ baseNode }

func (*baseTypeExpr) typeExprNode() {}

// NamedTypeExpr is a bare name: a builtin, or a struct/enum name that
// resolves to ast's UnknownType placeholder until Pass 0 runs.
type NamedTypeExpr struct {
	baseTypeExpr
	Name string
}

func NewNamedTypeExpr(name string, span Span) *NamedTypeExpr {
	t := &NamedTypeExpr{Name: name}
	t.SetSpan(span)
	return t
}

// GenericTypeExpr is `Base<Arg1, Arg2, ...>` syntax.
type GenericTypeExpr struct {
	baseTypeExpr
	Base string
	Args []TypeExpr
}

func NewGenericTypeExpr(base string, args []TypeExpr, span Span) *GenericTypeExpr {
	t := &GenericTypeExpr{Base: base, Args: args}
	t.SetSpan(span)
	return t
}

// FixedArrayTypeExpr is `T[n]` with a compile-time-constant size expression.
type FixedArrayTypeExpr struct {
	baseTypeExpr
	Elem TypeExpr
	Size Expr
}

func NewFixedArrayTypeExpr(elem TypeExpr, size Expr, span Span) *FixedArrayTypeExpr {
	t := &FixedArrayTypeExpr{Elem: elem, Size: size}
	t.SetSpan(span)
	return t
}

// DynArrayTypeExpr is `T[]`.
type DynArrayTypeExpr struct {
	baseTypeExpr
	Elem TypeExpr
}

func NewDynArrayTypeExpr(elem TypeExpr, span Span) *DynArrayTypeExpr {
	t := &DynArrayTypeExpr{Elem: elem}
	t.SetSpan(span)
	return t
}

// ReferenceTypeExpr is `&peek T` or `&poke T`.
type ReferenceTypeExpr struct {
	baseTypeExpr
	Mode  RefMode
	Inner TypeExpr
}

func NewReferenceTypeExpr(mode RefMode, inner TypeExpr, span Span) *ReferenceTypeExpr {
	t := &ReferenceTypeExpr{Mode: mode, Inner: inner}
	t.SetSpan(span)
	return t
}

// BlankTypeExpr is the unit type `~`.
type BlankTypeExpr struct{ baseTypeExpr }

func NewBlankTypeExpr(span Span) *BlankTypeExpr {
	t := &BlankTypeExpr{}
	t.SetSpan(span)
	return t
}

// ResolvedTypeExpr wraps an already-resolved internal/types.Type (carried as
// interface{} to avoid an ast->types import cycle). internal/generics
// synthesizes these when substituting a generic template's parameter/return/
// cast/let types with concrete arguments during monomorphization, so later
// passes resolve them without re-parsing a name.
type ResolvedTypeExpr struct {
	baseTypeExpr
	Resolved interface{}
}

func NewResolvedTypeExpr(resolved interface{}, span Span) *ResolvedTypeExpr {
	t := &ResolvedTypeExpr{Resolved: resolved}
	t.SetSpan(span)
	return t
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

type baseStmt struct{ baseNode }

func (*baseStmt) stmtNode() {}

// LetStmt declares and initializes a new binding.
type LetStmt struct {
	baseStmt
	Name  string
	Type  TypeExpr
	Value Expr
}

func NewLetStmt(name string, t TypeExpr, value Expr, span Span) *LetStmt {
	s := &LetStmt{Name: name, Type: t, Value: value}
	s.SetSpan(span)
	return s
}

// ReturnStmt must hold a Result.Ok(_)/Result.Err(_) constructor call.
type ReturnStmt struct {
	baseStmt
	Value Expr
}

func NewReturnStmt(value Expr, span Span) *ReturnStmt {
	s := &ReturnStmt{Value: value}
	s.SetSpan(span)
	return s
}

// RebindStmt is `target := value`; Target is an Ident
// or a FieldExpr (field rebind).
type RebindStmt struct {
	baseStmt
	Target Expr
	Value  Expr
}

func NewRebindStmt(target, value Expr, span Span) *RebindStmt {
	s := &RebindStmt{Target: target, Value: value}
	s.SetSpan(span)
	return s
}

// ExprStmt wraps a bare expression used for its side effect.
type ExprStmt struct {
	baseStmt
	Expr Expr
}

func NewExprStmt(e Expr, span Span) *ExprStmt {
	s := &ExprStmt{Expr: e}
	s.SetSpan(span)
	return s
}

// WhileStmt is a conditional loop.
type WhileStmt struct {
	baseStmt
	Cond Expr
	Body *BlockExpr
}

func NewWhileStmt(cond Expr, body *BlockExpr, span Span) *WhileStmt {
	s := &WhileStmt{Cond: cond, Body: body}
	s.SetSpan(span)
	return s
}

// ForeachStmt iterates an IteratorType<T> value.
type ForeachStmt struct {
	baseStmt
	VarName  string
	ItemType TypeExpr // optional explicit annotation
	Iterable Expr
	Body     *BlockExpr

	// ElemType is filled in by Pass 2 with the resolved iterator element type.
	ElemType interface{}
}

func NewForeachStmt(varName string, itemType TypeExpr, iterable Expr, body *BlockExpr, span Span) *ForeachStmt {
	s := &ForeachStmt{VarName: varName, ItemType: itemType, Iterable: iterable, Body: body}
	s.SetSpan(span)
	return s
}

// BreakStmt exits the nearest enclosing loop.
type BreakStmt struct{ baseStmt }

func NewBreakStmt(span Span) *BreakStmt {
	s := &BreakStmt{}
	s.SetSpan(span)
	return s
}

// ContinueStmt jumps to the nearest enclosing loop's condition check.
type ContinueStmt struct{ baseStmt }

func NewContinueStmt(span Span) *ContinueStmt {
	s := &ContinueStmt{}
	s.SetSpan(span)
	return s
}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()

	// ResolvedType holds whatever internal/types.Type Pass 2 attaches; kept
	// as interface{} here to avoid an import cycle between ast and types.
	ResolvedType() interface{}
	SetResolvedType(interface{})
}

type baseExpr struct {
	baseNode
	resolved interface{}
}

func (*baseExpr) exprNode()                       {}
func (e *baseExpr) ResolvedType() interface{}     { return e.resolved }
func (e *baseExpr) SetResolvedType(t interface{}) { e.resolved = t }

// BlockExpr is `{ stmt; stmt; tailExpr }`; Tail is nil when the block ends
// in a statement rather than a trailing expression.
type BlockExpr struct {
	baseExpr
	Stmts []Stmt
	Tail  Expr
}

func NewBlockExpr(stmts []Stmt, tail Expr, span Span) *BlockExpr {
	b := &BlockExpr{Stmts: stmts, Tail: tail}
	b.SetSpan(span)
	return b
}

// Ident is a bare name reference.
type Ident struct {
	baseExpr
	Name string
}

func NewIdent(name string, span Span) *Ident {
	i := &Ident{Name: name}
	i.SetSpan(span)
	return i
}

// IntLiteral is an integer literal; its concrete builtin width is assigned
// contextually by Pass 2.
type IntLiteral struct {
	baseExpr
	Value int64
	Raw   string
}

func NewIntLiteral(value int64, raw string, span Span) *IntLiteral {
	l := &IntLiteral{Value: value, Raw: raw}
	l.SetSpan(span)
	return l
}

// FloatLiteral is a floating-point literal.
type FloatLiteral struct {
	baseExpr
	Value float64
	Raw   string
}

func NewFloatLiteral(value float64, raw string, span Span) *FloatLiteral {
	l := &FloatLiteral{Value: value, Raw: raw}
	l.SetSpan(span)
	return l
}

// StringLiteral is a double-quoted string literal.
type StringLiteral struct {
	baseExpr
	Value string
}

func NewStringLiteral(value string, span Span) *StringLiteral {
	l := &StringLiteral{Value: value}
	l.SetSpan(span)
	return l
}

// BoolLiteral is `true`/`false`.
type BoolLiteral struct {
	baseExpr
	Value bool
}

func NewBoolLiteral(value bool, span Span) *BoolLiteral {
	l := &BoolLiteral{Value: value}
	l.SetSpan(span)
	return l
}

// NilLiteral is the `nil` literal (internal pointer null, not user-facing
// outside of unsafe interop contexts).
type NilLiteral struct{ baseExpr }

func NewNilLiteral(span Span) *NilLiteral {
	l := &NilLiteral{}
	l.SetSpan(span)
	return l
}

// BlankLiteral is the unit value `~`, used as a placeholder initializer.
type BlankLiteral struct{ baseExpr }

func NewBlankLiteral(span Span) *BlankLiteral {
	l := &BlankLiteral{}
	l.SetSpan(span)
	return l
}

// ArrayLiteral is `[e1, e2, ...]`.
type ArrayLiteral struct {
	baseExpr
	Elements []Expr
}

func NewArrayLiteral(elements []Expr, span Span) *ArrayLiteral {
	l := &ArrayLiteral{Elements: elements}
	l.SetSpan(span)
	return l
}

// PrefixExpr is a unary operator expression (`-x`, `!x`).
type PrefixExpr struct {
	baseExpr
	Op    string
	Right Expr
}

func NewPrefixExpr(op string, right Expr, span Span) *PrefixExpr {
	e := &PrefixExpr{Op: op, Right: right}
	e.SetSpan(span)
	return e
}

// InfixExpr is a binary operator expression.
type InfixExpr struct {
	baseExpr
	Op    string
	Left  Expr
	Right Expr
}

func NewInfixExpr(op string, left, right Expr, span Span) *InfixExpr {
	e := &InfixExpr{Op: op, Left: left, Right: right}
	e.SetSpan(span)
	return e
}

// RefExpr takes a peek (shared) or poke (exclusive) reference to its target.
type RefExpr struct {
	baseExpr
	Mode   RefMode
	Target Expr
}

func NewRefExpr(mode RefMode, target Expr, span Span) *RefExpr {
	e := &RefExpr{Mode: mode, Target: target}
	e.SetSpan(span)
	return e
}

// NamedArg is one `name: value` entry of a named-argument call or struct
// literal.
type NamedArg struct {
	Name  string
	Value Expr
}

// CallExpr covers struct constructors, enum constructors, plain/generic
// function calls, method calls, and stdlib calls; internal/types
// disambiguates by resolving Callee.
// Exactly one of Args or NamedArgs is populated per call site.
type CallExpr struct {
	baseExpr
	Callee    Expr
	TypeArgs  []TypeExpr
	Args      []Expr
	NamedArgs []NamedArg

	// MangledCallee is set by Pass 2 when Callee resolves to a monomorphized
	// generic function or constructor.
	MangledCallee string
}

func NewCallExpr(callee Expr, typeArgs []TypeExpr, args []Expr, named []NamedArg, span Span) *CallExpr {
	c := &CallExpr{Callee: callee, TypeArgs: typeArgs, Args: args, NamedArgs: named}
	c.SetSpan(span)
	return c
}

func (c *CallExpr) IsNamed() bool { return len(c.NamedArgs) > 0 }

// FieldExpr is `target.field`; also used for `Enum.Variant` constructor
// callee syntax and for namespaced stdlib calls (`math.sqrt`).
type FieldExpr struct {
	baseExpr
	Target Expr
	Field  string
}

func NewFieldExpr(target Expr, field string, span Span) *FieldExpr {
	e := &FieldExpr{Target: target, Field: field}
	e.SetSpan(span)
	return e
}

// IndexExpr is `target[index]`.
type IndexExpr struct {
	baseExpr
	Target Expr
	Index  Expr
}

func NewIndexExpr(target, index Expr, span Span) *IndexExpr {
	e := &IndexExpr{Target: target, Index: index}
	e.SetSpan(span)
	return e
}

// CastExpr is `value as T`.
type CastExpr struct {
	baseExpr
	Value Expr
	Type  TypeExpr
}

func NewCastExpr(value Expr, t TypeExpr, span Span) *CastExpr {
	e := &CastExpr{Value: value, Type: t}
	e.SetSpan(span)
	return e
}

// TryExpr is `expr??`.
type TryExpr struct {
	baseExpr
	Value Expr

	// Annotations filled in by Pass 2 and consumed directly by Pass 4, which
	// emits the branch without re-deriving anything.
	InnerType    interface{}
	SuccessTag   int
	SuccessType  interface{}
	ErrTag       int
	ErrType      interface{}
	EnclosingRet interface{}
}

func NewTryExpr(value Expr, span Span) *TryExpr {
	e := &TryExpr{Value: value}
	e.SetSpan(span)
	return e
}

// IfExpr is `if cond { then } else else` used as either a statement or a
// tail expression producing a value.
type IfExpr struct {
	baseExpr
	Cond Expr
	Then *BlockExpr
	Else Expr // nil, *BlockExpr, or nested *IfExpr
}

func NewIfExpr(cond Expr, then *BlockExpr, els Expr, span Span) *IfExpr {
	e := &IfExpr{Cond: cond, Then: then, Else: els}
	e.SetSpan(span)
	return e
}

// MatchArm is one arm of a MatchExpr.
type MatchArm struct {
	Pattern Pattern
	Body    *BlockExpr
}

// MatchExpr is a pattern-match switch on an enum scrutinee.
type MatchExpr struct {
	baseExpr
	Scrutinee Expr
	Arms      []*MatchArm
}

func NewMatchExpr(scrutinee Expr, arms []*MatchArm, span Span) *MatchExpr {
	m := &MatchExpr{Scrutinee: scrutinee, Arms: arms}
	m.SetSpan(span)
	return m
}

// PrintlnExpr is the builtin `println` statement-expression.
type PrintlnExpr struct {
	baseExpr
	Value Expr
}

func NewPrintlnExpr(value Expr, span Span) *PrintlnExpr {
	e := &PrintlnExpr{Value: value}
	e.SetSpan(span)
	return e
}
