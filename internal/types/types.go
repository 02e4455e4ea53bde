// Package types implements the compiler's closed type universe plus the
// process-wide symbol tables populated by Pass 0 and augmented by Pass 1.6,
// and the collection, scope, type-validation, and perk-validation passes
// that read and write them.
package types

import "strings"

// Type is implemented by every member of the closed type universe.
type Type interface {
	String() string
	IsType()
}

// ---------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------

// IntType is one of i8...i64, u8...u64.
type IntType struct {
	Width  int
	Signed bool
}

func (t *IntType) IsType() {}
func (t *IntType) String() string {
	if t.Signed {
		return "i" + itoa(t.Width)
	}
	return "u" + itoa(t.Width)
}

var (
	I8  = &IntType{Width: 8, Signed: true}
	I16 = &IntType{Width: 16, Signed: true}
	I32 = &IntType{Width: 32, Signed: true}
	I64 = &IntType{Width: 64, Signed: true}
	U8  = &IntType{Width: 8, Signed: false}
	U16 = &IntType{Width: 16, Signed: false}
	U32 = &IntType{Width: 32, Signed: false}
	U64 = &IntType{Width: 64, Signed: false}
)

// FloatType is f32 or f64.
type FloatType struct{ Width int }

func (t *FloatType) IsType()        {}
func (t *FloatType) String() string { return "f" + itoa(t.Width) }

var (
	F32 = &FloatType{Width: 32}
	F64 = &FloatType{Width: 64}
)

// BoolType is the builtin `bool`.
type BoolType struct{}

func (*BoolType) IsType()        {}
func (*BoolType) String() string { return "bool" }

// StringType is the fat-pointer `{ptr, i32 len}` builtin `string`.
type StringType struct{}

func (*StringType) IsType()        {}
func (*StringType) String() string { return "string" }

// BlankType is the unit type `~`.
type BlankType struct{}

func (*BlankType) IsType()        {}
func (*BlankType) String() string { return "~" }

// StreamType is one of the builtin stream markers (stdin, stdout, stderr,
// file); "Builtins".
type StreamType struct{ Kind string }

func (t *StreamType) IsType()        {}
func (t *StreamType) String() string { return t.Kind }

var (
	Bool   = &BoolType{}
	String = &StringType{}
	Blank  = &BlankType{}
	Stdin  = &StreamType{Kind: "stdin"}
	Stdout = &StreamType{Kind: "stdout"}
	Stderr = &StreamType{Kind: "stderr"}
	File   = &StreamType{Kind: "file"}
)

// ---------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------

// ArrayType is a fixed-size array `T[n]`.
type ArrayType struct {
	Elem Type
	Size int
}

func (t *ArrayType) IsType()        {}
func (t *ArrayType) String() string { return t.Elem.String() + "[" + itoa(t.Size) + "]" }

// DynamicArrayType is a runtime `{i32 len, i32 cap, elem* data}` array `T[]`.
type DynamicArrayType struct{ Elem Type }

func (t *DynamicArrayType) IsType()        {}
func (t *DynamicArrayType) String() string { return t.Elem.String() + "[]" }

// ---------------------------------------------------------------------
// Struct / Enum
// ---------------------------------------------------------------------

// StructField is one resolved field of a StructType.
type StructField struct {
	Name string
	Type Type
}

// StructType is a (possibly monomorphized) struct type.
type StructType struct {
	Name        string
	Fields      []StructField
	GenericBase string // non-empty when this is a monomorphized instance
	GenericArgs []Type
	Public      bool
}

func (t *StructType) IsType()        {}
func (t *StructType) String() string { return t.Name }

func (t *StructType) FieldType(name string) (Type, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// EnumVariant is one resolved variant of an EnumType.
type EnumVariant struct {
	Name  string
	Assoc []Type
}

// EnumType is a (possibly monomorphized) tagged-union enum type, laid out as
// `{i32 tag, [N x i8] data}`.
type EnumType struct {
	Name        string
	Variants    []EnumVariant
	GenericBase string
	GenericArgs []Type
	Public      bool
}

func (t *EnumType) IsType()        {}
func (t *EnumType) String() string { return t.Name }

func (t *EnumType) VariantIndex(name string) int {
	for i, v := range t.Variants {
		if v.Name == name {
			return i
		}
	}
	return -1
}

func (t *EnumType) Variant(name string) (*EnumVariant, int) {
	for i := range t.Variants {
		if t.Variants[i].Name == name {
			return &t.Variants[i], i
		}
	}
	return nil, -1
}

// IsResultShaped reports whether t structurally matches {Ok(T), Err(E)}.
func (t *EnumType) IsResultShaped() bool {
	return len(t.Variants) == 2 && t.Variants[0].Name == "Ok" && len(t.Variants[0].Assoc) == 1 &&
		t.Variants[1].Name == "Err" && len(t.Variants[1].Assoc) == 1
}

// IsMaybeShaped reports whether t structurally matches {Some(T), None}.
func (t *EnumType) IsMaybeShaped() bool {
	return len(t.Variants) == 2 && t.Variants[0].Name == "Some" && len(t.Variants[0].Assoc) == 1 &&
		t.Variants[1].Name == "None" && len(t.Variants[1].Assoc) == 0
}

// ---------------------------------------------------------------------
// References / pointers / iterators
// ---------------------------------------------------------------------

// RefMode mirrors ast.RefMode without importing ast (kept independent so
// internal/types has no dependency on the parser's concrete node set beyond
// the TypeExpr interface it resolves).
type RefMode int

const (
	RefPeek RefMode = iota
	RefPoke
)

func (m RefMode) String() string {
	if m == RefPoke {
		return "poke"
	}
	return "peek"
}

// ReferenceType is `&peek T` or `&poke T`.
type ReferenceType struct {
	Referenced Type
	Mode       RefMode
}

func (t *ReferenceType) IsType() {}
func (t *ReferenceType) String() string {
	return "&" + t.Mode.String() + " " + t.Referenced.String()
}

// PointerType is an internal-only pointer, never user-visible outside the
// built-in generic providers.
type PointerType struct{ Pointee Type }

func (t *PointerType) IsType()        {}
func (t *PointerType) String() string { return t.Pointee.String() + "*" }

// IteratorType is `{i32 index, i32 capacity_or_flag, elem* data}`; the
// high bits of the capacity field tag the iterator's provenance.
type IteratorType struct{ Elem Type }

func (t *IteratorType) IsType()        {}
func (t *IteratorType) String() string { return "Iterator<" + t.Elem.String() + ">" }

// ---------------------------------------------------------------------
// Generics (pre-monomorphization placeholders)
// ---------------------------------------------------------------------

// GenericTypeRef is `Base<arg1, arg2, ...>` before Pass 1.6 resolves it to a
// concrete StructType/EnumType.
type GenericTypeRef struct {
	BaseName string
	TypeArgs []Type
}

func (t *GenericTypeRef) IsType() {}
func (t *GenericTypeRef) String() string {
	return CanonicalName(t.BaseName, t.TypeArgs)
}

// TypeParameter is an unbound generic parameter name inside a template body.
type TypeParameter struct{ Name string }

func (t *TypeParameter) IsType()        {}
func (t *TypeParameter) String() string { return t.Name }

// ResultType is the semantic convenience marker that resolves to the
// concrete `Result<Ok,Err>` enum.
type ResultType struct {
	Ok  Type
	Err Type
}

func (t *ResultType) IsType() {}
func (t *ResultType) String() string {
	return CanonicalName("Result", []Type{t.Ok, t.Err})
}

// UnknownType is a name-only placeholder for a struct/enum reference that
// has not yet been resolved against the symbol tables.
type UnknownType struct{ Name string }

func (t *UnknownType) IsType()        {}
func (t *UnknownType) String() string { return t.Name }

// ---------------------------------------------------------------------
// Canonical naming / mangling
// ---------------------------------------------------------------------

// CanonicalName produces `Base<arg1, arg2, ...>` using each argument's
// canonical string spelling.
func CanonicalName(base string, args []Type) string {
	if len(args) == 0 {
		return base
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return base + "<" + strings.Join(parts, ", ") + ">"
}

// Mangle produces a function's mangled LLVM identifier: `base__arg1_arg2`
// with `<>,& *` sanitized.
func Mangle(base string, args []Type) string {
	if len(args) == 0 {
		return base
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = sanitizeMangle(a.String())
	}
	return base + "__" + strings.Join(parts, "_")
}

var mangleReplacer = strings.NewReplacer(
	"<", "_", ">", "", ",", "_", " ", "", "&", "ref_", "*", "ptr",
)

func sanitizeMangle(s string) string {
	return mangleReplacer.Replace(s)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Equal performs structural equality on the type universe: two types are
// equal when their canonical spellings match.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// IsHashable reports whether t qualifies for auto-derived.hash.
func IsHashable(t Type, seen map[string]bool) bool {
	switch v := t.(type) {
	case *IntType, *FloatType, *BoolType, *StringType:
		return true
	case *ArrayType:
		return IsHashable(v.Elem, seen)
	case *StructType:
		if seen[v.Name] {
			return true // cycle broken optimistically; hash registration rejects real structural cycles
		}
		seen = cloneSeen(seen)
		seen[v.Name] = true
		for _, f := range v.Fields {
			if !IsHashable(f.Type, seen) {
				return false
			}
		}
		return true
	case *EnumType:
		if seen[v.Name] {
			return true
		}
		seen = cloneSeen(seen)
		seen[v.Name] = true
		for _, variant := range v.Variants {
			for _, a := range variant.Assoc {
				if !IsHashable(a, seen) {
					return false
				}
			}
		}
		return true
	default:
		return false
	}
}

func cloneSeen(seen map[string]bool) map[string]bool {
	out := make(map[string]bool, len(seen)+1)
	for k, v := range seen {
		out[k] = v
	}
	return out
}

// SizeOf returns the semantic-type byte size used to compute enum payload
// layout and match-arm payload offsets
// . This is a structural estimate independent of target-specific
// LLVM alignment, which internal/codegen/llvm refines when lowering to IR.
func SizeOf(t Type) int {
	switch v := t.(type) {
	case *IntType:
		return v.Width / 8
	case *FloatType:
		return v.Width / 8
	case *BoolType:
		return 1
	case *StringType:
		return 16 // {i8*, i32} padded to 16
	case *BlankType:
		return 0
	case *ArrayType:
		return SizeOf(v.Elem) * v.Size
	case *DynamicArrayType:
		return 16 // {i32, i32, T*} padded to 16
	case *ReferenceType, *PointerType:
		return 8
	case *IteratorType:
		return 16
	case *StructType:
		total := 0
		for _, f := range v.Fields {
			total += SizeOf(f.Type)
		}
		return total
	case *EnumType:
		max := 0
		for _, variant := range v.Variants {
			sz := 0
			for _, a := range variant.Assoc {
				sz += SizeOf(a)
			}
			if sz > max {
				max = sz
			}
		}
		return 4 + max // i32 tag + payload
	default:
		return 8
	}
}
