package ast

// Pattern is implemented by every match-arm pattern node.
type Pattern interface {
	Node
	patternNode()
}

type basePattern struct{ baseNode }

func (*basePattern) patternNode() {}

// WildcardPattern is `_`; matches any tag and never declares a binding.
type WildcardPattern struct{ basePattern }

func NewWildcardPattern(span Span) *WildcardPattern {
	p := &WildcardPattern{}
	p.SetSpan(span)
	return p
}

// BindPattern binds the matched value (or payload slot) to a new variable.
type BindPattern struct {
	basePattern
	Name string
}

func NewBindPattern(name string, span Span) *BindPattern {
	p := &BindPattern{Name: name}
	p.SetSpan(span)
	return p
}

// EnumPattern is `Enum.Variant(sub1, ..., subN)`. SubPatterns may themselves
// be BindPattern, WildcardPattern, nested EnumPattern, or OwnPattern.
type EnumPattern struct {
	basePattern
	EnumName    string
	Variant     string
	SubPatterns []Pattern

	// VariantIndex is filled in by Pass 2 once the enum's variant order is
	// known, consumed by Pass 4's switch-table emission.
	VariantIndex int
}

func NewEnumPattern(enumName, variant string, subs []Pattern, span Span) *EnumPattern {
	p := &EnumPattern{EnumName: enumName, Variant: variant, SubPatterns: subs}
	p.SetSpan(span)
	return p
}

// OwnPattern unwraps an Own<T> box, binding Inner as a pattern on the
// unwrapped T.
type OwnPattern struct {
	basePattern
	Inner Pattern
}

func NewOwnPattern(inner Pattern, span Span) *OwnPattern {
	p := &OwnPattern{Inner: inner}
	p.SetSpan(span)
	return p
}
