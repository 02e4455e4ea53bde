package types

// ProviderMethodSpec is one entry of a built-in generic collection's fixed
// method dictionary:
// `method_name -> MethodSpec{params, return_type, static-or-instance,
// mutating-or-read-only}`. Parameter/return types are expressed in terms of
// the provider's own TypeParameter placeholders ("T", "K", "V", "Ok", "Err") and
// substituted against the receiver's concrete GenericArgs by
// ResolveProviderMethod.
type ProviderMethodSpec struct {
	Params     []Type
	Return     Type
	IsStatic   bool
	IsMutating bool
}

// Provider is one built-in generic collection (List, HashMap, Maybe,
// Result, Own).
type Provider struct {
	Base       string
	TypeParams []string
	Methods    map[string]ProviderMethodSpec
}

// ProviderRegistry is the process-wide dictionary of built-in generic
// collection providers. Pass 2 (method resolution) and Pass 4 (IR
// emission) both read it; internal/codegen/llvm supplies the emit behavior,
// kept in internal/codegen/llvm/providers.go since it needs llir/llvm.
var ProviderRegistry = map[string]*Provider{
	"List": {
		Base: "List", TypeParams: []string{"T"},
		Methods: map[string]ProviderMethodSpec{
			"new":     {Return: &GenericTypeRef{BaseName: "List", TypeArgs: []Type{&TypeParameter{Name: "T"}}}, IsStatic: true},
			"from":    {Params: []Type{&DynamicArrayType{Elem: &TypeParameter{Name: "T"}}}, Return: &GenericTypeRef{BaseName: "List", TypeArgs: []Type{&TypeParameter{Name: "T"}}}, IsStatic: true},
			"push":    {Params: []Type{&TypeParameter{Name: "T"}}, Return: Blank, IsMutating: true},
			"pop":     {Return: &GenericTypeRef{BaseName: "Maybe", TypeArgs: []Type{&TypeParameter{Name: "T"}}}, IsMutating: true},
			"get":     {Params: []Type{I32}, Return: &GenericTypeRef{BaseName: "Maybe", TypeArgs: []Type{&TypeParameter{Name: "T"}}}},
			"set":     {Params: []Type{I32, &TypeParameter{Name: "T"}}, Return: Blank, IsMutating: true},
			"len":     {Return: I32},
			"iter":    {Return: &IteratorType{Elem: &TypeParameter{Name: "T"}}},
			"destroy": {Return: Blank, IsMutating: true},
		},
	},
	"HashMap": {
		Base: "HashMap", TypeParams: []string{"K", "V"},
		Methods: map[string]ProviderMethodSpec{
			"new":    {Return: &GenericTypeRef{BaseName: "HashMap", TypeArgs: []Type{&TypeParameter{Name: "K"}, &TypeParameter{Name: "V"}}}, IsStatic: true},
			"insert": {Params: []Type{&TypeParameter{Name: "K"}, &TypeParameter{Name: "V"}}, Return: Blank, IsMutating: true},
			"get":    {Params: []Type{&TypeParameter{Name: "K"}}, Return: &GenericTypeRef{BaseName: "Maybe", TypeArgs: []Type{&TypeParameter{Name: "V"}}}},
			"remove": {Params: []Type{&TypeParameter{Name: "K"}}, Return: Bool, IsMutating: true},
			"has":    {Params: []Type{&TypeParameter{Name: "K"}}, Return: Bool},
			"len":    {Return: I32},
			"keys":   {Return: &IteratorType{Elem: &TypeParameter{Name: "K"}}},
			"values": {Return: &IteratorType{Elem: &TypeParameter{Name: "V"}}},
			"entries": {Return: &IteratorType{Elem: &GenericTypeRef{BaseName: "Pair", TypeArgs: []Type{
				&TypeParameter{Name: "K"}, &TypeParameter{Name: "V"},
			}}}},
			"destroy": {Return: Blank, IsMutating: true},
		},
	},
	"Maybe": {
		Base: "Maybe", TypeParams: []string{"T"},
		Methods: map[string]ProviderMethodSpec{
			"realise": {Params: []Type{&TypeParameter{Name: "T"}}, Return: &TypeParameter{Name: "T"}},
			"is_some": {Return: Bool},
			"is_none": {Return: Bool},
			"map":     {Params: []Type{&TypeParameter{Name: "T"}}, Return: &GenericTypeRef{BaseName: "Maybe", TypeArgs: []Type{&TypeParameter{Name: "T"}}}},
		},
	},
	"Result": {
		Base: "Result", TypeParams: []string{"Ok", "Err"},
		Methods: map[string]ProviderMethodSpec{
			"is_ok":  {Return: Bool},
			"is_err": {Return: Bool},
		},
	},
	"Own": {
		Base: "Own", TypeParams: []string{"T"},
		Methods: map[string]ProviderMethodSpec{
			"alloc":   {Params: []Type{&TypeParameter{Name: "T"}}, Return: &GenericTypeRef{BaseName: "Own", TypeArgs: []Type{&TypeParameter{Name: "T"}}}, IsStatic: true},
			"get":     {Return: &ReferenceType{Referenced: &TypeParameter{Name: "T"}, Mode: RefPoke}},
			"destroy": {Return: Blank, IsMutating: true},
		},
	},
}

// ResolveProviderMethod looks up method on the provider named base and
// substitutes the provider's type-parameter placeholders with concreteArgs
// (positional, matching Provider.TypeParams order).
func ResolveProviderMethod(base, method string, concreteArgs []Type) (ProviderMethodSpec, bool) {
	p, ok := ProviderRegistry[base]
	if !ok {
		return ProviderMethodSpec{}, false
	}
	spec, ok := p.Methods[method]
	if !ok {
		return ProviderMethodSpec{}, false
	}
	subst := map[string]Type{}
	for i, name := range p.TypeParams {
		if i < len(concreteArgs) {
			subst[name] = concreteArgs[i]
		}
	}
	params := make([]Type, len(spec.Params))
	for i, p := range spec.Params {
		params[i] = Substitute(p, subst)
	}
	spec.Params = params
	spec.Return = Substitute(spec.Return, subst)
	return spec, true
}

// IsProviderBase reports whether name is a built-in generic collection base.
func IsProviderBase(name string) bool {
	_, ok := ProviderRegistry[name]
	return ok
}
