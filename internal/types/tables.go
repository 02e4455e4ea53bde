package types

import "github.com/sushi-lang/sushic/internal/ast"

// GenericStructTemplate is an unresolved `struct Name<T...>` declaration kept
// for Pass 1.6 substitution.
type GenericStructTemplate struct {
	Decl *ast.StructDecl
}

// GenericEnumTemplate is an unresolved `enum Name<T...>` declaration.
type GenericEnumTemplate struct {
	Decl *ast.EnumDecl
}

// GenericFunctionTemplate is an unresolved `fn name<T...>(...)` declaration.
type GenericFunctionTemplate struct {
	Decl *ast.FnDecl
}

// FunctionEntry is a fully resolved (or about-to-be-checked) concrete
// function signature, shared by plain functions and monomorphized instances.
type FunctionEntry struct {
	Decl       *ast.FnDecl
	Name       string // mangled name for monomorphized instances
	ParamTypes []Type
	ReturnType Type
	ErrType    Type
	Public     bool
}

// ExtensionMethod is one `extend T { fn m(...) }` or perk-impl method,
// keyed by (receiver type name, method name) in ExtensionTable.
type ExtensionMethod struct {
	Decl       *ast.FnDecl
	Receiver   Type
	ParamTypes []Type
	ReturnType Type
	ErrType    Type
	FromPerk   string // non-empty when this came from a perk implementation

	// Synthetic marks a built-in method with no source FnDecl (the `.hash()`
	// methods Pass 1.7 registers, the stdio/string/number helpers);
	// internal/codegen/llvm emits these structurally from Receiver's shape
	// instead of from a body.
	Synthetic bool
}

// PerkEntry is a perk's required method signature set.
type PerkEntry struct {
	Decl    *ast.PerkDecl
	Methods map[string]*ast.PerkMethodSig
}

// PerkImplEntry records that TargetName implements PerkName.
type PerkImplEntry struct {
	TargetName string
	PerkName   string
	Decl       *ast.ExtendDecl
}

// ConstantEntry is a top-level `const` after Pass 0 constant folding
// (internal/sema.Eval), per const-eval.
type ConstantEntry struct {
	Decl  *ast.ConstDecl
	Type  Type
	Value interface{} // int64, float64, bool, or string
}

// Tables is the full set of process-wide symbol tables,
// built by Pass 0, augmented by Pass 1.6/1.7, read by Passes 1, 2, 3, 4.
type Tables struct {
	StructTable          map[string]*StructType
	EnumTable            map[string]*EnumType
	GenericStructTable   map[string]*GenericStructTemplate
	GenericEnumTable     map[string]*GenericEnumTemplate
	FunctionTable        map[string]*FunctionEntry
	GenericFunctionTable map[string]*GenericFunctionTemplate
	// ExtensionTable is indexed by target type name -> method name.
	ExtensionTable map[string]map[string]*ExtensionMethod
	PerkTable      map[string]*PerkEntry
	PerkImplTable  map[string]map[string]*PerkImplEntry // target -> perk -> entry
	ConstantTable  map[string]*ConstantEntry

	// Functions is the flat function list IR emission walks; includes both
	// original and monomorphized FnDecls.
	Functions []*ast.FnDecl

	// MonoCache memoizes (base, canonical-arg-key) -> resolved Type across
	// Pass 1.6.
	MonoCache map[string]Type

	// MonoFuncCache memoizes (base, canonical-arg-key) -> mangled function
	// name so each generic-function instantiation is produced exactly once.
	MonoFuncCache map[string]string

	// MonoTypeFn resolves a generic type instantiation to a concrete Type.
	// internal/generics injects its Pass 1.6 entry point here at driver
	// wiring time, since internal/types cannot import internal/generics
	// without an import cycle.
	MonoTypeFn func(base string, args []Type) Type

	// MonoFuncFn resolves a generic-function instantiation to its mangled
	// name, injected the same way.
	MonoFuncFn func(base string, args []Type) string

	// StdlibFn resolves a `module.function(args...)` call to its return
	// type, injected by internal/stdlib at driver
	// wiring time to avoid internal/types depending on internal/stdlib.
	StdlibFn func(module, name string, argTypes []Type) (Type, bool)

	// StdlibModules lists the module names the scope checker and call
	// validator should treat as stdlib namespaces rather than variables
	// (e.g. "math", "random", "time", "io"), injected alongside StdlibFn.
	StdlibModules map[string]bool
}

// NewTables allocates an empty table set; RegisterBuiltins seeds the builtin
// Result/Maybe generic enum templates into it separately.
func NewTables() *Tables {
	t := &Tables{
		StructTable:          map[string]*StructType{},
		EnumTable:            map[string]*EnumType{},
		GenericStructTable:   map[string]*GenericStructTemplate{},
		GenericEnumTable:     map[string]*GenericEnumTemplate{},
		FunctionTable:        map[string]*FunctionEntry{},
		GenericFunctionTable: map[string]*GenericFunctionTemplate{},
		ExtensionTable:       map[string]map[string]*ExtensionMethod{},
		PerkTable:            map[string]*PerkEntry{},
		PerkImplTable:        map[string]map[string]*PerkImplEntry{},
		ConstantTable:        map[string]*ConstantEntry{},
		MonoCache:            map[string]Type{},
		MonoFuncCache:        map[string]string{},
	}
	return t
}

// AddExtension registers a method against a receiver type name.
func (t *Tables) AddExtension(receiverName string, m *ExtensionMethod) {
	bucket, ok := t.ExtensionTable[receiverName]
	if !ok {
		bucket = map[string]*ExtensionMethod{}
		t.ExtensionTable[receiverName] = bucket
	}
	bucket[m.Decl.Name] = m
}

// LookupExtension finds a method by receiver type name and method name.
func (t *Tables) LookupExtension(receiverName, method string) (*ExtensionMethod, bool) {
	bucket, ok := t.ExtensionTable[receiverName]
	if !ok {
		return nil, false
	}
	m, ok := bucket[method]
	return m, ok
}

// Implements reports whether targetName has a registered PerkImplEntry for
// perkName.
func (t *Tables) Implements(targetName, perkName string) bool {
	bucket, ok := t.PerkImplTable[targetName]
	if !ok {
		return false
	}
	_, ok = bucket[perkName]
	return ok
}
