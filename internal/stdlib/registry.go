// Package stdlib implements the standard-library function registry: a
// lookup table from (module, function name) to return type, populated once
// and injected into internal/types.Tables as StdlibFn/StdlibModules at
// driver wiring time, the same injection pattern internal/generics uses for
// MonoTypeFn/MonoFuncFn. The module set (math, random, time, io) is closed,
// so the table is hardcoded rather than discovered.
package stdlib

import "github.com/sushi-lang/sushic/internal/types"

// fn describes one stdlib function's signature. params is nil for the
// three polymorphic math functions (abs/min/max), whose return type equals
// their first argument's type rather than a fixed type.
type fn struct {
	params  []types.Type // nil => polymorphic, resolved from the call's argTypes
	ret     types.Type
	wrapped bool // true => caller sees Result<ret, errType>
	errType types.Type
}

// Registry is the populated (module, name) -> fn lookup table.
type Registry struct {
	modules map[string]map[string]fn
	errType types.Type // StdError, the error type of the time functions
	fileErr types.Type // FileError, shared across io functions
}

// NewRegistry builds the fixed stdlib table. errType/fileErr are
// passed in rather than constructed here because the concrete StdError and
// FileError enum/struct definitions live in internal/types and
// internal/driver's prelude seeding, not in this package.
func NewRegistry(errType, fileErr types.Type) *Registry {
	r := &Registry{modules: map[string]map[string]fn{}, errType: errType, fileErr: fileErr}
	r.registerMath()
	r.registerRandom()
	r.registerTime()
	r.registerIO()
	return r
}

func (r *Registry) add(module, name string, f fn) {
	bucket, ok := r.modules[module]
	if !ok {
		bucket = map[string]fn{}
		r.modules[module] = bucket
	}
	bucket[name] = f
}

// Modules returns the set of module names this registry recognizes, for
// wiring into Tables.StdlibModules.
func (r *Registry) Modules() map[string]bool {
	out := make(map[string]bool, len(r.modules))
	for m := range r.modules {
		out[m] = true
	}
	return out
}

// Resolve implements the types.Tables.StdlibFn contract: given a
// `module.function(args...)` call site's inferred argument types, returns
// the call's result type (already Result<T,E>-wrapped when the function can
// fail) or (nil, false) if no such stdlib function exists.
func (r *Registry) Resolve(module, name string, argTypes []types.Type) (types.Type, bool) {
	bucket, ok := r.modules[module]
	if !ok {
		return nil, false
	}
	f, ok := bucket[name]
	if !ok {
		return nil, false
	}
	ret := f.ret
	if f.params == nil {
		// abs/min/max: polymorphic, returns the type of the first argument.
		if len(argTypes) > 0 {
			ret = argTypes[0]
		}
	}
	if f.wrapped {
		return &types.ResultType{Ok: ret, Err: f.errType}, true
	}
	return ret, true
}

// registerMath registers bare (non-Result) return types throughout: math
// functions cannot fail.
func (r *Registry) registerMath() {
	for _, name := range []string{"abs", "min", "max"} {
		r.add("math", name, fn{params: nil})
	}
	f64unary := []string{
		"sqrt", "floor", "ceil", "round", "trunc",
		"sin", "cos", "tan", "asin", "acos", "atan",
		"sinh", "cosh", "tanh", "log", "log2", "log10", "exp", "exp2",
	}
	for _, name := range f64unary {
		r.add("math", name, fn{params: []types.Type{types.F64}, ret: types.F64})
	}
	for _, name := range []string{"pow", "atan2", "hypot"} {
		r.add("math", name, fn{params: []types.Type{types.F64, types.F64}, ret: types.F64})
	}
	// PI/E/TAU are modeled as zero-argument functions returning f64, same as
	// stdlib_registry.py's constant-as-zero-arg-function treatment.
	for _, name := range []string{"PI", "E", "TAU"} {
		r.add("math", name, fn{params: []types.Type{}, ret: types.F64})
	}
}

// registerRandom mirrors sushi_stdlib/src/random/__init__.py: bare return
// types, no Result wrapping (libc random/srandom never fail).
func (r *Registry) registerRandom() {
	r.add("random", "rand", fn{params: []types.Type{}, ret: types.U64})
	r.add("random", "rand_f64", fn{params: []types.Type{}, ret: types.F64})
	r.add("random", "rand_range", fn{params: []types.Type{types.I32, types.I32}, ret: types.I32})
	r.add("random", "srand", fn{params: []types.Type{types.U64}, ret: types.Blank})
}

// registerTime mirrors sushi_stdlib/src/time/__init__.py: every sleep
// variant returns Result<i32, StdError> since nanosleep can be interrupted
// by a signal (EINTR).
func (r *Registry) registerTime() {
	for _, name := range []string{"sleep", "msleep", "usleep"} {
		r.add("time", name, fn{params: []types.Type{types.I64}, ret: types.I32, wrapped: true, errType: r.errType})
	}
	r.add("time", "nanosleep", fn{params: []types.Type{types.I64, types.I64}, ret: types.I32, wrapped: true, errType: r.errType})
}

// registerIO: predicates return a bare bool, everything else that touches
// the filesystem returns Result<T, FileError> since any of those syscalls
// can fail (permissions, missing path, ...).
func (r *Registry) registerIO() {
	for _, name := range []string{"exists", "is_file", "is_dir"} {
		r.add("io", name, fn{params: []types.Type{types.String}, ret: types.Bool})
	}
	r.add("io", "file_size", fn{params: []types.Type{types.String}, ret: types.I64, wrapped: true, errType: r.fileErr})
	for _, name := range []string{"remove", "rmdir"} {
		r.add("io", name, fn{params: []types.Type{types.String}, ret: types.I32, wrapped: true, errType: r.fileErr})
	}
	for _, name := range []string{"rename", "copy"} {
		r.add("io", name, fn{params: []types.Type{types.String, types.String}, ret: types.I32, wrapped: true, errType: r.fileErr})
	}
	r.add("io", "mkdir", fn{params: []types.Type{types.String, types.I32}, ret: types.I32, wrapped: true, errType: r.fileErr})
}
