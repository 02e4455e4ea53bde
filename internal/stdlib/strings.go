package stdlib

import "github.com/sushi-lang/sushic/internal/types"

// RegisterStringBuiltins seeds Tables.ExtensionTable with the built-in
// methods every sushi program has on `string` and the numeric builtins.
// Like the stdio methods these are Synthetic: the checker
// accepts them by signature and internal/codegen/llvm emits each as a direct
// runtime-helper call rather than reading a sushi function body.
//
// Strings produced by `replace` and numeric `to_string` are heap-allocated
// and move-only; they leak unless `.destroy` is called explicitly.
// `bool.to_string` returns a constant string.
func RegisterStringBuiltins(tables *types.Tables) {
	addSynth := func(receiver, method string, recv types.Type, params []types.Type, ret types.Type) {
		tables.AddExtension(receiver, &types.ExtensionMethod{
			Decl:       synthDecl(method),
			Receiver:   recv,
			ParamTypes: params,
			ReturnType: ret,
			Synthetic:  true,
		})
	}

	addSynth("string", "len", types.String, nil, types.I32)
	addSynth("string", "replace", types.String, []types.Type{types.String, types.String}, types.String)
	addSynth("string", "hash", types.String, nil, types.U64)
	addSynth("string", "destroy", types.String, nil, types.Blank)

	numerics := []types.Type{
		types.I8, types.I16, types.I32, types.I64,
		types.U8, types.U16, types.U32, types.U64,
		types.F32, types.F64,
	}
	for _, n := range numerics {
		addSynth(n.String(), "to_string", n, nil, types.String)
	}
	addSynth("bool", "to_string", types.Bool, nil, types.String)
}
