package llvm

import (
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sushi-lang/sushic/internal/types"
)

// hashReceivers lists the struct/enum receivers Pass 1.7 registered a
// synthetic.hash for, sorted for deterministic module output.
func (g *Generator) hashReceivers() []string {
	var names []string
	for recv, bucket := range g.Tables.ExtensionTable {
		m, ok := bucket["hash"]
		if !ok || !m.Synthetic {
			continue
		}
		if _, isStruct := g.Tables.StructTable[recv]; !isStruct {
			if _, isEnum := g.Tables.EnumTable[recv]; !isEnum {
				continue // string/number hash lowers to a direct helper call
			}
		}
		names = append(names, recv)
	}
	sort.Strings(names)
	return names
}

// declareHashMethods declares `u64 @T__hash(T)` for every auto-derived hash
// receiver; bodies are emitted after all declarations exist so
// field-type hashes can call container-type hashes in any order.
func (g *Generator) declareHashMethods() {
	for _, recv := range g.hashReceivers() {
		sym := methodSymbol(recv, "hash")
		if _, ok := g.funcs[sym]; ok {
			continue
		}
		var recvType types.Type
		if st, ok := g.Tables.StructTable[recv]; ok {
			recvType = st
		} else {
			recvType = g.Tables.EnumTable[recv]
		}
		f := g.mod.NewFunc(sym, irtypes.I64, ir.NewParam("self", g.lowerType(recvType)))
		f.Linkage = enum.LinkageInternal
		g.funcs[sym] = f
	}
}

func (g *Generator) emitHashMethods() {
	for _, recv := range g.hashReceivers() {
		f := g.funcs[methodSymbol(recv, "hash")]
		if f == nil || len(f.Blocks) > 0 {
			continue
		}
		if st, ok := g.Tables.StructTable[recv]; ok {
			g.emitStructHash(f, st)
			continue
		}
		if et, ok := g.Tables.EnumTable[recv]; ok {
			g.emitEnumHash(f, et)
		}
	}
}

// emitStructHash combines the field hashes FNV-1a style, field order being
// the declaration order.
func (g *Generator) emitStructHash(f *ir.Func, st *types.StructType) {
	g.withNewFunc(f, func() {
		self := f.Params[0]
		h := value.Value(i64c(fnvOffset))
		for i, fld := range st.Fields {
			fv := g.block.NewExtractValue(self, uint64(i))
			fh := g.emitHashValue(fv, fld.Type)
			h = g.block.NewMul(g.block.NewXor(h, fh), i64c(fnvPrime))
		}
		g.emitCleanupScopes(len(g.frame.scopes))
		g.block.NewRet(h)
	})
}

// emitEnumHash hashes the tag and the payload bytes. Enum construction
// zero-fills the payload area, so the byte walk is deterministic even with
// padding.
func (g *Generator) emitEnumHash(f *ir.Func, et *types.EnumType) {
	g.withNewFunc(f, func() {
		self := f.Params[0]
		lt := g.lowerType(et)
		tmp := g.alloca(lt)
		g.block.NewStore(self, tmp)

		tag := g.block.NewExtractValue(self, 0)
		h := value.Value(i64c(fnvOffset))
		h = g.block.NewMul(g.block.NewXor(h, g.block.NewZExt(tag, irtypes.I64)), i64c(fnvPrime))

		dataPtr := g.block.NewGetElementPtr(lt, tmp, i32c(0), i32c(1))
		bytePtr := g.block.NewBitCast(dataPtr, irtypes.I8Ptr)
		for i := 0; i < g.enumPayloadBytes(et); i++ {
			p := g.block.NewGetElementPtr(irtypes.I8, bytePtr, i32c(int64(i)))
			by := g.block.NewZExt(g.block.NewLoad(irtypes.I8, p), irtypes.I64)
			h = g.block.NewMul(g.block.NewXor(h, by), i64c(fnvPrime))
		}
		g.emitCleanupScopes(len(g.frame.scopes))
		g.block.NewRet(h)
	})
}

// emitHashValue hashes one value of semantic type t to an i64. The
// hashable universe: numerics, bool, string, hashable structs/enums/arrays.
func (g *Generator) emitHashValue(v value.Value, t types.Type) value.Value {
	switch tt := t.(type) {
	case *types.IntType:
		switch {
		case tt.Width == 64:
			return v
		case tt.Signed:
			return g.block.NewSExt(v, irtypes.I64)
		default:
			return g.block.NewZExt(v, irtypes.I64)
		}
	case *types.BoolType:
		return g.block.NewZExt(v, irtypes.I64)
	case *types.FloatType:
		bits := g.block.NewBitCast(v, irtypes.NewInt(uint64(tt.Width)))
		if tt.Width == 64 {
			return bits
		}
		return g.block.NewZExt(bits, irtypes.I64)
	case *types.StringType:
		return g.block.NewCall(g.rt["sushi_string_hash"], v)
	case *types.ArrayType:
		h := value.Value(i64c(fnvOffset))
		for i := 0; i < tt.Size; i++ {
			ev := g.block.NewExtractValue(v, uint64(i))
			eh := g.emitHashValue(ev, tt.Elem)
			h = g.block.NewMul(g.block.NewXor(h, eh), i64c(fnvPrime))
		}
		return h
	case *types.StructType:
		if f, ok := g.funcs[methodSymbol(tt.Name, "hash")]; ok {
			return g.block.NewCall(f, v)
		}
		// Unregistered hashable struct (a Pair from an entries iterator):
		// combine the fields inline.
		h := value.Value(i64c(fnvOffset))
		for i, fld := range tt.Fields {
			fv := g.block.NewExtractValue(v, uint64(i))
			fh := g.emitHashValue(fv, fld.Type)
			h = g.block.NewMul(g.block.NewXor(h, fh), i64c(fnvPrime))
		}
		return h
	case *types.EnumType:
		if f, ok := g.funcs[methodSymbol(tt.Name, "hash")]; ok {
			return g.block.NewCall(f, v)
		}
		return g.block.NewZExt(g.block.NewExtractValue(v, 0), irtypes.I64)
	default:
		return i64c(0)
	}
}

// emitKeyEq compares two HashMap keys for equality. Aggregate keys fall back
// to hash equality, which open addressing already depends on.
func (g *Generator) emitKeyEq(a, b value.Value, t types.Type) value.Value {
	switch t.(type) {
	case *types.IntType, *types.BoolType:
		return g.block.NewICmp(enum.IPredEQ, a, b)
	case *types.FloatType:
		return g.block.NewFCmp(enum.FPredOEQ, a, b)
	case *types.StringType:
		return g.block.NewCall(g.rt["sushi_string_eq"], a, b)
	default:
		return g.block.NewICmp(enum.IPredEQ, g.emitHashValue(a, t), g.emitHashValue(b, t))
	}
}
