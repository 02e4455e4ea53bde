package generics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/driver"
	"github.com/sushi-lang/sushic/internal/types"
)

func check(t *testing.T, src string) *driver.Pipeline {
	t.Helper()
	p := driver.New(src, "test.sushi")
	p.Check()
	return p
}

func hasCode(p *driver.Pipeline, code diag.Code) bool {
	for _, d := range p.Reporter.All() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestCanonicalNamesAndMangling(t *testing.T) {
	assert.Equal(t, "Result<i32, StdError>",
		types.CanonicalName("Result", []types.Type{types.I32, &types.StructType{Name: "StdError"}}))
	assert.Equal(t, "identity__i32", types.Mangle("identity", []types.Type{types.I32}))
	assert.Equal(t, "pick__i32_string", types.Mangle("pick", []types.Type{types.I32, types.String}))
}

func TestNestedGenericMonomorphization(t *testing.T) {
	p := check(t, `
struct Box<T> {
	value: T,
}

fn main() -> i32 {
	let Box<Box<i32>> b = Box(Box(7));
	println b.value.value;
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())

	inner, ok := p.Tables.StructTable["Box<i32>"]
	require.True(t, ok)
	outer, ok := p.Tables.StructTable["Box<Box<i32>>"]
	require.True(t, ok)
	// No TypeParameter survives monomorphization.
	assert.Equal(t, "i32", inner.Fields[0].Type.String())
	assert.Equal(t, "Box<i32>", outer.Fields[0].Type.String())
}

func TestRecursiveEnumThroughOwnIsLegal(t *testing.T) {
	p := check(t, `
enum Expr {
	IntLit(i32),
	Neg(Own<Expr>),
}

fn main() -> i32 {
	let Expr e = Expr.IntLit(4);
	match e:
		Expr.IntLit(v) => { println v; }
		_ => { println 0; }
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())
}

func TestDirectRecursiveEnumRejected(t *testing.T) {
	p := check(t, `
enum Bad {
	Leaf(i32),
	Node(Bad),
}

fn main() -> i32 {
	return Result.Ok(0);
}
`)
	// Direct self-reference without Own<> indirection is a structural cycle.
	assert.True(t, hasCode(p, diag.CodeRecursiveEnumCycle), "diagnostics: %v", p.Reporter.All())
}

func TestConstraintViolationReported(t *testing.T) {
	p := check(t, `
perk Printable {
	fn describe() -> string;
}

struct Plain {
	x: i32,
}

fn show<T: Printable>(v: T) -> i32 {
	return Result.Ok(0);
}

fn main() -> i32 {
	let Plain pl = Plain(1);
	let i32 r = show(pl)??;
	println r;
	return Result.Ok(0);
}
`)
	assert.True(t, hasCode(p, diag.CodeConstraintViolation), "diagnostics: %v", p.Reporter.All())
}

func TestHashRegistrationAddsExtension(t *testing.T) {
	p := check(t, `
struct Pt {
	x: i32,
	y: i32,
}

fn main() -> i32 {
	let Pt a = Pt(1, 2);
	println a.hash();
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())
	m, ok := p.Tables.LookupExtension("Pt", "hash")
	require.True(t, ok)
	assert.True(t, m.Synthetic)
	assert.Equal(t, "u64", m.ReturnType.String())
}
