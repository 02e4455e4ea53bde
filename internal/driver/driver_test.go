package driver_test

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

func TestResultPropagation(t *testing.T) {
	p := check(t, `
fn f() -> i32 {
	return Result.Ok(42);
}

fn g() -> i32 {
	let i32 x = f()??;
	return Result.Ok(x + 1);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())

	// One concrete Result<i32, StdError> enum after Pass 1.6.
	et, ok := p.Tables.EnumTable["Result<i32, StdError>"]
	require.True(t, ok)
	require.Len(t, et.Variants, 2)
	assert.Equal(t, "Ok", et.Variants[0].Name)
	assert.Equal(t, "Err", et.Variants[1].Name)
}

func TestGenericFunctionMonomorphization(t *testing.T) {
	p := check(t, `
fn identity<T>(x: T) -> T {
	return Result.Ok(x);
}

fn main() -> i32 {
	let i32 a = identity(5)??;
	let string b = identity("x")??;
	println a;
	println b;
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())

	// scenario 6: the function table holds both mangled instances.
	_, ok := p.Tables.FunctionTable["identity__i32"]
	assert.True(t, ok, "identity__i32 missing")
	_, ok = p.Tables.FunctionTable["identity__string"]
	assert.True(t, ok, "identity__string missing")
}

func TestMonomorphizationIdempotent(t *testing.T) {
	p := check(t, `
fn main() -> i32 {
	let Maybe<i32> a = Maybe.Some(1);
	let Maybe<i32> b = Maybe.Some(2);
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors())

	before := len(p.Tables.EnumTable)
	cached := p.Tables.MonoTypeFn("Maybe", []types.Type{types.I32})
	assert.Equal(t, p.Tables.EnumTable["Maybe<i32>"], cached, "re-entry must return the cached entry")
	assert.Equal(t, before, len(p.Tables.EnumTable), "re-entry must not mint a new type")
}

func TestFixedArrayBoundsRejected(t *testing.T) {
	p := check(t, `
fn main() -> i32 {
	let i32[3] arr = [1, 2, 3];
	println arr[5];
	return Result.Ok(0);
}
`)
	assert.True(t, hasCode(p, diag.CodeOutOfBounds), "diagnostics: %v", p.Reporter.All())
}

func TestBareReturnRejected(t *testing.T) {
	p := check(t, `
fn f() -> i32 {
	return 5;
}
`)
	assert.True(t, hasCode(p, diag.CodeReturnNotResult))
}

func TestMoveOnRebindDetected(t *testing.T) {
	p := check(t, `
fn main() -> i32 {
	let i32[] a = i32.from([1, 2, 3]);
	let i32[] b = ~;
	b := a;
	println a.len();
	return Result.Ok(0);
}
`)
	assert.True(t, hasCode(p, diag.CodeUseAfterMove), "diagnostics: %v", p.Reporter.All())
}

func TestUnhandledResultWarns(t *testing.T) {
	p := check(t, `
fn f() -> i32 {
	return Result.Ok(1);
}

fn main() -> i32 {
	f();
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())
	assert.True(t, hasCode(p, diag.CodeUnhandledResult))
}

func TestTryInMainWarns(t *testing.T) {
	p := check(t, `
fn f() -> i32 {
	return Result.Ok(1);
}

fn main() -> i32 {
	let i32 x = f()??;
	println x;
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())
	assert.True(t, hasCode(p, diag.CodeTryInMain))
}

func TestHashMapPipeline(t *testing.T) {
	p := check(t, `
fn main() -> i32 {
	let HashMap<string, i32> m = HashMap.new();
	m.insert("a", 1);
	m.insert("b", 2);
	println m.get("a").realise(-1);
	println m.len();
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())

	_, ok := p.Tables.StructTable["HashMap<string, i32>"]
	assert.True(t, ok, "concrete HashMap<string, i32> missing")
	_, ok = p.Tables.EnumTable["Maybe<i32>"]
	assert.True(t, ok, "Maybe<i32> from get() missing")
}

func TestEmitLLVMEndToEnd(t *testing.T) {
	p := driver.New(`
fn add(a: i32, b: i32) -> i32 {
	return Result.Ok(a + b);
}

fn main() -> i32 {
	let i32 s = add(40, 2)??;
	println s;
	return Result.Ok(0);
}
`, "test.sushi")
	irText, ok := p.EmitLLVM()
	require.True(t, ok, "diagnostics: %v", p.Reporter.All())

	assert.Contains(t, irText, "define i32 @main(")
	assert.Contains(t, irText, "@sushi_main(")
	assert.Contains(t, irText, "@add(")
	assert.Contains(t, irText, "@printf(")
}
