package llvm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sushi-lang/sushic/internal/driver"
)

func emit(t *testing.T, src string) string {
	t.Helper()
	p := driver.New(src, "test.sushi")
	irText, ok := p.EmitLLVM()
	require.True(t, ok, "diagnostics: %v", p.Reporter.All())
	return irText
}

func TestMainWrapper(t *testing.T) {
	irText := emit(t, `
fn main() -> i32 {
	return Result.Ok(0);
}
`)
	// The user main is renamed and wrapped by a C main.
	assert.Contains(t, irText, "@sushi_main(")
	assert.Contains(t, irText, "define i32 @main(i32 %argc, i8** %argv)")
}

func TestEnumLayoutAndTypedefs(t *testing.T) {
	irText := emit(t, `
enum Shape {
	Circle(f64),
	Point,
}

fn main() -> i32 {
	let Shape s = Shape.Circle(1.5);
	match s:
		Shape.Circle(r) => { println r; }
		_ => { println 0; }
	return Result.Ok(0);
}
`)
	// Enums are `{i32 tag, [N x i8] data}`.
	assert.Contains(t, irText, "%Shape = type { i32, [8 x i8] }")
	assert.Contains(t, irText, "switch i32")
}

func TestStringIsFatPointer(t *testing.T) {
	irText := emit(t, `
fn main() -> i32 {
	println "hello";
	return Result.Ok(0);
}
`)
	assert.Contains(t, irText, "%string = type { i8*, i32 }")
	assert.Contains(t, irText, "hello")
	assert.Contains(t, irText, "@printf(")
}

func TestHashMapHelpersEmitted(t *testing.T) {
	irText := emit(t, `
fn main() -> i32 {
	let HashMap<string, i32> m = HashMap.new();
	m.insert("a", 1);
	println m.get("a").realise(-1);
	return Result.Ok(0);
}
`)
	assert.Contains(t, irText, "@sushi_hm_insert__string_i32(")
	assert.Contains(t, irText, "@sushi_hm_get__string_i32(")
	assert.Contains(t, irText, "@sushi_next_prime(")
	assert.Contains(t, irText, "@sushi_string_hash(")
}

func TestDynArrayRAII(t *testing.T) {
	irText := emit(t, `
fn main() -> i32 {
	let i32[] a = i32.from([1, 2, 3]);
	println a.len();
	return Result.Ok(0);
}
`)
	// Scope exit frees the owned buffer.
	assert.Contains(t, irText, "@malloc(")
	assert.Contains(t, irText, "@free(")
	assert.Contains(t, irText, "dyn.i32 = type { i32, i32, i32* }")
}

func TestBoundsCheckCallsRuntimeError(t *testing.T) {
	irText := emit(t, `
fn main() -> i32 {
	let i32[] a = i32.from([1, 2, 3]);
	let i32 i = 2;
	println a[i];
	return Result.Ok(0);
}
`)
	assert.Contains(t, irText, "@sushi_runtime_error(")
	assert.Contains(t, irText, "@exit(")
}

func TestOwnLowersToPointer(t *testing.T) {
	irText := emit(t, `
fn main() -> i32 {
	let Own<i32> b = Own.alloc(7);
	println b.get();
	return Result.Ok(0);
}
`)
	assert.Contains(t, irText, "@malloc(")
}

func TestTryEmitsTagBranch(t *testing.T) {
	irText := emit(t, `
fn f() -> i32 {
	return Result.Ok(42);
}

fn g() -> i32 {
	let i32 x = f()??;
	return Result.Ok(x + 1);
}
`)
	assert.Contains(t, irText, "icmp eq i32")
	assert.Contains(t, irText, "@f(")
	assert.Contains(t, irText, "@g(")
}

func TestExtensionMethodBareReturn(t *testing.T) {
	irText := emit(t, `
struct Point {
	x: i32,
	y: i32,
}

extend Point {
	fn sum() -> i32 {
		return Result.Ok(self.x + self.y);
	}
}

fn main() -> i32 {
	let Point p = Point(1, 2);
	println p.sum();
	return Result.Ok(0);
}
`)
	// Extension methods return bare values, self leads the param list.
	assert.Contains(t, irText, "@Point__sum(")
}

func TestHashMethodSynthesized(t *testing.T) {
	irText := emit(t, `
struct Point {
	x: i32,
	y: i32,
}

fn main() -> i32 {
	let Point p = Point(1, 2);
	println p.hash();
	return Result.Ok(0);
}
`)
	assert.Contains(t, irText, "@Point__hash(")
}
