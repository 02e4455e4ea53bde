package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sushi-lang/sushic/internal/diag"
	"github.com/sushi-lang/sushic/internal/driver"
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

func TestAssignmentMismatch(t *testing.T) {
	p := check(t, `
fn main() -> i32 {
	let i32 x = "hello";
	println x;
	return Result.Ok(0);
}
`)
	assert.True(t, hasCode(p, diag.CodeAssignmentMismatch))
}

func TestConditionMustBeBoolOrResult(t *testing.T) {
	p := check(t, `
fn main() -> i32 {
	if 42 {
		println 1;
	}
	return Result.Ok(0);
}
`)
	assert.True(t, hasCode(p, diag.CodeConditionNotBool))
}

func TestResultConditionAccepted(t *testing.T) {
	p := check(t, `
fn f() -> i32 {
	return Result.Ok(1);
}

fn main() -> i32 {
	if f() {
		println 1;
	}
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())
}

func TestCastMatrix(t *testing.T) {
	good := check(t, `
fn main() -> i32 {
	let i64 a = 5 as i64;
	let f64 b = 5 as f64;
	let bool c = 1 as bool;
	let i32 d = true as i32;
	println a;
	println b;
	println c;
	println d;
	return Result.Ok(0);
}
`)
	require.False(t, good.Reporter.HasErrors(), "diagnostics: %v", good.Reporter.All())

	bad := check(t, `
fn main() -> i32 {
	let i32 x = "s" as i32;
	println x;
	return Result.Ok(0);
}
`)
	assert.True(t, hasCode(bad, diag.CodeInvalidCast))
}

func TestRebindThroughPeekRejected(t *testing.T) {
	p := check(t, `
fn set(target: &peek i32) {
	target := 5;
	return Result.Ok(~);
}
`)
	assert.True(t, hasCode(p, diag.CodeRebindPeekTarget))
}

func TestNamedArgsReorderedPositionally(t *testing.T) {
	p := check(t, `
struct Point {
	x: i32,
	y: i32,
}

fn main() -> i32 {
	let Point p = Point(y: 2, x: 1);
	println p.x;
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())
}

func TestPerkMissingMethod(t *testing.T) {
	p := check(t, `
perk Shape {
	fn area() -> f64;
	fn name() -> string;
}

struct Circle {
	r: f64,
}

extend Circle with Shape {
	fn area() -> f64 {
		return Result.Ok(self.r * self.r * 3.14);
	}
}
`)
	assert.True(t, hasCode(p, diag.CodeMissingPerkMethod), "diagnostics: %v", p.Reporter.All())
}

func TestTryErrTypeMustMatchExactly(t *testing.T) {
	p := check(t, `
struct NetError {
	message: string,
}

fn fetch() -> i32 ! NetError {
	return Result.Ok(1);
}

fn caller() -> i32 {
	let i32 x = fetch()??;
	return Result.Ok(x);
}
`)
	// fetch's error type is NetError, caller's is StdError: strict
	// propagation rejects the mismatch.
	assert.True(t, hasCode(p, diag.CodeTryErrTypeMismatch), "diagnostics: %v", p.Reporter.All())
}

func TestMissingReturnOnSomePath(t *testing.T) {
	p := check(t, `
fn f(cond: bool) -> i32 {
	if cond {
		return Result.Ok(1);
	}
}
`)
	assert.True(t, hasCode(p, diag.CodeMissingReturn))
}

func TestShadowAndUnusedWarnings(t *testing.T) {
	p := check(t, `
fn main() -> i32 {
	let i32 x = 1;
	let i32 unused = 2;
	while x < 3 {
		let i32 x = 9;
		println x;
		break;
	}
	println x;
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())
	assert.True(t, hasCode(p, diag.CodeShadowedName))
	assert.True(t, hasCode(p, diag.CodeUnusedVariable))
}

func TestUndefinedNameReported(t *testing.T) {
	p := check(t, `
fn main() -> i32 {
	println missing;
	return Result.Ok(0);
}
`)
	assert.True(t, hasCode(p, diag.CodeUndefinedName))
}
