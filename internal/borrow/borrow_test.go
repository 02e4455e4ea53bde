package borrow_test

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

func TestPeekThenPokeConflicts(t *testing.T) {
	p := check(t, `
fn use_both(a: &peek i32, b: &poke i32) {
	return Result.Ok(~);
}

fn main() -> i32 {
	let i32 x = 1;
	use_both(&peek x, &poke x);
	return Result.Ok(0);
}
`)
	assert.True(t, hasCode(p, diag.CodeBorrowConflictPoke), "diagnostics: %v", p.Reporter.All())
}

func TestTwoPeeksAllowed(t *testing.T) {
	p := check(t, `
fn use_both(a: &peek i32, b: &peek i32) {
	return Result.Ok(~);
}

fn main() -> i32 {
	let i32 x = 1;
	use_both(&peek x, &peek x);
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())
}

func TestUseAfterDestroy(t *testing.T) {
	p := check(t, `
fn main() -> i32 {
	let i32[] a = i32.from([1, 2, 3]);
	a.destroy();
	println a.len();
	return Result.Ok(0);
}
`)
	assert.True(t, hasCode(p, diag.CodeUseAfterDestroy), "diagnostics: %v", p.Reporter.All())
}

func TestStructCtorMovesDynArray(t *testing.T) {
	p := check(t, `
struct Holder {
	items: i32[],
}

fn main() -> i32 {
	let i32[] a = i32.from([1, 2, 3]);
	let Holder h = Holder(a);
	println a.len();
	return Result.Ok(0);
}
`)
	assert.True(t, hasCode(p, diag.CodeUseAfterMove), "diagnostics: %v", p.Reporter.All())
}

func TestCopyTypesNeverMove(t *testing.T) {
	p := check(t, `
struct Pt {
	x: i32,
	y: i32,
}

fn main() -> i32 {
	let Pt a = Pt(1, 2);
	let Pt b = a;
	println a.x;
	println b.y;
	return Result.Ok(0);
}
`)
	require.False(t, p.Reporter.HasErrors(), "diagnostics: %v", p.Reporter.All())
}
