// pkg/retriever/retriever_test.go
package retriever

import (
	"errors"
	"path/filepath"
	"testing"

	"vecindex/pkg/pager"
)

func openTestPager(t *testing.T) *pager.Pager {
	t.Helper()
	dir := t.TempDir()
	p, err := pager.Open(filepath.Join(dir, "test.vidx"), pager.Options{PageSize: 4096})
	if err != nil {
		t.Fatalf("failed to open pager: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestContext_BeginRequiredBeforeBorrow(t *testing.T) {
	p := openTestPager(t)
	ctx := NewContext(p)

	if _, err := ctx.Borrow(0); err == nil {
		t.Fatal("expected Borrow before Begin to fail")
	}
}

func TestContext_BorrowSharedRead(t *testing.T) {
	p := openTestPager(t)
	blockNo, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p.Release(blockNo)

	ctx := NewContext(p)
	if err := ctx.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	page, err := ctx.Borrow(blockNo.PageNo())
	if err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if !page.IsPinned() {
		t.Error("expected borrowed page to be pinned")
	}

	ctx.Abort()
	if page.IsPinned() {
		t.Error("expected page to be unpinned after Abort")
	}
}

func TestContext_BorrowMutRequiresMutatingState(t *testing.T) {
	p := openTestPager(t)
	blockNo, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p.Release(blockNo)

	ctx := NewContext(p)
	ctx.Begin()

	if _, err := ctx.BorrowMut(blockNo.PageNo()); !errors.Is(err, ErrWrongState) {
		t.Fatalf("expected ErrWrongState, got %v", err)
	}

	if err := ctx.StartMutating(); err != nil {
		t.Fatalf("StartMutating: %v", err)
	}

	page, err := ctx.BorrowMut(blockNo.PageNo())
	if err != nil {
		t.Fatalf("BorrowMut: %v", err)
	}
	page.Data()[10] = 0xAB

	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if page.IsPinned() {
		t.Error("expected page to be unpinned after Commit")
	}
}

func TestContext_AbortRollsBackWrites(t *testing.T) {
	p := openTestPager(t)
	blockNo, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p.Release(blockNo)

	ctx := NewContext(p)
	ctx.Begin()
	ctx.StartMutating()

	page, err := ctx.BorrowMut(blockNo.PageNo())
	if err != nil {
		t.Fatalf("BorrowMut: %v", err)
	}
	original := page.Data()[20]
	page.Data()[20] = original + 1

	ctx.Abort()

	page2, err := p.Get(blockNo.PageNo())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer p.Release(page2)
	if page2.Data()[20] != original {
		t.Errorf("expected rollback to restore byte, got %d want %d", page2.Data()[20], original)
	}
}

func TestContext_ExtraDirtiedBudget(t *testing.T) {
	p := openTestPager(t)
	ctx := NewContext(p)
	ctx.Begin()
	ctx.StartMutating()

	for i := 0; i < MaxExtraDirtied; i++ {
		blockNo, err := p.Allocate()
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		p.Release(blockNo)
		if _, err := ctx.BorrowMut(blockNo.PageNo()); err != nil {
			t.Fatalf("BorrowMut %d: %v", i, err)
		}
	}

	overflow, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p.Release(overflow)

	if _, err := ctx.BorrowMut(overflow.PageNo()); !errors.Is(err, ErrExtraDirtiedBudgetExceeded) {
		t.Fatalf("expected ErrExtraDirtiedBudgetExceeded, got %v", err)
	}

	ctx.Abort()
}

func TestContext_RepeatedBorrowMutReturnsSamePage(t *testing.T) {
	p := openTestPager(t)
	blockNo, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p.Release(blockNo)

	ctx := NewContext(p)
	ctx.Begin()
	ctx.StartMutating()
	defer ctx.Abort()

	page1, err := ctx.BorrowMut(blockNo.PageNo())
	if err != nil {
		t.Fatalf("BorrowMut: %v", err)
	}
	page2, err := ctx.BorrowMut(blockNo.PageNo())
	if err != nil {
		t.Fatalf("BorrowMut: %v", err)
	}
	if page1 != page2 {
		t.Error("expected repeated BorrowMut on the same block to return the same page")
	}
	if ctx.ExtraDirtiedCount() != 1 {
		t.Errorf("expected 1 extra-dirtied page, got %d", ctx.ExtraDirtiedCount())
	}
}
