package budget

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileBudgetCountsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.json")
	b := NewFileBudget(path, 3)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("call %d refused under budget", i)
		}
		b.Record()
	}
	if b.Allow() {
		t.Error("allowance exceeded")
	}

	// A fresh instance reads the same file and stays exhausted.
	b2 := NewFileBudget(path, 3)
	if b2.Allow() {
		t.Error("persisted counter not honored")
	}
	if got := b2.Remaining(); got != 0 {
		t.Errorf("remaining = %d, want 0", got)
	}
}

func TestFileBudgetDailyReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.json")
	b := NewFileBudget(path, 2)

	day1 := time.Date(2025, 11, 2, 23, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return day1 }
	b.Record()
	b.Record()
	if b.Allow() {
		t.Fatal("allowance exceeded on day one")
	}

	b.now = func() time.Time { return day1.Add(2 * time.Hour) } // past midnight UTC
	if !b.Allow() {
		t.Error("counter did not reset on new day")
	}
	if got := b.Remaining(); got != 2 {
		t.Errorf("remaining after reset = %d, want 2", got)
	}
}

func TestFileBudgetCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	b := NewFileBudget(path, 1)
	if !b.Allow() {
		t.Error("corrupt file blocked budget")
	}
}

func TestUnlimited(t *testing.T) {
	var b Budget = Unlimited{}
	for i := 0; i < 1000; i++ {
		if !b.Allow() {
			t.Fatal("unlimited budget refused")
		}
		b.Record()
	}
}
