package statestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreStartsEmpty(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !s.LastRefresh().IsZero() {
		t.Fatalf("expected zero last refresh, got %v", s.LastRefresh())
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	stamp := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	s.RecordRefresh(stamp)
	s.RecordCheck(stamp.Add(time.Minute), "succeeded")

	// fresh store reads what the first one wrote
	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if !s2.LastRefresh().Equal(stamp) {
		t.Fatalf("expected %v, got %v", stamp, s2.LastRefresh())
	}
	checked, outcome := s2.LastCheck()
	if !checked.Equal(stamp.Add(time.Minute)) || outcome != "succeeded" {
		t.Fatalf("unexpected check record: %v %q", checked, outcome)
	}
}

func TestStoreDiscardsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, stateFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open failed on corrupt file: %v", err)
	}
	if !s.LastRefresh().IsZero() {
		t.Fatal("expected corrupt state discarded")
	}
}
