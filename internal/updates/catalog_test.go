package updates

import (
	"reflect"
	"testing"
)

func TestCatalogCountsAndUpToDate(t *testing.T) {
	cat := NewCatalog()
	cat.BeginPass()
	cat.Record(PackageEntry{ID: "a;1;x86;repo", Summary: "A", Category: CategorySecurity})
	cat.Record(PackageEntry{ID: "b;1;x86;repo", Summary: "B", Category: CategoryOther})

	snap := cat.Commit()
	if snap.Count() != 2 {
		t.Fatalf("expected count 2, got %d", snap.Count())
	}
	if snap.SecurityCount() != 1 || snap.ImportantCount() != 0 {
		t.Fatalf("expected 1 security / 0 important, got %d / %d",
			snap.SecurityCount(), snap.ImportantCount())
	}
	if snap.Count() != snap.SecurityCount()+snap.ImportantCount()+snap.OtherCount() {
		t.Fatalf("count invariant violated: %d != %d+%d+%d",
			snap.Count(), snap.SecurityCount(), snap.ImportantCount(), snap.OtherCount())
	}
	if snap.IsUpToDate() {
		t.Fatal("expected not up to date with 2 entries")
	}
}

func TestCatalogEmptySnapshotIsUpToDate(t *testing.T) {
	snap := NewCatalog().Commit()
	if !snap.IsUpToDate() {
		t.Fatal("expected empty snapshot to be up to date")
	}
	if snap.Count() != 0 {
		t.Fatalf("expected count 0, got %d", snap.Count())
	}

	var zero CatalogSnapshot
	if !zero.IsUpToDate() {
		t.Fatal("expected zero-value snapshot to be up to date")
	}
}

func TestCatalogRecordOverwritesByID(t *testing.T) {
	cat := NewCatalog()
	cat.BeginPass()
	cat.Record(PackageEntry{ID: "a;1;x86;repo", Summary: "old", Category: CategoryOther})
	cat.Record(PackageEntry{ID: "a;1;x86;repo", Summary: "new", Category: CategorySecurity})

	snap := cat.Commit()
	if snap.Count() != 1 {
		t.Fatalf("expected 1 entry after overwrite, got %d", snap.Count())
	}
	entry, ok := snap.Entry("a;1;x86;repo")
	if !ok || entry.Summary != "new" || entry.Category != CategorySecurity {
		t.Fatalf("expected replaced entry, got %+v (ok=%v)", entry, ok)
	}
}

func TestCatalogBeginPassClearsWorkingSet(t *testing.T) {
	cat := NewCatalog()
	cat.Record(PackageEntry{ID: "a;1;x86;repo", Category: CategoryOther})
	cat.BeginPass()

	if snap := cat.Commit(); snap.Count() != 0 {
		t.Fatalf("expected empty snapshot after BeginPass, got %d entries", snap.Count())
	}
}

func TestCatalogDisplayOrder(t *testing.T) {
	cat := NewCatalog()
	cat.BeginPass()
	cat.Record(PackageEntry{ID: "zlib;1;x86;repo", Category: CategoryOther})
	cat.Record(PackageEntry{ID: "kernel;6;x86;repo", Category: CategorySecurity})
	cat.Record(PackageEntry{ID: "bash;5;x86;repo", Category: CategoryImportant})
	cat.Record(PackageEntry{ID: "curl;8;x86;repo", Category: CategorySecurity})
	cat.Record(PackageEntry{ID: "vim;9;x86;repo", Category: CategoryBugfix})

	got := cat.Commit().DisplayOrder()
	want := []string{
		"curl;8;x86;repo", "kernel;6;x86;repo", // security, sorted
		"bash;5;x86;repo",                  // important
		"vim;9;x86;repo", "zlib;1;x86;repo", // bugfix counts as other
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("display order mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestCatalogCommitSnapshotIsolation(t *testing.T) {
	cat := NewCatalog()
	cat.BeginPass()
	cat.Record(PackageEntry{ID: "a;1;x86;repo", Summary: "A", Category: CategoryOther})
	snap := cat.Commit()

	// Mutating the catalog after commit must not affect the snapshot.
	cat.BeginPass()
	cat.Record(PackageEntry{ID: "b;1;x86;repo", Summary: "B", Category: CategorySecurity})

	if snap.Count() != 1 {
		t.Fatalf("snapshot changed after later pass: count %d", snap.Count())
	}

	pkgs := snap.Packages()
	pkgs["c;1;x86;repo"] = "injected"
	if snap.Count() != 1 {
		t.Fatal("Packages() must return a copy")
	}
}
