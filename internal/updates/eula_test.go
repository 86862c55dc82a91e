package updates

import "testing"

func TestEulaNegotiatorSurfacesFirstImmediately(t *testing.T) {
	var surfaced []string
	n := NewEulaNegotiator(func(req EulaRequest) { surfaced = append(surfaced, req.EulaID) })

	n.Enqueue(EulaRequest{EulaID: "E1", PackageID: "a;1;x86;repo"})
	if len(surfaced) != 1 || surfaced[0] != "E1" {
		t.Fatalf("expected E1 surfaced immediately, got %v", surfaced)
	}

	// A second arrival must wait its turn.
	n.Enqueue(EulaRequest{EulaID: "E2", PackageID: "b;1;x86;repo"})
	if len(surfaced) != 1 {
		t.Fatalf("expected E2 queued silently, got %v", surfaced)
	}
	if n.Len() != 2 {
		t.Fatalf("expected 2 queued, got %d", n.Len())
	}
}

func TestEulaNegotiatorFIFOOrder(t *testing.T) {
	var surfaced []string
	n := NewEulaNegotiator(func(req EulaRequest) { surfaced = append(surfaced, req.EulaID) })

	n.Enqueue(EulaRequest{EulaID: "E1"})
	n.Enqueue(EulaRequest{EulaID: "E2"})
	n.Enqueue(EulaRequest{EulaID: "E3"})

	if remaining := n.PopHead(); remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", remaining)
	}
	if remaining := n.PopHead(); remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", remaining)
	}
	if remaining := n.PopHead(); remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}

	want := []string{"E1", "E2", "E3"}
	for i, id := range want {
		if surfaced[i] != id {
			t.Fatalf("surfaced order %v, want %v", surfaced, want)
		}
	}
}

func TestEulaNegotiatorDropsDuplicateIDs(t *testing.T) {
	n := NewEulaNegotiator(func(EulaRequest) {})
	n.Enqueue(EulaRequest{EulaID: "E1"})
	n.Enqueue(EulaRequest{EulaID: "E1"})

	if n.Len() != 1 {
		t.Fatalf("expected duplicate dropped, got %d queued", n.Len())
	}
}

func TestEulaNegotiatorClear(t *testing.T) {
	var surfaced int
	n := NewEulaNegotiator(func(EulaRequest) { surfaced++ })
	n.Enqueue(EulaRequest{EulaID: "E1"})
	n.Enqueue(EulaRequest{EulaID: "E2"})

	n.Clear()
	if n.Len() != 0 {
		t.Fatalf("expected empty queue after Clear, got %d", n.Len())
	}
	if _, ok := n.Head(); ok {
		t.Fatal("expected no head after Clear")
	}
	if surfaced != 1 {
		t.Fatalf("Clear must not surface anything, surfaced %d times", surfaced)
	}
}

func TestEulaNegotiatorPopOnEmpty(t *testing.T) {
	n := NewEulaNegotiator(func(EulaRequest) { t.Fatal("nothing should surface") })
	if remaining := n.PopHead(); remaining != 0 {
		t.Fatalf("expected 0 from empty pop, got %d", remaining)
	}
}
