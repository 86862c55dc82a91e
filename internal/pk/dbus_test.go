package pk

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func txSignal(name string, body ...any) *dbus.Signal {
	return &dbus.Signal{Name: txIface + "." + name, Body: body}
}

func TestTranslatePackageSignal(t *testing.T) {
	d := &DBusDaemon{}
	id := NewTxID()

	ev := d.translate(id, txSignal("Package", uint32(8), "openssl;3.0.1;x86_64;updates", "TLS library"))
	pkg, ok := ev.(PackageEvent)
	if !ok {
		t.Fatalf("expected PackageEvent, got %T", ev)
	}
	if pkg.Info != InfoSecurity || pkg.PackageID != "openssl;3.0.1;x86_64;updates" || pkg.Summary != "TLS library" {
		t.Fatalf("unexpected event %+v", pkg)
	}

	if ev := d.translate(id, txSignal("Package", "malformed")); ev != nil {
		t.Fatalf("expected malformed signal dropped, got %+v", ev)
	}
}

func TestTranslateStatusProperty(t *testing.T) {
	d := &DBusDaemon{}
	id := NewTxID()

	cases := []struct {
		code uint32
		want string
	}{
		{7, "refresh-cache"},
		{13, "dep-resolve"},
		{28, "loading-cache"},
		{99, "status-99"}, // unmapped codes keep a stable placeholder
	}
	for _, tc := range cases {
		ev := d.translateProps(id, []any{
			txIface,
			map[string]dbus.Variant{"Status": dbus.MakeVariant(tc.code)},
		})
		st, ok := ev.(StatusEvent)
		if !ok {
			t.Fatalf("code %d: expected StatusEvent, got %T", tc.code, ev)
		}
		if st.Status != tc.want {
			t.Fatalf("code %d: expected %q, got %q", tc.code, tc.want, st.Status)
		}
	}
}

func TestTranslatePercentageProperty(t *testing.T) {
	d := &DBusDaemon{}
	id := NewTxID()

	ev := d.translateProps(id, []any{
		txIface,
		map[string]dbus.Variant{"Percentage": dbus.MakeVariant(uint32(42))},
	})
	prog, ok := ev.(ProgressEvent)
	if !ok {
		t.Fatalf("expected ProgressEvent, got %T", ev)
	}
	if prog.Percentage != 42 {
		t.Fatalf("expected 42, got %d", prog.Percentage)
	}
}
