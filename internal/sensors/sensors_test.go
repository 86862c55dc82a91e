package sensors

import (
	"context"
	"testing"
	"time"
)

func TestStaticMonitorDeliversInitialState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := Static{State: State{Online: true, OnBattery: true}}
	ch, err := m.Watch(ctx)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	select {
	case got := <-ch:
		if !got.Online || !got.OnBattery || got.Mobile {
			t.Fatalf("unexpected state %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial state delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestMeteredIsMobile(t *testing.T) {
	cases := map[uint32]bool{
		0: false, // unknown
		1: true,  // yes
		2: false, // no
		3: true,  // guess-yes
		4: false, // guess-no
	}
	for metered, want := range cases {
		if got := meteredIsMobile(metered); got != want {
			t.Fatalf("meteredIsMobile(%d) = %v, want %v", metered, got, want)
		}
	}
}

func TestPollMonitorEmitsInitialReading(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewPollMonitor(time.Hour) // never ticks during the test
	ch, err := m.Watch(ctx)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no initial reading delivered")
	}
}
