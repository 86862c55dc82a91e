// Package sensors provides the network and power signals the update
// coordinator reacts to: online/offline, metered (mobile) connectivity, and
// battery power. Preferred source is the system bus (NetworkManager and
// UPower); hosts without either fall back to interface polling.
package sensors

import (
	"context"
	"time"

	gopsnet "github.com/shirou/gopsutil/v3/net"

	"github.com/updatewatch/agent/internal/logging"
)

var log = logging.L("sensors")

// State is one reading of the host's connectivity and power signals.
type State struct {
	Online    bool
	Mobile    bool
	OnBattery bool
}

// Monitor delivers state changes until the context is done. The first value
// on the channel is the initial reading.
type Monitor interface {
	Watch(ctx context.Context) (<-chan State, error)
}

// New returns the best available monitor: the system-bus watcher when the
// bus is reachable, otherwise an interface poller.
func New() Monitor {
	if m, err := newBusMonitor(); err == nil {
		return m
	} else {
		log.Warn("system bus unavailable, falling back to interface polling", logging.KeyError, err)
	}
	return NewPollMonitor(30 * time.Second)
}

// PollMonitor infers connectivity by polling the host's interfaces. It never
// reports mobile or battery state.
type PollMonitor struct {
	interval time.Duration
}

func NewPollMonitor(interval time.Duration) *PollMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PollMonitor{interval: interval}
}

func (m *PollMonitor) Watch(ctx context.Context) (<-chan State, error) {
	out := make(chan State, 1)
	out <- State{Online: probeOnline()}

	go func() {
		defer close(out)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		last := State{Online: probeOnline()}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cur := State{Online: probeOnline()}
				if cur != last {
					last = cur
					select {
					case out <- cur:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}

// probeOnline reports whether any non-loopback interface is up with an
// address assigned.
func probeOnline() bool {
	ifaces, err := gopsnet.Interfaces()
	if err != nil {
		log.Debug("interface probe failed", logging.KeyError, err)
		return true // assume online rather than blocking checks forever
	}
	for _, iface := range ifaces {
		if len(iface.Addrs) == 0 {
			continue
		}
		up, loopback := false, false
		for _, flag := range iface.Flags {
			switch flag {
			case "up":
				up = true
			case "loopback":
				loopback = true
			}
		}
		if up && !loopback {
			return true
		}
	}
	return false
}

// Static is a monitor that reports one fixed state and never changes. Used
// when sensors are disabled by config.
type Static struct {
	State State
}

func (s Static) Watch(ctx context.Context) (<-chan State, error) {
	out := make(chan State, 1)
	out <- s.State
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}
