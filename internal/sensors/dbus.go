package sensors

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/updatewatch/agent/internal/logging"
)

const (
	nmName  = "org.freedesktop.NetworkManager"
	nmPath  = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmIface = "org.freedesktop.NetworkManager"

	upName  = "org.freedesktop.UPower"
	upPath  = dbus.ObjectPath("/org/freedesktop/UPower")
	upIface = "org.freedesktop.UPower"

	propIface = "org.freedesktop.DBus.Properties"
)

// NetworkManager state: >= 60 (connected-site) counts as online.
const nmStateOnline = 60

// NetworkManager metered property values that mean a metered link.
func meteredIsMobile(metered uint32) bool {
	return metered == 1 || metered == 3 // yes / guess-yes
}

// busMonitor watches NetworkManager and UPower property changes on the
// system bus.
type busMonitor struct {
	conn *dbus.Conn
}

func newBusMonitor() (*busMonitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("system bus: %w", err)
	}
	return &busMonitor{conn: conn}, nil
}

func (m *busMonitor) Watch(ctx context.Context) (<-chan State, error) {
	if err := m.conn.AddMatchSignal(
		dbus.WithMatchInterface(propIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return nil, fmt.Errorf("match property signals: %w", err)
	}

	out := make(chan State, 1)
	cur := m.read()
	out <- cur

	sigs := make(chan *dbus.Signal, 64)
	m.conn.Signal(sigs)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				m.conn.RemoveSignal(sigs)
				return
			case sig, ok := <-sigs:
				if !ok {
					return
				}
				if !relevant(sig) {
					continue
				}
				next := m.read()
				if next != cur {
					cur = next
					select {
					case out <- cur:
					case <-ctx.Done():
						m.conn.RemoveSignal(sigs)
						return
					}
				}
			}
		}
	}()

	return out, nil
}

func relevant(sig *dbus.Signal) bool {
	if len(sig.Body) == 0 {
		return false
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return false
	}
	return iface == nmIface || iface == upIface
}

// read queries the current properties. Failures degrade to optimistic
// defaults so a missing service never wedges update checks.
func (m *busMonitor) read() State {
	state := State{Online: true}

	nm := m.conn.Object(nmName, nmPath)
	var nmState dbus.Variant
	if err := nm.Call(propIface+".Get", 0, nmIface, "State").Store(&nmState); err == nil {
		if v, ok := nmState.Value().(uint32); ok {
			state.Online = v >= nmStateOnline
		}
	} else {
		log.Debug("NetworkManager state query failed", logging.KeyError, err)
	}

	var metered dbus.Variant
	if err := nm.Call(propIface+".Get", 0, nmIface, "Metered").Store(&metered); err == nil {
		if v, ok := metered.Value().(uint32); ok {
			state.Mobile = meteredIsMobile(v)
		}
	}

	up := m.conn.Object(upName, upPath)
	var onBattery dbus.Variant
	if err := up.Call(propIface+".Get", 0, upIface, "OnBattery").Store(&onBattery); err == nil {
		if v, ok := onBattery.Value().(bool); ok {
			state.OnBattery = v
		}
	}

	return state
}
