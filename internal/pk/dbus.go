package pk

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/updatewatch/agent/internal/logging"
)

var log = logging.L("pk")

const (
	busName   = "org.freedesktop.PackageKit"
	basePath  = dbus.ObjectPath("/org/freedesktop/PackageKit")
	baseIface = "org.freedesktop.PackageKit"
	txIface   = "org.freedesktop.PackageKit.Transaction"
	propIface = "org.freedesktop.DBus.Properties"
)

// Transaction flag bits, matching the daemon's wire enum.
const (
	txFlagNone        uint64 = 0
	txFlagOnlyTrusted uint64 = 1 << 0
	txFlagSimulate    uint64 = 1 << 1
)

// PercentageIndeterminate is the daemon's sentinel for "cannot estimate".
const PercentageIndeterminate = 101

// Subset of the daemon's numeric error enum, mapped to wire names so they
// can be classified. Codes not listed classify as unknown.
var errorCodeNames = map[uint32]string{
	2:  "no-network",
	16: "transaction-error",
	26: "cannot-get-lock",
	30: "bad-gpg-signature",
	31: "missing-gpg-signature",
	34: "no-license-agreement",
	48: "not-authorized",
	50: "cannot-install-repo-unsigned",
	51: "cannot-update-repo-unsigned",
}

// Subset of the daemon's numeric status enum used for the status line.
var statusNames = map[uint32]string{
	1:  "wait",
	2:  "setup",
	3:  "running",
	4:  "query",
	5:  "info",
	6:  "remove",
	7:  "refresh-cache",
	8:  "download",
	9:  "install",
	10: "update",
	11: "cleanup",
	13: "dep-resolve",
	28: "loading-cache",
}

// DBusDaemon implements Daemon against the PackageKit service on the system
// bus. Each operation creates a daemon-side transaction object and watches
// its signals, translating them into pk events on a single channel.
type DBusDaemon struct {
	conn   *dbus.Conn
	events chan Event

	mu     sync.Mutex
	byPath map[dbus.ObjectPath]TxID
	closed bool
}

// ConnectSystemBus connects to the package-manager daemon on the system bus.
func ConnectSystemBus() (*DBusDaemon, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("system bus: %w", err)
	}

	d := &DBusDaemon{
		conn:   conn,
		events: make(chan Event, 128),
		byPath: make(map[dbus.ObjectPath]TxID),
	}

	if err := conn.AddMatchSignal(dbus.WithMatchInterface(txIface)); err != nil {
		return nil, fmt.Errorf("match transaction signals: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(propIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, txIface),
	); err != nil {
		return nil, fmt.Errorf("match property signals: %w", err)
	}

	sigs := make(chan *dbus.Signal, 256)
	conn.Signal(sigs)
	go d.pump(sigs)

	return d, nil
}

// Events returns the channel daemon notifications are delivered on.
func (d *DBusDaemon) Events() <-chan Event {
	return d.events
}

// Close drops the bus connection. Pending transactions are abandoned
// daemon-side; their events are no longer delivered.
func (d *DBusDaemon) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.conn.Close()
}

func (d *DBusDaemon) RefreshCache(force bool) (TxID, error) {
	return d.start("RefreshCache", force)
}

func (d *DBusDaemon) GetUpdates() (TxID, error) {
	// filter "none"; categorization happens on our side from package info
	return d.start("GetUpdates", uint64(0))
}

func (d *DBusDaemon) GetUpdateDetail(packageID string) (TxID, error) {
	return d.start("GetUpdateDetail", []string{packageID})
}

func (d *DBusDaemon) UpdateSystem(packageIDs []string, simulate, allowUntrusted bool) (TxID, error) {
	flags := txFlagOnlyTrusted
	if allowUntrusted {
		flags = txFlagNone
	}
	if simulate {
		flags |= txFlagSimulate
	}
	return d.start("UpdatePackages", flags, packageIDs)
}

func (d *DBusDaemon) AcceptEula(eulaID string) (TxID, error) {
	return d.start("AcceptEula", eulaID)
}

// start creates a daemon transaction object and invokes method on it.
func (d *DBusDaemon) start(method string, args ...any) (TxID, error) {
	var path dbus.ObjectPath
	base := d.conn.Object(busName, basePath)
	if err := base.Call(baseIface+".CreateTransaction", 0).Store(&path); err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}

	id := NewTxID()
	d.mu.Lock()
	d.byPath[path] = id
	d.mu.Unlock()

	tx := d.conn.Object(busName, path)
	if call := tx.Call(txIface+"."+method, 0, args...); call.Err != nil {
		d.mu.Lock()
		delete(d.byPath, path)
		d.mu.Unlock()
		return "", fmt.Errorf("%s: %w", method, call.Err)
	}

	log.Debug("transaction started", "method", method, "path", string(path))
	return id, nil
}

func (d *DBusDaemon) lookup(path dbus.ObjectPath) (TxID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byPath[path]
	return id, ok
}

func (d *DBusDaemon) pump(sigs <-chan *dbus.Signal) {
	for sig := range sigs {
		id, ok := d.lookup(sig.Path)
		if !ok {
			continue
		}
		if ev := d.translate(id, sig); ev != nil {
			d.emit(ev)
			if _, done := ev.(FinishedEvent); done {
				d.mu.Lock()
				delete(d.byPath, sig.Path)
				d.mu.Unlock()
			}
		}
	}
}

func (d *DBusDaemon) emit(ev Event) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}
	d.events <- ev
}

// translate converts one raw bus signal into a pk event, or nil for signals
// the agent does not consume.
func (d *DBusDaemon) translate(id TxID, sig *dbus.Signal) Event {
	switch sig.Name {
	case txIface + ".Package":
		info, ok1 := asUint32(sig.Body, 0)
		pkgID, ok2 := asString(sig.Body, 1)
		summary, ok3 := asString(sig.Body, 2)
		if !ok1 || !ok2 || !ok3 {
			return nil
		}
		return PackageEvent{Tx: id, Info: mapInfo(info), PackageID: pkgID, Summary: summary}

	case txIface + ".ErrorCode":
		code, ok1 := asUint32(sig.Body, 0)
		details, ok2 := asString(sig.Body, 1)
		if !ok1 || !ok2 {
			return nil
		}
		return ErrorEvent{Tx: id, Kind: classifyErrorName(errorCodeNames[code]), Details: details}

	case txIface + ".Finished":
		exit, ok1 := asUint32(sig.Body, 0)
		runtime, ok2 := asUint32(sig.Body, 1)
		if !ok1 || !ok2 {
			return nil
		}
		return FinishedEvent{Tx: id, Exit: mapExit(exit), Runtime: time.Duration(runtime) * time.Millisecond}

	case txIface + ".EulaRequired":
		eulaID, ok1 := asString(sig.Body, 0)
		pkgID, ok2 := asString(sig.Body, 1)
		vendor, ok3 := asString(sig.Body, 2)
		text, ok4 := asString(sig.Body, 3)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil
		}
		return EulaRequiredEvent{Tx: id, EulaID: eulaID, PackageID: pkgID, Vendor: vendor, LicenseText: text}

	case txIface + ".RepoSignatureRequired":
		pkgID, _ := asString(sig.Body, 0)
		repo, _ := asString(sig.Body, 1)
		keyURL, _ := asString(sig.Body, 2)
		keyID, ok := asString(sig.Body, 4)
		fingerprint, _ := asString(sig.Body, 5)
		if !ok {
			return nil
		}
		return RepoSignatureRequiredEvent{
			Tx: id, PackageID: pkgID, RepoName: repo,
			KeyURL: keyURL, KeyID: keyID, KeyFingerprint: fingerprint,
		}

	case txIface + ".RequireRestart":
		kind, ok1 := asUint32(sig.Body, 0)
		pkgID, ok2 := asString(sig.Body, 1)
		if !ok1 || !ok2 {
			return nil
		}
		return RequireRestartEvent{Tx: id, Kind: mapRestart(kind), PackageID: pkgID}

	case txIface + ".UpdateDetail":
		pkgID, ok := asString(sig.Body, 0)
		if !ok {
			return nil
		}
		var urls []string
		for _, idx := range []int{3, 4, 5} { // vendor, bugzilla, cve urls
			if more, ok := asStringSlice(sig.Body, idx); ok {
				urls = append(urls, more...)
			}
		}
		restart, _ := asUint32(sig.Body, 6)
		text, _ := asString(sig.Body, 7)
		return UpdateDetailEvent{Tx: id, PackageID: pkgID, UpdateText: text, URLs: urls, Restart: mapRestart(restart)}

	case propIface + ".PropertiesChanged":
		return d.translateProps(id, sig.Body)
	}

	return nil
}

func (d *DBusDaemon) translateProps(id TxID, body []any) Event {
	if len(body) < 2 {
		return nil
	}
	changed, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return nil
	}

	if v, ok := changed["Percentage"]; ok {
		if pct, ok := v.Value().(uint32); ok {
			return ProgressEvent{Tx: id, Percentage: int(pct)}
		}
	}
	if v, ok := changed["Status"]; ok {
		if status, ok := v.Value().(uint32); ok {
			name := statusNames[status]
			if name == "" {
				name = fmt.Sprintf("status-%d", status)
			}
			return StatusEvent{Tx: id, Status: name}
		}
	}
	return nil
}

// mapInfo converts the daemon's package info enum values used during update
// enumeration. Values outside the update severities count as normal.
func mapInfo(info uint32) Info {
	switch info {
	case 3: // low
		return InfoNormal
	case 4: // enhancement
		return InfoEnhancement
	case 5: // normal
		return InfoNormal
	case 6: // bugfix
		return InfoBugfix
	case 7: // important
		return InfoImportant
	case 8: // security
		return InfoSecurity
	default:
		return InfoUnknown
	}
}

func mapExit(exit uint32) Exit {
	switch exit {
	case 1:
		return ExitSuccess
	case 3:
		return ExitCancelled
	case 0:
		return ExitUnknown
	default:
		return ExitFailed
	}
}

func mapRestart(kind uint32) RestartKind {
	switch kind {
	case 2:
		return RestartApplication
	case 3:
		return RestartSession
	case 4:
		return RestartSystem
	default:
		return RestartNone
	}
}

func asString(body []any, idx int) (string, bool) {
	if idx >= len(body) {
		return "", false
	}
	s, ok := body[idx].(string)
	return s, ok
}

func asUint32(body []any, idx int) (uint32, bool) {
	if idx >= len(body) {
		return 0, false
	}
	u, ok := body[idx].(uint32)
	return u, ok
}

func asStringSlice(body []any, idx int) ([]string, bool) {
	if idx >= len(body) {
		return nil, false
	}
	s, ok := body[idx].([]string)
	return s, ok
}
