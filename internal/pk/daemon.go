// Package pk defines the boundary to the package-manager daemon: the
// operations the agent may request and the events the daemon reports back.
// Every daemon exchange is one asynchronous transaction identified by a TxID;
// results arrive as typed events carrying that id.
package pk

import "github.com/google/uuid"

// TxID identifies one daemon transaction.
type TxID string

// NewTxID returns a fresh transaction id.
func NewTxID() TxID {
	return TxID(uuid.NewString())
}

// TxKind is the kind of work a transaction performs. The coordinator keeps
// at most one live transaction per kind.
type TxKind int

const (
	TxRefreshCache TxKind = iota
	TxGetUpdates
	TxGetDetails
	TxInstall
	TxAcceptEula
)

func (k TxKind) String() string {
	switch k {
	case TxRefreshCache:
		return "refresh-cache"
	case TxGetUpdates:
		return "get-updates"
	case TxGetDetails:
		return "get-details"
	case TxInstall:
		return "install"
	case TxAcceptEula:
		return "accept-eula"
	default:
		return "unknown"
	}
}

// Exit is the terminal status of a finished transaction.
type Exit int

const (
	ExitUnknown Exit = iota
	ExitSuccess
	ExitFailed
	ExitCancelled
)

func (e Exit) String() string {
	switch e {
	case ExitSuccess:
		return "success"
	case ExitFailed:
		return "failed"
	case ExitCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Info classifies a package reported during enumeration.
type Info int

const (
	InfoUnknown Info = iota
	InfoNormal
	InfoBugfix
	InfoEnhancement
	InfoImportant
	InfoSecurity
)

func (i Info) String() string {
	switch i {
	case InfoNormal:
		return "normal"
	case InfoBugfix:
		return "bugfix"
	case InfoEnhancement:
		return "enhancement"
	case InfoImportant:
		return "important"
	case InfoSecurity:
		return "security"
	default:
		return "unknown"
	}
}

// RestartKind reports whether an update needs a restart to take effect.
type RestartKind int

const (
	RestartNone RestartKind = iota
	RestartApplication
	RestartSession
	RestartSystem
)

// Daemon is the asynchronous package-manager service. Each method starts a
// transaction and returns immediately; progress and results are delivered as
// events tagged with the returned TxID. An error from a method means the
// transaction could not even be created (daemon unreachable, bad arguments)
// and no events will follow.
type Daemon interface {
	// RefreshCache re-downloads repository metadata. force bypasses any
	// daemon-side freshness heuristics.
	RefreshCache(force bool) (TxID, error)

	// GetUpdates enumerates packages with pending updates. One Package
	// event per package, then Finished.
	GetUpdates() (TxID, error)

	// GetUpdateDetail fetches the changelog and reference URLs for one
	// package. Emits UpdateDetail then Finished.
	GetUpdateDetail(packageID string) (TxID, error)

	// UpdateSystem installs the given package updates. simulate performs a
	// trial run without touching the system. allowUntrusted permits
	// packages that fail signature checks.
	UpdateSystem(packageIDs []string, simulate, allowUntrusted bool) (TxID, error)

	// AcceptEula records acceptance of a license agreement so that a
	// subsequent UpdateSystem can proceed.
	AcceptEula(eulaID string) (TxID, error)
}
