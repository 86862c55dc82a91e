package pk

import "time"

// Event is a daemon notification tied to one transaction. The concrete types
// below mirror the daemon's per-transaction signals one-to-one so the
// coordinator can dispatch on type.
type Event interface {
	Transaction() TxID
}

// PackageEvent reports one package found during enumeration, or the package
// currently being worked on during an install.
type PackageEvent struct {
	Tx        TxID
	Info      Info
	PackageID string
	Summary   string
}

// ProgressEvent carries the transaction's completion percentage, 0..100, or
// PercentageIndeterminate when the daemon cannot estimate.
type ProgressEvent struct {
	Tx         TxID
	Percentage int
}

// StatusEvent reports the daemon's current phase within a transaction, e.g.
// "download", "query", "install".
type StatusEvent struct {
	Tx     TxID
	Status string
}

// FinishedEvent is the terminal event of every transaction. Exactly one is
// delivered per transaction, after any error events.
type FinishedEvent struct {
	Tx      TxID
	Exit    Exit
	Runtime time.Duration
}

// ErrorEvent reports a transaction error. The transaction still finishes
// with its own FinishedEvent afterwards.
type ErrorEvent struct {
	Tx      TxID
	Kind    ErrorKind
	Details string
}

// EulaRequiredEvent reports that installation is blocked on a license
// agreement. Several may be delivered during one failed install pass.
type EulaRequiredEvent struct {
	Tx          TxID
	EulaID      string
	PackageID   string
	Vendor      string
	LicenseText string
}

// RepoSignatureRequiredEvent reports that a repository signing key needs
// explicit approval before installation can proceed.
type RepoSignatureRequiredEvent struct {
	Tx             TxID
	PackageID      string
	RepoName       string
	KeyURL         string
	KeyID          string
	KeyFingerprint string
}

// RequireRestartEvent reports that an installed update only takes effect
// after a restart.
type RequireRestartEvent struct {
	Tx        TxID
	Kind      RestartKind
	PackageID string
}

// UpdateDetailEvent carries the changelog text and reference URLs for one
// package, in response to GetUpdateDetail.
type UpdateDetailEvent struct {
	Tx         TxID
	PackageID  string
	UpdateText string
	URLs       []string
	Restart    RestartKind
}

func (e PackageEvent) Transaction() TxID               { return e.Tx }
func (e ProgressEvent) Transaction() TxID              { return e.Tx }
func (e StatusEvent) Transaction() TxID                { return e.Tx }
func (e FinishedEvent) Transaction() TxID              { return e.Tx }
func (e ErrorEvent) Transaction() TxID                 { return e.Tx }
func (e EulaRequiredEvent) Transaction() TxID          { return e.Tx }
func (e RepoSignatureRequiredEvent) Transaction() TxID { return e.Tx }
func (e RequireRestartEvent) Transaction() TxID        { return e.Tx }
func (e UpdateDetailEvent) Transaction() TxID          { return e.Tx }
