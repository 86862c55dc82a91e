package updates

import (
	"fmt"
	"time"
)

// Snapshot is the immutable aggregate published to consumers on every state
// change. It is regenerated wholesale; fields are never mutated in place.
type Snapshot struct {
	Count            int               `json:"count"`
	ImportantCount   int               `json:"importantCount"`
	SecurityCount    int               `json:"securityCount"`
	IsSystemUpToDate bool              `json:"isSystemUpToDate"`
	IconName         string            `json:"iconName"`
	Message          string            `json:"message"`
	Percentage       int               `json:"percentage"`
	LastCheckTime    time.Time         `json:"lastCheckTime,omitzero"`
	StatusMessage    string            `json:"statusMessage"`
	Packages         map[string]string `json:"packages"`
	IsActive         bool              `json:"isActive"`
	IsNetworkOnline  bool              `json:"isNetworkOnline"`
	IsNetworkMobile  bool              `json:"isNetworkMobile"`
	IsOnBattery      bool              `json:"isOnBattery"`
}

// Detail carries the changelog for one package, emitted in response to
// GetUpdateDetails.
type Detail struct {
	PackageID  string   `json:"packageId"`
	UpdateText string   `json:"updateText"`
	URLs       []string `json:"urls"`
}

// RepoSignaturePrompt asks the caller to approve a repository signing key.
type RepoSignaturePrompt struct {
	PackageID      string `json:"packageId"`
	RepoName       string `json:"repoName"`
	KeyURL         string `json:"keyUrl"`
	KeyID          string `json:"keyId"`
	KeyFingerprint string `json:"keyFingerprint"`
}

// Listener receives the coordinator's notifications. All methods are invoked
// from the coordinator's event-processing goroutine and must not block.
type Listener interface {
	// AggregateChanged delivers a fresh snapshot after any visible change.
	AggregateChanged(Snapshot)
	// CheckDone fires exactly once per check or install attempt,
	// regardless of outcome.
	CheckDone()
	// UpdatesInstalled fires after a non-simulated install succeeds.
	UpdatesInstalled()
	// UpdateDetail delivers the result of GetUpdateDetails.
	UpdateDetail(Detail)
	// EulaRequired surfaces the license agreement currently blocking an
	// install. Answer via EulaAgreementResult.
	EulaRequired(EulaRequest)
	// RepoSignatureRequired surfaces a repository key prompt. The install
	// is not retried automatically.
	RepoSignatureRequired(RepoSignaturePrompt)
}

// iconFor picks the status icon hint from the committed catalog.
func iconFor(snap CatalogSnapshot) string {
	switch {
	case snap.IsUpToDate():
		return "update-none"
	case snap.SecurityCount() > 0:
		return "update-high"
	case snap.ImportantCount() > 0:
		return "update-medium"
	default:
		return "update-low"
	}
}

// messageFor renders the overall availability message.
func messageFor(snap CatalogSnapshot, outcome CheckOutcome) string {
	switch {
	case outcome == NeverChecked:
		return "Updates have not been checked yet"
	case outcome == CheckFailed:
		return "Could not check for updates"
	case snap.IsUpToDate():
		return "Your system is up to date"
	case snap.SecurityCount() > 0:
		return fmt.Sprintf("You have %d updates (%d security)", snap.Count(), snap.SecurityCount())
	default:
		return fmt.Sprintf("You have %d updates", snap.Count())
	}
}
