package updates

import (
	"fmt"
	"time"

	"github.com/updatewatch/agent/internal/logging"
	"github.com/updatewatch/agent/internal/pk"
)

var log = logging.L("coordinator")

// Activity is the coordinator's current high-level phase.
type Activity int

const (
	Idle Activity = iota
	CheckingCache
	EnumeratingUpdates
	InstallingUpdates
)

func (a Activity) String() string {
	switch a {
	case CheckingCache:
		return "checking-cache"
	case EnumeratingUpdates:
		return "enumerating-updates"
	case InstallingUpdates:
		return "installing-updates"
	default:
		return "idle"
	}
}

// CheckOutcome records how the most recent update check ended.
type CheckOutcome int

const (
	NeverChecked CheckOutcome = iota
	CheckFailed
	CheckSucceeded
)

func (o CheckOutcome) String() string {
	switch o {
	case CheckFailed:
		return "failed"
	case CheckSucceeded:
		return "succeeded"
	default:
		return "never-checked"
	}
}

// InstallRequest captures the caller's install intent so it can be
// resubmitted verbatim after EULA negotiation.
type InstallRequest struct {
	PackageIDs     []string
	Simulate       bool
	AllowUntrusted bool
}

type checkRequest struct {
	force  bool
	manual bool
}

// RefreshStamps persists the time of the last successful cache refresh
// across restarts.
type RefreshStamps interface {
	LastRefresh() time.Time
	RecordRefresh(time.Time)
}

// Options tune coordinator policy.
type Options struct {
	// CacheMaxAge is how recently the cache must have been refreshed for
	// a non-forced check to skip the refresh stage. Zero never skips.
	CacheMaxAge time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Coordinator sequences the daemon transactions behind update checks and
// installs and aggregates their results. It is not safe for concurrent use:
// all methods, including HandleEvent, must be called from one goroutine
// (the agent's event loop).
type Coordinator struct {
	daemon      pk.Daemon
	listener    Listener
	stamps      RefreshStamps
	cacheMaxAge time.Duration
	now         func() time.Time

	handles   *handleSet
	catalog   *Catalog
	committed CatalogSnapshot
	progress  ProgressTracker
	eulas     *EulaNegotiator

	activity      Activity
	outcome       CheckOutcome
	lastCheckTime time.Time
	statusMessage string

	manualCheck    bool           // current check was user triggered
	twoStage       bool           // current check includes the refresh stage
	queuedCheck    *checkRequest  // coalesced while a check is in flight
	deferredCheck  *checkRequest  // waiting for connectivity
	pendingInstall *InstallRequest

	networkOnline bool
	networkMobile bool
	onBattery     bool
}

// NewCoordinator wires a coordinator to a daemon and a listener. stamps may
// be nil, in which case every non-forced check still refreshes the cache and
// LastRefreshTimestamp reports never.
func NewCoordinator(daemon pk.Daemon, listener Listener, stamps RefreshStamps, opts Options) *Coordinator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		daemon:        daemon,
		listener:      listener,
		stamps:        stamps,
		cacheMaxAge:   opts.CacheMaxAge,
		now:           now,
		handles:       newHandleSet(),
		catalog:       NewCatalog(),
		eulas:         NewEulaNegotiator(listener.EulaRequired),
		networkOnline: true,
	}
}

// Activity returns the coordinator's current phase.
func (c *Coordinator) Activity() Activity {
	return c.activity
}

// LastCheckOutcome reports how the most recent check ended.
func (c *Coordinator) LastCheckOutcome() CheckOutcome {
	return c.outcome
}

// Snapshot builds the current aggregate view.
func (c *Coordinator) Snapshot() Snapshot {
	return Snapshot{
		Count:            c.committed.Count(),
		ImportantCount:   c.committed.ImportantCount(),
		SecurityCount:    c.committed.SecurityCount(),
		IsSystemUpToDate: c.committed.IsUpToDate(),
		IconName:         iconFor(c.committed),
		Message:          messageFor(c.committed, c.outcome),
		Percentage:       c.progress.Percentage(),
		LastCheckTime:    c.lastCheckTime,
		StatusMessage:    c.statusMessage,
		Packages:         c.committed.Packages(),
		IsActive:         c.activity != Idle,
		IsNetworkOnline:  c.networkOnline,
		IsNetworkMobile:  c.networkMobile,
		IsOnBattery:      c.onBattery,
	}
}

// LastRefreshTimestamp returns the last successful cache refresh in
// milliseconds since the epoch, or -1 if never.
func (c *Coordinator) LastRefreshTimestamp() int64 {
	if c.stamps == nil {
		return -1
	}
	last := c.stamps.LastRefresh()
	if last.IsZero() {
		return -1
	}
	return last.UnixMilli()
}

// CheckUpdates starts an update check: a cache refresh followed by an update
// enumeration. If a check or an install attempt is already in flight the
// request is coalesced and re-issued when the active one completes, the
// newest caller's flags winning. If the system is offline the request is
// deferred until the next online transition (see DoDelayedCheckUpdates).
func (c *Coordinator) CheckUpdates(force, manual bool) {
	if c.checkInFlight() || c.installInFlight() {
		c.queuedCheck = &checkRequest{force: force, manual: manual}
		log.Debug("coordinator busy, coalescing check", "force", force, "manual", manual)
		return
	}

	if !c.networkOnline {
		c.deferredCheck = &checkRequest{force: force, manual: manual}
		log.Info("offline, deferring update check")
		c.statusMessage = "Waiting for network to check for updates"
		c.publish()
		return
	}

	c.startCheck(force, manual)
}

// DoDelayedCheckUpdates runs a previously deferred check, if connectivity is
// back. Otherwise it is a no-op.
func (c *Coordinator) DoDelayedCheckUpdates() {
	if c.deferredCheck == nil || !c.networkOnline {
		return
	}
	req := *c.deferredCheck
	c.deferredCheck = nil
	log.Info("network is back, running deferred update check")
	c.CheckUpdates(req.force, req.manual)
}

// InstallUpdates installs the given package updates. The ids are expected to
// come from the current catalog. A second install while one is pending is
// ignored.
func (c *Coordinator) InstallUpdates(packageIDs []string, simulate, allowUntrusted bool) {
	if len(packageIDs) == 0 {
		return
	}
	if c.handles.live(pk.TxInstall) || c.pendingInstall != nil {
		log.Warn("install already in progress, ignoring request")
		return
	}

	ids := make([]string, len(packageIDs))
	copy(ids, packageIDs)
	c.pendingInstall = &InstallRequest{
		PackageIDs:     ids,
		Simulate:       simulate,
		AllowUntrusted: allowUntrusted,
	}
	c.submitInstall()
}

// EulaAgreementResult answers the license agreement currently surfaced by
// the negotiator. A mismatched eula id is a stale UI event and is ignored.
// Declining abandons the whole pending install.
func (c *Coordinator) EulaAgreementResult(eulaID string, agreed bool) {
	head, ok := c.eulas.Head()
	if !ok || head.EulaID != eulaID {
		log.Debug("stale eula response ignored", "eulaId", eulaID)
		return
	}

	if !agreed {
		log.Info("license agreement declined, abandoning install", "eulaId", eulaID)
		c.abandonInstallAttempt()
		c.failAttempt(pk.ErrorLicenseDeclined, "")
		return
	}

	if c.handles.live(pk.TxAcceptEula) {
		return
	}
	id, err := c.daemon.AcceptEula(eulaID)
	if err != nil {
		log.Error("accepting eula failed", logging.KeyError, err)
		c.abandonInstallAttempt()
		c.failAttempt(pk.ErrorUnknown, err.Error())
		return
	}
	c.mustOpen(pk.TxAcceptEula, id)
	c.statusMessage = "Accepting license agreement"
	c.publish()
}

// GetUpdateDetails fetches the changelog for one package. Independent of the
// check/install sequence; the result arrives via Listener.UpdateDetail.
func (c *Coordinator) GetUpdateDetails(packageID string) {
	if c.handles.live(pk.TxGetDetails) {
		log.Debug("detail fetch already in flight", logging.KeyPackageID, packageID)
		return
	}
	id, err := c.daemon.GetUpdateDetail(packageID)
	if err != nil {
		log.Error("detail fetch failed to start", logging.KeyPackageID, packageID, logging.KeyError, err)
		return
	}
	c.mustOpen(pk.TxGetDetails, id)
}

// SetNetworkState records the connectivity signal. Callers should follow an
// offline→online transition with DoDelayedCheckUpdates.
func (c *Coordinator) SetNetworkState(online, mobile bool) {
	if c.networkOnline == online && c.networkMobile == mobile {
		return
	}
	c.networkOnline = online
	c.networkMobile = mobile
	c.publish()
}

// SetOnBattery records the power signal.
func (c *Coordinator) SetOnBattery(onBattery bool) {
	if c.onBattery == onBattery {
		return
	}
	c.onBattery = onBattery
	c.publish()
}

// HandleEvent processes one daemon event. Events for unknown or already
// closed transactions are dropped.
func (c *Coordinator) HandleEvent(ev pk.Event) {
	h, ok := c.handles.lookup(ev.Transaction())
	if !ok {
		log.Debug("event for unknown transaction dropped", "tx", string(ev.Transaction()))
		return
	}

	switch ev := ev.(type) {
	case pk.PackageEvent:
		c.onPackage(h, ev)
	case pk.ProgressEvent:
		c.onProgress(h, ev)
	case pk.StatusEvent:
		c.onStatus(h, ev)
	case pk.ErrorEvent:
		log.Warn("transaction error", "txKind", h.kind.String(), "errorKind", ev.Kind.String(), "details", ev.Details)
		h.lastErr = &ev
	case pk.EulaRequiredEvent:
		if h.kind == pk.TxInstall {
			c.eulas.Enqueue(EulaRequest{
				EulaID:      ev.EulaID,
				PackageID:   ev.PackageID,
				Vendor:      ev.Vendor,
				LicenseText: ev.LicenseText,
			})
		}
	case pk.RepoSignatureRequiredEvent:
		c.listener.RepoSignatureRequired(RepoSignaturePrompt{
			PackageID:      ev.PackageID,
			RepoName:       ev.RepoName,
			KeyURL:         ev.KeyURL,
			KeyID:          ev.KeyID,
			KeyFingerprint: ev.KeyFingerprint,
		})
		c.statusMessage = pk.ErrorRepoSignatureRequired.HumanMessage()
		c.publish()
	case pk.RequireRestartEvent:
		log.Info("restart required", logging.KeyPackageID, ev.PackageID)
	case pk.UpdateDetailEvent:
		if h.kind == pk.TxGetDetails {
			c.listener.UpdateDetail(Detail{
				PackageID:  ev.PackageID,
				UpdateText: ev.UpdateText,
				URLs:       ev.URLs,
			})
		}
	case pk.FinishedEvent:
		c.handles.close(h)
		c.onFinished(h, ev)
	}
}

func (c *Coordinator) onPackage(h *txHandle, ev pk.PackageEvent) {
	switch h.kind {
	case pk.TxGetUpdates:
		c.catalog.Record(PackageEntry{
			ID:       ev.PackageID,
			Summary:  ev.Summary,
			Category: categoryFor(ev.Info),
		})
	case pk.TxInstall:
		c.statusMessage = fmt.Sprintf("Updating %s", pk.PackageName(ev.PackageID))
		c.publish()
	}
}

func (c *Coordinator) onProgress(h *txHandle, ev pk.ProgressEvent) {
	pct := ev.Percentage
	switch h.kind {
	case pk.TxRefreshCache:
		if c.twoStage {
			pct = stageSpan(pct, 0, 50)
		}
	case pk.TxGetUpdates:
		if c.twoStage {
			pct = stageSpan(pct, 50, 100)
		}
	case pk.TxInstall:
		// raw
	default:
		return // detail/eula progress is not user visible
	}
	c.progress.Set(pct)
	c.publish()
}

func (c *Coordinator) onStatus(h *txHandle, ev pk.StatusEvent) {
	switch h.kind {
	case pk.TxRefreshCache, pk.TxGetUpdates, pk.TxInstall:
		c.statusMessage = statusText(ev.Status)
		c.publish()
	}
}

func (c *Coordinator) onFinished(h *txHandle, fin pk.FinishedEvent) {
	log.Debug("transaction finished", "txKind", h.kind.String(), "exit", fin.Exit.String(),
		logging.KeyDurationMs, fin.Runtime.Milliseconds())

	switch h.kind {
	case pk.TxRefreshCache:
		if fin.Exit != pk.ExitSuccess {
			c.finishCheckFailure(h.lastErr)
			return
		}
		if c.stamps != nil {
			c.stamps.RecordRefresh(c.now())
		}
		c.startEnumerate()

	case pk.TxGetUpdates:
		if fin.Exit != pk.ExitSuccess {
			c.finishCheckFailure(h.lastErr)
			return
		}
		c.committed = c.catalog.Commit()
		c.outcome = CheckSucceeded
		c.lastCheckTime = c.now()
		c.twoStage = false
		c.progress.Reset()
		c.statusMessage = ""
		c.activity = Idle
		c.publish()
		c.listener.CheckDone()
		c.runQueuedCheck()

	case pk.TxInstall:
		c.onInstallFinished(h, fin)

	case pk.TxAcceptEula:
		c.onEulaFinished(h, fin)

	case pk.TxGetDetails:
		// detail content was already delivered via UpdateDetailEvent
	}
}

func (c *Coordinator) onInstallFinished(h *txHandle, fin pk.FinishedEvent) {
	if c.eulas.Len() > 0 {
		// Suspended on license agreements: the install handle is closed
		// but the attempt stays logically in flight until the queue
		// drains and the request is resubmitted.
		log.Info("install suspended pending license agreements", "pending", c.eulas.Len())
		c.statusMessage = pk.ErrorEulaRequired.HumanMessage()
		c.publish()
		return
	}

	if fin.Exit != pk.ExitSuccess {
		kind, details := errorClass(h.lastErr)
		c.pendingInstall = nil
		c.failAttempt(kind, details)
		return
	}

	req := c.pendingInstall
	c.pendingInstall = nil
	c.progress.Reset()
	c.statusMessage = ""
	c.activity = Idle
	c.publish()
	if req != nil && !req.Simulate {
		c.listener.UpdatesInstalled()
	}
	c.listener.CheckDone()
	if req != nil && !req.Simulate {
		// the catalog no longer reflects the system
		c.CheckUpdates(false, false)
	}
	c.runQueuedCheck()
}

func (c *Coordinator) onEulaFinished(h *txHandle, fin pk.FinishedEvent) {
	if fin.Exit != pk.ExitSuccess {
		kind, details := errorClass(h.lastErr)
		c.abandonInstallAttempt()
		c.failAttempt(kind, details)
		return
	}

	if remaining := c.eulas.PopHead(); remaining > 0 {
		// next agreement was surfaced by the negotiator
		return
	}

	if c.pendingInstall == nil {
		c.activity = Idle
		c.publish()
		c.runQueuedCheck()
		return
	}
	log.Info("license agreements resolved, resubmitting install")
	// The answer may arrive before the blocked transaction's own finish
	// event; drop it so the resubmission owns the install kind.
	c.handles.closeKind(pk.TxInstall)
	c.submitInstall()
}

// abandonInstallAttempt discards the pending request, the agreement queue,
// and any still-live install transaction so its remaining events are ignored.
// The blocked transaction's finish event can lag behind the user's answer.
func (c *Coordinator) abandonInstallAttempt() {
	c.eulas.Clear()
	c.pendingInstall = nil
	c.handles.closeKind(pk.TxInstall)
	c.handles.closeKind(pk.TxAcceptEula)
}

func (c *Coordinator) checkInFlight() bool {
	return c.handles.live(pk.TxRefreshCache) || c.handles.live(pk.TxGetUpdates)
}

// installInFlight covers the whole logical attempt, including suspension on
// license agreements, when no install transaction is live.
func (c *Coordinator) installInFlight() bool {
	return c.pendingInstall != nil ||
		c.handles.live(pk.TxInstall) ||
		c.handles.live(pk.TxAcceptEula)
}

func (c *Coordinator) startCheck(force, manual bool) {
	c.manualCheck = manual

	if !force && c.cacheFresh() {
		log.Debug("cache is fresh, skipping refresh stage")
		c.twoStage = false
		c.startEnumerate()
		return
	}

	id, err := c.daemon.RefreshCache(force)
	if err != nil {
		log.Error("cache refresh failed to start", logging.KeyError, err)
		c.finishCheckFailure(&pk.ErrorEvent{Kind: pk.ErrorUnknown, Details: err.Error()})
		return
	}
	c.mustOpen(pk.TxRefreshCache, id)
	c.twoStage = true
	c.activity = CheckingCache
	c.progress.Reset()
	c.statusMessage = "Checking for updates"
	c.publish()
}

func (c *Coordinator) startEnumerate() {
	id, err := c.daemon.GetUpdates()
	if err != nil {
		log.Error("update enumeration failed to start", logging.KeyError, err)
		c.finishCheckFailure(&pk.ErrorEvent{Kind: pk.ErrorUnknown, Details: err.Error()})
		return
	}
	c.mustOpen(pk.TxGetUpdates, id)
	c.catalog.BeginPass()
	c.activity = EnumeratingUpdates
	c.statusMessage = "Getting list of updates"
	c.publish()
}

func (c *Coordinator) submitInstall() {
	req := c.pendingInstall
	id, err := c.daemon.UpdateSystem(req.PackageIDs, req.Simulate, req.AllowUntrusted)
	if err != nil {
		log.Error("install failed to start", logging.KeyError, err)
		c.pendingInstall = nil
		c.failAttempt(pk.ErrorUnknown, err.Error())
		return
	}
	c.mustOpen(pk.TxInstall, id)
	c.activity = InstallingUpdates
	c.progress.SetIndeterminate()
	c.statusMessage = "Installing updates"
	c.publish()
}

// finishCheckFailure terminates the current check attempt. Connectivity
// failures of automatic checks schedule a deferred retry instead of being
// surfaced as hard failures.
func (c *Coordinator) finishCheckFailure(errEv *pk.ErrorEvent) {
	kind, details := errorClass(errEv)

	if kind == pk.ErrorNetworkUnavailable && !c.manualCheck {
		c.deferredCheck = &checkRequest{force: true}
		log.Info("automatic check hit a network error, deferring retry")
	}

	c.outcome = CheckFailed
	c.twoStage = false
	c.failAttempt(kind, details)
}

// failAttempt records a terminal failure: status text, idle activity, the
// single done notification for the attempt, and any check coalesced while
// the attempt was in flight.
func (c *Coordinator) failAttempt(kind pk.ErrorKind, details string) {
	msg := kind.HumanMessage()
	if kind == pk.ErrorUnknown && details != "" {
		msg = details
	}
	c.statusMessage = msg
	c.progress.Reset()
	c.activity = Idle
	c.publish()
	c.listener.CheckDone()
	c.runQueuedCheck()
}

func (c *Coordinator) runQueuedCheck() {
	if c.queuedCheck == nil {
		return
	}
	req := *c.queuedCheck
	c.queuedCheck = nil
	c.CheckUpdates(req.force, req.manual)
}

func (c *Coordinator) cacheFresh() bool {
	if c.stamps == nil || c.cacheMaxAge <= 0 {
		return false
	}
	last := c.stamps.LastRefresh()
	return !last.IsZero() && c.now().Sub(last) < c.cacheMaxAge
}

// mustOpen registers a handle whose kind was verified free by the caller.
func (c *Coordinator) mustOpen(kind pk.TxKind, id pk.TxID) *txHandle {
	h, err := c.handles.open(kind, id)
	if err != nil {
		panic(err)
	}
	return h
}

func (c *Coordinator) publish() {
	c.listener.AggregateChanged(c.Snapshot())
}

func errorClass(errEv *pk.ErrorEvent) (pk.ErrorKind, string) {
	if errEv == nil {
		return pk.ErrorUnknown, ""
	}
	return errEv.Kind, errEv.Details
}

// statusText maps daemon phase names onto the human status line.
func statusText(status string) string {
	switch status {
	case "wait", "setup", "running":
		return "Waiting for the package manager"
	case "query", "info", "loading-cache":
		return "Reading software lists"
	case "refresh-cache":
		return "Refreshing software list"
	case "download":
		return "Downloading packages"
	case "dep-resolve":
		return "Resolving dependencies"
	case "install":
		return "Installing packages"
	case "update":
		return "Updating packages"
	case "remove", "cleanup":
		return "Cleaning up"
	default:
		return "Working"
	}
}
