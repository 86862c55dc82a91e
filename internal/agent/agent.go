// Package agent wires the update coordinator to the daemon, the host
// sensors, the scheduler and the status feed, and owns the single event
// processing goroutine everything runs on.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/updatewatch/agent/internal/config"
	"github.com/updatewatch/agent/internal/logging"
	"github.com/updatewatch/agent/internal/pk"
	"github.com/updatewatch/agent/internal/sensors"
	"github.com/updatewatch/agent/internal/statestore"
	"github.com/updatewatch/agent/internal/statusfeed"
	"github.com/updatewatch/agent/internal/updates"
)

var log = logging.L("agent")

// EventedDaemon is a daemon whose notifications arrive on a channel.
type EventedDaemon interface {
	pk.Daemon
	Events() <-chan pk.Event
}

// Agent drives the coordinator from a single goroutine. All daemon events,
// sensor changes, scheduled ticks and caller commands funnel into Run's
// select loop, so the coordinator never needs locks.
type Agent struct {
	cfg     *config.Config
	daemon  EventedDaemon
	monitor sensors.Monitor
	store   *statestore.Store
	feed    *statusfeed.Feed

	coord    *updates.Coordinator
	commands chan func()
}

func New(cfg *config.Config, daemon EventedDaemon, monitor sensors.Monitor, store *statestore.Store, feed *statusfeed.Feed) *Agent {
	a := &Agent{
		cfg:      cfg,
		daemon:   daemon,
		monitor:  monitor,
		store:    store,
		feed:     feed,
		commands: make(chan func(), 32),
	}

	var stamps updates.RefreshStamps
	if store != nil {
		stamps = store
	}
	a.coord = updates.NewCoordinator(daemon, &listenerBridge{agent: a}, stamps, updates.Options{
		CacheMaxAge: time.Duration(cfg.CacheMaxAgeMinutes) * time.Minute,
	})

	return a
}

// Run processes events until ctx is done. It issues an initial update check
// on startup and schedules periodic checks per config.
func (a *Agent) Run(ctx context.Context) error {
	stateCh, err := a.monitor.Watch(ctx)
	if err != nil {
		log.Warn("sensor watch unavailable", logging.KeyError, err)
		stateCh = nil
	}

	if a.cfg.CheckIntervalMinutes > 0 {
		scheduler := cron.New()
		spec := fmt.Sprintf("@every %dm", a.cfg.CheckIntervalMinutes)
		if _, err := scheduler.AddFunc(spec, func() { a.CheckUpdates(false, false) }); err != nil {
			return fmt.Errorf("schedule checks: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info("scheduled background checks", "intervalMinutes", a.cfg.CheckIntervalMinutes)
	}

	a.CheckUpdates(false, false)

	events := a.daemon.Events()
	online := true
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return errors.New("daemon event stream closed")
			}
			a.coord.HandleEvent(ev)

		case st, ok := <-stateCh:
			if !ok {
				stateCh = nil
				continue
			}
			a.coord.SetNetworkState(st.Online, st.Mobile)
			a.coord.SetOnBattery(st.OnBattery)
			if st.Online && !online {
				a.coord.DoDelayedCheckUpdates()
			}
			online = st.Online

		case cmd := <-a.commands:
			cmd()
		}
	}
}

// enqueue posts a command into the event loop. Commands are dropped when the
// queue is saturated rather than blocking HTTP handlers.
func (a *Agent) enqueue(fn func()) {
	select {
	case a.commands <- fn:
	default:
		log.Warn("command queue full, dropping request")
	}
}

// CheckUpdates requests an update check.
func (a *Agent) CheckUpdates(force, manual bool) {
	a.enqueue(func() { a.coord.CheckUpdates(force, manual) })
}

// InstallUpdates requests installation of the given package updates.
func (a *Agent) InstallUpdates(packageIDs []string, simulate, allowUntrusted bool) {
	ids := make([]string, len(packageIDs))
	copy(ids, packageIDs)
	a.enqueue(func() { a.coord.InstallUpdates(ids, simulate, allowUntrusted) })
}

// EulaAgreementResult answers the currently surfaced license agreement.
func (a *Agent) EulaAgreementResult(eulaID string, agreed bool) {
	a.enqueue(func() { a.coord.EulaAgreementResult(eulaID, agreed) })
}

// GetUpdateDetails requests the changelog for one package.
func (a *Agent) GetUpdateDetails(packageID string) {
	a.enqueue(func() { a.coord.GetUpdateDetails(packageID) })
}

// listenerBridge forwards coordinator notifications to the feed and the
// state store. Invoked on the event loop goroutine.
type listenerBridge struct {
	agent *Agent
}

func (b *listenerBridge) AggregateChanged(snap updates.Snapshot) {
	b.agent.feed.Publish(snap)
}

func (b *listenerBridge) CheckDone() {
	a := b.agent
	outcome := a.coord.LastCheckOutcome()
	log.Info("check finished", "outcome", outcome.String())
	if a.store != nil {
		a.store.RecordCheck(time.Now(), outcome.String())
	}
	a.feed.PublishEvent(statusfeed.TypeCheckFinished)
}

func (b *listenerBridge) UpdatesInstalled() {
	log.Info("updates installed")
	b.agent.feed.PublishEvent(statusfeed.TypeUpdatesInstalled)
}

func (b *listenerBridge) UpdateDetail(d updates.Detail) {
	b.agent.feed.PublishDetail(d)
}

func (b *listenerBridge) EulaRequired(req updates.EulaRequest) {
	log.Warn("install blocked on license agreement",
		"eulaId", req.EulaID, logging.KeyPackageID, req.PackageID, "vendor", req.Vendor)
	b.agent.feed.PublishEula(req)
}

func (b *listenerBridge) RepoSignatureRequired(p updates.RepoSignaturePrompt) {
	log.Warn("install blocked on repository signature",
		"repo", p.RepoName, "keyId", p.KeyID)
	b.agent.feed.PublishRepoSignature(p)
}
