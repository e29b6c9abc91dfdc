package daemon

import (
	"context"

	"pixivwatch/pkg/config"
	"pixivwatch/pkg/errors"
	"pixivwatch/pkg/logger"
	"pixivwatch/pkg/notify"
	"pixivwatch/pkg/pixiv"
	"pixivwatch/pkg/state"
	"pixivwatch/pkg/wake"
	"pixivwatch/pkg/walker"
)

// AuthSession is the slice of the Pixiv session the loop needs directly
type AuthSession interface {
	EnsureAuthed(ctx context.Context) error
	State() pixiv.State
}

// WakeSource resolves the cooperative wait between ticks
type WakeSource interface {
	Wait(ctx context.Context) wake.Reason
}

// Daemon runs the refresh-then-notify cycle. It is the sole owner of the
// traversal state; nothing else mutates it.
type Daemon struct {
	cfg        *config.Config
	session    AuthSession
	walker     *walker.Walker
	dispatcher *notify.Dispatcher
	source     WakeSource
	store      *state.Store
	st         *state.State
	token      state.Token
	logger     logger.Logger
}

// New wires a daemon from its collaborators. st carries whatever Load
// recovered, or fresh defaults.
func New(cfg *config.Config, session AuthSession, w *walker.Walker, dispatcher *notify.Dispatcher, source WakeSource, store *state.Store, st *state.State) *Daemon {
	return &Daemon{
		cfg:        cfg,
		session:    session,
		walker:     w,
		dispatcher: dispatcher,
		source:     source,
		store:      store,
		st:         st,
		logger:     logger.GetLogger(),
	}
}

// Run executes ticks until a shutdown resolves the wait, then persists the
// durable record exactly once and returns. A shutdown signal during a tick
// is not preemptive: the in-flight refresh finishes first.
func (d *Daemon) Run(ctx context.Context) error {
	opts := walker.Options{
		MaxPages:     d.cfg.Watch.MaxPages,
		MinSkipPages: d.cfg.Watch.MinSkipPages,
	}

	for {
		d.tick(ctx, opts)

		switch d.source.Wait(ctx) {
		case wake.Shutdown:
			d.logger.Info("dumping state")
			return d.store.Save(&state.Dump{Auth: d.session.State(), State: *d.st})
		case wake.Wake:
			// Force the next successful refresh to dispatch unconditionally
			d.token = state.Token{}
		case wake.Tick:
		}
	}
}

// reportTickError logs a failed tick. Tick-scoped failures (network,
// parsing) are warnings since the next scheduled tick retries; anything
// else, auth above all, needs the operator.
func (d *Daemon) reportTickError(msg string, err error) {
	if errors.IsTickScoped(errors.TypeOf(err)) {
		d.logger.WithError(err).Warn(msg)
		return
	}
	d.logger.WithError(err).Error(msg)
}

// tick runs one refresh and dispatches when the comparison token moved.
// A failed refresh only costs this tick; it also resets the token so the
// first refresh after recovery notifies.
func (d *Daemon) tick(ctx context.Context, opts walker.Options) {
	if err := d.session.EnsureAuthed(ctx); err != nil {
		d.reportTickError("session refresh failed", err)
		d.token = state.Token{}
		return
	}

	if err := d.walker.Refresh(ctx, d.st, opts); err != nil {
		d.reportTickError("refresh failed", err)
		d.token = state.Token{}
		return
	}

	token := d.st.Token()
	if token == d.token {
		return
	}
	d.token = token

	event := notify.Event{
		Distance: d.st.Distance(),
		MarkerID: d.st.MarkerID,
		Since:    d.walker.FormatSince(d.st.Since),
		SinceAgo: d.walker.SinceAgo(d.st.Since),
		Remain:   d.st.Remain,
		Skip:     d.st.Skip,
	}

	d.logger.InfoWithFields("feed changed", map[string]interface{}{
		"distance":  event.Distance,
		"marker_id": uint64(event.MarkerID),
		"since":     event.Since,
		"since_ago": event.SinceAgo,
		"remain":    event.Remain,
		"skip":      event.Skip,
	})

	d.dispatcher.Dispatch(ctx, event)
}
