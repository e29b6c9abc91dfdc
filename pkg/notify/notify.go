package notify

import (
	"context"

	"pixivwatch/pkg/logger"
	"pixivwatch/pkg/pixiv"
)

// Event carries one change notification
type Event struct {
	// Distance is the count of works newer than the marker
	Distance int `json:"distance"`
	// MarkerID is the most recent bookmarked work
	MarkerID pixiv.IllustID `json:"marker_id"`
	// Since is the formatted local creation time of the marker
	Since string `json:"since"`
	// SinceAgo is the human-relative form of Since
	SinceAgo string `json:"since_ago"`
	// Remain signals the marker search was truncated by the page budget
	Remain bool `json:"remain"`
	// Skip signals the traversal stopped early via the skip heuristic
	Skip bool `json:"skip"`
}

// Sink delivers a change event to one destination
type Sink interface {
	Name() string
	Notify(ctx context.Context, event Event) error
}

// Dispatcher fans a change event out to the configured sinks. Sinks are
// invoked sequentially and are best-effort: a sink failure is logged and
// affects neither the other sinks nor the tick. No retry within a tick.
type Dispatcher struct {
	sinks  []Sink
	logger logger.Logger
}

// NewDispatcher creates a dispatcher over the given sinks
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:  sinks,
		logger: logger.GetLogger(),
	}
}

// Sinks returns the registered sink count
func (d *Dispatcher) Sinks() int {
	return len(d.sinks)
}

// Dispatch delivers the event to every sink
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	for _, sink := range d.sinks {
		if err := sink.Notify(ctx, event); err != nil {
			d.logger.ErrorWithFields("notification sink failed", map[string]interface{}{
				"sink":  sink.Name(),
				"error": err.Error(),
			})
		}
	}
}
