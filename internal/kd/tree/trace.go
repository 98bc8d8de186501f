package tree

import (
	"context"
	"log/slog"
)

// EventKind classifies a search decision.
type EventKind int

const (
	// EventSelfExcluded marks a node skipped because it is the query's own point.
	EventSelfExcluded EventKind = iota
	// EventRejected marks a node outside the bounding box.
	EventRejected
	// EventAdmitted marks a node inside the bounding box.
	EventAdmitted
	// EventPrunedLeft marks a skipped left subtree.
	EventPrunedLeft
	// EventPrunedRight marks a skipped right subtree.
	EventPrunedRight
	// EventOutOfRange marks a candidate dropped for exceeding the max distance.
	EventOutOfRange
	// EventSelected marks the best candidate of a subtree.
	EventSelected
)

func (k EventKind) String() string {
	switch k {
	case EventSelfExcluded:
		return "self_excluded"
	case EventRejected:
		return "rejected"
	case EventAdmitted:
		return "admitted"
	case EventPrunedLeft:
		return "pruned_left"
	case EventPrunedRight:
		return "pruned_right"
	case EventOutOfRange:
		return "out_of_range"
	case EventSelected:
		return "selected"
	default:
		return "unknown"
	}
}

// Event is one entry of the search decision log.
type Event struct {
	Kind     EventKind
	Depth    int
	Axis     string
	ID       string
	Distance float64
	axis     int
}

// Tracer receives search events. Events are delivered in evaluation order
// once the search has finished.
type Tracer interface {
	Trace(e Event)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(e Event)

// Trace implements Tracer.
func (f TracerFunc) Trace(e Event) { f(e) }

type slogTracer struct {
	logger *slog.Logger
}

// NewSlogTracer returns a Tracer logging each event at debug level.
func NewSlogTracer(logger *slog.Logger) Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogTracer{logger: logger}
}

func (t *slogTracer) Trace(e Event) {
	t.logger.LogAttrs(context.Background(), slog.LevelDebug, "kd search",
		slog.String("event", e.Kind.String()),
		slog.Int("depth", e.Depth),
		slog.String("axis", e.Axis),
		slog.String("id", e.ID),
		slog.Float64("distance", e.Distance),
	)
}
