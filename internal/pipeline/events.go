package pipeline

import (
	"time"

	"github.com/sells-group/prospect-cli/internal/model"
)

// EventKind labels a step lifecycle transition.
type EventKind string

const (
	EventStepStarted   EventKind = "step_started"
	EventStepCompleted EventKind = "step_completed"
	EventStepFailed    EventKind = "step_failed"
	EventStepSkipped   EventKind = "step_skipped"
	EventStepRetrying  EventKind = "step_retrying"
	EventResumed       EventKind = "step_resumed"
)

// Event is one observable step transition during a run.
type Event struct {
	Kind      EventKind        `json:"kind"`
	SubjectID string           `json:"subject_id"`
	Step      string           `json:"step"`
	Status    model.StepStatus `json:"status,omitempty"`
	Detail    string           `json:"detail,omitempty"`
	At        time.Time        `json:"at"`
}

// EventSink receives step events. Implementations must not block: the
// executor calls OnEvent inline on the step goroutine.
type EventSink interface {
	OnEvent(Event)
}

type nopSink struct{}

func (nopSink) OnEvent(Event) {}

// ChannelSink buffers events onto a channel, dropping when the buffer is
// full so a slow consumer never stalls the pipeline.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, buffer)}
}

func (s *ChannelSink) OnEvent(e Event) {
	select {
	case s.C <- e:
	default:
	}
}
