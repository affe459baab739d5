package session

// EventKind tags an encoder lifecycle notification.
type EventKind string

const (
	EventStarted       EventKind = "started"
	EventPaused        EventKind = "paused"
	EventResumed       EventKind = "resumed"
	EventDataAvailable EventKind = "data_available"
	EventStopped       EventKind = "stopped"
)

// Event is emitted by an Encoder. Data is set for EventDataAvailable; Err may
// be set on EventStopped when the engine ended abnormally.
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// DataEvent builds an EventDataAvailable carrying fragment.
func DataEvent(fragment []byte) Event {
	return Event{Kind: EventDataAvailable, Data: fragment}
}
