package model

// EventKind classifies a decoded stream event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventMetadata
	EventContent
	EventError
)

// StreamEvent is one decoded frame of the assistant backend stream. Error
// events carry no type discriminator on the wire; the presence of the error
// key is itself the discriminator. Events are ephemeral and only ever folded
// into a ChatMessage.
type StreamEvent struct {
	Type      string `json:"type,omitempty"`
	Model     string `json:"model,omitempty"`
	ModelName string `json:"modelName,omitempty"`
	Cached    bool   `json:"cached,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Kind resolves the tagged variant. Unknown tags decode to EventUnknown so
// the caller can drop the frame instead of failing the stream.
func (e StreamEvent) Kind() EventKind {
	if e.Error != "" {
		return EventError
	}
	switch e.Type {
	case "metadata":
		return EventMetadata
	case "content":
		return EventContent
	default:
		return EventUnknown
	}
}
