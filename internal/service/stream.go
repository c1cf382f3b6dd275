package service

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"finboard-backend/internal/model"
	"finboard-backend/pkg/logger"
)

const (
	// streamMarker prefixes every significant line of the assistant
	// backend stream. Lines without it are ignored.
	streamMarker = "data: "

	// streamDone is the sentinel payload terminating a stream.
	streamDone = "[DONE]"

	// maxLineSize bounds a single stream line.
	maxLineSize = 1024 * 1024
)

// MessageSink receives decoded events as conversation store mutations.
// ConversationStore is the production implementation.
type MessageSink interface {
	AppendChunk(conversationID, messageID, chunk string) error
	SetModel(conversationID, messageID, model string) error
	Complete(conversationID, messageID string) error
	Fail(conversationID, messageID, reason string) error
}

// StreamDecoder consumes an incrementally delivered response body, decodes
// it into events and drives the sink. Every path out of Run leaves the
// message finalized: complete on the done sentinel, cancellation or clean
// EOF; error on an error event or transport failure.
type StreamDecoder struct {
	sink           MessageSink
	conversationID string
	messageID      string

	// onEvent, when set, observes each decoded event after it has been
	// applied. The HTTP layer uses it to relay progress to the dashboard.
	onEvent func(model.StreamEvent)
}

func NewStreamDecoder(sink MessageSink, conversationID, messageID string) *StreamDecoder {
	return &StreamDecoder{
		sink:           sink,
		conversationID: conversationID,
		messageID:      messageID,
	}
}

// OnEvent registers an observer for decoded events. Must be set before Run.
func (d *StreamDecoder) OnEvent(fn func(model.StreamEvent)) {
	d.onEvent = fn
}

// Run decodes r until the stream terminates or ctx is cancelled.
// Cancellation is observed at the next line boundary and finalizes the
// message as complete — cancellation is not an error. Malformed lines are
// skipped; a single bad frame never poisons the stream.
func (d *StreamDecoder) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return d.sink.Complete(d.conversationID, d.messageID)
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, streamMarker) {
			continue
		}

		payload := strings.TrimSpace(line[len(streamMarker):])
		if payload == streamDone {
			if err := d.sink.Complete(d.conversationID, d.messageID); err != nil {
				return err
			}
			d.emit(model.StreamEvent{Type: "done"})
			return nil
		}

		var event model.StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			logger.Debugf("decoder: skipping malformed frame: %v", err)
			continue
		}

		switch event.Kind() {
		case model.EventContent:
			if err := d.sink.AppendChunk(d.conversationID, d.messageID, event.Content); err != nil {
				return err
			}
		case model.EventMetadata:
			if err := d.sink.SetModel(d.conversationID, d.messageID, event.Model); err != nil {
				return err
			}
		case model.EventError:
			if err := d.sink.Fail(d.conversationID, d.messageID, event.Error); err != nil {
				return err
			}
			d.emit(event)
			return nil
		default:
			// Unknown tag: drop the frame, keep the stream usable.
			continue
		}

		d.emit(event)
	}

	if err := scanner.Err(); err != nil {
		// A cancelled request surfaces as a read error on the closed
		// body; that is still a cancellation, not a failure.
		if ctx.Err() != nil {
			return d.sink.Complete(d.conversationID, d.messageID)
		}
		if ferr := d.sink.Fail(d.conversationID, d.messageID, err.Error()); ferr != nil {
			return ferr
		}
		return err
	}

	// EOF without the sentinel: the upstream closed cleanly mid-answer.
	// Keep what was streamed and finalize as complete.
	return d.sink.Complete(d.conversationID, d.messageID)
}

func (d *StreamDecoder) emit(event model.StreamEvent) {
	if d.onEvent != nil {
		d.onEvent(event)
	}
}
