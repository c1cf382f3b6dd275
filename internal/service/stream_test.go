package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"finboard-backend/internal/model"
)

// recordingSink implements MessageSink with the store's lifecycle rules:
// chunks only apply while streaming, finalized state is sticky.
type recordingSink struct {
	mu      sync.Mutex
	content strings.Builder
	model   string
	status  model.MessageStatus
	reason  string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{status: model.StatusStreaming}
}

func (r *recordingSink) AppendChunk(_, _, chunk string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != model.StatusStreaming {
		return nil
	}
	r.content.WriteString(chunk)
	return nil
}

func (r *recordingSink) SetModel(_, _, m string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusStreaming {
		r.model = m
	}
	return nil
}

func (r *recordingSink) Complete(_, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusStreaming {
		r.status = model.StatusComplete
	}
	return nil
}

func (r *recordingSink) Fail(_, _, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusStreaming {
		r.status = model.StatusError
		r.reason = reason
	}
	return nil
}

func (r *recordingSink) snapshot() (string, string, model.MessageStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.content.String(), r.model, r.status
}

func runDecoder(t *testing.T, stream string) *recordingSink {
	t.Helper()
	sink := newRecordingSink()
	decoder := NewStreamDecoder(sink, "conv", "msg")
	if err := decoder.Run(context.Background(), strings.NewReader(stream)); err != nil {
		t.Fatalf("decoder returned error: %v", err)
	}
	return sink
}

func TestDecoderWellFormedStream(t *testing.T) {
	stream := "data: {\"type\":\"metadata\",\"model\":\"fin-1\",\"modelName\":\"Fin 1\"}\n" +
		"data: {\"type\":\"content\",\"content\":\"Hello\"}\n" +
		"data: {\"type\":\"content\",\"content\":\", \"}\n" +
		"data: {\"type\":\"content\",\"content\":\"world\"}\n" +
		"data: [DONE]\n"

	sink := runDecoder(t, stream)

	content, modelName, status := sink.snapshot()
	if status != model.StatusComplete {
		t.Errorf("expected complete, got %s", status)
	}
	if content != "Hello, world" {
		t.Errorf("expected concatenated content, got %q", content)
	}
	if modelName != "fin-1" {
		t.Errorf("expected model fin-1, got %q", modelName)
	}
}

func TestDecoderSkipsMalformedLines(t *testing.T) {
	stream := "data: {\"type\":\"content\",\"content\":\"A\"}\n" +
		"data: {not json at all\n" +
		": sse comment line\n" +
		"data: {\"type\":\"mystery\",\"content\":\"ignored\"}\n" +
		"data: {\"type\":\"content\",\"content\":\"B\"}\n" +
		"garbage without marker\n" +
		"data: {\"type\":\"content\",\"content\":\"C\"}\n" +
		"data: [DONE]\n"

	sink := runDecoder(t, stream)

	content, _, status := sink.snapshot()
	if status != model.StatusComplete {
		t.Errorf("expected complete, got %s", status)
	}
	if content != "ABC" {
		t.Errorf("expected valid events applied in order, got %q", content)
	}
}

func TestDecoderErrorEvent(t *testing.T) {
	stream := "data: {\"type\":\"content\",\"content\":\"partial\"}\n" +
		"data: {\"error\":\"model overloaded\"}\n"

	sink := runDecoder(t, stream)

	_, _, status := sink.snapshot()
	if status != model.StatusError {
		t.Errorf("expected error, got %s", status)
	}
}

func TestDecoderEOFWithoutSentinel(t *testing.T) {
	stream := "data: {\"type\":\"content\",\"content\":\"cut off\"}\n"

	sink := runDecoder(t, stream)

	content, _, status := sink.snapshot()
	if status != model.StatusComplete {
		t.Errorf("expected complete on clean EOF, got %s", status)
	}
	if content != "cut off" {
		t.Errorf("expected streamed content kept, got %q", content)
	}
}

func TestDecoderSplitLineBuffering(t *testing.T) {
	// Frames are delivered in fragments that split lines across reads;
	// the decoder must only parse complete lines.
	pr, pw := io.Pipe()
	sink := newRecordingSink()
	decoder := NewStreamDecoder(sink, "conv", "msg")

	done := make(chan error, 1)
	go func() {
		done <- decoder.Run(context.Background(), pr)
	}()

	fragments := []string{
		"data: {\"type\":\"cont",
		"ent\",\"content\":\"Hel",
		"lo\"}\ndata: {\"type\":\"content\",\"content\":\"!\"}\n",
		"data: [DO",
		"NE]\n",
	}
	for _, frag := range fragments {
		if _, err := pw.Write([]byte(frag)); err != nil {
			t.Fatalf("pipe write failed: %v", err)
		}
	}
	pw.Close()

	if err := <-done; err != nil {
		t.Fatalf("decoder returned error: %v", err)
	}

	content, _, status := sink.snapshot()
	if status != model.StatusComplete {
		t.Errorf("expected complete, got %s", status)
	}
	if content != "Hello!" {
		t.Errorf("expected reassembled content, got %q", content)
	}
}

func TestDecoderCancellationYieldsComplete(t *testing.T) {
	pr, pw := io.Pipe()
	sink := newRecordingSink()
	decoder := NewStreamDecoder(sink, "conv", "msg")

	applied := make(chan struct{}, 16)
	decoder.OnEvent(func(model.StreamEvent) {
		applied <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- decoder.Run(ctx, pr)
	}()

	pw.Write([]byte("data: {\"type\":\"content\",\"content\":\"before\"}\n"))
	<-applied

	cancel()

	// A late chunk arriving after cancellation unblocks the read loop;
	// it must not mutate content.
	pw.Write([]byte("data: {\"type\":\"content\",\"content\":\"after\"}\n"))
	pw.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("decoder returned error on cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("decoder did not stop after cancellation")
	}

	content, _, status := sink.snapshot()
	if status != model.StatusComplete {
		t.Errorf("cancellation must finalize as complete, got %s", status)
	}
	if content != "before" {
		t.Errorf("late chunk mutated content: %q", content)
	}

	// Stale chunks against a finalized sink stay no-ops.
	sink.AppendChunk("conv", "msg", "stale")
	content, _, _ = sink.snapshot()
	if content != "before" {
		t.Errorf("stale chunk after finalization mutated content: %q", content)
	}
}
