package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeInbox struct {
	seen      map[string]bool
	forgotten []string
}

func (f *fakeInbox) Record(_ context.Context, id, _ string) (bool, error) {
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

func (f *fakeInbox) Forget(_ context.Context, id string) error {
	delete(f.seen, id)
	f.forgotten = append(f.forgotten, id)
	return nil
}

func msg(id string, offset int64) kafka.Message {
	return kafka.Message{
		Topic:   "scheduling.appointment.created.v1",
		Offset:  offset,
		Headers: []kafka.Header{{Key: "event_id", Value: []byte(id)}},
	}
}

func TestRunDeduplicatesAndCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{msgs: []kafka.Message{msg("e-1", 1), msg("e-1", 2), msg("e-2", 3), msg("e-3", 4)}, cancel: cancel}
	inbox := &fakeInbox{seen: map[string]bool{}}
	var handled []string
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), inbox, reader, func(_ context.Context, m kafka.Message) error {
		id := string(m.Headers[0].Value)
		handled = append(handled, id)
		if id == "e-3" {
			return errors.New("smtp down")
		}
		return nil
	})
	c.Run(ctx)

	if len(handled) != 3 || handled[0] != "e-1" || handled[1] != "e-2" || handled[2] != "e-3" {
		t.Fatalf("unexpected handled events %v", handled)
	}
	if len(reader.committed) != 4 {
		t.Fatalf("expected every offset committed, got %v", reader.committed)
	}
	if len(inbox.forgotten) != 1 || inbox.forgotten[0] != "e-3" {
		t.Fatalf("expected the failed event forgotten, got %v", inbox.forgotten)
	}
	if !reader.closed {
		t.Fatal("expected reader closed")
	}
}

func TestFailedEventHandledOnlyWhenRepublished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// e-1 fails once; the same ID arrives again at offset 3 as a re-publish.
	reader := &fakeReader{msgs: []kafka.Message{msg("e-1", 1), msg("e-2", 2), msg("e-1", 3)}, cancel: cancel}
	inbox := &fakeInbox{seen: map[string]bool{}}
	attempts := map[string]int{}
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), inbox, reader, func(_ context.Context, m kafka.Message) error {
		id := string(m.Headers[0].Value)
		attempts[id]++
		if id == "e-1" && attempts[id] == 1 {
			return errors.New("smtp down")
		}
		return nil
	})
	c.Run(ctx)

	if len(reader.committed) != 3 || reader.committed[0] != 1 {
		t.Fatalf("failed offset must be committed, got %v", reader.committed)
	}
	if attempts["e-1"] != 2 || attempts["e-2"] != 1 {
		t.Fatalf("unexpected attempts %v", attempts)
	}
	if !inbox.seen["e-1"] {
		t.Fatal("expected re-published event recorded after success")
	}
}
