package window

import (
	"testing"
	"time"
)

func TestSplitExactMultiple(t *testing.T) {
	data := make([]byte, 2800) // 2 * MaxPayload(1400)
	chunks := Split(data, 1400)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Fin || !chunks[1].Fin {
		t.Error("only the last chunk should carry Fin")
	}
	if chunks[0].Seq != 0 || chunks[1].Seq != 1 {
		t.Errorf("seq numbers wrong: %d, %d", chunks[0].Seq, chunks[1].Seq)
	}
}

func TestSplitEmptyFileYieldsOneFinChunk(t *testing.T) {
	chunks := Split(nil, 1400)
	if len(chunks) != 1 || !chunks[0].Fin || len(chunks[0].Payload) != 0 {
		t.Fatalf("expected a single empty Fin chunk, got %+v", chunks)
	}
}

func TestReadyToSendRespectsWindow(t *testing.T) {
	chunks := Split(make([]byte, 1400*5), 1400)
	s := NewSender(chunks, 2, 500*time.Millisecond)

	now := time.Now()
	ready := s.ReadyToSend(now)
	if len(ready) != 2 {
		t.Fatalf("got %d ready chunks, want 2 (window size)", len(ready))
	}
	if more := s.ReadyToSend(now); len(more) != 0 {
		t.Fatalf("expected no more ready chunks until the window slides, got %d", len(more))
	}
}

func TestAckSlidesWindow(t *testing.T) {
	chunks := Split(make([]byte, 1400*5), 1400)
	s := NewSender(chunks, 2, 500*time.Millisecond)
	now := time.Now()
	s.ReadyToSend(now)

	s.Ack(1) // cumulative ack of 1 means seq 0 is acked
	if s.Done() {
		t.Fatal("should not be done yet")
	}
	more := s.ReadyToSend(now)
	if len(more) != 1 || more[0].Seq != 2 {
		t.Fatalf("expected seq 2 to become ready after the window slid, got %+v", more)
	}
}

func TestExpiredRetransmitsAndIncrementsRetries(t *testing.T) {
	chunks := Split(make([]byte, 1400), 1400)
	s := NewSender(chunks, 1, 10*time.Millisecond)
	now := time.Now()
	s.ReadyToSend(now)

	later := now.Add(20 * time.Millisecond)
	expired, exhausted := s.Expired(later)
	if exhausted {
		t.Fatal("should not be exhausted after a single retransmit")
	}
	if len(expired) != 1 || expired[0].Seq != 0 {
		t.Fatalf("expected seq 0 to be retransmitted, got %+v", expired)
	}
	if got := s.RetransmitCount(0); got != 1 {
		t.Errorf("RetransmitCount(0) = %d, want 1", got)
	}
}

func TestExpiredReportsExhaustionAfterMaxRetries(t *testing.T) {
	chunks := Split(make([]byte, 1400), 1400)
	s := NewSender(chunks, 1, time.Millisecond)
	now := time.Now()
	s.ReadyToSend(now)

	for i := 0; i < 10; i++ {
		now = now.Add(2 * time.Millisecond)
		_, exhausted := s.Expired(now)
		if exhausted {
			t.Fatalf("exhausted too early, at retry %d", i)
		}
	}
	now = now.Add(2 * time.Millisecond)
	_, exhausted := s.Expired(now)
	if !exhausted {
		t.Fatal("expected exhaustion after MaxRetries retransmits")
	}
}

func TestAckDoesNotRearmExpiredEntry(t *testing.T) {
	chunks := Split(make([]byte, 1400*2), 1400)
	s := NewSender(chunks, 2, 5*time.Millisecond)
	now := time.Now()
	s.ReadyToSend(now)

	s.Ack(2) // both chunks acked before their deadlines are checked
	if !s.Done() {
		t.Fatal("expected Done() once every chunk is acked")
	}
	expired, exhausted := s.Expired(now.Add(time.Second))
	if len(expired) != 0 || exhausted {
		t.Fatalf("acked chunks must not resurface as expired, got %+v exhausted=%v", expired, exhausted)
	}
}
