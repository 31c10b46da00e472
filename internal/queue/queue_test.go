package queue

import (
	"testing"
	"time"
)

func TestWorkerTimeoutRedelivery(t *testing.T) {
	var q TranscribeQueue
	t0 := time.Unix(0, 0)
	q.Enqueue(&TranscribePacket{SessionID: "s", PacketID: 0})

	p := q.NextDue(t0)
	if p == nil {
		t.Fatal("want packet due at T=0")
	}

	if got := q.NextDue(t0.Add(5 * time.Second)); got != nil {
		t.Fatalf("want nothing due at T=5, got %+v", got)
	}

	p2 := q.NextDue(t0.Add(16 * time.Second))
	if p2 == nil || p2.SessionID != "s" {
		t.Fatal("want the same packet due again at T=16")
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	var q TranscribeQueue
	q.Enqueue(&TranscribePacket{SessionID: "s", PacketID: 0})
	q.NextDue(time.Unix(0, 0))

	p, ok := q.Accept("s", 0)
	if !ok || p == nil {
		t.Fatal("first accept should succeed")
	}
	if q.Len() != 0 {
		t.Fatalf("accepted packet must leave the queue, len=%d", q.Len())
	}

	_, ok = q.Accept("s", 0)
	if ok {
		t.Fatal("second accept of the same packet must be a no-op")
	}
}

func TestAcceptUnknownPacketIsNoop(t *testing.T) {
	var q TranscribeQueue
	if _, ok := q.Accept("nope", 99); ok {
		t.Fatal("accept of unknown packet must report false")
	}
}

func TestPurgeSessionRemovesOnlyThatSessionsPackets(t *testing.T) {
	var q TranscribeQueue
	q.Enqueue(&TranscribePacket{SessionID: "a", PacketID: 0})
	q.Enqueue(&TranscribePacket{SessionID: "b", PacketID: 0})
	q.Enqueue(&TranscribePacket{SessionID: "a", PacketID: 1})

	q.PurgeSession("a")

	if q.Len() != 1 {
		t.Fatalf("want 1 packet remaining, got %d", q.Len())
	}
	p := q.NextDue(time.Unix(0, 0))
	if p == nil || p.SessionID != "b" {
		t.Fatalf("want session b's packet to survive, got %+v", p)
	}
}

func TestTranslateQueueSameSemantics(t *testing.T) {
	var q TranslateQueue
	q.Enqueue(&TranslatePacket{SessionID: "s", PacketID: 0})

	p := q.NextDue(time.Unix(0, 0))
	if p == nil {
		t.Fatal("want packet due")
	}
	if _, ok := q.Accept("s", 0); !ok {
		t.Fatal("accept should succeed")
	}
	if _, ok := q.Accept("s", 0); ok {
		t.Fatal("second accept must be a no-op")
	}
}
