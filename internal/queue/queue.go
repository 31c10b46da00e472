// Package queue holds the two pull-based job queues workers poll: ASR
// transcription and translation. Both queues share the same redelivery and
// idempotence rules, just over different packet shapes.
package queue

import (
	"time"

	"github.com/ufal/transcriptionserver/internal/textstore"
)

// RedeliveryTimeout is how long a packet stays "offered" before it becomes
// due again and can be handed to a different worker.
const RedeliveryTimeout = 15 * time.Second

// TranscribePacket is one unit of ASR work: a snapshot of a session's audio
// backlog plus the prompt context, waiting for a worker to transcribe it.
type TranscribePacket struct {
	SessionID      string
	PacketID       int
	SourceLang     string
	TranscriptLang string
	Prompt         string
	Audio          []float32
	IsFile         bool

	// Redelivered is set by NextDue when this offer follows an earlier one
	// that timed out without a worker posting a result.
	Redelivered bool

	sentOutTime time.Time // zero value: never offered
	received    bool
}

func (p *TranscribePacket) due(now time.Time) bool {
	return p.sentOutTime.IsZero() || now.Sub(p.sentOutTime) > RedeliveryTimeout
}

// TranslatePacket is one unit of translation work: a stabilized source-text
// span awaiting translation into every other supported language.
type TranslatePacket struct {
	SessionID   string
	PacketID    int
	SourceLang  string
	TargetLangs []string
	SourceText  string
	Timespan    textstore.Timespan

	// Redelivered is set by NextDue when this offer follows an earlier one
	// that timed out without a worker posting a result.
	Redelivered bool

	sentOutTime time.Time
	received    bool
}

func (p *TranslatePacket) due(now time.Time) bool {
	return p.sentOutTime.IsZero() || now.Sub(p.sentOutTime) > RedeliveryTimeout
}

// TranscribeQueue is an ordered FIFO of pending transcription jobs. Not safe
// for concurrent use on its own; callers serialize access (the dispatcher's
// single lock).
type TranscribeQueue struct {
	items []*TranscribePacket
}

// Enqueue appends a new packet to the back of the queue.
func (q *TranscribeQueue) Enqueue(p *TranscribePacket) {
	q.items = append(q.items, p)
}

// NextDue scans the queue in order and returns the first due packet,
// stamping its sentOutTime so it isn't redelivered within RedeliveryTimeout
// and setting Redelivered if it had already been offered once before.
// Returns nil if nothing is due.
func (q *TranscribeQueue) NextDue(now time.Time) *TranscribePacket {
	for _, p := range q.items {
		if !p.received && p.due(now) {
			p.Redelivered = !p.sentOutTime.IsZero()
			p.sentOutTime = now
			return p
		}
	}
	return nil
}

// Accept marks the (sessionID, packetID) packet received and removes it from
// the queue. Returns the packet and true on first acceptance; returns
// (nil, false) if the packet is unknown or was already accepted — the
// caller's cue to treat the POST as a silent idempotent no-op.
func (q *TranscribeQueue) Accept(sessionID string, packetID int) (*TranscribePacket, bool) {
	for i, p := range q.items {
		if p.SessionID == sessionID && p.PacketID == packetID {
			if p.received {
				return nil, false
			}
			p.received = true
			q.items = append(q.items[:i], q.items[i+1:]...)
			return p, true
		}
	}
	return nil, false
}

// PurgeSession discards every queued packet belonging to sessionID,
// called on session end.
func (q *TranscribeQueue) PurgeSession(sessionID string) {
	kept := q.items[:0]
	for _, p := range q.items {
		if p.SessionID != sessionID {
			kept = append(kept, p)
		}
	}
	q.items = kept
}

// Len reports the current queue depth, for metrics.
func (q *TranscribeQueue) Len() int { return len(q.items) }

// TranslateQueue mirrors TranscribeQueue for translation jobs.
type TranslateQueue struct {
	items []*TranslatePacket
}

func (q *TranslateQueue) Enqueue(p *TranslatePacket) {
	q.items = append(q.items, p)
}

// NextDue mirrors TranscribeQueue.NextDue.
func (q *TranslateQueue) NextDue(now time.Time) *TranslatePacket {
	for _, p := range q.items {
		if !p.received && p.due(now) {
			p.Redelivered = !p.sentOutTime.IsZero()
			p.sentOutTime = now
			return p
		}
	}
	return nil
}

func (q *TranslateQueue) Accept(sessionID string, packetID int) (*TranslatePacket, bool) {
	for i, p := range q.items {
		if p.SessionID == sessionID && p.PacketID == packetID {
			if p.received {
				return nil, false
			}
			p.received = true
			q.items = append(q.items[:i], q.items[i+1:]...)
			return p, true
		}
	}
	return nil, false
}

func (q *TranslateQueue) PurgeSession(sessionID string) {
	kept := q.items[:0]
	for _, p := range q.items {
		if p.SessionID != sessionID {
			kept = append(kept, p)
		}
	}
	q.items = kept
}

func (q *TranslateQueue) Len() int { return len(q.items) }
