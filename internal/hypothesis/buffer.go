// Package hypothesis implements the streaming ASR hypothesis stabilizer:
// commit words exactly once, in order, without duplication at the seam
// between two overlapping re-transcriptions of a moving audio window.
package hypothesis

// Word is a single timestamped word in an ASR hypothesis.
type Word struct {
	Start float64
	End   float64
	Text  string
}

const (
	overlapNGramLimit  = 5
	dedupTimeWindowSec = 1.0
	staleDropMarginSec = 0.1
)

// Buffer stabilizes a stream of overlapping word hypotheses into a
// monotonically growing committed sequence. It is not safe for concurrent
// use; callers own their own synchronization (the owning OnlineASRProcessor
// already serializes access under the dispatcher lock).
type Buffer struct {
	committed         []Word // confirmed words, strictly monotone in End
	buffer            []Word // previous round's "new", awaiting confirmation
	new               []Word // current round's candidate tail
	lastCommittedTime float64
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// LastCommittedTime returns the End time of the most recently committed
// word, or 0 if nothing has been committed yet.
func (b *Buffer) LastCommittedTime() float64 { return b.lastCommittedTime }

// Committed returns the full committed sequence so far.
func (b *Buffer) Committed() []Word { return b.committed }

// Insert absorbs one round's fresh hypothesis. offset shifts every word's
// timing into absolute session time (the processor's bufferTimeOffset at
// packet-submit time). Words that have already scrolled behind the
// committed prefix are dropped, and if the surviving tail starts right where
// commitment left off, the largest matching n-gram (up to 5 words) between
// the tail of committed and the head of new is dropped as seam overlap.
func (b *Buffer) Insert(words []Word, offset float64) {
	shifted := make([]Word, 0, len(words))
	for _, w := range words {
		sw := Word{Start: w.Start + offset, End: w.End + offset, Text: w.Text}
		if sw.Start <= b.lastCommittedTime-staleDropMarginSec {
			continue
		}
		shifted = append(shifted, sw)
	}
	b.new = shifted

	if len(b.new) == 0 {
		return
	}
	if abs(b.new[0].Start-b.lastCommittedTime) >= dedupTimeWindowSec {
		return
	}
	if len(b.committed) == 0 {
		return
	}

	maxN := overlapNGramLimit
	if len(b.committed) < maxN {
		maxN = len(b.committed)
	}
	if len(b.new) < maxN {
		maxN = len(b.new)
	}

	// Greedy by largest n-gram: the largest i in 1..maxN whose committed
	// tail and new head agree wins, so the widest possible overlap is
	// dropped at the seam.
	for n := maxN; n >= 1; n-- {
		tail := joinWords(b.committed[len(b.committed)-n:])
		head := joinWords(b.new[:n])
		if tail == head {
			b.new = b.new[n:]
			return
		}
	}
}

// Flush commits the longest common prefix (by word text) between new and
// the previous round's buffer, advances lastCommittedTime to the last
// committed word's End, and rolls new into buffer for the next round. It
// returns just the newly committed slice.
//
// Because each re-transcription round only resubmits the window starting
// partway into what buffer already held (the worker never repeats audio
// already scrolled fully out), buffer is first realigned to new's head: we
// search buffer for the first word matching new[0]'s text and discard
// everything before it, so two rounds whose overlap starts mid-buffer still
// produce a comparable prefix instead of silently matching nothing.
func (b *Buffer) Flush() []Word {
	if len(b.new) > 0 && len(b.buffer) > 0 {
		aligned := false
		for i, bw := range b.buffer {
			if bw.Text == b.new[0].Text {
				b.buffer = b.buffer[i:]
				aligned = true
				break
			}
		}
		if !aligned {
			b.buffer = nil
		}
	}

	var commit []Word
	for len(b.new) > 0 && len(b.buffer) > 0 && b.new[0].Text == b.buffer[0].Text {
		w := b.new[0]
		commit = append(commit, w)
		b.lastCommittedTime = w.End
		b.buffer = b.buffer[1:]
		b.new = b.new[1:]
	}
	b.buffer = b.new
	b.new = nil
	b.committed = append(b.committed, commit...)
	return commit
}

// PopCommitted drops every committed word whose End is at or before t,
// called when the audio buffer is trimmed at t.
func (b *Buffer) PopCommitted(t float64) {
	i := 0
	for i < len(b.committed) && b.committed[i].End <= t {
		i++
	}
	b.committed = b.committed[i:]
}

// Pending returns the previous round's unconfirmed tail, used when the
// session ends and any leftover hypothesis should still be flushed out.
func (b *Buffer) Pending() []Word { return b.buffer }

func joinWords(ws []Word) string {
	out := ws[0].Text
	for _, w := range ws[1:] {
		out += " " + w.Text
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
