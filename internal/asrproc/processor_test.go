package asrproc

import (
	"strings"
	"testing"

	"github.com/ufal/transcriptionserver/internal/hypothesis"
)

// splitOnPeriod is a minimal stand-in for a Moses-style tokenizer: it splits
// on ". " and re-attaches the period, good enough to exercise sentence
// chunking without depending on a real language package.
type splitOnPeriod struct{}

func (splitOnPeriod) Split(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ". ") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.HasSuffix(s, ".") {
			s += "."
		}
		out = append(out, s)
	}
	return out
}

func w(start, end float64, text string) hypothesis.Word {
	return hypothesis.Word{Start: start, End: end, Text: text}
}

func TestProcessIterCommitsStabilizedWords(t *testing.T) {
	p := New(splitOnPeriod{}, " ")
	r := p.ProcessIter([]hypothesis.Word{w(0, 1, "hello"), w(1, 2, "world")}, nil)
	if r.Text != "" {
		t.Fatalf("round 1 must commit nothing, got %+v", r)
	}

	r = p.ProcessIter([]hypothesis.Word{w(1, 2, "world"), w(2, 3, "there")}, nil)
	if r.Text != "world" || r.Begin != 1 || r.End != 2 {
		t.Fatalf("want committed 'world', got %+v", r)
	}
}

func TestFinishFlushesPendingTail(t *testing.T) {
	p := New(splitOnPeriod{}, " ")
	p.ProcessIter([]hypothesis.Word{w(0, 1, "hi")}, nil)
	r := p.Finish()
	if r.Text != "hi" {
		t.Fatalf("want pending tail flushed on finish, got %+v", r)
	}
}

func TestTakeBufferUpdatedClearsFlag(t *testing.T) {
	p := New(splitOnPeriod{}, " ")
	if p.TakeBufferUpdated() {
		t.Fatal("fresh processor must not report buffer updated")
	}
	p.InsertAudioChunk(make([]float32, 10))
	if !p.TakeBufferUpdated() {
		t.Fatal("want buffer updated after InsertAudioChunk")
	}
	if p.TakeBufferUpdated() {
		t.Fatal("TakeBufferUpdated must clear the flag after reading it")
	}
}

func TestNextPacketIDIsDenseStartingAtZero(t *testing.T) {
	p := New(splitOnPeriod{}, " ")
	if id := p.NextPacketID(); id != 0 {
		t.Fatalf("want first packet id 0, got %d", id)
	}
	if id := p.NextPacketID(); id != 1 {
		t.Fatalf("want second packet id 1, got %d", id)
	}
}

func TestInsertAudioChunkAccumulatesBufferedSeconds(t *testing.T) {
	p := New(splitOnPeriod{}, " ")
	p.InsertAudioChunk(make([]float32, SamplingRate*2))
	if got := p.BufferedSeconds(); got != 2.0 {
		t.Fatalf("want 2.0s buffered, got %v", got)
	}
}

func TestChunkAtTrimsAudioBufferAndAdvancesOffset(t *testing.T) {
	p := New(splitOnPeriod{}, " ")
	p.InsertAudioChunk(make([]float32, SamplingRate*5))
	p.chunkAt(2.0)
	if got := p.BufferedSeconds(); got != 3.0 {
		t.Fatalf("want 3.0s remaining after trimming 2s, got %v", got)
	}
	if p.BufferTimeOffset() != 2.0 {
		t.Fatalf("want buffer time offset 2.0, got %v", p.BufferTimeOffset())
	}
}

func TestWordsToSentencesAlignsBoundaries(t *testing.T) {
	p := New(splitOnPeriod{}, " ")
	words := []hypothesis.Word{
		w(0, 1, "Hello"), w(1, 2, "there."), w(2, 3, "How"), w(3, 4, "are"), w(4, 5, "you."),
	}
	sents := p.wordsToSentences(words)
	if len(sents) != 2 {
		t.Fatalf("want 2 sentences, got %d: %+v", len(sents), sents)
	}
	if sents[0].Text != "Hello there." || sents[0].Begin != 0 || sents[0].End != 2 {
		t.Fatalf("unexpected first sentence: %+v", sents[0])
	}
	if sents[1].Text != "How are you." || sents[1].Begin != 2 || sents[1].End != 5 {
		t.Fatalf("unexpected second sentence: %+v", sents[1])
	}
}

func TestPromptSplitsAtLastChunkedBoundary(t *testing.T) {
	p := New(splitOnPeriod{}, " ")
	p.committed = []hypothesis.Word{w(0, 1, "alpha"), w(1, 2, "beta"), w(2, 3, "gamma")}
	p.lastChunkedAt = 1.5

	prompt, context := p.Prompt()
	if prompt != "alpha" {
		t.Fatalf("want prompt 'alpha', got %q", prompt)
	}
	if context != "beta gamma" {
		t.Fatalf("want context 'beta gamma', got %q", context)
	}
}
