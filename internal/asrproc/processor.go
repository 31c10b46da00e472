// Package asrproc turns a stream of per-packet ASR hypotheses into a single
// growing committed transcript, trimming the audio buffer as sentences and
// segments complete so a long session never re-submits the whole recording
// to the worker pool.
package asrproc

import (
	"strings"

	"github.com/ufal/transcriptionserver/internal/hypothesis"
)

const (
	// SamplingRate is the PCM sample rate every submitted audio chunk is
	// assumed to use.
	SamplingRate = 16000

	maxBufferedSeconds = 30.0
	promptCharBudget   = 200

	// HardResetSeconds is the audio-backlog length past which the
	// dispatcher discards this Processor and starts a fresh one rather
	// than let an unstabilizable hypothesis grow the buffer forever.
	HardResetSeconds = 45.0
)

// Tokenizer splits text into sentences the way github.com/ufal's
// Moses-derived tokenizers do: split(text) -> []sentence.
type Tokenizer interface {
	Split(text string) []string
}

// Result is what ProcessIter/Finish hand back: the newly committed span, or
// a zero Result (Text == "") if nothing committed this round.
type Result struct {
	Begin float64
	End   float64
	Text  string
}

// Processor is the per-(session,language) online ASR state machine. It owns
// one hypothesis.Buffer and the raw audio backlog awaiting re-transcription.
// Not safe for concurrent use; the owning session guards it with its lock.
type Processor struct {
	tokenizer Tokenizer
	sep       string // inter-word separator when joining text; "" for most ASR backends

	audioBuffer      []float32
	bufferTimeOffset float64

	transcriptBuffer *hypothesis.Buffer
	committed        []hypothesis.Word
	lastChunkedAt    float64

	bufferUpdated bool
	nextPacketID  int
}

// New constructs a Processor for one language using tokenizer for sentence
// boundaries. sep is inserted between words when flattening them back into
// text; pass "" for ASR backends (like Whisper) whose words already carry
// leading spaces.
func New(tokenizer Tokenizer, sep string) *Processor {
	return &Processor{
		tokenizer:        tokenizer,
		sep:              sep,
		transcriptBuffer: hypothesis.New(),
	}
}

// InsertAudioChunk appends freshly received PCM samples to the backlog
// awaiting re-transcription and marks the buffer as having unprocessed audio.
func (p *Processor) InsertAudioChunk(samples []float32) {
	p.audioBuffer = append(p.audioBuffer, samples...)
	p.bufferUpdated = true
}

// TakeBufferUpdated reports whether audio has arrived since the last packet
// was built for this processor, and clears the flag. The dispatcher calls
// this while sweeping sessions for work to offer.
func (p *Processor) TakeBufferUpdated() bool {
	v := p.bufferUpdated
	p.bufferUpdated = false
	return v
}

// NextPacketID returns the next packet id for this processor's session and
// advances the counter. Packet ids are dense per-session integers starting
// at 0, used both as the transcribe-queue key and as the timestamp field
// workers see on the wire.
func (p *Processor) NextPacketID() int {
	id := p.nextPacketID
	p.nextPacketID++
	return id
}

// BufferedSeconds reports how much audio is currently backlogged.
func (p *Processor) BufferedSeconds() float64 {
	return float64(len(p.audioBuffer)) / float64(SamplingRate)
}

// AudioBuffer returns the PCM backlog a worker should transcribe next.
func (p *Processor) AudioBuffer() []float32 { return p.audioBuffer }

// BufferTimeOffset is the absolute session time (seconds) the start of
// AudioBuffer() corresponds to.
func (p *Processor) BufferTimeOffset() float64 { return p.bufferTimeOffset }

// Prompt returns a transcription prompt: up to 200 characters of committed
// text that has already scrolled out of the audio buffer (the "prompt"),
// and separately the committed text still inside the buffer, which the
// worker will see again and must not re-commit (the "context", informational
// only).
func (p *Processor) Prompt() (prompt, context string) {
	k := len(p.committed) - 1
	if k < 0 {
		k = 0
	}
	for k > 0 && p.committed[k-1].End > p.lastChunkedAt {
		k--
	}

	head := p.committed[:k]
	tail := p.committed[k:]

	var promptWords []string
	budget := 0
	for i := len(head) - 1; i >= 0 && budget < promptCharBudget; i-- {
		w := head[i].Text
		budget += len(w) + 1
		promptWords = append(promptWords, w)
	}
	// promptWords was built back-to-front; reverse it.
	for i, j := 0, len(promptWords)-1; i < j; i, j = i+1, j-1 {
		promptWords[i], promptWords[j] = promptWords[j], promptWords[i]
	}

	var tailWords []string
	for _, w := range tail {
		tailWords = append(tailWords, w.Text)
	}
	return strings.Join(promptWords, p.sep), strings.Join(tailWords, p.sep)
}

// ProcessIter absorbs one re-transcription round: tsw is the worker's fresh
// word hypotheses over the current audio buffer, ends is the list of
// worker-reported segment boundary times (for ChunkCompletedSegment). It
// commits whatever the hypothesis buffer stabilizes, trims the audio buffer
// on sentence or (if the buffer has grown past 30s) segment boundaries, and
// returns the newly committed span.
func (p *Processor) ProcessIter(tsw []hypothesis.Word, ends []float64) Result {
	p.transcriptBuffer.Insert(tsw, p.bufferTimeOffset)
	committed := p.transcriptBuffer.Flush()
	p.committed = append(p.committed, committed...)

	if len(committed) > 0 {
		p.chunkCompletedSentence()
	}
	if p.BufferedSeconds() > maxBufferedSeconds {
		p.chunkCompletedSegment(ends)
	}

	return toFlush(committed, p.sep, 0)
}

// Finish returns whatever hypothesis is still pending (never confirmed by a
// second round) as one Result, without changing the processor's state. The
// dispatcher does not call it: ending a session does not flush this tail.
func (p *Processor) Finish() Result {
	return toFlush(p.transcriptBuffer.Pending(), p.sep, 0)
}

// chunkCompletedSentence trims the audio buffer at the boundary of the
// second-to-last completed sentence, once at least two sentences exist, so
// the worker never has to re-decode audio for a sentence already finished.
func (p *Processor) chunkCompletedSentence() {
	if len(p.committed) == 0 {
		return
	}
	sents := p.wordsToSentences(p.committed)
	if len(sents) < 2 {
		return
	}
	for len(sents) > 2 {
		sents = sents[1:]
	}
	p.chunkAt(sents[len(sents)-2].End)
}

// chunkCompletedSegment trims the audio buffer at the last worker-reported
// segment boundary that falls at or before the latest committed word, used
// only once the backlog has grown past maxBufferedSeconds and sentence
// boundaries alone haven't kept it bounded.
func (p *Processor) chunkCompletedSegment(ends []float64) {
	if len(p.committed) == 0 || len(ends) == 0 {
		return
	}
	t := p.committed[len(p.committed)-1].End

	if len(ends) > 1 {
		e := ends[len(ends)-2] + p.bufferTimeOffset
		for len(ends) > 2 && e > t {
			ends = ends[:len(ends)-1]
			e = ends[len(ends)-2] + p.bufferTimeOffset
		}
		if e <= t {
			p.chunkAt(e)
		}
	}
}

// chunkAt discards committed hypothesis state and audio backlog up to time,
// then anchors future re-transcriptions at time.
func (p *Processor) chunkAt(t float64) {
	p.transcriptBuffer.PopCommitted(t)
	cutSeconds := t - p.bufferTimeOffset
	cutSamples := int(cutSeconds) * SamplingRate
	if cutSamples > len(p.audioBuffer) {
		cutSamples = len(p.audioBuffer)
	}
	if cutSamples > 0 {
		p.audioBuffer = p.audioBuffer[cutSamples:]
	}
	p.bufferTimeOffset = t
	p.lastChunkedAt = t
}

// wordsToSentences re-segments a flat committed word sequence into
// (begin, end, sentence) triples using the processor's language tokenizer,
// by joining words to text, asking the tokenizer to split it into sentences,
// then walking the word list back into alignment with each sentence in turn.
func (p *Processor) wordsToSentences(words []hypothesis.Word) []Result {
	cwords := append([]hypothesis.Word(nil), words...)
	joined := make([]string, len(cwords))
	for i, w := range cwords {
		joined[i] = w.Text
	}
	full := strings.Join(joined, " ")

	sentences := p.tokenizer.Split(full)
	var out []Result
	for len(sentences) > 0 {
		sent := strings.TrimSpace(sentences[0])
		sentences = sentences[1:]
		fullSent := sent

		var beg, end *float64
		for len(cwords) > 0 {
			w := cwords[0]
			cwords = cwords[1:]
			if beg == nil && strings.HasPrefix(sent, w.Text) {
				v := w.Start
				beg = &v
			} else if end == nil && sent == w.Text {
				v := w.End
				end = &v
				out = append(out, Result{Begin: *beg, End: *end, Text: fullSent})
				break
			}
			sent = strings.TrimSpace(strings.TrimPrefix(sent, w.Text))
		}
	}
	return out
}

// toFlush concatenates a span of words into one
// emitted unit: the begin of the first, the end of the last, and their text
// joined by sep. An empty span yields a zero Result.
func toFlush(words []hypothesis.Word, sep string, offset float64) Result {
	if len(words) == 0 {
		return Result{}
	}
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return Result{
		Begin: offset + words[0].Start,
		End:   offset + words[len(words)-1].End,
		Text:  strings.Join(parts, sep),
	}
}
