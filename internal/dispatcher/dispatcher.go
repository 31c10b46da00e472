// Package dispatcher is the session lifecycle, audio ingest, read API and
// worker pull/post authority. It owns the sessions map and both processing
// queues behind a single coarse lock — correctness only requires that
// every mutation of shared state be serialized, and the per-request work
// here is small and bounded, so one lock is enough.
package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ufal/transcriptionserver/internal/asrproc"
	"github.com/ufal/transcriptionserver/internal/hypothesis"
	"github.com/ufal/transcriptionserver/internal/observability"
	"github.com/ufal/transcriptionserver/internal/persistence"
	"github.com/ufal/transcriptionserver/internal/queue"
	"github.com/ufal/transcriptionserver/internal/session"
	"github.com/ufal/transcriptionserver/internal/textstore"
	"github.com/ufal/transcriptionserver/internal/tokenizer"
)

var (
	ErrSessionNotFound  = errors.New("dispatcher: session not found")
	ErrSessionExists    = errors.New("dispatcher: session already exists")
	ErrEmptySessionID   = errors.New("dispatcher: session id not provided")
	ErrLanguageNotFound = errors.New("dispatcher: language not found")
)

// AuditFunc receives a best-effort, fire-and-forget notice of a dispatcher
// event. It must not block; a nil AuditFunc disables the hook entirely.
type AuditFunc func(kind, sessionID, detail string)

// Config carries the fixed, process-wide settings every session is created
// with.
type Config struct {
	SupportedLangs        []string
	DefaultSourceLang     string
	DefaultTranscriptLang string
	WordSeparator         string // "" for faster-whisper-style backends, " " otherwise
}

// Dispatcher is the single coordinator value for all session and queue
// state. There is exactly one per process; handlers borrow it, there are
// no package-level singletons.
type Dispatcher struct {
	mu sync.Mutex

	cfg        Config
	tokenizers tokenizer.Registry
	store      *persistence.Store
	audit      AuditFunc
	metrics    *observability.Metrics

	sessions    map[string]*session.Session
	transcribeQ queue.TranscribeQueue
	translateQ  queue.TranslateQueue
}

// New constructs an empty Dispatcher. store handles on-disk recording
// layout; audit and metrics may both be nil.
func New(cfg Config, tokenizers tokenizer.Registry, store *persistence.Store, audit AuditFunc, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		tokenizers: tokenizers,
		store:      store,
		audit:      audit,
		metrics:    metrics,
		sessions:   make(map[string]*session.Session),
	}
}

func (d *Dispatcher) notify(kind, sessionID, detail string) {
	if d.audit == nil {
		return
	}
	d.audit(kind, sessionID, detail)
}

// CreateSession builds a fresh session with the dispatcher's default
// source/transcript languages. sessionID must be non-empty and unused.
func (d *Dispatcher) CreateSession(sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrEmptySessionID
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.sessions[sessionID]; exists {
		return ErrSessionExists
	}

	sess, err := d.newSessionLocked(sessionID)
	if err != nil {
		return err
	}
	d.sessions[sessionID] = sess
	d.notify("session_created", sessionID, "")
	return nil
}

// newSessionLocked allocates storage and builds a Session. Caller holds mu.
func (d *Dispatcher) newSessionLocked(sessionID string) (*session.Session, error) {
	tok, err := d.tokenizers.Lookup(d.cfg.DefaultTranscriptLang)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: default transcript language: %w", err)
	}

	savePath := ""
	if d.store != nil {
		savePath, err = d.store.AllocateSessionPath(sessionID, d.cfg.SupportedLangs)
		if err != nil {
			return nil, fmt.Errorf("dispatcher: allocate save path: %w", err)
		}
	}

	var persist textstore.Persister = textstore.NopPersister{}
	if d.store != nil && savePath != "" {
		persist = persistence.NewTextPersister(d.store, savePath)
	}

	sess := session.New(
		sessionID,
		d.cfg.DefaultSourceLang,
		d.cfg.DefaultTranscriptLang,
		d.cfg.SupportedLangs,
		tok,
		d.cfg.WordSeparator,
		savePath,
		func(lang string) *textstore.LanguageStore {
			st := textstore.NewLanguageStore(lang, persist)
			st.OnPersistError(func(err error) {
				d.notify("persistence_failure", sessionID, err.Error())
			})
			return st
		},
	)
	return sess, nil
}

// EndSession flushes every language's store as SRT + JSON, purges both
// queues of the session's packets, and removes the session.
func (d *Dispatcher) EndSession(sessionID string) error {
	d.mu.Lock()
	sess, ok := d.sessions[sessionID]
	if !ok {
		d.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(d.sessions, sessionID)
	d.transcribeQ.PurgeSession(sessionID)
	d.translateQ.PurgeSession(sessionID)
	snapshots := sess.Snapshots()
	savePath := sess.SavePath
	d.mu.Unlock()

	if savePath != "" {
		if err := persistence.FlushFinalTranscripts(savePath, snapshots); err != nil {
			d.notify("persistence_failure", sessionID, err.Error())
		}
	}
	d.notify("session_ended", sessionID, "")
	return nil
}

// QueueDepths reports the current pending packet counts in each queue, for
// gauge metrics. Safe to poll on any cadence.
func (d *Dispatcher) QueueDepths() (transcribe, translate int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transcribeQ.Len(), d.translateQ.Len()
}

// ActiveSessions lists every live session id.
func (d *Dispatcher) ActiveSessions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.sessions))
	for id := range d.sessions {
		out = append(out, id)
	}
	return out
}

// SwitchSourceLanguage updates the session's source (audio) language. It
// does not rebuild the processor — the source language only labels the
// packet a worker receives.
func (d *Dispatcher) SwitchSourceLanguage(sessionID, lang string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess, ok := d.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.SourceLang = lang
	return nil
}

// SwitchTranscriptLanguage updates the session's primary transcript
// language and rebuilds its processor with that language's tokenizer, since
// sentence-boundary splitting is language-specific.
func (d *Dispatcher) SwitchTranscriptLanguage(sessionID, lang string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess, ok := d.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	tok, err := d.tokenizers.Lookup(lang)
	if err != nil {
		return fmt.Errorf("dispatcher: switch transcript language: %w", err)
	}
	sess.TranscriptLang = lang
	sess.ResetProcessor(tok, d.cfg.WordSeparator)
	return nil
}

// SubmitAudioChunk persists the raw chunk (best-effort) and feeds the
// samples into the session's processor.
func (d *Dispatcher) SubmitAudioChunk(sessionID string, timestamp int, samples []float32) error {
	d.mu.Lock()
	sess, ok := d.sessions[sessionID]
	if !ok {
		d.mu.Unlock()
		return ErrSessionNotFound
	}
	savePath := sess.SavePath
	sess.Processor.InsertAudioChunk(samples)
	d.mu.Unlock()

	if d.store != nil && savePath != "" {
		if err := d.store.SaveAudioChunk(savePath, timestamp, time.Now().UnixNano(), samples); err != nil {
			d.notify("persistence_failure", sessionID, err.Error())
		}
	}
	return nil
}

// SubmitAudioFile creates a fresh session with a random 32-character id and
// immediately enqueues the whole file as a single is-file TranscribePacket,
// bypassing the incremental processor entirely.
func (d *Dispatcher) SubmitAudioFile(samples []float32) (string, error) {
	sessionID := randomSessionID()

	d.mu.Lock()
	for {
		if _, exists := d.sessions[sessionID]; !exists {
			break
		}
		sessionID = randomSessionID()
	}
	sess, err := d.newSessionLocked(sessionID)
	if err != nil {
		d.mu.Unlock()
		return "", err
	}
	d.sessions[sessionID] = sess

	packetID := sess.Processor.NextPacketID()
	d.transcribeQ.Enqueue(&queue.TranscribePacket{
		SessionID:      sessionID,
		PacketID:       packetID,
		SourceLang:     sess.SourceLang,
		TranscriptLang: sess.TranscriptLang,
		Prompt:         "",
		Audio:          samples,
		IsFile:         true,
	})
	d.mu.Unlock()

	d.notify("session_created", sessionID, "submit_audio_file")
	return sessionID, nil
}

func randomSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GetLatestTextChunks returns every chunk newer than the caller's known
// versions, plus the store's full current version map.
func (d *Dispatcher) GetLatestTextChunks(sessionID, lang string, known map[int]int) ([]textstore.TextChunkView, map[int]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	store, err := d.storeLocked(sessionID, lang)
	if err != nil {
		return nil, nil, err
	}
	return store.GetLatestTextChunks(known), store.GetLatestVersions(), nil
}

// GetLatestTextChunkVersions returns just the version map.
func (d *Dispatcher) GetLatestTextChunkVersions(sessionID, lang string) (map[int]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	store, err := d.storeLocked(sessionID, lang)
	if err != nil {
		return nil, err
	}
	return store.GetLatestVersions(), nil
}

// EditChunk appends (or idempotently no-ops) a new version of chunkID.
func (d *Dispatcher) EditChunk(sessionID, lang string, chunkID, version int, text string) (string, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	store, err := d.storeLocked(sessionID, lang)
	if err != nil {
		return "", 0, err
	}
	return store.Edit(chunkID, version, text)
}

// RateChunk adjusts a specific chunk version's rating by delta.
func (d *Dispatcher) RateChunk(sessionID, lang string, chunkID, version, delta int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	store, err := d.storeLocked(sessionID, lang)
	if err != nil {
		return 0, err
	}
	return store.Rate(chunkID, version, delta)
}

// SetCorrectionRules replaces lang's correction rule list for the session.
func (d *Dispatcher) SetCorrectionRules(sessionID, lang string, rules []textstore.CorrectionRule) ([]textstore.CorrectionRule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	store, err := d.storeLocked(sessionID, lang)
	if err != nil {
		return nil, err
	}
	return store.SetCorrectionRules(rules), nil
}

// CorrectionRules returns lang's current, sanitized correction rules.
func (d *Dispatcher) CorrectionRules(sessionID, lang string) ([]textstore.CorrectionRule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	store, err := d.storeLocked(sessionID, lang)
	if err != nil {
		return nil, err
	}
	return store.CorrectionRules(), nil
}

// storeLocked resolves sessionID/lang to a LanguageStore. Caller holds mu.
func (d *Dispatcher) storeLocked(sessionID, lang string) (*textstore.LanguageStore, error) {
	sess, ok := d.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	store := sess.Store(lang)
	if store == nil {
		return nil, ErrLanguageNotFound
	}
	return store, nil
}

// PullTranscribePacket sweeps every session for unprocessed audio, builds a
// TranscribePacket for each, then returns the first due job in the queue
// (nil if none is due).
func (d *Dispatcher) PullTranscribePacket(now time.Time) *queue.TranscribePacket {
	d.mu.Lock()
	defer d.mu.Unlock()

	for sessionID, sess := range d.sessions {
		if !sess.Processor.TakeBufferUpdated() {
			continue
		}
		packetID := sess.Processor.NextPacketID()
		prompt, _ := sess.Processor.Prompt()
		d.transcribeQ.Enqueue(&queue.TranscribePacket{
			SessionID:      sessionID,
			PacketID:       packetID,
			SourceLang:     sess.SourceLang,
			TranscriptLang: sess.TranscriptLang,
			Prompt:         prompt,
			Audio:          append([]float32(nil), sess.Processor.AudioBuffer()...),
		})
		sess.MarkSentForTranscription(packetID)
	}

	packet := d.transcribeQ.NextDue(now)
	if packet != nil && packet.Redelivered {
		d.metrics.ObserveRedelivery("transcribe")
	}
	return packet
}

// PostTranscribeResult absorbs a worker's transcription result. Unknown or
// already-received packets are silently dropped.
func (d *Dispatcher) PostTranscribeResult(sessionID string, packetID int, tsw []hypothesis.Word, ends []float64, language string, isFile bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	packet, ok := d.transcribeQ.Accept(sessionID, packetID)
	if !ok {
		return nil
	}

	sess, ok := d.sessions[sessionID]
	if !ok {
		// Session ended while the packet was in flight: accept and drop.
		return nil
	}
	sess.MarkTranscribed(packetID)

	if packet.IsFile || isFile {
		store := sess.Store(language)
		if store == nil {
			return nil
		}
		for _, w := range tsw {
			store.Append(w.Text, textstore.Timespan{Start: w.Start, End: w.End})
		}
		return nil
	}

	result := sess.Processor.ProcessIter(tsw, ends)
	if sess.Processor.BufferedSeconds() > asrproc.HardResetSeconds {
		tok, err := d.tokenizers.Lookup(sess.TranscriptLang)
		if err == nil {
			sess.ResetProcessor(tok, d.cfg.WordSeparator)
			d.metrics.ObserveHardReset()
		}
	}

	if result.Text == "" {
		return nil
	}

	store := sess.Store(sess.TranscriptLang)
	if store == nil {
		return nil
	}
	span, err := textstore.NewTimespan(result.Begin, result.End)
	if err != nil {
		return nil
	}
	store.Append(result.Text, span)

	targets := make([]string, 0, len(sess.SupportedLangs))
	for _, l := range sess.SupportedLangs {
		if l != sess.TranscriptLang {
			targets = append(targets, l)
		}
	}
	if len(targets) > 0 {
		d.translateQ.Enqueue(&queue.TranslatePacket{
			SessionID:   sessionID,
			PacketID:    packetID,
			SourceLang:  sess.SourceLang,
			TargetLangs: targets,
			SourceText:  result.Text,
			Timespan:    span,
		})
	}
	return nil
}

// PullTranslatePacket returns the next due translate job, or nil.
func (d *Dispatcher) PullTranslatePacket(now time.Time) *queue.TranslatePacket {
	d.mu.Lock()
	defer d.mu.Unlock()
	packet := d.translateQ.NextDue(now)
	if packet != nil && packet.Redelivered {
		d.metrics.ObserveRedelivery("translate")
	}
	return packet
}

// PostTranslateResult appends each translated language's text to its store,
// except the session's own transcript language (which already holds the
// source text verbatim).
func (d *Dispatcher) PostTranslateResult(sessionID string, packetID int, translated map[string]string, span textstore.Timespan) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.translateQ.Accept(sessionID, packetID); !ok {
		return nil
	}
	sess, ok := d.sessions[sessionID]
	if !ok {
		return nil
	}
	for lang, text := range translated {
		if lang == sess.TranscriptLang {
			continue
		}
		if store := sess.Store(lang); store != nil {
			store.Append(text, span)
		}
	}
	return nil
}
