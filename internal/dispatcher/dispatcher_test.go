package dispatcher

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ufal/transcriptionserver/internal/asrproc"
	"github.com/ufal/transcriptionserver/internal/hypothesis"
	"github.com/ufal/transcriptionserver/internal/observability"
	"github.com/ufal/transcriptionserver/internal/queue"
	"github.com/ufal/transcriptionserver/internal/textstore"
	"github.com/ufal/transcriptionserver/internal/tokenizer"
)

func newTestDispatcher() *Dispatcher {
	cfg := Config{
		SupportedLangs:        []string{"en", "cs"},
		DefaultSourceLang:     "en",
		DefaultTranscriptLang: "en",
		WordSeparator:         " ",
	}
	return New(cfg, tokenizer.NewRegistry(), nil, nil, nil)
}

func TestCreateSessionRejectsEmptyIDAndDuplicate(t *testing.T) {
	d := newTestDispatcher()
	if err := d.CreateSession(""); err != ErrEmptySessionID {
		t.Fatalf("want ErrEmptySessionID, got %v", err)
	}
	if err := d.CreateSession("a"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := d.CreateSession("a"); err != ErrSessionExists {
		t.Fatalf("want ErrSessionExists, got %v", err)
	}
}

func TestEndSessionPurgesQueuesAndRemovesSession(t *testing.T) {
	d := newTestDispatcher()
	if err := d.CreateSession("a"); err != nil {
		t.Fatal(err)
	}
	if err := d.SubmitAudioChunk("a", 0, make([]float32, 1600)); err != nil {
		t.Fatal(err)
	}
	d.PullTranscribePacket(time.Unix(0, 0))

	if err := d.EndSession("a"); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if len(d.ActiveSessions()) != 0 {
		t.Fatal("want no active sessions after end")
	}
	if d.transcribeQ.Len() != 0 {
		t.Fatal("want transcribe queue purged on end")
	}
	if err := d.EndSession("a"); err != ErrSessionNotFound {
		t.Fatalf("want ErrSessionNotFound on repeat end, got %v", err)
	}
}

func TestSwitchTranscriptLanguageResetsProcessor(t *testing.T) {
	d := newTestDispatcher()
	if err := d.CreateSession("a"); err != nil {
		t.Fatal(err)
	}
	if err := d.SubmitAudioChunk("a", 0, make([]float32, 1600)); err != nil {
		t.Fatal(err)
	}
	if err := d.SwitchTranscriptLanguage("a", "cs"); err != nil {
		t.Fatalf("switch language: %v", err)
	}
	sess := d.sessions["a"]
	if sess.TranscriptLang != "cs" {
		t.Fatalf("want transcript lang cs, got %s", sess.TranscriptLang)
	}
	if sess.Processor.BufferedSeconds() != 0 {
		t.Fatal("want processor reset to empty buffer on language switch")
	}
}

func TestSubmitAudioChunkUnknownSessionIsError(t *testing.T) {
	d := newTestDispatcher()
	if err := d.SubmitAudioChunk("nope", 0, nil); err != ErrSessionNotFound {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestPullTranscribePacketSweepsUpdatedSessionsOnly(t *testing.T) {
	d := newTestDispatcher()
	if err := d.CreateSession("a"); err != nil {
		t.Fatal(err)
	}
	if p := d.PullTranscribePacket(time.Unix(0, 0)); p != nil {
		t.Fatal("want no packet before any audio arrives")
	}

	if err := d.SubmitAudioChunk("a", 0, make([]float32, 1600)); err != nil {
		t.Fatal(err)
	}
	p := d.PullTranscribePacket(time.Unix(0, 0))
	if p == nil || p.SessionID != "a" {
		t.Fatalf("want packet for session a, got %+v", p)
	}
}

func TestPullTranscribePacketObservesRedeliveryMetricOnlyOnSecondOffer(t *testing.T) {
	cfg := Config{
		SupportedLangs:        []string{"en"},
		DefaultSourceLang:     "en",
		DefaultTranscriptLang: "en",
		WordSeparator:         " ",
	}
	metrics := observability.NewMetrics("test_dispatcher_redelivery")
	d := New(cfg, tokenizer.NewRegistry(), nil, nil, metrics)

	if err := d.CreateSession("s"); err != nil {
		t.Fatal(err)
	}
	if err := d.SubmitAudioChunk("s", 0, make([]float32, 1600)); err != nil {
		t.Fatal(err)
	}

	t0 := time.Unix(0, 0)
	if p := d.PullTranscribePacket(t0); p == nil {
		t.Fatal("want a due packet on the first offer")
	}
	if got := testutil.ToFloat64(metrics.PacketRedeliveries.WithLabelValues("transcribe")); got != 0 {
		t.Fatalf("first offer must not count as a redelivery, got %v", got)
	}

	t1 := t0.Add(queue.RedeliveryTimeout + time.Second)
	if p := d.PullTranscribePacket(t1); p == nil {
		t.Fatal("want the same packet due again once the redelivery timeout elapses")
	}
	if got := testutil.ToFloat64(metrics.PacketRedeliveries.WithLabelValues("transcribe")); got != 1 {
		t.Fatalf("want one redelivery counted, got %v", got)
	}
}

func TestPostTranscribeResultObservesHardResetMetric(t *testing.T) {
	cfg := Config{
		SupportedLangs:        []string{"en"},
		DefaultSourceLang:     "en",
		DefaultTranscriptLang: "en",
		WordSeparator:         " ",
	}
	metrics := observability.NewMetrics("test_dispatcher_hardreset")
	d := New(cfg, tokenizer.NewRegistry(), nil, nil, metrics)

	if err := d.CreateSession("s"); err != nil {
		t.Fatal(err)
	}
	oversized := make([]float32, int(asrproc.HardResetSeconds*asrproc.SamplingRate)+asrproc.SamplingRate)
	if err := d.SubmitAudioChunk("s", 0, oversized); err != nil {
		t.Fatal(err)
	}

	packet := d.PullTranscribePacket(time.Unix(0, 0))
	if packet == nil {
		t.Fatal("want a due packet for the oversized backlog")
	}

	if err := d.PostTranscribeResult(packet.SessionID, packet.PacketID, nil, nil, "en", false); err != nil {
		t.Fatalf("PostTranscribeResult: %v", err)
	}
	if got := testutil.ToFloat64(metrics.ProcessorHardResets); got != 1 {
		t.Fatalf("want one hard reset counted, got %v", got)
	}
}

func TestPostTranscribeResultIgnoresUnknownPacket(t *testing.T) {
	d := newTestDispatcher()
	if err := d.CreateSession("a"); err != nil {
		t.Fatal(err)
	}
	if err := d.PostTranscribeResult("a", 99, nil, nil, "en", false); err != nil {
		t.Fatalf("want nil error for unknown packet, got %v", err)
	}
}

func TestPostTranscribeResultCommitsAndEnqueuesTranslation(t *testing.T) {
	d := newTestDispatcher()
	if err := d.CreateSession("a"); err != nil {
		t.Fatal(err)
	}
	words := []hypothesis.Word{
		{Text: "hello", Start: 0, End: 0.5},
		{Text: "world.", Start: 0.5, End: 1.0},
	}

	// Round one: the hypothesis buffer has nothing to compare against yet,
	// so nothing commits.
	if err := d.SubmitAudioChunk("a", 0, make([]float32, 1600)); err != nil {
		t.Fatal(err)
	}
	p1 := d.PullTranscribePacket(time.Unix(0, 0))
	if p1 == nil {
		t.Fatal("want a due packet")
	}
	if err := d.PostTranscribeResult("a", p1.PacketID, words, nil, "en", false); err != nil {
		t.Fatalf("post result round 1: %v", err)
	}
	if chunks, _, _ := d.GetLatestTextChunks("a", "en", nil); len(chunks) != 0 {
		t.Fatalf("want nothing committed after round 1, got %+v", chunks)
	}

	// Round two: the worker re-transcribes and reports the same words,
	// confirming them.
	if err := d.SubmitAudioChunk("a", 1, make([]float32, 1600)); err != nil {
		t.Fatal(err)
	}
	p2 := d.PullTranscribePacket(time.Unix(20, 0))
	if p2 == nil {
		t.Fatal("want a second due packet")
	}
	if err := d.PostTranscribeResult("a", p2.PacketID, words, nil, "en", false); err != nil {
		t.Fatalf("post result round 2: %v", err)
	}

	chunks, _, err := d.GetLatestTextChunks("a", "en", nil)
	if err != nil {
		t.Fatalf("get latest chunks: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("want at least one committed chunk in en store")
	}

	if d.translateQ.Len() == 0 {
		t.Fatal("want a translate packet enqueued for the remaining supported language")
	}

	// Duplicate post must be a silent no-op.
	if err := d.PostTranscribeResult("a", p2.PacketID, words, nil, "en", false); err != nil {
		t.Fatalf("want nil error on duplicate post, got %v", err)
	}
}

func TestPostTranscribeResultIsFileAppendsDirectlyToPostedLanguage(t *testing.T) {
	d := newTestDispatcher()
	sessionID, err := d.SubmitAudioFile(make([]float32, 16000))
	if err != nil {
		t.Fatalf("submit audio file: %v", err)
	}

	p := d.PullTranscribePacket(time.Unix(0, 0))
	if p == nil || !p.IsFile {
		t.Fatalf("want a due is-file packet, got %+v", p)
	}

	words := []hypothesis.Word{{Text: "bonjour", Start: 0, End: 1}}
	if err := d.PostTranscribeResult(sessionID, p.PacketID, words, nil, "cs", true); err != nil {
		t.Fatalf("post file result: %v", err)
	}

	chunks, _, err := d.GetLatestTextChunks(sessionID, "cs", nil)
	if err != nil {
		t.Fatalf("get latest chunks: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "bonjour" {
		t.Fatalf("want a single bonjour chunk in cs store, got %+v", chunks)
	}
}

func TestPostTranslateResultSkipsTranscriptLanguage(t *testing.T) {
	d := newTestDispatcher()
	if err := d.CreateSession("a"); err != nil {
		t.Fatal(err)
	}
	words := []hypothesis.Word{
		{Text: "hello", Start: 0, End: 0.5},
		{Text: "world.", Start: 0.5, End: 1.0},
	}

	if err := d.SubmitAudioChunk("a", 0, make([]float32, 1600)); err != nil {
		t.Fatal(err)
	}
	p1 := d.PullTranscribePacket(time.Unix(0, 0))
	if err := d.PostTranscribeResult("a", p1.PacketID, words, nil, "en", false); err != nil {
		t.Fatal(err)
	}

	if err := d.SubmitAudioChunk("a", 1, make([]float32, 1600)); err != nil {
		t.Fatal(err)
	}
	p2 := d.PullTranscribePacket(time.Unix(20, 0))
	if err := d.PostTranscribeResult("a", p2.PacketID, words, nil, "en", false); err != nil {
		t.Fatal(err)
	}

	tp := d.PullTranslatePacket(time.Unix(20, 0))
	if tp == nil {
		t.Fatal("want a due translate packet")
	}

	translated := map[string]string{"en": "should be skipped", "cs": "ahoj svete"}
	if err := d.PostTranslateResult("a", tp.PacketID, translated, tp.Timespan); err != nil {
		t.Fatalf("post translate result: %v", err)
	}

	enChunks, _, _ := d.GetLatestTextChunks("a", "en", nil)
	for _, c := range enChunks {
		if c.Text == "should be skipped" {
			t.Fatal("transcript language store must not receive its own translation")
		}
	}
	csChunks, _, _ := d.GetLatestTextChunks("a", "cs", nil)
	if len(csChunks) == 0 || csChunks[0].Text != "ahoj svete" {
		t.Fatalf("want translated text in cs store, got %+v", csChunks)
	}
}

func TestCorrectionRulesRoundTrip(t *testing.T) {
	d := newTestDispatcher()
	if err := d.CreateSession("a"); err != nil {
		t.Fatal(err)
	}
	rules := []textstore.CorrectionRule{
		{Sources: []textstore.SourceString{{String: "teh", Active: true}}, Replacement: "the"},
	}
	if _, err := d.SetCorrectionRules("a", "en", rules); err != nil {
		t.Fatalf("set correction rules: %v", err)
	}
	got, err := d.CorrectionRules("a", "en")
	if err != nil {
		t.Fatalf("get correction rules: %v", err)
	}
	if len(got) != 1 || got[0].Replacement != "the" {
		t.Fatalf("want rule round-tripped, got %+v", got)
	}
}

func TestUnknownLanguageReturnsErrLanguageNotFound(t *testing.T) {
	d := newTestDispatcher()
	if err := d.CreateSession("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CorrectionRules("a", "fr"); err != ErrLanguageNotFound {
		t.Fatalf("want ErrLanguageNotFound, got %v", err)
	}
}
