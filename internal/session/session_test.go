package session

import (
	"testing"

	"github.com/ufal/transcriptionserver/internal/textstore"
)

type passthroughTokenizer struct{}

func (passthroughTokenizer) Split(text string) []string { return []string{text} }

func newTestSession(id string) *Session {
	return New(id, "en", "en", []string{"en", "cs"}, passthroughTokenizer{}, " ", "/tmp/x", func(lang string) *textstore.LanguageStore {
		return textstore.NewLanguageStore(lang, textstore.NopPersister{})
	})
}

func TestNewCreatesOneStorePerSupportedLanguage(t *testing.T) {
	s := newTestSession("a")
	if len(s.Stores) != 2 {
		t.Fatalf("want 2 stores, got %d", len(s.Stores))
	}
	if s.Store("en") == nil || s.Store("cs") == nil {
		t.Fatal("want stores for en and cs")
	}
	if s.Store("fr") != nil {
		t.Fatal("want nil store for unsupported language")
	}
}

func TestMarkSentThenTranscribedMovesPacketBetweenQueues(t *testing.T) {
	s := newTestSession("a")
	s.MarkSentForTranscription(0)
	s.MarkSentForTranscription(1)
	if len(s.UntranscribedIDs) != 2 {
		t.Fatalf("want 2 untranscribed ids, got %v", s.UntranscribedIDs)
	}

	s.MarkTranscribed(0)
	if len(s.UntranscribedIDs) != 1 || s.UntranscribedIDs[0] != 1 {
		t.Fatalf("want only packet 1 left untranscribed, got %v", s.UntranscribedIDs)
	}
	if len(s.TranscribedIDs) != 1 || s.TranscribedIDs[0] != 0 {
		t.Fatalf("want packet 0 marked transcribed, got %v", s.TranscribedIDs)
	}
}

func TestResetProcessorReplacesProcessorKeepingIdentity(t *testing.T) {
	s := newTestSession("a")
	s.Processor.InsertAudioChunk(make([]float32, 10))
	old := s.Processor
	s.ResetProcessor(passthroughTokenizer{}, " ")
	if s.Processor == old {
		t.Fatal("want a fresh processor after reset")
	}
	if s.Processor.BufferedSeconds() != 0 {
		t.Fatal("want fresh processor to have an empty audio buffer")
	}
}
