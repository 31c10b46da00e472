// Package session holds the per-session ASR state: the source/transcript
// languages, one versioned text store per supported language, the single
// OnlineASRProcessor driving the hypothesis stabilizer, and the on-disk
// save path. A Session has no TTL — it lives from /create_session to an
// explicit /end_session, and carries no inactivity timer.
package session

import (
	"github.com/ufal/transcriptionserver/internal/asrproc"
	"github.com/ufal/transcriptionserver/internal/textstore"
)

// Session is owned exclusively by the dispatcher; callers serialize access
// to it under the dispatcher's single lock.
type Session struct {
	ID             string
	SourceLang     string
	TranscriptLang string
	SupportedLangs []string
	SavePath       string

	Stores    map[string]*textstore.LanguageStore
	Processor *asrproc.Processor

	UntranscribedIDs []int
	TranscribedIDs   []int
}

// New constructs a Session with a fresh LanguageStore per supported
// language and a fresh processor for transcriptLang. newStore is called once
// per language to build its store (the dispatcher binds every store to one
// shared persistence.TextPersister).
func New(id, sourceLang, transcriptLang string, supportedLangs []string, tokenizer asrproc.Tokenizer, sep string, savePath string, newStore func(lang string) *textstore.LanguageStore) *Session {
	stores := make(map[string]*textstore.LanguageStore, len(supportedLangs))
	for _, lang := range supportedLangs {
		stores[lang] = newStore(lang)
	}
	return &Session{
		ID:               id,
		SourceLang:       sourceLang,
		TranscriptLang:   transcriptLang,
		SupportedLangs:   append([]string(nil), supportedLangs...),
		SavePath:         savePath,
		Stores:           stores,
		Processor:        asrproc.New(tokenizer, sep),
		UntranscribedIDs: nil,
		TranscribedIDs:   nil,
	}
}

// ResetProcessor replaces the processor with a fresh one, preserving the
// Session's identity and stores. Used both when the transcript language is
// switched (a new tokenizer applies) and when the audio backlog exceeds
// asrproc.HardResetSeconds.
func (s *Session) ResetProcessor(tokenizer asrproc.Tokenizer, sep string) {
	s.Processor = asrproc.New(tokenizer, sep)
}

// MarkSentForTranscription records packetID in UntranscribedIDs once its
// packet is enqueued; it stays there, absent from TranscribedIDs, until the
// worker posts results back.
func (s *Session) MarkSentForTranscription(packetID int) {
	s.UntranscribedIDs = append(s.UntranscribedIDs, packetID)
}

// MarkTranscribed removes packetID from the untranscribed queue and records
// it as transcribed, once a worker's result has been accepted.
func (s *Session) MarkTranscribed(packetID int) {
	for i, id := range s.UntranscribedIDs {
		if id == packetID {
			s.UntranscribedIDs = append(s.UntranscribedIDs[:i], s.UntranscribedIDs[i+1:]...)
			break
		}
	}
	s.TranscribedIDs = append(s.TranscribedIDs, packetID)
}

// Store returns the LanguageStore for lang, or nil if lang isn't supported
// by this session.
func (s *Session) Store(lang string) *textstore.LanguageStore {
	return s.Stores[lang]
}

// Snapshots returns the tail TextUnit sequence of every supported language,
// the shape the final SRT/JSON flush needs.
func (s *Session) Snapshots() map[string][]textstore.TextUnit {
	out := make(map[string][]textstore.TextUnit, len(s.Stores))
	for lang, store := range s.Stores {
		out[lang] = store.Snapshot()
	}
	return out
}
