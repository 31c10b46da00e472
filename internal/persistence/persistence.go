// Package persistence is the best-effort, write-through disk layer:
// per-session recording folders, atomic JSON writes for audio chunks and
// text chunk versions, and the final SRT/JSON flush on session end. The
// dispatcher reports a failure here as a "persistence_failure" audit event
// and otherwise ignores it — in-memory state is always authoritative.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ufal/transcriptionserver/internal/textstore"
)

// Store roots every session's recording under baseDir/recordings.
type Store struct {
	baseDir string
}

// New returns a Store rooted at baseDir. An empty baseDir means the current
// working directory, matching the original's bare "recordings/" path.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) recordingsRoot() string {
	return filepath.Join(s.baseDir, "recordings")
}

// AllocateSessionPath picks `recordings/<sessionId>/<n>/` with n the
// smallest non-negative integer not already present, and creates
// audio/, text_chunks/<lang>/ and final_transcripts/<lang>/ beneath it for
// every supported language.
func (s *Store) AllocateSessionPath(sessionID string, supportedLangs []string) (string, error) {
	sessionDir := filepath.Join(s.recordingsRoot(), sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("persistence: create session dir: %w", err)
	}

	n := 0
	for {
		candidate := filepath.Join(sessionDir, fmt.Sprint(n))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			break
		}
		n++
	}

	savePath := filepath.Join(sessionDir, fmt.Sprint(n))
	dirs := []string{filepath.Join(savePath, "audio")}
	for _, lang := range supportedLangs {
		dirs = append(dirs,
			filepath.Join(savePath, "text_chunks", lang),
			filepath.Join(savePath, "final_transcripts", lang),
		)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", fmt.Errorf("persistence: create %s: %w", d, err)
		}
	}
	return savePath, nil
}

// SaveAudioChunk atomically writes the raw chunk payload to
// <savePath>/audio/<timestamp>_<unixNano>.json.
func (s *Store) SaveAudioChunk(savePath string, timestamp int, unixNano int64, payload any) error {
	name := fmt.Sprintf("%d_%d.json", timestamp, unixNano)
	return atomicWriteJSON(filepath.Join(savePath, "audio", name), payload)
}

// TextPersister adapts a Store to textstore.Persister for one session's
// save path, writing each appended/edited TextUnit to
// <savePath>/text_chunks/<language>/<chunkId>_<version>.json.
type TextPersister struct {
	store    *Store
	savePath string
}

// NewTextPersister builds a textstore.Persister bound to savePath.
func NewTextPersister(store *Store, savePath string) TextPersister {
	return TextPersister{store: store, savePath: savePath}
}

func (p TextPersister) SaveTextUnit(language string, unit textstore.TextUnit) error {
	name := fmt.Sprintf("%d_%d.json", unit.ChunkID, unit.Version)
	return atomicWriteJSON(filepath.Join(p.savePath, "text_chunks", language, name), unit)
}

// FlushFinalTranscripts writes <savePath>/final_transcripts/<lang>/transcript.srt
// and all_text_chunks.json for every language, called once on session end.
func FlushFinalTranscripts(savePath string, snapshots map[string][]textstore.TextUnit) error {
	var firstErr error
	for lang, units := range snapshots {
		dir := filepath.Join(savePath, "final_transcripts", lang)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		srt := textstore.RenderSRT(units, 0)
		if err := atomicWrite(filepath.Join(dir, "transcript.srt"), []byte(srt)); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := atomicWriteJSON(filepath.Join(dir, "all_text_chunks.json"), units); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// atomicWriteJSON marshals v and writes it via atomicWrite.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal %s: %w", path, err)
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data to a temp file in the target directory, then
// renames it into place, so concurrent readers never see a partial write.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: create dir %s: %w", dir, err)
	}
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("persistence: write temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persistence: rename into %s: %w", path, err)
	}
	return nil
}
