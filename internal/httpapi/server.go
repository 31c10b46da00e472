// Package httpapi is the JSON HTTP transport: a chi router translating
// session lifecycle, language switching, audio ingest, text-chunk CRUD,
// correction rules, and the worker offload/accept endpoints onto
// internal/dispatcher, plus health/readiness/metrics endpoints. Besides the
// dispatcher and metrics, the Server keeps only two offer-time maps (under
// its own mutex) for packet-latency metrics; every session, queue and text
// mutation and read goes through the dispatcher's single lock.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-audio/wav"
	"github.com/go-chi/chi/v5"

	"github.com/ufal/transcriptionserver/internal/config"
	"github.com/ufal/transcriptionserver/internal/dispatcher"
	"github.com/ufal/transcriptionserver/internal/errkind"
	"github.com/ufal/transcriptionserver/internal/hypothesis"
	"github.com/ufal/transcriptionserver/internal/observability"
	"github.com/ufal/transcriptionserver/internal/textstore"
)

// Server wires the HTTP surface to a single Dispatcher instance.
type Server struct {
	cfg        config.Config
	dispatcher *dispatcher.Dispatcher
	metrics    *observability.Metrics
	classifier errkind.Classifier

	mu           sync.Mutex
	offeredASR   map[string]time.Time
	offeredXlate map[string]time.Time
}

// New builds a Server bound to d. cfg supplies CORS and origin settings;
// metrics may be nil.
func New(cfg config.Config, d *dispatcher.Dispatcher, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		dispatcher:   d,
		metrics:      metrics,
		classifier:   errkind.New(dispatcher.ErrSessionNotFound, dispatcher.ErrLanguageNotFound),
		offeredASR:   make(map[string]time.Time),
		offeredXlate: make(map[string]time.Time),
	}
}

// Router builds the full chi mux: the session/audio/text/correction-rule
// and worker offload routes, plus the /healthz, /readyz, /metrics and
// /perf/latency operability endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)

	r.Get("/", s.handleRoot)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/perf/latency", s.handlePerfLatency)
	r.Post("/perf/latency/reset", s.handlePerfLatencyReset)

	r.Get("/create_session", s.handleCreateSession)
	r.Get("/end_session", s.handleEndSession)
	r.Get("/get_active_sessions", s.handleGetActiveSessions)
	r.Post("/switch_source_language", s.handleSwitchSourceLanguage)
	r.Post("/switch_transcript_language", s.handleSwitchTranscriptLanguage)
	r.Post("/submit_audio_chunk", s.handleSubmitAudioChunk)
	r.Post("/submit_audio_file", s.handleSubmitAudioFile)
	r.Post("/get_latest_text_chunks", s.handleGetLatestTextChunks)
	r.Get("/get_latest_text_chunk_versions", s.handleGetLatestTextChunkVersions)
	r.Post("/edit_asr_chunk", s.handleEditASRChunk)
	r.Post("/rate_text_chunk", s.handleRateTextChunk)
	r.Post("/submit_correction_rules", s.handleSubmitCorrectionRules)
	r.Get("/get_correction_rules", s.handleGetCorrectionRules)
	r.Method(http.MethodGet, "/offload_ASR", http.HandlerFunc(s.handleOffloadASR))
	r.Method(http.MethodPost, "/offload_ASR", http.HandlerFunc(s.handleOffloadASR))
	r.Method(http.MethodGet, "/offload_translation", http.HandlerFunc(s.handleOffloadTranslation))
	r.Method(http.MethodPost, "/offload_translation", http.HandlerFunc(s.handleOffloadTranslation))

	return r
}

// corsMiddleware matches the hand-rolled wildcard CORS headers of the
// service this replaces: when cfg.AllowAnyOrigin is set (the default),
// every response allows any origin, header and method, so no browser
// preflight ever blocks a worker or client. Otherwise it adds no headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.AllowAnyOrigin {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("I work uwu"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// --- session lifecycle ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Session ID not provided"})
		return
	}
	if err := s.dispatcher.CreateSession(sessionID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Session already exists"})
		return
	}
	s.observeSessionEvent("created")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Successfully created session " + sessionID})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		s.writeSessionError(w, sessionID, dispatcher.ErrSessionNotFound)
		return
	}
	if err := s.dispatcher.EndSession(sessionID); err != nil {
		s.writeSessionError(w, sessionID, err)
		return
	}
	s.observeSessionEvent("ended")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Successfully ended session " + sessionID})
}

func (s *Server) handleGetActiveSessions(w http.ResponseWriter, _ *http.Request) {
	ids := s.dispatcher.ActiveSessions()
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, map[string]any{"active_sessions": ids})
}

// --- language switching ---

type languageRequest struct {
	Language string `json:"language"`
}

func (s *Server) handleSwitchSourceLanguage(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	var req languageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": err.Error()})
		return
	}
	if err := s.dispatcher.SwitchSourceLanguage(sessionID, req.Language); err != nil {
		s.writeSessionError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session_id": sessionID})
}

func (s *Server) handleSwitchTranscriptLanguage(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	var req languageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": err.Error()})
		return
	}
	if err := s.dispatcher.SwitchTranscriptLanguage(sessionID, req.Language); err != nil {
		s.writeSessionError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session_id": sessionID})
}

// --- audio ingest ---

// audioChunkRequest decodes {"timestamp": int, "chunk": {"0": f0, "1": f1, ...}}.
// The chunk values need the int-vs-float distinction preserved (an integer
// value is PCM16 and divided by 32768; a float passes through unscaled), so
// this one decode uses encoding/json's UseNumber() rather than sonic — sonic's
// Unmarshal normalizes every JSON number to float64 before we ever see it,
// which would make "1" and "1.0" indistinguishable. Every other handler in
// this package decodes with sonic.
type audioChunkRequest struct {
	Timestamp json.Number            `json:"timestamp"`
	Chunk     map[string]json.Number `json:"chunk"`
}

func (s *Server) handleSubmitAudioChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	if r.Body == nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": "empty body"})
		return
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var req audioChunkRequest
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": err.Error()})
		return
	}

	timestamp, err := req.Timestamp.Int64()
	if err != nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": "timestamp must be an integer"})
		return
	}
	samples, err := decodeAudioSamples(req.Chunk)
	if err != nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": err.Error()})
		return
	}

	if err := s.dispatcher.SubmitAudioChunk(sessionID, int(timestamp), samples); err != nil {
		s.writeSessionError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session_id": sessionID})
}

// decodeAudioSamples orders the chunk by its numeric key ("0", "1", "2", ...,
// "10", not lexicographic) and converts each value: an integer-valued
// number is PCM16 and divided by 32768; anything with a fractional part or
// exponent passes through unscaled.
func decodeAudioSamples(chunk map[string]json.Number) ([]float32, error) {
	keys := make([]string, 0, len(chunk))
	for k := range chunk {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})

	out := make([]float32, len(keys))
	for i, k := range keys {
		raw := string(chunk[k])
		if strings.ContainsAny(raw, ".eE") {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, err
			}
			out[i] = float32(f)
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = float32(n) / 32768.0
	}
	return out, nil
}

// handleSubmitAudioFile accepts a multipart "file" field holding a 16 kHz
// WAV recording, creates a fresh session with a random id, and enqueues the
// whole file as a single is-file TranscribePacket.
func (s *Server) handleSubmitAudioFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writePlain(w, errkind.MalformedRequest.StatusCode(), "No file part")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writePlain(w, errkind.MalformedRequest.StatusCode(), "No file part")
		return
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if decoder == nil {
		writePlain(w, errkind.MalformedRequest.StatusCode(), "No selected file")
		return
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		writePlain(w, errkind.MalformedRequest.StatusCode(), "No selected file")
		return
	}
	if buf.Format.SampleRate != 16000 {
		writePlain(w, errkind.MalformedRequest.StatusCode(), "Wrong sample rate: "+strconv.Itoa(buf.Format.SampleRate)+" instead of 16000")
		return
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / 32768.0
	}

	sessionID, err := s.dispatcher.SubmitAudioFile(samples)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": err.Error()})
		return
	}
	s.observeSessionEvent("created")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session_id": sessionID})
}

// --- text chunks ---

func (s *Server) handleGetLatestTextChunks(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	language := strings.TrimSpace(r.URL.Query().Get("language"))

	var req struct {
		Versions map[string]int `json:"versions"`
	}
	if err := decodeJSON(r, &req); err != nil && err != errEmptyBody {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": err.Error()})
		return
	}
	known := make(map[int]int, len(req.Versions))
	for k, v := range req.Versions {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		known[id] = v
	}

	chunks, versions, err := s.dispatcher.GetLatestTextChunks(sessionID, language, known)
	if err != nil {
		s.writeSessionError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"session_id":  sessionID,
		"text_chunks": nonNilChunks(chunks),
		"versions":    versions,
	})
}

func nonNilChunks(chunks []textstore.TextChunkView) []textstore.TextChunkView {
	if chunks == nil {
		return []textstore.TextChunkView{}
	}
	return chunks
}

func (s *Server) handleGetLatestTextChunkVersions(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	language := strings.TrimSpace(r.URL.Query().Get("language"))

	versions, err := s.dispatcher.GetLatestTextChunkVersions(sessionID, language)
	if err != nil {
		s.writeSessionError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session_id": sessionID, "versions": versions})
}

func (s *Server) handleEditASRChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	language := strings.TrimSpace(r.URL.Query().Get("language"))

	var req struct {
		Timestamp int    `json:"timestamp"`
		Version   int    `json:"version"`
		Text      string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": err.Error()})
		return
	}

	text, version, err := s.dispatcher.EditChunk(sessionID, language, req.Timestamp, req.Version, req.Text)
	if err != nil {
		s.writeSessionError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": sessionID,
		"text":       text,
		"timestamp":  req.Timestamp,
		"version":    version,
	})
}

func (s *Server) handleRateTextChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	language := strings.TrimSpace(r.URL.Query().Get("language"))

	var req struct {
		Timestamp    int `json:"timestamp"`
		Version      int `json:"version"`
		RatingUpdate int `json:"rating_update"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": err.Error()})
		return
	}

	newRating, err := s.dispatcher.RateChunk(sessionID, language, req.Timestamp, req.Version, req.RatingUpdate)
	if err != nil {
		s.writeSessionError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Successfully updated rating for " + sessionID + ", language " + language +
			", chunk_id " + strconv.Itoa(req.Timestamp) + ", chunk_version " + strconv.Itoa(req.Version) +
			", rating_update " + strconv.Itoa(req.RatingUpdate) + ", new_rating " + strconv.Itoa(newRating),
	})
}

// --- correction rules ---

func (s *Server) handleSubmitCorrectionRules(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	language := strings.TrimSpace(r.URL.Query().Get("language"))

	var req struct {
		Entries []textstore.CorrectionRule `json:"entries"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": err.Error()})
		return
	}

	if _, err := s.dispatcher.SetCorrectionRules(sessionID, language, req.Entries); err != nil {
		s.writeSessionError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Successfully uploaded rules for session " + sessionID + ", language " + language,
	})
}

func (s *Server) handleGetCorrectionRules(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	language := strings.TrimSpace(r.URL.Query().Get("language"))

	rules, err := s.dispatcher.CorrectionRules(sessionID, language)
	if err != nil {
		s.writeSessionError(w, sessionID, err)
		return
	}
	if rules == nil {
		rules = []textstore.CorrectionRule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"locked": true, "entries": rules})
}

// --- worker offload: transcription ---

type tswWord struct {
	Start float64
	End   float64
	Text  string
}

func (w *tswWord) UnmarshalJSON(data []byte) error {
	var raw [3]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	if start, ok := raw[0].(float64); ok {
		w.Start = start
	}
	if end, ok := raw[1].(float64); ok {
		w.End = end
	}
	if text, ok := raw[2].(string); ok {
		w.Text = text
	}
	return nil
}

func (s *Server) handleOffloadASR(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleOffloadASRGet(w, r)
	case http.MethodPost:
		s.handleOffloadASRPost(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "message": "Method not allowed"})
	}
}

func (s *Server) handleOffloadASRGet(w http.ResponseWriter, _ *http.Request) {
	packet := s.dispatcher.PullTranscribePacket(time.Now())
	if s.metrics != nil {
		tq, xq := s.dispatcher.QueueDepths()
		s.metrics.TranscribeQueueSize.Set(float64(tq))
		s.metrics.TranslateQueueSize.Set(float64(xq))
	}
	if packet == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "timestamp": nil, "audio": []float32{}})
		return
	}
	s.mu.Lock()
	s.offeredASR[offerKey(packet.SessionID, packet.PacketID)] = time.Now()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":          packet.SessionID,
		"timestamp":           packet.PacketID,
		"source_language":     packet.SourceLang,
		"transcript_language": packet.TranscriptLang,
		"prompt":              packet.Prompt,
		"audio":               packet.Audio,
		"is_file":             packet.IsFile,
	})
}

func (s *Server) handleOffloadASRPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string    `json:"session_id"`
		Timestamp int       `json:"timestamp"`
		TSW       []tswWord `json:"tsw"`
		Ends      []float64 `json:"ends"`
		Language  string    `json:"language"`
		IsFile    bool      `json:"is_file"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": err.Error()})
		return
	}

	words := make([]hypothesis.Word, len(req.TSW))
	for i, w := range req.TSW {
		words[i] = hypothesis.Word{Start: w.Start, End: w.End, Text: w.Text}
	}

	key := offerKey(req.SessionID, req.Timestamp)
	s.mu.Lock()
	offeredAt, hadOffer := s.offeredASR[key]
	delete(s.offeredASR, key)
	s.mu.Unlock()

	if err := s.dispatcher.PostTranscribeResult(req.SessionID, req.Timestamp, words, req.Ends, req.Language, req.IsFile); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": err.Error()})
		return
	}
	if hadOffer && s.metrics != nil {
		s.metrics.ObservePacketStage("offer_to_post", time.Since(offeredAt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// --- worker offload: translation ---

func (s *Server) handleOffloadTranslation(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleOffloadTranslationGet(w, r)
	case http.MethodPost:
		s.handleOffloadTranslationPost(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "message": "Method not allowed"})
	}
}

func (s *Server) handleOffloadTranslationGet(w http.ResponseWriter, _ *http.Request) {
	packet := s.dispatcher.PullTranslatePacket(time.Now())
	if packet == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s.mu.Lock()
	s.offeredXlate[offerKey(packet.SessionID, packet.PacketID)] = time.Now()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":       packet.SessionID,
		"timestamp":        packet.PacketID,
		"source_language":  packet.SourceLang,
		"target_languages": packet.TargetLangs,
		"source_text":      packet.SourceText,
		"timespan":         packet.Timespan,
	})
}

func (s *Server) handleOffloadTranslationPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID      string             `json:"session_id"`
		Timestamp      int                `json:"timestamp"`
		TranslatedText map[string]string  `json:"translated_text"`
		Timespan       textstore.Timespan `json:"timespan"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, errkind.MalformedRequest.StatusCode(), map[string]any{"success": false, "message": err.Error()})
		return
	}

	key := offerKey(req.SessionID, req.Timestamp)
	s.mu.Lock()
	offeredAt, hadOffer := s.offeredXlate[key]
	delete(s.offeredXlate, key)
	s.mu.Unlock()

	if err := s.dispatcher.PostTranslateResult(req.SessionID, req.Timestamp, req.TranslatedText, req.Timespan); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": err.Error()})
		return
	}
	if hadOffer && s.metrics != nil {
		s.metrics.ObservePacketStage("translate_round_trip", time.Since(offeredAt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func offerKey(sessionID string, packetID int) string {
	return sessionID + ":" + strconv.Itoa(packetID)
}

func (s *Server) observeSessionEvent(event string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveSessionEvent(event)
	s.metrics.ActiveSessions.Set(float64(len(s.dispatcher.ActiveSessions())))
}

// writeSessionError renders the session_not_found-shaped error body the
// original service used for every unknown-session/unknown-language case,
// swapping in "language not found" when the classifier says so.
func (s *Server) writeSessionError(w http.ResponseWriter, sessionID string, err error) {
	kind := s.classifier.Classify(err)
	status := kind.StatusCode()
	message := "Session not found"
	switch kind {
	case errkind.UnknownLanguage:
		message = "language not found"
	case errkind.Unknown:
		message = err.Error()
	}
	writeJSON(w, status, map[string]any{"success": false, "session_id": sessionID, "message": message})
}

// --- decode/respond helpers ---

var errEmptyBody = io.EOF

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	return sonic.Unmarshal(body, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writePlain(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
