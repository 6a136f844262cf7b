package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/anderson-ufrj/meeting-intelligence/internal/dedup"
	"github.com/anderson-ufrj/meeting-intelligence/internal/meeting"
	"github.com/anderson-ufrj/meeting-intelligence/internal/search"
	"github.com/anderson-ufrj/meeting-intelligence/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultTopK = 10
	maxTopK     = 50
)

// Processor runs one transcript through the pipeline.
type Processor interface {
	Process(ctx context.Context, tr meeting.Transcript) (*meeting.ProcessedMeeting, error)
}

type Server struct {
	store    store.RecordStore
	pipe     Processor
	engine   *search.Engine
	sweeper  *dedup.Sweeper
	validate *validator.Validate
	router   chi.Router
	port     int
}

func NewServer(s store.RecordStore, pipe Processor, engine *search.Engine, sweeper *dedup.Sweeper, port int) *Server {
	srv := &Server{
		store:    s,
		pipe:     pipe,
		engine:   engine,
		sweeper:  sweeper,
		validate: validator.New(),
		port:     port,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/health", srv.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/meetings/process", srv.handleProcess)
		r.Get("/meetings/search", srv.handleSearch)
		r.Get("/meetings", srv.handleList)
		r.Get("/meetings/{meetingID}", srv.handleGet)
		r.Get("/meetings/{meetingID}/transcript", srv.handleGetTranscript)
		r.Delete("/meetings/{meetingID}", srv.handleDelete)
		r.Post("/admin/dedup", srv.handleDedup)
		r.Get("/stats", srv.handleStats)
	})

	srv.router = r
	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("starting HTTP API", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "meetingd",
	})
}

// ProcessRequest is the submission body. Tier is fixed here and never
// changed afterwards.
type ProcessRequest struct {
	MeetingID  string     `json:"meeting_id"`
	Title      string     `json:"title" validate:"required,min=1,max=500"`
	Date       *time.Time `json:"date"`
	Tier       string     `json:"tier" validate:"omitempty,oneof=ordinary sensitive"`
	Transcript string     `json:"transcript" validate:"required,min=10"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	if req.Tier == "" {
		req.Tier = string(meeting.TierOrdinary)
	}

	tr := meeting.Transcript{
		MeetingID: req.MeetingID,
		Title:     req.Title,
		Date:      req.Date,
		Tier:      meeting.Tier(req.Tier),
		RawText:   req.Transcript,
	}
	if tr.MeetingID == "" {
		tr.MeetingID = "meeting_" + uuid.New().String()[:12]
	}

	processed, err := s.pipe.Process(r.Context(), tr)
	if err != nil {
		switch {
		case errors.Is(err, meeting.ErrValidation):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			slog.Error("processing failed", "meeting_id", tr.MeetingID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"meeting_id": processed.MeetingID,
		"status":     "processed",
		"tier":       processed.Tier,
		"insights":   processed.Insights,
		"sentiments": processed.Sentiments,
		"vector_id":  processed.VectorID,
		"audit_log":  processed.AuditLog,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}

	ns, ok := s.namespaceParam(w, r)
	if !ok {
		return
	}

	limit := defaultTopK
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxTopK {
		limit = maxTopK
	}

	hits, err := s.engine.SearchText(r.Context(), ns, query, limit)
	if err != nil {
		slog.Error("search failed", "namespace", ns, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	results := make([]map[string]any, 0, len(hits))
	for _, hit := range hits {
		entry := map[string]any{
			"meeting_id": hit.ID,
			"score":      hit.Score,
		}
		// A record deleted between ranking and this lookup is still a valid
		// hit; it just has no preview.
		if rec, err := s.store.Get(r.Context(), ns, hit.ID); err == nil {
			entry["title"] = rec.Metadata.Title
			entry["tier"] = rec.Metadata.Tier
			entry["content_preview"] = preview(rec.Document, 200)
		}
		results = append(results, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": results})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ns, ok := s.namespaceParam(w, r)
	if !ok {
		return
	}

	summaries, err := s.store.List(r.Context(), ns)
	if err != nil {
		slog.Error("list failed", "namespace", ns, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	meetings := make([]store.Metadata, 0, len(summaries))
	for _, sum := range summaries {
		meetings = append(meetings, sum.Metadata)
	}

	writeJSON(w, http.StatusOK, map[string]any{"tier": ns, "meetings": meetings})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ns, ok := s.namespaceParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "meetingID")

	rec, err := s.store.Get(r.Context(), ns, id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "meeting not found"})
		return
	}
	if err != nil {
		slog.Error("get failed", "namespace", ns, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document": rec.Document,
		"metadata": rec.Metadata,
	})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	ns, ok := s.namespaceParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "meetingID")

	raw, err := s.store.GetRawText(r.Context(), ns, id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transcript not found"})
		return
	}
	if err != nil {
		slog.Error("get transcript failed", "namespace", ns, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"meeting_id": id, "transcript": raw})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ns, ok := s.namespaceParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "meetingID")

	err := s.store.Delete(r.Context(), ns, id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "meeting not found"})
		return
	}
	if err != nil {
		slog.Error("delete failed", "namespace", ns, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "meeting_id": id})
}

func (s *Server) handleDedup(w http.ResponseWriter, r *http.Request) {
	ns, ok := s.namespaceParam(w, r)
	if !ok {
		return
	}

	result, err := s.sweeper.Sweep(r.Context(), ns)
	if err != nil {
		slog.Error("dedup failed", "namespace", ns, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "deduplicated",
		"tier":    ns,
		"removed": result.Removed,
		"kept":    result.Kept,
	})
}

// handleStats aggregates intelligence across both tiers.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total := 0
	tierCounts := map[string]int{}
	sentimentCounts := map[string]int{}
	topicCounts := map[string]int{}
	var totalDecisions, totalActions, totalQuestions int

	for _, ns := range []store.Namespace{store.NamespaceOrdinary, store.NamespaceSensitive} {
		summaries, err := s.store.List(r.Context(), ns)
		if err != nil {
			slog.Error("stats list failed", "namespace", ns, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		for _, sum := range summaries {
			total++
			tierCounts[sum.Metadata.Tier]++

			var pm meeting.ProcessedMeeting
			if err := json.Unmarshal(sum.Metadata.Meeting, &pm); err != nil {
				continue
			}
			totalDecisions += len(pm.Insights.Decisions)
			totalActions += len(pm.Insights.ActionItems)
			totalQuestions += len(pm.Insights.OpenQuestions)
			for _, t := range pm.Insights.KeyTopics {
				topicCounts[t.Name]++
			}
			for _, sr := range pm.Sentiments {
				sentimentCounts[sr.Sentiment]++
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_meetings":         total,
		"total_decisions":        totalDecisions,
		"total_actions":          totalActions,
		"total_questions":        totalQuestions,
		"tier_breakdown":         tierCounts,
		"sentiment_distribution": sentimentCounts,
		"topic_counts":           topicCounts,
	})
}

// namespaceParam resolves the tier query parameter (default ordinary) into
// a namespace, writing a 400 on an unknown tier.
func (s *Server) namespaceParam(w http.ResponseWriter, r *http.Request) (store.Namespace, bool) {
	tierStr := r.URL.Query().Get("tier")
	if tierStr == "" {
		tierStr = string(meeting.TierOrdinary)
	}
	tier, err := meeting.ParseTier(tierStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown tier %q", tierStr)})
		return "", false
	}
	return store.ForTier(tier), true
}

func preview(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
