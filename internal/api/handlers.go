package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/westonopentrain/capsule-match/internal/apperr"
	"github.com/westonopentrain/capsule-match/internal/classify"
	"github.com/westonopentrain/capsule-match/internal/gate"
	"github.com/westonopentrain/capsule-match/internal/matchpipeline"
	"github.com/westonopentrain/capsule-match/internal/normalize"
	"github.com/westonopentrain/capsule-match/internal/qualstore"
	"github.com/westonopentrain/capsule-match/internal/vectorstore"
)

// Handlers holds every dependency the HTTP layer dispatches into. One
// instance serves the whole process.
type Handlers struct {
	Pipeline *matchpipeline.Pipeline
	Qual     qualstore.Store
	Store    vectorstore.Store
	Registry *vectorstore.Registry
	Gate     *gate.Cache
	Version  string
}

// NewHandlers wires a Handlers from its components.
func NewHandlers(pipeline *matchpipeline.Pipeline, qual qualstore.Store, store vectorstore.Store, registry *vectorstore.Registry, gateCache *gate.Cache, version string) *Handlers {
	return &Handlers{Pipeline: pipeline, Qual: qual, Store: store, Registry: registry, Gate: gateCache, Version: version}
}

func requestID(r *http.Request) string { return chimw.GetReqID(r.Context()) }

// ── Users ────────────────────────────────────────────────────────

func (h *Handlers) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.UserID == "" {
		respondError(w, r, apperr.New(apperr.CodeValidation, "userId is required"))
		return
	}

	profile := classify.NormalizedUserProfile{
		UserID:                req.UserID,
		Bio:                   req.Bio,
		Credentials:           req.Credentials,
		Languages:             normalize.Languages(req.Languages),
		Country:               normalize.Country(req.Country),
		YearsExperience:       req.YearsExperience,
		HasLabelingExperience: req.HasLabelingExperience,
	}

	result, err := h.Pipeline.UpsertUser(r.Context(), profile, requestID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{
		"userId":        result.UserID,
		"expertiseTier": result.ExpertiseTier,
		"elapsed_ms":    result.ElapsedMs,
	})
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := h.Pipeline.DeleteUser(r.Context(), userID, requestID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{"userId": userID})
}

// ── Jobs ─────────────────────────────────────────────────────────

func normalizedJob(req upsertJobRequest) classify.NormalizedJobPosting {
	return classify.NormalizedJobPosting{
		JobID:       req.JobID,
		Title:       req.Title,
		Description: req.Description,
		Credentials: req.Credentials,
		Languages:   normalize.Languages(req.Languages),
		Countries:   req.Countries,
	}
}

func (h *Handlers) UpsertJob(w http.ResponseWriter, r *http.Request) {
	var req upsertJobRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.JobID == "" {
		respondError(w, r, apperr.New(apperr.CodeValidation, "jobId is required"))
		return
	}

	result, err := h.Pipeline.UpsertJob(r.Context(), normalizedJob(req), req.IsActive, requestID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{
		"jobId":      result.JobID,
		"jobClass":   result.JobClass,
		"confidence": result.Confidence,
		"elapsed_ms": result.ElapsedMs,
	})
}

func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := h.Pipeline.DeleteJob(r.Context(), jobID, requestID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{"jobId": jobID})
}

func (h *Handlers) Notify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.JobID == "" {
		respondError(w, r, apperr.New(apperr.CodeValidation, "jobId is required"))
		return
	}

	result, err := h.Pipeline.Notify(r.Context(), matchpipeline.NotifyRequest{
		Job:                normalizedJob(req.upsertJobRequest),
		IsActive:           req.IsActive,
		AvailableCountries: req.AvailableCountries,
		AvailableLanguages: req.AvailableLanguages,
		MaxNotifications:   req.MaxNotifications,
	}, requestID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	body := map[string]interface{}{
		"jobId":               result.JobID,
		"jobClass":            result.JobClass,
		"notifyUserIds":       emptyIfNil(result.NotifyUserIDs),
		"totalCandidates":     result.TotalCandidates,
		"totalAboveThreshold": result.TotalAboveThreshold,
		"scoreStats":          result.ScoreStats,
		"elapsed_ms":          result.ElapsedMs,
	}
	if result.SubjectMatterFilter != nil {
		body["subjectMatterFilter"] = result.SubjectMatterFilter
	}
	respondJSON(w, r, body)
}

func (h *Handlers) ReNotify(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	var req reNotifyRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.Pipeline.ReNotify(r.Context(), matchpipeline.ReNotifyRequest{
		JobID:            jobID,
		Countries:        req.Countries,
		Languages:        req.Languages,
		MaxNotifications: req.MaxNotifications,
	}, requestID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{
		"jobId":                 jobID,
		"totalQualified":        result.TotalQualified,
		"previouslyNotified":    result.PreviouslyNotified,
		"newlyQualifiedUserIds": emptyIfNil(result.NewlyQualified),
		"elapsed_ms":            result.ElapsedMs,
	})
}

func (h *Handlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	var req evaluateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.Pipeline.Evaluate(r.Context(), jobID, matchpipeline.EvaluateRequest{
		Countries: req.Countries,
		Languages: req.Languages,
	}, requestID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{
		"jobId":           jobID,
		"totalCandidates": result.TotalCandidates,
		"totalQualified":  result.TotalQualified,
		"scoreStats":      result.ScoreStats,
		"elapsed_ms":      result.ElapsedMs,
	})
}

func (h *Handlers) UpdateJobMetadata(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	var req updateMetadataRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.Pipeline.UpdateJobMetadata(r.Context(), jobID, req.Countries, req.Languages, requestID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{"jobId": jobID})
}

func (h *Handlers) UpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.Pipeline.SetJobStatus(r.Context(), jobID, req.IsActive, requestID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{"jobId": jobID, "isActive": req.IsActive})
}

func (h *Handlers) GetQualifications(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	q := r.URL.Query()
	opts := qualstore.ListOptions{
		QualifiesOnly: q.Get("qualifies_only") == "true",
		Limit:         atoiDefault(q.Get("limit"), 100),
		Offset:        atoiDefault(q.Get("offset"), 0),
	}
	quals, err := h.Qual.GetQualifications(r.Context(), jobID, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{"jobId": jobID, "qualifications": quals})
}

func (h *Handlers) GetPendingNotifications(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	pending, err := h.Qual.GetPending(r.Context(), jobID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{"jobId": jobID, "pending": pending})
}

func (h *Handlers) MarkNotified(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	var req markNotifiedRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	notifiedVia := req.NotifiedVia
	if notifiedVia == "" {
		notifiedVia = "manual"
	}
	if err := h.Pipeline.MarkNotified(r.Context(), jobID, req.UserIDs, notifiedVia, requestID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{"jobId": jobID, "markedCount": len(req.UserIDs)})
}

// ── Match ────────────────────────────────────────────────────────

func (h *Handlers) ScoreUsersForJob(w http.ResponseWriter, r *http.Request) {
	var req scoreUsersForJobRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.JobID == "" {
		respondError(w, r, apperr.New(apperr.CodeValidation, "jobId is required"))
		return
	}

	result, err := h.Pipeline.ScoreUsersForJob(r.Context(), matchpipeline.ScoreUsersForJobRequest{
		JobID:            req.JobID,
		CandidateUserIDs: req.CandidateUserIDs,
		WDomain:          req.WDomain,
		WTask:            req.WTask,
		AutoWeights:      req.AutoWeights,
		TopK:             req.TopK,
		Threshold:        req.Threshold,
	}, requestID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	body := map[string]interface{}{
		"jobClass":           result.JobClass,
		"users":              result.Users,
		"missingVectors":     result.MissingVectors,
		"suggestedThreshold": result.SuggestedThreshold,
		"countGteSuggested":  result.CountGteSuggested,
	}
	if result.CountGteThreshold != nil {
		body["countGteThreshold"] = *result.CountGteThreshold
	}
	respondJSON(w, r, body)
}

func (h *Handlers) ScoreJobsForUser(w http.ResponseWriter, r *http.Request) {
	var req scoreJobsForUserRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.UserID == "" {
		respondError(w, r, apperr.New(apperr.CodeValidation, "userId is required"))
		return
	}

	result, err := h.Pipeline.ScoreJobsForUser(r.Context(), matchpipeline.ScoreJobsForUserRequest{
		UserID: req.UserID,
		JobIDs: req.JobIDs,
		TopK:   req.TopK,
	}, requestID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, map[string]interface{}{
		"jobs":        result.Jobs,
		"missingJobs": emptyIfNil(result.MissingJobs),
	})
}

// ── Admin ────────────────────────────────────────────────────────

func (h *Handlers) VectorStoreHealth(w http.ResponseWriter, r *http.Request) {
	results := h.Registry.HealthCheckAll(r.Context())
	drivers := make(map[string]interface{}, len(results))
	allHealthy := true
	for name, err := range results {
		entry := map[string]interface{}{"healthy": err == nil}
		if err != nil {
			entry["error"] = err.Error()
			allHealthy = false
		}
		drivers[name] = entry
	}
	respondJSON(w, r, map[string]interface{}{
		"healthy": allHealthy,
		"driver":  h.Store.Kind(),
		"drivers": drivers,
	})
}

func (h *Handlers) SubjectCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.Gate.Stats()
	respondJSON(w, r, map[string]interface{}{"size": stats.Size})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy","service":"capsule-match"}`))
}

func versionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"` + version + `","service":"capsule-match"}`))
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
