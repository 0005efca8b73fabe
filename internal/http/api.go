// Package httpapi is the thin host surface over the engine: job submission
// with a cost preview, job listing and cancellation, and set browsing. All
// generation logic lives below it.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"mediaforge/internal/catalog"
	"mediaforge/internal/domain"
	"mediaforge/internal/providers"
	"mediaforge/internal/queue"
)

// API bundles the collaborators the handlers need.
type API struct {
	Engine   *queue.Engine
	Jobs     domain.JobRepository
	Sets     domain.SetRepository
	Registry *providers.Registry
	Static   http.Handler
	Logger   zerolog.Logger
}

// NewRouter builds the chi router.
func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/v1/healthz", api.health)
	r.Get("/v1/models", api.listModels)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", api.submitJob)
		r.Get("/", api.listJobs)
		r.Get("/{id}", api.getJob)
		r.Delete("/{id}", api.cancelJob)
	})

	r.Route("/v1/sets", func(r chi.Router) {
		r.Get("/", api.listSets)
		r.Get("/{id}/generations", api.listGenerations)
	})

	if api.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", api.Static))
	}

	return r
}

func (api *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *API) listModels(w http.ResponseWriter, _ *http.Request) {
	type model struct {
		Provider   string   `json:"provider"`
		ModelID    string   `json:"model_id"`
		SetType    string   `json:"set_type"`
		Dimensions []string `json:"dimensions,omitempty"`
		Durations  []int    `json:"durations,omitempty"`
		CostUnit   string   `json:"cost_unit"`
	}
	out := []model{}
	for _, desc := range catalog.Active() {
		out = append(out, model{
			Provider:   desc.Provider,
			ModelID:    desc.ModelID,
			SetType:    string(desc.SetType),
			Dimensions: desc.Dimensions,
			Durations:  desc.Durations,
			CostUnit:   string(catalog.CostUnit(desc.Code)),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type submitRequest struct {
	ModelID         string `json:"model_id"`
	Prompt          string `json:"prompt"`
	NegativePrompt  string `json:"negative_prompt"`
	Style           string `json:"style"`
	Quality         string `json:"quality"`
	Variant         string `json:"variant"`
	Dimensions      string `json:"dimensions"`
	ClientImage     string `json:"client_image"`
	ClientMask      string `json:"client_mask"`
	Count           int    `json:"count"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (api *API) submitJob(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.Prompt == "" || body.ModelID == "" {
		writeError(w, http.StatusBadRequest, "model_id and prompt are required")
		return
	}
	req := domain.GenerationRequest{
		ModelID:         body.ModelID,
		Prompt:          body.Prompt,
		NegativePrompt:  body.NegativePrompt,
		Style:           body.Style,
		Quality:         body.Quality,
		Variant:         body.Variant,
		Dimensions:      body.Dimensions,
		ClientImage:     body.ClientImage,
		ClientMask:      body.ClientMask,
		Count:           body.Count,
		DurationSeconds: body.DurationSeconds,
	}

	// Price preview first: resolving also rejects unknown models before any
	// network or queue activity.
	adapter, err := api.Registry.Resolve(req.ModelID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownModel) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cost := adapter.EstimateCost(req)

	job, err := api.Engine.Enqueue(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job":            jobView(job),
		"estimated_cost": cost.String(),
		"cost_unit":      string(catalog.CostUnit(adapter.Model().Code)),
	})
}

func (api *API) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := api.Jobs.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]any, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobView(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (api *API) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := api.Jobs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobView(job))
}

func (api *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	if err := api.Engine.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) listSets(w http.ResponseWriter, r *http.Request) {
	sets, err := api.Sets.ListSets(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (api *API) listGenerations(w http.ResponseWriter, r *http.Request) {
	generations, err := api.Sets.ListGenerations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, generations)
}

func jobView(job *domain.Job) map[string]any {
	return map[string]any{
		"id":            job.ID,
		"model_id":      job.Request.ModelID,
		"prompt":        job.Request.Prompt,
		"count":         job.Request.Count,
		"set_type":      string(job.SetType),
		"status":        string(job.Status),
		"set_id":        job.SetID,
		"error_message": job.ErrorMessage,
		"created_at":    job.CreatedAt,
		"updated_at":    job.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
