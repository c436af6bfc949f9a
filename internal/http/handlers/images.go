package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/orchestrator"
)

// maxUploadBytes bounds the multipart form we are willing to buffer.
const maxUploadBytes = 15 << 20

// callbackWorkBudget bounds the detached edit pipeline started by a
// correction callback after the webhook sender has been acknowledged.
const callbackWorkBudget = 10 * time.Minute

// ProcessImage accepts a multipart upload with an image file and a prompt,
// creates the job, and returns its ID for polling. Creation errors are the
// only pipeline errors surfaced synchronously.
func (a *App) ProcessImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "No image uploaded")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, "No image uploaded")
		return
	}
	defer file.Close()

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if prompt == "" {
		a.error(w, http.StatusBadRequest, "Prompt is required")
		return
	}
	isCustomPrompt := r.FormValue("isCustomPrompt") == "true"

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil || len(data) == 0 {
		a.error(w, http.StatusBadRequest, "No image uploaded")
		return
	}
	if len(data) > maxUploadBytes {
		a.error(w, http.StatusBadRequest, "Image too large")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	jobID, err := a.Broker.CreateJob(r.Context(), orchestrator.CreateJobInput{
		Data:           data,
		MIMEType:       mimeType,
		Prompt:         prompt,
		IsCustomPrompt: isCustomPrompt,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("process image")
		a.error(w, http.StatusInternalServerError, "Failed to process image")
		return
	}

	a.json(w, http.StatusOK, map[string]string{"jobId": jobID})
}

type correctionCallbackRequest struct {
	RequestID string `json:"requestId"`
	Image     string `json:"image"`
}

// CorrectionCallback receives the corrected image from the straightening
// service. The sender is acknowledged as soon as the body parses; the edit
// pipeline then runs detached so a slow model call cannot trigger webhook
// retries. Downstream failures land on the job row, never in this response.
func (a *App) CorrectionCallback(w http.ResponseWriter, r *http.Request) {
	var req correctionCallbackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid callback payload")
		return
	}
	a.Logger.Info().Str("job_id", req.RequestID).Msg("correction callback received")

	a.json(w, http.StatusOK, map[string]bool{"success": true})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callbackWorkBudget)
		defer cancel()
		if err := a.Broker.HandleCorrectionCallback(ctx, req.RequestID, req.Image); err != nil {
			a.Logger.Error().Err(err).Str("job_id", req.RequestID).Msg("correction callback processing")
		}
	}()
}

type jobStatusResponse struct {
	JobID     string  `json:"jobId"`
	Status    string  `json:"status"`
	ResultURL *string `json:"resultUrl"`
	Error     *string `json:"error"`
}

// JobStatus returns the polled projection of a job.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "Job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("get job status")
		a.error(w, http.StatusInternalServerError, "Failed to get job status")
		return
	}

	a.json(w, http.StatusOK, jobStatusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		ResultURL: nullable(job.ResultURL),
		Error:     nullable(job.ErrorMessage),
	})
}

type galleryItem struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	OriginalURL string    `json:"originalUrl"`
	ResultURL   string    `json:"resultUrl"`
	Prompt      string    `json:"prompt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Gallery lists completed jobs newest first with clamped pagination.
func (a *App) Gallery(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	q := domain.NormalizeGalleryQuery(page, limit)

	jobs, total, err := a.Jobs.ListCompleted(r.Context(), q.Limit, q.Offset())
	if err != nil {
		a.Logger.Error().Err(err).Msg("list gallery")
		a.error(w, http.StatusInternalServerError, "Failed to fetch gallery")
		return
	}

	items := make([]galleryItem, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, galleryItem{
			ID:          job.ID,
			Status:      string(job.Status),
			OriginalURL: job.OriginalURL,
			ResultURL:   job.ResultURL,
			Prompt:      job.Prompt,
			CreatedAt:   job.CreatedAt,
		})
	}

	a.json(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": domain.NewGalleryPagination(q, total),
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
