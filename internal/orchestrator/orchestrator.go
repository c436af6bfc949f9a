package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/providers/assets"
	"server/internal/providers/image"
	"server/internal/providers/prompt"
	"server/internal/providers/straighten"
)

// Options wires the orchestrator's collaborators. Jobs, Uploads, Corrector
// and Editor are required; Enhancer is optional and only consulted for
// custom prompts.
type Options struct {
	Jobs      domain.JobRepository
	Uploads   assets.Uploader
	Corrector straighten.Submitter
	Editor    image.Editor
	Enhancer  prompt.Enhancer
	Logger    zerolog.Logger
}

// Orchestrator drives a job from creation to a terminal state. Two paths can
// resume a pending job: the detached fallback taken when the correction
// service declines the submission, and the asynchronous correction callback.
// Both must claim the pending -> processing transition before entering the
// edit pipeline, so exactly one of them ever proceeds.
type Orchestrator struct {
	jobs      domain.JobRepository
	uploads   assets.Uploader
	corrector straighten.Submitter
	editor    image.Editor
	enhancer  prompt.Enhancer
	logger    zerolog.Logger
	pipelines sync.WaitGroup
}

// fallbackWorkBudget bounds the detached edit pipeline started when the
// correction service declines a submission. The work outlives the upload
// request, so it runs under its own deadline rather than the request context.
const fallbackWorkBudget = 10 * time.Minute

// New validates the wiring and constructs an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Jobs == nil {
		return nil, errors.New("orchestrator: job repository is required")
	}
	if opts.Uploads == nil {
		return nil, errors.New("orchestrator: asset uploader is required")
	}
	if opts.Corrector == nil {
		return nil, errors.New("orchestrator: correction submitter is required")
	}
	if opts.Editor == nil {
		return nil, errors.New("orchestrator: image editor is required")
	}
	return &Orchestrator{
		jobs:      opts.Jobs,
		uploads:   opts.Uploads,
		corrector: opts.Corrector,
		editor:    opts.Editor,
		enhancer:  opts.Enhancer,
		logger:    opts.Logger,
	}, nil
}

// CreateJobInput carries the upload request payload.
type CreateJobInput struct {
	Data           []byte
	MIMEType       string
	Prompt         string
	IsCustomPrompt bool
}

// CreateJob uploads the original image, persists a pending job, and offers it
// to the perspective-correction collaborator. A declined submission is not a
// job failure: the edit pipeline starts immediately against the original
// bytes instead, detached from the request so the caller gets its polling
// handle without waiting out a slow model call. The returned job ID is the
// caller's polling handle in both cases.
func (o *Orchestrator) CreateJob(ctx context.Context, in CreateJobInput) (string, error) {
	originalURL, err := o.uploads.Upload(ctx, in.Data, in.MIMEType, assets.FolderOriginals)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	job := &domain.Job{
		ID:             uuid.NewString(),
		Status:         domain.JobStatusPending,
		OriginalURL:    originalURL,
		Prompt:         in.Prompt,
		IsCustomPrompt: in.IsCustomPrompt,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	sub := o.corrector.Submit(ctx, originalURL, job.ID)
	if sub.Accepted() {
		o.logger.Info().
			Str("job_id", job.ID).
			Msg("correction service accepted job, awaiting callback")
		return job.ID, nil
	}

	o.logger.Warn().
		Str("job_id", job.ID).
		Str("reason", sub.Reason).
		Msg("correction service declined, editing original directly")

	claimed, err := o.jobs.TransitionStatus(ctx, job.ID, domain.JobStatusPending, domain.JobStatusProcessing)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("claim fallback transition")
		return job.ID, nil
	}
	if claimed {
		jobID := job.ID
		data := in.Data
		mimeType := in.MIMEType
		o.pipelines.Add(1)
		go func() {
			defer o.pipelines.Done()
			pipelineCtx, cancel := context.WithTimeout(context.Background(), fallbackWorkBudget)
			defer cancel()
			o.runEditPipeline(pipelineCtx, jobID, data, mimeType)
		}()
	}

	return job.ID, nil
}

// Wait blocks until all detached fallback pipelines have finished. Called
// during shutdown so in-flight jobs reach a terminal state.
func (o *Orchestrator) Wait() {
	o.pipelines.Wait()
}

// HandleCorrectionCallback resumes a job with the corrected image delivered
// by the collaborator's webhook. Unknown job IDs and jobs no longer pending
// (duplicate or late callbacks, or jobs already claimed by the fallback path)
// are logged and dropped without an error; the webhook sender has already
// been acknowledged by the HTTP layer.
func (o *Orchestrator) HandleCorrectionCallback(ctx context.Context, jobID, imagePayload string) error {
	if _, err := o.jobs.GetByID(ctx, jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn().Str("job_id", jobID).Msg("correction callback for unknown job, discarding")
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}

	claimed, err := o.jobs.TransitionStatus(ctx, jobID, domain.JobStatusPending, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("claim callback transition: %w", err)
	}
	if !claimed {
		o.logger.Warn().Str("job_id", jobID).Msg("correction callback for non-pending job, discarding")
		return nil
	}

	data, err := DecodeCallbackImage(imagePayload)
	if err != nil {
		o.fail(ctx, jobID, fmt.Errorf("decode corrected image: %w", err))
		return nil
	}

	// The collaborator always delivers JPEG.
	o.runEditPipeline(ctx, jobID, data, "image/jpeg")
	return nil
}

// runEditPipeline is the shared resumption path. It re-reads the job's stored
// prompt and flag so both paths use identical inputs, optionally enhances the
// prompt, wraps it with the fixed preamble, invokes the generative edit, and
// records the terminal state.
func (o *Orchestrator) runEditPipeline(ctx context.Context, jobID string, data []byte, mimeType string) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("edit pipeline: load job")
		return
	}

	advanced, err := o.jobs.TransitionStatus(ctx, jobID, domain.JobStatusProcessing, domain.JobStatusEnhancing)
	if err != nil {
		o.fail(ctx, jobID, fmt.Errorf("advance to enhancing: %w", err))
		return
	}
	if !advanced {
		o.logger.Warn().Str("job_id", jobID).Str("status", string(job.Status)).Msg("edit pipeline: job not in processing state, skipping")
		return
	}

	finalPrompt := job.Prompt
	if job.IsCustomPrompt && o.enhancer != nil {
		enhanced, err := o.enhancer.Enhance(ctx, job.Prompt)
		if err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Msg("prompt enhancement failed, using original prompt")
		} else if s := strings.TrimSpace(enhanced); s != "" {
			finalPrompt = s
		}
	}
	wrapped := prompt.Wrap(finalPrompt)

	result, err := o.editor.Edit(ctx, data, mimeType, wrapped)
	if err != nil {
		o.fail(ctx, jobID, fmt.Errorf("generative edit: %w", err))
		return
	}

	resultURL, err := o.uploads.Upload(ctx, result.Data, result.MIMEType, assets.FolderResults)
	if err != nil {
		o.fail(ctx, jobID, fmt.Errorf("upload result: %w", err))
		return
	}

	if err := o.jobs.MarkCompleted(ctx, jobID, resultURL); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("mark job completed")
		return
	}
	o.logger.Info().Str("job_id", jobID).Str("result_url", resultURL).Msg("job completed")
}

func (o *Orchestrator) fail(ctx context.Context, jobID string, cause error) {
	o.logger.Error().Err(cause).Str("job_id", jobID).Msg("job failed")
	if err := o.jobs.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("mark job failed")
	}
}

// DecodeCallbackImage decodes the base64 image delivered by the correction
// webhook, tolerating an optional data-URI prefix and missing padding.
func DecodeCallbackImage(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if idx := strings.IndexByte(payload, ','); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	if payload == "" {
		return nil, errors.New("empty image payload")
	}
	if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}
