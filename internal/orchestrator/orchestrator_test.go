package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
	"server/internal/providers/image"
	"server/internal/providers/prompt"
	"server/internal/providers/straighten"
)

type fakeRepo struct {
	mu         sync.Mutex
	jobs       map[string]*domain.Job
	failCreate bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[string]*domain.Job)}
}

func (r *fakeRepo) Create(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errors.New("insert failed")
	}
	copied := *job
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	r.jobs[job.ID] = &copied
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *fakeRepo) TransitionStatus(_ context.Context, jobID string, from, to domain.JobStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != from {
		return false, nil
	}
	job.Status = to
	job.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeRepo) MarkCompleted(_ context.Context, jobID, resultURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusCompleted
	job.ResultURL = resultURL
	job.ErrorMessage = ""
	job.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, jobID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = message
	job.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRepo) ListCompleted(_ context.Context, limit, offset int) ([]domain.Job, int, error) {
	return nil, 0, nil
}

// checkInvariants asserts that resultUrl is set iff completed and error is
// set iff failed, for every stored job.
func (r *fakeRepo) checkInvariants(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, job := range r.jobs {
		assert.Equal(t, job.Status == domain.JobStatusCompleted, job.ResultURL != "",
			"job %s: resultUrl/completed invariant violated (status=%s)", id, job.Status)
		assert.Equal(t, job.Status == domain.JobStatusFailed, job.ErrorMessage != "",
			"job %s: error/failed invariant violated (status=%s)", id, job.Status)
	}
}

type fakeUploader struct {
	mu       sync.Mutex
	uploads  []uploadCall
	failOn   string
	sequence int
}

type uploadCall struct {
	data   []byte
	mime   string
	folder string
}

func (u *fakeUploader) Upload(_ context.Context, data []byte, mimeType, folder string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failOn == folder {
		return "", errors.New("storage unreachable")
	}
	u.uploads = append(u.uploads, uploadCall{data: append([]byte(nil), data...), mime: mimeType, folder: folder})
	u.sequence++
	return fmt.Sprintf("https://cdn.test/%s/%d.jpg", folder, u.sequence), nil
}

type fakeCorrector struct {
	mu          sync.Mutex
	submission  straighten.Submission
	submissions []string
}

func (c *fakeCorrector) Submit(_ context.Context, imageURL, requestID string) straighten.Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submissions = append(c.submissions, requestID)
	return c.submission
}

type fakeEditor struct {
	mu      sync.Mutex
	result  *image.EditResult
	err     error
	block   chan struct{}
	calls   int
	inputs  [][]byte
	mimes   []string
	prompts []string
}

func (e *fakeEditor) Edit(_ context.Context, data []byte, mimeType, finalPrompt string) (*image.EditResult, error) {
	if e.block != nil {
		<-e.block
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.inputs = append(e.inputs, append([]byte(nil), data...))
	e.mimes = append(e.mimes, mimeType)
	e.prompts = append(e.prompts, finalPrompt)
	if e.err != nil {
		return nil, e.err
	}
	if e.result != nil {
		return e.result, nil
	}
	return &image.EditResult{Data: []byte("edited"), MIMEType: "image/png"}, nil
}

type fakeEnhancer struct {
	mu     sync.Mutex
	text   string
	err    error
	calls  int
	inputs []string
}

func (e *fakeEnhancer) Enhance(_ context.Context, userPrompt string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.inputs = append(e.inputs, userPrompt)
	return e.text, e.err
}

type fixture struct {
	repo      *fakeRepo
	uploader  *fakeUploader
	corrector *fakeCorrector
	editor    *fakeEditor
	enhancer  *fakeEnhancer
	orch      *Orchestrator
}

func newFixture(t *testing.T, accepted bool) *fixture {
	t.Helper()
	f := &fixture{
		repo:      newFakeRepo(),
		uploader:  &fakeUploader{},
		corrector: &fakeCorrector{},
		editor:    &fakeEditor{},
		enhancer:  &fakeEnhancer{text: "enhanced instruction"},
	}
	if accepted {
		f.corrector.submission = straighten.Submission{State: straighten.SubmissionAccepted}
	} else {
		f.corrector.submission = straighten.Submission{State: straighten.SubmissionDeclined, Reason: "timeout"}
	}
	orch, err := New(Options{
		Jobs:      f.repo,
		Uploads:   f.uploader,
		Corrector: f.corrector,
		Editor:    f.editor,
		Enhancer:  f.enhancer,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

func TestCreateJobFallbackCompletesWithoutCallback(t *testing.T) {
	f := newFixture(t, false)

	jobID, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:     []byte("original-bytes"),
		MIMEType: "image/jpeg",
		Prompt:   "brighten the living room",
	})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	f.orch.Wait()

	job, err := f.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.NotEmpty(t, job.ResultURL)
	assert.Empty(t, job.ErrorMessage)

	require.Equal(t, 1, f.editor.calls)
	assert.Equal(t, []byte("original-bytes"), f.editor.inputs[0])
	assert.Equal(t, "image/jpeg", f.editor.mimes[0])

	f.repo.checkInvariants(t)
}

func TestCreateJobAcceptedLeavesJobPending(t *testing.T) {
	f := newFixture(t, true)

	jobID, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:     []byte("original-bytes"),
		MIMEType: "image/jpeg",
		Prompt:   "fix the sky",
	})
	require.NoError(t, err)

	job, err := f.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Zero(t, f.editor.calls)
	assert.Equal(t, []string{jobID}, f.corrector.submissions)

	f.repo.checkInvariants(t)
}

func TestCorrectionCallbackDrivesCompletion(t *testing.T) {
	f := newFixture(t, true)

	jobID, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:     []byte("original-bytes"),
		MIMEType: "image/jpeg",
		Prompt:   "fix the sky",
	})
	require.NoError(t, err)

	corrected := []byte("corrected-bytes")
	payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(corrected)
	require.NoError(t, f.orch.HandleCorrectionCallback(context.Background(), jobID, payload))

	job, err := f.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)

	require.Equal(t, 1, f.editor.calls)
	assert.Equal(t, corrected, f.editor.inputs[0])
	assert.Equal(t, "image/jpeg", f.editor.mimes[0])

	f.repo.checkInvariants(t)
}

func TestCorrectionCallbackUnknownJobIsDiscarded(t *testing.T) {
	f := newFixture(t, true)

	err := f.orch.HandleCorrectionCallback(context.Background(), "no-such-job", base64.StdEncoding.EncodeToString([]byte("x")))
	require.NoError(t, err)
	assert.Zero(t, f.editor.calls)
	assert.Empty(t, f.repo.jobs)
}

func TestDuplicateCallbackDoesNotRedriveJob(t *testing.T) {
	f := newFixture(t, true)

	jobID, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:     []byte("original-bytes"),
		MIMEType: "image/jpeg",
		Prompt:   "fix the sky",
	})
	require.NoError(t, err)

	payload := base64.StdEncoding.EncodeToString([]byte("corrected"))
	require.NoError(t, f.orch.HandleCorrectionCallback(context.Background(), jobID, payload))
	require.NoError(t, f.orch.HandleCorrectionCallback(context.Background(), jobID, payload))

	assert.Equal(t, 1, f.editor.calls)

	job, err := f.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
}

func TestEditPipelineRunsOnceWhenBothPathsFire(t *testing.T) {
	// Correction declined: the creation call starts the fallback edit. A
	// stray callback arriving afterwards must find the job past pending and
	// drop.
	f := newFixture(t, false)

	jobID, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:     []byte("original-bytes"),
		MIMEType: "image/jpeg",
		Prompt:   "fix the sky",
	})
	require.NoError(t, err)
	f.orch.Wait()

	payload := base64.StdEncoding.EncodeToString([]byte("corrected"))
	require.NoError(t, f.orch.HandleCorrectionCallback(context.Background(), jobID, payload))

	assert.Equal(t, 1, f.editor.calls)
	f.repo.checkInvariants(t)
}

func TestPlainPromptSkipsEnhancement(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:           []byte("original-bytes"),
		MIMEType:       "image/jpeg",
		Prompt:         "brighten the living room",
		IsCustomPrompt: false,
	})
	require.NoError(t, err)
	f.orch.Wait()

	assert.Zero(t, f.enhancer.calls)
	require.Equal(t, 1, f.editor.calls)
	assert.Equal(t, prompt.Wrap("brighten the living room"), f.editor.prompts[0])
}

func TestCustomPromptIsEnhancedThenWrapped(t *testing.T) {
	f := newFixture(t, false)
	f.enhancer.text = "Brighten the living room with soft natural window light."

	_, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:           []byte("original-bytes"),
		MIMEType:       "image/jpeg",
		Prompt:         "brighten it",
		IsCustomPrompt: true,
	})
	require.NoError(t, err)
	f.orch.Wait()

	assert.Equal(t, 1, f.enhancer.calls)
	assert.Equal(t, []string{"brighten it"}, f.enhancer.inputs)
	require.Equal(t, 1, f.editor.calls)
	assert.Equal(t, prompt.Wrap(f.enhancer.text), f.editor.prompts[0])
}

func TestEnhancementFailureFallsBackToOriginalPrompt(t *testing.T) {
	f := newFixture(t, false)
	f.enhancer.err = errors.New("llm unavailable")

	jobID, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:           []byte("original-bytes"),
		MIMEType:       "image/jpeg",
		Prompt:         "brighten it",
		IsCustomPrompt: true,
	})
	require.NoError(t, err)
	f.orch.Wait()

	require.Equal(t, 1, f.editor.calls)
	assert.Equal(t, prompt.Wrap("brighten it"), f.editor.prompts[0])

	job, err := f.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
}

func TestEditFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t, false)
	f.editor.err = domain.ErrNoImageReturned

	jobID, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:     []byte("original-bytes"),
		MIMEType: "image/jpeg",
		Prompt:   "fix the sky",
	})
	require.NoError(t, err)
	f.orch.Wait()

	job, err := f.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "no image returned")
	assert.Empty(t, job.ResultURL)

	f.repo.checkInvariants(t)
}

func TestResultUploadFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t, false)

	jobID, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:     []byte("original-bytes"),
		MIMEType: "image/jpeg",
		Prompt:   "fix the sky",
	})
	require.NoError(t, err)
	f.orch.Wait()
	// First job is terminal; fail the result upload on the callback-free
	// fallback path of a second job.
	f.uploader.failOn = "propenhance/results"

	jobID2, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:     []byte("more-bytes"),
		MIMEType: "image/jpeg",
		Prompt:   "fix the lawn",
	})
	require.NoError(t, err)
	f.orch.Wait()

	first, err := f.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, first.Status)

	second, err := f.repo.GetByID(context.Background(), jobID2)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, second.Status)
	assert.Contains(t, second.ErrorMessage, "upload result")

	f.repo.checkInvariants(t)
}

func TestOriginalUploadFailureAbortsCreation(t *testing.T) {
	f := newFixture(t, false)
	f.uploader.failOn = "propenhance/originals"

	_, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:     []byte("original-bytes"),
		MIMEType: "image/jpeg",
		Prompt:   "fix the sky",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUploadFailed)
	assert.Empty(t, f.repo.jobs, "no partial job row on upload failure")
	assert.Empty(t, f.corrector.submissions)
}

func TestCreateJobDeclineReturnsBeforeEditFinishes(t *testing.T) {
	// The fallback edit must not hold the creation call open: the caller
	// needs its polling handle back well inside the server's write timeout
	// even when the model call is slow.
	f := newFixture(t, false)
	f.editor.block = make(chan struct{})

	jobID, err := f.orch.CreateJob(context.Background(), CreateJobInput{
		Data:     []byte("original-bytes"),
		MIMEType: "image/jpeg",
		Prompt:   "fix the sky",
	})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	// The editor is still gated, so the job cannot be terminal yet.
	job, err := f.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.False(t, job.Status.Terminal(), "job reached %s while the edit was still running", job.Status)

	close(f.editor.block)
	f.orch.Wait()

	job, err = f.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	f.repo.checkInvariants(t)
}

func TestDecodeCallbackImage(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	encoded := base64.StdEncoding.EncodeToString(raw)

	t.Run("plain base64", func(t *testing.T) {
		data, err := DecodeCallbackImage(encoded)
		require.NoError(t, err)
		assert.Equal(t, raw, data)
	})

	t.Run("data uri", func(t *testing.T) {
		data, err := DecodeCallbackImage("data:image/jpeg;base64," + encoded)
		require.NoError(t, err)
		assert.Equal(t, raw, data)
	})

	t.Run("missing padding", func(t *testing.T) {
		data, err := DecodeCallbackImage(strings.TrimRight(encoded, "="))
		require.NoError(t, err)
		assert.Equal(t, raw, data)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := DecodeCallbackImage("")
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeCallbackImage("!!not-base64!!")
		assert.Error(t, err)
	})
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Jobs: newFakeRepo()})
	assert.Error(t, err)
}
