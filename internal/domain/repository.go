package domain

import "context"

// JobRepository defines persistence for job entities. All writes are
// single-row atomic updates; TransitionStatus is the guard that keeps the two
// resumption paths (submission-failure fallback and correction callback) from
// both driving the same job into the edit phase.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)

	// TransitionStatus atomically advances a job from one status to another.
	// It reports false when the job was not in the expected state, in which
	// case the caller lost the race and must not proceed.
	TransitionStatus(ctx context.Context, jobID string, from, to JobStatus) (bool, error)

	MarkCompleted(ctx context.Context, jobID, resultURL string) error
	MarkFailed(ctx context.Context, jobID, message string) error

	// ListCompleted returns completed jobs ordered by creation time
	// descending, along with the total completed count.
	ListCompleted(ctx context.Context, limit, offset int) ([]Job, int, error)
}
