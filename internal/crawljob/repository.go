package crawljob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/scavengarr/scavengarr/internal/interfaces"
	"github.com/scavengarr/scavengarr/internal/models"
	storage "github.com/scavengarr/scavengarr/internal/storage/badger"
)

// Repository persists CrawlJobs in the shared Badger store. Expiry is a
// field check on read plus a periodic sweep, so a restarted process still
// honors TTLs written before the restart.
type Repository struct {
	db     *storage.DB
	logger arbor.ILogger
}

// NewRepository creates the repository on the shared database.
func NewRepository(db *storage.DB, logger arbor.ILogger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Save upserts the job keyed by its id.
func (r *Repository) Save(ctx context.Context, job *models.CrawlJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.db.Store().Upsert(job.JobID, job); err != nil {
		return fmt.Errorf("saving crawljob %s: %w", job.JobID, err)
	}
	return nil
}

// Get returns the job, or ErrKeyNotFound when missing or expired. An
// expired job is deleted on the way out.
func (r *Repository) Get(ctx context.Context, jobID string) (*models.CrawlJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var job models.CrawlJob
	err := r.db.Store().Get(jobID, &job)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("%w: crawljob %s", interfaces.ErrKeyNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading crawljob %s: %w", jobID, err)
	}

	if job.Expired(time.Now()) {
		if delErr := r.db.Store().Delete(jobID, &models.CrawlJob{}); delErr != nil {
			r.logger.Warn().Err(delErr).Str("job_id", jobID).Msg("Failed to delete expired crawljob")
		}
		return nil, fmt.Errorf("%w: crawljob %s expired", interfaces.ErrKeyNotFound, jobID)
	}
	return &job, nil
}

// Delete removes the job; deleting a missing job is not an error.
func (r *Repository) Delete(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.db.Store().Delete(jobID, &models.CrawlJob{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("deleting crawljob %s: %w", jobID, err)
	}
	return nil
}

// Sweep deletes every expired job. Wired to the cron scheduler.
func (r *Repository) Sweep(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	query := badgerhold.Where("ExpiresAt").Lt(time.Now())
	if err := r.db.Store().DeleteMatching(&models.CrawlJob{}, query); err != nil {
		return fmt.Errorf("sweeping expired crawljobs: %w", err)
	}
	return nil
}

var _ interfaces.CrawlJobRepository = (*Repository)(nil)
