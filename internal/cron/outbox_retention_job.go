package cron

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/placemates-backend/pkg/logger"
)

const (
	defaultRetentionDays  = 30
	defaultRetentionChunk = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository publishedPruner
	Days       int
	// Chunk bounds the rows removed per transaction.
	Chunk int
}

// NewOutboxRetentionJob prunes published place events past the retention
// window. Rows the publisher has not drained yet are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:  params.Logger,
		db:    params.DB,
		repo:  params.Repository,
		keep:  time.Duration(params.Days) * 24 * time.Hour,
		chunk: params.Chunk,
		now:   time.Now,
	}
	if params.Days <= 0 {
		job.keep = defaultRetentionDays * 24 * time.Hour
	}
	if job.chunk <= 0 {
		job.chunk = defaultRetentionChunk
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg  *logger.Logger
	db    txRunner
	repo  publishedPruner
	keep  time.Duration
	chunk int
	now   func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes chunk by chunk, committing each, until a short chunk shows the
// backlog is gone. Progress survives a failure or cancellation midway.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.keep)
	var total int64
	chunks := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = j.repo.DeletePublishedBefore(tx, cutoff, j.chunk)
			return err
		})
		if err != nil {
			j.logg.Warn(j.logg.WithField(ctx, "rows_deleted", total), "outbox retention stopped early")
			return err
		}
		total += n
		chunks++
		if n < int64(j.chunk) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"chunks":       chunks,
		"rows_deleted": total,
	}), "outbox retention complete")
	return nil
}
