// Package scores settles reputation for a place's creator and contributors.
package scores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	CreatorReward     int64 = 10
	ContributorReward int64 = 5

	defaultFanOutLimit = 8
)

type userStore interface {
	FindIDsByAvatarToken(ctx context.Context, token string) ([]uuid.UUID, error)
	IncrementScore(ctx context.Context, id uuid.UUID, delta int64) error
}

// Service applies settlement increments. Every increment is an independent
// atomic update; nothing is rolled back when a later one fails.
type Service struct {
	users   userStore
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
	limit   int
}

func NewService(users userStore, logg *logger.Logger, m *metrics.EngineMetrics, fanOutLimit int) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if fanOutLimit <= 0 {
		fanOutLimit = defaultFanOutLimit
	}
	return &Service{users: users, logg: logg, metrics: m, limit: fanOutLimit}, nil
}

// SettleScores rewards the creator, then every user whose avatar token is in
// contributorTokens. Tokens matching no user are skipped; tokens matching
// several users reward all of them. Contributor failures are collected and
// returned as a partial failure once every task has finished.
func (s *Service) SettleScores(ctx context.Context, creatorID uuid.UUID, contributorTokens []string) error {
	if creatorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "creator id is required")
	}
	start := time.Now()
	defer func() { s.metrics.ObserveDuration("settle_scores", time.Since(start)) }()

	ctx = s.logg.WithField(ctx, "creator_id", creatorID.String())

	if err := s.users.IncrementScore(ctx, creatorID, CreatorReward); err != nil {
		s.metrics.IncScoreIncrement(metrics.RoleCreator, metrics.ResultFailure)
		s.logg.Error(ctx, "creator reward failed", err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "creator not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reward creator")
	}
	s.metrics.IncScoreIncrement(metrics.RoleCreator, metrics.ResultSuccess)

	var (
		mu       sync.Mutex
		combined error
		failed   int
		rewarded int
	)
	record := func(err error) {
		mu.Lock()
		combined = multierr.Append(combined, err)
		failed++
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(s.limit)
	for _, token := range uniqueTokens(contributorTokens) {
		g.Go(func() error {
			ids, err := s.users.FindIDsByAvatarToken(ctx, token)
			if err != nil {
				s.metrics.IncScoreIncrement(metrics.RoleContributor, metrics.ResultFailure)
				record(fmt.Errorf("resolve token %q: %w", token, err))
				return nil
			}
			if len(ids) == 0 {
				s.metrics.IncScoreIncrement(metrics.RoleContributor, metrics.ResultMissing)
				return nil
			}
			for _, id := range ids {
				if err := s.users.IncrementScore(ctx, id, ContributorReward); err != nil {
					s.metrics.IncScoreIncrement(metrics.RoleContributor, metrics.ResultFailure)
					record(fmt.Errorf("reward user %s: %w", id, err))
					continue
				}
				s.metrics.IncScoreIncrement(metrics.RoleContributor, metrics.ResultSuccess)
				mu.Lock()
				rewarded++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if combined != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"failed":   failed,
			"rewarded": rewarded,
		}), "contributor settlement partially applied", combined)
		return pkgerrors.Wrap(pkgerrors.CodePartialFailure, combined, "contributor settlement partially applied").
			WithDetails(map[string]any{"failed": failed, "rewarded": rewarded})
	}

	s.logg.Info(s.logg.WithField(ctx, "rewarded", rewarded), "scores settled")
	return nil
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
