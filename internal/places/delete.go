package places

import (
	"context"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/outbox"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeletePlace runs the forward-only deletion lifecycle:
//
//	pending -> record_deleted -> scores_settled | scores_failed -> blobs_purged
//
// A failed record delete aborts before anything else runs. A settlement
// failure does not stop the purge and is returned once the purge finished.
// Blob failures are only counted in the report.
func (s *Service) DeletePlace(ctx context.Context, in DeleteInput) (*DeleteReport, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDuration("delete_place", time.Since(start)) }()

	if in.PlaceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place id is required")
	}
	if in.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}

	ctx = s.logg.WithPlaceID(ctx, in.PlaceID.String())
	ctx = s.logg.WithUserID(ctx, in.ActorID.String())
	report := &DeleteReport{PlaceID: in.PlaceID, Stage: enums.LifecycleStagePending}

	var snapshot []string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		stored, err := s.store.DeleteOwnedTx(ctx, tx, in.PlaceID, in.ActorID)
		if err != nil {
			return err
		}
		snapshot = in.MemberTokens
		if snapshot == nil {
			snapshot = stored
		}
		return s.outbox.EmitOnce(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPlaceDeleted,
			AggregateType: enums.AggregatePlace,
			AggregateID:   in.PlaceID,
			Actor:         &outbox.ActorRef{UserID: in.ActorID},
			Data: payloads.PlaceDeletedEvent{
				PlaceID:      in.PlaceID,
				CreatorID:    in.ActorID,
				MemberTokens: snapshot,
				BlobPrefix:   BlobPrefix(in.PlaceID),
				DeletedAt:    time.Now().UTC(),
			},
		})
	})
	if err != nil {
		s.logg.Error(ctx, "delete place record failed", err)
		return report, mapStoreError(err, "delete place")
	}
	report.Stage = enums.LifecycleStageRecordDeleted
	s.logg.Info(ctx, "place record deleted")

	settleErr := s.scores.SettleScores(ctx, in.ActorID, snapshot)
	if settleErr != nil {
		report.Stage = enums.LifecycleStageScoresFailed
		s.logg.Error(ctx, "score settlement failed", settleErr)
	} else {
		report.Stage = enums.LifecycleStageScoresSettled
		report.Settled = true
	}

	purged := NewPurger(s.blobs, s.logg, s.metrics, s.fanOutLimit).Purge(ctx, in.PlaceID)
	report.BlobsFound = purged.Found
	report.BlobsDeleted = purged.Deleted
	report.BlobsFailed = purged.Failed
	report.Stage = enums.LifecycleStageBlobsPurged

	if settleErr != nil {
		return report, settleErr
	}
	return report, nil
}
