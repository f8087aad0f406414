package places

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	"github.com/angelmondragon/placemates-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/identity"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/angelmondragon/placemates-backend/pkg/outbox"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/placemates-backend/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type imageSlot struct {
	index int
	ref   string
}

// CreatePlace writes the place with empty member and image sets, then uploads
// every set image slot and appends its location. The record is never rolled
// back: failed slots are reported in the result alongside a partial failure.
func (s *Service) CreatePlace(ctx context.Context, creator identity.Identity, draft Draft) (*CreateResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDuration("create_place", time.Since(start)) }()

	if !creator.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator identity requires id and avatar token")
	}
	if err := draft.Coordinate.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinate")
	}
	if len(draft.Images) > ImageSlots {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d images are allowed", ImageSlots)
	}

	placeID := s.store.NewID()
	ctx = s.logg.WithPlaceID(ctx, placeID.String())
	ctx = s.logg.WithUserID(ctx, creator.ID.String())

	street, city := strings.TrimSpace(draft.Street), strings.TrimSpace(draft.City)
	street, city = s.fillAddress(ctx, draft.Coordinate, street, city)

	slots := setSlots(draft.Images)
	place := &models.Place{
		ID:              placeID,
		CreatorID:       creator.ID,
		CreatorName:     strings.TrimSpace(creator.DisplayName),
		CreatorAvatar:   creator.AvatarToken,
		Coordinate:      draft.Coordinate,
		Street:          street,
		City:            city,
		PreviewMapImage: strings.TrimSpace(draft.PreviewMapImage),
		Description:     strings.TrimSpace(draft.Description),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.store.CreateTx(ctx, tx, place); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPlaceCreated,
			AggregateType: enums.AggregatePlace,
			AggregateID:   placeID,
			Actor:         &outbox.ActorRef{UserID: creator.ID, Name: place.CreatorName},
			Data: payloads.PlaceCreatedEvent{
				PlaceID:   placeID,
				CreatorID: creator.ID,
				Slots:     len(slots),
				CreatedAt: place.CreatedAt,
			},
		})
	})
	if err != nil {
		s.logg.Error(ctx, "create place failed", err)
		return nil, mapStoreError(err, "create place")
	}
	s.logg.Info(s.logg.WithField(ctx, "slots", len(slots)), "place created")

	result := &CreateResult{PlaceID: placeID, Uploaded: []UploadedImage{}, Failed: []FailedImage{}}
	if len(slots) == 0 {
		return result, nil
	}

	var (
		mu       sync.Mutex
		combined error
	)
	var g errgroup.Group
	g.SetLimit(s.uploadLimit)
	for _, slot := range slots {
		g.Go(func() error {
			uploaded, err := s.uploadSlot(ctx, placeID, slot)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.metrics.IncImageUpload(metrics.ResultFailure)
				combined = multierr.Append(combined, fmt.Errorf("slot %d: %w", slot.index, err))
				result.Failed = append(result.Failed, FailedImage{Slot: slot.index, Error: err.Error()})
				return nil
			}
			s.metrics.IncImageUpload(metrics.ResultSuccess)
			result.Uploaded = append(result.Uploaded, uploaded)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Uploaded, func(i, j int) bool { return result.Uploaded[i].Slot < result.Uploaded[j].Slot })
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].Slot < result.Failed[j].Slot })

	if combined != nil {
		s.logg.Error(s.logg.WithField(ctx, "failed_slots", len(result.Failed)), "place image upload partially failed", combined)
		return result, pkgerrors.Wrap(pkgerrors.CodePartialFailure, combined, "some place images failed to upload").
			WithDetails(result)
	}
	return result, nil
}

func (s *Service) uploadSlot(ctx context.Context, placeID uuid.UUID, slot imageSlot) (UploadedImage, error) {
	data, err := s.fetcher.Fetch(ctx, slot.ref)
	if err != nil {
		return UploadedImage{}, err
	}
	contentType, err := detectImageType(data)
	if err != nil {
		return UploadedImage{}, err
	}
	object := ImageObject(placeID, slot.index)
	if err := s.blobs.Upload(ctx, object, contentType, data); err != nil {
		return UploadedImage{}, fmt.Errorf("upload %s: %w", object, err)
	}
	location := s.blobs.DownloadURL(object)
	if err := s.store.AppendImage(ctx, placeID, slot.index, location); err != nil {
		return UploadedImage{}, fmt.Errorf("append image location: %w", err)
	}
	return UploadedImage{Slot: slot.index, Object: object, Location: location}, nil
}

// fillAddress fills an empty street or city from a reverse lookup. Lookup
// failures leave the draft values untouched.
func (s *Service) fillAddress(ctx context.Context, coord types.Coordinate, street, city string) (string, string) {
	if s.geocoder == nil || (street != "" && city != "") {
		return street, city
	}
	addr, err := s.geocoder.ReverseLookup(ctx, coord.Lat, coord.Lng)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "reverse lookup failed")
		return street, city
	}
	if addr == nil {
		return street, city
	}
	if street == "" {
		street = addr.Street
	}
	if city == "" {
		city = addr.City
	}
	return street, city
}

func setSlots(refs []string) []imageSlot {
	slots := make([]imageSlot, 0, len(refs))
	for idx, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		slots = append(slots, imageSlot{index: idx, ref: ref})
	}
	return slots
}
