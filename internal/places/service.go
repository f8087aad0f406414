// Package places owns place creation, reads and the deletion lifecycle.
package places

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/maps"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/angelmondragon/placemates-backend/pkg/outbox"
	"github.com/angelmondragon/placemates-backend/pkg/storage/gcs"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultFanOutLimit = 8

type placeStore interface {
	NewID() uuid.UUID
	CreateTx(ctx context.Context, tx *gorm.DB, place *models.Place) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Place, error)
	ListMemberTokens(ctx context.Context, placeID uuid.UUID) ([]string, error)
	ListImages(ctx context.Context, placeID uuid.UUID) ([]models.PlaceImage, error)
	AppendImage(ctx context.Context, placeID uuid.UUID, slot int, location string) error
	DeleteOwnedTx(ctx context.Context, tx *gorm.DB, placeID, creatorID uuid.UUID) ([]string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type blobStore interface {
	List(ctx context.Context, prefix string) ([]gcs.Object, error)
	Upload(ctx context.Context, object, contentType string, data []byte) error
	Delete(ctx context.Context, object string) error
	DownloadURL(object string) string
}

type scoreSettler interface {
	SettleScores(ctx context.Context, creatorID uuid.UUID, contributorTokens []string) error
}

type imageFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

type geocoder interface {
	ReverseLookup(ctx context.Context, lat, lng float64) (*maps.Address, error)
}

// ServiceParams wires the places service.
type ServiceParams struct {
	Logger      *logger.Logger
	Metrics     *metrics.EngineMetrics
	Store       placeStore
	Tx          txRunner
	Outbox      outboxPublisher
	Blobs       blobStore
	Scores      scoreSettler
	Fetcher     imageFetcher
	Geocoder    geocoder
	FanOutLimit int
	UploadLimit int
}

// Service runs the place engines against the document and blob stores.
type Service struct {
	logg        *logger.Logger
	metrics     *metrics.EngineMetrics
	store       placeStore
	tx          txRunner
	outbox      outboxPublisher
	blobs       blobStore
	scores      scoreSettler
	fetcher     imageFetcher
	geocoder    geocoder
	fanOutLimit int
	uploadLimit int
}

// NewService validates params and builds the service. Geocoder is optional.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Store == nil:
		return nil, fmt.Errorf("places store required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Blobs == nil:
		return nil, fmt.Errorf("blob store required")
	case params.Scores == nil:
		return nil, fmt.Errorf("score settler required")
	case params.Fetcher == nil:
		return nil, fmt.Errorf("image fetcher required")
	}
	fanOut := params.FanOutLimit
	if fanOut <= 0 {
		fanOut = defaultFanOutLimit
	}
	uploads := params.UploadLimit
	if uploads <= 0 {
		uploads = ImageSlots
	}
	return &Service{
		logg:        params.Logger,
		metrics:     params.Metrics,
		store:       params.Store,
		tx:          params.Tx,
		outbox:      params.Outbox,
		blobs:       params.Blobs,
		scores:      params.Scores,
		fetcher:     params.Fetcher,
		geocoder:    params.Geocoder,
		fanOutLimit: fanOut,
		uploadLimit: uploads,
	}, nil
}

// Get returns the place with its member and image sets.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*PlaceDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place id is required")
	}
	place, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "load place")
	}
	members, err := s.store.ListMemberTokens(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "load place members")
	}
	images, err := s.store.ListImages(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "load place images")
	}
	return FromModel(place, members, images), nil
}

func mapStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "place not found")
	case errors.Is(err, ErrNotOwner):
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "only the creator can delete a place")
	default:
		return pkgerrors.FromStore(err, msg)
	}
}
