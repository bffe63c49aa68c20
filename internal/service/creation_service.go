package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"societyhub/internal/auth"
	"societyhub/internal/errors"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/repository"
	"societyhub/internal/storage"
)

// maxParallelUploads bounds concurrent uploads for one resource.
const maxParallelUploads = 4

// Media is one file attached to a draft.
type Media struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data" validate:"min=1"`
}

// ListingDraft holds the fields a resident submits for a new listing.
type ListingDraft struct {
	Price       string  `json:"price" validate:"required"`
	Size        string  `json:"size" validate:"required,max=64"`
	Contact     string  `json:"contact" validate:"required,max=32"`
	Description string  `json:"description" validate:"required,max=2000"`
	Photos      []Media `json:"photos" validate:"min=1,max=10,dive"`
}

// ComplaintDraft holds the fields of a new complaint. Photos are optional.
type ComplaintDraft struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Category    string  `json:"category" validate:"required,max=64"`
	Description string  `json:"description" validate:"max=4000"`
	Photos      []Media `json:"photos" validate:"max=5,dive"`
}

// CreationService creates media-backed resources so that a resource is either
// complete with all its media or does not exist.
type CreationService interface {
	CreateListing(ctx context.Context, p auth.Principal, draft ListingDraft) (*model.Listing, error)
	CreateComplaint(ctx context.Context, p auth.Principal, draft ComplaintDraft) (*model.Complaint, error)
}

type creationService struct {
	listings   repository.Repository[model.Listing]
	complaints repository.Repository[model.Complaint]
	uploader   storage.Uploader
	authz      auth.Authorizer
	activity   ActivityRecorder
	validate   *validator.Validate
	log        *logger.Logger
}

// NewCreationService creates a new creation service.
func NewCreationService(
	listings repository.Repository[model.Listing],
	complaints repository.Repository[model.Complaint],
	uploader storage.Uploader,
	authz auth.Authorizer,
	activity ActivityRecorder,
	log *logger.Logger,
) CreationService {
	return &creationService{
		listings:   listings,
		complaints: complaints,
		uploader:   uploader,
		authz:      authz,
		activity:   activity,
		validate:   NewValidator(),
		log:        log.With("service", "CreationService"),
	}
}

func owner(p auth.Principal) model.Owner {
	return model.Owner{OwnerID: p.ID, OwnerDisplayName: p.Name, OwnerLocation: p.House}
}

func (s *creationService) CreateListing(ctx context.Context, p auth.Principal, draft ListingDraft) (*model.Listing, error) {
	if !s.authz.IsAuthorized(ctx, p, auth.ActionCreateListing) {
		return nil, &errors.UnauthorizedError{Principal: p.ID, Action: string(auth.ActionCreateListing)}
	}

	verr := &errors.ValidationError{}
	collectFieldErrors(s.validate.Struct(draft), verr)
	price := parseAmount("price", draft.Price, verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	placeholder := &model.Listing{
		Owner:       owner(p),
		Price:       price,
		Size:        draft.Size,
		Contact:     draft.Contact,
		Description: draft.Description,
		Review:      model.Review{Status: model.StatusPending},
	}
	return createWithMedia(ctx, s, s.listings, model.KindListing, placeholder, p.ID, draft.Photos, func(l *model.Listing) time.Time { return l.CreatedAt })
}

func (s *creationService) CreateComplaint(ctx context.Context, p auth.Principal, draft ComplaintDraft) (*model.Complaint, error) {
	if !s.authz.IsAuthorized(ctx, p, auth.ActionCreateComplaint) {
		return nil, &errors.UnauthorizedError{Principal: p.ID, Action: string(auth.ActionCreateComplaint)}
	}

	verr := &errors.ValidationError{}
	collectFieldErrors(s.validate.Struct(draft), verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	complaint := &model.Complaint{
		Owner:       owner(p),
		Title:       draft.Title,
		Category:    draft.Category,
		Description: draft.Description,
		Review:      model.Review{Status: model.StatusPending},
	}
	if len(draft.Photos) == 0 {
		complaint.Finalized = true
		id, err := s.complaints.Create(ctx, complaint)
		if err != nil {
			return nil, err
		}
		s.activity.Record(ctx, model.KindComplaint, id, model.ActivityCreated, p.ID, "")
		return complaint, nil
	}
	return createWithMedia(ctx, s, s.complaints, model.KindComplaint, complaint, p.ID, draft.Photos, func(c *model.Complaint) time.Time { return c.CreatedAt })
}

// MediaPath returns the storage path of media item index of a resource.
func MediaPath(kind model.Kind, ownerID string, resourceID uuid.UUID, index int, createdAt time.Time) string {
	return fmt.Sprintf("%s/%s/%s_%d_%d", kind, ownerID, resourceID, index, createdAt.UnixMilli())
}

// createWithMedia stores placeholder with empty media, uploads every item and
// then finalizes the record. Any failure after the placeholder exists removes it.
func createWithMedia[T any](
	ctx context.Context,
	s *creationService,
	repo repository.Repository[T],
	kind model.Kind,
	placeholder *T,
	ownerID string,
	media []Media,
	createdAt func(*T) time.Time,
) (*T, error) {
	id, err := repo.Create(ctx, placeholder)
	if err != nil {
		return nil, err
	}
	log := s.log.With("kind", kind, "id", id, "owner", ownerID)

	paths := make([]string, len(media))
	for i := range media {
		paths[i] = MediaPath(kind, ownerID, id, i, createdAt(placeholder))
	}

	urls := make([]string, len(media))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)
	for i := range media {
		g.Go(func() error {
			url, err := s.uploader.Upload(gctx, media[i].Data, paths[i])
			if err != nil {
				return &errors.UploadError{Path: paths[i], Index: i, Err: err}
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("media upload failed", "error", err)
		s.compensate(ctx, kind, id, paths, urls, repo.Delete)
		return nil, err
	}

	finalized, err := repo.Update(ctx, id, repository.Patch{
		"media":     datatypes.JSONSlice[string](urls),
		"finalized": true,
	})
	if err != nil {
		log.Warn("finalize after upload failed", "error", err)
		s.compensate(ctx, kind, id, paths, urls, repo.Delete)
		return nil, err
	}

	s.activity.Record(ctx, kind, id, model.ActivityCreated, ownerID, fmt.Sprintf("%d media", len(urls)))
	return finalized, nil
}

// compensate deletes the placeholder and any uploaded objects. Its own
// failures are logged only, so the caller still sees the original error.
func (s *creationService) compensate(ctx context.Context, kind model.Kind, id uuid.UUID, paths, urls []string, del func(context.Context, uuid.UUID) error) {
	ctx = context.WithoutCancel(ctx)
	log := s.log.With("kind", kind, "id", id)

	if err := del(ctx, id); err != nil {
		log.Error("compensating delete failed", "error", err)
	} else {
		log.Info("placeholder removed after failed creation")
	}

	if remover, ok := s.uploader.(storage.Remover); ok {
		for i, url := range urls {
			if url == "" {
				continue
			}
			if err := remover.Remove(ctx, paths[i]); err != nil {
				log.Warn("remove orphaned media failed", "path", paths[i], "error", err)
			}
		}
	}
	s.activity.Record(ctx, kind, id, model.ActivityCompensated, "", "")
}
