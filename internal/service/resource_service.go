package service

import (
	"context"

	"github.com/google/uuid"

	"societyhub/internal/auth"
	"societyhub/internal/errors"
	"societyhub/internal/model"
	"societyhub/internal/repository"
)

var (
	approvedAndComplete = map[string]any{"status": string(model.StatusApproved), "finalized": true}
	awaitingReview      = map[string]any{"status": string(model.StatusPending), "finalized": true}
)

const newestFirst = "created_at DESC"

// ListingService is the read side of listings.
type ListingService interface {
	// Public lists approved listings visible to every resident.
	Public(ctx context.Context) ([]*model.Listing, error)
	Mine(ctx context.Context, p auth.Principal) ([]*model.Listing, error)
	Pending(ctx context.Context, p auth.Principal) ([]*model.Listing, error)
	Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*model.Listing, error)
}

// ComplaintService is the read side of complaints.
type ComplaintService interface {
	Mine(ctx context.Context, p auth.Principal) ([]*model.Complaint, error)
	Pending(ctx context.Context, p auth.Principal) ([]*model.Complaint, error)
}

type listingService struct {
	repo  repository.Repository[model.Listing]
	authz auth.Authorizer
}

// NewListingService creates a new listing read service.
func NewListingService(repo repository.Repository[model.Listing], authz auth.Authorizer) ListingService {
	return &listingService{repo: repo, authz: authz}
}

func (s *listingService) Public(ctx context.Context) ([]*model.Listing, error) {
	return s.repo.List(ctx, repository.Query{Filter: approvedAndComplete, Order: newestFirst})
}

func (s *listingService) Mine(ctx context.Context, p auth.Principal) ([]*model.Listing, error) {
	return s.repo.List(ctx, repository.Query{Filter: map[string]any{"owner_id": p.ID}, Order: newestFirst})
}

func (s *listingService) Pending(ctx context.Context, p auth.Principal) ([]*model.Listing, error) {
	if err := authorizeReview(ctx, s.authz, p, model.KindListing); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, repository.Query{Filter: awaitingReview, Order: "created_at ASC"})
}

// Get hides listings that are not public from everyone except their owner
// and reviewers.
func (s *listingService) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*model.Listing, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	public := l.Status == model.StatusApproved && l.Finalized
	if public || l.OwnerID == p.ID || s.authz.IsAuthorized(ctx, p, auth.ActionFor(model.KindListing, auth.VerbReview)) {
		return l, nil
	}
	return nil, &errors.NotFoundError{Kind: string(model.KindListing), ID: id.String()}
}

type complaintService struct {
	repo  repository.Repository[model.Complaint]
	authz auth.Authorizer
}

// NewComplaintService creates a new complaint read service.
func NewComplaintService(repo repository.Repository[model.Complaint], authz auth.Authorizer) ComplaintService {
	return &complaintService{repo: repo, authz: authz}
}

func (s *complaintService) Mine(ctx context.Context, p auth.Principal) ([]*model.Complaint, error) {
	return s.repo.List(ctx, repository.Query{Filter: map[string]any{"owner_id": p.ID}, Order: newestFirst})
}

func (s *complaintService) Pending(ctx context.Context, p auth.Principal) ([]*model.Complaint, error) {
	if err := authorizeReview(ctx, s.authz, p, model.KindComplaint); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, repository.Query{Filter: awaitingReview, Order: "created_at ASC"})
}

func authorizeReview(ctx context.Context, authz auth.Authorizer, p auth.Principal, kind model.Kind) error {
	act := auth.ActionFor(kind, auth.VerbReview)
	if !authz.IsAuthorized(ctx, p, act) {
		return &errors.UnauthorizedError{Principal: p.ID, Action: string(act)}
	}
	return nil
}
