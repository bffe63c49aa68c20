package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"societyhub/internal/auth"
	"societyhub/internal/clock"
	"societyhub/internal/errors"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/repository"
)

// ModerationService moves moderated resources out of Pending and through
// their kind-specific follow-up transitions.
type ModerationService interface {
	Approve(ctx context.Context, kind model.Kind, id uuid.UUID, reviewer auth.Principal) error
	Reject(ctx context.Context, kind model.Kind, id uuid.UUID, reviewer auth.Principal, reason string) error
	// Resolve closes an approved complaint.
	Resolve(ctx context.Context, complaintID uuid.UUID, reviewer auth.Principal) error
	// MarkPaid settles an approved bill.
	MarkPaid(ctx context.Context, billID uuid.UUID, reviewer auth.Principal) error
}

// reviewTarget adapts one typed repository to the state machine.
type reviewTarget struct {
	get    func(ctx context.Context, id uuid.UUID) (model.Reviewable, error)
	// update writes patch only while the stored status still equals from.
	update func(ctx context.Context, id uuid.UUID, from model.Status, patch repository.Patch) error
}

func targetFor[T any, PT interface {
	*T
	model.Reviewable
}](repo repository.Repository[T]) reviewTarget {
	return reviewTarget{
		get: func(ctx context.Context, id uuid.UUID) (model.Reviewable, error) {
			doc, err := repo.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return PT(doc), nil
		},
		update: func(ctx context.Context, id uuid.UUID, from model.Status, patch repository.Patch) error {
			_, err := repo.UpdateWhen(ctx, id, map[string]any{"status": string(from)}, patch)
			return err
		},
	}
}

type moderationService struct {
	targets  map[model.Kind]reviewTarget
	authz    auth.Authorizer
	clock    clock.Clock
	activity ActivityRecorder
	log      *logger.Logger
}

// NewModerationService creates a new moderation service.
func NewModerationService(
	listings repository.Repository[model.Listing],
	complaints repository.Repository[model.Complaint],
	bills repository.Repository[model.Bill],
	authz auth.Authorizer,
	clk clock.Clock,
	activity ActivityRecorder,
	log *logger.Logger,
) ModerationService {
	return &moderationService{
		targets: map[model.Kind]reviewTarget{
			model.KindListing:   targetFor(listings),
			model.KindComplaint: targetFor(complaints),
			model.KindBill:      targetFor(bills),
		},
		authz:    authz,
		clock:    clk,
		activity: activity,
		log:      log.With("service", "ModerationService"),
	}
}

func (s *moderationService) Approve(ctx context.Context, kind model.Kind, id uuid.UUID, reviewer auth.Principal) error {
	now := s.clock.Now().UTC()
	return s.transition(ctx, kind, id, reviewer, auth.VerbApprove, model.StatusPending, model.StatusApproved, repository.Patch{
		"status":      string(model.StatusApproved),
		"reviewed_by": reviewer.ID,
		"reviewed_at": now,
	}, model.ActivityApproved, "")
}

func (s *moderationService) Reject(ctx context.Context, kind model.Kind, id uuid.UUID, reviewer auth.Principal, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return errors.NewValidationError(errors.FieldError{Field: "reason", Message: "is required to reject"})
	}
	now := s.clock.Now().UTC()
	return s.transition(ctx, kind, id, reviewer, auth.VerbReject, model.StatusPending, model.StatusRejected, repository.Patch{
		"status":           string(model.StatusRejected),
		"reviewed_by":      reviewer.ID,
		"reviewed_at":      now,
		"rejection_reason": reason,
	}, model.ActivityRejected, reason)
}

func (s *moderationService) Resolve(ctx context.Context, complaintID uuid.UUID, reviewer auth.Principal) error {
	now := s.clock.Now().UTC()
	return s.transition(ctx, model.KindComplaint, complaintID, reviewer, auth.VerbResolve, model.StatusApproved, model.StatusResolved, repository.Patch{
		"status":      string(model.StatusResolved),
		"resolved_by": reviewer.ID,
		"resolved_at": now,
	}, model.ActivityResolved, "")
}

func (s *moderationService) MarkPaid(ctx context.Context, billID uuid.UUID, reviewer auth.Principal) error {
	now := s.clock.Now().UTC()
	return s.transition(ctx, model.KindBill, billID, reviewer, auth.VerbPay, model.StatusApproved, model.StatusPaid, repository.Patch{
		"status":  string(model.StatusPaid),
		"paid_at": now,
	}, model.ActivityPaid, "")
}

// transition checks authorization and the current status, then applies patch
// as a single write conditioned on that status.
func (s *moderationService) transition(
	ctx context.Context,
	kind model.Kind,
	id uuid.UUID,
	reviewer auth.Principal,
	verb string,
	from, to model.Status,
	patch repository.Patch,
	action model.ActivityAction,
	detail string,
) error {
	target, ok := s.targets[kind]
	if !ok {
		return errors.NewValidationError(errors.FieldError{Field: "kind", Message: fmt.Sprintf("%q is not moderated", kind)})
	}

	act := auth.ActionFor(kind, verb)
	if !s.authz.IsAuthorized(ctx, reviewer, act) {
		return &errors.UnauthorizedError{Principal: reviewer.ID, Action: string(act)}
	}

	current, err := target.get(ctx, id)
	if err != nil {
		return err
	}
	state := current.ReviewState()
	if state.Status != from {
		return &errors.IllegalTransitionError{Kind: string(kind), ID: id.String(), From: string(state.Status), To: string(to)}
	}
	if !current.Completed() {
		return &errors.IllegalTransitionError{Kind: string(kind), ID: id.String(), From: "incomplete " + string(state.Status), To: string(to)}
	}

	if err := target.update(ctx, id, from, patch); err != nil {
		var conflict *errors.ConflictError
		if !stderrors.As(err, &conflict) {
			return err
		}
		// another reviewer moved it first
		latest, gerr := target.get(ctx, id)
		if gerr != nil {
			return gerr
		}
		return &errors.IllegalTransitionError{Kind: string(kind), ID: id.String(), From: string(latest.ReviewState().Status), To: string(to)}
	}
	s.log.Info("status changed", "kind", kind, "id", id, "from", from, "to", to, "by", reviewer.ID)
	s.activity.Record(ctx, kind, id, action, reviewer.ID, detail)
	return nil
}
