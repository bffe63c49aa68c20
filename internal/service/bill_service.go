package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"societyhub/internal/auth"
	"societyhub/internal/errors"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/repository"
)

// BillDraft holds the fields of a bill issued to a resident.
type BillDraft struct {
	ResidentID string    `json:"residentId" validate:"required,uuid"`
	Title      string    `json:"title" validate:"required,max=255"`
	Month      string    `json:"month" validate:"required"`
	Amount     string    `json:"amount" validate:"required"`
	DueDate    time.Time `json:"dueDate" validate:"required"`
}

// BillService issues bills and lists them per house.
type BillService interface {
	Issue(ctx context.Context, p auth.Principal, draft BillDraft) (*model.Bill, error)
	ListForHouse(ctx context.Context, houseNo string) ([]*model.Bill, error)
	ListForResident(ctx context.Context, residentID string) ([]*model.Bill, error)
}

type billService struct {
	bills     repository.Repository[model.Bill]
	residents repository.Repository[model.UserProfile]
	authz     auth.Authorizer
	activity  ActivityRecorder
	validate  *validator.Validate
	log       *logger.Logger
}

// NewBillService creates a new bill service.
func NewBillService(
	bills repository.Repository[model.Bill],
	residents repository.Repository[model.UserProfile],
	authz auth.Authorizer,
	activity ActivityRecorder,
	log *logger.Logger,
) BillService {
	return &billService{
		bills:     bills,
		residents: residents,
		authz:     authz,
		activity:  activity,
		validate:  NewValidator(),
		log:       log.With("service", "BillService"),
	}
}

// Issue creates a Pending bill. Owner fields are copied from the resident's
// profile so listings by house stay correct if the draft is wrong.
func (s *billService) Issue(ctx context.Context, p auth.Principal, draft BillDraft) (*model.Bill, error) {
	if !s.authz.IsAuthorized(ctx, p, auth.ActionIssueBill) {
		return nil, &errors.UnauthorizedError{Principal: p.ID, Action: string(auth.ActionIssueBill)}
	}

	verr := &errors.ValidationError{}
	collectFieldErrors(s.validate.Struct(draft), verr)
	amount := parseAmount("amount", draft.Amount, verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	resident, err := s.residents.Get(ctx, uuid.MustParse(draft.ResidentID))
	if err != nil {
		return nil, err
	}

	bill := &model.Bill{
		Owner: model.Owner{
			OwnerID:          resident.ID.String(),
			OwnerDisplayName: resident.Name,
			OwnerLocation:    resident.HouseNo,
		},
		Title:    draft.Title,
		Month:    draft.Month,
		Amount:   amount,
		DueDate:  draft.DueDate.UTC(),
		IssuedBy: p.ID,
		Review:   model.Review{Status: model.StatusPending},
	}
	id, err := s.bills.Create(ctx, bill)
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, model.KindBill, id, model.ActivityCreated, p.ID, bill.Month)
	return bill, nil
}

func (s *billService) ListForHouse(ctx context.Context, houseNo string) ([]*model.Bill, error) {
	return s.bills.List(ctx, repository.Query{
		Filter: map[string]any{"owner_location": houseNo},
		Order:  "month DESC, created_at DESC",
	})
}

func (s *billService) ListForResident(ctx context.Context, residentID string) ([]*model.Bill, error) {
	return s.bills.List(ctx, repository.Query{
		Filter: map[string]any{"owner_id": residentID},
		Order:  "month DESC, created_at DESC",
	})
}
