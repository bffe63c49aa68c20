package service

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"societyhub/internal/auth"
	"societyhub/internal/errors"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/repository"
)

// ProfileDraft holds the fields of a new society member.
type ProfileDraft struct {
	Name    string     `json:"name" validate:"required,max=255"`
	Email   string     `json:"email" validate:"omitempty,email"`
	Phone   string     `json:"phone" validate:"max=32"`
	HouseNo string     `json:"houseNo" validate:"max=64"`
	Role    model.Role `json:"role" validate:"required,oneof=resident guard admin"`
}

// UserService provisions member profiles into their role partition.
type UserService interface {
	CreateProfile(ctx context.Context, caller auth.Principal, draft ProfileDraft) (*model.UserProfile, error)
	GetProfile(ctx context.Context, role model.Role, id uuid.UUID) (*model.UserProfile, error)
	// Seed stores every profile whose id is not taken yet and returns how
	// many were created.
	Seed(ctx context.Context, profiles []model.UserProfile) (int, error)
}

type userService struct {
	repos    map[model.Role]repository.Repository[model.UserProfile]
	authz    auth.Authorizer
	validate *validator.Validate
	log      *logger.Logger
}

// NewUserService builds a UserService over one repository per role.
func NewUserService(repos map[model.Role]repository.Repository[model.UserProfile], authz auth.Authorizer, log *logger.Logger) UserService {
	return &userService{
		repos:    repos,
		authz:    authz,
		validate: NewValidator(),
		log:      log.With("service", "UserService"),
	}
}

func (s *userService) partition(role model.Role) (repository.Repository[model.UserProfile], error) {
	repo, ok := s.repos[role]
	if !ok {
		return nil, errors.NewValidationError(errors.FieldError{Field: "role", Message: "unknown role " + string(role)})
	}
	return repo, nil
}

func (s *userService) CreateProfile(ctx context.Context, caller auth.Principal, draft ProfileDraft) (*model.UserProfile, error) {
	if !s.authz.IsAuthorized(ctx, caller, auth.ActionUsersWrite) {
		return nil, &errors.UnauthorizedError{Principal: caller.ID, Action: string(auth.ActionUsersWrite)}
	}
	if err := ValidateStruct(s.validate, draft); err != nil {
		return nil, err
	}
	repo, err := s.partition(draft.Role)
	if err != nil {
		return nil, err
	}

	profile := &model.UserProfile{
		Name:    strings.TrimSpace(draft.Name),
		Email:   strings.ToLower(strings.TrimSpace(draft.Email)),
		Phone:   draft.Phone,
		HouseNo: strings.TrimSpace(draft.HouseNo),
		Role:    draft.Role,
	}
	if _, err := repo.Create(ctx, profile); err != nil {
		return nil, err
	}
	s.log.Info("profile created", "role", profile.Role, "id", profile.ID, "by", caller.ID)
	return profile, nil
}

func (s *userService) GetProfile(ctx context.Context, role model.Role, id uuid.UUID) (*model.UserProfile, error) {
	repo, err := s.partition(role)
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, id)
}

func (s *userService) Seed(ctx context.Context, profiles []model.UserProfile) (int, error) {
	created := 0
	for i := range profiles {
		p := profiles[i]
		repo, err := s.partition(p.Role)
		if err != nil {
			return created, err
		}
		_, err = repo.Get(ctx, p.ID)
		if err == nil {
			continue
		}
		var notFound *errors.NotFoundError
		if !stderrors.As(err, &notFound) {
			return created, err
		}
		if _, err := repo.Create(ctx, &p); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
