package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"societyhub/internal/auth"
	"societyhub/internal/errors"
	"societyhub/internal/model"
	"societyhub/internal/service"
)

var (
	admin    = auth.Principal{ID: "adm-1", Role: model.RoleAdmin, Name: "Office"}
	resident = auth.Principal{ID: "res-1", Role: model.RoleResident, Name: "Ayesha", House: "A-12"}
)

type MockModerationService struct {
	mock.Mock
}

func (m *MockModerationService) Approve(ctx context.Context, kind model.Kind, id uuid.UUID, reviewer auth.Principal) error {
	return m.Called(ctx, kind, id, reviewer).Error(0)
}

func (m *MockModerationService) Reject(ctx context.Context, kind model.Kind, id uuid.UUID, reviewer auth.Principal, reason string) error {
	return m.Called(ctx, kind, id, reviewer, reason).Error(0)
}

func (m *MockModerationService) Resolve(ctx context.Context, id uuid.UUID, reviewer auth.Principal) error {
	return m.Called(ctx, id, reviewer).Error(0)
}

func (m *MockModerationService) MarkPaid(ctx context.Context, id uuid.UUID, reviewer auth.Principal) error {
	return m.Called(ctx, id, reviewer).Error(0)
}

type MockCreationService struct {
	mock.Mock
}

func (m *MockCreationService) CreateListing(ctx context.Context, p auth.Principal, draft service.ListingDraft) (*model.Listing, error) {
	args := m.Called(ctx, p, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Listing), args.Error(1)
}

func (m *MockCreationService) CreateComplaint(ctx context.Context, p auth.Principal, draft service.ComplaintDraft) (*model.Complaint, error) {
	args := m.Called(ctx, p, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Complaint), args.Error(1)
}

type MockGateLogTracker struct {
	mock.Mock
	service.GateLogTracker
}

func (m *MockGateLogTracker) DailyCounts(ctx context.Context, viewer auth.Principal, days int) ([]service.DailyCount, error) {
	args := m.Called(ctx, viewer, days)
	return args.Get(0).([]service.DailyCount), args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateProfile(ctx context.Context, caller auth.Principal, draft service.ProfileDraft) (*model.UserProfile, error) {
	args := m.Called(ctx, caller, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *MockUserService) GetProfile(ctx context.Context, role model.Role, id uuid.UUID) (*model.UserProfile, error) {
	args := m.Called(ctx, role, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *MockUserService) Seed(ctx context.Context, profiles []model.UserProfile) (int, error) {
	args := m.Called(ctx, profiles)
	return args.Int(0), args.Error(1)
}

type testValidator struct{}

func (testValidator) Validate(i interface{}) error {
	return service.ValidateStruct(service.NewValidator(), i)
}

func newContext(req *http.Request, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = testValidator{}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if p != nil {
		auth.SetPrincipal(c, *p)
	}
	return c, rec
}

// errorBody unwraps the response body carried by a handler error.
func errorBody(t *testing.T, err error) (int, errors.ErrorResponse) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %T", err)
	body, ok := he.Message.(errors.ErrorResponse)
	require.True(t, ok, "unexpected message %T", he.Message)
	return he.Code, body
}

func TestModerationHandler_Approve(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		kind       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{name: "approved", kind: "listings", wantStatus: http.StatusOK},
		{
			name:       "already reviewed",
			kind:       "complaints",
			serviceErr: &errors.IllegalTransitionError{Kind: "complaints", ID: id.String(), From: "Approved", To: "Approved"},
			wantStatus: http.StatusConflict,
			wantCode:   "ILLEGAL_TRANSITION",
		},
		{
			name:       "caller is not a reviewer",
			kind:       "bills",
			serviceErr: &errors.UnauthorizedError{Principal: resident.ID, Action: "bills.approve"},
			wantStatus: http.StatusForbidden,
			wantCode:   "UNAUTHORIZED",
		},
		{name: "gate logs are not moderated", kind: "gate_logs", wantStatus: http.StatusBadRequest, wantCode: "INVALID_KIND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockModerationService)
			if tt.wantCode != "INVALID_KIND" {
				svc.On("Approve", mock.Anything, model.Kind(tt.kind), id, admin).Return(tt.serviceErr)
			}
			h := NewModerationHandler(svc)

			c, rec := newContext(httptest.NewRequest(http.MethodPost, "/", nil), &admin)
			c.SetParamNames("kind", "id")
			c.SetParamValues(tt.kind, id.String())

			err := h.Approve(c)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, rec.Code)
				assert.Contains(t, rec.Body.String(), `"status":"Approved"`)
			} else {
				status, body := errorBody(t, err)
				assert.Equal(t, tt.wantStatus, status)
				assert.Equal(t, tt.wantCode, body.Code)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestModerationHandler_RejectPassesReason(t *testing.T) {
	id := uuid.New()
	svc := new(MockModerationService)
	svc.On("Reject", mock.Anything, model.KindListing, id, admin, "blurry photos").Return(nil)
	h := NewModerationHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"blurry photos"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c, rec := newContext(req, &admin)
	c.SetParamNames("kind", "id")
	c.SetParamValues("listings", id.String())

	require.NoError(t, h.Reject(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"Rejected"`)
	svc.AssertExpectations(t)
}

func TestListingHandler_CreateReadsEveryPhoto(t *testing.T) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("price", "50000"))
	require.NoError(t, w.WriteField("size", "5 Marla"))
	require.NoError(t, w.WriteField("contact", "03001234567"))
	require.NoError(t, w.WriteField("description", "corner plot"))
	for _, name := range []string{"photos", "photos[]"} {
		part, err := w.CreateFormFile(name, name+".jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	creation := new(MockCreationService)
	created := &model.Listing{ID: uuid.New()}
	creation.On("CreateListing", mock.Anything, resident, mock.MatchedBy(func(d service.ListingDraft) bool {
		return d.Price == "50000" && d.Size == "5 Marla" && len(d.Photos) == 2 && string(d.Photos[1].Data) == "jpeg-bytes"
	})).Return(created, nil)
	h := NewListingHandler(creation, nil)

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	c, rec := newContext(req, &resident)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID.String())
	creation.AssertExpectations(t)
}

func TestListingHandler_UploadFailureIsBadGateway(t *testing.T) {
	creation := new(MockCreationService)
	creation.On("CreateListing", mock.Anything, resident, mock.Anything).
		Return(nil, &errors.UploadError{Index: 1, Path: "listings/res-1/x_1_0", Err: context.DeadlineExceeded})
	h := NewListingHandler(creation, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("price=1"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	c, _ := newContext(req, &resident)

	status, body := errorBody(t, h.Create(c))
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "UPLOAD_FAILED", body.Code)
}

func TestHandlersRequirePrincipal(t *testing.T) {
	h := NewModerationHandler(new(MockModerationService))
	c, _ := newContext(httptest.NewRequest(http.MethodPost, "/", nil), nil)

	status, body := errorBody(t, h.Approve(c))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", body.Code)
}

func TestGateHandler_Daily(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantDays   int
		wantStatus int
	}{
		{name: "defaults to a week", query: "", wantDays: 7, wantStatus: http.StatusOK},
		{name: "explicit window", query: "?days=30", wantDays: 30, wantStatus: http.StatusOK},
		{name: "zero days", query: "?days=0", wantStatus: http.StatusBadRequest},
		{name: "beyond ninety days", query: "?days=91", wantStatus: http.StatusBadRequest},
		{name: "not a number", query: "?days=week", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := new(MockGateLogTracker)
			if tt.wantDays > 0 {
				tracker.On("DailyCounts", mock.Anything, admin, tt.wantDays).Return([]service.DailyCount{{Day: "2024-05-01", Entries: 3}}, nil)
			}
			h := NewGateHandler(tracker)

			c, rec := newContext(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil), &admin)
			err := h.Daily(c)
			if tt.wantStatus == http.StatusOK {
				require.NoError(t, err)
				assert.JSONEq(t, `[{"day":"2024-05-01","entries":3,"exits":0}]`, rec.Body.String())
			} else {
				status, _ := errorBody(t, err)
				assert.Equal(t, tt.wantStatus, status)
			}
			tracker.AssertExpectations(t)
		})
	}
}

func TestUserHandler_ReadsFollowPolicy(t *testing.T) {
	guard := auth.Principal{ID: "grd-1", Role: model.RoleGuard, Name: "Karim"}
	h := NewUserHandler(new(MockUserService), nil, nil, auth.NewRoleAuthorizer(auth.DefaultPolicy()))

	for name, read := range map[string]echo.HandlerFunc{
		"list":   h.ListUsers,
		"stats":  h.Stats,
		"stream": h.StreamStats,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil), &guard)
			status, body := errorBody(t, read(c))
			assert.Equal(t, http.StatusForbidden, status)
			assert.Equal(t, "UNAUTHORIZED", body.Code)
		})
	}
}

func TestAuthHandler_TokenForSeededProfile(t *testing.T) {
	profile := DemoProfiles[0]
	users := new(MockUserService)
	users.On("GetProfile", mock.Anything, model.RoleResident, profile.ID).Return(&profile, nil)
	jwtService := auth.NewJWTService("secret")
	h := NewAuthHandler(users, jwtService)

	req := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"id":"`+profile.ID.String()+`","role":"resident"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c, rec := newContext(req, nil)

	require.NoError(t, h.Token(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"house":"A-12"`)
	users.AssertExpectations(t)
}

func TestAuthHandler_TokenRejectsMalformedRequest(t *testing.T) {
	h := NewAuthHandler(new(MockUserService), auth.NewJWTService("secret"))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":"nope","role":"janitor"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c, _ := newContext(req, nil)

	status, body := errorBody(t, h.Token(c))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Len(t, body.Details, 2)
}

func TestSeedHandler_ReportsCreatedCount(t *testing.T) {
	users := new(MockUserService)
	users.On("Seed", mock.Anything, mock.MatchedBy(func(p []model.UserProfile) bool {
		return len(p) == len(DemoProfiles)
	})).Return(2, nil)
	h := NewSeedHandler(users)

	c, rec := newContext(httptest.NewRequest(http.MethodPost, "/", nil), nil)
	require.NoError(t, h.SeedProfiles(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}
