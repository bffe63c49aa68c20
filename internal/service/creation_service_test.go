package service

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"societyhub/internal/errors"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/repository"
)

var creationNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func validListingDraft(photos ...string) ListingDraft {
	media := make([]Media, 0, len(photos))
	for _, p := range photos {
		media = append(media, Media{Filename: p + ".jpg", Data: []byte(p)})
	}
	return ListingDraft{
		Price:       "50000",
		Size:        "5 Marla",
		Contact:     "03001234567",
		Description: "nice house",
		Photos:      media,
	}
}

func TestMediaPath(t *testing.T) {
	id := uuid.MustParse("6f1c1f4e-9a59-4bb1-8a4b-1f2b3c4d5e6f")
	got := MediaPath(model.KindListing, "res-1", id, 2, creationNow)
	assert.Equal(t, "listings/res-1/6f1c1f4e-9a59-4bb1-8a4b-1f2b3c4d5e6f_2_1714554000000", got)
}

func TestCreationService_CreateListing(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, creationNow)
	uploader := new(MockUploader)
	uploader.On("Upload", mock.Anything, []byte("uri1"), mock.MatchedBy(func(p string) bool {
		return strings.HasPrefix(p, "listings/res-1/") && strings.Contains(p, "_0_")
	})).Return("https://cdn.example/uri1", nil).Once()

	svc := NewCreationService(fx.listings, fx.complaints, uploader, fx.authz, fx.activity, logger.NewNop())
	got, err := svc.CreateListing(ctx, resident, validListingDraft("uri1"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, got.Status)
	assert.Len(t, got.Media, 1)
	assert.Equal(t, "https://cdn.example/uri1", got.Media[0])
	assert.Nil(t, got.ReviewedBy)
	assert.True(t, got.Finalized)
	assert.True(t, decimal.NewFromInt(50000).Equal(got.Price))
	assert.Equal(t, "A-12", got.OwnerLocation)

	stored, err := fx.listings.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Media, stored.Media)
	assert.Equal(t, []model.ActivityAction{model.ActivityCreated}, fx.activity.actions())
	uploader.AssertExpectations(t)
}

func TestCreationService_CreateListingUploadFailure(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
	}{
		{name: "placeholder is removed"},
		{name: "upload error survives failed cleanup", deleteErr: errors.StoreUnavailable("listings.delete", stderrors.New("connection reset"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fx := newFixture(t, creationNow)
			var listings repository.Repository[model.Listing] = fx.listings
			if tt.deleteErr != nil {
				listings = failingDelete[model.Listing]{Repository: fx.listings, err: tt.deleteErr}
			}

			uploader := new(MockUploader)
			uploader.On("Upload", mock.Anything, []byte("a"), mock.Anything).Return("https://cdn.example/a", nil)
			uploader.On("Upload", mock.Anything, []byte("b"), mock.Anything).Return("", stderrors.New("bucket unreachable"))
			uploader.On("Remove", mock.Anything, mock.MatchedBy(func(p string) bool { return strings.Contains(p, "_0_") })).Return(nil).Once()

			svc := NewCreationService(listings, fx.complaints, uploader, fx.authz, fx.activity, logger.NewNop())
			got, err := svc.CreateListing(ctx, resident, validListingDraft("a", "b"))

			assert.Nil(t, got)
			var uploadErr *errors.UploadError
			require.ErrorAs(t, err, &uploadErr)
			assert.Equal(t, 1, uploadErr.Index)
			uploader.AssertExpectations(t)

			all, err := fx.listings.List(ctx, repository.Query{})
			require.NoError(t, err)
			if tt.deleteErr == nil {
				assert.Empty(t, all)
			} else {
				// the placeholder stays behind unfinalized, invisible to reviewers
				require.Len(t, all, 1)
				assert.False(t, all[0].Finalized)
			}
			assert.Equal(t, []model.ActivityAction{model.ActivityCompensated}, fx.activity.actions())
		})
	}
}

func TestCreationService_CreateListingValidation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, creationNow)
	uploader := new(MockUploader)
	svc := NewCreationService(fx.listings, fx.complaints, uploader, fx.authz, fx.activity, logger.NewNop())

	tests := []struct {
		name   string
		draft  ListingDraft
		fields []string
	}{
		{
			name:   "every missing field is reported",
			draft:  ListingDraft{},
			fields: []string{"price", "size", "contact", "description", "photos"},
		},
		{
			name: "non-numeric price",
			draft: func() ListingDraft {
				d := validListingDraft("x")
				d.Price = "fifty"
				return d
			}(),
			fields: []string{"price"},
		},
		{
			name: "negative price",
			draft: func() ListingDraft {
				d := validListingDraft("x")
				d.Price = "-10"
				return d
			}(),
			fields: []string{"price"},
		},
		{
			name:   "too many photos",
			draft:  validListingDraft("1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"),
			fields: []string{"photos"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateListing(ctx, resident, tt.draft)
			var verr *errors.ValidationError
			require.ErrorAs(t, err, &verr)
			got := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}

	all, err := fx.listings.List(ctx, repository.Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
	uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreationService_Unauthorized(t *testing.T) {
	fx := newFixture(t, creationNow)
	uploader := new(MockUploader)
	svc := NewCreationService(fx.listings, fx.complaints, uploader, fx.authz, fx.activity, logger.NewNop())

	_, err := svc.CreateListing(context.Background(), guard, validListingDraft("x"))
	var unauthorized *errors.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
	assert.Equal(t, "listings.create", unauthorized.Action)
	uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreationService_CreateComplaint(t *testing.T) {
	ctx := context.Background()

	t.Run("without photos is finalized immediately", func(t *testing.T) {
		fx := newFixture(t, creationNow)
		uploader := new(MockUploader)
		svc := NewCreationService(fx.listings, fx.complaints, uploader, fx.authz, fx.activity, logger.NewNop())

		got, err := svc.CreateComplaint(ctx, resident, ComplaintDraft{Title: "Broken streetlight", Category: "electric"})
		require.NoError(t, err)
		assert.True(t, got.Finalized)
		assert.Empty(t, got.Media)
		assert.Equal(t, model.StatusPending, got.Status)
		uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("with photos uploads every item", func(t *testing.T) {
		fx := newFixture(t, creationNow)
		uploader := new(MockUploader)
		uploader.On("Upload", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
			return strings.HasPrefix(p, "complaints/res-1/")
		})).Return("https://cdn.example/c", nil).Twice()
		svc := NewCreationService(fx.listings, fx.complaints, uploader, fx.authz, fx.activity, logger.NewNop())

		got, err := svc.CreateComplaint(ctx, resident, ComplaintDraft{
			Title:    "Leaking pipe",
			Category: "plumbing",
			Photos:   []Media{{Data: []byte("1")}, {Data: []byte("2")}},
		})
		require.NoError(t, err)
		assert.True(t, got.Finalized)
		assert.Len(t, got.Media, 2)
		uploader.AssertExpectations(t)
	})
}
