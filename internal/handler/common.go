package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"societyhub/internal/auth"
	"societyhub/internal/errors"
	"societyhub/internal/service"
)

const (
	maxPhotoBytes  = 8 << 20
	photoFormField = "photos"
)

// respond converts a service error into the standard error body.
func respond(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func badRequest(message, code string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{Error: message, Code: code})
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "missing principal",
			Code:  "UNAUTHENTICATED",
		})
	}
	return p, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid id", "INVALID_UUID")
	}
	return id, nil
}

// readPhotos loads every uploaded photo. Both "photos" and "photos[]" are
// accepted. Returned errors are ready to be sent.
func readPhotos(c echo.Context) ([]service.Media, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, badRequest("invalid multipart body", "INVALID_REQUEST")
	}
	var files []*multipart.FileHeader
	files = append(files, form.File[photoFormField]...)
	files = append(files, form.File[photoFormField+"[]"]...)
	media := make([]service.Media, 0, len(files))
	for i, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			return nil, respond(errors.NewValidationError(errors.FieldError{
				Field:   fmt.Sprintf("photos[%d]", i),
				Message: err.Error(),
			}))
		}
		media = append(media, service.Media{Filename: fh.Filename, Data: data})
	}
	return media, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxPhotoBytes {
		return nil, fmt.Errorf("exceeds %d bytes", maxPhotoBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("cannot be read")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("cannot be read")
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("exceeds %d bytes", maxPhotoBytes)
	}
	return data, nil
}
