package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"societyhub/internal/aggregate"
	"societyhub/internal/auth"
	"societyhub/internal/errors"
	"societyhub/internal/model"
	"societyhub/internal/service"
)

// UserHandler serves the merged user directory.
type UserHandler struct {
	users     service.UserService
	directory *aggregate.UserDirectory
	cached    *aggregate.CachePublisher[aggregate.UserDirectoryStats]
	authz     auth.Authorizer
}

// NewUserHandler creates a handler over directory. cached may be nil.
func NewUserHandler(
	users service.UserService,
	directory *aggregate.UserDirectory,
	cached *aggregate.CachePublisher[aggregate.UserDirectoryStats],
	authz auth.Authorizer,
) *UserHandler {
	return &UserHandler{users: users, directory: directory, cached: cached, authz: authz}
}

// canRead checks users.read for the caller.
func (h *UserHandler) canRead(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if !h.authz.IsAuthorized(c.Request().Context(), p, auth.ActionUsersRead) {
		return respond(&errors.UnauthorizedError{Principal: p.ID, Action: string(auth.ActionUsersRead)})
	}
	return nil
}

// CreateProfile godoc
// @Summary Provision a resident, guard or admin profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ProfileDraft true "Profile data"
// @Success 201 {object} model.UserProfile
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateProfile(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var draft service.ProfileDraft
	if err := c.Bind(&draft); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	profile, err := h.users.CreateProfile(c.Request().Context(), p, draft)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusCreated, profile)
}

// DirectoryEntry is one user of the merged directory.
type DirectoryEntry struct {
	Partition string `json:"partition"`
	*model.UserProfile
}

// ListUsers godoc
// @Summary List users across every role
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} DirectoryEntry
// @Failure 403 {object} errors.ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	if err := h.canRead(c); err != nil {
		return err
	}
	rows := h.directory.Current().View.Rows()
	out := make([]DirectoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, DirectoryEntry{Partition: r.Partition, UserProfile: r.Value})
	}
	return c.JSON(http.StatusOK, out)
}

// Stats godoc
// @Summary User counts by role and residents by house
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} aggregate.UserDirectoryStats
// @Failure 503 {object} errors.ErrorResponse
// @Router /users/stats [get]
func (h *UserHandler) Stats(c echo.Context) error {
	if err := h.canRead(c); err != nil {
		return err
	}
	res := h.directory.Current()
	if res.Ready {
		return c.JSON(http.StatusOK, res.Stats)
	}
	if h.cached != nil {
		if stats, ok := h.cached.Latest(c.Request().Context()); ok {
			return c.JSON(http.StatusOK, stats)
		}
	}
	return echo.NewHTTPError(http.StatusServiceUnavailable, errors.ErrorResponse{
		Error: "user directory is still loading",
		Code:  "NOT_READY",
	})
}

// StreamStats godoc
// @Summary Live user directory statistics as server-sent events
// @Tags users
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {object} aggregate.UserDirectoryStats
// @Failure 403 {object} errors.ErrorResponse
// @Router /users/stream [get]
func (h *UserHandler) StreamStats(c echo.Context) error {
	if err := h.canRead(c); err != nil {
		return err
	}
	updates, release := h.directory.Listen()
	defer release()

	stream := openEventStream(c, "users")
	if cur := h.directory.Current(); cur.Ready {
		if err := stream.send(cur.Stats); err != nil {
			return nil
		}
	}
	return pump(stream, updates, func(res aggregate.Result[model.UserProfile, aggregate.UserDirectoryStats]) (any, bool) {
		return res.Stats, res.Ready
	})
}
