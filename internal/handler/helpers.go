package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"einvoice/internal/logger"
	"einvoice/internal/middleware"
	"einvoice/internal/service"
	"einvoice/internal/sheet"
	"einvoice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Roles allowed on routes open to every member of an organization.
var anyRole = []string{"admin", "user"}

// actorFrom builds the service caller from the claims RequireRole stored.
func actorFrom(c *gin.Context) service.Actor {
	userID, _ := middleware.UserID(c)
	actor := service.Actor{UserID: userID, Role: c.GetString(middleware.ContextRole)}
	if orgID, ok := middleware.OrgID(c); ok {
		actor.OrganizationID = &orgID
	}
	return actor
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON keeps numbers as json.Number so amounts reach the line
// normalizer without a float64 round trip.
func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if typeErr.Type.Kind() == reflect.Slice {
				return fmt.Errorf("%s must be an array", typeErr.Field)
			}
			return fmt.Errorf("%s has an invalid type", typeErr.Field)
		}
		return err
	}
	return nil
}

// writeError maps service errors to HTTP status codes. Unknown errors are
// logged and reported without detail.
func writeError(c *gin.Context, err error) {
	var mismatch *sheet.HeaderMismatchError
	if errors.As(err, &mismatch) {
		c.JSON(http.StatusBadRequest, response.ErrorWithDetails(http.StatusBadRequest, mismatch.Error(), mismatch))
		return
	}

	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, service.ErrBulkCreateFailed) {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
		msg = "Internal server error"
	}
	c.JSON(status, response.Error(status, msg))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrEmptyBatch),
		errors.Is(err, sheet.ErrEmptySheet),
		errors.Is(err, sheet.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNoOrganization):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrNotEditable),
		errors.Is(err, service.ErrAlreadySubmitted),
		errors.Is(err, service.ErrSubmissionInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrFBRTokenMissing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrFBRUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
