package service

import (
	"errors"

	"github.com/google/uuid"
)

// Batch-level and request-level failures. Handlers map these to HTTP codes
// with errors.Is; anything else is a 500.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("invalid email or password")
	ErrInvalidSession = errors.New("session expired, please log in again")
	ErrForbidden      = errors.New("access denied")
	ErrConflict       = errors.New("already exists")

	ErrEmptyBatch       = errors.New("invoices must be a non-empty list")
	ErrNoOrganization   = errors.New("user is not associated with an organization")
	ErrBulkCreateFailed = errors.New("bulk create failed")

	ErrNotEditable          = errors.New("invoice can only be changed while draft or failed")
	ErrAlreadySubmitted     = errors.New("invoice has already been submitted")
	ErrSubmissionInProgress = errors.New("another FBR request or edit for this invoice is in progress")
	ErrFBRTokenMissing      = errors.New("organization has no FBR token configured")
	ErrFBRUnavailable       = errors.New("FBR gateway request failed")
)

// Actor is the authenticated caller as read from the access token.
type Actor struct {
	UserID         uuid.UUID
	OrganizationID *uuid.UUID
	Role           string
}

func (a Actor) orgID() (uuid.UUID, error) {
	if a.OrganizationID == nil || *a.OrganizationID == uuid.Nil {
		return uuid.Nil, ErrNoOrganization
	}
	return *a.OrganizationID, nil
}

func (a Actor) userRef() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
