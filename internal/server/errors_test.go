package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	authdomain "github.com/smallbiznis/promptlab/internal/auth/domain"
	invitationdomain "github.com/smallbiznis/promptlab/internal/invitation/domain"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
	organizationdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"unauthenticated", orgcontext.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{"bad credentials", authdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthenticated"},
		{"org required", orgcontext.ErrOrgRequired, http.StatusBadRequest, "org_required"},
		{"forbidden", orgcontext.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"wrapped forbidden", fmt.Errorf("switch: %w", organizationdomain.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"email mismatch", invitationdomain.ErrEmailMismatch, http.StatusForbidden, "forbidden"},
		{"member not found", organizationdomain.ErrMemberNotFound, http.StatusNotFound, "not_found"},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"expired", invitationdomain.ErrExpired, http.StatusGone, "invitation_expired"},
		{"last owner", organizationdomain.ErrLastOwner, http.StatusConflict, "last_owner"},
		{"not pending", invitationdomain.ErrNotPending, http.StatusConflict, "invitation_not_pending"},
		{"user exists", authdomain.ErrUserExists, http.StatusConflict, "conflict"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
		{"nil", nil, http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
		})
	}
}

func TestMapErrorValidation(t *testing.T) {
	status, payload := mapError(fmt.Errorf("create: %w", invitationdomain.ErrTooManyInvitations))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invitations", payload.Errors[0].Field)
	assert.Equal(t, "too_many_invitations", payload.Errors[0].Code)

	status, payload = mapError(organizationdomain.ErrInvalidRole)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "role", payload.Errors[0].Field)

	status, payload = mapError(newValidationError("start_at", "invalid_start_at", "invalid start_at"))
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "start_at", payload.Errors[0].Field)
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(orgcontext.ErrForbidden)
	assert.Equal(t, "client", typ)
	assert.Equal(t, "forbidden", code)

	typ, code = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "internal", typ)
	assert.Equal(t, "internal_error", code)

	typ, code = classifyErrorForLog(nil)
	assert.Empty(t, typ)
	assert.Empty(t, code)
}
