package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationError_IsAndDetails(t *testing.T) {
	t.Parallel()

	err := Validation("vin is required", "at least 3 photos are required")
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, []string{"vin is required", "at least 3 photos are required"}, Details(err))
	require.Contains(t, err.Error(), "vin is required")

	wrapped := fmt.Errorf("submit: %w", err)
	require.ErrorIs(t, wrapped, ErrValidation)
	require.Len(t, Details(wrapped), 2)

	require.Nil(t, Details(errors.New("plain")))
}

func TestCode(t *testing.T) {
	t.Parallel()

	cases := map[error]string{
		Validation("x"):                          "VALIDATION_ERROR",
		fmt.Errorf("a: %w", ErrInvalidState):     "INVALID_STATE",
		ErrTokenInvalid:                          "TOKEN_INVALID",
		ErrTokenExpired:                          "TOKEN_EXPIRED",
		ErrNotFound:                              "NOT_FOUND",
		ErrForbidden:                             "FORBIDDEN",
		ErrConflict:                              "CONFLICT",
		ErrUnauthorized:                          "UNAUTHORIZED",
		ErrRateLimited:                           "RATE_LIMITED",
		errors.New("boom"):                       "INTERNAL",
		fmt.Errorf("audit: %w", ErrInternal):     "INTERNAL",
	}
	for err, want := range cases {
		require.Equal(t, want, Code(err), err.Error())
	}
	require.Equal(t, "", Code(nil))
}
