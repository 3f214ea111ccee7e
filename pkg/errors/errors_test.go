package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	err := FromError(fmt.Errorf("dial tcp db.internal:5432: connection refused"))
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestPublicHidesInternalCause(t *testing.T) {
	err := Wrap(errors.New("pq: password authentication failed for host db.internal"), ErrInternal.Code, http.StatusInternalServerError, "failed to list users")
	pub := Public(err)
	assert.Equal(t, "internal server error", pub.Message)
	assert.Nil(t, pub.Err)
	assert.NotContains(t, pub.Error(), "db.internal")
}

func TestPublicKeepsClientErrors(t *testing.T) {
	err := WithDetails(Clone(ErrValidation, "invalid payload"), []FieldError{{Field: "Role", Rule: "oneof"}})
	pub := Public(err)
	assert.Equal(t, "invalid payload", pub.Message)
	assert.NotNil(t, pub.Details)
}

func TestIsMatchesClones(t *testing.T) {
	err := Clone(ErrSelfAction, "administrators cannot deactivate their own account")
	assert.True(t, errors.Is(err, ErrSelfAction))
	assert.False(t, errors.Is(err, ErrForbidden))
}

func TestValidationCollectsFields(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
		Role  string `validate:"required,oneof=VIEWER EDITOR ADMIN"`
	}
	verr := validator.New().Struct(payload{Email: "nope", Role: "ROOT"})
	appErr := Validation(verr, "invalid payload")
	fields, ok := appErr.Details.([]FieldError)
	require.True(t, ok)
	assert.Len(t, fields, 2)
	assert.Equal(t, "Email", fields[0].Field)
	assert.Equal(t, "email", fields[0].Rule)
}
