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

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", ErrInvalidTransition)
	got := FromError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, "INVALID_TRANSITION", got.Code)
	assert.Equal(t, http.StatusConflict, got.Status)
}

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	cause := errors.New("boom")
	got := FromError(cause)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.ErrorIs(t, got, cause)
}

func TestCloneOverridesMessageOnly(t *testing.T) {
	clone := Clone(ErrNotFound, "employee not found")
	assert.Equal(t, "employee not found", clone.Message)
	assert.Equal(t, ErrNotFound.Code, clone.Code)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWrapMessageIncludesCause(t *testing.T) {
	err := Wrap(errors.New("timeout"), ErrInternal.Code, ErrInternal.Status, "failed to apply points")
	assert.Equal(t, "failed to apply points: timeout", err.Error())
}

func TestInvalidListsFieldFailures(t *testing.T) {
	type payload struct {
		Name   string `validate:"required"`
		Points int    `validate:"min=0,max=10"`
	}
	err := validator.New().Struct(payload{Points: 12})
	require.Error(t, err)

	got := Invalid(err)
	assert.Equal(t, ErrValidation.Code, got.Code)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Equal(t, "invalid payload", got.Message)
	assert.Equal(t, []FieldError{
		{Field: "Name", Rule: "required"},
		{Field: "Points", Rule: "max", Param: "10"},
	}, got.Details)

	plain := Invalid(errors.New("add event requires a contravention"))
	assert.Equal(t, "add event requires a contravention", plain.Message)
	assert.Empty(t, plain.Details)
}

func TestIsMatchesOnCode(t *testing.T) {
	clone := Clone(ErrForbidden, "contravention belongs to another employee")
	assert.ErrorIs(t, fmt.Errorf("dispute: %w", clone), ErrForbidden)
	assert.NotErrorIs(t, clone, ErrUnauthorized)
	assert.False(t, ErrNotFound.Is(ErrCacheMiss))
}
