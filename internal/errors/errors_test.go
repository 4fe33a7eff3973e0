package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/klabast/wb-services/plaza/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	err := pkgerrors.NewNotFoundError("event", "42")
	assert.Equal(t, "event with ID 42 not found", err.Error())
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(fmt.Errorf("delete: %w", err)))
	assert.False(t, pkgerrors.IsStoreError(err))
}

func TestValidationError(t *testing.T) {
	err := pkgerrors.NewValidationError(
		pkgerrors.FieldError{Field: "title", Code: "EmptyField", Message: "This field is required"},
		pkgerrors.FieldError{Field: "date", Code: "InvalidDate", Message: "Invalid date format"},
	)

	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	assert.True(t, pkgerrors.IsValidationError(fmt.Errorf("create: %w", err)))
	assert.Contains(t, err.Error(), "title: This field is required (EmptyField)")

	f, ok := err.Field("date")
	require.True(t, ok)
	assert.Equal(t, "InvalidDate", f.Code)

	_, ok = err.Field("venue")
	assert.False(t, ok)
}

func TestStoreError(t *testing.T) {
	t.Run("quota", func(t *testing.T) {
		err := pkgerrors.NewStoreError("plazaEvents", fmt.Errorf("set: %w", pkgerrors.ErrQuotaExceeded))
		assert.Equal(t, pkgerrors.QuotaExceeded, err.Kind)
		assert.True(t, pkgerrors.IsQuotaExceeded(err))
		assert.True(t, pkgerrors.IsStoreError(err))
		assert.Equal(t, "Storage quota exceeded. Please delete some old events.", err.UserMessage())
	})

	t.Run("write failure", func(t *testing.T) {
		err := pkgerrors.NewStoreError("plazaEvents", errors.New("disk on fire"))
		assert.Equal(t, pkgerrors.WriteFailure, err.Kind)
		assert.False(t, pkgerrors.IsQuotaExceeded(err))
		assert.True(t, pkgerrors.IsStoreError(err))
		assert.Equal(t, "Failed to save events. Please try again.", err.UserMessage())
		assert.ErrorContains(t, err, "disk on fire")
	})
}
