package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("keeps domain errors", func(t *testing.T) {
		wrapped := fmt.Errorf("signup: %w", NewForbidden("nope"))
		de := ToDomainError(wrapped)
		require.NotNil(t, de)
		assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
		assert.Equal(t, "nope", de.Message)
	})

	t.Run("maps no rows to not found", func(t *testing.T) {
		de := ToDomainError(pgx.ErrNoRows)
		assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		cause := errors.New("boom")
		de := ToDomainError(cause)
		assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
		assert.ErrorIs(t, de, cause)
		assert.False(t, de.Operational())
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})
}

func TestNewDuplicateField(t *testing.T) {
	de := ToDomainError(NewDuplicateField("email", "ink@example.com"))
	assert.Equal(t, http.StatusBadRequest, de.HTTPStatus)
	assert.Equal(t, "Duplicate field value: ink@example.com. Please use another value!", de.Message)
	assert.Equal(t, "email", de.Details["field"])
}

func TestNewInvalidInput(t *testing.T) {
	de := ToDomainError(NewInvalidInput([]string{"email is invalid", "city is required"}))
	assert.Equal(t, "Invalid input data. email is invalid. city is required", de.Message)
	assert.Equal(t, http.StatusBadRequest, StatusOf(de))
}
