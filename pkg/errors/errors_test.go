package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrInvalidGrade, "grade must be between 0 and 100")
	assert.True(t, errors.Is(err, ErrInvalidGrade))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "grade must be between 0 and 100", err.Error())

	wrapped := fmt.Errorf("grading: %w", err)
	assert.True(t, errors.Is(wrapped, ErrInvalidGrade))
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)

	assert.Nil(t, FromError(nil))
	assert.Same(t, ErrNotFound, FromError(ErrNotFound))
}
