package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeAndMatchesPredefined(t *testing.T) {
	err := Clone(ErrFacultyConflict, "faculty busy on monday")

	assert.Equal(t, "faculty busy on monday", err.Message)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.True(t, stdErrors.Is(err, ErrFacultyConflict))
	assert.False(t, stdErrors.Is(err, ErrRoomConflict))
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))

	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestFromErrorFindsWrappedAppError(t *testing.T) {
	inner := Clone(ErrNotFound, "room not found")
	err := FromError(fmt.Errorf("load room: %w", inner))

	assert.Equal(t, "room not found", err.Message)
	assert.Equal(t, http.StatusNotFound, err.Status)
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	detailed := ErrValidation.WithDetails(map[string]string{"email": "email is required"})

	assert.NotNil(t, detailed.Details)
	assert.Nil(t, ErrValidation.Details)
}
