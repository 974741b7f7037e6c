package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := New(KindSlotConflict, "This time slot is not available. Please choose another.")
	assert.True(t, errors.Is(err, ErrSlotConflict))
	assert.False(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("create: %w", err)
	assert.True(t, errors.Is(wrapped, ErrSlotConflict))
	assert.Equal(t, KindSlotConflict, KindOf(wrapped))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("pq: relation \"bookings\" does not exist")
	err := Internal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, InternalMessage, PublicMessage(err))
	assert.Equal(t, InternalMessage, PublicMessage(cause))
	assert.Equal(t, KindInternal, KindOf(cause))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:         http.StatusBadRequest,
		KindSlotConflict:       http.StatusBadRequest,
		KindInvalidToken:       http.StatusBadRequest,
		KindUnauthorized:       http.StatusUnauthorized,
		KindInvalidCredentials: http.StatusUnauthorized,
		KindNotValidated:       http.StatusForbidden,
		KindForbidden:          http.StatusForbidden,
		KindNotFound:           http.StatusNotFound,
		KindConflict:           http.StatusConflict,
		KindInternal:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}
