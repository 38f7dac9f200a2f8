package api

import (
	"fmt"
	"net/http"
	"testing"

	"negotiation-service/internal/negotiation"

	"github.com/stretchr/testify/assert"
)

func TestStatusForErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{negotiation.ErrDuplicateActiveNegotiation, http.StatusConflict},
		{negotiation.ErrConcurrentModification, http.StatusConflict},
		{negotiation.ErrCodeAlreadyRedeemed, http.StatusConflict},
		{negotiation.ErrNegotiationNotActive, http.StatusConflict},
		{negotiation.ErrNegotiationExpired, http.StatusGone},
		{negotiation.ErrCodeExpired, http.StatusGone},
		{negotiation.ErrCodeVoided, http.StatusGone},
		{negotiation.ErrWrongProposer, http.StatusForbidden},
		{negotiation.ErrNotParticipant, http.StatusForbidden},
		{negotiation.ErrOwnProject, http.StatusForbidden},
		{negotiation.ErrBuyerMismatch, http.StatusForbidden},
		{negotiation.ErrPriceOutOfBounds, http.StatusUnprocessableEntity},
		{negotiation.ErrInvalidCounter, http.StatusUnprocessableEntity},
		{negotiation.ErrTooManyRounds, http.StatusUnprocessableEntity},
		{negotiation.ErrInvalidSequence, http.StatusUnprocessableEntity},
		{negotiation.ErrNegotiationNotFound, http.StatusNotFound},
		{negotiation.ErrCodeNotFound, http.StatusNotFound},
		{negotiation.ErrProjectNotFound, http.StatusNotFound},
		{negotiation.ErrProjectMismatch, http.StatusNotFound},
		{fmt.Errorf("storage exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "error: %v", tt.err)
	}
}

func TestStatusForWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("counter rejected: %w", negotiation.ErrPriceOutOfBounds)
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(wrapped))
}
