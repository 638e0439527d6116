package handlers

import (
	"errors"
	"net/http"
	"testing"

	"smartbite-api/apperror"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperror.ErrInvalidItem.Withf("menu item 3 not available"), http.StatusBadRequest},
		{apperror.ErrForbidden, http.StatusForbidden},
		{apperror.ErrOrderNotFound, http.StatusNotFound},
		{apperror.ErrNotAvailable, http.StatusBadRequest},
		{apperror.ErrAlreadyPaid, http.StatusBadRequest},
		{apperror.ErrDuplicateRestaurant, http.StatusConflict},
		{apperror.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{apperror.ErrGateway.Withf("Insufficient balance"), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(apperror.As(tt.err)); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
