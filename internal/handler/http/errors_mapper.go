package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/crypto"
	"github.com/MKhiriev/go-fish-log/internal/service"
	"github.com/MKhiriev/go-fish-log/internal/store"
	"github.com/MKhiriev/go-fish-log/internal/validators"
)

var errorStatusMap = map[error]int{
	ErrEmptyAuthorizationHeader:   http.StatusUnauthorized,
	ErrInvalidAuthorizationHeader: http.StatusUnauthorized,
	ErrInvalidToken:               http.StatusUnauthorized,
	ErrInvalidJSON:                http.StatusBadRequest,
	ErrInvalidID:                  http.StatusBadRequest,
	ErrUnknownCollection:          http.StatusNotFound,
	ErrTooManyRequests:            http.StatusTooManyRequests,

	service.ErrNotAuthenticated:     http.StatusUnauthorized,
	service.ErrUserMismatch:         http.StatusForbidden,
	service.ErrOffline:              http.StatusServiceUnavailable,
	service.ErrNotFound:             http.StatusNotFound,
	service.ErrEncryptionNotReady:   http.StatusConflict,
	service.ErrMigrationInterrupted: http.StatusConflict,
	service.ErrQueueClosed:          http.StatusServiceUnavailable,
	service.ErrInvalidPhoto:         http.StatusBadRequest,
	service.ErrNoPhoto:              http.StatusNotFound,

	validators.ErrInvalidDate:    http.StatusBadRequest,
	validators.ErrInvalidHours:   http.StatusBadRequest,
	validators.ErrInvalidTripID:  http.StatusBadRequest,
	validators.ErrInvalidTrip:    http.StatusBadRequest,
	validators.ErrEmptySpecies:   http.StatusBadRequest,
	validators.ErrInvalidChildID: http.StatusBadRequest,
	validators.ErrInvalidPhoto:   http.StatusBadRequest,

	crypto.ErrEmptyIdentity: http.StatusBadRequest,

	store.ErrNotFound:      http.StatusNotFound,
	store.ErrInvalidRecord: http.StatusBadRequest,

	adapter.ErrNotFound:             http.StatusNotFound,
	adapter.ErrInvalidDocument:      http.StatusBadRequest,
	adapter.ErrUnavailable:          http.StatusServiceUnavailable,
	adapter.ErrIndexMissing:         http.StatusServiceUnavailable,
	adapter.ErrBlobStoreUnavailable: http.StatusServiceUnavailable,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
