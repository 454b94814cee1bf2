package http

import (
	"fmt"
	"net/http"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/models"
)

// auth is an HTTP middleware that requires a valid sign-in token.
//
// It reads the "Authorization: Bearer <token>" header, validates the token
// against the configured sign key and issuer and stores the user id and email
// of the token in the request context (see [utils.WithSession]) before
// delegating to the next handler. Requests without a usable token are
// rejected with 401 Unauthorized.
func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := h.tokenFromRequest(r)
		if err != nil {
			h.fail(w, r, "*Handler.auth", err, "unauthorized")
			return
		}

		ctx := utils.WithSession(r.Context(), token.UserID, token.Email)
		ctx = logger.WithUser(ctx, token.UserID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) tokenFromRequest(r *http.Request) (models.Token, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return models.Token{}, ErrEmptyAuthorizationHeader
	}

	tokenString, err := utils.ParseBearerToken(authHeader)
	if err != nil {
		return models.Token{}, ErrInvalidAuthorizationHeader
	}

	token, err := utils.ValidateAndParseJWTToken(tokenString, h.app.TokenSignKey, h.app.TokenIssuer)
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return token, nil
}
