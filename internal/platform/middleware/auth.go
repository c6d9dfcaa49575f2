package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"ereader/pkg/platform/httputil"
)

// TokenValidator resolves a bearer token to the user it was issued for.
type TokenValidator interface {
	ValidateToken(token string) (userID int, err error)
}

type contextKeyUserID struct{}

// GetUserID retrieves the authenticated user ID from the context, or 0.
func GetUserID(ctx context.Context) int {
	userID, _ := ctx.Value(contextKeyUserID{}).(int)
	return userID
}

// WithUserID returns ctx carrying userID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, userID)
}

// RequireAuth rejects requests without a valid bearer token with a 401
// envelope.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Envelope{Message: "No token provided"})
				return
			}

			userID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Envelope{Message: "Invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(ctx, userID)))
		})
	}
}
