package jwt

import (
	"context"
	"net/http"
	"strings"
)

type claimsCtxKey struct{}

// SetClaims stores parsed claims in the context.
func SetClaims(ctx context.Context, claims StandardClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, claims)
}

// ClaimsFromContext returns the claims injected by Middleware.
func ClaimsFromContext(ctx context.Context) (StandardClaims, bool) {
	claims, ok := ctx.Value(claimsCtxKey{}).(StandardClaims)
	return claims, ok
}

// ErrorResponder writes the 401 response body; the API wires its JSON
// envelope in here so the middleware stays format-agnostic.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// Middleware validates "Authorization: Bearer" tokens and injects the
// standard claims into the request context.
func Middleware(service *Service, respond ErrorResponder) func(http.Handler) http.Handler {
	if respond == nil {
		respond = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				respond(w, r, err)
				return
			}

			var claims StandardClaims
			if err := service.Parse(token, &claims); err != nil {
				respond(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrInvalidToken
	}
	scheme, token, found := strings.Cut(auth, " ")
	if !found || scheme != "Bearer" || token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
