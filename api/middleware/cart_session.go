package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/davidruizdev/storefront-backend/pkg/logger"
)

const cartSessionHeader = "X-Cart-Session"

// CartSession lifts the guest cart token from its header into the request
// context, minting a fresh token when the shopper arrives without one. The
// token is echoed back so the client can persist it, and it keeps following
// the cart after sign-in.
func CartSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(cartSessionHeader))
			if token == "" {
				token = uuid.NewString()
			}
			w.Header().Set(cartSessionHeader, token)

			ctx := WithCartSession(r.Context(), token)
			if logg != nil {
				ctx = logg.WithCartID(ctx, token)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
