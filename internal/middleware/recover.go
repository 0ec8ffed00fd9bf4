package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"flyerproxy/internal/domain"
)

// Recover turns a panic into a 500 envelope. The stack is logged always and
// echoed to the client only when exposeStack is set.
func Recover(l zerolog.Logger, exposeStack bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := string(debug.Stack())
				l.Error().
					Str("request_id", RequestIDFromContext(r.Context())).
					Str("panic", fmt.Sprint(rec)).
					Str("stack", stack).
					Msg("http: handler panicked")
				env := domain.ErrorEnvelope("Internal server error", fmt.Sprint(rec), nil)
				if exposeStack {
					env.Stack = stack
				}
				writeEnvelope(w, http.StatusInternalServerError, env)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
