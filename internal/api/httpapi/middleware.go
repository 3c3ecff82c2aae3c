package httpapi

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	zlog "github.com/rs/zerolog/log"
)

const (
	// AdminTokenHeader is the header name for the control API token.
	AdminTokenHeader = "X-Admin-Token"
)

// adminAuth rejects requests whose X-Admin-Token does not match token.
func adminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminTokenHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				zlog.Debug().Msgf("api: unauthenticated request: method=%s path=%s", r.Method, r.URL.Path)
				writeError(w, http.StatusUnauthorized, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recoveryLogger routes panics caught by handlers.RecoveryHandler to zerolog.
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	zlog.Error().Msgf("api: recovered from panic: %s", fmt.Sprint(v...))
}
