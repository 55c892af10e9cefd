package gateway

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"trading-analytics/internal/logger"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

// TOTPHeader carries the one-time code for state-changing endpoints.
const TOTPHeader = "X-TOTP-Code"

// TOTPGuard requires a valid time-based one-time code on the endpoints it
// wraps. A guard with an empty secret lets every request through.
type TOTPGuard struct {
	secret string
	now    func() time.Time
}

// NewTOTPGuard creates a guard for the base32 secret.
func NewTOTPGuard(secret string) *TOTPGuard {
	return &TOTPGuard{secret: strings.TrimSpace(secret), now: time.Now}
}

// Enabled reports whether codes are checked.
func (g *TOTPGuard) Enabled() bool { return g.secret != "" }

// Valid checks code against the current 30s window (with the default skew).
func (g *TOTPGuard) Valid(code string) bool {
	if !g.Enabled() {
		return true
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, g.secret, g.now().UTC(), totp.ValidateOpts{
		Period: 30,
		Skew:   1,
		Digits: 6,
	})
	return err == nil && ok
}

// Require wraps h with the code check.
func (g *TOTPGuard) Require(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.Valid(r.Header.Get(TOTPHeader)) {
			writeError(w, http.StatusUnauthorized, "missing or invalid "+TOTPHeader)
			return
		}
		h(w, r)
	}
}

// cors sets CORS headers for the allowed origins; an empty list allows all.
func cors(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if o == "*" || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}
				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+TOTPHeader)
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("gateway: response writer cannot be hijacked")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// requestLogging tags each request with an id and logs its outcome.
func requestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			r = r.WithContext(logger.WithRequestID(r.Context(), id))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			if rec.status >= 500 {
				level = slog.LevelError
			}
			log.Log(r.Context(), level, "http request",
				slog.String("request_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
