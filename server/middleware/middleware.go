// Package middleware holds echo middleware for the chat API: per-IP rate
// limiting and admin-route authentication. Grounded on
// cmd/divinesense/main.go's viper-bound knobs being turned into runtime
// behavior, reimplemented against echo/v4 + golang.org/x/time/rate +
// golang-jwt/v5 since SPEC_FULL.md names all three explicitly for this
// surface.
package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/vidinsight-tech/queryon/internal/config"
)

// RateLimit returns an echo middleware that enforces cfg.Requests per
// cfg.Per, keyed by client IP, using one token-bucket limiter per IP.
func RateLimit(cfg config.RateLimit) echo.MiddlewareFunc {
	if cfg.Requests <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	limit := rate.Every(cfg.Per / time.Duration(cfg.Requests))
	limiters := &limiterSet{byIP: make(map[string]*rate.Limiter)}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !limiters.get(ip, limit, cfg.Requests).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// limiterSet lazily creates one rate.Limiter per client IP.
type limiterSet struct {
	mu   sync.Mutex
	byIP map[string]*rate.Limiter
}

func (s *limiterSet) get(ip string, limit rate.Limit, burst int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byIP[ip]
	if !ok {
		l = rate.NewLimiter(limit, burst)
		s.byIP[ip] = l
	}
	return l
}

// AdminAuth gates a route group behind either a raw X-Admin-Key header
// matching apiKey, or a Bearer JWT signed with apiKey as the HMAC secret.
// A deployment with no ADMIN_API_KEY configured has the admin surface
// unmounted entirely (see server/httpapi), so this middleware always has
// a non-empty key by the time it runs.
func AdminAuth(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key := c.Request().Header.Get("X-Admin-Key"); key != "" && key == apiKey {
				return next(c)
			}

			auth := c.Request().Header.Get("Authorization")
			token, hasBearer := strings.CutPrefix(auth, "Bearer ")
			if !hasBearer || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing admin credentials")
			}

			parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.NewHTTPError(http.StatusUnauthorized, "unexpected signing method")
				}
				return []byte(apiKey), nil
			})
			if err != nil || !parsed.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid admin token")
			}
			return next(c)
		}
	}
}
