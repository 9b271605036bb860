package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/miradorstack/benford-lab/internal/metrics"
)

// KeyFunc extracts the client identifier from a request.
type KeyFunc func(r *http.Request) string

// Options configures Middleware.
type Options struct {
	Limiter            Limiter
	KeyFn              KeyFunc
	TrustXForwardedFor bool
	// Methods limits enforcement to these methods. Empty means every method.
	Methods []string
	// OnReject writes the denial response. Defaults to 429.
	OnReject http.HandlerFunc
	Logger   *slog.Logger
}

// DefaultKeyFunc uses the first X-Forwarded-For hop when trusted, else the RemoteAddr host.
func DefaultKeyFunc(trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware denies requests once the client exhausts its window. Limiter errors are
// answered with 503 rather than silently switching backend.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OnReject == nil {
		opts.OnReject = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}
	methods := make(map[string]struct{}, len(opts.Methods))
	for _, m := range opts.Methods {
		methods[strings.ToUpper(m)] = struct{}{}
	}
	backend := BackendName(opts.Limiter)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(methods) > 0 {
				if _, ok := methods[r.Method]; !ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			key := opts.KeyFn(r)
			admitted, err := opts.Limiter.Check(r.Context(), key)
			if err != nil {
				opts.Logger.Error("rate limit check failed",
					slog.String("backend", backend),
					slog.Any("error", err),
				)
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			metrics.ObserveRateLimit(backend, admitted)
			if !admitted {
				opts.Logger.Warn("request rejected",
					slog.String("client", key),
					slog.String("path", r.URL.Path),
					slog.Any("error", ErrRateLimited),
				)
				w.Header().Set("X-RateLimit-Backend", backend)
				opts.OnReject(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
