package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tinote/tinote/internal/auth"
	"github.com/tinote/tinote/internal/metrics"
	"github.com/tinote/tinote/internal/model"
)

// DefaultMinAuthDuration is the floor on time spent authenticating a request,
// so that failures and cache hits cannot be told apart by latency.
const DefaultMinAuthDuration = 200 * time.Millisecond

const lastUsedTimeout = 5 * time.Second

// KeyStore looks up stored API keys.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache caches resolved auth contexts keyed by a hash of the presented key.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger  *slog.Logger
	Keys    KeyStore
	Cache   AuthCache
	Metrics metrics.Recorder
	// MinDuration pads every authentication to at least this long. Zero disables padding.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests.
// It extracts the API key from the Authorization header,
// verifies it, and injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			authCtx, reason := authenticate(r, cfg, recorder)

			if elapsed := time.Since(startTime); elapsed < cfg.MinDuration {
				time.Sleep(cfg.MinDuration - elapsed)
			}

			if authCtx == nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "invalid or missing API key")
				return
			}

			recordUser(r.Context(), authCtx.UserID)
			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate resolves the request's API key to an auth context. On failure
// it returns nil and a short reason for the log line.
func authenticate(r *http.Request, cfg AuthConfig, recorder metrics.Recorder) (*model.AuthContext, string) {
	key := extractAPIKey(r)
	if key == "" {
		return nil, "missing_key"
	}

	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, "invalid_format"
	}

	cacheKey := auth.CacheKey(key)
	if cfg.Cache != nil {
		cached, err := cfg.Cache.GetAuthContext(r.Context(), cacheKey)
		if err != nil {
			cfg.Logger.Warn("auth cache lookup failed",
				slog.String("error", err.Error()),
				slog.String("request_id", GetRequestID(r.Context())),
			)
		}
		if cached != nil {
			recorder.IncAuthCacheHit()
			logAuthSuccess(cfg.Logger, r, cached, true)
			return cached, ""
		}
		recorder.IncAuthCacheMiss()
	}

	keys, err := cfg.Keys.GetAPIKeysByPrefix(r.Context(), parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("database error during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		return nil, "lookup_failed"
	}

	// Prefixes may collide, so every candidate is verified.
	var matched *model.APIKey
	for _, k := range keys {
		if k.IsRevoked() {
			continue
		}
		ok, err := auth.VerifyKey(key, k.KeyHash)
		if err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, "invalid_key"
	}

	authCtx := &model.AuthContext{
		KeyID:         matched.ID,
		KeyPrefix:     matched.KeyPrefix,
		UserID:        matched.UserID,
		Scopes:        matched.Scopes,
		RateLimitTier: matched.RateLimitTier,
	}

	if cfg.Cache != nil {
		if err := cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx); err != nil {
			cfg.Logger.Warn("auth cache store failed",
				slog.String("error", err.Error()),
				slog.String("request_id", GetRequestID(r.Context())),
			)
		}
	}

	// The request context ends with the response; last-used is best effort.
	keyID := matched.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), lastUsedTimeout)
		defer cancel()
		_ = cfg.Keys.UpdateAPIKeyLastUsed(ctx, keyID)
	}()

	logAuthSuccess(cfg.Logger, r, authCtx, false)
	return authCtx, ""
}

func logAuthSuccess(logger *slog.Logger, r *http.Request, authCtx *model.AuthContext, cacheHit bool) {
	logger.Debug("authentication successful",
		slog.String("key_id", authCtx.KeyID),
		slog.String("key_prefix", authCtx.KeyPrefix),
		slog.String("user_id", authCtx.UserID),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Bool("cache_hit", cacheHit),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// extractAPIKey extracts the API key from the request.
// Supports both "Authorization: Bearer <key>" and "X-API-Key: <key>" headers.
func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
