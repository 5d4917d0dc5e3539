package push

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/metrics"
	"github.com/Spacey6849/palliative-care-app/internal/notify"
	"github.com/Spacey6849/palliative-care-app/internal/platform"
)

// Options configures push registration.
type Options struct {
	// ProjectID scopes token issuance. Empty means no remote push project is
	// configured and registration yields a local-only token.
	ProjectID string

	// DeviceType tags token reports to the backend (ios, android, web).
	DeviceType string
}

// Registrar obtains a push identity from the platform and reports it to the
// backend. The last obtained token is cached for the session and may be
// re-sent on each login.
type Registrar struct {
	platform platform.Platform
	backend  *BackendClient
	opts     Options
	logger   *zap.Logger

	mu    sync.Mutex
	token Token
}

// NewRegistrar creates a registrar over the given platform capability.
func NewRegistrar(p platform.Platform, backend *BackendClient, opts Options, logger *zap.Logger) *Registrar {
	return &Registrar{
		platform: p,
		backend:  backend,
		opts:     opts,
		logger:   logger,
	}
}

// Register acquires a push token and caches it. The outcome is one of three
// shapes, never an error:
//
//   - zero token when the device has no push capability or permission is
//     denied (nothing is touched on the platform in the capability case)
//   - local-only token when no push project is configured or token issuance
//     fails (local scheduling still works)
//   - a real token
//
// Delivery channels are created before the token request; platforms that
// validate channel existence require that ordering.
func (r *Registrar) Register(ctx context.Context) Token {
	profile := r.platform.Profile()
	if !profile.PhysicalDevice || profile.Sandboxed {
		r.logger.Info("push registration skipped, environment lacks native push capability",
			zap.Bool("physical_device", profile.PhysicalDevice),
			zap.Bool("sandboxed", profile.Sandboxed))
		metrics.RecordPushRegistration("skipped")
		return Token{}
	}

	status, err := r.platform.PermissionStatus(ctx)
	if err != nil {
		r.logger.Warn("reading notification permission failed", zap.Error(err))
		status = platform.PermissionUndetermined
	}
	if !status.Granted() {
		status, err = r.platform.RequestPermission(ctx)
		if err != nil || !status.Granted() {
			r.logger.Info("notification permission not granted",
				zap.String("status", string(status)),
				zap.Error(err))
			metrics.RecordPushRegistration("denied")
			return Token{}
		}
	}

	for _, ch := range notify.Channels() {
		if err := r.platform.CreateChannel(ctx, ch); err != nil {
			r.logger.Warn("creating notification channel failed",
				zap.String("channel", ch.ID),
				zap.Error(err))
		}
	}

	if r.opts.ProjectID == "" {
		r.logger.Info("no push project configured, running local-only")
		metrics.RecordPushRegistration("local_only")
		return r.cache(LocalOnly())
	}

	value, err := r.platform.PushToken(ctx, r.opts.ProjectID)
	if err != nil {
		if errors.Is(err, platform.ErrNotConfigured) {
			r.logger.Info("remote push service not configured, running local-only")
		} else {
			r.logger.Warn("obtaining push token failed, running local-only", zap.Error(err))
		}
		metrics.RecordPushRegistration("local_only")
		return r.cache(LocalOnly())
	}

	r.logger.Info("push token obtained", zap.String("device_type", r.opts.DeviceType))
	metrics.RecordPushRegistration("token")
	return r.cache(NewToken(value))
}

// CachedToken returns the last token obtained by Register, or the zero token.
func (r *Registrar) CachedToken() Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}

// ReportToken sends the cached token to the backend on behalf of the user.
// Without a cached token it returns false immediately, no network call is
// made. Callers treat a false result as non-critical; login and signup
// proceed regardless.
func (r *Registrar) ReportToken(ctx context.Context, userID, sessionToken string) bool {
	token := r.CachedToken()
	if token.IsZero() {
		r.logger.Debug("no push token cached, skipping backend report",
			zap.String("user_id", userID))
		metrics.RecordPushReport("no_token")
		return false
	}

	ok := r.backend.Report(ctx, token, r.opts.DeviceType, sessionToken)
	if !ok {
		metrics.RecordPushReport("failed")
		r.logger.Warn("backend did not acknowledge push token",
			zap.String("user_id", userID))
		return false
	}

	metrics.RecordPushReport("ok")
	r.logger.Info("push token reported to backend",
		zap.String("user_id", userID),
		zap.Bool("local_only", token.IsLocalOnly()))
	return true
}

func (r *Registrar) cache(t Token) Token {
	r.mu.Lock()
	r.token = t
	r.mu.Unlock()
	return t
}
