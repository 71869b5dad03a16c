package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/pkg/logger"
)

// Notifier tells the outside world about account lifecycle events.
type Notifier interface {
	UserRegistered(ctx context.Context, user *models.User, verifyToken string) error
	PasswordResetRequested(ctx context.Context, user *models.User, token string, ttl time.Duration) error
	VerificationRequested(ctx context.Context, user *models.User, token string, ttl time.Duration) error
}

// Noop discards every notification.
type Noop struct{}

func (Noop) UserRegistered(context.Context, *models.User, string) error { return nil }

func (Noop) PasswordResetRequested(context.Context, *models.User, string, time.Duration) error {
	return nil
}

func (Noop) VerificationRequested(context.Context, *models.User, string, time.Duration) error {
	return nil
}

// Fanout delivers each notification to every wrapped notifier. One failing
// target does not stop the others; failures are logged and combined.
type Fanout []Notifier

func (f Fanout) UserRegistered(ctx context.Context, user *models.User, verifyToken string) error {
	return f.each("user_registered", user, func(n Notifier) error {
		return n.UserRegistered(ctx, user, verifyToken)
	})
}

func (f Fanout) PasswordResetRequested(ctx context.Context, user *models.User, token string, ttl time.Duration) error {
	return f.each("password_reset_requested", user, func(n Notifier) error {
		return n.PasswordResetRequested(ctx, user, token, ttl)
	})
}

func (f Fanout) VerificationRequested(ctx context.Context, user *models.User, token string, ttl time.Duration) error {
	return f.each("verification_requested", user, func(n Notifier) error {
		return n.VerificationRequested(ctx, user, token, ttl)
	})
}

func (f Fanout) each(event string, user *models.User, send func(Notifier) error) error {
	var errs error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := send(n); err != nil {
			logger.WithModule("notify").Warn("notification delivery failed",
				zap.String("event", event),
				zap.String("user_id", userID(user)),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func userID(user *models.User) string {
	if user == nil {
		return ""
	}
	return user.ID
}
