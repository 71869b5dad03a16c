package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/pkg/mail"
)

// MailConfig controls the content of account emails.
type MailConfig struct {
	AppName string
	From    string
	// BaseURL, when set, is used to build links such as <base>/reset-password?token=...
	BaseURL string
}

// MailNotifier renders account templates and hands them to a mailer.
type MailNotifier struct {
	mailer mail.Mailer
	cfg    MailConfig
}

// NewMailNotifier constructs a MailNotifier.
func NewMailNotifier(mailer mail.Mailer, cfg MailConfig) (*MailNotifier, error) {
	if mailer == nil {
		return nil, errors.New("notify: mailer is required")
	}
	if strings.TrimSpace(cfg.AppName) == "" {
		cfg.AppName = "Gatekeep"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MailNotifier{mailer: mailer, cfg: cfg}, nil
}

func (n *MailNotifier) UserRegistered(ctx context.Context, user *models.User, verifyToken string) error {
	return n.send(ctx, mail.TemplateWelcome, user, verifyToken, "verify-email", 0)
}

func (n *MailNotifier) PasswordResetRequested(ctx context.Context, user *models.User, token string, ttl time.Duration) error {
	return n.send(ctx, mail.TemplateResetPassword, user, token, "reset-password", ttl)
}

func (n *MailNotifier) VerificationRequested(ctx context.Context, user *models.User, token string, ttl time.Duration) error {
	return n.send(ctx, mail.TemplateVerifyEmail, user, token, "verify-email", ttl)
}

func (n *MailNotifier) send(ctx context.Context, template string, user *models.User, token, path string, ttl time.Duration) error {
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return errors.New("notify: recipient email is required")
	}

	msg, err := mail.Render(template, user.Email, mail.TemplateData{
		AppName:   n.cfg.AppName,
		Name:      user.Name,
		Token:     token,
		Link:      n.link(path, token),
		ExpiresIn: ttl.String(),
	})
	if err != nil {
		return err
	}
	msg.From = n.cfg.From
	return n.mailer.Send(ctx, msg)
}

func (n *MailNotifier) link(path, token string) string {
	if n.cfg.BaseURL == "" || token == "" {
		return ""
	}
	return n.cfg.BaseURL + "/" + path + "?token=" + token
}
