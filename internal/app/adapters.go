package app

import (
	"strings"

	"github.com/charlesng35/gatekeep/internal/auth"
	"github.com/charlesng35/gatekeep/internal/database"
	"github.com/charlesng35/gatekeep/internal/drive"
	"github.com/charlesng35/gatekeep/internal/notify"
	"github.com/charlesng35/gatekeep/internal/services"
	"github.com/charlesng35/gatekeep/pkg/mail"
)

// DatabaseSettings converts DatabaseConfig into the database package representation.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	return database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             c.DSN,
		Host:            c.Host,
		Port:            c.Port,
		Name:            c.Name,
		User:            c.User,
		Password:        c.Password,
		Options:         c.Options,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogQueries:      c.LogQueries,
	}
}

// TokenServiceConfig converts AuthConfig into TokenService parameters.
func (c AuthConfig) TokenServiceConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:           c.JWT.Secret,
		AccessTTL:        c.JWT.AccessTTL,
		RefreshTTL:       c.JWT.RefreshTTL,
		ResetPasswordTTL: c.JWT.ResetPasswordTTL,
		VerifyEmailTTL:   c.JWT.VerifyEmailTTL,
	}
}

// AttemptLimits converts the attempt caps. Zero values fall back to the service defaults.
func (c AuthConfig) AttemptLimits() services.AttemptLimits {
	return services.AttemptLimits{
		Login:          c.Attempts.MaxLogin,
		ResetPassword:  c.Attempts.MaxResetPassword,
		VerifyEmail:    c.Attempts.MaxVerifyEmail,
		ChangeEmail:    c.Attempts.MaxChangeEmail,
		ChangePassword: c.Attempts.MaxChangePassword,
	}
}

// DriveSettings converts DriveConfig to the drive package representation.
func (c DriveConfig) DriveSettings() drive.Config {
	return drive.Config{
		CredentialsFile: strings.TrimSpace(c.CredentialsFile),
		CredentialsJSON: c.CredentialsJSON,
		FolderID:        strings.TrimSpace(c.FolderID),
	}
}

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// MailConfig builds the notification mail settings; links point at the server base URL.
func (c Config) MailConfig() notify.MailConfig {
	return notify.MailConfig{
		AppName: c.Email.AppName,
		From:    c.Email.SMTP.From,
		BaseURL: strings.TrimRight(c.Server.BaseURL, "/"),
	}
}
