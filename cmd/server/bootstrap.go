package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/api"
	"github.com/charlesng35/gatekeep/internal/app"
	"github.com/charlesng35/gatekeep/internal/app/maintenance"
	iauth "github.com/charlesng35/gatekeep/internal/auth"
	"github.com/charlesng35/gatekeep/internal/auth/mongostore"
	"github.com/charlesng35/gatekeep/internal/cache"
	"github.com/charlesng35/gatekeep/internal/database"
	"github.com/charlesng35/gatekeep/internal/drive"
	"github.com/charlesng35/gatekeep/internal/events"
	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/internal/monitoring"
	"github.com/charlesng35/gatekeep/internal/notify"
	"github.com/charlesng35/gatekeep/internal/permissions"
	"github.com/charlesng35/gatekeep/internal/services"
	"github.com/charlesng35/gatekeep/pkg/logger"
	"github.com/charlesng35/gatekeep/pkg/mail"
)

const tokenStoreMongo = "mongodb"

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Mongo     *mongo.Client
	Publisher *events.Publisher
	Services  *api.Services
	Cleaner   *maintenance.Cleaner
	Router    *gin.Engine
}

// bootstrapRuntime initialises storage, collaborators, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" && !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokenStore, err := initialiseTokenStore(ctx, cfg, stack, log)
	if err != nil {
		return nil, err
	}

	tokens, err := iauth.NewTokenService(stack.DB, tokenStore, cfg.Auth.TokenServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise token service: %w", err)
	}

	cacheStore := cache.NewDatabaseStore(stack.DB)
	resolver, err := permissions.NewResolver(stack.DB, cacheStore, cfg.Cache.PermissionTTL)
	if err != nil {
		return nil, fmt.Errorf("initialise permission resolver: %w", err)
	}

	notifier, err := initialiseNotifier(cfg, stack, log)
	if err != nil {
		return nil, err
	}

	stack.Services, err = api.NewServices(stack.DB, api.ServiceDeps{
		Tokens:   tokens,
		Resolver: resolver,
		Storage:  initialiseStorage(ctx, cfg, log),
		Notifier: notifier,
		Limits:   cfg.Auth.AttemptLimits(),
		Probes:   stack.probes(),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	if err := ensureBootstrapAdmin(ctx, stack.DB, stack.Services.Users, cfg.Bootstrap, log); err != nil {
		return nil, err
	}

	stack.Cleaner = maintenance.NewCleaner(tokens, cacheStore, stack.Services.Audit,
		maintenance.WithTokenSchedule(cfg.Tokens.PurgeSchedule),
		maintenance.WithAuditSchedule(cfg.Audit.Schedule),
		maintenance.WithAuditRetention(cfg.Audit.Retention),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(stack.DB, cfg, stack.Services)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
		s.Cleaner = nil
	}

	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Warn("rabbitmq shutdown", zap.Error(err))
		}
		s.Publisher = nil
	}

	if s.Mongo != nil {
		if err := s.Mongo.Disconnect(context.Background()); err != nil {
			log.Warn("mongodb shutdown", zap.Error(err))
		}
		s.Mongo = nil
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		s.DB = nil
	}
}

// probes lists readiness checks for the optional backends that connected.
func (s *runtimeStack) probes() []monitoring.Check {
	var checks []monitoring.Check
	if s.Mongo != nil {
		client := s.Mongo
		checks = append(checks, monitoring.Pinger("mongodb", func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}, 0))
	}
	if s.Publisher != nil {
		checks = append(checks, monitoring.Pinger("rabbitmq", s.Publisher.Ping, 0))
	}
	return checks
}

func initialiseDatabase(ctx context.Context, cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}
	if err := permissions.Sync(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("sync permissions: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))
	return db, nil
}

func initialiseTokenStore(ctx context.Context, cfg *app.Config, stack *runtimeStack, log *zap.Logger) (iauth.TokenStore, error) {
	if !strings.EqualFold(strings.TrimSpace(cfg.Tokens.Store), tokenStoreMongo) {
		store, err := iauth.NewDatabaseTokenStore(stack.DB)
		if err != nil {
			return nil, fmt.Errorf("initialise token store: %w", err)
		}
		return store, nil
	}

	store, client, err := mongostore.Connect(ctx, cfg.Tokens.Mongo.URI, cfg.Tokens.Mongo.Database)
	if err != nil {
		return nil, err
	}
	stack.Mongo = client

	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("initialise token indexes: %w", err)
	}
	log.Info("token store connected", zap.String("backend", tokenStoreMongo), zap.String("database", cfg.Tokens.Mongo.Database))
	return store, nil
}

// initialiseStorage falls back to the disabled backend when Drive is off or misconfigured.
func initialiseStorage(ctx context.Context, cfg *app.Config, log *zap.Logger) drive.Storage {
	if !cfg.Storage.Drive.Enabled {
		return drive.Disabled{}
	}

	storage, err := drive.NewGoogleDrive(ctx, cfg.Storage.Drive.DriveSettings())
	if err != nil {
		log.Warn("google drive unavailable; picture uploads are disabled", zap.Error(err))
		return drive.Disabled{}
	}
	log.Info("google drive storage enabled", zap.String("folder_id", cfg.Storage.Drive.FolderID))
	return storage
}

func initialiseNotifier(cfg *app.Config, stack *runtimeStack, log *zap.Logger) (notify.Notifier, error) {
	var fanout notify.Fanout

	if cfg.Email.SMTP.Enabled {
		mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
		if err != nil {
			return nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
		mailNotifier, err := notify.NewMailNotifier(mailer, cfg.MailConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise mail notifier: %w", err)
		}
		fanout = append(fanout, mailNotifier)
	}

	if cfg.Events.RabbitMQ.Enabled {
		publisher, err := events.NewPublisher(cfg.Events.RabbitMQ.URI, cfg.Events.RabbitMQ.Exchange)
		if err != nil {
			log.Warn("rabbitmq unavailable; account events are not published", zap.Error(err))
		} else {
			stack.Publisher = publisher
			fanout = append(fanout, notify.NewEventNotifier(publisher))
		}
	}

	if len(fanout) == 0 {
		return notify.Noop{}, nil
	}
	return fanout, nil
}

// ensureBootstrapAdmin creates the configured administrator unless an account already holds that email.
func ensureBootstrapAdmin(ctx context.Context, db *gorm.DB, users *services.UserService, cfg app.BootstrapConfig, log *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" {
		return nil
	}
	if strings.TrimSpace(cfg.AdminPassword) == "" {
		return errors.New("bootstrap.admin_password must be set when bootstrap.admin_email is configured")
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return fmt.Errorf("check bootstrap admin: %w", err)
	}
	if existing > 0 {
		return nil
	}

	var role models.Role
	if err := db.WithContext(ctx).Take(&role, "name = ?", models.RoleAdmin).Error; err != nil {
		return fmt.Errorf("load admin role: %w", err)
	}

	name := strings.TrimSpace(cfg.AdminName)
	if name == "" {
		name = "Administrator"
	}

	result, err := users.Create(ctx, "", services.CreateUserInput{
		Name:     name,
		Email:    email,
		Phone:    cfg.AdminPhone,
		Password: cfg.AdminPassword,
		RoleID:   role.ID,
	}, nil)
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	log.Info("bootstrap administrator created", zap.String("user_id", result.User.ID), zap.String("email", email))
	return nil
}
