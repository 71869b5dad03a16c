package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/gatekeep/pkg/logger"
)

const (
	defaultAuditRetention = 90 * 24 * time.Hour
	defaultTokenSpec      = "@hourly"
	defaultCacheSpec      = "@hourly"
	defaultAuditSpec      = "@daily"
)

// TokenPurger removes expired and blacklisted tokens.
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// CachePurger removes cache entries that expired before now.
type CachePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditPruner removes audit entries older than retention.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retention time.Duration, now time.Time) (int64, error)
}

// Cleaner schedules background purges of tokens, cache rows and stale audit logs.
type Cleaner struct {
	tokens    TokenPurger
	cache     CachePurger
	audit     AuditPruner
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention time.Duration

	tokenSchedule string
	cacheSchedule string
	auditSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetention adjusts how long audit logs are retained. Zero keeps the default.
func WithAuditRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.retention = retention
		}
	}
}

// WithTokenSchedule overrides the cron specification for token purges.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache purges.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the corresponding job.
func NewCleaner(tokens TokenPurger, cache CachePurger, audit AuditPruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		tokens:        tokens,
		cache:         cache,
		audit:         audit,
		now:           time.Now,
		retention:     defaultAuditRetention,
		tokenSchedule: defaultTokenSpec,
		cacheSchedule: defaultCacheSpec,
		auditSchedule: defaultAuditSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the enabled jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	jobs := 0

	if c.tokens != nil {
		if _, err := c.cron.AddFunc(c.tokenSchedule, func() { c.report("tokens", c.purgeTokens) }); err != nil {
			return err
		}
		jobs++
	}
	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() { c.report("cache", c.purgeCache) }); err != nil {
			return err
		}
		jobs++
	}
	if c.audit != nil {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() { c.report("audit", c.pruneAudit) }); err != nil {
			return err
		}
		jobs++
	}

	if jobs > 0 {
		c.cron.Start()
	}
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially and combines their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.tokens != nil {
		_, err := c.purgeTokens(ctx)
		errs = multierr.Append(errs, err)
	}
	if c.cache != nil {
		_, err := c.purgeCache(ctx)
		errs = multierr.Append(errs, err)
	}
	if c.audit != nil {
		_, err := c.pruneAudit(ctx)
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (c *Cleaner) purgeTokens(ctx context.Context) (int64, error) {
	return c.tokens.PurgeExpired(ctx)
}

func (c *Cleaner) purgeCache(ctx context.Context) (int64, error) {
	return c.cache.PurgeExpired(ctx, c.now())
}

func (c *Cleaner) pruneAudit(ctx context.Context) (int64, error) {
	return c.audit.CleanupOlderThan(ctx, c.retention, c.now())
}

func (c *Cleaner) report(job string, run func(context.Context) (int64, error)) {
	removed, err := run(context.Background())
	if err != nil {
		c.log.Warn("cleanup failed", zap.String("job", job), zap.Error(err))
		return
	}
	if removed > 0 {
		c.log.Info("cleanup completed", zap.String("job", job), zap.Int64("removed", removed))
	}
}
