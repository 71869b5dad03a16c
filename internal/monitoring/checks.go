package monitoring

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const defaultProbeTimeout = 2 * time.Second

// Database pings the SQL connection pool behind db.
func Database(db *gorm.DB, timeout time.Duration) Check {
	return NewCheck("database", func(ctx context.Context) ProbeResult {
		start := time.Now()
		if db == nil {
			return ProbeResult{Status: StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return ResultFromError(err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()
		return ResultFromError(sqlDB.PingContext(probeCtx), time.Since(start))
	})
}

// Pinger probes an external dependency such as the token store or the event broker.
func Pinger(name string, ping func(ctx context.Context) error, timeout time.Duration) Check {
	return NewCheck(name, func(ctx context.Context) ProbeResult {
		start := time.Now()
		if ping == nil {
			return ProbeResult{Status: StatusDown, Details: name + " not configured"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()
		return ResultFromError(ping(probeCtx), time.Since(start))
	})
}

func chooseTimeout(provided time.Duration) time.Duration {
	if provided <= 0 {
		return defaultProbeTimeout
	}
	return provided
}
