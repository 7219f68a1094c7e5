package repository

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	sqliteDriver "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSQLiteDSN is used when the sqlite driver is selected without a DSN.
const DefaultSQLiteDSN = "transcript.db"

// OpenGorm opens a SQL database for the transcript store. Supported drivers
// are "postgres" (including Supabase) and "sqlite".
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = "sqlite"
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		if driver != "sqlite" {
			return nil, fmt.Errorf("repository: dsn is required for driver %q", driver)
		}
		dsn = DefaultSQLiteDSN
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch driver {
	case "sqlite":
		if err := ensureSQLiteDirectory(dsn); err != nil {
			return nil, err
		}
		return gorm.Open(sqliteDriver.Open(dsn), cfg)
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("repository: unsupported driver %q", driver)
	}
}

func ensureSQLiteDirectory(dsn string) error {
	path, ok := sqliteFilePath(dsn)
	if !ok {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("repository: create sqlite db dir: %w", err)
	}
	return nil
}

func sqliteFilePath(dsn string) (string, bool) {
	lower := strings.ToLower(dsn)
	if lower == ":memory:" || strings.HasPrefix(lower, "file::memory:") {
		return "", false
	}
	if !strings.HasPrefix(lower, "file:") {
		return stripQuery(dsn), true
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return stripQuery(strings.TrimPrefix(dsn, "file:")), true
	}
	if strings.EqualFold(parsed.Query().Get("mode"), "memory") {
		return "", false
	}
	if parsed.Path != "" {
		return parsed.Path, true
	}
	if parsed.Opaque != "" {
		return stripQuery(parsed.Opaque), true
	}
	return "", false
}

func stripQuery(v string) string {
	if i := strings.Index(v, "?"); i >= 0 {
		return v[:i]
	}
	return v
}
