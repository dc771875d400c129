package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"vigil-triage/config"
	"vigil-triage/core/utils"
)

// NewDB opens the configured database. sqlite (pure Go driver) is the
// default; the enterprise deployment mode points db_driver at postgres and
// goes through the pgx stdlib driver.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch driver {
	case "", "sqlite", "sqlite3":
		path := cfg.DBPath
		if strings.TrimSpace(path) == "" {
			path = "data/vigil.db"
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		// Single writer keeps modernc's sqlite happy under concurrency.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			`PRAGMA journal_mode=WAL;`,
			`PRAGMA busy_timeout=5000;`,
			`PRAGMA foreign_keys=ON;`,
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("apply %s: %w", strings.TrimSpace(pragma), err)
			}
		}
		logger.Infof("store: sqlite at %s", path)
		return db, nil
	case "postgres", "pgx":
		if strings.TrimSpace(cfg.DBURL) == "" {
			return nil, fmt.Errorf("db_url required for postgres driver")
		}
		db, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, err
		}
		logger.Infof("store: postgres")
		return db, nil
	}
	return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
}
