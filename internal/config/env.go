package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// environment lists the TOPOLOAD_* overrides. Empty values leave the file
// setting alone.
type environment struct {
	BaseURL        string `env:"TOPOLOAD_BASE_URL"`
	User           string `env:"TOPOLOAD_USER"`
	Password       string `env:"TOPOLOAD_PASSWORD"`
	ManID          string `env:"TOPOLOAD_MAN_ID"`
	UserGroup      string `env:"TOPOLOAD_USER_GROUP"`
	Timeout        string `env:"TOPOLOAD_TIMEOUT"`
	DBDriver       string `env:"TOPOLOAD_DB_DRIVER"`
	DBDSN          string `env:"TOPOLOAD_DB_DSN"`
	BatchSize      int    `env:"TOPOLOAD_BATCH_SIZE"`
	CreatedBy      string `env:"TOPOLOAD_CREATED_BY"`
	ReportBucket   string `env:"TOPOLOAD_REPORT_BUCKET"`
	ReportRegion   string `env:"TOPOLOAD_REPORT_REGION"`
	ReportEndpoint string `env:"TOPOLOAD_REPORT_ENDPOINT"`
}

// LoadEnv loads the env files that exist into the process environment and
// returns how many were found. Variables already set are not overwritten.
func LoadEnv(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && !info.IsDir() {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// applyEnv overlays TOPOLOAD_* variables. A nil environ reads the process
// environment.
func (c *Config) applyEnv(environ map[string]string) error {
	var e environment
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Inventory.BaseURL, e.BaseURL)
	set(&c.Inventory.User, e.User)
	set(&c.Inventory.Password, e.Password)
	set(&c.Inventory.ManID, e.ManID)
	set(&c.Inventory.UserGroup, e.UserGroup)
	set(&c.Inventory.Timeout, e.Timeout)
	set(&c.Store.Driver, e.DBDriver)
	set(&c.Store.DSN, e.DBDSN)
	set(&c.CreatedBy, e.CreatedBy)
	set(&c.Report.Bucket, e.ReportBucket)
	set(&c.Report.Region, e.ReportRegion)
	set(&c.Report.Endpoint, e.ReportEndpoint)
	if e.BatchSize != 0 {
		c.BatchSize = e.BatchSize
	}
	return nil
}
