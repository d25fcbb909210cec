package config

import (
	"os"
	"time"

	"campaignclient/internal/blockchain"
	"campaignclient/internal/logger"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const Prefix = "CAMPAIGN"

type Config struct {
	Network    string `envconfig:"NETWORK" default:"testnet"`
	RPCURL     string `envconfig:"RPC_URL"`
	SponsorURL string `envconfig:"SPONSOR_URL"`
	PackageID  string `envconfig:"PACKAGE_ID"`
	RegistryID string `envconfig:"REGISTRY_ID"`

	DatabasePath string        `envconfig:"DATABASE_PATH" default:"persistent.db"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`

	ExecuteAttempts int           `envconfig:"EXECUTE_ATTEMPTS" default:"3"`
	ExecuteDelay    time.Duration `envconfig:"EXECUTE_DELAY" default:"1s"`
	LookupAttempts  int           `envconfig:"LOOKUP_ATTEMPTS" default:"5"`
	LookupDelay     time.Duration `envconfig:"LOOKUP_DELAY" default:"1s"`
	ReadAttempts    int           `envconfig:"READ_ATTEMPTS" default:"3"`
	ReadDelay       time.Duration `envconfig:"READ_DELAY" default:"500ms"`
	ReadRPS         float64       `envconfig:"READ_RPS" default:"10"`

	WalletMnemonic   string `envconfig:"WALLET_MNEMONIC"`
	SessionSecret    string `envconfig:"SESSION_SECRET"`
	SessionExpiresAt int64  `envconfig:"SESSION_EXPIRES_AT"`

	LogFile    string `envconfig:"LOG_FILE"`
	ErrorFile  string `envconfig:"ERROR_FILE"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogConsole bool   `envconfig:"LOG_CONSOLE" default:"true"`
}

// Load reads the given dotenv files (".env" when none are given) and then the
// CAMPAIGN_* environment. Missing dotenv files are skipped.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, errors.Wrapf(err, "load %s", file)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		zap.String("network", cfg.Network),
		zap.Bool("sponsor url", cfg.SponsorURL != ""),
		zap.Bool("wallet mnemonic", cfg.WalletMnemonic != ""),
		zap.Bool("session secret", cfg.SessionSecret != ""))
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := blockchain.ParseNetwork(c.Network); err != nil {
		return err
	}
	for name, n := range map[string]int{
		"EXECUTE_ATTEMPTS": c.ExecuteAttempts,
		"LOOKUP_ATTEMPTS":  c.LookupAttempts,
		"READ_ATTEMPTS":    c.ReadAttempts,
	} {
		if n < 1 {
			return errors.Errorf("%s_%s must be at least 1", Prefix, name)
		}
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("%s_POLL_INTERVAL must be positive", Prefix)
	}
	return nil
}

func (c *Config) NetworkConfig() blockchain.NetworkConfig {
	name, _ := blockchain.ParseNetwork(c.Network)
	return blockchain.NetworkConfig{
		Name:       name,
		RPCURL:     c.RPCURL,
		PackageID:  c.PackageID,
		RegistryID: c.RegistryID,
	}
}

func (c *Config) Logger() logger.Configuration {
	return logger.Configuration{
		LogFile:   c.LogFile,
		ErrorFile: c.ErrorFile,
		Level:     c.LogLevel,
		Console:   c.LogConsole,
	}
}

// SessionExpiry is zero when no session is configured.
func (c *Config) SessionExpiry() time.Time {
	if c.SessionExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.SessionExpiresAt)
}
