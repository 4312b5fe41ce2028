package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	APIPort  int `yaml:"apiPort"`
	Database struct {
		Driver     string `yaml:"driver"`
		Path       string `yaml:"path"`
		DSN        string `yaml:"dsn"`
		WALMode    bool   `yaml:"walMode"`
		MaxRetries int    `yaml:"maxRetries"`
		RetryDelay int    `yaml:"retryDelay"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret       string        `yaml:"jwtSecret"`
		AccessTTL       time.Duration `yaml:"accessTTL"`
		RefreshTTL      time.Duration `yaml:"refreshTTL"`
		CleanupInterval time.Duration `yaml:"cleanupInterval"`
	} `yaml:"auth"`
	RateLimit struct {
		RedisAddr       string `yaml:"redisAddr"`
		RegisterPerHour int    `yaml:"registerPerHour"`
		ResetPerHour    int    `yaml:"resetPerHour"`
	} `yaml:"rateLimit"`
	Mail struct {
		Provider    string `yaml:"provider"`
		Region      string `yaml:"region"`
		FromAddress string `yaml:"fromAddress"`
		FrontendURL string `yaml:"frontendURL"`
	} `yaml:"mail"`
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Printf("Warning: Could not read config file: %s. Using defaults or environment variables.", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.APIPort == 0 {
		cfg.APIPort = 8081
		log.Println("APIPort not specified, using default 8081")
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
		log.Println("Database driver not specified, using default sqlite3")
	}
	if cfg.Database.Driver == "sqlite3" && cfg.Database.Path == "" {
		cfg.Database.Path = "/data/keyhaven.db"
		log.Println("Database path not specified, using default /data/keyhaven.db")
	}
	if !v.IsSet("database.walMode") {
		cfg.Database.WALMode = true
	}
	if cfg.Database.MaxRetries == 0 {
		cfg.Database.MaxRetries = 5
	}
	if cfg.Database.RetryDelay == 0 {
		cfg.Database.RetryDelay = 5
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "dev-only-secret"
		log.Println("Auth JWT secret not specified, using insecure development default")
	}
	if cfg.Auth.AccessTTL == 0 {
		cfg.Auth.AccessTTL = 15 * time.Minute
	}
	if cfg.Auth.RefreshTTL == 0 {
		cfg.Auth.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.CleanupInterval == 0 {
		cfg.Auth.CleanupInterval = time.Hour
	}

	if cfg.RateLimit.RegisterPerHour == 0 {
		cfg.RateLimit.RegisterPerHour = 5
	}
	if cfg.RateLimit.ResetPerHour == 0 {
		cfg.RateLimit.ResetPerHour = 3
	}

	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = "log"
		log.Println("Mail provider not specified, using log dispatcher")
	}
	if cfg.Mail.FromAddress == "" {
		cfg.Mail.FromAddress = "no-reply@keyhaven.io"
	}
	if cfg.Mail.FrontendURL == "" {
		cfg.Mail.FrontendURL = "https://app.keyhaven.io"
	}

	log.Printf("Configuration loaded: port=%d driver=%s mail=%s", cfg.APIPort, cfg.Database.Driver, cfg.Mail.Provider)
	return &cfg, nil
}
