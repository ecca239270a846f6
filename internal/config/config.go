package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the full configuration surface of the auth service, parsed from
// environment variables. SMTP settings live in the mailer package.
type Config struct {
	Env      string `env:"APP_ENV"   envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":5000"`

	Mongo MongoConfig
	Token TokenConfig
	OTP   OTPConfig
}

// MongoConfig holds the document store connection settings.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DATABASE" envDefault:"solstyle"`
}

// TokenConfig holds the session token signing settings.
type TokenConfig struct {
	Secret    string        `env:"JWT_SECRET"`
	Issuer    string        `env:"JWT_ISSUER"     envDefault:"solstyle-auth"`
	ExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"720h"`
}

// OTPConfig controls one-time passcode delivery. Delivery selects the gateway
// implementation: "smtp" sends real email, "log" only logs the code and is
// meant for non-production environments.
type OTPConfig struct {
	Delivery    string        `env:"OTP_DELIVERY"     envDefault:"smtp"`
	SendTimeout time.Duration `env:"OTP_SEND_TIMEOUT" envDefault:"10s"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("missing MONGO_URI environment variable")
	}
	if c.Token.Secret == "" {
		return fmt.Errorf("missing JWT_SECRET environment variable")
	}
	if c.OTP.Delivery != "smtp" && c.OTP.Delivery != "log" {
		return fmt.Errorf("OTP_DELIVERY must be either smtp or log, got %q", c.OTP.Delivery)
	}

	return nil
}
