package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Backend   Backend   `envPrefix:"BACKEND_"`
	Session   Session   `envPrefix:"SESSION_"`
	Payment   Payment   `envPrefix:"PAYMENT_"`
	Paypal    Paypal    `envPrefix:"PAYPAL_"`
	BrainTree Braintree `envPrefix:"BRAINTREE_"`
	Profile   Profile   `envPrefix:"PROFILE_"`
	Reconcile Reconcile `envPrefix:"RECONCILE_"`
}

// Backend is the storefront REST API the screens read from.
type Backend struct {
	URL     string        `env:"URL" envDefault:"http://localhost:5000"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type Session struct {
	StoreDSN string `env:"STORE_DSN" envDefault:"storefront.db"`
	StoreKey string `env:"STORE_KEY" envDefault:"userInfo"`
}

type Payment struct {
	Provider string `env:"PROVIDER" envDefault:"paypal"` // paypal | braintree
	Currency string `env:"CURRENCY" envDefault:"GBP"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT" envDefault:"sandbox"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Profile struct {
	RequirePasswordConfirmation bool `env:"REQUIRE_PASSWORD_CONFIRMATION" envDefault:"false"`
}

type Reconcile struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"1m"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

func (h HTTPServer) Addr() string {
	return h.Host + ":" + h.Port
}

// Load reads an optional .env file into the process environment and parses it into a Config.
func Load(dotenvFiles ...string) (*Config, error) {
	// a missing .env is fine outside development
	_ = godotenv.Load(dotenvFiles...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	switch cfg.Payment.Provider {
	case "paypal", "braintree":
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Payment.Provider)
	}

	return cfg, nil
}
