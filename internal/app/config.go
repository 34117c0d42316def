package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Store drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"HTTP server listen address"`
	DiscountCodes string `usage:"Base64 JSON discount table (see cmd/discount-export)" flag:"discount-codes"`
	SecureCookies bool   `default:"false" usage:"Mark preference cookies Secure" flag:"secure-cookies"`

	ExchangeRateURL string        `default:"https://api.exchangerate-api.com/v4/latest/INR" usage:"INR exchange rate endpoint" flag:"exchange-rate-url"`
	RateRefresh     time.Duration `default:"1h" usage:"Exchange rate refresh interval" flag:"rate-refresh"`
	IPAPIURL        string        `default:"https://ipapi.co" usage:"IP geolocation service base URL" flag:"ipapi-url"`
	GeoTimeout      time.Duration `default:"5s" usage:"Currency detection timeout" flag:"geo-timeout"`

	Merchant  MerchantConfig
	Promotion PromotionConfig
	PhonePe   PhonePeConfig
	Telegram  TelegramConfig
	Store     StoreConfig
	RateLimit RateLimitConfig
	Graceful  GracefulConfig
}

// MerchantConfig identifies the merchant towards the payment providers.
type MerchantConfig struct {
	HomepageURL  string   `default:"https://starlighttrader.in" usage:"Homepage the acknowledgment screens return to" flag:"homepage-url"`
	BaseURL      string   `default:"http://localhost:8080" usage:"Public base URL of this server, used for provider callbacks" flag:"base-url"`
	WiseHandle   string   `usage:"Wise business pay handle" flag:"wise-handle"`
	VPA          string   `usage:"UPI virtual payment address" flag:"upi-vpa"`
	PayeeName    string   `usage:"UPI payee name" flag:"upi-payee"`
	INRProviders []string `default:"UPI,PhonePe,Wise" usage:"Payment providers offered for INR, in display order" flag:"inr-providers"`
	USDProviders []string `default:"Wise,PayPal" usage:"Payment providers offered for USD, in display order" flag:"usd-providers"`
}

// Providers returns the provider names keyed by currency code.
func (m MerchantConfig) Providers() map[string][]string {
	return map[string][]string{
		"INR": m.INRProviders,
		"USD": m.USDProviders,
	}
}

// PromotionConfig marks the popular and on-sale products.
type PromotionConfig struct {
	PopularTitle    string `default:"StarLightTrader Pro" usage:"Title of the highlighted product" flag:"popular-title"`
	OnSaleTitle     string `default:"StarLightTrader Pro" usage:"Title of the product on sale" flag:"on-sale-title"`
	DiscountedPrice string `default:"45000" usage:"Promotional INR price of the product on sale" flag:"discounted-price"`
}

// Price parses DiscountedPrice. An empty value disables the sale.
func (p PromotionConfig) Price() (decimal.Decimal, error) {
	if strings.TrimSpace(p.DiscountedPrice) == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(strings.TrimSpace(p.DiscountedPrice))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse promotion discounted price")
	}
	return v, nil
}

// PhonePeConfig holds PhonePe merchant credentials.
type PhonePeConfig struct {
	MerchantID  string `usage:"PhonePe merchant id" flag:"phonepe-merchant-id"`
	SaltKey     string `usage:"PhonePe salt key" flag:"phonepe-salt-key"`
	SaltIndex   string `usage:"PhonePe salt index" flag:"phonepe-salt-index"`
	Environment string `default:"preprod" usage:"PhonePe environment: production or preprod" flag:"phonepe-env"`
}

// TelegramConfig controls billing notifications.
type TelegramConfig struct {
	BotToken string `usage:"Telegram bot token" flag:"telegram-token"`
	ChatID   string `usage:"Telegram chat id" flag:"telegram-chat-id"`
}

// StoreConfig selects where billing records go.
type StoreConfig struct {
	Driver      string        `default:"mongo" usage:"Billing store: mongo, postgres or none" flag:"store-driver"`
	MongoURI    string        `usage:"MongoDB connection URI" flag:"mongo-uri"`
	MongoDB     string        `default:"SLT_Transactions" usage:"MongoDB database" flag:"mongo-db"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (STOREFRONT_STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Timeout     time.Duration `default:"10s" usage:"Store connect and write timeout" flag:"store-timeout"`
	QueueSize   int           `default:"128" usage:"Pending billing records before new ones are dropped" flag:"billing-queue"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("mongo URI is required: set STOREFRONT_STORE_MONGO_URI or MONGODB_URI")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("database URL is required: set STOREFRONT_STORE_DATABASE_URL or DATABASE_URL")
		}
	case DriverNone:
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if _, err := c.Promotion.Price(); err != nil {
		return err
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT to the STOREFRONT_ settings.
func (c *Config) applyPlatformDefaults() {
	if c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Store.MongoURI == "" {
		c.Store.MongoURI = os.Getenv("MONGODB_URI")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
