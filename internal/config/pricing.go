package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Metering holds the cap and overage constants enforced by the metering core.
type Metering struct {
	AICostCapCents         int64   `mapstructure:"aiCostCapCents"`
	VisitLimit             int64   `mapstructure:"visitLimit"`
	OverageIncrementVisits int64   `mapstructure:"overageIncrementVisits"`
	OverageFeeCents        int64   `mapstructure:"overageFeeCents"`
	CacheTTLSeconds        int64   `mapstructure:"cacheTTLSeconds"`
	FreeVisitCap           int64   `mapstructure:"freeVisitCap"`
	WarningThreshold       float64 `mapstructure:"warningThreshold"`
}

// CacheTTL returns the AI usage cache TTL as a duration.
func (m Metering) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLSeconds) * time.Second
}

// Plan describes a base plan and its external price mapping.
type Plan struct {
	PriceCents    int64  `mapstructure:"priceCents"`
	StripePriceID string `mapstructure:"stripePriceId"`
}

// Addon describes a subscribable add-on in the catalog.
type Addon struct {
	ID            string `mapstructure:"id"`
	Name          string `mapstructure:"name"`
	Category      string `mapstructure:"category"` // premium | infrastructure
	PriceCents    int64  `mapstructure:"priceCents"`
	StripePriceID string `mapstructure:"stripePriceId"`
	Active        bool   `mapstructure:"active"`
}

// PricingConfig is the hot-reloadable pricing and metering policy.
type PricingConfig struct {
	Metering Metering        `mapstructure:"metering"`
	Plans    map[string]Plan `mapstructure:"plans"`
	Addons   []Addon         `mapstructure:"addons"`
}

// Addon looks up an addon by id in the catalog.
func (p PricingConfig) Addon(id string) (Addon, bool) {
	id = strings.TrimSpace(id)
	for _, addon := range p.Addons {
		if addon.ID == id {
			return addon, true
		}
	}
	return Addon{}, false
}

// Plan looks up a base plan by type, falling back to the free plan.
func (p PricingConfig) Plan(planType string) Plan {
	if plan, ok := p.Plans[planType]; ok {
		return plan
	}
	return p.Plans["free"]
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Metering: Metering{
			AICostCapCents:         2000,
			VisitLimit:             50000,
			OverageIncrementVisits: 10000,
			OverageFeeCents:        1000,
			CacheTTLSeconds:        300,
			FreeVisitCap:           5000,
			WarningThreshold:       0.8,
		},
		Plans: map[string]Plan{
			"free":       {PriceCents: 0},
			"standard":   {PriceCents: 1900},
			"ai_powered": {PriceCents: 4900},
		},
		Addons: []Addon{
			{ID: "custom_domain", Name: "Custom Domain", Category: "infrastructure", PriceCents: 500, Active: true},
			{ID: "priority_support", Name: "Priority Support", Category: "premium", PriceCents: 900, Active: true},
			{ID: "advanced_analytics", Name: "Advanced Analytics", Category: "premium", PriceCents: 700, Active: true},
		},
	}
}

// PricingHolder exposes the current pricing config and follows file changes.
type PricingHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewPricingHolder loads pricing.yml (volume mount, /etc, or cwd) and
// watches it for hot reload. Missing file means built-in defaults.
func NewPricingHolder() (*PricingHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/znapsite/config")
	v.AddConfigPath("/etc/znapsite")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ZNAPSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PricingHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultPricingConfig())
		return holder, nil
	}

	cfg, err := decodePricing(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePricing(v)
		if err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPricingHolder wraps a fixed config; used by tests.
func NewStaticPricingHolder(cfg PricingConfig) *PricingHolder {
	holder := &PricingHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PricingHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func decodePricing(v *viper.Viper) (PricingConfig, error) {
	cfg := DefaultPricingConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return PricingConfig{}, err
	}
	if err := validatePricing(cfg); err != nil {
		return PricingConfig{}, err
	}
	return cfg, nil
}

func validatePricing(cfg PricingConfig) error {
	m := cfg.Metering
	if m.AICostCapCents <= 0 || m.VisitLimit <= 0 || m.OverageIncrementVisits <= 0 {
		return errors.New("metering limits must be positive")
	}
	if m.WarningThreshold <= 0 || m.WarningThreshold >= 1 {
		return errors.New("metering.warningThreshold must be in (0, 1)")
	}
	if len(cfg.Plans) == 0 {
		return errors.New("plans cannot be empty")
	}
	return nil
}
