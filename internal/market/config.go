package market

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	General       GeneralConfig       `yaml:"general"`
	Shop          ShopConfig          `yaml:"shop"`
	Barter        BarterConfig        `yaml:"barter"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Signs         SignsConfig         `yaml:"signs"`
	Statistics    StatisticsConfig    `yaml:"statistics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type GeneralConfig struct {
	MaxShopsPerOwner int      `yaml:"max_shops_per_owner"`
	AllowedRegions   []string `yaml:"allowed_regions,omitempty"` // empty: all regions allowed
}

type ShopConfig struct {
	MinQuantity int         `yaml:"min_quantity"`
	MaxQuantity int         `yaml:"max_quantity"`
	PriceLimits PriceLimits `yaml:"price_limits"`
	BannedGoods []string    `yaml:"banned_goods,omitempty"`
}

type PriceLimits struct {
	MinBuy  float64 `yaml:"min_buy"`
	MaxBuy  float64 `yaml:"max_buy"`
	MinSell float64 `yaml:"min_sell"`
	MaxSell float64 `yaml:"max_sell"`
}

type BarterConfig struct {
	Enabled         bool `yaml:"enabled"`
	CooldownSeconds int  `yaml:"cooldown_seconds"`
}

type NotificationsConfig struct {
	LowStockEnabled   bool `yaml:"low_stock_enabled"`
	LowStockThreshold int  `yaml:"low_stock_threshold"`
	FullShopEnabled   bool `yaml:"full_shop_enabled"`
	WindowSeconds     int  `yaml:"window_seconds"`
}

type SignsConfig struct {
	Header       string     `yaml:"header"`
	BarterHeader string     `yaml:"barter_header"`
	Colors       SignColors `yaml:"colors"`
}

type SignColors struct {
	Active     string `yaml:"active"`
	Inactive   string `yaml:"inactive"`
	OutOfStock string `yaml:"out_of_stock"`
	OutOfSpace string `yaml:"out_of_space"`
}

type StatisticsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LoggingConfig struct {
	LogTrades bool `yaml:"log_trades"`
}

// LoadConfig reads market.yaml; an empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("market.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("market.yaml: %w", err)
	}
	return cfg, nil
}

func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			MaxShopsPerOwner: 10,
		},
		Shop: ShopConfig{
			MinQuantity: 1,
			MaxQuantity: 64,
			PriceLimits: PriceLimits{
				MinBuy:  0.01,
				MaxBuy:  1000000,
				MinSell: 0.01,
				MaxSell: 1000000,
			},
		},
		Barter: BarterConfig{
			Enabled:         true,
			CooldownSeconds: 3,
		},
		Notifications: NotificationsConfig{
			LowStockEnabled:   true,
			LowStockThreshold: 5,
			FullShopEnabled:   true,
			WindowSeconds:     300,
		},
		Signs: SignsConfig{
			Header:       "[ChestShop]",
			BarterHeader: "[Item Trade]",
			Colors: SignColors{
				Active:     "&a",
				Inactive:   "&7",
				OutOfStock: "&c",
				OutOfSpace: "&6",
			},
		},
		Statistics: StatisticsConfig{Enabled: true},
		Logging:    LoggingConfig{LogTrades: true},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if c.Shop.MinQuantity <= 0 {
		c.Shop.MinQuantity = 1
	}
	if c.Shop.MaxQuantity <= 0 {
		c.Shop.MaxQuantity = 64
	}
	if c.Notifications.WindowSeconds <= 0 {
		c.Notifications.WindowSeconds = 300
	}
	d := DefaultConfig()
	if strings.TrimSpace(c.Signs.Header) == "" {
		c.Signs.Header = d.Signs.Header
	}
	if strings.TrimSpace(c.Signs.BarterHeader) == "" {
		c.Signs.BarterHeader = d.Signs.BarterHeader
	}
	if c.Signs.Colors.Active == "" {
		c.Signs.Colors = d.Signs.Colors
	}
}

func (c Config) Validate() error {
	if c.General.MaxShopsPerOwner < 0 {
		return fmt.Errorf("general.max_shops_per_owner must be >= 0")
	}
	if c.Shop.MinQuantity < 1 || c.Shop.MaxQuantity < c.Shop.MinQuantity {
		return fmt.Errorf("shop quantity bounds must satisfy 1 <= min <= max")
	}
	pl := c.Shop.PriceLimits
	if pl.MinBuy < 0 || pl.MinSell < 0 {
		return fmt.Errorf("shop.price_limits minimums must be >= 0")
	}
	if pl.MaxBuy < pl.MinBuy || pl.MaxSell < pl.MinSell {
		return fmt.Errorf("shop.price_limits maximums must be >= minimums")
	}
	if c.Barter.CooldownSeconds < 0 {
		return fmt.Errorf("barter.cooldown_seconds must be >= 0")
	}
	if c.Notifications.LowStockThreshold < 0 {
		return fmt.Errorf("notifications.low_stock_threshold must be >= 0")
	}
	return nil
}

func (c Config) GoodBanned(id string) bool {
	for _, b := range c.Shop.BannedGoods {
		if b == id {
			return true
		}
	}
	return false
}

func (c Config) RegionAllowed(region string) bool {
	if len(c.General.AllowedRegions) == 0 {
		return true
	}
	for _, r := range c.General.AllowedRegions {
		if r == region {
			return true
		}
	}
	return false
}
