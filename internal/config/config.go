package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/vitos/trade_risk_engine/internal/domain"
	"gopkg.in/yaml.v3"
)

type GatewayConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	RESTURL   string `yaml:"rest_url"`
	WSURL     string `yaml:"ws_url"`
}

type RiskConfig struct {
	NumEntries      int                `yaml:"num_entries"`
	ScalingType     string             `yaml:"scaling_type"`
	EntrySpacingPct float64            `yaml:"entry_spacing_pct"`
	MaxRiskPerGroup float64            `yaml:"max_risk_per_group"`
	CustomWeights   []float64          `yaml:"custom_weights"`
	GroupStopLoss   bool               `yaml:"group_stop_loss"`
	StrictStopSide  bool               `yaml:"strict_stop_side"`
	DailyLossLimit  float64            `yaml:"daily_loss_limit"`
	PointValues     map[string]float64 `yaml:"point_values"`
}

type RestrictionConfig struct {
	NewsSchedulePath   string `yaml:"news_schedule"`
	NewsWindowMinutes  int    `yaml:"news_window_minutes"`
	CloseWindowMinutes int    `yaml:"close_window_minutes"`
	MarketCloseTime    string `yaml:"market_close_time"`
}

type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`

	Trading struct {
		Symbol   string `yaml:"symbol"`
		Strategy string `yaml:"strategy"`
		SpoolDir string `yaml:"spool_dir"`
	} `yaml:"trading"`

	Risk         RiskConfig        `yaml:"risk"`
	Restrictions RestrictionConfig `yaml:"restrictions"`

	Polling struct {
		CycleMs int `yaml:"cycle_ms"`
	} `yaml:"polling"`

	Logging struct {
		Level     string `yaml:"level"`
		AuditFile string `yaml:"audit_file"`
	} `yaml:"logging"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`
}

// Load reads the yaml config, then overlays gateway credentials from the
// environment (optionally via .env) so secrets stay out of the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("GATEWAY_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Polling.CycleMs == 0 {
		c.Polling.CycleMs = 5000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "risk_engine.db"
	}
	if c.Risk.NumEntries == 0 {
		c.Risk.NumEntries = 1
	}
	if c.Risk.ScalingType == "" {
		c.Risk.ScalingType = string(domain.ScalingEqual)
	}
	if c.Restrictions.NewsWindowMinutes == 0 {
		c.Restrictions.NewsWindowMinutes = 15
	}
	if c.Restrictions.CloseWindowMinutes == 0 {
		c.Restrictions.CloseWindowMinutes = 10
	}
	if c.Restrictions.MarketCloseTime == "" {
		c.Restrictions.MarketCloseTime = "21:55"
	}
}

func (c *Config) Validate() error {
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if c.Risk.DailyLossLimit > 0 {
		return fmt.Errorf("risk.daily_loss_limit must be negative or zero, got %f", c.Risk.DailyLossLimit)
	}
	return c.ScalingConfig().Validate()
}

// ScalingConfig maps the risk section onto the domain scaling parameters.
func (c *Config) ScalingConfig() domain.ScalingConfig {
	return domain.ScalingConfig{
		NumEntries:      c.Risk.NumEntries,
		Type:            domain.ScalingType(c.Risk.ScalingType),
		EntrySpacingPct: c.Risk.EntrySpacingPct,
		MaxRiskPerGroup: c.Risk.MaxRiskPerGroup,
		CustomWeights:   c.Risk.CustomWeights,
	}
}
