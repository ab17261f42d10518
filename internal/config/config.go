package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	Subgraph SubgraphConfig `mapstructure:"subgraph"`
	Binance  BinanceConfig  `mapstructure:"binance"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Tenants  []TenantConfig `mapstructure:"tenants"`
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	FetchInterval time.Duration `mapstructure:"fetch_interval"`
}

type SubgraphConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	PageLimit int           `mapstructure:"page_limit"`
	MaxPages  int           `mapstructure:"max_pages"`
}

type BinanceConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	FundingCacheTTL time.Duration `mapstructure:"funding_cache_ttl"`
}

type TelegramConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// TenantConfig describes one deployment/chain instance of the protocol. All
// mirrored rows and checkpoints are partitioned by Name.
type TenantConfig struct {
	Name              string            `mapstructure:"name"`
	SubgraphURL       string            `mapstructure:"subgraph_url"`
	RPCURL            string            `mapstructure:"rpc_url"`
	SymmioAddress     string            `mapstructure:"symmio_address"`
	CollateralAddress string            `mapstructure:"collateral_address"`
	MulticallAddress  string            `mapstructure:"multicall_address"`
	DeployTime        int64             `mapstructure:"deploy_time"`
	SnapshotBlockLag  uint64            `mapstructure:"snapshot_block_lag"`
	Affiliates        []AffiliateConfig `mapstructure:"affiliates"`
	Hedgers           []HedgerConfig    `mapstructure:"hedgers"`
	Liquidators       []string          `mapstructure:"liquidators"`
}

// AffiliateConfig identifies one front-end integration by its on-chain
// multi-account address; mirrored accounts reference it through accountSource.
type AffiliateConfig struct {
	Name         string `mapstructure:"name"`
	MultiAccount string `mapstructure:"multi_account"`
}

type HedgerConfig struct {
	Name             string `mapstructure:"name"`
	Address          string `mapstructure:"address"`
	BinanceAPIKey    string `mapstructure:"binance_api_key"`
	BinanceAPISecret string `mapstructure:"binance_api_secret"`
}

// Validate reports why a tenant cannot be scheduled. Invalid tenants are
// excluded at startup rather than retried.
func (t TenantConfig) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tenant name is required")
	}
	if strings.TrimSpace(t.SubgraphURL) == "" {
		return fmt.Errorf("tenant %s: subgraph_url is required", t.Name)
	}
	if strings.TrimSpace(t.RPCURL) == "" {
		return fmt.Errorf("tenant %s: rpc_url is required", t.Name)
	}
	if strings.TrimSpace(t.SymmioAddress) == "" {
		return fmt.Errorf("tenant %s: symmio_address is required", t.Name)
	}
	if strings.TrimSpace(t.CollateralAddress) == "" {
		return fmt.Errorf("tenant %s: collateral_address is required", t.Name)
	}
	if t.DeployTime <= 0 {
		return fmt.Errorf("tenant %s: deploy_time is required", t.Name)
	}
	return nil
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SYM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", false)
	v.SetDefault("server.http_addr", ":7231")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.fetch_interval", "2m")
	v.SetDefault("subgraph.timeout", "30s")
	v.SetDefault("subgraph.page_limit", 1000)
	v.SetDefault("subgraph.max_pages", 100)
	v.SetDefault("binance.base_url", "https://fapi.binance.com")
	v.SetDefault("binance.timeout", "15s")
	v.SetDefault("binance.funding_cache_ttl", "10m")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
