package models

// MConfig Structure
type MConfig struct {
	Name             string           `yaml:"name"`
	Host             string           `yaml:"host"`
	Port             int              `yaml:"port"`
	LogLevel         string           `yaml:"log_level"`
	GrpcHost         string           `yaml:"grpc_host"`
	GrpcPort         int              `yaml:"grpc_port"`
	PrivilegedUserID int64            `yaml:"privileged_user_id"`
	Telegram         MTelegramConfig  `yaml:"telegram"`
	Storage          MStorageConfig   `yaml:"storage"`
	Network          MNetworkConfig   `yaml:"network"`
	Quote            MQuoteConfig     `yaml:"quote"`
	Session          MSessionConfig   `yaml:"session"`
	Cache            MCacheConfig     `yaml:"cache"`
	Alert            MAlertConfig     `yaml:"alert"`
	Monitor          MMonitorConfig   `yaml:"monitor"`
	Scheduler        MSchedulerConfig `yaml:"scheduler"`
	Delivery         MDeliveryConfig  `yaml:"delivery"`
	CLI              MCLIConfig       `yaml:"cli"`
	Symbols          []MSymbolConfig  `yaml:"symbols"`
}

// LogLevelName lets the logger pick up the configured level.
func (c *MConfig) LogLevelName() string {
	if c == nil {
		return ""
	}
	return c.LogLevel
}

type MTelegramConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Token              string `yaml:"token"`
	PollTimeoutSeconds int    `yaml:"poll_timeout_seconds"`
	MaxConcurrent      int    `yaml:"max_concurrent"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
	SymbolsRef         string `yaml:"symbols_ref"` // postgres only: schema.table with name, code, market columns
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	UserAgent      string   `yaml:"user_agent"`
}

type MQuoteConfig struct {
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	NaverPollingURL     string `yaml:"naver_polling_url"`
	NaverPopularURL     string `yaml:"naver_popular_url"`
	YahooChartURL       string `yaml:"yahoo_chart_url"`
}

type MSessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

type MCacheConfig struct {
	TTLMinutes           int `yaml:"ttl_minutes"`
	PurgeIntervalSeconds int `yaml:"purge_interval_seconds"`
}

type MAlertConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	SnapshotScope   string `yaml:"snapshot_scope"` // "symbol" or "user"
}

type MMonitorConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type MSchedulerConfig struct {
	MaxConcurrency        int  `yaml:"max_concurrency"`
	PauseWhenMarketClosed bool `yaml:"pause_when_market_closed"`
	JournalCleanupMinutes int  `yaml:"journal_cleanup_minutes"`
}

type MDeliveryConfig struct {
	MaxPayload  int `yaml:"max_payload"`
	PartDelayMS int `yaml:"part_delay_ms"`
}

type MCLIConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxLines       int  `yaml:"max_lines"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

// MSymbolConfig is one entry of the searchable symbol directory
type MSymbolConfig struct {
	Name   string `yaml:"name"`
	Code   string `yaml:"code"`
	Market string `yaml:"market"`
}
