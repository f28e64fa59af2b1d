package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Serper    SerperConfig    `yaml:"serper" mapstructure:"serper"`
	Validator ValidatorConfig `yaml:"validator" mapstructure:"validator"`
	PreFilter PreFilterConfig `yaml:"prefilter" mapstructure:"prefilter"`
	CostLog   CostLogConfig   `yaml:"costlog" mapstructure:"costlog"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional connection pool tuning parameters. MaxConns
// must leave head-room above the worker count: each worker holds one
// transaction for the duration of a lease.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings. The enhancer and judge are
// distinct logical models; they may be backed by the same underlying one.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	EnhancerModel string `yaml:"enhancer_model" mapstructure:"enhancer_model"`
	JudgeModel    string `yaml:"judge_model" mapstructure:"judge_model"`
}

// SerperConfig holds the web search API settings.
type SerperConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ValidatorConfig collects every tunable of the validation pipeline in one
// place so tests can override them.
type ValidatorConfig struct {
	Workers                 int             `yaml:"workers" mapstructure:"workers"`
	InitialQueries          int             `yaml:"initial_queries" mapstructure:"initial_queries"`
	ResultsPerQuery         int             `yaml:"results_per_query" mapstructure:"results_per_query"`
	MaxTotalResults         int             `yaml:"max_total_results" mapstructure:"max_total_results"`
	MaxRefinementIterations int             `yaml:"max_refinement_iterations" mapstructure:"max_refinement_iterations"`
	TrueScoreCut            int             `yaml:"true_score_cut" mapstructure:"true_score_cut"`
	FalseScoreCut           int             `yaml:"false_score_cut" mapstructure:"false_score_cut"`
	IdleSleepSecs           int             `yaml:"idle_sleep_secs" mapstructure:"idle_sleep_secs"`
	ErrorSleepSecs          int             `yaml:"error_sleep_secs" mapstructure:"error_sleep_secs"`
	Thresholds              ThresholdConfig `yaml:"thresholds" mapstructure:"thresholds"`
}

// ThresholdConfig holds the quality gates applied both in the lease SQL and
// in the in-memory pre-filter. Absent (NULL) values always pass.
type ThresholdConfig struct {
	MinFilterConfidence float64 `yaml:"min_filter_confidence" mapstructure:"min_filter_confidence"`
	MinQuality          float64 `yaml:"min_quality" mapstructure:"min_quality"`
	MinLLMConfidence    float64 `yaml:"min_llm_confidence" mapstructure:"min_llm_confidence"`
	MaxVagueness        float64 `yaml:"max_vagueness" mapstructure:"max_vagueness"`
}

// PreFilterConfig configures the defensive in-memory pre-filter.
type PreFilterConfig struct {
	// KeywordsFile optionally points at a YAML file holding the
	// reject-keyword list. Empty means the compiled-in default list.
	KeywordsFile string `yaml:"keywords_file" mapstructure:"keywords_file"`
}

// CostLogConfig configures the append-only cost log.
type CostLogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PricingConfig holds the rates used to derive USD cost from usage counters.
type PricingConfig struct {
	SearchPlanMonthly    float64 `yaml:"search_plan_monthly" mapstructure:"search_plan_monthly"`
	SearchQueriesPerPlan float64 `yaml:"search_queries_per_plan" mapstructure:"search_queries_per_plan"`
	LLMInputPerMTok      float64 `yaml:"llm_input_per_mtok" mapstructure:"llm_input_per_mtok"`
	LLMOutputPerMTok     float64 `yaml:"llm_output_per_mtok" mapstructure:"llm_output_per_mtok"`
}

// ServerConfig configures the status endpoint.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VERDICT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.pool.max_conns", 15)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("anthropic.enhancer_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.judge_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.rate_limit", 10)
	v.SetDefault("validator.workers", 10)
	v.SetDefault("validator.initial_queries", 2)
	v.SetDefault("validator.results_per_query", 10)
	v.SetDefault("validator.max_total_results", 30)
	v.SetDefault("validator.max_refinement_iterations", 1)
	v.SetDefault("validator.true_score_cut", 9)
	v.SetDefault("validator.false_score_cut", 2)
	v.SetDefault("validator.idle_sleep_secs", 10)
	v.SetDefault("validator.error_sleep_secs", 5)
	v.SetDefault("validator.thresholds.min_filter_confidence", 0.85)
	v.SetDefault("validator.thresholds.min_quality", 30)
	v.SetDefault("validator.thresholds.min_llm_confidence", 0.50)
	v.SetDefault("validator.thresholds.max_vagueness", 0.80)
	v.SetDefault("costlog.path", "costs.json")
	v.SetDefault("pricing.search_plan_monthly", 100)
	v.SetDefault("pricing.search_queries_per_plan", 35000)
	v.SetDefault("pricing.llm_input_per_mtok", 0.30)
	v.SetDefault("pricing.llm_output_per_mtok", 2.50)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the keys required to run the validator are present.
// A missing key is a fatal start-up error.
func (c *Config) Validate() error {
	var missing []string
	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url (VERDICT_STORE_DATABASE_URL)")
	}
	if c.Anthropic.Key == "" {
		missing = append(missing, "anthropic.key (VERDICT_ANTHROPIC_KEY)")
	}
	if c.Serper.Key == "" {
		missing = append(missing, "serper.key (VERDICT_SERPER_KEY)")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// logLevel is the live level of the global logger, retained so shutdown can
// quiet log output without tearing the logger down mid-drain.
var logLevel = zap.NewAtomicLevel()

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	logLevel.SetLevel(level)
	zapCfg.Level = logLevel

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// QuietLogs raises the global log level so that only errors surface.
// Called when a termination signal switches the process into shutdown
// display mode while workers drain.
func QuietLogs() {
	logLevel.SetLevel(zapcore.ErrorLevel)
}
