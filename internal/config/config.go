package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"catalog-recon/internal/reconcile/model"
	recSvc "catalog-recon/internal/reconcile/service"
)

type Config struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	LogLevel     string   `mapstructure:"log_level"`
	LogFile      string   `mapstructure:"log_file"`
	MaxUploadMB  int      `mapstructure:"max_upload_mb"`

	DatabaseURL string `mapstructure:"database_url"`
	CatalogSeed string `mapstructure:"catalog_seed"`
	RedisAddr   string `mapstructure:"redis_addr"`

	Sheet    SheetConfig    `mapstructure:"sheet"`
	Runs     RunsConfig     `mapstructure:"runs"`
	Matching MatchingConfig `mapstructure:"matching"`
}

// SheetConfig: скачивание прайсов по ссылке.
type SheetConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
}

type RunsConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type Thresholds struct {
	MinOverlapCount int     `mapstructure:"min_overlap_count"`
	MinOverlapRatio float64 `mapstructure:"min_overlap_ratio"`
	MinSimilarity   float64 `mapstructure:"min_similarity"`
}

// Override: пороги для одного бренда; незаданное поле берётся из общих порогов.
type Override struct {
	MinOverlapCount *int     `mapstructure:"min_overlap_count"`
	MinOverlapRatio *float64 `mapstructure:"min_overlap_ratio"`
	MinSimilarity   *float64 `mapstructure:"min_similarity"`
}

// над общими порогами
func (o Override) over(base Thresholds) Thresholds {
	if o.MinOverlapCount != nil {
		base.MinOverlapCount = *o.MinOverlapCount
	}
	if o.MinOverlapRatio != nil {
		base.MinOverlapRatio = *o.MinOverlapRatio
	}
	if o.MinSimilarity != nil {
		base.MinSimilarity = *o.MinSimilarity
	}
	return base
}

type MatchingConfig struct {
	Thresholds            `mapstructure:",squash"`
	FallbackMinSimilarity float64             `mapstructure:"fallback_min_similarity"`
	BrandOverrides        map[string]Override `mapstructure:"brand_overrides"`
	Synonyms              []recSvc.Rule       `mapstructure:"synonyms"`
}

// Load: .env → переменные RECON_* → config.yaml (необязательный) → дефолты.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/recon-service/")

	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8082)
	v.SetDefault("allow_origins", []string{"*"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "logs/recon-service.log")
	v.SetDefault("max_upload_mb", 256)

	// без этих ключей AutomaticEnv их не увидит при Unmarshal
	v.SetDefault("database_url", "")
	v.SetDefault("catalog_seed", "")
	v.SetDefault("redis_addr", "")

	v.SetDefault("sheet.timeout", "30s")
	v.SetDefault("sheet.rps", 2)
	v.SetDefault("sheet.burst", 4)
	v.SetDefault("runs.ttl", "2h")

	def := model.DefaultPolicy()
	v.SetDefault("matching.min_overlap_count", def.Default.MinOverlapCount)
	v.SetDefault("matching.min_overlap_ratio", def.Default.MinOverlapRatio)
	v.SetDefault("matching.min_similarity", def.Default.MinSimilarity)
	v.SetDefault("matching.fallback_min_similarity", def.FallbackMinSimilarity)
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	if c.Sheet.Timeout <= 0 || c.Sheet.RPS <= 0 {
		return errors.New("sheet.timeout and sheet.rps must be positive")
	}
	if c.Runs.TTL <= 0 {
		return errors.New("runs.ttl must be positive")
	}
	if err := c.Matching.Thresholds.validate("matching"); err != nil {
		return err
	}
	if !unit(c.Matching.FallbackMinSimilarity) {
		return fmt.Errorf("matching.fallback_min_similarity must be in [0,1], got %v", c.Matching.FallbackMinSimilarity)
	}
	for i, r := range c.Matching.Synonyms {
		if len(r.Words) == 0 {
			return fmt.Errorf("matching.synonyms[%d]: words are required", i)
		}
	}
	if len(c.Matching.BrandOverrides) == 0 {
		return nil
	}

	// ключ бренда сводится тем же словарём, что и в матчере
	norm, err := recSvc.NewNormalizer(c.Dictionary())
	if err != nil {
		return fmt.Errorf("matching.synonyms: %w", err)
	}
	seen := make(map[string]string, len(c.Matching.BrandOverrides))
	for brand, o := range c.Matching.BrandOverrides {
		key := norm.Canonicalize(brand)
		if key == "" {
			return fmt.Errorf("matching.brand_overrides: brand %q is empty after canonicalization", brand)
		}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("matching.brand_overrides: %q and %q are the same brand %q", prev, brand, key)
		}
		seen[key] = brand
		if err := o.over(c.Matching.Thresholds).validate("matching.brand_overrides." + brand); err != nil {
			return err
		}
	}
	return nil
}

func (t Thresholds) validate(path string) error {
	if t.MinOverlapCount < 0 {
		return fmt.Errorf("%s.min_overlap_count must not be negative", path)
	}
	if !unit(t.MinOverlapRatio) || !unit(t.MinSimilarity) {
		return fmt.Errorf("%s: ratios must be in [0,1]", path)
	}
	return nil
}

func unit(f float64) bool { return f >= 0 && f <= 1 }

func (t Thresholds) model() model.Thresholds {
	return model.Thresholds{
		MinOverlapCount: t.MinOverlapCount,
		MinOverlapRatio: t.MinOverlapRatio,
		MinSimilarity:   t.MinSimilarity,
	}
}

// Policy: пороги матчера из конфига.
func (c Config) Policy() model.Policy {
	p := model.Policy{
		Default:               c.Matching.Thresholds.model(),
		BrandOverrides:        make(map[string]model.Thresholds, len(c.Matching.BrandOverrides)),
		FallbackMinSimilarity: c.Matching.FallbackMinSimilarity,
	}
	for brand, o := range c.Matching.BrandOverrides {
		p.BrandOverrides[brand] = o.over(c.Matching.Thresholds).model()
	}
	return p
}

// Dictionary: словарь по умолчанию плюс синонимы из конфига.
func (c Config) Dictionary() recSvc.Dictionary {
	return recSvc.DefaultDictionary().WithSynonyms(c.Matching.Synonyms...)
}
