// Package config 加载推荐引擎配置：默认值 < YAML 文件 < 环境变量（ESTATEREC_*），
// 最后用 validator 校验。
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/estaterec/pkg/logging"
)

// EnvPrefix 是环境变量覆盖的前缀
const EnvPrefix = "ESTATEREC_"

// Config 是进程配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Recommend RecommendConfig `yaml:"recommend"`
	Search    SearchConfig    `yaml:"search"`
	Log       logging.Config  `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// StoreConfig 选择交互日志与推荐快照的存储后端
type StoreConfig struct {
	Backend           string `yaml:"backend" validate:"oneof=memory redis"`
	Addr              string `yaml:"addr" validate:"required_if=Backend redis"`
	Password          string `yaml:"password"`
	DB                int    `yaml:"db" validate:"gte=0"`
	InteractionPrefix string `yaml:"interaction_prefix" validate:"required"`
	SnapshotPrefix    string `yaml:"snapshot_prefix" validate:"required"`
}

type CatalogConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// EmbeddingConfig 选择向量化实现
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider" validate:"oneof=hashing openai"`
	BaseURL    string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model" validate:"required_if=Provider openai"`
	Dimensions int           `yaml:"dimensions" validate:"gt=0"`
	Breaker    BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold" validate:"required_if=Enabled true"`
	Timeout          time.Duration `yaml:"timeout"`
}

type RecommendConfig struct {
	TopK           int           `yaml:"top_k" validate:"gt=0"`
	PopularN       int           `yaml:"popular_n" validate:"gt=0"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout" validate:"gt=0"`
	RefreshOnStart bool          `yaml:"refresh_on_start"`
}

type SearchConfig struct {
	TopK            int      `yaml:"top_k" validate:"gt=0"`
	StatsThreshold  float64  `yaml:"stats_threshold" validate:"gte=-1,lte=1"`
	StatsFields     []string `yaml:"stats_fields" validate:"min=1,dive,required"`
	Workers         int      `yaml:"workers" validate:"gte=0"`
	CacheEmbeddings bool     `yaml:"cache_embeddings"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend:           "memory",
			InteractionPrefix: "like",
			SnapshotPrefix:    "reco",
		},
		Catalog: CatalogConfig{Path: "data/listings.csv"},
		Embedding: EmbeddingConfig{
			Provider:   "hashing",
			Dimensions: 384,
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Timeout:          30 * time.Second,
			},
		},
		Recommend: RecommendConfig{
			TopK:           10,
			PopularN:       10,
			RefreshTimeout: 5 * time.Minute,
			RefreshOnStart: true,
		},
		Search: SearchConfig{
			TopK:            10,
			StatsThreshold:  0.1,
			StatsFields:     []string{"Price", "Landsize", "Rooms"},
			CacheEmbeddings: true,
		},
		Log: logging.Config{Level: "info", Format: "console"},
	}
}

// Load 依次应用默认值、.env、YAML 文件（path 为空时跳过）与环境变量，然后校验。
func Load(path string) (*Config, error) {
	// .env 不存在不是错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
