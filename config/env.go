package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv 用 ESTATEREC_* 环境变量覆盖配置，未设置的变量保持原值
func applyEnv(c *Config) error {
	var errs []string
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("SERVER_ADDR", &c.Server.Addr)
	dur("SERVER_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	str("STORE_BACKEND", &c.Store.Backend)
	str("STORE_ADDR", &c.Store.Addr)
	str("STORE_PASSWORD", &c.Store.Password)
	num("STORE_DB", &c.Store.DB)

	str("CATALOG_PATH", &c.Catalog.Path)

	str("EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("EMBEDDING_BASE_URL", &c.Embedding.BaseURL)
	str("EMBEDDING_API_KEY", &c.Embedding.APIKey)
	str("EMBEDDING_MODEL", &c.Embedding.Model)
	num("EMBEDDING_DIMENSIONS", &c.Embedding.Dimensions)
	flag("EMBEDDING_BREAKER_ENABLED", &c.Embedding.Breaker.Enabled)

	num("RECOMMEND_TOP_K", &c.Recommend.TopK)
	num("RECOMMEND_POPULAR_N", &c.Recommend.PopularN)
	dur("RECOMMEND_REFRESH_TIMEOUT", &c.Recommend.RefreshTimeout)
	flag("RECOMMEND_REFRESH_ON_START", &c.Recommend.RefreshOnStart)

	num("SEARCH_TOP_K", &c.Search.TopK)
	num("SEARCH_WORKERS", &c.Search.Workers)
	if v, ok := lookup("SEARCH_STATS_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sSEARCH_STATS_THRESHOLD: %v", EnvPrefix, err))
		} else {
			c.Search.StatsThreshold = f
		}
	}
	if v, ok := lookup("SEARCH_STATS_FIELDS"); ok {
		var fields []string
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
		c.Search.StatsFields = fields
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
