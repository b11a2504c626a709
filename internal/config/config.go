package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并校验配置文件。缺省值先于文件内容写入 viper，
// 文件里没写的键自动落到缺省。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	applyDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")

	v.SetDefault("market.symbol", "BTCUSDT")
	v.SetDefault("market.candle_limit", 120)
	v.SetDefault("market.contract_price", 0.5)
	v.SetDefault("market.break_limit", 3)
	v.SetDefault("market.break_cooldown", 2*time.Minute)

	v.SetDefault("epoch.offset", 5*time.Second)
	v.SetDefault("epoch.run_immediately", false)
	v.SetDefault("epoch.horizon", time.Hour)

	v.SetDefault("agents.timeout", 10*time.Second)
	v.SetDefault("agents.regime_agent", "regime")
	v.SetDefault("agents.min_samples", 10)
	v.SetDefault("agents.volatility_veto.enabled", true)
	v.SetDefault("agents.volatility_veto.max_atr_ratio", 0.015)

	v.SetDefault("journal.path", "data/journal.db")
	v.SetDefault("strategies.path", "configs/strategies.yaml")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":9980")
}
