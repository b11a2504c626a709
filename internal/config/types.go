package config

import "time"

// Config 是进程级配置。策略名单单独放在 strategies.yaml，
// 由 strategy.Registry 管理热更新，不在这里。
type Config struct {
	App        AppConfig        `yaml:"app"`
	Market     MarketConfig     `yaml:"market"`
	Epoch      EpochConfig      `yaml:"epoch"`
	Agents     AgentsConfig     `yaml:"agents"`
	Journal    JournalConfig    `yaml:"journal"`
	Strategies StrategiesConfig `yaml:"strategies"`
	HTTP       HTTPConfig       `yaml:"http"`
}

type AppConfig struct {
	// LogLevel: debug / info / warn / error
	LogLevel string `yaml:"log_level"`
}

type MarketConfig struct {
	// Symbol 是预测标的，如 BTCUSDT。
	Symbol      string `yaml:"symbol"`
	CandleLimit int    `yaml:"candle_limit"`
	// ContractPrice 是行情源拿不到合约报价时的兜底价格，(0,1)。
	ContractPrice float64       `yaml:"contract_price"`
	BreakLimit    int           `yaml:"break_limit"`
	BreakCooldown time.Duration `yaml:"break_cooldown"`
}

type EpochConfig struct {
	// Offset 是 epoch 边界后的等待时长，留给行情源闭合 K 线。
	Offset         time.Duration `yaml:"offset"`
	RunImmediately bool          `yaml:"run_immediately"`
	// Horizon 是崩溃恢复的安全窗口。
	Horizon time.Duration `yaml:"horizon"`
}

type AgentsConfig struct {
	// Enabled 列出参与投票的 agent 名字；空则启用全部内置 agent。
	Enabled []string      `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
	// RegimeAgent 指定市况分类器的名字。
	RegimeAgent string `yaml:"regime_agent"`
	// MinSamples 是自适应权重生效前的最小样本数。
	MinSamples int `yaml:"min_samples"`

	VolatilityVeto VolatilityVetoConfig `yaml:"volatility_veto"`
}

type VolatilityVetoConfig struct {
	Enabled     bool    `yaml:"enabled"`
	MaxATRRatio float64 `yaml:"max_atr_ratio"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type StrategiesConfig struct {
	Path string `yaml:"path"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}
