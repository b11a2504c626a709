package config

import (
	"fmt"
	"strings"
)

func validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config 为空")
	}
	switch strings.ToLower(cfg.App.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level 非法: %s", cfg.App.LogLevel)
	}
	if strings.TrimSpace(cfg.Market.Symbol) == "" {
		return fmt.Errorf("market.symbol 不能为空")
	}
	if cfg.Market.ContractPrice <= 0 || cfg.Market.ContractPrice >= 1 {
		return fmt.Errorf("market.contract_price %.4f 必须在 (0,1) 内", cfg.Market.ContractPrice)
	}
	if cfg.Epoch.Offset < 0 {
		return fmt.Errorf("epoch.offset 不能为负")
	}
	if cfg.Epoch.Horizon <= 0 {
		return fmt.Errorf("epoch.horizon 必须为正")
	}
	if cfg.Agents.Timeout <= 0 {
		return fmt.Errorf("agents.timeout 必须为正")
	}
	if cfg.Agents.VolatilityVeto.Enabled && cfg.Agents.VolatilityVeto.MaxATRRatio <= 0 {
		return fmt.Errorf("agents.volatility_veto.max_atr_ratio 必须为正")
	}
	if strings.TrimSpace(cfg.Journal.Path) == "" {
		return fmt.Errorf("journal.path 不能为空")
	}
	if strings.TrimSpace(cfg.Strategies.Path) == "" {
		return fmt.Errorf("strategies.path 不能为空")
	}
	if cfg.HTTP.Enabled && strings.TrimSpace(cfg.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr 不能为空")
	}
	return nil
}
