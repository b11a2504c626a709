package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quorum/internal/pkg/circuit"

	"github.com/adshao/go-binance/v2"
)

const maxCandleLimit = 1000

// SourceConfig 控制行情采集层的行为。
type SourceConfig struct {
	CandleLimit int
	// ContractPrice 为缺省的二元合约报价；真实盘口由（范围外的）场馆适配层覆盖。
	ContractPrice float64
	BreakLimit    int
	BreakCooldown time.Duration
}

func (c SourceConfig) withDefaults() SourceConfig {
	if c.CandleLimit <= 0 {
		c.CandleLimit = 120
	}
	if c.CandleLimit > maxCandleLimit {
		c.CandleLimit = maxCandleLimit
	}
	if c.ContractPrice <= 0 || c.ContractPrice >= 1 {
		c.ContractPrice = 0.5
	}
	return c
}

// KlineSource 基于 go-binance 现货 K 线构建决策周期的 Context。
type KlineSource struct {
	cfg     SourceConfig
	client  *binance.Client
	breaker *circuit.Breaker
	nowFn   func() time.Time
}

func NewKlineSource(cfg SourceConfig) *KlineSource {
	final := cfg.withDefaults()
	return &KlineSource{
		cfg:     final,
		client:  binance.NewClient("", ""),
		breaker: circuit.NewBreaker("binance-kline", final.BreakLimit, final.BreakCooldown),
		nowFn:   time.Now,
	}
}

// Snapshot 拉取最近的已收盘 K 线并组装 Context。
func (s *KlineSource) Snapshot(ctx context.Context, symbol string, epoch int64) (Context, error) {
	candles, err := s.fetch(ctx, symbol, s.cfg.CandleLimit, 0, 0)
	if err != nil {
		return Context{}, err
	}
	candles = DropUnclosed(candles, EpochDuration, s.nowFn())
	if len(candles) == 0 {
		return Context{}, fmt.Errorf("market: no closed candles for %s", symbol)
	}
	last := candles[len(candles)-1]
	return Context{
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Epoch:     epoch,
		LastPrice: last.Close,
		UpPrice:   s.cfg.ContractPrice,
		DownPrice: s.cfg.ContractPrice,
		Candles:   candles,
		FetchedAt: s.nowFn().UTC(),
	}, nil
}

// EpochOutcome 读取 epoch 对应的那根 15m K 线并返回已实现方向（"up"/"down"）。
// K 线未收盘或尚不可见时返回错误，调用方可以在下一轮重试。
func (s *KlineSource) EpochOutcome(ctx context.Context, symbol string, epoch int64) (string, error) {
	start := EpochStart(epoch).UnixMilli()
	end := EpochEnd(epoch).UnixMilli() - 1
	candles, err := s.fetch(ctx, symbol, 1, start, end)
	if err != nil {
		return "", err
	}
	if len(candles) == 0 {
		return "", fmt.Errorf("market: epoch %d candle not available for %s", epoch, symbol)
	}
	c := candles[0]
	if time.UnixMilli(c.CloseTime).After(s.nowFn()) {
		return "", fmt.Errorf("market: epoch %d candle still open for %s", epoch, symbol)
	}
	if c.Up() {
		return "up", nil
	}
	return "down", nil
}

func (s *KlineSource) fetch(ctx context.Context, symbol string, limit int, startMs, endMs int64) ([]Candle, error) {
	symbol = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
	if symbol == "" {
		return nil, fmt.Errorf("market: symbol is required")
	}
	var out []Candle
	err := s.breaker.Do(func() error {
		svc := s.client.NewKlinesService().
			Symbol(symbol).
			Interval("15m").
			Limit(limit)
		if startMs > 0 {
			svc = svc.StartTime(startMs)
		}
		if endMs > 0 {
			svc = svc.EndTime(endMs)
		}
		kls, err := svc.Do(ctx)
		if err != nil {
			return err
		}
		out = make([]Candle, 0, len(kls))
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			out = append(out, Candle{
				OpenTime:  kl.OpenTime,
				CloseTime: kl.CloseTime,
				Open:      parseFloat(kl.Open),
				High:      parseFloat(kl.High),
				Low:       parseFloat(kl.Low),
				Close:     parseFloat(kl.Close),
				Volume:    parseFloat(kl.Volume),
				Trades:    kl.TradeNum,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
