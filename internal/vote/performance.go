package vote

import (
	"sort"
	"sync"

	"quorum/internal/market"
)

// regimeStats 是单个 agent 在单一行情状态下的累计命中统计。
type regimeStats struct {
	Total         int
	Correct       int
	ConfidenceSum float64
	// HitConfidence 累计命中票的置信度，用于校准度估计。
	HitConfidence float64
}

func (r regimeStats) accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total)
}

// calibration 衡量“报多少信心、兑现多少”：命中率与平均置信度之比，
// 上限截断在 [0,2]，样本不足时返回 1（中性）。
func (r regimeStats) calibration() float64 {
	if r.Total == 0 || r.ConfidenceSum <= 0 {
		return 1
	}
	avgConf := r.ConfidenceSum / float64(r.Total)
	if avgConf <= 0 {
		return 1
	}
	c := r.accuracy() / avgConf
	if c > 2 {
		c = 2
	}
	return c
}

// PerformanceTracker 按 (agent, regime) 维护滚动命中/校准计数。
// 只有 Record（结算后回填真值）会写入；Reset 仅限运维显式触发。
type PerformanceTracker struct {
	mu sync.RWMutex
	// minSamples 之前 Multiplier 恒为 1，避免小样本放大噪声。
	minSamples int
	agents     map[string]map[market.Regime]*regimeStats
}

func NewPerformanceTracker(minSamples int) *PerformanceTracker {
	if minSamples <= 0 {
		minSamples = 10
	}
	return &PerformanceTracker{
		minSamples: minSamples,
		agents:     make(map[string]map[market.Regime]*regimeStats),
	}
}

// Record 在真值揭晓后回填一票的结果。Skip 票不计入。
func (p *PerformanceTracker) Record(agent string, regime market.Regime, voted, actual Direction, confidence float64) {
	if p == nil || agent == "" || voted == Skip {
		return
	}
	if regime == "" {
		regime = market.RegimeUnknown
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	byRegime := p.agents[agent]
	if byRegime == nil {
		byRegime = make(map[market.Regime]*regimeStats)
		p.agents[agent] = byRegime
	}
	st := byRegime[regime]
	if st == nil {
		st = &regimeStats{}
		byRegime[regime] = st
	}
	st.Total++
	st.ConfidenceSum += confidence
	if voted == actual {
		st.Correct++
		st.HitConfidence += confidence
	}
}

// Multiplier 返回自适应权重系数：校准度压缩到 [0.5, 1.5] 区间。
// 样本不足或 agent 未知时返回 1。
func (p *PerformanceTracker) Multiplier(agent string, regime market.Regime) float64 {
	if p == nil {
		return 1
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := p.lookup(agent, regime)
	if st == nil || st.Total < p.minSamples {
		return 1
	}
	m := 0.5 + st.calibration()/2
	if m < 0.5 {
		m = 0.5
	}
	if m > 1.5 {
		m = 1.5
	}
	return m
}

// Accuracy 返回 (agent, regime) 的命中率与样本数，供审计展示。
func (p *PerformanceTracker) Accuracy(agent string, regime market.Regime) (float64, int) {
	if p == nil {
		return 0, 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := p.lookup(agent, regime)
	if st == nil {
		return 0, 0
	}
	return st.accuracy(), st.Total
}

// Agents 返回已有统计的 agent 名单（字典序），供状态接口遍历。
func (p *PerformanceTracker) Agents() []string {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.agents))
	for name := range p.agents {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reset 清空全部计数。仅限运维操作调用。
func (p *PerformanceTracker) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.agents = make(map[string]map[market.Regime]*regimeStats)
	p.mu.Unlock()
}

func (p *PerformanceTracker) lookup(agent string, regime market.Regime) *regimeStats {
	byRegime := p.agents[agent]
	if byRegime == nil {
		return nil
	}
	if regime == "" {
		regime = market.RegimeUnknown
	}
	return byRegime[regime]
}
