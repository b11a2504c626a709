package report

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// RenderComparison 以纯文本表格输出所有策略的对比。
func RenderComparison(rows []StrategyPerformance) string {
	var sb strings.Builder
	sb.WriteString("=== 策略对比 ===\n")
	if len(rows) == 0 {
		sb.WriteString("(no strategies)")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("%-24s %-5s %10s %7s %5s %7s %8s %10s %8s %5s\n",
		"STRATEGY", "LIVE", "BALANCE", "TRADES", "WINS", "LOSSES", "WINRATE", "PNL", "ROI", "OPEN"))
	for _, row := range rows {
		live := ""
		if row.IsLive {
			live = "*"
		}
		sb.WriteString(fmt.Sprintf("%-24s %-5s %10.2f %7d %5d %7d %7.1f%% %+10.2f %+7.1f%% %5d\n",
			row.Strategy, live, row.Balance, row.TotalTrades, row.Wins, row.Losses,
			row.WinRate*100, row.TotalPnL, row.ROI*100, row.OpenCount))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderDetails 输出单个策略的配置、战绩与近期交易。
func RenderDetails(det StrategyDetails) string {
	perf := det.Performance
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== 策略详情: %s ===\n", perf.Strategy))
	if desc := strings.TrimSpace(det.Description); desc != "" {
		sb.WriteString(desc + "\n")
	}
	if perf.IsLive {
		sb.WriteString("[LIVE]\n")
	}
	sb.WriteString(fmt.Sprintf("balance=%.2f trades=%d wins=%d losses=%d winrate=%.1f%% pnl=%+.2f roi=%+.1f%% open=%d\n",
		perf.Balance, perf.TotalTrades, perf.Wins, perf.Losses,
		perf.WinRate*100, perf.TotalPnL, perf.ROI*100, perf.OpenCount))
	sb.WriteString(renderConfig(det.ConfigJSON))
	sb.WriteString("\n--- 近期交易 ---\n")
	if len(det.Trades) == 0 {
		sb.WriteString("(none)")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("%-8s %-10s %-12s %-6s %8s %8s %9s %-8s %9s\n",
		"TRADE", "SYMBOL", "EPOCH", "DIR", "ENTRY", "SIZE", "SHARES", "RESULT", "PNL"))
	for _, t := range det.Trades {
		result := "open"
		pnl := "-"
		if t.Resolved {
			if t.Won {
				result = "win"
			} else {
				result = "loss"
			}
			pnl = fmt.Sprintf("%+.2f", t.PnL)
		}
		sb.WriteString(fmt.Sprintf("%-8d %-10s %-12d %-6s %8.4f %8.2f %9.2f %-8s %9s\n",
			t.TradeID, t.Symbol, t.Epoch, t.Direction, t.EntryPrice, t.Size, t.Shares, result, pnl))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderConfig(configJSON string) string {
	if strings.TrimSpace(configJSON) == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("--- 配置 ---\n")
	fields := []struct{ label, path string }{
		{"consensus_threshold", "consensus_threshold"},
		{"min_confidence", "min_confidence"},
		{"min_individual_confidence", "min_individual_confidence"},
		{"min_agents", "min_agents"},
		{"adaptive_weighting", "adaptive_weighting"},
		{"regime_adjust", "regime_adjust"},
		{"veto_enabled", "veto_enabled"},
		{"trade_size_usd", "trade_size_usd"},
		{"max_open_positions", "max_open_positions"},
	}
	for _, f := range fields {
		if v := gjson.Get(configJSON, f.path); v.Exists() {
			sb.WriteString(fmt.Sprintf("  %s = %s\n", f.label, v.String()))
		}
	}
	if weights := gjson.Get(configJSON, "agent_weights"); weights.Exists() && len(weights.Map()) > 0 {
		sb.WriteString("  agent_weights:\n")
		weights.ForEach(func(key, value gjson.Result) bool {
			sb.WriteString(fmt.Sprintf("    %s = %s\n", key.String(), value.String()))
			return true
		})
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderDecisions 输出决策历史。
func RenderDecisions(rows []DecisionRow) string {
	var sb strings.Builder
	sb.WriteString("=== 决策历史 ===\n")
	if len(rows) == 0 {
		sb.WriteString("(none)")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("%-20s %-24s %-10s %-12s %-6s %-6s %6s %7s %-14s\n",
		"TIME", "STRATEGY", "SYMBOL", "EPOCH", "TRADE", "DIR", "CONF", "SCORE", "VOTES(U/D/N)"))
	for _, row := range rows {
		trade := "skip"
		if row.ShouldTrade {
			trade = "yes"
		} else if row.Vetoed {
			trade = "veto"
		}
		votes := fmt.Sprintf("%d/%d/%d", row.UpVotes, row.DownVotes, row.NeutralVotes)
		sb.WriteString(fmt.Sprintf("%-20s %-24s %-10s %-12d %-6s %-6s %6.2f %7.3f %-14s\n",
			row.CreatedAt.Format("2006-01-02 15:04:05"), row.Strategy, row.Symbol, row.Epoch,
			trade, row.Direction, row.Confidence, row.WeightedScore, votes))
		if reason := strings.TrimSpace(row.Reason); reason != "" && !row.ShouldTrade {
			sb.WriteString("  " + reason + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
