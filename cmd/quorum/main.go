package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var journalPath string

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "15 分钟二元预测的共识决策与影子策略编排",
	Long: `quorum 让一组专家 agent 对每个 15 分钟 epoch 投票，
按多套策略参数并行算出交易决策，用影子账户模拟执行并记录流水，
用真实结果结算后对比各套参数的战绩。

run 启动主循环；compare / details / decisions 离线查询流水账。`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&journalPath, "db", "data/journal.db", "journal 数据库路径")
	rootCmd.AddCommand(newRunCmd(), newCompareCmd(), newDetailsCmd(), newDecisionsCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
