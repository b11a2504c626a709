package main

import (
	"fmt"

	"quorum/internal/report"

	"github.com/spf13/cobra"
)

// 查询命令共用的打开逻辑：数据库缺失或不可读直接以非零码退出，
// 不会悄悄建空库。
func openReportStore() (*report.Store, error) {
	return report.NewStore(journalPath)
}

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "对比所有策略的战绩",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openReportStore()
			if err != nil {
				return err
			}
			defer store.Close()
			rows, err := store.ComparePerformance(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(report.RenderComparison(rows))
			return nil
		},
	}
}

func newDetailsCmd() *cobra.Command {
	var (
		strategy string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "details --strategy=<name>",
		Short: "查看单个策略的配置、战绩与近期交易",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openReportStore()
			if err != nil {
				return err
			}
			defer store.Close()
			det, err := store.Details(cmd.Context(), strategy, limit)
			if err != nil {
				return err
			}
			fmt.Println(report.RenderDetails(det))
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "策略名")
	cmd.Flags().IntVar(&limit, "limit", 50, "最多显示多少笔交易")
	_ = cmd.MarkFlagRequired("strategy")
	return cmd
}

func newDecisionsCmd() *cobra.Command {
	var (
		strategy string
		symbol   string
		epoch    int64
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "查看决策历史（含未成交的）",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openReportStore()
			if err != nil {
				return err
			}
			defer store.Close()
			rows, err := store.Decisions(cmd.Context(), report.DecisionQuery{
				Strategy: strategy,
				Symbol:   symbol,
				Epoch:    epoch,
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			fmt.Println(report.RenderDecisions(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "按策略名过滤")
	cmd.Flags().StringVar(&symbol, "symbol", "", "按标的过滤")
	cmd.Flags().Int64Var(&epoch, "epoch", 0, "按 epoch 过滤")
	cmd.Flags().IntVar(&limit, "limit", 50, "最多显示多少条")
	return cmd
}
