package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vench/internal/apiclient"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate emotion and keyword statistics",
	}
	statsCmd.AddCommand(newEmotionStatsCommand(ctx))
	statsCmd.AddCommand(newKeywordStatsCommand(ctx))
	return statsCmd
}

func newEmotionStatsCommand(ctx *commandContext) *cobra.Command {
	var days int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "emotions",
		Short: "Sum emotion scores over recent completed diaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				stats, err := client.EmotionStats(cmd.Context(), days)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d diaries since %s\n", stats.Diaries, formatDisplayTime(stats.Since))
				if stats.Diaries == 0 {
					return nil
				}
				rows := make([][]string, 0, len(stats.Scores))
				for _, score := range stats.Scores {
					marker := ""
					if score.Label == stats.Dominant {
						marker = "*"
					}
					rows = append(rows, []string{score.Label, strconv.FormatFloat(score.Score, 'f', 2, 64), marker})
				}
				fmt.Fprint(out, renderTable([]string{"Emotion", "Total", ""}, rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 0, "Window in days (default 7)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newKeywordStatsCommand(ctx *commandContext) *cobra.Command {
	var days int
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "List the most frequent feedback keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				stats, err := client.KeywordStats(cmd.Context(), days, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				if len(stats.Keywords) == 0 {
					fmt.Fprintf(out, "No keywords since %s\n", formatDisplayTime(stats.Since))
					return nil
				}
				rows := make([][]string, 0, len(stats.Keywords))
				for i, kw := range stats.Keywords {
					rows = append(rows, []string{strconv.Itoa(i + 1), kw.Keyword, strconv.Itoa(kw.Count)})
				}
				fmt.Fprint(out, renderTable([]string{"#", "Keyword", "Count"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 0, "Window in days (default 30)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum keywords (default 20)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}
