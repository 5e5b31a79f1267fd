package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vench/internal/api"
	"vench/internal/apiclient"
)

func newFeedbackCommand(ctx *commandContext) *cobra.Command {
	feedbackCmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record feedback on analyzed diaries",
	}
	feedbackCmd.AddCommand(newFeedbackAddCommand(ctx))
	return feedbackCmd
}

func newFeedbackAddCommand(ctx *commandContext) *cobra.Command {
	var rating int
	var category string
	var comment string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add <diary-id>",
		Short: "Rate a completed diary and extract keywords from the comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diaryID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || diaryID <= 0 {
				return fmt.Errorf("invalid diary id %q", args[0])
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				job, err := client.CreateFeedback(cmd.Context(), api.FeedbackRequest{
					DiaryID:  diaryID,
					Rating:   rating,
					Category: category,
					Comment:  comment,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Feedback job %d queued for diary %d\n", job.ID, diaryID)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&rating, "rating", "r", 0, "Rating from 1 to 5")
	cmd.Flags().StringVar(&category, "category", "", "Feedback category (stt_accuracy, performance, ux_ui, bug, feature_request, other)")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "Free-form comment")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}
