package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vench/internal/apiclient"
	"vench/internal/config"
)

func newDiaryCommand(ctx *commandContext) *cobra.Command {
	diaryCmd := &cobra.Command{
		Use:   "diary",
		Short: "Submit voice diaries",
	}
	diaryCmd.AddCommand(newDiaryAddCommand(ctx))
	return diaryCmd
}

func newDiaryAddCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add <audio-file>",
		Short: "Upload an audio recording for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open audio file: %w", err)
			}
			defer file.Close()

			return ctx.withClient(func(client *apiclient.Client) error {
				job, err := client.CreateDiary(cmd.Context(), path, file)
				if err != nil {
					return err
				}
				if wait {
					resp, err := waitForJob(cmd.Context(), client, job.UUID)
					if err != nil {
						return err
					}
					return printJob(cmd, resp, jsonOutput)
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Diary job %d queued (%s)\n", job.ID, job.UUID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the analysis to finish")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}
