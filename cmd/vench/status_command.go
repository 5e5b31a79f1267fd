package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vench/internal/api"
	"vench/internal/apiclient"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkLLM bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, worker pool and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.Status(cmd.Context(), checkLLM)
				if apiclient.IsAPIUnavailable(err) {
					if jsonOutput {
						return writeJSON(cmd, map[string]any{"running": false})
					}
					fmt.Fprintln(out, renderStatusLine("vench", statusError, "Not running", colorize))
					return nil
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				for _, line := range statusLines(status, colorize) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&checkLLM, "llm", false, "Also ping the LLM endpoint")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func statusLines(status api.Status, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if status.Running {
		lines = append(lines, renderStatusLine("vench", statusOK, "Running (pid "+strconv.Itoa(status.PID)+")", colorize))
	} else {
		lines = append(lines, renderStatusLine("vench", statusWarn, "Stopped", colorize))
	}
	lines = append(lines,
		renderStatusLine("Database", statusInfo, status.DatabasePath, colorize),
		renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d busy of %d, %d queued",
			status.Dispatcher.InFlight, status.Dispatcher.Workers, status.Dispatcher.QueueDepth), colorize),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Jobs", colorize)...)
	jobs := status.Jobs
	lines = append(lines,
		renderStatusLine("Pending", statusInfo, strconv.Itoa(jobs.Pending), colorize),
		renderStatusLine("Processing", statusInfo, strconv.Itoa(jobs.Processing), colorize),
		renderStatusLine("Completed", statusOK, strconv.Itoa(jobs.Completed), colorize),
		renderStatusLine("Skipped", statusWarn, strconv.Itoa(jobs.Skipped), colorize),
	)
	failedKind := statusOK
	if jobs.Failed > 0 {
		failedKind = statusError
	}
	lines = append(lines, renderStatusLine("Failed", failedKind, strconv.Itoa(jobs.Failed), colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Stages", colorize)...)
	for _, health := range status.Stages {
		if health.Ready {
			lines = append(lines, renderStatusLine(health.Name, statusOK, "Ready", colorize))
			continue
		}
		lines = append(lines, renderStatusLine(health.Name, statusError, health.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}
