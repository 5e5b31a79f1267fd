package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vench/internal/api"
	"vench/internal/apiclient"
	"vench/internal/jobs"
)

const waitPollInterval = time.Second

func newShowCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id|uuid>",
		Short: "Show one job with its analysis results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *apiclient.Client) error {
				var resp api.JobResponse
				var err error
				if wait {
					resp, err = waitForJob(cmd.Context(), client, ref)
				} else {
					resp, err = client.Job(cmd.Context(), ref)
				}
				if apiclient.IsNotFound(err) {
					return fmt.Errorf("job %s not found", ref)
				}
				if err != nil {
					return err
				}
				return printJob(cmd, resp, jsonOutput)
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job reaches a terminal state")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var kinds []string
	var statuses []string
	var limit int
	var offset int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ListRequest{Limit: limit, Offset: offset}
			for _, kind := range kinds {
				req.Kinds = append(req.Kinds, parseKindFlag(kind))
			}
			for _, value := range statuses {
				status, ok := jobs.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				req.Statuses = append(req.Statuses, status)
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.List(cmd.Context(), req)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Kind", "Status", "Summary", "Created"},
					buildJobListRows(resp.Jobs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "\nShowing %d of %d\n", len(resp.Jobs), resp.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "Filter by kind (diary, feedback)")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum jobs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many jobs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id|uuid>...",
		Short: "Reset failed or skipped jobs and run them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					ref := strings.TrimSpace(arg)
					job, err := client.Retry(cmd.Context(), ref)
					var statusErr *apiclient.StatusError
					switch {
					case apiclient.IsNotFound(err):
						fmt.Fprintf(out, "Job %s not found\n", ref)
					case errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict:
						fmt.Fprintf(out, "Job %s is not in a retryable state (only failed or skipped jobs can be retried)\n", ref)
					case err != nil:
						return err
					default:
						fmt.Fprintf(out, "Job %d reset for retry\n", job.ID)
					}
				}
				return nil
			})
		},
	}
}

// parseKindFlag accepts the short names alongside the stored kind values.
func parseKindFlag(value string) jobs.Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "diary":
		return jobs.KindDiaryAnalysis
	case "feedback":
		return jobs.KindFeedbackAnalysis
	default:
		return jobs.Kind(strings.TrimSpace(value))
	}
}

func waitForJob(ctx context.Context, client *apiclient.Client, ref string) (api.JobResponse, error) {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	for {
		resp, err := client.Job(ctx, ref)
		if err != nil {
			return api.JobResponse{}, err
		}
		if resp.Job != nil && resp.Job.Status.IsTerminal() {
			return resp, nil
		}
		select {
		case <-ctx.Done():
			return api.JobResponse{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJob(cmd *cobra.Command, resp api.JobResponse, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	for _, line := range jobDetailLines(resp, shouldColorize(out)) {
		fmt.Fprintln(out, line)
	}
	return nil
}
