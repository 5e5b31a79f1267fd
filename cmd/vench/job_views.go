package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"vench/internal/api"
	"vench/internal/jobs"
)

const summaryWidth = 40

func buildJobListRows(list []*jobs.Job) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		if job == nil {
			continue
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			formatKindLabel(job.Kind),
			formatStatusLabel(string(job.Status)),
			truncate(jobSummary(job), summaryWidth),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

// jobSummary picks the most useful one-line description for the job's state.
func jobSummary(job *jobs.Job) string {
	switch {
	case job.Status == jobs.StatusFailed && job.ErrorDetail != "":
		return job.ErrorDetail
	case job.Kind == jobs.KindDiaryAnalysis && job.Output.Title != "":
		if job.Output.EmotionLabel != "" {
			return fmt.Sprintf("%s (%s)", job.Output.Title, job.Output.EmotionLabel)
		}
		return job.Output.Title
	case job.Kind == jobs.KindFeedbackAnalysis && len(job.Output.Keywords) > 0:
		return strings.Join(job.Output.Keywords, ", ")
	case job.ProgressMessage != "":
		return job.ProgressMessage
	case job.Input.Diary != nil:
		if job.Input.Diary.OriginalName != "" {
			return job.Input.Diary.OriginalName
		}
		return filepath.Base(job.Input.Diary.AudioPath)
	case job.Input.Feedback != nil:
		return fmt.Sprintf("diary %d, rating %d", job.Input.Feedback.DiaryID, job.Input.Feedback.Rating)
	default:
		return "-"
	}
}

func jobDetailLines(resp api.JobResponse, colorize bool) []string {
	job := resp.Job
	if job == nil {
		return []string{"No job"}
	}
	lines := renderSectionHeader(fmt.Sprintf("Job %d", job.ID), colorize)
	lines = append(lines,
		renderStatusLine("Status", jobStatusKind(job.Status), formatStatusLabel(string(job.Status)), colorize),
		renderStatusLine("Kind", statusInfo, formatKindLabel(job.Kind), colorize),
		renderStatusLine("UUID", statusInfo, job.UUID, colorize),
		renderStatusLine("Created", statusInfo, formatDisplayTime(job.CreatedAt), colorize),
	)
	if job.FinishedAt != nil {
		lines = append(lines, renderStatusLine("Finished", statusInfo, formatDisplayTime(*job.FinishedAt), colorize))
	}
	if job.ProgressMessage != "" {
		lines = append(lines, renderStatusLine("Progress", jobStatusKind(job.Status), job.ProgressMessage, colorize))
	}
	if job.ErrorDetail != "" {
		lines = append(lines, renderStatusLine("Error", statusError, job.ErrorDetail, colorize))
	}

	switch {
	case job.Input.Diary != nil:
		lines = append(lines, diaryLines(job, colorize)...)
	case job.Input.Feedback != nil:
		lines = append(lines, feedbackLines(job, resp.Keywords, colorize)...)
	}
	return lines
}

func diaryLines(job *jobs.Job, colorize bool) []string {
	out := job.Output
	lines := []string{""}
	if out.Title != "" {
		lines = append(lines, renderStatusLine("Title", statusInfo, out.Title, colorize))
	}
	if out.EmotionLabel != "" {
		lines = append(lines, renderStatusLine("Emotion", statusInfo, out.EmotionLabel, colorize))
	}
	if len(out.Emotions) > 0 {
		rows := make([][]string, 0, len(out.Emotions))
		for _, score := range out.Emotions {
			rows = append(rows, []string{score.Label, strconv.FormatFloat(score.Score, 'f', 2, 64)})
		}
		lines = append(lines, "", strings.TrimRight(renderTable([]string{"Emotion", "Score"}, rows, []columnAlignment{alignLeft, alignRight}), "\n"))
	}
	for _, section := range []struct {
		title string
		body  string
	}{
		{"Transcript", out.Transcript},
		{"Diary", out.Narrative},
		{"Advice", out.Advice},
	} {
		if strings.TrimSpace(section.body) == "" {
			continue
		}
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader(section.title, colorize)...)
		lines = append(lines, section.body)
	}
	return lines
}

func feedbackLines(job *jobs.Job, keywords []jobs.KeywordRecord, colorize bool) []string {
	in := job.Input.Feedback
	lines := []string{
		"",
		renderStatusLine("Diary", statusInfo, strconv.FormatInt(in.DiaryID, 10), colorize),
		renderStatusLine("Rating", statusInfo, strconv.Itoa(in.Rating), colorize),
	}
	if in.Category != "" {
		lines = append(lines, renderStatusLine("Category", statusInfo, in.Category, colorize))
	}
	if in.Comment != "" {
		lines = append(lines, renderStatusLine("Comment", statusInfo, in.Comment, colorize))
	}
	if len(keywords) > 0 {
		words := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			words = append(words, kw.Keyword)
		}
		lines = append(lines, renderStatusLine("Keywords", statusOK,
			fmt.Sprintf("%s (%s)", strings.Join(words, ", "), keywords[0].ModelVersion), colorize))
	}
	return lines
}

func formatKindLabel(kind jobs.Kind) string {
	switch kind {
	case jobs.KindDiaryAnalysis:
		return "Diary"
	case jobs.KindFeedbackAnalysis:
		return "Feedback"
	default:
		return formatStatusLabel(string(kind))
	}
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	if utf8.RuneCountInString(value) <= width {
		return value
	}
	runes := []rune(value)
	return string(runes[:width-1]) + "…"
}
