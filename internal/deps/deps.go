// Package deps looks up the external binaries the diary pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool is an external binary and what the pipeline needs it for.
type Tool struct {
	Name    string
	Command string
	Purpose string
}

// FFmpeg describes the binary that converts uploads to 16 kHz mono WAV.
func FFmpeg(command string) Tool {
	return Tool{Name: "FFmpeg", Command: command, Purpose: "audio normalization"}
}

// UVX describes the launcher that runs WhisperX.
func UVX(command string) Tool {
	return Tool{Name: "uvx", Command: command, Purpose: "WhisperX transcription"}
}

// Status is the lookup result for one Tool.
type Status struct {
	Tool
	Available bool
	Detail    string
}

// CheckBinaries looks each tool up on PATH.
func CheckBinaries(tools ...Tool) []Status {
	results := make([]Status, 0, len(tools))
	for _, tool := range tools {
		tool.Command = strings.TrimSpace(tool.Command)
		status := Status{Tool: tool}
		switch {
		case tool.Command == "":
			status.Detail = fmt.Sprintf("%s command not configured", tool.Name)
		default:
			if _, err := exec.LookPath(tool.Command); err != nil {
				status.Detail = fmt.Sprintf("%s not found (needed for %s)", tool.Command, tool.Purpose)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Unavailable folds the missing tools in statuses into one error. It returns
// nil when every tool was found.
func Unavailable(statuses []Status) error {
	var missing []string
	for _, status := range statuses {
		if !status.Available {
			missing = append(missing, status.Detail)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(missing, "; "))
}
