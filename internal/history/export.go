package history

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/penguinpowernz/deeptalk/internal/convo"
)

// ExportLog writes the session as a plain-text transcript: one block per
// exchange with the user prompt, the captured deliberation, and the final
// answer. Unpaired trailing turns are skipped.
func ExportLog(w io.Writer, turns []convo.Turn) error {
	if _, err := fmt.Fprintf(w, "Log Exported on %s\n\n", time.Now().Format("2006-01-02 15:04:05")); err != nil {
		return err
	}

	for i := 0; i+1 < len(turns); i += 2 {
		if turns[i].Role != convo.RoleUser || turns[i+1].Role != convo.RoleAssistant {
			continue
		}

		user := strings.TrimSpace(turns[i].Content)
		cot := strings.TrimSpace(turns[i+1].Deliberation)
		if cot == "" {
			cot = "None"
		}
		answer := strings.TrimSpace(turns[i+1].Content)
		if answer == "" {
			answer = "None"
		}

		if _, err := fmt.Fprintf(w, "User:\n%s\n\nCoT:\n%s\n\nAnswer:\n%s\n\n", user, cot, answer); err != nil {
			return err
		}
	}

	return nil
}

// ExportLogFile writes the transcript to the named file.
func ExportLogFile(filename string, turns []convo.Turn) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	return ExportLog(f, turns)
}
