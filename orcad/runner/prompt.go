package runner

import (
	"os"
	"path/filepath"
	"strings"
)

// BuildPrompt combines the task with a bounded sample of the checkout:
// at most maxFiles top-level regular files, each quoted up to maxBytes.
// Subdirectories are not walked; the sample orients the model, it is
// not a full repository dump.
func BuildPrompt(dir, task string, maxFiles int, maxBytes int64) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task)
	b.WriteString("\n")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return b.String()
	}

	quoted := 0
	for _, entry := range entries {
		if quoted >= maxFiles {
			break
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() > maxBytes {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if quoted == 0 {
			b.WriteString("\nRepository files:\n")
		}
		b.WriteString("\n--- ")
		b.WriteString(entry.Name())
		b.WriteString(" ---\n")
		b.Write(content)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			b.WriteString("\n")
		}
		quoted++
	}
	return b.String()
}
