package genai

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Edit is one whole-file write the model asked for.
type Edit struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type editList struct {
	Edits []Edit `json:"edits"`
}

// fileBlockRe matches the legacy reply shape:
//
//	FILE: path/to/file
//	```lang
//	content
//	```
var fileBlockRe = regexp.MustCompile("(?s)FILE:[ \t]*(\\S+)[ \t]*\r?\n```[^\n]*\n(.*?)```")

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\n(.*?)```")

// ParseEdits extracts file edits from model output. The preferred
// shape is a JSON object {"edits": [{"path", "content"}]}, possibly
// wrapped in a code fence; FILE: blocks are accepted as a fallback.
// Output with neither shape yields an empty list, which the pipeline
// treats as "no changes were made".
func ParseEdits(output string) []Edit {
	for _, candidate := range jsonCandidates(output) {
		parsed := editList{}
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		if parsed.Edits != nil {
			return parsed.Edits
		}
	}

	edits := []Edit{}
	for _, match := range fileBlockRe.FindAllStringSubmatch(output, -1) {
		edits = append(edits, Edit{Path: match[1], Content: match[2]})
	}
	return edits
}

// jsonCandidates yields plausible JSON documents inside the output:
// the whole reply, every fenced block, and the outermost brace span.
func jsonCandidates(output string) []string {
	candidates := []string{strings.TrimSpace(output)}
	for _, match := range fenceRe.FindAllStringSubmatch(output, -1) {
		candidates = append(candidates, strings.TrimSpace(match[1]))
	}
	if start := strings.Index(output, "{"); start >= 0 {
		if end := strings.LastIndex(output, "}"); end > start {
			candidates = append(candidates, output[start:end+1])
		}
	}
	return candidates
}

// ApplyEdits writes each edit under root, creating directories as
// needed. Paths that escape root are rejected.
func ApplyEdits(root string, edits []Edit) error {
	for _, edit := range edits {
		if err := validatePath(edit.Path); err != nil {
			return err
		}
		target := filepath.Join(root, filepath.FromSlash(edit.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", edit.Path, err)
		}
		if err := os.WriteFile(target, []byte(edit.Content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", edit.Path, err)
		}
	}
	return nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("edit has an empty path")
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return fmt.Errorf("edit path %q is absolute", path)
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("edit path %q escapes the workspace", path)
	}
	return nil
}
