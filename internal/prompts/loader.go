// Package prompts holds the interviewer's prompt templates, embedded from JSON files
// that map a key to a template.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

// Interviewer is the prompt file used by the interview orchestrator.
const Interviewer = "interviewer.json"

// Prompt keys in Interviewer
const (
	KeySystem           = "system"
	KeyToolInstructions = "tool_instructions"
	KeySummarize        = "summarize"
)

//go:embed *.json
var promptFiles embed.FS

// templates parses every embedded file on first use; a malformed file fails all lookups
var templates = sync.OnceValues(func() (map[string]map[string]string, error) {
	return parseAll(promptFiles)
})

func parseAll(fsys fs.FS) (map[string]map[string]string, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}
	files := make(map[string]map[string]string, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", name, err)
		}
		var entries map[string]string
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse prompt file %s: %w", name, err)
		}
		files[name] = entries
	}
	return files, nil
}

// Get returns the template stored under key in file.
func Get(file, key string) (string, error) {
	files, err := templates()
	if err != nil {
		return "", err
	}
	entries, ok := files[file]
	if !ok {
		return "", fmt.Errorf("unknown prompt file %s", file)
	}
	tmpl, ok := entries[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return tmpl, nil
}

// MustGet is Get for templates the service cannot start without.
func MustGet(file, key string) string {
	tmpl, err := Get(file, key)
	if err != nil {
		panic(err)
	}
	return tmpl
}

// Format substitutes {{.Name}} placeholders; names missing from data stay in place.
func Format(tmpl string, data map[string]string) string {
	if len(data) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, 2*len(data))
	for name, value := range data {
		pairs = append(pairs, "{{."+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
