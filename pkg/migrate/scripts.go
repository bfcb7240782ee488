package migrate

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed scripts
var embedded embed.FS

// archiveDir marks scripts kept for reference but never applied
const archiveDir = "/Archive/"

// Script is one migration, journaled under Name
type Script struct {
	Name     string
	Contents string
}

// EmbeddedScripts returns the scripts compiled into the binary
func EmbeddedScripts() ([]Script, error) {
	return LoadScripts(embedded, "scripts")
}

// LoadScripts reads every .sql file under root, skipping archived scripts,
// sorted by file name. Scripts that cannot be split into batches are rejected.
func LoadScripts(fsys fs.FS, root string) ([]Script, error) {
	var scripts []Script
	seen := make(map[string]string)

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(path.Ext(p), ".sql") {
			return nil
		}
		if strings.Contains("/"+p, archiveDir) {
			return nil
		}

		name := path.Base(p)
		if other, ok := seen[name]; ok {
			return fmt.Errorf("duplicate script name %s in %s and %s", name, other, p)
		}
		seen[name] = p

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read script %s: %w", p, err)
		}
		if _, err := SplitBatches(string(data)); err != nil {
			return fmt.Errorf("script %s: %w", p, err)
		}
		scripts = append(scripts, Script{Name: name, Contents: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].Name < scripts[j].Name
	})
	return scripts, nil
}

// maxScriptLine is the longest line SplitBatches accepts
const maxScriptLine = 16 * 1024 * 1024

// SplitBatches splits a script on lines holding only the GO separator.
// Empty batches are dropped. A script that cannot be read to the end is an
// error, never a shorter list of batches.
func SplitBatches(script string) ([]string, error) {
	var batches []string
	var current strings.Builder

	flush := func() {
		if batch := strings.TrimSpace(current.String()); batch != "" {
			batches = append(batches, batch)
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(script))
	scanner.Buffer(make([]byte, 0, 64*1024), maxScriptLine)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), "GO") {
			flush()
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to split script into batches: %w", err)
	}
	flush()
	return batches, nil
}
