package builder

import (
	"sort"
	"strings"
)

// envFile is an env file edited in place. Lines hoist does not manage,
// comments and blank lines included, are kept byte for byte and in order.
// Values are read literally: "$NAME" is never expanded.
type envFile struct {
	lines []string
}

func parseEnvFile(data []byte) *envFile {
	content := string(data)
	if content == "" {
		return &envFile{}
	}
	content = strings.TrimSuffix(content, "\n")
	return &envFile{lines: strings.Split(content, "\n")}
}

// splitEnvLine returns the key and literal value of a KEY=value line.
// Comments, blank lines and lines without a key report ok=false.
func splitEnvLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	trimmed = strings.TrimPrefix(trimmed, "export ")

	idx := strings.IndexByte(trimmed, '=')
	if idx <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(trimmed[:idx])
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	return key, unquoteEnvValue(strings.TrimSpace(trimmed[idx+1:])), true
}

func unquoteEnvValue(value string) string {
	if len(value) < 2 {
		return value
	}
	switch {
	case value[0] == '\'' && value[len(value)-1] == '\'':
		return value[1 : len(value)-1]
	case value[0] == '"' && value[len(value)-1] == '"':
		inner := value[1 : len(value)-1]
		return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(inner)
	}
	return value
}

// Values returns every key in the file. A repeated key keeps its last value.
func (f *envFile) Values() map[string]string {
	values := map[string]string{}
	for _, line := range f.lines {
		if key, value, ok := splitEnvLine(line); ok {
			values[key] = value
		}
	}
	return values
}

// Set rewrites every KEY= line for key, or appends one when there is none
func (f *envFile) Set(key, value string) {
	found := false
	for i, line := range f.lines {
		k, _, ok := splitEnvLine(line)
		if !ok || k != key {
			continue
		}
		found = true
		rendered := formatEnvLine(key, value)
		if strings.HasSuffix(line, "\r") {
			rendered += "\r"
		}
		f.lines[i] = rendered
	}
	if !found {
		f.lines = append(f.lines, formatEnvLine(key, value))
	}
}

// Merge sets managed keys and adds seed keys that are missing. New keys are
// appended in sorted order so a fresh file is deterministic.
func (f *envFile) Merge(managed, seed map[string]string) {
	existing := f.Values()

	keys := make([]string, 0, len(managed)+len(seed))
	for k := range managed {
		keys = append(keys, k)
	}
	for k := range seed {
		if _, ok := managed[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if v, ok := managed[k]; ok {
			if current, ok := existing[k]; !ok || current != v {
				f.Set(k, v)
			}
			continue
		}
		if _, ok := existing[k]; !ok {
			f.Set(k, seed[k])
		}
	}
}

// Bytes renders the file with a trailing newline
func (f *envFile) Bytes() []byte {
	if len(f.lines) == 0 {
		return nil
	}
	return []byte(strings.Join(f.lines, "\n") + "\n")
}

// formatEnvLine writes KEY=value, the form docker compose env_file reads
// literally. Values that need quoting are single-quoted.
func formatEnvLine(key, value string) string {
	if value != "" && strings.ContainsAny(value, "\"'#$ \t\\") && !strings.Contains(value, "'") {
		return key + "='" + value + "'"
	}
	return key + "=" + value
}
