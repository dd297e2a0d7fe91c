package deploy

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// EnvVar is one KEY=value pair.
type EnvVar struct {
	Key   string
	Value string
}

// UpsertEnvFile sets each key in a dotenv file. Existing assignments are
// replaced in place, missing keys are appended, and other lines are kept.
func UpsertEnvFile(path string, vars []EnvVar) error {
	raw, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read env file: %w", err)
	}

	pending := make(map[string]string, len(vars))
	for _, v := range vars {
		pending[v.Key] = v.Value
	}

	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if key, ok := envKey(line); ok {
			if value, found := pending[key]; found {
				line = key + "=" + value
				delete(pending, key)
			}
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan env file: %w", err)
	}

	for _, v := range vars {
		if _, ok := pending[v.Key]; !ok {
			continue
		}
		out.WriteString(v.Key + "=" + v.Value + "\n")
		delete(pending, v.Key)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write env tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename env file: %w", err)
	}
	return nil
}

func envKey(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	trimmed = strings.TrimPrefix(trimmed, "export ")
	idx := strings.Index(trimmed, "=")
	if idx <= 0 {
		return "", false
	}
	return strings.TrimSpace(trimmed[:idx]), true
}
