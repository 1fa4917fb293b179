package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

// ReadSecrets parses a dotenv file. A missing file yields an error matching
// fs.ErrNotExist; callers treat that as "no secrets".
func ReadSecrets(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	m, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets %s: %w", path, err)
	}
	return m, nil
}

// ChildEnv returns the extra environment for p: its static Env plus every
// secret named in SecretEnv that has a value. Secrets win over static entries.
// Names without a value are skipped; the child still inherits whatever the
// gateway's own environment holds.
func (p Program) ChildEnv(secrets map[string]string) map[string]string {
	out := make(map[string]string, len(p.Env)+len(p.SecretEnv))
	for k, v := range p.Env {
		out[k] = v
	}
	for _, name := range p.SecretEnv {
		if v, ok := secrets[name]; ok && v != "" {
			out[name] = v
		}
	}
	return out
}

// SecretValues lists the values of every secret, for log redaction.
func SecretValues(secrets map[string]string) []string {
	out := make([]string, 0, len(secrets))
	for _, k := range sortedKeys(secrets) {
		out = append(out, secrets[k])
	}
	return out
}
