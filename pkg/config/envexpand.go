package config

import "os"

// ExpandEnv expands ${VAR} / $VAR references in raw YAML bytes using the
// standard library's shell-style expansion.
// Missing variables expand to empty string; validation catches any
// required field left empty as a result.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
