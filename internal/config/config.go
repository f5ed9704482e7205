// Package config loads settings from an optional .env file plus
// prefixed environment variables into a struct. The shell uses it with
// the ATOMICDB_ prefix; ATOMICDB_HISTORY_FILE becomes history.file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load populates target from .env (when present) and environment
// variables carrying the given prefix (e.g. "ATOMICDB_").
func Load(prefix string, target interface{}) error {
	v := viper.New()

	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// The file is optional; a malformed one surfaces during
			// Unmarshal when a key it set matters.
		}
	}

	// AutomaticEnv cannot enumerate unknown keys for Unmarshal, so the
	// environment is walked explicitly and written into viper.
	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		key, value := pair[0], pair[1]

		if !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		propKey := strings.TrimPrefix(key, prefixUpper)
		propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
		propKey = strings.TrimPrefix(propKey, ".")
		v.Set(propKey, value)
	}

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}
