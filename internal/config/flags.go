package config

import (
	"maps"

	"github.com/spf13/pflag"
)

// flagMapping maps flag names to config keys
var flagMapping = map[string]string{
	"realm-lightweight-access-tokens": "realm.lightweight_access_tokens",
	"directory-type":                  "directory.type",
	"directory-file":                  "directory.file",
	"log-level":                       "observability.log_level",
	"log-format":                      "observability.log_format",
}

// RegisterFlags adds the configuration flags to fs.
// Only flags that are explicitly set override other configuration sources.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Bool("realm-lightweight-access-tokens", false, "Issue lightweight access tokens for every session")
	fs.String("directory-type", "", "Organization directory type (static, postgres, lua, none)")
	fs.String("directory-file", "", "YAML or JSON file of static organizations")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("log-format", "", "Log format (json, text)")
}

// GetFlagMapping returns the mapping from flag names to config keys
func GetFlagMapping() map[string]string {
	return maps.Clone(flagMapping)
}
