package configs

import (
	"flag"
	"os"

	"github.com/hearthside/gametable/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file from the --config flag, the
// GAMETABLE_CONFIG env var, or a set of conventional locations. An empty
// result means run on defaults.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("GAMETABLE_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"../../config.yaml", // keep for local dev
			"/etc/gametable/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
