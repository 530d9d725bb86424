// Package config locates the harvester configuration file for the CLI.
// Parsing and validation live in internal/config; this package only decides
// which file, if any, should be handed to it.
package config

import (
	"errors"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/logging"
)

// SearchPaths are the directories probed, in order, when no explicit config
// file is given.
var SearchPaths = []string{
	".",                // Current working directory
	"/etc/harvester/",  // System-wide configuration
	"$HOME/.harvester", // User-specific configuration
}

// InitConfig resolves the config file path. An explicit path is returned
// unchanged. Otherwise a file named "harvester" (any extension Viper
// understands) is searched for in SearchPaths. An empty result means
// defaults and environment variables only.
func InitConfig(explicit string) (string, error) {
	if explicit != "" {
		logging.L.Info("Using config file", zap.String("path", explicit))
		return explicit, nil
	}

	v := viper.New()
	v.SetConfigName("harvester")
	for _, p := range SearchPaths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Not fatal: defaults and environment variables still apply.
			logging.L.Warn("Config file not found; using defaults and environment variables.")
			return "", nil
		}
		logging.L.Error("Error reading config file", zap.Error(err))
		return "", err
	}
	logging.L.Info("Using config file", zap.String("path", v.ConfigFileUsed()))
	return v.ConfigFileUsed(), nil
}
