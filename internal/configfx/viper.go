package configfx

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yurykabanov/archivist/pkg/domain"
)

const (
	EnvPrefix              = "archivist"
	DefaultConfigDirectory = "archivist"
	DefaultConfigFile      = "archivist"
)

var (
	defaultConfigPaths = []string{
		".",
		"./config",
		path.Join("/etc", DefaultConfigDirectory),
	}
)

func ViperProvider(logger *logrus.Logger, flagSet *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()

	err := bindFlags(v, flagSet)
	if err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config from config file
	if configFile := v.GetString(ConfigFile); configFile != "" {
		// If user do specify config file, then this file MUST exist and be valid
		// so missing file is a fatal error

		if _, err := os.Stat(configFile); err != nil {
			return nil, &domain.Error{Kind: domain.ErrConfig, Message: "config file not found", Err: err}
		}

		v.SetConfigFile(configFile)

		legacy := isLegacyConfig(configFile)
		if legacy {
			v.SetConfigType("env")
		}

		if err := v.ReadInConfig(); err != nil {
			return nil, &domain.Error{Kind: domain.ErrConfig, Message: "invalid config file " + configFile, Err: err}
		}

		if legacy {
			applyLegacyKeys(logger, v)
		}
	} else {
		// If user does not specify config file, then we'll still try to find appropriate config,
		// but missing file is not an error

		v.SetConfigName(DefaultConfigFile)

		for _, dir := range defaultConfigPaths {
			v.AddConfigPath(dir)
		}

		if err := v.ReadInConfig(); err != nil {
			logger.WithError(err).Debug("Couldn't read config file")
		}
	}

	return v, nil
}

func bindFlags(v *viper.Viper, flagSet *pflag.FlagSet) error {
	if flagSet == nil {
		return nil
	}

	var err error

	flagSet.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = f.Name
		}

		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = errors.Wrapf(bindErr, "unable to bind flag %s", f.Name)
		}
	})

	return err
}

func isLegacyConfig(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".conf", ".env":
		return true
	}
	return false
}
