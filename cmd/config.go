package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/wufan123/vs-ex-compress/workspace"
)

const (
	configBaseName   = "vsxc"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	envPrefix = "VSXC"

	rootKey        = "root"
	ignoreKey      = "ignore"
	quietPeriodKey = "quiet_period"
	parallelismKey = "parallelism"

	archiveIncludeArchivesKey = "archive.include_archives"
	archiveRemovePartialKey   = "archive.remove_partial"
	archiveIgnoreSelectionKey = "archive.ignore_selection"

	logFileKey       = "log.file"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"

	serveAddrKey = "serve.addr"

	configFlagName     = "config"
	rootFlagName       = "root"
	ignoreFlagName     = "ignore"
	parallelFlagName   = "parallel"
	verboseFlagName    = "verbose"
	logFileFlagName    = "log-file"
	serveAddrFlagName  = "addr"
	listLimitFlagName  = "limit"
	listFormatFlagName = "format"
	defaultRoot        = "."
	defaultIgnore      = ""
	defaultParallelism = 0
	defaultLogMaxSize  = 10
	defaultLogBackups  = 3
	defaultServeAddr   = "127.0.0.1:8090"
)

var logger = slog.Default()

// ignorePattern mirrors the ignore key so scans never read viper while a
// config reload is writing it.
var ignorePattern atomic.Pointer[string]

func init() {
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(rootKey, defaultRoot)
	viper.SetDefault(ignoreKey, defaultIgnore)
	viper.SetDefault(quietPeriodKey, workspace.DefaultQuietPeriod)
	viper.SetDefault(parallelismKey, defaultParallelism)
	viper.SetDefault(archiveIncludeArchivesKey, false)
	viper.SetDefault(archiveRemovePartialKey, false)
	viper.SetDefault(archiveIgnoreSelectionKey, false)
	viper.SetDefault(logFileKey, "")
	viper.SetDefault(logVerboseKey, false)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogBackups)
	viper.SetDefault(serveAddrKey, defaultServeAddr)
}

// loadConfig reads the config file and snapshots the values scans read
// concurrently. With no explicit path, vsxc.yaml in the working directory is
// read if present; a missing default file just means defaults apply.
func loadConfig(path string) error {
	if strings.TrimSpace(path) == "" {
		viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
		if err := viper.ReadInConfig(); err != nil && !configNotFound(err) {
			return fmt.Errorf("read config %s: %w", configFileName, err)
		}
	} else {
		viper.SetConfigFile(expandPath(path))
		if err := viper.ReadInConfig(); err != nil {
			if configNotFound(err) {
				return fmt.Errorf("config file %s not found", path)
			}
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	refreshIgnore()
	return nil
}

// configNotFound covers both the search-path error and the plain missing
// file returned when the file is set explicitly.
func configNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func refreshIgnore() {
	p := viper.GetString(ignoreKey)
	ignorePattern.Store(&p)
}

func currentIgnore() string {
	if p := ignorePattern.Load(); p != nil {
		return *p
	}
	return viper.GetString(ignoreKey)
}

// watchConfig re-reads the ignore pattern whenever the config file changes.
func watchConfig() {
	file := viper.ConfigFileUsed()
	if file == "" {
		return
	}
	if _, err := os.Stat(file); err != nil {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		refreshIgnore()
		logger.Info("config reloaded", "file", e.Name, "ignore", currentIgnore())
	})
	viper.WatchConfig()
}

// configureLogger installs the workspace logger from the log.* keys.
func configureLogger() {
	logger = workspace.InitLogger(workspace.LogConfig{
		Verbose:    viper.GetBool(logVerboseKey),
		File:       expandPath(viper.GetString(logFileKey)),
		MaxSizeMB:  viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
	}).With("comp", "cmd")
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return p
	}
	return expanded
}

func workspaceRoot() (string, error) {
	root, err := filepath.Abs(expandPath(viper.GetString(rootKey)))
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	return root, nil
}

// newService builds a workspace service from the current configuration.
func newService(notifier workspace.Notifier) (*workspace.Service, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	return workspace.NewService(workspace.ServiceConfig{
		Root:        root,
		Pattern:     currentIgnore,
		QuietPeriod: viper.GetDuration(quietPeriodKey),
		Parallelism: viper.GetInt(parallelismKey),
		Archive: workspace.ArchiveOptions{
			IncludeArchives:        viper.GetBool(archiveIncludeArchivesKey),
			RemovePartial:          viper.GetBool(archiveRemovePartialKey),
			ApplyIgnoreToSelection: viper.GetBool(archiveIgnoreSelectionKey),
		},
		Notifier: notifier,
	}), nil
}
