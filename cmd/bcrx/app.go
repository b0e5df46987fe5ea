package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/franz/bcr-index/internal/index"
	"github.com/franz/bcr-index/internal/library"
	"github.com/franz/bcr-index/internal/meta"
	"github.com/franz/bcr-index/internal/report"
	"github.com/franz/bcr-index/internal/scan"
	"github.com/franz/bcr-index/internal/settings"
	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/store"
	"github.com/franz/bcr-index/internal/util"
)

// app wires the components every command works with
type app struct {
	cfg        *Config
	gateway    storage.Gateway
	settings   *settings.Settings
	index      *index.Store
	scanner    *scan.Scanner
	history    *store.Store // nil when the history database is unavailable
	logger     *report.EventLogger
	controller *library.Controller
}

// newApp loads configuration and builds the controller. selector may be nil.
func newApp(selector library.Selector) (*app, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	settingsPath := cfg.Settings
	if settingsPath == "" {
		if settingsPath, err = settings.DefaultPath(); err != nil {
			return nil, err
		}
	}
	st, err := settings.Open(nil, settingsPath)
	if err != nil {
		return nil, err
	}
	if cfg.Directory != "" {
		st.Override(storage.Location(cfg.Directory))
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return nil, err
	}

	logger := report.NullLogger()
	if cfg.Artifacts != "" {
		logger, err = report.NewEventLogger(cfg.Artifacts, report.ParseLevel(cfg.EventLevel))
		if err != nil {
			util.WarnLog("Failed to create event logger: %v", err)
			logger = report.NullLogger()
		} else {
			util.DebugLog("Event log: %s", logger.Path())
		}
	}

	scanner, err := scan.New(&scan.Config{
		Gateway: gw,
		Builder: meta.NewBuilder(&meta.Config{
			Gateway:  gw,
			ReadTags: cfg.ReadTags,
			Logger:   logger,
		}),
		SupportedTypes: cfg.SupportedTypes,
		Exclude:        cfg.Exclude,
		MetadataExt:    cfg.MetadataExt,
		Concurrency:    cfg.Concurrency,
		Logger:         logger,
	})
	if err != nil {
		logger.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		gateway:  gw,
		settings: st,
		index:    index.NewStore(gw, logger),
		scanner:  scanner,
		logger:   logger,
	}

	a.history, err = openHistory(cfg.HistoryDB)
	if err != nil {
		util.WarnLog("Pass history disabled: %v", err)
	}

	lcfg := &library.Config{
		Settings: st,
		Selector: selector,
		Gateway:  gw,
		Store:    a.index,
		Scanner:  scanner,
		Logger:   logger,
	}
	if a.history != nil {
		lcfg.History = a.history
	}
	a.controller = library.New(lcfg)
	return a, nil
}

// Close releases the history database and event log
func (a *app) Close() {
	if a.history != nil {
		a.history.Close()
	}
	a.logger.Close()
}

// newGateway builds the configured backend wrapped in retries. Object
// storage always gets the patient retry profile, local directories get it
// when they sit on a network mount.
func newGateway(cfg *Config) (storage.Gateway, error) {
	switch cfg.Backend {
	case "s3":
		client, err := storage.NewObjectClient(cfg.S3)
		if err != nil {
			return nil, err
		}
		retry := util.NASRetryConfig()
		applyRetryOverrides(retry, cfg.Retry)
		return storage.NewRetryGateway(storage.NewObjectGateway(client), retry), nil
	default:
		inner := storage.NewFSGateway(afero.NewOsFs())
		return storage.NewPolicyRetryGateway(inner, networkRetryPolicy(cfg.Retry, util.DetectNetworkFilesystem)), nil
	}
}

// networkRetryPolicy classifies each directory on its first use, including
// one picked at the prompt after startup. Failed detections are retried on
// the next call.
func networkRetryPolicy(overrides RetryConfig, detect func(string) (*util.NetworkInfo, error)) storage.RetryPolicy {
	var mu sync.Mutex
	profiles := make(map[storage.Location]*util.RetryConfig)

	return func(loc storage.Location) *util.RetryConfig {
		mu.Lock()
		defer mu.Unlock()
		if cfg, ok := profiles[loc]; ok {
			return cfg
		}

		cfg := util.DefaultRetryConfig()
		info, err := detect(string(loc))
		if err == nil && info.IsNetwork {
			util.InfoLog("Network filesystem detected (%s at %s)", info.Protocol, info.MountPath)
			cfg = util.NASRetryConfig()
		}
		applyRetryOverrides(cfg, overrides)
		if err == nil {
			profiles[loc] = cfg
		}
		return cfg
	}
}

func applyRetryOverrides(cfg *util.RetryConfig, o RetryConfig) {
	if o.Attempts > 0 {
		cfg.MaxAttempts = o.Attempts
	}
	if o.InitialWait > 0 {
		cfg.InitialWait = o.InitialWait
	}
}

// historyPath returns the configured history database or the default one
// next to the settings file
func historyPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "bcrx", "history.db"), nil
}

func openHistory(path string) (*store.Store, error) {
	path, err := historyPath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	opts := &store.OpenOptions{NetworkOptimized: util.IsNetworkPath(filepath.Dir(path))}
	return store.OpenWithOptions(path, opts)
}
