package cli

import (
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/teamcutter/ipfilter/internal/apps"
	"github.com/teamcutter/ipfilter/internal/cache"
	"github.com/teamcutter/ipfilter/internal/config"
	"github.com/teamcutter/ipfilter/internal/domain"
	"github.com/teamcutter/ipfilter/internal/extractor"
	"github.com/teamcutter/ipfilter/internal/fetcher"
	"github.com/teamcutter/ipfilter/internal/logging"
	"github.com/teamcutter/ipfilter/internal/manager"
	"github.com/teamcutter/ipfilter/internal/mirrors"
	"github.com/teamcutter/ipfilter/internal/resolver"
	"github.com/teamcutter/ipfilter/internal/state"
)

// app carries what every command needs once the root command has run.
type app struct {
	cfg       *config.Config
	configArg string
	logLevel  string
	logOut    io.Closer
}

func Execute() error {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "ipfilter",
		Short:         "Download IP filter lists and install them into P2P clients",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configArg, "config", "", "config file (default ~/.ipfilter/config.toml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(
		newUpdateCmd(a),
		newMirrorsCmd(a),
		newAppsCmd(a),
		newCacheCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return rootCmd.Execute()
}

func (a *app) init() error {
	var err error
	if a.configArg != "" {
		a.cfg, err = config.LoadFrom(a.configArg)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := a.cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}

	var out io.Writer = os.Stderr
	if a.cfg.LogFile != "" {
		f, err := logging.OpenFile(a.cfg.LogFile, 0, 0)
		if err != nil {
			return err
		}
		a.logOut = f
		out = f
	}
	logging.Init(a.cfg.LogFormat, level, out)
	return nil
}

func (a *app) close() {
	if a.logOut != nil {
		a.logOut.Close()
	}
}

func (a *app) registry() *mirrors.Registry {
	return mirrors.Default(&http.Client{Timeout: a.cfg.Timeout.Duration}, a.cfg.DataDir, a.cfg.CatalogTTL.Duration)
}

func (a *app) resolver(reg *mirrors.Registry) *resolver.Resolver {
	return resolver.New(reg, a.cfg.Provider, a.cfg.Mirror)
}

func (a *app) cache() *cache.DiskCache {
	return cache.New(a.cfg.CacheFile)
}

func (a *app) enumerator(conflicts domain.ConflictHandler) *apps.Enumerator {
	return apps.NewEnumerator(apps.Builtin(a.cfg.AppPaths, conflicts), a.cfg.AppEnabled)
}

func (a *app) history() (domain.History, error) {
	return state.Open(a.cfg.HistoryBackend, a.cfg.HistoryFile)
}

// newManager wires the run pipeline. The caller closes the returned history.
func (a *app) newManager(conflicts domain.ConflictHandler, fallback bool) (*manager.Manager, domain.History, error) {
	history, err := a.history()
	if err != nil {
		return nil, nil, err
	}

	retry := fetcher.DefaultRetryConfig()
	retry.MaxRetries = a.cfg.MaxRetries

	return manager.New(
		fetcher.New(extractor.New(), a.cfg.Timeout.Duration, retry),
		a.cache(),
		a.enumerator(conflicts),
		history,
		manager.Options{CacheFallback: fallback || a.cfg.CacheFallback},
	), history, nil
}
