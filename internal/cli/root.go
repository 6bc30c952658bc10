// Package cli implements the tesla command line.
package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tesla-access/tesla-client/authclient"
	"github.com/tesla-access/tesla-client/internal/config"
	"github.com/tesla-access/tesla-client/internal/logging"
	"github.com/tesla-access/tesla-client/internal/metrics"
	"github.com/tesla-access/tesla-client/kvstore"
	"github.com/tesla-access/tesla-client/session"
)

type app struct {
	flagServer    string
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagStore     string
	flagStorePath string

	cfg     config.Config
	logger  zerolog.Logger
	metrics *metrics.Recorder
}

// NewRootCmd creates the root cobra command for the tesla CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tesla",
		Short: "TESLA access control client",
		Long:  "tesla logs in to a TESLA backend, keeps the session fresh, and reads admin records and reports.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagServer, "server", "", "TESLA backend URL (or TESLA_BASE_URL env)")
	pf.StringVar(&a.flagConfig, "config", "", "YAML settings file")
	pf.BoolVar(&a.flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&a.flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flagLogFormat, "log-format", "", "Log format (console, json)")
	pf.StringVar(&a.flagStore, "store", "", "Session store driver (file, sqlite, memory)")
	pf.StringVar(&a.flagStorePath, "store-path", "", "Session store location")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newRegisterCmd(a),
		newWhoAmICmd(a),
		newStatusCmd(a),
		newRefreshCmd(a),
		newWatchCmd(a),
		newUsersCmd(a),
		newReportsCmd(a),
		newThemeCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flagConfig)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := a.setting(a.flagLogLevel, cfg.GetLogLevel())
	if a.flagDebug {
		level = "debug"
	}
	a.logger = logging.NewWithWriter(logging.ParseLevel(level), a.setting(a.flagLogFormat, cfg.GetLogFormat()), cmd.ErrOrStderr())

	a.metrics, err = metrics.New(prometheus.NewRegistry())
	return err
}

func (a *app) setting(flagValue, configured string) string {
	if flagValue != "" {
		return flagValue
	}
	return configured
}

func (a *app) baseURL() string {
	return a.setting(a.flagServer, a.cfg.GetBaseURL())
}

func (a *app) openStore(ctx context.Context) (kvstore.Store, error) {
	driver := a.setting(a.flagStore, a.cfg.GetStoreDriver())
	path := a.setting(a.flagStorePath, a.cfg.GetStorePath())
	store, err := kvstore.Open(ctx, driver, path, a.cfg.GetStoreKey())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return store, nil
}

func (a *app) newClient() *authclient.Client {
	return authclient.New(a.baseURL(),
		authclient.WithHTTPClient(&http.Client{Timeout: a.cfg.GetRequestTimeout()}),
		authclient.WithLogger(a.logger),
		authclient.WithMetrics(a.metrics),
		authclient.WithExpiryMarker(a.cfg.GetExpiryMarker()),
	)
}

// startSession opens the store and mounts a session manager on it. The
// returned stop function unmounts it and closes the store.
func (a *app) startSession(ctx context.Context) (*session.Manager, func(), error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if c, ok := store.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				a.logger.Warn().Err(err).Msg("close store")
			}
		}
	}

	m, err := session.NewManager(a.newClient(), store,
		session.WithRefreshTick(a.cfg.GetRefreshTick()),
		session.WithRefreshThreshold(a.cfg.GetRefreshThreshold()),
		session.WithExpirySkew(a.cfg.GetExpirySkew()),
		session.WithLogger(a.logger),
		session.WithMetrics(a.metrics),
	)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	if err := m.Start(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}
	return m, func() {
		m.Stop()
		closeStore()
	}, nil
}

// requireLogin mounts the session and fails when there is no usable one.
func (a *app) requireLogin(ctx context.Context) (*session.Manager, func(), error) {
	m, stop, err := a.startSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !m.Snapshot().LoggedIn {
		stop()
		return nil, nil, errNotLoggedIn
	}
	return m, stop, nil
}
