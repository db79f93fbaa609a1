package main

import (
	"context"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dnsmanager/internal/apiclient"
	"dnsmanager/internal/config"
	"dnsmanager/internal/records"
	"dnsmanager/internal/session"
	"dnsmanager/internal/users"
	"dnsmanager/internal/zones"
)

// app is the state shared by all commands. Fields set before Execute are
// kept; the rest are built from configuration.
type app struct {
	out   io.Writer
	fs    afero.Fs
	store session.TokenStore
	v     *viper.Viper

	cfg      *config.ClientConfig
	log      *logrus.Entry
	api      *apiclient.Client
	sessions *session.Manager
	zones    *zones.Directory
	records  *records.Store
	users    *users.Admin
	closers  []func() error
}

func newRootCmd(a *app) *cobra.Command {
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}
	a.v = viper.New()
	a.v.SetEnvPrefix("DNSCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "dnsctl",
		Short:         "Manage DNS zones through the dnsmanager API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.String("config", config.DefaultClientPath(), "Path to the client configuration file")
	flags.String("api-url", "", "Base URL of the API, /api prefix included")
	flags.String("token-store", "", "Where the session token is kept: file, redis or memory")
	flags.Bool("debug", false, "Enable debug logging")
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.zonesCmd(),
		a.recordsCmd(),
		a.reloadCmd(),
		a.restartCmd(),
		a.usersCmd(),
		a.logsCmd(),
	)
	return root
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.LoadClient(a.v.GetString("config"))
	if err != nil {
		return err
	}
	if u := a.v.GetString("api-url"); u != "" {
		cfg.APIURL = u
	}
	if b := a.v.GetString("token-store"); b != "" {
		cfg.TokenStore.Backend = b
	}
	if a.v.GetBool("debug") {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	logger := cfg.Log.NewLogger()
	logger.SetOutput(os.Stderr)
	a.log = logrus.NewEntry(logger)

	if a.store == nil {
		switch cfg.TokenStore.Backend {
		case "redis":
			rs := session.NewRedisTokenStore(cfg.TokenStore.RedisAddr, cfg.TokenStore.RedisPassword, cfg.TokenStore.RedisDB)
			a.closers = append(a.closers, rs.Close)
			a.store = rs
		case "memory":
			a.store = &session.MemoryTokenStore{}
		default:
			a.store = session.NewFileTokenStore(a.fs, cfg.TokenStore.Dir)
		}
	}

	a.api = apiclient.New(cfg.APIURL, cfg.Timeout, a.log)
	a.sessions = session.NewManager(a.api, a.store, a.log)
	a.zones = zones.NewDirectory(a.api, a.sessions)
	a.records = records.NewStore(a.api, a.sessions, a.log)
	a.users = users.NewAdmin(a.api, a.sessions)

	a.sessions.Verify(ctx)
	return nil
}

func (a *app) close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func (a *app) success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(a.out, format+"\n", args...)
}
