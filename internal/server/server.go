package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/auth"
	"dnsmanager/internal/config"
	"dnsmanager/internal/database"
	"dnsmanager/internal/handler"
	"dnsmanager/internal/metrics"
	"dnsmanager/internal/model"
	"dnsmanager/internal/service"
	"dnsmanager/internal/users"
	"dnsmanager/migrations"
)

const purgeInterval = time.Hour

// Store is everything the API keeps in its database. *database.DB
// implements it.
type Store interface {
	handler.Accounts
	handler.EventLog
	handler.Pinger
	service.AuditLog
	auth.RevocationList
}

type Deps struct {
	Store   Store
	Backend service.ZoneBackend
	Tokens  *auth.TokenManager
	LDAP    handler.Directory
	Version string
	Log     *logrus.Entry
}

// NewRouter mounts the API under /api and metrics under /metrics.
func NewRouter(d Deps) http.Handler {
	ops := service.NewOperations(d.Backend, d.Store, d.Log)
	mw := auth.NewMiddleware(d.Tokens, d.Store, d.Log)

	authH := handler.NewAuthHandler(d.Store, d.Tokens, d.LDAP, ops, d.Log)
	adminH := handler.NewAdminHandler(d.Store, ops, d.Log)
	logH := handler.NewLogHandler(d.Store, d.Log)
	zoneH := handler.NewZoneHandler(ops, d.Log)
	recH := handler.NewRecordHandler(ops, d.Log)

	mux := http.NewServeMux()
	route := func(pattern string, h http.Handler) {
		mux.Handle(pattern, metrics.Instrument(pattern, h))
	}
	authed := func(f http.HandlerFunc) http.Handler { return mw.RequireAuth(f) }
	admin := func(f http.HandlerFunc) http.Handler { return mw.RequireAdmin(f) }

	route("POST /api/auth/login", http.HandlerFunc(authH.Login))
	route("POST /api/auth/logout", authed(authH.Logout))
	route("GET /api/auth/verify", authed(authH.Verify))

	route("GET /api/users", admin(adminH.ListUsers))
	route("POST /api/users", admin(adminH.CreateUser))
	route("DELETE /api/users/{username}", admin(adminH.DeleteUser))

	route("GET /api/zones", authed(zoneH.List))
	route("POST /api/zones", authed(zoneH.Create))
	route("GET /api/zones/{file}/records", authed(recH.List))
	route("POST /api/zones/{file}/records", authed(recH.Create))
	route("PUT /api/zones/{file}/records", authed(recH.Update))
	route("DELETE /api/zones/{file}/records", authed(recH.Delete))

	route("POST /api/reload/{zone}", authed(recH.Reload))
	route("POST /api/restart", admin(recH.Restart))
	route("POST /api/validate/zone/{zone}", admin(recH.Validate))

	route("GET /api/logs", authed(logH.List))
	route("GET /api/logs/zone/{zone}", authed(logH.Zone))

	route("GET /api/health", handler.Health(d.Store, d.Version))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"Endpoint not found"}` + "\n"))
	})

	return recoverer(d.Log, mux)
}

func recoverer(log *logrus.Entry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.WithFields(logrus.Fields{"panic": v, "path": r.URL.Path}).Error("handler panicked")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"success":false,"error":"Internal server error"}` + "\n"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Bootstrapper is the part of the store the first-run setup touches.
type Bootstrapper interface {
	HasUsers() (bool, error)
	CreateUser(username, password, role string) error
}

// Bootstrap creates the main admin account on an empty database when a
// default password is configured.
func Bootstrap(db Bootstrapper, cfg *config.Config, log *logrus.Entry) error {
	has, err := db.HasUsers()
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if has {
		return nil
	}
	if cfg.Auth.DefaultAdminPassword == "" {
		log.Warn("no users exist and auth.default_admin_password is not set; nobody can log in")
		return nil
	}
	if err := db.CreateUser(users.MainAdmin, cfg.Auth.DefaultAdminPassword, model.RoleAdmin); err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}
	log.WithField("username", users.MainAdmin).Info("created default admin user")
	return nil
}

func Start(cfg *config.Config, version string, logger *logrus.Logger) error {
	log := logrus.NewEntry(logger)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.DSN, migrations.FS(), log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := Bootstrap(db, cfg, log); err != nil {
		return err
	}

	secret := cfg.Auth.TokenSecret
	if secret == "" {
		if secret, err = db.EnsureTokenSecret(); err != nil {
			return fmt.Errorf("failed to init token secret: %w", err)
		}
	}
	tokens := auth.NewTokenManager(secret, cfg.Auth.TTL())

	backend, err := service.NewRoute53Backend(ctx, cfg, db, log)
	if err != nil {
		return fmt.Errorf("failed to init DNS service: %w", err)
	}

	var directory handler.Directory
	if cfg.LDAP.Enabled {
		directory = auth.NewLDAPClient(cfg.LDAP)
		log.WithFields(logrus.Fields{
			"url":    cfg.LDAP.URL,
			"groups": len(cfg.LDAP.GroupMapping),
		}).Info("LDAP authentication enabled")
	}

	go purgeRevoked(ctx, db, log)

	srv := &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: NewRouter(Deps{
			Store:   db,
			Backend: backend,
			Tokens:  tokens,
			LDAP:    directory,
			Version: version,
			Log:     log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("dnsmanager API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func purgeRevoked(ctx context.Context, db *database.DB, log *logrus.Entry) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		if err := db.PurgeExpiredTokens(); err != nil {
			log.WithError(err).Warn("failed to purge revoked tokens")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
