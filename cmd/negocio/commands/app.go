package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/gestionnegocio/console/internal/access"
	"github.com/gestionnegocio/console/internal/catalog"
	"github.com/gestionnegocio/console/internal/config"
	"github.com/gestionnegocio/console/internal/credential"
	"github.com/gestionnegocio/console/internal/db"
	"github.com/gestionnegocio/console/internal/gateway"
	"github.com/gestionnegocio/console/internal/logging"
	"github.com/gestionnegocio/console/internal/session"
	"github.com/gestionnegocio/console/pkg/models"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("no hay una sesión activa, ejecuta 'negocio login'")

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	environment string
	apiURL      string
	profileDir  string
	logLevel    string
	ephemeral   bool
}

func (g *globalFlags) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&g.environment, "env", "", "Backend environment (development or production)")
	flags.StringVar(&g.apiURL, "api-url", "", "Backend origin for the selected environment")
	flags.StringVar(&g.profileDir, "profile-dir", "", "Directory holding the stored session and logs")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&g.ephemeral, "ephemeral", false, "Keep the session in memory only")
}

// load reads the configuration and applies the flags on top of it
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.profileDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if g.environment != "" {
		cfg.Environment = g.environment
	}
	if g.apiURL != "" {
		if cfg.IsEnvProduction() {
			cfg.APIURL = g.apiURL
		} else {
			cfg.DevAPIURL = g.apiURL
		}
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app holds the services shared by the commands
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   credential.Store
	gw      *gateway.Gateway
	session *session.Controller
	guard   *access.Guard
	closers []io.Closer
}

// newApp wires configuration, storage, gateway and session. Interactive runs
// log to the profile log file instead of the terminal.
func newApp(g *globalFlags, interactive bool) (*app, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if interactive {
		logger, closer, err := logging.File(cfg.ProfileDir, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		a.logger = logger
		a.closers = append(a.closers, closer)
	} else {
		a.logger = logging.Console(cfg.LogLevel)
	}

	if g.ephemeral {
		a.store = credential.NewMemoryStore()
	} else {
		profileDB, err := db.OpenProfile(cfg.ProfileDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, profileDB)
		a.store = credential.NewDuckDBStore(profileDB)
	}

	a.gw = gateway.New(gateway.Options{
		Environment: cfg.Environment,
		Resolve:     cfg.ResolveBaseOrigin,
		Store:       a.store,
		Timeout:     cfg.HTTPTimeout,
		Logger:      a.logger,
	})
	a.session = session.New(a.store, session.NewGatewayBackend(a.gw), a.logger)
	a.gw.SetInvalidator(a.session)
	a.guard = access.NewGuard(a.session)

	a.logger.Debug().
		Str("environment", cfg.Environment).
		Str("origin", a.gw.BaseOrigin()).
		Bool("ephemeral", g.ephemeral).
		Msg("console started")
	return a, nil
}

// Close releases the profile database and log file
func (a *app) Close() error {
	var errs []error
	for _, c := range slices.Backward(a.closers) {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// identity starts the session from the stored credential and returns the signed-in user
func (a *app) identity(ctx context.Context) (models.Identity, error) {
	if err := a.session.Init(ctx); err != nil {
		return models.Identity{}, err
	}
	identity, ok := a.session.Identity()
	if !ok {
		return models.Identity{}, errNotLoggedIn
	}
	return identity, nil
}

// entity resolves a resource name and checks that the session may open it
func (a *app) entity(name string) (catalog.Entity, error) {
	e, ok := catalog.Lookup(name)
	if !ok {
		return catalog.Entity{}, fmt.Errorf("recurso desconocido %q, ejecuta 'negocio resources'", name)
	}

	switch a.guard.Check(e.Allowed) {
	case access.RenderContent:
		return e, nil
	case access.RedirectToForbidden:
		return catalog.Entity{}, fmt.Errorf("tu rol no tiene acceso a %s", e.Title)
	default:
		return catalog.Entity{}, errNotLoggedIn
	}
}
