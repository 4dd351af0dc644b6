package app

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/ability/acl"
	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/authz"
	"github.com/timgst1/adminguard/internal/httpapi"
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/policy"
	"github.com/timgst1/adminguard/internal/store"
	"github.com/timgst1/adminguard/internal/store/sqlite"
)

// App is the wired admin service.
type App struct {
	Config   Config
	Log      *slog.Logger
	DB       *sql.DB
	Models   *model.Registry
	Records  *store.Records
	Policy   *policy.Manager
	Provider *ability.Provider
	Builder  *authz.Builder
	Handler  http.Handler
}

// Build opens storage, discovers the configured models and loads the policy
// once. The policy watcher is not started; see Start.
func Build(cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return nil, oops.Code("STORAGE_OPEN_FAILED").With("path", cfg.Storage.Path).Wrap(err)
	}
	a := &App{Config: cfg, Log: log, DB: db}

	if err := a.build(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.Config

	if cfg.Storage.SchemaFile != "" {
		if err := sqlite.MigrateFile(a.DB, cfg.Storage.SchemaFile); err != nil {
			return oops.Code("MIGRATION_FAILED").With("file", cfg.Storage.SchemaFile).Wrap(err)
		}
	}

	models, err := BuildModels(a.DB, cfg.Models)
	if err != nil {
		return err
	}
	if len(cfg.Models) == 0 {
		a.Log.Warn("no models configured")
	}
	a.Models = models
	a.Records = store.NewRecords(a.DB)

	a.Policy = policy.NewManager(cfg.Policy.File, policy.Options{
		Debounce: cfg.Policy.Debounce,
		Interval: cfg.Policy.Interval,
		Logger:   a.Log,
	})
	if err := a.Policy.Load(); err != nil {
		return oops.Code("POLICY_INVALID").With("file", cfg.Policy.File).Wrap(err)
	}
	a.Provider = ability.NewProvider(a.Policy)

	abilities := ability.Registry{ability.DefaultName: a.Provider.New}
	if cfg.Ability.ACLModel != "" {
		e, err := acl.New(cfg.Ability.ACLModel, cfg.Ability.ACLPolicy)
		if err != nil {
			return err
		}
		abilities[acl.ClassName] = e.New
	}

	methods := authn.DefaultMethods()
	a.Builder = &authz.Builder{
		Abilities:         abilities,
		AbilityClass:      cfg.Ability.Class,
		Methods:           methods,
		CurrentUserMethod: cfg.Auth.CurrentUserMethod,
		Logger:            a.Log,
	}

	var authenticator authn.Authenticator = authn.Noop{}
	if cfg.Auth.TokenFile != "" {
		b, err := authn.NewBearerFromFile(cfg.Auth.TokenFile)
		if err != nil {
			return oops.Code("CONFIG_INVALID").With("key", "auth.token_file").Wrap(err)
		}
		authenticator = b
	}

	a.Handler = httpapi.NewRouter(httpapi.Deps{
		Records:       a.Records,
		Models:        a.Models,
		Widgets:       cfg.Widgets,
		Authenticator: authenticator,
		Authorizer:    a.Builder,
		Logger:        a.Log,
		Ready: func() bool {
			_, ok := a.Policy.Current()
			return ok
		},
	})
	return nil
}

// BuildModels describes every configured table and registers it.
func BuildModels(db *sql.DB, cfgs []ModelConfig) (*model.Registry, error) {
	descs := make([]*model.Descriptor, 0, len(cfgs))
	for _, mc := range cfgs {
		info, err := sqlite.DescribeTable(db, mc.Table)
		if err != nil {
			return nil, oops.Code("MODEL_INVALID").With("model", mc.Name).With("table", mc.Table).Wrap(err)
		}
		pk := mc.PrimaryKey
		if pk == "" {
			pk = info.PrimaryKey
		}
		m := &model.Model{Name: mc.Name, Table: mc.Table, PrimaryKey: pk, Columns: info.Columns}
		if pk == "" || !m.HasColumn(pk) {
			return nil, oops.Code("MODEL_INVALID").With("model", mc.Name).With("primary_key", pk).Errorf("primary key not found")
		}
		d := model.NewDescriptor(m)
		if mc.Label != "" {
			d.Label = mc.Label
		}
		descs = append(descs, d)
	}
	return model.NewRegistry(descs...)
}

// Start begins watching the policy file until ctx is done.
func (a *App) Start(ctx context.Context) error {
	return a.Policy.Start(ctx)
}

func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:         a.Config.HTTP.Addr,
		Handler:      a.Handler,
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
		WriteTimeout: a.Config.HTTP.WriteTimeout,
	}
}

func (a *App) Close() error {
	return a.DB.Close()
}
