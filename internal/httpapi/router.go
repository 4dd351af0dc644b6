package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/authz"
	"github.com/timgst1/adminguard/internal/httpapi/handlers"
	"github.com/timgst1/adminguard/internal/httpapi/middleware"
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/store"
)

type Deps struct {
	Records       *store.Records
	Models        *model.Registry
	Widgets       []string
	Authenticator authn.Authenticator
	Authorizer    *authz.Builder
	Logger        *slog.Logger
	// Ready reports readiness, e.g. whether a policy is loaded. nil means ready.
	Ready func() bool
}

func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logging(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil && !deps.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", promhttp.Handler())

	ah := handlers.AdminHandler{
		Records: deps.Records,
		Models:  deps.Models,
		Widgets: deps.Widgets,
		Log:     log,
	}
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Authenticator), middleware.AdminAccess(deps.Authorizer))

		r.Get("/", ah.Dashboard)
		r.Get("/{model}", ah.List)
		r.Post("/{model}", ah.Create)
		r.Get("/{model}/new", ah.New)
		r.Post("/{model}/bulk_delete", ah.BulkDelete)
		r.Get("/{model}/{id}", ah.Show)
		r.Put("/{model}/{id}", ah.Update)
		r.Delete("/{model}/{id}", ah.Destroy)
	})

	return r
}
