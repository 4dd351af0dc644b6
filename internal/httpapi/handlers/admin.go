package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timgst1/adminguard/internal/authz"
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/store"
)

// AdminHandler is a minimal admin engine: generic CRUD over the registered
// models, authorized through the request's adapter.
type AdminHandler struct {
	Records *store.Records
	Models  *model.Registry
	// Widgets are dashboard entries checked as symbolic subjects.
	Widgets []string
	Log     *slog.Logger
}

type recordOut struct {
	Values  map[string]any  `json:"values"`
	Actions map[string]bool `json:"actions,omitempty"`
}

func (h AdminHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// prepare returns the adapter and, when the route has one, the model.
func (h AdminHandler) prepare(w http.ResponseWriter, r *http.Request) (*authz.Adapter, *model.Descriptor, bool) {
	ad, ok := authz.AdapterFromContext(r.Context())
	if !ok {
		http.Error(w, "authorization adapter missing", http.StatusInternalServerError)
		return nil, nil, false
	}
	name := chi.URLParam(r, "model")
	if name == "" {
		return ad, nil, true
	}
	d, ok := h.Models.Lookup(name)
	if !ok {
		http.Error(w, "unknown model", http.StatusNotFound)
		return nil, nil, false
	}
	return ad, d, true
}

func (h AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ad, _, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if err := ad.Authorize(model.ActionDashboard, nil, nil); err != nil {
		writeError(w, h.logger(), err)
		return
	}

	type modelOut struct {
		Name  string `json:"name"`
		Label string `json:"label"`
		Count int64  `json:"count"`
	}
	models := []modelOut{}
	for _, d := range h.Models.All() {
		if !ad.Authorized(model.ActionIndex, d, nil) {
			continue
		}
		sc, err := ad.Query(model.ActionIndex, d)
		if err != nil {
			writeError(w, h.logger(), err)
			return
		}
		n, err := sc.Count(r.Context(), h.Records.DB())
		if err != nil {
			writeError(w, h.logger(), err)
			return
		}
		models = append(models, modelOut{Name: d.Model().Name, Label: d.Label, Count: n})
	}

	widgets := []string{}
	for _, wg := range h.Widgets {
		if ad.Authorized(model.Action(wg), nil, nil) {
			widgets = append(widgets, wg)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"models": models, "widgets": widgets})
}

func (h AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	ad, d, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if err := ad.Authorize(model.ActionIndex, d, nil); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	sc, err := ad.Query(model.ActionIndex, d)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	rows, err := sc.All(r.Context(), h.Records.DB())
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}

	out := make([]recordOut, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordOut{
			Values: row.Values(),
			Actions: map[string]bool{
				string(model.ActionShow):    ad.Authorized(model.ActionShow, d, row),
				string(model.ActionEdit):    ad.Authorized(model.ActionEdit, d, row),
				string(model.ActionDestroy): ad.Authorized(model.ActionDestroy, d, row),
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model":      d.Model().Name,
		"label":      d.Label,
		"records":    out,
		"can_create": ad.Authorized(model.ActionNew, d, nil),
	})
}

func (h AdminHandler) New(w http.ResponseWriter, r *http.Request) {
	ad, d, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if err := ad.Authorize(model.ActionNew, d, nil); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	attrs, err := ad.AttributesFor(model.ActionCreate, d)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"model": d.Model().Name, "attributes": attrs})
}

func (h AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	ad, d, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if err := ad.Authorize(model.ActionCreate, d, nil); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	in, err := decodeObject(r.Body)
	if err == nil {
		err = checkColumns(d.Model(), in)
	}
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}

	values, err := ad.AttributesFor(model.ActionCreate, d)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	if values == nil {
		values = map[string]any{}
	}
	for k, v := range in {
		values[k] = v
	}

	// the record as it would be stored must itself be creatable
	if err := ad.Authorize(model.ActionCreate, d, model.NewRow(d.Model(), values)); err != nil {
		writeError(w, h.logger(), err)
		return
	}

	row, err := h.Records.Insert(r.Context(), d.Model(), values)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusCreated, recordOut{Values: row.Values()})
}

func (h AdminHandler) find(w http.ResponseWriter, r *http.Request, action model.Action) (*authz.Adapter, *model.Descriptor, *model.Row, bool) {
	ad, d, ok := h.prepare(w, r)
	if !ok {
		return nil, nil, nil, false
	}
	row, err := h.Records.Find(r.Context(), d.Model(), parseID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, h.logger(), err)
		return nil, nil, nil, false
	}
	if err := ad.Authorize(action, d, row); err != nil {
		writeError(w, h.logger(), err)
		return nil, nil, nil, false
	}
	return ad, d, row, true
}

func (h AdminHandler) Show(w http.ResponseWriter, r *http.Request) {
	_, _, row, ok := h.find(w, r, model.ActionShow)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recordOut{Values: row.Values()})
}

func (h AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	ad, d, row, ok := h.find(w, r, model.ActionEdit)
	if !ok {
		return
	}
	in, err := decodeObject(r.Body)
	if err == nil {
		err = checkColumns(d.Model(), in)
	}
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	pk := d.Model().PrimaryKey
	for k, v := range in {
		if k == pk {
			continue
		}
		row.Set(k, v)
	}

	// the changed record must still be one the user may update
	if err := ad.Authorize(model.ActionUpdate, d, row); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	if err := h.Records.Update(r.Context(), row); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, recordOut{Values: row.Values()})
}

func (h AdminHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	_, d, row, ok := h.find(w, r, model.ActionDestroy)
	if !ok {
		return
	}
	if err := h.Records.Delete(r.Context(), d.Model(), row.ID()); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h AdminHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	ad, d, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if err := ad.Authorize(model.ActionBulkDelete, d, nil); err != nil {
		writeError(w, h.logger(), err)
		return
	}
	in, err := decodeObject(r.Body)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	ids, ok := in["ids"].([]any)
	if !ok {
		writeError(w, h.logger(), fmt.Errorf("%w: missing field: ids", errBadRequest))
		return
	}

	sc, err := ad.Query(model.ActionDestroy, d)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	n, err := h.Records.DeleteScope(r.Context(), sc.WhereIn(d.Model().PrimaryKey, ids))
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}
