package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/logging"
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/store"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, ability.ErrAccessDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, errBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logging.Error(log, "admin request failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// decodeObject reads a JSON object. Numbers become int64 when integral.
func decodeObject(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var in map[string]any
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: invalid json body", errBadRequest)
	}
	for k, v := range in {
		in[k] = plainValue(v)
	}
	return in, nil
}

func plainValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = plainValue(x[i])
		}
		return x
	default:
		return v
	}
}

// checkColumns rejects attributes the model does not have.
func checkColumns(m *model.Model, in map[string]any) error {
	for k := range in {
		if !m.HasColumn(k) {
			return fmt.Errorf("%w: unknown attribute: %s", errBadRequest, k)
		}
	}
	return nil
}

// parseID keeps numeric ids numeric so they compare equal to stored values.
func parseID(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}
