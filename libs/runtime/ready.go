package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewBaseMuxWithReady returns a mux serving /healthz (liveness) and /readyz, which runs every
// check with its own two second budget and reports 503 when any of them fails.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeReady(w, http.StatusOK, readyResponse{Status: "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		resp := readyResponse{Status: "ok", Checks: map[string]string{}}
		code := http.StatusOK
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			name := check.Name
			if name == "" {
				name = "dependency"
			}
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		writeReady(w, code, resp)
	})
	return mux
}

func writeReady(w http.ResponseWriter, code int, resp readyResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
