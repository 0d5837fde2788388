package carproto

import (
	"encoding/json"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/motor"
)

type wheelState struct {
	Wheel    string  `json:"wheel"`
	Throttle float64 `json:"throttle"`
}

// AttachAdminRoutes adds the debug pages under /debug/ and the prometheus
// endpoint at /metrics.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.Handle("wheels", "current wheel throttle", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		throttle := s.act.Throttle()
		out := make([]wheelState, len(throttle))
		for i, v := range throttle {
			out[i] = wheelState{Wheel: motor.Wheels[i].String(), Throttle: v}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, "failed to encode wheels", http.StatusInternalServerError)
		}
	}))

	debug.HandleSilent("wheels-raw", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(EncodeCommand(s.act.Throttle())))
	}))

	mux.Handle("/metrics", monitoring.Handler())
}
