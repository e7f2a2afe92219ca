package api

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"xyron.node/xyn/internal/types"
)

// @Title: Get Health
// @Route: GET /health
// @Description: Reports authority reachability, heartbeat status and tokenomics. The message is PIP when the authority is reachable and the heartbeat runs, PIP PIP otherwise.
// @Response: {"status": "operational", "components": {...}, "heartbeat": {...}, "tokenomics": {...}, "message": "PIP"}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	authorityUp := s.authority.HealthCheck(r.Context())
	hb := s.heartbeat.Status()
	components, message := types.DetermineStatus(authorityUp, hb.Running)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "operational",
		"timestamp":  time.Now().UnixMilli(),
		"components": components,
		"heartbeat":  hb,
		"tokenomics": s.ledger.Stats(),
		"message":    message,
	})
}

// @Title: Get System Stats
// @Route: GET /stats
// @Description: Returns uptime, memory usage, authority connectivity, heartbeat status and tokenomics
// @Response: {"uptime": 12.5, "memory": {...}, "connections": {"authority": "connected"}, "message": "PIP"}
func (s *Service) HandleStats(w http.ResponseWriter, r *http.Request) {
	authorityUp := s.authority.HealthCheck(r.Context())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	connection, message := "disconnected", types.StatusIdle
	if authorityUp {
		connection, message = "connected", types.StatusActive
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": time.Now().UnixMilli(),
		"uptime":    time.Since(s.started).Seconds(),
		"memory": map[string]uint64{
			"alloc":      mem.Alloc,
			"heapInuse":  mem.HeapInuse,
			"sys":        mem.Sys,
			"numGC":      uint64(mem.NumGC),
			"goroutines": uint64(runtime.NumGoroutine()),
		},
		"connections": map[string]string{"authority": connection},
		"heartbeat":   s.heartbeat.Status(),
		"tokenomics":  s.ledger.Stats(),
		"message":     message,
	})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns the node version and build information
// @Response: {"version": "...", "status": "ok", "hostname": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":    types.Version,
		"build_time": types.BuildTime,
		"status":     "ok",
		"hostname":   hostname,
		"go_ver":     runtime.Version(),
		"os_arch":    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	})
}

// @Title: Get Logs
// @Route: GET /api/logs?n=50
// @Description: Returns the most recent log messages, newest first
// @Response: Array of {"timestamp", "category", "text", "level"}
func (s *Service) HandleLogs(w http.ResponseWriter, r *http.Request) {
	n := 50
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	s.writeJSON(w, http.StatusOK, s.logger.GetRecent(n))
}
