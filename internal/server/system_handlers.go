package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aaakaind/letsgetcrypto/internal/database"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if err := s.feedbackDB.HealthCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Feedback database health check failed")
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type dbHealth struct {
	Healthy      bool  `json:"healthy"`
	SizeBytes    int64 `json:"size_bytes"`
	WALSizeBytes int64 `json:"wal_size_bytes"`
	PageCount    int64 `json:"page_count"`
}

// handleSystemHealth handles GET /api/system/health - host and database
// resource snapshot
func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"time":           time.Now().UTC().Format(time.RFC3339),
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		response["cpu_percent"] = percentages[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read CPU usage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		response["memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_mb":      vm.Used / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	} else {
		s.log.Warn().Err(err).Msg("Failed to read memory usage")
	}

	response["databases"] = map[string]dbHealth{
		"feedback": s.databaseHealth(r, s.feedbackDB),
		"cache":    s.databaseHealth(r, s.cacheDB),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) databaseHealth(r *http.Request, db *database.DB) dbHealth {
	health := dbHealth{
		Healthy: db.HealthCheck(r.Context()) == nil,
	}
	if stats, err := db.GetStats(); err == nil {
		health.SizeBytes = stats.SizeBytes
		health.WALSizeBytes = stats.WALSizeBytes
		health.PageCount = stats.PageCount
	}
	return health
}
