package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/screener/internal/reliability"
)

// SystemHandlers exposes host health and the manual snapshot trigger
type SystemHandlers struct {
	snapshots *reliability.SnapshotService // nil when export is not configured
	startedAt time.Time
}

// NewSystemHandlers creates the system endpoints
func NewSystemHandlers(snapshots *reliability.SnapshotService) *SystemHandlers {
	return &SystemHandlers{
		snapshots: snapshots,
		startedAt: time.Now(),
	}
}

// Status handles GET /api/system/status
func (h *SystemHandlers) Status(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		response["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		response["memory_percent"] = vm.UsedPercent
		response["memory_used_mb"] = vm.Used / 1024 / 1024
	}
	if uptime, err := host.Uptime(); err == nil {
		response["host_uptime_seconds"] = uptime
	}

	writeJSON(w, http.StatusOK, response)
}

// TriggerBackup handles POST /api/system/backup
func (h *SystemHandlers) TriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot export not configured")
		return
	}

	if err := h.snapshots.Export(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "exported"})
}
