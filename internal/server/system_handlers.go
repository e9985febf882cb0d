package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves process and host level diagnostics.
type SystemHandlers struct {
	log       zerolog.Logger
	startTime time.Time
}

func NewSystemHandlers(log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		startTime: time.Now(),
	}
}

// SystemInfoResponse is the payload of GET /api/system/info.
type SystemInfoResponse struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	Goroutines    int     `json:"goroutines"`
	GoVersion     string  `json:"go_version"`
	NumCPU        int     `json:"num_cpu"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	ServerTimeUTC string  `json:"server_time_utc"`
}

// HandleSystemInfo returns CPU, memory and process statistics.
// GET /api/system/info
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct, memUsed, memTotal := h.hostStats()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	resp := SystemInfoResponse{
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		CPUPercent:    cpuPct,
		MemoryPercent: memPct,
		MemoryUsedMB:  memUsed,
		MemoryTotalMB: memTotal,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		HeapAllocMB:   float64(ms.HeapAlloc) / 1024 / 1024,
		ServerTimeUTC: time.Now().UTC().Format(time.RFC3339),
	}

	writeJSON(h.log, w, http.StatusOK, resp)
}

// hostStats samples CPU over a short window to keep the endpoint responsive.
func (h *SystemHandlers) hostStats() (cpuPct, memPct, usedMB, totalMB float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPct, 0, 0, 0
	}

	return cpuPct, memStat.UsedPercent,
		float64(memStat.Used) / 1024 / 1024,
		float64(memStat.Total) / 1024 / 1024
}
