package utils

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"time"

	"mrecommender/pkg/models"
)

var (
	hostname     string
	hostnameOnce sync.Once
)

// GetHostname returns the cached hostname
func GetHostname() string {
	hostnameOnce.Do(func() {
		hostname = findHostname()
	})
	return hostname
}

func findHostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	if addrs, err := net.LookupHost(name); err == nil && len(addrs) > 0 {
		return fmt.Sprintf("%s/%s", name, addrs[0])
	}
	return name
}

// NewStatusResponse snapshots runtime stats for the admin /status endpoint
func NewStatusResponse(listenAddress string, latencyInjected bool) *models.StatusResponse {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &models.StatusResponse{
		HostString:      GetHostname(),
		TimeString:      fmt.Sprintf("%d", time.Now().UnixMilli()),
		Goroutines:      runtime.NumGoroutine(),
		CPUs:            runtime.NumCPU(),
		AllocatedKB:     m.Alloc / 1024,
		TotalAllocKB:    m.TotalAlloc / 1024,
		GCCycles:        m.NumGC,
		GoroutineInfo:   GetGoroutineInfo().String(),
		ListenAddress:   listenAddress,
		LatencyInjected: latencyInjected,
	}
}
