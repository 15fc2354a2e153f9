package models

// FixedResponseBody is the payload the mock recommender returns for every POST:
// a one element JSON array holding the show id 12345.
const FixedResponseBody = "[12345]"

// StatusResponse represents the body of the admin /status endpoint
type StatusResponse struct {
	HostString      string `json:"hostString"`
	TimeString      string `json:"timeString"`
	Goroutines      int    `json:"goroutines"`
	CPUs            int    `json:"cpus"`
	AllocatedKB     uint64 `json:"allocatedKb"`
	TotalAllocKB    uint64 `json:"totalAllocKb"`
	GCCycles        uint32 `json:"gcCycles"`
	GoroutineInfo   string `json:"goroutineInfo"`
	ListenAddress   string `json:"listenAddress"`
	LatencyInjected bool   `json:"latencyInjected"`
}
