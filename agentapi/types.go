package agentapi

import (
	"fmt"
	nethttp "net/http"
)

// Heartbeat status values
const (
	StatusOnline  = "online"
	StatusWarning = "warning"
)

// warnPercent is the resource usage above which a heartbeat reports StatusWarning.
const warnPercent = 90

// Metrics is the resource snapshot carried by a heartbeat.
type Metrics struct {
	CPUPercent      float64 `json:"cpuPercent"`
	RAMPercent      float64 `json:"ramPercent"`
	RAMUsedMB       uint64  `json:"ramUsedMb"`
	DiskPercent     float64 `json:"diskPercent"`
	DiskUsedGB      float64 `json:"diskUsedGb"`
	NetworkInBytes  uint64  `json:"networkInBytes,omitempty"`
	NetworkOutBytes uint64  `json:"networkOutBytes,omitempty"`
	ProcessCount    int     `json:"processCount,omitempty"`
}

// Heartbeat is the periodic liveness report.
type Heartbeat struct {
	Metrics       *Metrics `json:"metrics"`
	Status        string   `json:"status"`
	AgentVersion  string   `json:"agentVersion"`
	PendingReboot bool     `json:"pendingReboot,omitempty"`
	LastUser      string   `json:"lastUser,omitempty"`
}

// NewHeartbeat builds a heartbeat whose status is derived from m.
func NewHeartbeat(version string, m *Metrics) *Heartbeat {
	status := StatusOnline
	if m != nil && (m.CPUPercent > warnPercent || m.RAMPercent > warnPercent || m.DiskPercent > warnPercent) {
		status = StatusWarning
	}
	return &Heartbeat{Metrics: m, Status: status, AgentVersion: version}
}

// HeartbeatResponse carries work queued for the agent.
type HeartbeatResponse struct {
	Commands     []Command      `json:"commands"`
	ConfigUpdate map[string]any `json:"configUpdate,omitempty"`
	UpgradeTo    string         `json:"upgradeTo,omitempty"`
}

// Command is a unit of work queued by the control plane.
type Command struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// CommandResult is reported back after a command ran.
type CommandResult struct {
	Status     string `json:"status"` // completed, failed, timeout
	ExitCode   int    `json:"exitCode,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// StatusError is returned when the control plane answers with a final non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: control plane returned %d %s", e.Op, e.StatusCode, nethttp.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: control plane returned %d %s: %s", e.Op, e.StatusCode, nethttp.StatusText(e.StatusCode), e.Body)
}
