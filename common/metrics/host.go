package metrics

import (
	"os"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var hostInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "teststate",
		Name:      "host_info",
		Help:      "Static information about the host serving tenant state (always 1).",
	}, []string{"hostname", "os", "arch", "go_version", "container"},
)

// HostInfo describes where the process is running
type HostInfo struct {
	Hostname   string
	OS         string
	Arch       string
	CPULogical int
	GoVersion  string
	Container  string // "" when not containerised
}

// CaptureHostInfo gathers host information
func CaptureHostInfo() HostInfo {
	info := HostInfo{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		CPULogical: runtime.NumCPU(),
		GoVersion:  runtime.Version(),
		Container:  detectContainer(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	} else {
		info.Hostname = "unknown"
	}

	return info
}

func recordHostInfo() {
	info := CaptureHostInfo()
	container := info.Container
	if container == "" {
		container = "none"
	}
	hostInfo.WithLabelValues(info.Hostname, info.OS, info.Arch, info.GoVersion, container).Set(1)
}

// detectContainer checks if running in a container
func detectContainer() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "docker"
	}

	if _, err := os.Stat("/var/run/secrets/kubernetes.io"); err == nil {
		return "kubernetes"
	}

	// Check cgroup for container indicators
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		switch {
		case strings.Contains(content, "kubepods"):
			return "kubernetes"
		case strings.Contains(content, "docker"):
			return "docker"
		case strings.Contains(content, "containerd"):
			return "containerd"
		}
	}

	return ""
}
