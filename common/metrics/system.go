package metrics

import (
	"os"
	"runtime"
	"strings"
	"sync"
)

// SystemInfo holds static system information captured once at startup
type SystemInfo struct {
	OS               string `json:"os"`
	OSVersion        string `json:"os_version"`
	Arch             string `json:"arch"`
	Hostname         string `json:"hostname"`
	CPULogical       int    `json:"cpu_logical"`
	TotalMemoryMB    uint64 `json:"total_memory_mb"`
	GoVersion        string `json:"go_version"`
	InContainer      bool   `json:"in_container"`
	ContainerRuntime string `json:"container_runtime,omitempty"`
}

var (
	systemInfo     *SystemInfo
	systemInfoOnce sync.Once
)

// GetSystemInfo returns cached system information (captured once)
func GetSystemInfo() *SystemInfo {
	systemInfoOnce.Do(func() {
		systemInfo = captureSystemInfo()
	})
	return systemInfo
}

func captureSystemInfo() *SystemInfo {
	info := &SystemInfo{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		CPULogical: runtime.NumCPU(),
		GoVersion:  runtime.Version(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	} else {
		info.Hostname = "unknown"
	}

	info.InContainer, info.ContainerRuntime = detectContainer()
	info.OSVersion = getOSVersion()
	info.TotalMemoryMB = getTotalMemory()

	return info
}

// detectContainer checks if running in a container
func detectContainer() (bool, string) {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "docker"
	}
	if _, err := os.Stat("/var/run/secrets/kubernetes.io"); err == nil {
		return true, "kubernetes"
	}

	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") {
			return true, "docker"
		}
		if strings.Contains(content, "kubepods") {
			return true, "kubernetes"
		}
		if strings.Contains(content, "containerd") {
			return true, "containerd"
		}
	}

	return false, ""
}

// getOSVersion returns the OS version string, or the GOOS name when the
// platform gives nothing better
func getOSVersion() string {
	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "PRETTY_NAME=") {
				return strings.Trim(strings.TrimPrefix(line, "PRETTY_NAME="), "\"")
			}
		}
	}
	return runtime.GOOS
}

// getTotalMemory gets total system memory in MB
func getTotalMemory() uint64 {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		var memKB uint64
		for _, ch := range fields[1] {
			if ch < '0' || ch > '9' {
				return 0
			}
			memKB = memKB*10 + uint64(ch-'0')
		}
		return memKB / 1024
	}
	return 0
}
