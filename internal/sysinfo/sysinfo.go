// Package sysinfo reads host resource usage for the dashboard.
package sysinfo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

const gb = 1024 * 1024 * 1024

// Metrics is a snapshot of host resources
type Metrics struct {
	CPUCount        int     `json:"cpu_count"`
	CPUUsage        float64 `json:"cpu_usage"`
	Load1           float64 `json:"load_1"`
	Load5           float64 `json:"load_5"`
	Load15          float64 `json:"load_15"`
	MemoryTotalGB   float64 `json:"memory_total_gb"`
	MemoryUsedGB    float64 `json:"memory_used_gb"`
	MemoryFreeGB    float64 `json:"memory_free_gb"`
	MemoryUsage     float64 `json:"memory_usage"`
	DiskTotalGB     float64 `json:"disk_total_gb"`
	DiskUsedGB      float64 `json:"disk_used_gb"`
	DiskAvailableGB float64 `json:"disk_available_gb"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
	Goroutines      int     `json:"goroutines"`
}

// Reader collects Metrics from a proc filesystem and a mounted path
type Reader struct {
	procRoot string
	diskPath string
}

// NewReader reads /proc and the filesystem holding diskPath
func NewReader(diskPath string) *Reader {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Reader{procRoot: "/proc", diskPath: diskPath}
}

// Read returns the current metrics. Sections that cannot be read (non-Linux
// hosts have no /proc) are left at zero and reported in the error.
func (r *Reader) Read() (Metrics, error) {
	m := Metrics{
		CPUCount:   runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
	}

	var errs []string
	if err := r.readLoad(&m); err != nil {
		errs = append(errs, err.Error())
	}
	if err := r.readMemory(&m); err != nil {
		errs = append(errs, err.Error())
	}
	if err := r.readDisk(&m); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return m, fmt.Errorf("partial system metrics: %s", strings.Join(errs, "; "))
	}
	return m, nil
}

// readLoad reads /proc/loadavg and derives a CPU usage percentage from the
// one-minute load per core
func (r *Reader) readLoad(m *Metrics) error {
	data, err := os.ReadFile(filepath.Join(r.procRoot, "loadavg"))
	if err != nil {
		return fmt.Errorf("failed to read loadavg: %w", err)
	}

	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return fmt.Errorf("unexpected loadavg format")
	}

	loads := make([]float64, 3)
	for i := range loads {
		if loads[i], err = strconv.ParseFloat(fields[i], 64); err != nil {
			return fmt.Errorf("failed to parse loadavg: %w", err)
		}
	}
	m.Load1, m.Load5, m.Load15 = loads[0], loads[1], loads[2]

	if m.CPUCount > 0 {
		m.CPUUsage = round(min(100, m.Load1/float64(m.CPUCount)*100))
	}
	return nil
}

// readMemory reads memory information from /proc/meminfo
func (r *Reader) readMemory(m *Metrics) error {
	file, err := os.Open(filepath.Join(r.procRoot, "meminfo"))
	if err != nil {
		return fmt.Errorf("failed to open meminfo: %w", err)
	}
	defer file.Close()

	var memTotal, memAvailable float64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			memTotal = value / (1024 * 1024) // KB to GB
		case strings.HasPrefix(line, "MemAvailable:"):
			memAvailable = value / (1024 * 1024) // KB to GB
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading meminfo: %w", err)
	}

	m.MemoryTotalGB = round(memTotal)
	m.MemoryFreeGB = round(memAvailable)
	m.MemoryUsedGB = round(memTotal - memAvailable)
	if memTotal > 0 {
		m.MemoryUsage = round((memTotal - memAvailable) / memTotal * 100)
	}
	return nil
}

func (r *Reader) readDisk(m *Metrics) error {
	var st syscall.Statfs_t
	if err := syscall.Statfs(r.diskPath, &st); err != nil {
		return fmt.Errorf("failed to stat %s: %w", r.diskPath, err)
	}

	total := float64(st.Blocks) * float64(st.Bsize)
	available := float64(st.Bavail) * float64(st.Bsize)
	used := total - float64(st.Bfree)*float64(st.Bsize)

	m.DiskTotalGB = round(total / gb)
	m.DiskAvailableGB = round(available / gb)
	m.DiskUsedGB = round(used / gb)
	if total > 0 {
		m.DiskUsedPercent = round(used / total * 100)
	}
	return nil
}

func round(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
