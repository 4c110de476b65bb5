package sysinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProc(t *testing.T, loadavg, meminfo string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loadavg"), []byte(loadavg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meminfo"), []byte(meminfo), 0o644))
	return dir
}

func TestReader_Read(t *testing.T) {
	proc := fakeProc(t,
		"0.50 0.40 0.30 1/123 4567\n",
		"MemTotal:        8388608 kB\nMemFree:         1048576 kB\nMemAvailable:    2097152 kB\n",
	)
	r := &Reader{procRoot: proc, diskPath: t.TempDir()}

	m, err := r.Read()
	require.NoError(t, err)

	assert.Equal(t, 0.5, m.Load1)
	assert.Equal(t, 0.3, m.Load15)
	assert.Equal(t, 8.0, m.MemoryTotalGB)
	assert.Equal(t, 2.0, m.MemoryFreeGB)
	assert.Equal(t, 6.0, m.MemoryUsedGB)
	assert.Equal(t, 75.0, m.MemoryUsage)
	assert.Greater(t, m.DiskTotalGB, 0.0)
	assert.Greater(t, m.Goroutines, 0)
	assert.LessOrEqual(t, m.CPUUsage, 100.0)
}

func TestReader_PartialFailure(t *testing.T) {
	r := &Reader{procRoot: t.TempDir(), diskPath: t.TempDir()}

	m, err := r.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loadavg")
	assert.Contains(t, err.Error(), "meminfo")
	assert.Greater(t, m.CPUCount, 0)
	assert.Greater(t, m.DiskTotalGB, 0.0)
}
