package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Read host health for telemetry: CPU temperature,
 *		load, memory and disk in use, uptime.
 *
 * Description:	Each reading is independent.  One that fails is
 *		logged and reported as 0; the others still go out.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"
)

const (
	bytesPerMB = 1024 * 1024
	bytesPerGB = 1024 * 1024 * 1024
)

// HostSensors reads the local machine through gopsutil.
type HostSensors struct {
	ThermalSensor string // sensor key prefix, e.g. cpu_thermal
	DiskPath      string
	Logger        *log.Logger
}

// Collect takes one reading of everything.
func (h *HostSensors) Collect(ctx context.Context) TelemetrySample {
	var s TelemetrySample

	if t, err := h.cpuTemperature(ctx); err != nil {
		h.Logger.Warn("CPU temperature unavailable", "err", err)
	} else {
		s.CPUTempC = t
	}

	if l, err := cpuLoadPercent(ctx); err != nil {
		h.Logger.Warn("CPU load unavailable", "err", err)
	} else {
		s.CPULoadPct = l
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		h.Logger.Warn("Memory usage unavailable", "err", err)
	} else {
		// Same definition as the original: not free, not buffers, not cache.
		var used = int64(vm.Total) - int64(vm.Free) - int64(vm.Buffers) - int64(vm.Cached)
		s.MemUsedMB = float64(max(used, 0)) / bytesPerMB
	}

	if du, err := disk.UsageWithContext(ctx, h.DiskPath); err != nil {
		h.Logger.Warn("Disk usage unavailable", "path", h.DiskPath, "err", err)
	} else {
		s.DiskUsedGB = float64(du.Used) / bytesPerGB
	}

	return s
}

func (h *HostSensors) cpuTemperature(ctx context.Context) (float64, error) {
	var temps, err = sensors.TemperaturesWithContext(ctx)
	if len(temps) == 0 {
		if err == nil {
			err = fmt.Errorf("no temperature sensors")
		}
		return 0, err
	}

	for _, t := range temps {
		if strings.HasPrefix(t.SensorKey, h.ThermalSensor) {
			return t.Temperature, nil
		}
	}

	return 0, fmt.Errorf("no sensor matching %q", h.ThermalSensor)
}

// 5 minute load average divided by core count, as percent.
func cpuLoadPercent(ctx context.Context) (float64, error) {
	var avg, err = load.AvgWithContext(ctx)
	if err != nil {
		return 0, err
	}

	var cores, cerr = cpu.CountsWithContext(ctx, true)
	if cerr != nil {
		return 0, cerr
	}
	if cores < 1 {
		cores = 1
	}

	return avg.Load5 / float64(cores) * 100, nil
}

// Uptime implements UptimeSource.  0 if unknown.
func (h *HostSensors) Uptime(ctx context.Context) time.Duration {
	var secs, err = host.UptimeWithContext(ctx)
	if err != nil {
		h.Logger.Warn("Uptime unavailable", "err", err)
		return 0
	}
	return time.Duration(secs) * time.Second
}

// OSInfo is e.g. "debian 12.5 [6.6.31+rpt-rpi-v8 aarch64]".
func (h *HostSensors) OSInfo(ctx context.Context) string {
	var info, err = host.InfoWithContext(ctx)
	if err != nil {
		h.Logger.Warn("OS information unavailable", "err", err)
		return ""
	}
	return fmt.Sprintf("%s %s [%s %s]", info.Platform, info.PlatformVersion, info.KernelVersion, info.KernelArch)
}

// BoundedSampler is a TelemetrySource that never waits longer than
// Timeout.  If a collection is too slow the last good sample (or zeros)
// is used instead, and the slow collection is left to finish on its own.
type BoundedSampler struct {
	Collect func(ctx context.Context) TelemetrySample
	Timeout time.Duration
	Logger  *log.Logger

	mu       sync.Mutex
	last     TelemetrySample
	inFlight chan TelemetrySample
}

func (b *BoundedSampler) Telemetry(ctx context.Context) TelemetrySample {
	var timeout = b.Timeout
	if timeout <= 0 {
		timeout = DefaultSensorTimeout
	}

	b.mu.Lock()
	var ch = b.inFlight
	if ch == nil {
		ch = make(chan TelemetrySample, 1)
		b.inFlight = ch

		go func() {
			var cctx, cancel = context.WithTimeout(context.Background(), 4*timeout)
			defer cancel()
			ch <- b.Collect(cctx)
		}()
	}
	b.mu.Unlock()

	var timer = time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s := <-ch:
		b.mu.Lock()
		b.last = s
		b.inFlight = nil
		b.mu.Unlock()
		return s

	case <-timer.C:
		b.Logger.Warn("Sensor read timed out, using last known values", "timeout", timeout)
	case <-ctx.Done():
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
