package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/procfs"

	"github.com/shaiso/gateway-worker/internal/domain"
)

const defaultCPUWindow = time.Second

// Probe снимает метрики хоста по запросу.
type Probe struct {
	fs        procfs.FS
	fsErr     error
	startedAt time.Time
	cpuWindow time.Duration
}

// Option настраивает Probe.
type Option func(*Probe)

// WithCPUWindow задаёт окно измерения загрузки CPU.
func WithCPUWindow(d time.Duration) Option {
	return func(p *Probe) {
		if d > 0 {
			p.cpuWindow = d
		}
	}
}

// WithProcRoot задаёт корень procfs (для тестов и контейнеров с /host/proc).
func WithProcRoot(root string) Option {
	return func(p *Probe) {
		p.fs, p.fsErr = procfs.NewFS(root)
	}
}

// NewProbe создаёт Probe поверх /proc.
func NewProbe(opts ...Option) *Probe {
	p := &Probe{
		startedAt: time.Now(),
		cpuWindow: defaultCPUWindow,
	}
	p.fs, p.fsErr = procfs.NewDefaultFS()

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot возвращает текущие метрики.
//
// Блокируется на окно измерения CPU. Ошибки отдельных источников
// не прерывают сбор: возвращается всё, что удалось прочитать.
func (p *Probe) Snapshot(ctx context.Context) (domain.SystemInfo, error) {
	info := domain.SystemInfo{
		Platform:      runtime.GOOS,
		ServiceUptime: p.uptime().Seconds(),
	}

	if p.fsErr != nil {
		return info, fmt.Errorf("open procfs: %w", p.fsErr)
	}

	var errs []error

	free, err := p.freeMemRatio()
	if err != nil {
		errs = append(errs, err)
	}
	info.FreeMemPercent = free

	cpu, err := p.cpuUsage(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	info.CPUUsage = cpu

	return info, errors.Join(errs...)
}

// uptime — время жизни процесса. Берётся из /proc/self/stat,
// при недоступности — от создания Probe.
func (p *Probe) uptime() time.Duration {
	if p.fsErr == nil {
		if proc, err := p.fs.Self(); err == nil {
			if stat, err := proc.Stat(); err == nil {
				if start, err := stat.StartTime(); err == nil && start > 0 {
					started := time.Unix(0, int64(start*float64(time.Second)))
					if d := time.Since(started); d >= 0 {
						return d
					}
				}
			}
		}
	}
	return time.Since(p.startedAt)
}

// freeMemRatio — доля доступной памяти (0..1).
func (p *Probe) freeMemRatio() (float64, error) {
	mem, err := p.fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("read meminfo: %w", err)
	}
	if mem.MemTotal == nil || *mem.MemTotal == 0 {
		return 0, fmt.Errorf("read meminfo: MemTotal missing")
	}

	var free uint64
	switch {
	case mem.MemAvailable != nil:
		free = *mem.MemAvailable
	case mem.MemFree != nil:
		free = *mem.MemFree
	}

	return float64(free) / float64(*mem.MemTotal), nil
}

// cpuUsage — доля занятого CPU между двумя замерами /proc/stat.
func (p *Probe) cpuUsage(ctx context.Context) (float64, error) {
	before, err := p.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("read stat: %w", err)
	}

	select {
	case <-time.After(p.cpuWindow):
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	after, err := p.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("read stat: %w", err)
	}

	return busyRatio(before.CPUTotal, after.CPUTotal), nil
}

// busyRatio считает долю не-idle времени между двумя замерами.
func busyRatio(before, after procfs.CPUStat) float64 {
	total := cpuTotal(after) - cpuTotal(before)
	if total <= 0 {
		return 0
	}
	idle := (after.Idle + after.Iowait) - (before.Idle + before.Iowait)
	usage := 1 - idle/total
	switch {
	case usage < 0:
		return 0
	case usage > 1:
		return 1
	}
	return usage
}

func cpuTotal(s procfs.CPUStat) float64 {
	return s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal
}
