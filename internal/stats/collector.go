package stats

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

// RuntimeStats holds the samples taken during an export run.
type RuntimeStats struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalElapsed time.Duration
	Samples      []Sample
	Summary      Summary
}

type Sample struct {
	Elapsed time.Duration

	HeapAlloc    uint64
	Sys          uint64
	ProcessRSS   uint64
	NumGC        uint32
	CPUPercent   float64
	NumGoroutine int

	// progress counters at sample time
	Tiles int64
	Cells int64
}

type Summary struct {
	PeakHeapAlloc  uint64
	PeakSys        uint64
	PeakProcessRSS uint64
	PeakCPUPercent float64
	AvgCPUPercent  float64
	PeakGoroutines int
	TotalGCCycles  uint32

	Tiles          int64
	Cells          int64
	CellsPerSecond float64

	SampleCount    int
	SampleInterval time.Duration
}

// Collector samples process statistics on an interval while export workers
// report their progress through AddTile.
type Collector struct {
	mu       sync.Mutex
	stats    RuntimeStats
	stopChan chan struct{}
	doneChan chan struct{}
	interval time.Duration
	proc     *process.Process

	tiles atomic.Int64
	cells atomic.Int64
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}

	return &Collector{
		stats: RuntimeStats{
			Samples: make([]Sample, 0, 256),
		},
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		proc:     proc,
	}, nil
}

func (c *Collector) Start() {
	c.stats.StartTime = time.Now()
	go c.collect()
}

// AddTile records a finished tile and the number of cells it produced. It is
// safe to call from several goroutines.
func (c *Collector) AddTile(cells int) {
	c.tiles.Add(1)
	c.cells.Add(int64(cells))
}

func (c *Collector) collect() {
	defer close(c.doneChan)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-c.stopChan:
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	point := Sample{
		Elapsed:      time.Since(c.stats.StartTime),
		HeapAlloc:    memStats.HeapAlloc,
		Sys:          memStats.Sys,
		NumGC:        memStats.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
		Tiles:        c.tiles.Load(),
		Cells:        c.cells.Load(),
	}
	if memInfo, err := c.proc.MemoryInfo(); err == nil && memInfo != nil {
		point.ProcessRSS = memInfo.RSS
	}
	if cpuPercent, err := c.proc.CPUPercent(); err == nil {
		point.CPUPercent = cpuPercent
	}

	c.mu.Lock()
	c.stats.Samples = append(c.stats.Samples, point)
	c.mu.Unlock()
}

// Stop ends sampling and returns the collected statistics.
func (c *Collector) Stop() RuntimeStats {
	close(c.stopChan)
	<-c.doneChan

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.EndTime = time.Now()
	c.stats.TotalElapsed = c.stats.EndTime.Sub(c.stats.StartTime)
	c.stats.Summary = summarize(c.stats.Samples, c.interval)
	c.stats.Summary.Tiles = c.tiles.Load()
	c.stats.Summary.Cells = c.cells.Load()
	if secs := c.stats.TotalElapsed.Seconds(); secs > 0 {
		c.stats.Summary.CellsPerSecond = float64(c.stats.Summary.Cells) / secs
	}

	return c.stats
}

func summarize(samples []Sample, interval time.Duration) Summary {
	s := Summary{
		SampleCount:    len(samples),
		SampleInterval: interval,
	}
	if len(samples) == 0 {
		return s
	}

	var totalCPU float64
	for _, p := range samples {
		s.PeakHeapAlloc = max(s.PeakHeapAlloc, p.HeapAlloc)
		s.PeakSys = max(s.PeakSys, p.Sys)
		s.PeakProcessRSS = max(s.PeakProcessRSS, p.ProcessRSS)
		s.PeakCPUPercent = max(s.PeakCPUPercent, p.CPUPercent)
		s.PeakGoroutines = max(s.PeakGoroutines, p.NumGoroutine)
		s.TotalGCCycles = max(s.TotalGCCycles, p.NumGC)
		totalCPU += p.CPUPercent
	}
	s.AvgCPUPercent = totalCPU / float64(len(samples))

	return s
}

const maxReportSamples = 100

// Report renders the statistics as a plain text table.
func (stats *RuntimeStats) Report() string {
	var sb strings.Builder
	line := strings.Repeat("-", 80) + "\n"

	sb.WriteString("EXPORT STATISTICS\n")
	sb.WriteString(line)
	fmt.Fprintf(&sb, "  Start Time:      %s\n", stats.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "  End Time:        %s\n", stats.EndTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "  Total Duration:  %s\n", stats.TotalElapsed)
	fmt.Fprintf(&sb, "  Tiles:           %s\n", humanize.Comma(stats.Summary.Tiles))
	fmt.Fprintf(&sb, "  Cells:           %s (%s/s)\n",
		humanize.Comma(stats.Summary.Cells), humanize.CommafWithDigits(stats.Summary.CellsPerSecond, 1))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "  Peak Heap:       %s\n", humanize.IBytes(stats.Summary.PeakHeapAlloc))
	fmt.Fprintf(&sb, "  Peak Sys:        %s\n", humanize.IBytes(stats.Summary.PeakSys))
	fmt.Fprintf(&sb, "  Peak RSS:        %s\n", humanize.IBytes(stats.Summary.PeakProcessRSS))
	fmt.Fprintf(&sb, "  CPU peak/avg:    %.2f%% / %.2f%%\n", stats.Summary.PeakCPUPercent, stats.Summary.AvgCPUPercent)
	fmt.Fprintf(&sb, "  Peak Goroutines: %d\n", stats.Summary.PeakGoroutines)
	fmt.Fprintf(&sb, "  GC Cycles:       %d\n", stats.Summary.TotalGCCycles)
	sb.WriteString("\n")

	samples := stats.Samples
	if len(samples) > maxReportSamples {
		picked := make([]Sample, 0, maxReportSamples)
		step := float64(len(samples)-1) / float64(maxReportSamples-1)
		for i := range maxReportSamples {
			picked = append(picked, samples[int(float64(i)*step)])
		}
		fmt.Fprintf(&sb, "  (Showing %d of %d samples)\n", maxReportSamples, len(samples))
		samples = picked
	}

	fmt.Fprintf(&sb, "%-12s %-12s %-12s %-8s %-10s %-12s\n", "Elapsed", "Heap", "RSS", "CPU %", "Tiles", "Cells")
	sb.WriteString(line)
	for _, p := range samples {
		fmt.Fprintf(&sb, "%-12s %-12s %-12s %-8.1f %-10d %-12d\n",
			p.Elapsed.Round(time.Millisecond),
			humanize.IBytes(p.HeapAlloc),
			humanize.IBytes(p.ProcessRSS),
			p.CPUPercent,
			p.Tiles,
			p.Cells)
	}

	return sb.String()
}

func (stats *RuntimeStats) SaveToFile(filename string) error {
	if err := os.WriteFile(filename, []byte(stats.Report()), 0644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return nil
}
