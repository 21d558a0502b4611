package stats

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c, err := NewCollector(5 * time.Millisecond)
	require.NoError(t, err)
	c.Start()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				c.AddTile(25)
			}
		}()
	}
	wg.Wait()
	time.Sleep(20 * time.Millisecond)

	stats := c.Stop()
	require.Equal(t, int64(40), stats.Summary.Tiles)
	require.Equal(t, int64(1000), stats.Summary.Cells)
	require.GreaterOrEqual(t, stats.Summary.SampleCount, 2)
	require.Equal(t, len(stats.Samples), stats.Summary.SampleCount)
	require.Positive(t, stats.Summary.PeakHeapAlloc)
	require.Equal(t, int64(1000), stats.Samples[len(stats.Samples)-1].Cells)

	file := filepath.Join(t.TempDir(), "stats.txt")
	require.NoError(t, stats.SaveToFile(file))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), "Cells:           1,000")
}

func TestSummarizeEmpty(t *testing.T) {
	s := summarize(nil, time.Second)
	require.Zero(t, s.SampleCount)
	require.Zero(t, s.AvgCPUPercent)
}
