package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/cheggaaa/pb/v3/termutil"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"github.com/royalcat/dfcigrid/celltree"
	"github.com/royalcat/dfcigrid/dfci"
	"github.com/royalcat/dfcigrid/gridgen"
	"github.com/royalcat/dfcigrid/internal/stats"
	"github.com/royalcat/dfcigrid/projection"
	"github.com/sourcegraph/conc/pool"
	"github.com/urfave/cli/v3"
)

// tileSize is the edge of the export work units, one level 0 cell.
const tileSize = 100_000

type exportConfig struct {
	Level   dfci.Level
	CRS     string
	Bound   orb.Bound
	Threads int
	Sorted  bool

	Progress bool
	Stats    *stats.Collector
}

func export(ctx *cli.Context) error {
	log := slog.Default()

	threads := ctx.Int("threads")
	if threads == 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	log = log.With("threads", threads)

	if pprofListen := ctx.String("pprof.listen"); pprofListen != "" {
		go func() {
			log.Info("Starting pprof server")
			err := http.ListenAndServe(pprofListen, nil)
			if err != nil {
				log.Error("Error starting pprof server", "error", err)
			}
		}()
	}

	cfg := exportConfig{
		Level:    dfci.Level(ctx.Int("level")),
		CRS:      ctx.String("crs"),
		Bound:    gridgen.ConfigDefault().NativeBound,
		Threads:  threads,
		Sorted:   ctx.Bool("sorted"),
		Progress: true,
	}
	if !cfg.Level.Valid() {
		return fmt.Errorf("%w: %d", dfci.ErrInvalidLevel, cfg.Level)
	}
	if s := ctx.String("bbox"); s != "" {
		b, err := gridgen.ParseBound(s)
		if err != nil {
			return err
		}
		cfg.Bound = b
	}

	statsFile := ctx.String("stats")
	if statsFile != "" {
		collector, err := stats.NewCollector(500 * time.Millisecond)
		if err != nil {
			return err
		}
		collector.Start()
		cfg.Stats = collector
	}

	adapter, err := projection.New(projection.WithLogger(log))
	if err != nil {
		return err
	}

	output := ctx.String("output")
	fmt.Printf("Exporting level %d to %s\n", cfg.Level, output)

	n, err := exportToFile(ctx.Context, adapter, cfg, output)
	if err != nil {
		return err
	}

	if cfg.Stats != nil {
		runStats := cfg.Stats.Stop()
		if err := runStats.SaveToFile(statsFile); err != nil {
			return err
		}
	}

	stat, err := os.Stat(output)
	if err != nil {
		return err
	}
	fmt.Printf("Complete: %s cells, %s\n", humanize.Comma(int64(n)), humanize.Bytes(uint64(stat.Size())))

	return nil
}

func exportToFile(ctx context.Context, adapter *projection.Adapter, cfg exportConfig, name string) (int, error) {
	file, err := os.Create(name)
	if err != nil {
		return 0, fmt.Errorf("can`t create output file: %w", err)
	}
	defer file.Close()

	var w io.Writer = file
	var enc *zstd.Encoder
	if strings.HasSuffix(name, ".zst") {
		enc, err = zstd.NewWriter(file)
		if err != nil {
			return 0, fmt.Errorf("can`t create zstd writer: %w", err)
		}
		w = enc
	}

	n, err := exportGrid(ctx, adapter, cfg, w)
	if err != nil {
		if enc != nil {
			enc.Close()
		}
		return 0, err
	}

	if enc != nil {
		if err := enc.Close(); err != nil {
			return 0, fmt.Errorf("failed to finish zstd stream: %w", err)
		}
	}
	return n, file.Close()
}

// exportGrid generates every cell of cfg.Level inside cfg.Bound and writes
// them to w as one feature collection. Work is split in tiles aligned on
// level 0 cells so neighbouring tiles never share a cell.
func exportGrid(ctx context.Context, adapter *projection.Adapter, cfg exportConfig, w io.Writer) (int, error) {
	genCfg := gridgen.ConfigDefault()

	tiles := []orb.Bound{cfg.Bound}
	if cfg.Level != dfci.Level0 {
		tiles = splitTiles(cfg.Bound, tileSize)
	}

	threads := max(cfg.Threads, 1)
	// generators are not safe for concurrent use, each worker takes its own
	generators := make(chan *gridgen.Generator, threads)
	for range threads {
		g, err := gridgen.New(adapter, genCfg)
		if err != nil {
			return 0, err
		}
		generators <- g
	}

	bar := newProgressBar(len(tiles), cfg.Progress)
	resolution := genCfg.ResolutionForLevel(cfg.Level)
	results := make([][]gridgen.GridCell, len(tiles))

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(threads).WithCancelOnError()
	for i, tile := range tiles {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			g := <-generators
			defer func() { generators <- g }()

			cells, err := tileCells(g, adapter, tile, resolution, cfg.CRS)
			if err != nil {
				return fmt.Errorf("tile %v: %w", tile, err)
			}
			results[i] = cells

			if cfg.Stats != nil {
				cfg.Stats.AddTile(len(cells))
			}
			bar.Increment()
			return nil
		})
	}
	err := p.Wait()
	bar.Finish()
	if err != nil {
		return 0, err
	}

	var all []gridgen.GridCell
	for _, cells := range results {
		all = append(all, cells...)
	}
	if cfg.Sorted {
		all = sortByCode(all)
	}

	data, err := gridgen.FeatureCollection(all).MarshalJSON()
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	return len(all), nil
}

// tileCells generates in native units so the tile edges stay exact, then
// reprojects. The level 0 set ignores the extent and is filtered here.
func tileCells(g *gridgen.Generator, adapter *projection.Adapter, tile orb.Bound, resolution float64, crs string) ([]gridgen.GridCell, error) {
	cells, err := g.Generate(tile, resolution, projection.NativeCRS)
	if err != nil {
		return nil, err
	}

	out := make([]gridgen.GridCell, 0, len(cells))
	for _, c := range cells {
		if c.Level == dfci.Level0 && !overlaps(c.Polygon.Bound(), tile) {
			continue
		}
		ring, err := adapter.TransformRing(c.Polygon[0], projection.NativeCRS, crs)
		if err != nil {
			return nil, err
		}
		out = append(out, gridgen.GridCell{ID: c.ID, Level: c.Level, Polygon: orb.Polygon{ring}})
	}
	return out, nil
}

func sortByCode(cells []gridgen.GridCell) []gridgen.GridCell {
	index := celltree.New[gridgen.GridCell]()
	for _, c := range cells {
		index.Insert(string(c.ID), c, c.Polygon)
	}

	out := make([]gridgen.GridCell, 0, index.Len())
	index.Ascend(func(_ string, c gridgen.GridCell) bool {
		out = append(out, c)
		return true
	})
	return out
}

func overlaps(a, b orb.Bound) bool {
	return a.Min[0] < b.Max[0] && b.Min[0] < a.Max[0] &&
		a.Min[1] < b.Max[1] && b.Min[1] < a.Max[1]
}

func splitTiles(b orb.Bound, size float64) []orb.Bound {
	var tiles []orb.Bound
	for x := math.Floor(b.Min[0]/size) * size; x < b.Max[0]; x += size {
		for y := math.Floor(b.Min[1]/size) * size; y < b.Max[1]; y += size {
			tiles = append(tiles, orb.Bound{
				Min: orb.Point{max(x, b.Min[0]), max(y, b.Min[1])},
				Max: orb.Point{min(x+size, b.Max[0]), min(y+size, b.Max[1])},
			})
		}
	}
	return tiles
}

func newProgressBar(total int, visible bool) *pb.ProgressBar {
	bar := pb.New(total)
	bar.Set("prefix", "generating tiles")
	bar.SetRefreshRate(time.Second)
	if !visible {
		bar.SetWriter(io.Discard)
	}
	if w, err := termutil.TerminalWidth(); w == 0 || err != nil {
		bar.SetTemplateString(`{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }} {{rtime . "ETA %s"}}` + "\n")
	}
	return bar.Start()
}
