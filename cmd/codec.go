package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/royalcat/dfcigrid/dfci"
	"github.com/royalcat/dfcigrid/projection"
	"github.com/urfave/cli/v3"
)

func encode(ctx *cli.Context) error {
	adapter, err := projection.New()
	if err != nil {
		return err
	}

	p, err := adapter.Transform(orb.Point{ctx.Float64("x"), ctx.Float64("y")}, ctx.String("crs"), projection.NativeCRS)
	if err != nil {
		return err
	}

	code, err := dfci.Encode(p, dfci.Level(ctx.Int("level")))
	if err != nil {
		return err
	}

	fmt.Println(code)
	if !dfci.IsValidPoint(p) {
		fmt.Fprintf(os.Stderr, "warning: %v is outside the grid domain\n", p)
	}
	return nil
}

func decode(ctx *cli.Context) error {
	code, err := dfci.Parse(ctx.Args().First())
	if err != nil {
		return err
	}

	adapter, err := projection.New()
	if err != nil {
		return err
	}

	return describeCode(os.Stdout, adapter, code, ctx.String("crs"), ctx.Bool("wkt"))
}

// describeCode prints the center of code and of every enclosing cell, and
// optionally the cell polygon, in crs.
func describeCode(w io.Writer, adapter *projection.Adapter, code dfci.Code, crs string, withWKT bool) error {
	chain := []dfci.Code{code}
	for c, ok := code.Parent(); ok; c, ok = c.Parent() {
		chain = append(chain, c)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		c := chain[i]
		center, err := dfci.Decode(c)
		if err != nil {
			return err
		}
		center, err = adapter.Transform(center, projection.NativeCRS, crs)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-9s level %d  center %s %s\n", c, c.Level(),
			strconv.FormatFloat(center[0], 'f', -1, 64), strconv.FormatFloat(center[1], 'f', -1, 64))
	}

	if !withWKT {
		return nil
	}

	polygon, err := dfci.CellPolygon(code)
	if err != nil {
		return err
	}
	ring, err := adapter.TransformRing(polygon[0], projection.NativeCRS, crs)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, wkt.MarshalString(orb.Polygon{ring}))
	return nil
}
