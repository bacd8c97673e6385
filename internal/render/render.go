// Package render talks to the external raster tile renderer. The renderer is
// a separate process reached over a line-oriented stdin protocol: one
// `T {json}` line describing the tile, one `L {json}` line describing marker
// style, then a `P [lng,lat]` line per point; the PNG comes back on stdout.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// ErrRenderTimeout marks a renderer invocation that exceeded its deadline.
// The partial output is discarded; a corrupt image is never returned.
var ErrRenderTimeout = eris.New("tile render timeout")

// DefaultTimeout bounds one renderer invocation.
const DefaultTimeout = 5 * time.Second

// TileSpec addresses one slippy-map tile.
type TileSpec struct {
	Zoom int `json:"zoom"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

// LayerStyle describes how markers are painted.
type LayerStyle struct {
	MarkerFill  string  `json:"marker-fill"`
	MarkerWidth float64 `json:"marker-width"`
}

// PointSource yields the markers to paint, one at a time.
// *store.PointCursor satisfies it.
type PointSource interface {
	Next() bool
	Point() (lng, lat float64)
	Err() error
}

// Renderer produces a PNG tile from a tile spec, a style and a point stream.
type Renderer interface {
	RenderTile(ctx context.Context, spec TileSpec, style LayerStyle, points PointSource) ([]byte, error)
}

// CommandRenderer runs the renderer binary once per tile.
type CommandRenderer struct {
	name    string
	args    []string
	timeout time.Duration
}

// NewCommandRenderer builds a renderer invoking the given command. A zero
// timeout falls back to DefaultTimeout.
func NewCommandRenderer(timeout time.Duration, name string, args ...string) *CommandRenderer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandRenderer{name: name, args: args, timeout: timeout}
}

// RenderTile spawns the renderer, streams the protocol lines to its stdin
// while collecting stdout, and returns the PNG bytes. A deadline overrun
// surfaces as ErrRenderTimeout; a nonzero exit is an error, never an empty
// image.
func (r *CommandRenderer) RenderTile(ctx context.Context, spec TileSpec, style LayerStyle, points PointSource) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.name, r.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, eris.Wrap(err, "render: stdin pipe")
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, eris.Wrapf(err, "render: start %s", r.name)
	}

	// The writer runs concurrently with the child so neither side blocks on
	// a full pipe.
	var g errgroup.Group
	g.Go(func() error {
		defer stdin.Close()
		tileJSON, err := json.Marshal(spec)
		if err != nil {
			return eris.Wrap(err, "render: marshal tile")
		}
		layerJSON, err := json.Marshal(style)
		if err != nil {
			return eris.Wrap(err, "render: marshal layer")
		}
		if _, err := fmt.Fprintf(stdin, "T %s\nL %s\n", tileJSON, layerJSON); err != nil {
			return eris.Wrap(err, "render: write header")
		}
		for points.Next() {
			lng, lat := points.Point()
			if _, err := fmt.Fprintf(stdin, "P [%g,%g]\n", lng, lat); err != nil {
				return eris.Wrap(err, "render: write point")
			}
		}
		return points.Err()
	})

	waitErr := cmd.Wait()
	writeErr := g.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, eris.Wrapf(ErrRenderTimeout, "render: %s exceeded %s", r.name, r.timeout)
	}
	if waitErr != nil {
		return nil, eris.Wrapf(waitErr, "render: %s failed: %s", r.name, stderr.String())
	}
	if writeErr != nil {
		return nil, writeErr
	}
	return stdout.Bytes(), nil
}
