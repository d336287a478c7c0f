// Package view exposes a World over HTTP, so that renderers and camera
// controllers running in another process can follow the terrain around an
// observer.
package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/df-mc/tileworld/server/world"
	"github.com/df-mc/tileworld/server/world/chunk"
	"github.com/df-mc/tileworld/server/world/terrain"
)

var (
	errInvalidCoordinate = errors.New("view: invalid coordinate")
	errInvalidBody       = errors.New("view: invalid request body")
	errNoObserver        = errors.New("view: no observer configured")
	errChunkNotResident  = errors.New("view: chunk not resident")
)

// Handler serves the resident chunks of World and moves Observer on request.
type Handler struct {
	World *world.World
	// Observer is the Loader moved by PUT /observer. If nil, the observer
	// endpoints respond with 404.
	Observer *world.Loader
	Log      *slog.Logger
}

// RegisterRoutes registers all routes of the Handler on s.
func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.GET("/chunks", h.chunks)
	s.GET("/chunks/:x/:y", h.chunk)
	s.GET("/tiles/:x/:y", h.tile)
	s.PUT("/tiles/:x/:y", h.setTile)
	s.DELETE("/tiles/:x/:y", h.clearTile)
	s.GET("/observer", h.observer)
	s.PUT("/observer", h.moveObserver)
	s.GET("/stats", h.stats)
}

type chunkSummary struct {
	X       int32          `json:"x"`
	Y       int32          `json:"y"`
	Tick    int64          `json:"tick"`
	Version string         `json:"version"`
	Counts  map[string]int `json:"counts"`
}

type chunkResponse struct {
	chunkSummary
	Size  int        `json:"size"`
	Tiles [][]string `json:"tiles"`
}

type tileResponse struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Type   string `json:"type"`
	Edited bool   `json:"edited"`
}

type tileRequest struct {
	Type string `json:"type"`
}

type observerRequest struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Radius *int     `json:"radius"`
}

type observerResponse struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius int     `json:"radius"`
	ChunkX int32   `json:"chunk_x"`
	ChunkY int32   `json:"chunk_y"`
}

type statsResponse struct {
	ID        string                `json:"id"`
	Tick      int64                 `json:"tick"`
	TPS       float64               `json:"tps"`
	ChunkSize int                   `json:"chunk_size"`
	Metrics   world.MetricsSnapshot `json:"metrics"`
}

func summarise(c *chunk.Chunk) chunkSummary {
	counts := make(map[string]int)
	for _, t := range terrain.Types() {
		if n := c.Count(t); n > 0 {
			counts[t.String()] = n
		}
	}
	return chunkSummary{
		X:       c.Pos().X(),
		Y:       c.Pos().Y(),
		Tick:    c.Tick(),
		Version: strconv.FormatUint(c.Version(), 16),
		Counts:  counts,
	}
}

func (h Handler) chunks(_ context.Context, ctx *app.RequestContext) {
	out := make([]chunkSummary, 0, h.World.Store().Len())
	for _, c := range h.World.Chunks() {
		out = append(out, summarise(c))
	}
	slices.SortFunc(out, func(a, b chunkSummary) int {
		if a.X != b.X {
			return int(a.X) - int(b.X)
		}
		return int(a.Y) - int(b.Y)
	})
	ctx.JSON(consts.StatusOK, map[string]any{"chunks": out})
}

func (h Handler) chunk(_ context.Context, ctx *app.RequestContext) {
	x, y, err := coordinates(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if x < math.MinInt32 || x > math.MaxInt32 || y < math.MinInt32 || y > math.MaxInt32 {
		writeError(ctx, errInvalidCoordinate)
		return
	}
	c, ok := h.World.Chunk(world.ChunkPos{int32(x), int32(y)})
	if !ok {
		writeError(ctx, errChunkNotResident)
		return
	}
	size := c.Size()
	tiles := make([][]string, size)
	for ly := range size {
		row := make([]string, size)
		for lx := range size {
			row[lx] = c.TileAt(lx, ly).String()
		}
		tiles[ly] = row
	}
	ctx.JSON(consts.StatusOK, chunkResponse{chunkSummary: summarise(c), Size: size, Tiles: tiles})
}

func (h Handler) tile(_ context.Context, ctx *app.RequestContext) {
	pos, err := h.tilePos(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	x, y := pos.X(), pos.Y()
	t, err := h.World.Tile(pos)
	if err != nil {
		h.log().Error("Tile lookup failed.", "X", x, "Y", y, "err", err)
		writeError(ctx, err)
		return
	}
	_, edited := h.World.Edits(chunk.PosOf(pos, h.World.ChunkSize()))[pos]
	ctx.JSON(consts.StatusOK, tileResponse{X: x, Y: y, Type: t.String(), Edited: edited})
}

func (h Handler) setTile(c context.Context, ctx *app.RequestContext) {
	pos, err := h.tilePos(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req tileRequest
	if err := decodeJSON(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	t, err := terrain.ParseType(req.Type)
	if err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := h.World.SetTile(pos, t); err != nil {
		writeError(ctx, err)
		return
	}
	h.tile(c, ctx)
}

func (h Handler) clearTile(c context.Context, ctx *app.RequestContext) {
	pos, err := h.tilePos(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	h.World.ClearTile(pos)
	h.tile(c, ctx)
}

func (h Handler) observer(_ context.Context, ctx *app.RequestContext) {
	if h.Observer == nil {
		writeError(ctx, errNoObserver)
		return
	}
	ctx.JSON(consts.StatusOK, h.observerState())
}

func (h Handler) moveObserver(_ context.Context, ctx *app.RequestContext) {
	if h.Observer == nil {
		writeError(ctx, errNoObserver)
		return
	}
	var req observerRequest
	if err := decodeJSON(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	if req.Radius != nil && (*req.Radius < 0 || *req.Radius > world.MaxRadius) {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", fmt.Sprintf("radius must be in [0, %d]", world.MaxRadius))
		return
	}
	if req.X != nil || req.Y != nil {
		pos := h.Observer.Position()
		if req.X != nil {
			pos[0] = *req.X
		}
		if req.Y != nil {
			pos[1] = *req.Y
		}
		h.Observer.Move(pos)
	}
	if req.Radius != nil {
		h.Observer.ChangeRadius(*req.Radius)
	}
	ctx.JSON(consts.StatusOK, h.observerState())
}

func (h Handler) observerState() observerResponse {
	pos := h.Observer.Position()
	cp := h.Observer.ChunkPos()
	return observerResponse{X: pos[0], Y: pos[1], Radius: h.Observer.Radius(), ChunkX: cp.X(), ChunkY: cp.Y()}
}

func (h Handler) stats(_ context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, statsResponse{
		ID:        h.World.ID().String(),
		Tick:      h.World.CurrentTick(),
		TPS:       h.World.TPS(),
		ChunkSize: h.World.ChunkSize(),
		Metrics:   h.World.Metrics().Snapshot(),
	})
}

func (h Handler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// coordinates parses the :x and :y path parameters.
func coordinates(ctx *app.RequestContext) (int, int, error) {
	x, err := strconv.Atoi(ctx.Param("x"))
	if err != nil {
		return 0, 0, errInvalidCoordinate
	}
	y, err := strconv.Atoi(ctx.Param("y"))
	if err != nil {
		return 0, 0, errInvalidCoordinate
	}
	return x, y, nil
}

// tilePos parses the :x and :y path parameters as a tile position within the
// chunk range of the World.
func (h Handler) tilePos(ctx *app.RequestContext) (world.TilePos, error) {
	x, y, err := coordinates(ctx)
	if err != nil {
		return world.TilePos{}, err
	}
	pos := world.TilePos{x, y}
	if !chunk.InRange(pos, h.World.ChunkSize()) {
		return world.TilePos{}, errInvalidCoordinate
	}
	return pos, nil
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errInvalidBody
	}
	return nil
}

func writeError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, errInvalidCoordinate), errors.Is(err, world.ErrTileOutOfRange):
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_coordinate", err.Error())
	case errors.Is(err, errInvalidBody):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, errNoObserver):
		writeErrorBody(ctx, consts.StatusNotFound, "no_observer", err.Error())
	case errors.Is(err, errChunkNotResident):
		writeErrorBody(ctx, consts.StatusNotFound, "not_resident", err.Error())
	default:
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
