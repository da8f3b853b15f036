package game

import (
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

// InstanceData is one drawable's world transform, a column-major 4x4
// matrix ready for instanced rendering.
type InstanceData struct {
	Matrix [16]float32
}

func translationMatrix(c hexgrid.Coord) InstanceData {
	x, y := c.ToPixel()
	m := InstanceData{}
	m.Matrix[0] = 1
	m.Matrix[5] = 1
	m.Matrix[10] = 1
	m.Matrix[12] = float32(x)
	m.Matrix[13] = float32(y)
	m.Matrix[15] = 1
	return m
}

// RenderUnit is one visible tile's drawable state. ModelOverride is
// set when the tile is configured with a concrete item whose model
// replaces the tile's own.
type RenderUnit struct {
	Instance      InstanceData
	ModelOverride *ident.ModelID
}

// RenderEntry pairs the unit with the tile that produced it.
type RenderEntry struct {
	TileID ident.TileID
	Unit   RenderUnit
}

// RenderCommandKind tags a scripted per-mesh animation command.
type RenderCommandKind uint8

const (
	CmdTrack RenderCommandKind = iota
	CmdUntrack
	CmdTransform
)

// RenderCommand keeps a tagged mesh's animation matrix in lockstep
// with simulation state.
type RenderCommand struct {
	Kind   RenderCommandKind
	Tag    ident.RenderTagID
	Mesh   ident.ModelMeshID
	Matrix [16]float32
}

// ScriptingHost evaluates render scripts outside the coordinator. The
// renderer calls it per visible tile with that tile's data snapshot.
type ScriptingHost interface {
	CollectRenderCommands(id ident.TileID, coord hexgrid.Coord, data tiledata.DataMap) []RenderCommand
}

// handleRenderUnits answers a culling-range query, memoizing per
// bounds until the next map mutation.
func (g *Game) handleRenderUnits(bounds hexgrid.Bounds) map[hexgrid.Coord]RenderEntry {
	if cached, ok := g.renderCache[bounds]; ok {
		return cached
	}
	out := map[hexgrid.Coord]RenderEntry{}
	bounds.Each(func(c hexgrid.Coord) bool {
		id, ok := g.tiles[c]
		if !ok {
			return true
		}
		entry := RenderEntry{
			TileID: id,
			Unit:   RenderUnit{Instance: translationMatrix(c)},
		}
		if t, live := g.entities[c]; live {
			if override, ok := g.modelOverride(t); ok {
				entry.Unit.ModelOverride = &override
			}
		}
		out[c] = entry
		return true
	})
	g.renderCache[bounds] = out
	return out
}

// modelOverride maps a configured item to its model, for tiles that
// display their contents.
func (g *Game) modelOverride(t *tileEntity) (ident.ModelID, bool) {
	data := g.getDataSync(t)
	item, ok := data.ID(g.reg.Keys.Item)
	if !ok {
		return 0, false
	}
	def, ok := g.reg.Items[item]
	if !ok {
		return 0, false
	}
	return def.Model, true
}
