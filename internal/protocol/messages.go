package protocol

import (
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/tiledata"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client). Renderer params are environment
// passthrough; the server never interprets them.
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	MapName         string         `json:"map_name"`
	TickRateHz      int            `json:"tick_rate_hz"`
	Renderer        RendererParams `json:"renderer"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type RendererParams struct {
	Backends  string `json:"wgpu_backends,omitempty"`
	PowerPref string `json:"wgpu_power_pref,omitempty"`
}

type CatalogDigests struct {
	TilePalette   DigestRef `json:"tile_palette"`
	ItemPalette   DigestRef `json:"item_palette"`
	RecipesDigest string    `json:"recipes_digest"`
}

type DigestRef struct {
	Digest string `json:"digest"` // sha256 hex
	Count  int    `json:"count"`
}

// Intent kinds (client -> server map mutations).
const (
	IntentPlaceTile    = "place_tile"
	IntentPlaceTiles   = "place_tiles"
	IntentMoveTiles    = "move_tiles"
	IntentUndo         = "undo"
	IntentNewMap       = "new_map"
	IntentLoadMap      = "load_map"
	IntentSaveMap      = "save_map"
	IntentStopTicking  = "stop_ticking"
	IntentSetDataValue = "set_data_value"
	IntentRemoveData   = "remove_data_value"
)

// PlacedTile is one entry of a bulk placement.
type PlacedTile struct {
	Coord hexgrid.Coord       `json:"coord"`
	ID    string              `json:"id"`
	Data  tiledata.RawDataMap `json:"data,omitempty"`
}

// INTENT (client -> server). Kind selects which fields apply.
type IntentMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Kind            string `json:"kind"`

	Coord *hexgrid.Coord      `json:"coord,omitempty"`
	ID    string              `json:"id,omitempty"`
	Data  tiledata.RawDataMap `json:"data,omitempty"`

	Tiles     []PlacedTile `json:"tiles,omitempty"`
	PlaceOver bool         `json:"place_over,omitempty"`
	Record    bool         `json:"record,omitempty"`

	Coords []hexgrid.Coord `json:"coords,omitempty"`
	Offset *hexgrid.Coord  `json:"offset,omitempty"`

	Map     string `json:"map,omitempty"`
	Stopped bool   `json:"stopped,omitempty"`

	Key   string            `json:"key,omitempty"`
	Value *tiledata.RawData `json:"value,omitempty"`
}

// RESULT (server -> client), answering one intent.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Result          string `json:"result"` // placed | removed | ignored | ok | error
	Error           string `json:"error,omitempty"`
}

// Query kinds (client -> server reads).
const (
	QueryRenderUnits = "render_units"
	QueryRecords     = "records"
	QueryMapInfo     = "map_info"
	QueryTileData    = "tile_data"
	QuerySaves       = "saves"
)

// QUERY (client -> server).
type QueryMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Kind            string `json:"kind"`

	Center hexgrid.Coord  `json:"center,omitempty"`
	Radius int32          `json:"radius,omitempty"`
	Coord  *hexgrid.Coord `json:"coord,omitempty"`
}

// UnitEntry is one visible tile in a render-units answer.
type UnitEntry struct {
	Coord         hexgrid.Coord `json:"coord"`
	ID            string        `json:"id"`
	Matrix        [16]float32   `json:"matrix"`
	ModelOverride string        `json:"model_override,omitempty"`
}

// UNITS (server -> client).
type UnitsMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ReqID           string      `json:"req_id,omitempty"`
	Units           []UnitEntry `json:"units"`
}

// RecordEntry is one recent successful transfer, for animation.
type RecordEntry struct {
	Item   string        `json:"item"`
	Amount int64         `json:"amount"`
	From   hexgrid.Coord `json:"from"`
	To     hexgrid.Coord `json:"to"`
	FromID string        `json:"from_id"`
	ToID   string        `json:"to_id"`
	AgeMs  int64         `json:"age_ms"`
}

// RECORDS (server -> client).
type RecordsMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	ReqID           string        `json:"req_id,omitempty"`
	Records         []RecordEntry `json:"records"`
}

// INFO (server -> client): map name plus the shared info record.
type InfoMsg struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	ReqID           string              `json:"req_id,omitempty"`
	Name            string              `json:"name"`
	SaveTime        string              `json:"save_time,omitempty"` // RFC 3339
	Data            tiledata.RawDataMap `json:"data,omitempty"`
	Saves           []string            `json:"saves,omitempty"`
}

// DATA (server -> client): one tile's data snapshot.
type DataMsg struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	ReqID           string              `json:"req_id,omitempty"`
	Coord           hexgrid.Coord       `json:"coord"`
	OK              bool                `json:"ok"`
	Data            tiledata.RawDataMap `json:"data,omitempty"`
}

// ERROR (server -> client): protocol-level rejection or a drained
// entry from the structured error queue.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Detail          string `json:"detail,omitempty"`
}
