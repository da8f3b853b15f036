// Package ws is the websocket transport: the renderer / GUI / input
// shell connects, handshakes, and then issues intents (map mutations)
// and queries (render feed, records, map info) as JSON messages.
package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hexmill.dev/internal/persistence/indexdb"
	"hexmill.dev/internal/persistence/mapfile"
	"hexmill.dev/internal/protocol"
	"hexmill.dev/internal/sim/catalogs"
	"hexmill.dev/internal/sim/game"
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

const (
	writeWait = 5 * time.Second
	readWait  = 60 * time.Second
)

type Server struct {
	game *game.Game
	reg  *catalogs.Registry
	idx  *indexdb.Index
	log  *zap.Logger

	renderer protocol.RendererParams
	sessions atomic.Uint64

	upgrader websocket.Upgrader
}

func NewServer(g *game.Game, reg *catalogs.Registry, idx *indexdb.Index, renderer protocol.RendererParams, log *zap.Logger) *Server {
	return &Server{
		game:     g,
		reg:      reg,
		idx:      idx,
		log:      log,
		renderer: renderer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		session, ok := s.handshake(conn)
		if !ok {
			return
		}
		s.log.Info("client connected", zap.String("session", session))

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.writeError(conn, "", protocol.ErrProtoBadRequest, "not json")
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				s.writeError(conn, "", protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			switch base.Type {
			case protocol.TypeIntent:
				var in protocol.IntentMsg
				if err := json.Unmarshal(msg, &in); err != nil {
					s.writeError(conn, "", protocol.ErrProtoBadRequest, "bad intent")
					continue
				}
				s.writeJSON(conn, s.handleIntent(in))
			case protocol.TypeQuery:
				var q protocol.QueryMsg
				if err := json.Unmarshal(msg, &q); err != nil {
					s.writeError(conn, "", protocol.ErrProtoBadRequest, "bad query")
					continue
				}
				s.writeJSON(conn, s.handleQuery(q))
			default:
				s.writeError(conn, "", protocol.ErrProtoBadRequest, "unexpected "+base.Type)
			}
		}

		s.log.Info("client disconnected", zap.String("session", session))
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(writeWait))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
			time.Now().Add(time.Second))
		return "", false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"),
			time.Now().Add(time.Second))
		return "", false
	}

	session := fmt.Sprintf("S%d", s.sessions.Add(1))
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       session,
		MapName:         s.game.InfoAndName().Name,
		TickRateHz:      s.game.TickRateHz(),
		Renderer:        s.renderer,
		Catalogs: protocol.CatalogDigests{
			TilePalette: protocol.DigestRef{
				Digest: s.reg.TileDigest,
				Count:  len(s.reg.TilePalette),
			},
			ItemPalette: protocol.DigestRef{
				Digest: s.reg.ItemDigest,
				Count:  len(s.reg.ItemPalette),
			},
			RecipesDigest: s.reg.RecipesDigest,
		},
	}
	if !s.writeJSON(conn, welcome) {
		return "", false
	}
	return session, true
}

func (s *Server) handleIntent(in protocol.IntentMsg) any {
	ok := func() protocol.ResultMsg { return s.result(in.ReqID, "ok", "") }
	bad := func(detail string) protocol.ErrorMsg {
		return s.errorMsg(in.ReqID, protocol.ErrBadIntent, detail)
	}

	switch in.Kind {
	case protocol.IntentPlaceTile:
		if in.Coord == nil {
			return bad("place_tile needs coord")
		}
		id, found := s.tileID(in.ID)
		if !found {
			return s.errorMsg(in.ReqID, protocol.ErrUnknownTile, in.ID)
		}
		res := s.game.PlaceTile(*in.Coord, id, s.dataMap(in.Data), in.Record)
		return s.result(in.ReqID, res.String(), "")

	case protocol.IntentPlaceTiles:
		placements := make([]game.Placement, 0, len(in.Tiles))
		for _, p := range in.Tiles {
			id, found := s.tileID(p.ID)
			if !found {
				return s.errorMsg(in.ReqID, protocol.ErrUnknownTile, p.ID)
			}
			placements = append(placements, game.Placement{
				Coord: p.Coord,
				ID:    id,
				Data:  s.dataMap(p.Data),
			})
		}
		s.game.PlaceTiles(placements, in.PlaceOver, in.Record)
		return ok()

	case protocol.IntentMoveTiles:
		if in.Offset == nil {
			return bad("move_tiles needs offset")
		}
		s.game.MoveTiles(in.Coords, *in.Offset, in.Record)
		return ok()

	case protocol.IntentUndo:
		if !s.game.Undo() {
			return s.result(in.ReqID, "ignored", "")
		}
		return ok()

	case protocol.IntentNewMap:
		if in.Map == "" {
			return s.errorMsg(in.ReqID, protocol.ErrInvalidName, "empty map name")
		}
		s.game.NewMap(mapfile.Named(in.Map))
		return ok()

	case protocol.IntentLoadMap:
		opt, err := s.mapOption(in.Map)
		if err != nil {
			return s.errorMsg(in.ReqID, protocol.ErrInvalidName, err.Error())
		}
		if err := s.game.LoadMap(opt); err != nil {
			return s.errorMsg(in.ReqID, protocol.ErrInvalidMapData, err.Error())
		}
		return ok()

	case protocol.IntentSaveMap:
		if err := s.game.SaveMap(); err != nil {
			return s.errorMsg(in.ReqID, protocol.ErrUnwritableOptions, err.Error())
		}
		return ok()

	case protocol.IntentStopTicking:
		s.game.StopTicking(in.Stopped)
		return ok()

	case protocol.IntentSetDataValue:
		if in.Coord == nil || in.Key == "" || in.Value == nil {
			return bad("set_data_value needs coord, key and value")
		}
		key, found := s.reg.Interner.GetString(in.Key, catalogs.DefaultNamespace)
		if !found {
			return bad("unknown key " + in.Key)
		}
		v, valid := tiledata.FromRaw(*in.Value, s.reg.Interner, catalogs.DefaultNamespace)
		if !valid {
			return bad("unreadable value")
		}
		if !s.game.SetTileDataValue(*in.Coord, key, v) {
			return s.result(in.ReqID, "ignored", "")
		}
		return ok()

	case protocol.IntentRemoveData:
		if in.Coord == nil || in.Key == "" {
			return bad("remove_data_value needs coord and key")
		}
		key, found := s.reg.Interner.GetString(in.Key, catalogs.DefaultNamespace)
		if !found {
			return bad("unknown key " + in.Key)
		}
		if !s.game.RemoveTileDataValue(*in.Coord, key) {
			return s.result(in.ReqID, "ignored", "")
		}
		return ok()

	default:
		return bad("unknown kind " + in.Kind)
	}
}

func (s *Server) handleQuery(q protocol.QueryMsg) any {
	switch q.Kind {
	case protocol.QueryRenderUnits:
		bounds := hexgrid.Bounds{Center: q.Center, Radius: hexgrid.Unit(q.Radius)}
		units := s.game.RenderUnits(bounds)
		out := protocol.UnitsMsg{
			Type:            protocol.TypeUnits,
			ProtocolVersion: protocol.Version,
			ReqID:           q.ReqID,
			Units:           make([]protocol.UnitEntry, 0, len(units)),
		}
		for c, u := range units {
			e := protocol.UnitEntry{
				Coord:  c,
				ID:     s.name(ident.ID(u.TileID)),
				Matrix: u.Unit.Instance.Matrix,
			}
			if u.Unit.ModelOverride != nil {
				e.ModelOverride = s.name(ident.ID(*u.Unit.ModelOverride))
			}
			out.Units = append(out.Units, e)
		}
		return out

	case protocol.QueryRecords:
		recs := s.game.RecordedTransactions()
		out := protocol.RecordsMsg{
			Type:            protocol.TypeRecords,
			ProtocolVersion: protocol.Version,
			ReqID:           q.ReqID,
			Records:         make([]protocol.RecordEntry, 0, len(recs)),
		}
		now := time.Now()
		for _, r := range recs {
			out.Records = append(out.Records, protocol.RecordEntry{
				Item:   s.name(r.Stack.ID),
				Amount: r.Stack.Amount,
				From:   r.SourceCoord,
				To:     r.DestCoord,
				FromID: s.name(ident.ID(r.SourceID)),
				ToID:   s.name(ident.ID(r.DestID)),
				AgeMs:  now.Sub(r.At).Milliseconds(),
			})
		}
		return out

	case protocol.QueryMapInfo:
		st := s.game.InfoAndName()
		out := protocol.InfoMsg{
			Type:            protocol.TypeInfo,
			ProtocolVersion: protocol.Version,
			ReqID:           q.ReqID,
			Name:            st.Name,
			Data:            tiledata.MapToRaw(st.Info.Snapshot(), s.reg.Interner),
		}
		if t := st.Info.SaveTime(); !t.IsZero() {
			out.SaveTime = t.Format(time.RFC3339)
		}
		return out

	case protocol.QuerySaves:
		out := protocol.InfoMsg{
			Type:            protocol.TypeInfo,
			ProtocolVersion: protocol.Version,
			ReqID:           q.ReqID,
			Name:            s.game.InfoAndName().Name,
		}
		if s.idx != nil {
			if rows, err := s.idx.List(); err == nil {
				for _, r := range rows {
					out.Saves = append(out.Saves, r.Name)
				}
			}
		}
		return out

	case protocol.QueryTileData:
		if q.Coord == nil {
			return s.errorMsg(q.ReqID, protocol.ErrProtoBadRequest, "tile_data needs coord")
		}
		data, found := s.game.TileData(*q.Coord)
		out := protocol.DataMsg{
			Type:            protocol.TypeData,
			ProtocolVersion: protocol.Version,
			ReqID:           q.ReqID,
			Coord:           *q.Coord,
			OK:              found,
		}
		if found {
			out.Data = tiledata.MapToRaw(data, s.reg.Interner)
		}
		return out

	default:
		return s.errorMsg(q.ReqID, protocol.ErrProtoBadRequest, "unknown query "+q.Kind)
	}
}

func (s *Server) tileID(name string) (ident.TileID, bool) {
	id, ok := s.reg.Interner.GetString(name, catalogs.DefaultNamespace)
	if !ok {
		return 0, false
	}
	if ident.TileID(id) == s.reg.NoneTile() {
		return s.reg.NoneTile(), true
	}
	_, known := s.reg.Tile(ident.TileID(id))
	return ident.TileID(id), known
}

func (s *Server) dataMap(raw tiledata.RawDataMap) tiledata.DataMap {
	if len(raw) == 0 {
		return nil
	}
	return tiledata.MapFromRaw(raw, s.reg.Interner, catalogs.DefaultNamespace)
}

func (s *Server) mapOption(name string) (mapfile.Option, error) {
	switch name {
	case "":
		return mapfile.Option{}, fmt.Errorf("empty map name")
	case mapfile.MainMenu.Name:
		return mapfile.MainMenu, nil
	case mapfile.Debug.Name:
		return mapfile.Debug, nil
	default:
		return mapfile.Named(name), nil
	}
}

func (s *Server) name(id ident.ID) string {
	n, _ := s.reg.Interner.NameOf(id)
	return n
}

func (s *Server) result(reqID, result, detail string) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Result:          result,
		Error:           detail,
	}
}

func (s *Server) errorMsg(reqID, code, detail string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Code:            code,
		Detail:          detail,
	}
}

func (s *Server) writeError(conn *websocket.Conn, reqID, code, detail string) {
	s.writeJSON(conn, s.errorMsg(reqID, code, detail))
}

func (s *Server) writeJSON(conn *websocket.Conn, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b) == nil
}
