// Package mapfile implements the on-disk map format: a per-save
// directory holding an uncompressed info record and a zstd-compressed
// tile record with an interned tile-name table. Built-in maps
// (main menu, debug) are served from embedded bytes and have no path.
package mapfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/tiledata"
)

const (
	InfoFile = "info.ron"
	MapFile  = "map.zst"

	infoBufSize = 1 * 1024
	mapBufSize  = 256 * 1024
)

// Kind tags where a map comes from.
type Kind int

const (
	KindNamed Kind = iota
	KindMainMenu
	KindDebug
)

// Option selects a map to load. Only named saves have a filesystem
// path; the other two read embedded bytes.
type Option struct {
	Kind Kind
	Name string
}

func Named(name string) Option { return Option{Kind: KindNamed, Name: SanitizeName(name)} }

var (
	MainMenu = Option{Kind: KindMainMenu, Name: "main_menu"}
	Debug    = Option{Kind: KindDebug, Name: "debug"}
)

// Dir returns the save directory for a named map. ok is false for
// built-in maps.
func (o Option) Dir(root string) (string, bool) {
	if o.Kind != KindNamed {
		return "", false
	}
	return filepath.Join(root, o.Name), true
}

// InfoRaw is the info.ron record.
type InfoRaw struct {
	TileCount uint32              `json:"tile_count"`
	Data      tiledata.RawDataMap `json:"data"`
}

// RawID is a per-save tile palette index, resolved through TileMap.
type RawID uint32

// TileRecord is one placed tile in the map record.
type TileRecord struct {
	Coord hexgrid.Coord       `json:"coord"`
	ID    RawID               `json:"id"`
	Data  tiledata.RawDataMap `json:"data,omitempty"`
}

// MapRaw is the decompressed map.zst record.
type MapRaw struct {
	Tiles   []TileRecord     `json:"tiles"`
	TileMap map[RawID]string `json:"tile_map"`
}

// NamedTile is the save-format-independent view of a placed tile,
// carrying the full "ns:path" tile name.
type NamedTile struct {
	Coord hexgrid.Coord
	Name  string
	Data  tiledata.RawDataMap
}

// BuildMapRaw produces the canonical record for a set of tiles: tiles
// sorted by (q, r), palette ids assigned in that order of first use.
// Two saves of the same map are byte-equal.
func BuildMapRaw(tiles []NamedTile) MapRaw {
	sorted := append([]NamedTile(nil), tiles...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Coord, sorted[j].Coord
		if a.Q != b.Q {
			return a.Q < b.Q
		}
		return a.R < b.R
	})

	out := MapRaw{TileMap: map[RawID]string{}}
	index := map[string]RawID{}
	for _, t := range sorted {
		id, ok := index[t.Name]
		if !ok {
			id = RawID(len(index))
			index[t.Name] = id
			out.TileMap[id] = t.Name
		}
		out.Tiles = append(out.Tiles, TileRecord{Coord: t.Coord, ID: id, Data: t.Data})
	}
	return out
}

// ResolveTiles flattens a loaded record back to named tiles. Entries
// whose palette id is missing from the table are dropped.
func ResolveTiles(m MapRaw) []NamedTile {
	out := make([]NamedTile, 0, len(m.Tiles))
	for _, t := range m.Tiles {
		name, ok := m.TileMap[t.ID]
		if !ok {
			continue
		}
		out = append(out, NamedTile{Coord: t.Coord, Name: name, Data: t.Data})
	}
	return out
}

// WriteInfo serializes the info record.
func WriteInfo(w io.Writer, info InfoRaw) error {
	bw := bufio.NewWriterSize(w, infoBufSize)
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	if _, err := bw.Write(b); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadInfo deserializes the info record.
func ReadInfo(r io.Reader) (InfoRaw, error) {
	var info InfoRaw
	br := bufio.NewReaderSize(r, infoBufSize)
	if err := json.NewDecoder(br).Decode(&info); err != nil {
		return info, fmt.Errorf("info: %w", err)
	}
	return info, nil
}

// WriteMap serializes and compresses the map record (zstd level 0).
func WriteMap(w io.Writer, m MapRaw) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, mapBufSize)

	b, err := json.Marshal(m)
	if err != nil {
		enc.Close()
		return fmt.Errorf("map: %w", err)
	}
	if _, err := bw.Write(b); err != nil {
		enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadMap decompresses and deserializes the map record.
func ReadMap(r io.Reader) (MapRaw, error) {
	var m MapRaw
	dec, err := zstd.NewReader(r)
	if err != nil {
		return m, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, mapBufSize)
	if err := json.NewDecoder(br).Decode(&m); err != nil {
		return m, fmt.Errorf("map: %w", err)
	}
	return m, nil
}

// Save writes both files for a named save. Each file is written to a
// temp name and renamed into place so a crash never leaves a partial
// map visible.
func Save(root string, opt Option, info InfoRaw, m MapRaw) error {
	dir, ok := opt.Dir(root)
	if !ok {
		return fmt.Errorf("mapfile: built-in map %q is read-only", opt.Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if err := writeAtomic(filepath.Join(dir, InfoFile), func(w io.Writer) error {
		return WriteInfo(w, info)
	}); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, MapFile), func(w io.Writer) error {
		return WriteMap(w, m)
	})
}

func writeAtomic(path string, fill func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a map's info and tile records. Built-in maps come from
// the embedded assets.
func Load(root string, opt Option) (InfoRaw, MapRaw, error) {
	if opt.Kind != KindNamed {
		return loadBuiltin(opt)
	}
	dir, _ := opt.Dir(root)

	infoF, err := os.Open(filepath.Join(dir, InfoFile))
	if err != nil {
		return InfoRaw{}, MapRaw{}, err
	}
	defer infoF.Close()
	info, err := ReadInfo(infoF)
	if err != nil {
		return InfoRaw{}, MapRaw{}, err
	}

	mapF, err := os.Open(filepath.Join(dir, MapFile))
	if err != nil {
		return InfoRaw{}, MapRaw{}, err
	}
	defer mapF.Close()
	m, err := ReadMap(mapF)
	if err != nil {
		return InfoRaw{}, MapRaw{}, err
	}
	return info, m, nil
}

// PeekInfo reads only the info record, plus the save time (file
// mtime; zero for built-in maps).
func PeekInfo(root string, opt Option) (InfoRaw, time.Time, error) {
	if opt.Kind != KindNamed {
		info, _, err := loadBuiltin(opt)
		return info, time.Time{}, err
	}
	dir, _ := opt.Dir(root)
	path := filepath.Join(dir, InfoFile)

	f, err := os.Open(path)
	if err != nil {
		return InfoRaw{}, time.Time{}, err
	}
	defer f.Close()
	info, err := ReadInfo(f)
	if err != nil {
		return InfoRaw{}, time.Time{}, err
	}
	st, err := f.Stat()
	if err != nil {
		return InfoRaw{}, time.Time{}, err
	}
	return info, st.ModTime(), nil
}

// ListSaves returns the sanitized names of every save directory under
// root that holds an info record, sorted.
func ListSaves(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), InfoFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
