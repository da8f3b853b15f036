// Package catalogs loads the static game resources (tiles, items,
// recipes, tags, categories) from JSON config files, interns every id,
// and resolves the well-known id handles the simulation uses on hot
// paths.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

// DefaultNamespace is assumed for ids written without one.
const DefaultNamespace = "core"

// Registry is the read-only resource table shared by the whole
// process. Built once by Load before the coordinator starts.
type Registry struct {
	Interner *ident.Interner

	Tiles      map[ident.TileID]TileDef
	Items      map[ident.ID]ItemDef
	Recipes    map[ident.ID]RecipeDef
	Tags       map[ident.ID]TagDef
	Categories map[ident.ID]CategoryDef

	Keys WellKnown

	TilePalette   []string
	TileDigest    string
	ItemPalette   []string
	ItemDigest    string
	RecipesDigest string

	tagItems map[ident.ID][]ident.ID
}

// TileDef is a tile's static declaration set.
type TileDef struct {
	ID            ident.TileID
	TileType      ident.ID
	Scripts       []ident.ID
	ItemType      ident.ID // 0 when unset
	MaxAmount     int64
	Takeable      bool
	NotTargeted   bool
	Linking       bool
	Indirectional bool
	DefaultTile   bool
	Category      ident.ID // 0 when unset
	Model         ident.ModelID
}

type ItemDef struct {
	ID    ident.ID
	Model ident.ModelID
}

// RecipeDef is a script a machine can run. Inputs nil means the recipe
// produces from nothing.
type RecipeDef struct {
	ID       ident.ID
	Inputs   []tiledata.ItemStack
	Outputs  []tiledata.ItemStack
	Adjacent ident.ID // required neighbor tag, 0 when unset
}

type TagDef struct {
	ID      ident.ID
	Members map[ident.ID]struct{}
}

// CategoryDef groups tiles in the placement GUI. Item, when set, is
// debited from the player inventory on placement.
type CategoryDef struct {
	ID   ident.ID
	Item ident.ID // 0 when unset
}

// WellKnown holds the handles resolved once at load time.
type WellKnown struct {
	None ident.ID
	Any  ident.ID

	// DataMap keys.
	Target          ident.ID
	Link            ident.ID
	Script          ident.ID
	Scripts         ident.ID
	Buffer          ident.ID
	Direction       ident.ID
	Item            ident.ID
	Amount          ident.ID
	PlayerInventory ident.ID

	// Tile-type tags.
	TypeMachine    ident.ID
	TypeStorage    ident.ID
	TypeTransfer   ident.ID
	TypeMerger     ident.ID
	TypeSplitter   ident.ID
	TypeNode       ident.ID
	TypeMasterNode ident.ID
	TypeVoid       ident.ID

	// Structured error ids.
	ErrInvalidMapData    ident.ID
	ErrUnwritableOptions ident.ID
	ErrInvalidName       ident.ID
}

// NoneTile is Keys.None viewed as a tile id.
func (r *Registry) NoneTile() ident.TileID { return ident.TileID(r.Keys.None) }

// Load reads every catalog under configDir, freezes the interner, and
// returns the registry.
func Load(configDir string) (*Registry, error) {
	r := &Registry{
		Interner:   ident.NewInterner(),
		Tiles:      map[ident.TileID]TileDef{},
		Items:      map[ident.ID]ItemDef{},
		Recipes:    map[ident.ID]RecipeDef{},
		Tags:       map[ident.ID]TagDef{},
		Categories: map[ident.ID]CategoryDef{},
		tagItems:   map[ident.ID][]ident.ID{},
	}

	r.resolveWellKnown()

	if err := r.loadItems(filepath.Join(configDir, "items.json")); err != nil {
		return nil, err
	}
	if err := r.loadTags(filepath.Join(configDir, "tags.json")); err != nil {
		return nil, err
	}
	if err := r.loadRecipes(filepath.Join(configDir, "recipes.json")); err != nil {
		return nil, err
	}
	if err := r.loadCategories(filepath.Join(configDir, "categories.json")); err != nil {
		return nil, err
	}
	if err := r.loadTiles(filepath.Join(configDir, "tiles.json")); err != nil {
		return nil, err
	}

	r.Interner.Freeze()
	return r, nil
}

func (r *Registry) intern(s string) (ident.ID, error) {
	n, err := ident.ParseName(s, DefaultNamespace)
	if err != nil {
		return 0, err
	}
	return r.Interner.Intern(n), nil
}

func (r *Registry) resolveWellKnown() {
	must := func(s string) ident.ID {
		id, err := r.intern(s)
		if err != nil {
			panic(err) // literals below are well formed
		}
		return id
	}
	k := &r.Keys
	k.None = must("core:none")
	k.Any = must("core:any")

	k.Target = must("core:target")
	k.Link = must("core:link")
	k.Script = must("core:script")
	k.Scripts = must("core:scripts")
	k.Buffer = must("core:buffer")
	k.Direction = must("core:direction")
	k.Item = must("core:item")
	k.Amount = must("core:amount")
	k.PlayerInventory = must("core:player_inventory")

	k.TypeMachine = must("core:type/machine")
	k.TypeStorage = must("core:type/storage")
	k.TypeTransfer = must("core:type/transfer")
	k.TypeMerger = must("core:type/merger")
	k.TypeSplitter = must("core:type/splitter")
	k.TypeNode = must("core:type/node")
	k.TypeMasterNode = must("core:type/master_node")
	k.TypeVoid = must("core:type/void")

	k.ErrInvalidMapData = must("core:error/invalid_map_data")
	k.ErrUnwritableOptions = must("core:error/unwritable_options")
	k.ErrInvalidName = must("core:error/invalid_name")
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type rawItem struct {
	ID    string `json:"id"`
	Model string `json:"model,omitempty"`
}

func (r *Registry) loadItems(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var defs []rawItem
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	names := make([]string, 0, len(defs))
	for _, rd := range defs {
		if rd.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		id, err := r.intern(rd.ID)
		if err != nil {
			return fmt.Errorf("items.json: %w", err)
		}
		var model ident.ModelID
		if rd.Model != "" {
			m, err := r.intern(rd.Model)
			if err != nil {
				return fmt.Errorf("items.json: %w", err)
			}
			model = ident.ModelID(m)
		}
		r.Items[id] = ItemDef{ID: id, Model: model}
		name, _ := r.Interner.NameOf(id)
		names = append(names, name)
	}
	sort.Strings(names)
	r.ItemPalette = names
	palJSON, _ := json.Marshal(names)
	r.ItemDigest = sha256Hex(palJSON)
	return nil
}

type rawTag struct {
	ID      string   `json:"id"`
	Entries []string `json:"entries"`
}

func (r *Registry) loadTags(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var defs []rawTag
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("tags.json: %w", err)
	}
	for _, rd := range defs {
		if rd.ID == "" {
			return fmt.Errorf("tags.json: empty id")
		}
		id, err := r.intern(rd.ID)
		if err != nil {
			return fmt.Errorf("tags.json: %w", err)
		}
		members := make(map[ident.ID]struct{}, len(rd.Entries))
		for _, e := range rd.Entries {
			m, err := r.intern(e)
			if err != nil {
				return fmt.Errorf("tags.json: tag %s: %w", rd.ID, err)
			}
			members[m] = struct{}{}
		}
		r.Tags[id] = TagDef{ID: id, Members: members}
	}
	return nil
}

type rawStack struct {
	Item   string `json:"item"`
	Amount int64  `json:"amount"`
}

type rawRecipe struct {
	ID       string     `json:"id"`
	Inputs   []rawStack `json:"inputs,omitempty"`
	Outputs  []rawStack `json:"outputs"`
	Adjacent string     `json:"adjacent,omitempty"`
}

func (r *Registry) loadRecipes(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r.RecipesDigest = sha256Hex(raw)

	var defs []rawRecipe
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	for _, rd := range defs {
		if rd.ID == "" {
			return fmt.Errorf("recipes.json: empty id")
		}
		if len(rd.Outputs) == 0 {
			return fmt.Errorf("recipes.json: recipe %s has no outputs", rd.ID)
		}
		id, err := r.intern(rd.ID)
		if err != nil {
			return fmt.Errorf("recipes.json: %w", err)
		}
		def := RecipeDef{ID: id}
		for _, s := range rd.Inputs {
			st, err := r.internStack(s)
			if err != nil {
				return fmt.Errorf("recipes.json: recipe %s: %w", rd.ID, err)
			}
			def.Inputs = append(def.Inputs, st)
		}
		for _, s := range rd.Outputs {
			st, err := r.internStack(s)
			if err != nil {
				return fmt.Errorf("recipes.json: recipe %s: %w", rd.ID, err)
			}
			def.Outputs = append(def.Outputs, st)
		}
		if rd.Adjacent != "" {
			adj, err := r.intern(rd.Adjacent)
			if err != nil {
				return fmt.Errorf("recipes.json: recipe %s: %w", rd.ID, err)
			}
			def.Adjacent = adj
		}
		r.Recipes[id] = def
	}
	return nil
}

func (r *Registry) internStack(s rawStack) (tiledata.ItemStack, error) {
	if s.Item == "" {
		return tiledata.ItemStack{}, fmt.Errorf("empty item")
	}
	if s.Amount <= 0 {
		return tiledata.ItemStack{}, fmt.Errorf("item %s: non-positive amount %d", s.Item, s.Amount)
	}
	id, err := r.intern(s.Item)
	if err != nil {
		return tiledata.ItemStack{}, err
	}
	return tiledata.ItemStack{ID: id, Amount: s.Amount}, nil
}

type rawCategory struct {
	ID   string `json:"id"`
	Item string `json:"item,omitempty"`
}

func (r *Registry) loadCategories(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var defs []rawCategory
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("categories.json: %w", err)
	}
	for _, rd := range defs {
		if rd.ID == "" {
			return fmt.Errorf("categories.json: empty id")
		}
		id, err := r.intern(rd.ID)
		if err != nil {
			return fmt.Errorf("categories.json: %w", err)
		}
		def := CategoryDef{ID: id}
		if rd.Item != "" {
			item, err := r.intern(rd.Item)
			if err != nil {
				return fmt.Errorf("categories.json: %w", err)
			}
			def.Item = item
		}
		r.Categories[id] = def
	}
	return nil
}

type rawTile struct {
	ID            string   `json:"id"`
	TileType      string   `json:"tile_type"`
	Scripts       []string `json:"scripts,omitempty"`
	ItemType      string   `json:"item_type,omitempty"`
	MaxAmount     int64    `json:"max_amount,omitempty"`
	Takeable      bool     `json:"storage_takeable,omitempty"`
	NotTargeted   bool     `json:"not_targeted,omitempty"`
	Linking       bool     `json:"linking,omitempty"`
	Indirectional bool     `json:"indirectional,omitempty"`
	DefaultTile   bool     `json:"default_tile,omitempty"`
	Category      string   `json:"category,omitempty"`
	Model         string   `json:"model,omitempty"`
}

func (r *Registry) loadTiles(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var defs []rawTile
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("tiles.json: %w", err)
	}
	names := make([]string, 0, len(defs))
	for _, rd := range defs {
		if rd.ID == "" {
			return fmt.Errorf("tiles.json: empty id")
		}
		if rd.TileType == "" {
			return fmt.Errorf("tiles.json: tile %s: missing tile_type", rd.ID)
		}
		id, err := r.intern(rd.ID)
		if err != nil {
			return fmt.Errorf("tiles.json: %w", err)
		}
		typ, err := r.intern(rd.TileType)
		if err != nil {
			return fmt.Errorf("tiles.json: tile %s: %w", rd.ID, err)
		}
		def := TileDef{
			ID:            ident.TileID(id),
			TileType:      typ,
			MaxAmount:     rd.MaxAmount,
			Takeable:      rd.Takeable,
			NotTargeted:   rd.NotTargeted,
			Linking:       rd.Linking,
			Indirectional: rd.Indirectional,
			DefaultTile:   rd.DefaultTile,
		}
		for _, s := range rd.Scripts {
			sid, err := r.intern(s)
			if err != nil {
				return fmt.Errorf("tiles.json: tile %s: %w", rd.ID, err)
			}
			if _, ok := r.Recipes[sid]; !ok {
				return fmt.Errorf("tiles.json: tile %s: unknown script %s", rd.ID, s)
			}
			def.Scripts = append(def.Scripts, sid)
		}
		if rd.ItemType != "" {
			it, err := r.intern(rd.ItemType)
			if err != nil {
				return fmt.Errorf("tiles.json: tile %s: %w", rd.ID, err)
			}
			def.ItemType = it
		}
		if rd.Category != "" {
			cat, err := r.intern(rd.Category)
			if err != nil {
				return fmt.Errorf("tiles.json: tile %s: %w", rd.ID, err)
			}
			if _, ok := r.Categories[cat]; !ok {
				return fmt.Errorf("tiles.json: tile %s: unknown category %s", rd.ID, rd.Category)
			}
			def.Category = cat
		}
		if rd.Model != "" {
			m, err := r.intern(rd.Model)
			if err != nil {
				return fmt.Errorf("tiles.json: tile %s: %w", rd.ID, err)
			}
			def.Model = ident.ModelID(m)
		}
		r.Tiles[def.ID] = def
		name, _ := r.Interner.NameOf(id)
		names = append(names, name)
	}
	sort.Strings(names)
	r.TilePalette = names
	palJSON, _ := json.Marshal(names)
	r.TileDigest = sha256Hex(palJSON)
	return nil
}

// Tile looks up a tile def by id.
func (r *Registry) Tile(id ident.TileID) (TileDef, bool) {
	def, ok := r.Tiles[id]
	return def, ok
}

// Recipe looks up a recipe def by id.
func (r *Registry) Recipe(id ident.ID) (RecipeDef, bool) {
	def, ok := r.Recipes[id]
	return def, ok
}

// ItemMatch reports whether an offered item satisfies a recipe input
// id: either an exact item match, or the input names a tag that
// includes the offered item.
func (r *Registry) ItemMatch(offered, input ident.ID) bool {
	if offered == input || input == r.Keys.Any {
		return true
	}
	tag, ok := r.Tags[input]
	if !ok {
		return false
	}
	_, ok = tag.Members[offered]
	return ok
}

// ItemsWithTag returns every item id matching the tag, sorted. Results
// are cached per tag; call only after Load.
func (r *Registry) ItemsWithTag(tag ident.ID) []ident.ID {
	if cached, ok := r.tagItems[tag]; ok {
		return cached
	}
	var out []ident.ID
	for id := range r.Items {
		if r.ItemMatch(id, tag) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	r.tagItems[tag] = out
	return out
}

// TileMatch reports whether a placed tile id satisfies a tag (used by
// recipe adjacency checks).
func (r *Registry) TileMatch(tile ident.TileID, tag ident.ID) bool {
	return r.ItemMatch(ident.ID(tile), tag)
}
