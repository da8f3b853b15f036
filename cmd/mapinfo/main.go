// mapinfo prints a save's metadata without loading the map: the
// info.ron record (tile count, map data) and, when present, the
// sqlite index row written by the server on save.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"hexmill.dev/internal/persistence/indexdb"
	"hexmill.dev/internal/persistence/mapfile"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		mapRoot = flag.String("maps", "", "map root (default: <data>/map)")
		name    = flag.String("map", "", "save name; empty lists all saves")
		asJSON  = flag.Bool("json", false, "print the info record as JSON")
	)
	flag.Parse()

	root := *mapRoot
	if root == "" {
		root = filepath.Join(*dataDir, "map")
	}

	if *name == "" {
		listSaves(root, filepath.Join(*dataDir, "index.db"))
		return
	}

	opt := mapfile.Named(*name)
	info, saveTime, err := mapfile.PeekInfo(root, opt)
	if err != nil {
		fmt.Fprintln(os.Stderr, "peek info:", err)
		os.Exit(1)
	}

	if *asJSON {
		b, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(b))
	} else {
		fmt.Printf("map=%s tiles=%d saved=%s\n", opt.Name, info.TileCount, saveTime.Format("2006-01-02 15:04:05"))
		for key, v := range info.Data {
			b, _ := json.Marshal(v)
			fmt.Printf("  %s = %s\n", key, b)
		}
	}

	printIndexRow(filepath.Join(*dataDir, "index.db"), opt.Name)
}

func listSaves(root, dbPath string) {
	names, err := mapfile.ListSaves(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list saves:", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Println("no saves")
		return
	}

	idx, err := indexdb.Open(dbPath)
	if err != nil {
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}
	defer idx.Close()

	for _, n := range names {
		if row, ok, err := idx.Lookup(n); err == nil && ok {
			fmt.Printf("%s\ttiles=%d\tsaved=%s\n", n, row.TileCount, row.SaveTime.Format("2006-01-02 15:04:05"))
			continue
		}
		fmt.Println(n)
	}
}

func printIndexRow(dbPath, name string) {
	if _, err := os.Stat(dbPath); err != nil {
		return
	}
	idx, err := indexdb.Open(dbPath)
	if err != nil {
		return
	}
	defer idx.Close()

	row, ok, err := idx.Lookup(name)
	if err != nil || !ok {
		fmt.Println("index: no row")
		return
	}
	fmt.Printf("index: tiles=%d saved=%s indexed=%s\n",
		row.TileCount,
		row.SaveTime.Format("2006-01-02 15:04:05"),
		row.UpdatedAt.Format("2006-01-02 15:04:05"))
}
