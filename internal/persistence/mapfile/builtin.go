package mapfile

import (
	"bytes"
	"embed"
	"fmt"
)

// The main menu and debug maps ship inside the binary.
//
//go:embed builtin
var builtinFS embed.FS

func loadBuiltin(opt Option) (InfoRaw, MapRaw, error) {
	if opt.Kind == KindNamed {
		return InfoRaw{}, MapRaw{}, fmt.Errorf("mapfile: %q is not a built-in map", opt.Name)
	}
	dir := "builtin/" + opt.Name

	infoB, err := builtinFS.ReadFile(dir + "/" + InfoFile)
	if err != nil {
		return InfoRaw{}, MapRaw{}, err
	}
	info, err := ReadInfo(bytes.NewReader(infoB))
	if err != nil {
		return InfoRaw{}, MapRaw{}, err
	}

	mapB, err := builtinFS.ReadFile(dir + "/" + MapFile)
	if err != nil {
		return InfoRaw{}, MapRaw{}, err
	}
	m, err := ReadMap(bytes.NewReader(mapB))
	if err != nil {
		return InfoRaw{}, MapRaw{}, err
	}
	return info, m, nil
}
