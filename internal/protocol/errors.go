package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Intent/query layer.
	ErrBadIntent     = "E_BAD_INTENT"
	ErrUnknownTile   = "E_UNKNOWN_TILE"
	ErrInvalidTarget = "E_INVALID_TARGET"

	// Persistence, mirroring the well-known registry error ids.
	ErrInvalidMapData    = "E_INVALID_MAP_DATA"
	ErrUnwritableOptions = "E_UNWRITABLE_OPTIONS"
	ErrInvalidName       = "E_INVALID_NAME"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrBadIntent:         {},
	ErrUnknownTile:       {},
	ErrInvalidTarget:     {},
	ErrInvalidMapData:    {},
	ErrUnwritableOptions: {},
	ErrInvalidName:       {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
