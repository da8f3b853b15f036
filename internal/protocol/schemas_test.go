package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"hexmill.dev/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, raw string) {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("sample: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	reject := func(s *jsonschema.Schema, raw string) {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("sample: %v", err)
		}
		if err := s.Validate(v); err == nil {
			t.Fatal("invalid sample passed validation")
		}
	}

	hello := compile("hello.schema.json")
	welcome := compile("welcome.schema.json")
	intent := compile("intent.schema.json")
	result := compile("result.schema.json")
	units := compile("units.schema.json")
	records := compile("records.schema.json")

	validate(hello, `{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"renderer",
	  "capabilities":{"max_queue":8}
	}`)
	reject(hello, `{"type":"HELLO","protocol_version":"1.0","client_name":""}`)

	validate(welcome, `{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"S1",
	  "map_name":"main_menu",
	  "tick_rate_hz":30,
	  "renderer":{"wgpu_backends":"VULKAN","wgpu_power_pref":"high"},
	  "catalogs":{
	    "tile_palette":{"digest":"2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae","count":9},
	    "item_palette":{"digest":"2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae","count":5},
	    "recipes_digest":"2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae"
	  }
	}`)

	validate(intent, `{
	  "type":"INTENT",
	  "protocol_version":"1.0",
	  "req_id":"r1",
	  "kind":"place_tile",
	  "coord":[0,0],
	  "id":"core:machine",
	  "record":true,
	  "data":{
	    "core:script":{"id":"core:recipe/make_iron"},
	    "core:target":{"coord":[1,0]}
	  }
	}`)
	validate(intent, `{
	  "type":"INTENT",
	  "protocol_version":"1.0",
	  "kind":"move_tiles",
	  "coords":[[0,0],[1,0]],
	  "offset":[3,0],
	  "record":true
	}`)
	reject(intent, `{"type":"INTENT","protocol_version":"1.0","kind":"teleport"}`)
	reject(intent, `{"type":"INTENT","protocol_version":"1.0","kind":"place_tile","coord":[0]}`)

	validate(result, `{"type":"RESULT","protocol_version":"1.0","req_id":"r1","result":"placed"}`)
	reject(result, `{"type":"RESULT","protocol_version":"1.0","result":"done"}`)

	validate(units, `{
	  "type":"UNITS",
	  "protocol_version":"1.0",
	  "units":[{
	    "coord":[1,0],
	    "id":"core:storage",
	    "matrix":[1,0,0,0, 0,1,0,0, 0,0,1,0, 1.7320508,0,0,1],
	    "model_override":"core:model/iron"
	  }]
	}`)

	validate(records, `{
	  "type":"RECORDS",
	  "protocol_version":"1.0",
	  "records":[{
	    "item":"core:iron","amount":1,
	    "from":[0,0],"to":[1,0],
	    "from_id":"core:machine","to_id":"core:void",
	    "age_ms":120
	  }]
	}`)
}

func TestKnownErrorCodes(t *testing.T) {
	for _, code := range []string{
		protocol.ErrProtoBadRequest,
		protocol.ErrBadIntent,
		protocol.ErrInvalidMapData,
		protocol.ErrUnwritableOptions,
		protocol.ErrInvalidName,
		protocol.ErrInternal,
		"",
	} {
		if !protocol.IsKnownCode(code) {
			t.Fatalf("code %q should be known", code)
		}
	}
	if protocol.IsKnownCode("E_NOPE") {
		t.Fatal("unknown code accepted")
	}
}
