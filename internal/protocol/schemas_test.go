package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
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

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	reject := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err == nil {
			t.Fatalf("expected validation failure")
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	obsSchema := compile("obs.schema.json")
	actSchema := compile("act.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"probe1",
	  "capabilities":{"delta_voxels":true,"max_queue":8}
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "client_id":"C1",
	  "world_params":{
	    "tick_rate_hz":10,
	    "chunk_size":[16,16,16],
	    "height":64,
	    "obs_radius":8,
	    "boundary_r":256,
	    "seed":1337
	  },
	  "catalogs":{
	    "block_palette":{"digest":"deadbeef","count":12},
	    "block_defs_digest":"deadbeef"
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var obs any
	_ = json.Unmarshal([]byte(`{
	  "type":"OBS",
	  "protocol_version":"1.0",
	  "tick":42,
	  "client_id":"C1",
	  "focus":[0,4,0],
	  "voxels":{"center":[0,4,0],"radius":8,"encoding":"RLE","data":"AA=="},
	  "wires":[{"pos":[1,4,0],"power":13}],
	  "switches":[{"pos":[0,4,1],"on":true}],
	  "events":[{"type":"block_set","pos":[1,4,0],"block":"WIRE"}],
	  "digest":"deadbeef"
	}`), &obs)
	validate(obsSchema, obs)

	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "tick":42,
	  "client_id":"C1",
	  "edits":[
	    {"id":"E1","type":"PLACE_BLOCK","pos":[1,4,0],"block":"WIRE"},
	    {"id":"E2","type":"TOGGLE","pos":[0,4,1]},
	    {"id":"E3","type":"SET_FOCUS","pos":[8,4,8]}
	  ]
	}`), &act)
	validate(actSchema, act)

	var badAct any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "tick":42,
	  "client_id":"C1",
	  "edits":[{"id":"E1","type":"PAINT","pos":[0,0,0]}]
	}`), &badAct)
	reject(actSchema, badAct)
}
