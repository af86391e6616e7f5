// Package harness runs end-to-end import scenarios against an in-memory
// inventory.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: cable_sections
//	description: "What this scenario validates"
//	config: |
//	  layers: [{name: "cable", entity: "dataCable"}]
//	seed:
//	  - kind: node
//	    attrs: {elid: N-A, id: A}
//	sources:
//	  cable:
//	    - {handle: H, type: ttk, cable_size: 24, start: {type: building, id: A}, end: {type: node, id: B}}
//	runs:
//	  - cleanup: false
//	    expect:
//	      status: complete
//	      totals: {just_imported: 1}
//	    assertions:
//	      - type: route
//	        cable: H-1
//	        hops: [T-AB]
//
// config is topoload.cue source; when empty the default layers are used.
// seed populates the inventory before the first run. sources are the
// properties of each layer's features; a layer without a source is skipped.
// runs execute in order against the same inventory and route store.
//
// # Assertion Types
//
//   - record_count: number of stored records of an entity kind
//   - call_count: number of create, delete, connect or update calls so far
//   - route: tray section elids of the stored route of a cable, by cable id
//   - outcome: outcome of the candidate at seq in a layer of this run
//
// # Deterministic Testing
//
// Runs use a sequence run ID generator ("run-0001", ...), a stepping clock
// and a batch size of one, so reports can be compared against golden files
// under testdata/golden. Regenerate them with:
//
//	go test ./internal/harness -update
package harness
