package testutil

// FixedRunID generates the same run ID every time, so scenario and golden
// outputs that mention the run are byte-identical across executions.
//
// Unlike engine.FixedGenerator, which returns IDs in sequence, FixedRunID
// never runs out.
type FixedRunID struct {
	id string
}

// NewFixedRunID returns a generator for id. An empty id selects
// "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunID) Generate() string {
	return g.id
}
