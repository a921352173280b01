package database

import (
	"strings"
	"testing"
)

func TestStatementsSplitSchema(t *testing.T) {
	stmts := Statements()
	if len(stmts) < 10 {
		t.Fatalf("got %d statements", len(stmts))
	}
	for i, s := range stmts {
		if !strings.HasPrefix(strings.TrimSpace(s), "CREATE TABLE IF NOT EXISTS") {
			t.Fatalf("statement %d is not an idempotent create: %q", i, s)
		}
		if strings.Contains(s, "--") {
			t.Fatalf("statement %d kept a comment line", i)
		}
	}
}

func TestSchemaGuardsActiveAssignment(t *testing.T) {
	var found bool
	for _, s := range Statements() {
		if strings.Contains(s, "vehicle_assignments") && strings.Contains(s, "UNIQUE KEY uq_active_vehicle (active_vehicle_id)") {
			found = true
		}
	}
	if !found {
		t.Fatalf("vehicle_assignments lacks the active vehicle unique key")
	}
}
