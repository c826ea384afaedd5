package help

import (
	"strings"
	"testing"

	"tessen/pkg/tessen"
)

func TestModuleRegistersHelpRule(t *testing.T) {
	t.Parallel()

	registration := tessen.Registration{}
	New().Register(&registration)

	registry, err := tessen.NewRegistry(registration)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	rules := registry.Rules()
	if len(rules) != 1 {
		t.Fatalf("rule count = %d, want 1", len(rules))
	}
	if !rules[0].Expr.MatchString("/help") || !rules[0].Expr.MatchString("/HELP@tessen_bot") {
		t.Fatal("help trigger must match /help and the mention form case-insensitively")
	}
	if rules[0].Expr.MatchString("/helpme") {
		t.Fatal("help trigger must not match longer commands")
	}
}

func TestRenderReferenceIsStableAndComplete(t *testing.T) {
	t.Parallel()

	rendered := New().renderReference()

	if !strings.HasPrefix(rendered, "Available commands:") {
		t.Fatalf("unexpected header: %s", rendered)
	}
	for _, command := range []string{"/help", "/ping"} {
		if !strings.Contains(rendered, command) {
			t.Fatalf("reference is missing %s:\n%s", command, rendered)
		}
	}

	// Sorted order keeps the reply deterministic across runs.
	if strings.Index(rendered, "/help") > strings.Index(rendered, "/ping") {
		t.Fatalf("commands are not sorted:\n%s", rendered)
	}
}
