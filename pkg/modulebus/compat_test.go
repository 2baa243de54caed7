package modulebus_test

import (
	"testing"

	"github.com/coreflow360/modulebus/pkg/modulebus"
	"github.com/coreflow360/modulebus/pkg/modulebus/topology"
)

func TestCompatibilityMap(t *testing.T) {
	m := modulebus.NewCompatibilityMap(topology.Default())

	if !m.HasRoute("crm", "accounting") {
		t.Error("expected crm->accounting declared")
	}
	// Routes are ordered pairs; the reverse direction is its own entry.
	if !m.HasRoute("accounting", "crm") {
		t.Error("expected accounting->crm declared")
	}
	if m.HasRoute("crm", "hr") {
		t.Error("expected crm->hr undeclared")
	}

	if !m.Allows("crm", "accounting", "deal.won") {
		t.Error("expected deal.won allowed across crm->accounting")
	}
	if m.Allows("crm", "accounting", "lead.created") {
		t.Error("expected lead.created not allowed across crm->accounting")
	}
	if m.Allows("crm", "hr", "deal.won") {
		t.Error("expected nothing allowed across an undeclared pair")
	}

	if types := m.AllowedTypes("crm", "hr"); types != nil {
		t.Errorf("expected nil for undeclared pair, got %v", types)
	}
	types := m.AllowedTypes("crm", "accounting")
	if len(types) != 3 || types[0] != "deal.won" {
		t.Errorf("expected declaration-order types, got %v", types)
	}
}

func TestRouteKey(t *testing.T) {
	if got := modulebus.RouteKey("crm", "accounting"); got != "crm->accounting" {
		t.Errorf("RouteKey = %q", got)
	}
}

func TestCompatibilityMapRoutes(t *testing.T) {
	m := modulebus.NewCompatibilityMap(&topology.Config{
		Version: "1",
		Modules: []topology.Module{
			{Name: "crm"}, {Name: "accounting"}, {Name: "hr"},
		},
		Routes: []topology.Route{
			{Source: "hr", Target: "accounting", Events: []string{"payroll.processed"}},
			{Source: "crm", Target: "accounting", Events: []string{"deal.won"}},
		},
	})

	routes := m.Routes()
	want := []string{"crm->accounting", "hr->accounting"}
	if len(routes) != len(want) {
		t.Fatalf("expected %d routes, got %v", len(want), routes)
	}
	for i := range want {
		if routes[i] != want[i] {
			t.Fatalf("expected sorted routes %v, got %v", want, routes)
		}
	}
}
