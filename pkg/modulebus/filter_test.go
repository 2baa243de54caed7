package modulebus_test

import (
	"testing"

	"github.com/coreflow360/modulebus/pkg/modulebus"
	"github.com/coreflow360/modulebus/pkg/modulebus/entitlement"
)

func TestFilterBySubscription(t *testing.T) {
	events := []modulebus.Event{
		// Same-module, routine: always kept.
		{Type: "lead.created", SourceModule: "crm", TenantID: "t1"},
		// Cross-module with both modules active: kept.
		{Type: "deal.won", SourceModule: "crm", TargetModule: "accounting", TenantID: "t1"},
		// Cross-module with the target inactive: filtered.
		{Type: "deal.won", SourceModule: "crm", TargetModule: "projects", TenantID: "t1"},
		// Cross-module with the source inactive: filtered.
		{Type: "payroll.processed", SourceModule: "hr", TargetModule: "accounting", TenantID: "t1"},
		// Same-module high-value type with the source active: kept.
		{Type: "sales.analytics.ready", SourceModule: "crm", TenantID: "t1"},
		// Same-module high-value type with the source inactive: filtered.
		{Type: "churn.prediction.ready", SourceModule: "marketing", TenantID: "t1"},
	}

	active := entitlement.NewModuleSet("crm", "accounting")
	got := modulebus.FilterBySubscription(events, active)

	wantTypes := []string{"lead.created", "deal.won", "sales.analytics.ready"}
	if len(got) != len(wantTypes) {
		t.Fatalf("expected %d events kept, got %d: %+v", len(wantTypes), len(got), got)
	}
	for i, evt := range got {
		if evt.Type != wantTypes[i] {
			t.Errorf("kept[%d] = %s, want %s", i, evt.Type, wantTypes[i])
		}
	}
}

func TestFilterBySubscriptionEmptyEntitlements(t *testing.T) {
	events := []modulebus.Event{
		{Type: "activity.logged", SourceModule: "crm", TenantID: "t1"},
		{Type: "deal.won", SourceModule: "crm", TargetModule: "accounting", TenantID: "t1"},
	}

	got := modulebus.FilterBySubscription(events, entitlement.NewModuleSet())
	if len(got) != 1 || got[0].Type != "activity.logged" {
		t.Errorf("expected only the ungated event kept, got %+v", got)
	}
}

func TestFilterBySubscriptionCustomClassifier(t *testing.T) {
	c := modulebus.NewClassifier(nil, []string{"forecast"})

	events := []modulebus.Event{
		{Type: "sales.forecast.ready", SourceModule: "crm", TenantID: "t1"},
		{Type: "sales.analytics.ready", SourceModule: "crm", TenantID: "t1"},
	}

	// No modules active: only the type gated by the custom keyword drops.
	got := c.FilterBySubscription(events, entitlement.NewModuleSet())
	if len(got) != 1 || got[0].Type != "sales.analytics.ready" {
		t.Errorf("expected custom keyword to gate forecast only, got %+v", got)
	}
}
