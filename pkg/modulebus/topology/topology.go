// Package topology defines the module topology the bus routes over: which
// modules exist, which event types each may emit, and which event types may
// cross each ordered module boundary.
//
// Topology is configuration, not code. It ships with a default matching the
// standard module suite and can be loaded from YAML and hot-reloaded at
// runtime (see Loader).
package topology

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config declares modules, their event types, and cross-module routes.
type Config struct {
	// Version identifies the schema revision of the file.
	Version string `yaml:"version"`

	// Modules lists every module and the event types it may emit.
	Modules []Module `yaml:"modules"`

	// Routes lists ordered module pairs and the event types allowed to
	// cross each boundary.
	Routes []Route `yaml:"routes"`
}

// Module declares one module's emittable event types.
type Module struct {
	Name   string   `yaml:"name"`
	Events []string `yaml:"events"`
}

// Route declares the event types allowed across one ordered module pair.
type Route struct {
	Source string   `yaml:"source"`
	Target string   `yaml:"target"`
	Events []string `yaml:"events"`
}

// Sentinel errors for topology validation.
var (
	// ErrNoModules indicates a config that declares no modules.
	ErrNoModules = errors.New("topology declares no modules")

	// ErrEmptyModuleName indicates a module entry without a name.
	ErrEmptyModuleName = errors.New("module name is empty")

	// ErrDuplicateModule indicates two module entries share a name.
	ErrDuplicateModule = errors.New("duplicate module name")

	// ErrDuplicateRoute indicates two routes share (source, target).
	ErrDuplicateRoute = errors.New("duplicate route")

	// ErrUnknownModule indicates a route references an undeclared module.
	ErrUnknownModule = errors.New("route references unknown module")

	// ErrSelfRoute indicates a route whose source equals its target.
	ErrSelfRoute = errors.New("route source equals target")
)

// Parse decodes YAML into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses a topology file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks structural integrity: module names are unique and
// non-empty, routes reference declared modules, and no route maps a module
// onto itself. Event-type membership is not checked; the capability listing
// is advisory and uncatalogued types still route.
func (c *Config) Validate() error {
	if len(c.Modules) == 0 {
		return ErrNoModules
	}

	names := make(map[string]struct{}, len(c.Modules))
	for _, m := range c.Modules {
		if m.Name == "" {
			return ErrEmptyModuleName
		}
		if _, exists := names[m.Name]; exists {
			return fmt.Errorf("module %q: %w", m.Name, ErrDuplicateModule)
		}
		names[m.Name] = struct{}{}
	}

	pairs := make(map[string]struct{}, len(c.Routes))
	for _, r := range c.Routes {
		if r.Source == r.Target {
			return fmt.Errorf("route %s->%s: %w", r.Source, r.Target, ErrSelfRoute)
		}
		if _, ok := names[r.Source]; !ok {
			return fmt.Errorf("route %s->%s: source: %w", r.Source, r.Target, ErrUnknownModule)
		}
		if _, ok := names[r.Target]; !ok {
			return fmt.Errorf("route %s->%s: target: %w", r.Source, r.Target, ErrUnknownModule)
		}
		key := r.Source + "->" + r.Target
		if _, exists := pairs[key]; exists {
			return fmt.Errorf("route %s: %w", key, ErrDuplicateRoute)
		}
		pairs[key] = struct{}{}
	}

	return nil
}

// ModuleNames returns the declared module names in declaration order.
func (c *Config) ModuleNames() []string {
	names := make([]string, 0, len(c.Modules))
	for _, m := range c.Modules {
		names = append(names, m.Name)
	}
	return names
}

// Default returns the built-in topology for the standard six-module suite.
// Callers may mutate the returned config freely; each call returns a fresh
// copy.
func Default() *Config {
	return &Config{
		Version: "1",
		Modules: []Module{
			{
				Name: "crm",
				Events: []string{
					"lead.created", "lead.updated",
					"contact.created", "contact.updated",
					"deal.created", "deal.updated", "deal.won", "deal.lost",
					"quote.accepted", "activity.logged",
				},
			},
			{
				Name: "accounting",
				Events: []string{
					"invoice.created", "invoice.updated", "invoice.paid",
					"payment.received", "payment.overdue",
					"expense.created", "budget.exceeded",
				},
			},
			{
				Name: "hr",
				Events: []string{
					"employee.created", "employee.updated", "employee.terminated",
					"leave.requested", "leave.approved",
					"payroll.processed",
				},
			},
			{
				Name: "inventory",
				Events: []string{
					"item.created", "item.updated",
					"stock.received", "stock.out", "stock.low",
					"order.fulfilled",
				},
			},
			{
				Name: "projects",
				Events: []string{
					"project.created", "project.updated", "project.completed",
					"task.created", "task.updated", "task.completed",
					"milestone.reached",
				},
			},
			{
				Name: "marketing",
				Events: []string{
					"campaign.created", "campaign.launched", "campaign.completed",
					"segment.updated", "email.sent",
				},
			},
		},
		Routes: []Route{
			{Source: "crm", Target: "accounting", Events: []string{"deal.won", "quote.accepted", "payment.overdue"}},
			{Source: "crm", Target: "marketing", Events: []string{"lead.created", "contact.created", "deal.lost"}},
			{Source: "crm", Target: "projects", Events: []string{"deal.won"}},
			{Source: "accounting", Target: "crm", Events: []string{"invoice.paid", "payment.received", "payment.overdue"}},
			{Source: "inventory", Target: "accounting", Events: []string{"stock.received", "order.fulfilled"}},
			{Source: "inventory", Target: "crm", Events: []string{"stock.out", "stock.low"}},
			{Source: "hr", Target: "accounting", Events: []string{"payroll.processed", "employee.terminated"}},
			{Source: "hr", Target: "projects", Events: []string{"employee.created", "employee.terminated"}},
			{Source: "projects", Target: "accounting", Events: []string{"project.completed", "milestone.reached"}},
			{Source: "marketing", Target: "crm", Events: []string{"campaign.completed", "segment.updated"}},
		},
	}
}
