package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/finch-ai/finch/internal/domain"
)

func noopSpec(name string) *Spec {
	return &Spec{
		Name:    name,
		Handler: func(_ context.Context, _ Args) (any, error) { return nil, nil },
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(noopSpec("echo")); err != nil {
		t.Fatal(err)
	}

	spec, err := reg.Lookup("echo")
	if err != nil {
		t.Fatal(err)
	}
	if spec.Name != "echo" {
		t.Errorf("unexpected spec %q", spec.Name)
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 tool, got %d", reg.Len())
	}
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(noopSpec("echo")); err != nil {
		t.Fatal(err)
	}
	err := reg.Register(noopSpec("echo"))
	if !errors.Is(err, domain.ErrDuplicateTool) {
		t.Errorf("expected ErrDuplicateTool, got %v", err)
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Lookup("nope"); !errors.Is(err, domain.ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistryRejectsInvalidSpecs(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(nil); err == nil {
		t.Error("expected error for nil spec")
	}
	if err := reg.Register(&Spec{Name: "broken"}); err == nil {
		t.Error("expected error for missing handler")
	}
}

func TestRegistryListSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(noopSpec(name)); err != nil {
			t.Fatal(err)
		}
	}

	got := reg.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("expected %d specs, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, got[i].Name)
		}
	}
}
