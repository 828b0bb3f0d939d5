package graph

import (
	"errors"
	"reflect"
	"testing"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []Node
		wantErr error
		errText string
	}{
		{
			name:  "independent",
			nodes: []Node{{ID: "s1"}, {ID: "s2"}},
		},
		{
			name:  "chain",
			nodes: []Node{{ID: "s1"}, {ID: "s2", DependsOn: []string{"s1"}}},
		},
		{
			name:    "cycle",
			nodes:   []Node{{ID: "s1", DependsOn: []string{"s2"}}, {ID: "s2", DependsOn: []string{"s1"}}},
			wantErr: ErrCycleDetected,
		},
		{
			name:    "unknown dependency",
			nodes:   []Node{{ID: "s1", DependsOn: []string{"s9"}}},
			errText: "step s1 depends on unknown step s9",
		},
		{
			name:    "duplicate",
			nodes:   []Node{{ID: "s1"}, {ID: "s1"}},
			errText: "duplicate step s1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Build(tt.nodes)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
				}
			case tt.errText != "":
				if err == nil || err.Error() != tt.errText {
					t.Fatalf("Build() error = %v, want %q", err, tt.errText)
				}
			default:
				if err != nil {
					t.Fatalf("Build() unexpected error: %v", err)
				}
			}
		})
	}
}

func TestTopologicalSort_ProducersFirst(t *testing.T) {
	g := New()
	err := g.Build([]Node{
		{ID: "email", DependsOn: []string{"complete"}},
		{ID: "complete"},
		{ID: "list"},
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	got, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort() error: %v", err)
	}
	want := []string{"complete", "email", "list"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopologicalSort() = %v, want %v", got, want)
	}
}

func TestBlocked(t *testing.T) {
	g := New()
	if err := g.Build([]Node{
		{ID: "s1"},
		{ID: "s2", DependsOn: []string{"s1"}},
		{ID: "s3"},
	}); err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if _, blocked := g.Blocked("s2"); blocked {
		t.Fatal("s2 blocked before any failure")
	}

	g.MarkFailed("s1")

	dep, blocked := g.Blocked("s2")
	if !blocked || dep != "s1" {
		t.Errorf("Blocked(s2) = %q, %v; want s1, true", dep, blocked)
	}
	if _, blocked := g.Blocked("s3"); blocked {
		t.Error("independent step s3 should not be blocked")
	}
}
