package api

import (
	"testing"

	"github.com/ShayCichocki/taskflow/internal/registry"
)

func TestToolDefinitions_MirrorRegistry(t *testing.T) {
	reg := registry.MustLoad()
	tools := ToolDefinitions(reg)

	descriptors := reg.List()
	if len(tools) != len(descriptors) {
		t.Fatalf("ToolDefinitions count = %d, want %d", len(tools), len(descriptors))
	}
	for i, d := range descriptors {
		tool := tools[i].OfTool
		if tool == nil {
			t.Fatalf("tool %d is not a custom tool", i)
		}
		if tool.Name != d.Name {
			t.Errorf("tool %d = %s, want %s", i, tool.Name, d.Name)
		}
	}
}

func TestToolDefinitions_RequiredParams(t *testing.T) {
	for _, tool := range ToolDefinitions(registry.MustLoad()) {
		if tool.OfTool.Name != "send_email" {
			continue
		}
		want := map[string]bool{"to": true, "subject": true, "body": true}
		if len(tool.OfTool.InputSchema.Required) != len(want) {
			t.Fatalf("send_email required = %v", tool.OfTool.InputSchema.Required)
		}
		for _, name := range tool.OfTool.InputSchema.Required {
			if !want[name] {
				t.Errorf("unexpected required param %q", name)
			}
		}
		return
	}
	t.Fatal("send_email not offered")
}
