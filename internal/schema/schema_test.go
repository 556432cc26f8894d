package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/albscui/aiperf/internal/metrics"
)

func writeSchema(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return path
}

func TestDefaultTags(t *testing.T) {
	tags := Default()
	if len(tags) == 0 {
		t.Fatal("expected built-in tags")
	}
	seen := make(map[string]struct{})
	for _, info := range tags {
		if info.Tag == "" || info.Header == "" || info.Unit == "" {
			t.Errorf("incomplete built-in tag: %+v", info)
		}
		if _, ok := seen[info.Tag]; ok {
			t.Errorf("duplicate built-in tag %q", info.Tag)
		}
		seen[info.Tag] = struct{}{}
	}
	if _, ok := seen["time_to_first_token"]; !ok {
		t.Error("expected time_to_first_token in built-in tags")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	tags, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != len(Default()) {
		t.Errorf("expected %d default tags, got %d", len(Default()), len(tags))
	}
}

func TestLoadFile(t *testing.T) {
	path := writeSchema(t, `
metrics:
  - tag: gpu_utilization
    header: GPU Utilization
    unit: percent
  - tag: queue_depth
    unit: requests
`)
	tags, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
	if tags[0].Tag != "gpu_utilization" || tags[0].Header != "GPU Utilization" {
		t.Errorf("unexpected first tag: %+v", tags[0])
	}
	// Missing display metadata falls back sensibly.
	if tags[1].Header != "queue_depth" {
		t.Errorf("expected header to default to tag, got %q", tags[1].Header)
	}
	if tags[1].DisplayUnit != "requests" {
		t.Errorf("expected display unit to default to unit, got %q", tags[1].DisplayUnit)
	}
}

func TestLoadRejectsDuplicateTags(t *testing.T) {
	path := writeSchema(t, `
metrics:
  - tag: latency
    unit: ms
  - tag: latency
    unit: ms
`)
	_, err := Load(path)
	if !errors.Is(err, metrics.ErrDuplicateTag) {
		t.Errorf("expected ErrDuplicateTag, got %v", err)
	}
}

func TestLoadRejectsEmptySchema(t *testing.T) {
	path := writeSchema(t, "metrics: []\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for schema with no metrics")
	}
}

func TestLoadRejectsMissingTag(t *testing.T) {
	path := writeSchema(t, `
metrics:
  - header: No Tag
    unit: ms
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for metric without tag")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing schema file")
	}
}
