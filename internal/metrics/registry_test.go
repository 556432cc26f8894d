package metrics

import (
	"errors"
	"testing"
)

func TestRegistryDuplicateTag(t *testing.T) {
	r := NewRegistry()
	info := TagInfo{Tag: "ttft", Header: "TTFT"}
	if err := r.Register(info); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	err := r.Register(info)
	if !errors.Is(err, ErrDuplicateTag) {
		t.Errorf("expected ErrDuplicateTag, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 registered tag, got %d", r.Len())
	}
}

func TestRegistryRejectsEmptyTag(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(TagInfo{}); err == nil {
		t.Error("expected error for empty tag")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(TagInfo{Tag: "ttft"}); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	if r.Lookup("ttft") == nil {
		t.Error("expected accumulator for registered tag")
	}
	if r.Lookup("missing") != nil {
		t.Error("expected nil for unregistered tag")
	}
}

func TestRegistrySummarizeOrder(t *testing.T) {
	r := NewRegistry()
	tags := []string{"zeta", "alpha", "mid"}
	for _, tag := range tags {
		if err := r.Register(TagInfo{Tag: tag}); err != nil {
			t.Fatalf("unexpected register error: %v", err)
		}
	}

	results := r.Summarize()
	if len(results) != len(tags) {
		t.Fatalf("expected %d results, got %d", len(tags), len(results))
	}
	for i, tag := range tags {
		if results[i].Tag != tag {
			t.Errorf("result %d: expected tag %q, got %q", i, tag, results[i].Tag)
		}
	}
}
