package provider

import "testing"

func TestCreatingRegistryBeginContainsEnd(t *testing.T) {
	r := NewCreatingRegistry()
	if r.Contains("alpha-bravo-charlie-delta-echo") {
		t.Fatalf("expected empty registry to not contain id")
	}

	end := r.Begin("alpha-bravo-charlie-delta-echo")
	if !r.Contains("alpha-bravo-charlie-delta-echo") {
		t.Fatalf("expected registry to contain id after Begin")
	}

	end()
	if r.Contains("alpha-bravo-charlie-delta-echo") {
		t.Fatalf("expected registry to no longer contain id after end()")
	}
}
