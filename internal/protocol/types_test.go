package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewIdentity(t *testing.T) {
	id := NewIdentity("worker", 5, 7, 5, 3)

	if id.Name() != "worker" {
		t.Errorf("Name = %q, want %q", id.Name(), "worker")
	}
	if diff := cmp.Diff([]Tag{5, 7, 3}, id.Subscriptions()); diff != "" {
		t.Errorf("Subscriptions mismatch (-want +got):\n%s", diff)
	}
	if !id.Subscribes(7) {
		t.Error("expected Subscribes(7)")
	}
	if id.Subscribes(6) {
		t.Error("did not expect Subscribes(6)")
	}
}

func TestIdentitySubscriptionsIsCopy(t *testing.T) {
	id := NewIdentity("worker", 5)
	subs := id.Subscriptions()
	subs[0] = 99

	if !id.Subscribes(5) || id.Subscribes(99) {
		t.Error("mutating Subscriptions result changed the identity")
	}
}

func TestTag(t *testing.T) {
	tests := []struct {
		tag      Tag
		reserved bool
		str      string
	}{
		{TagLog, true, "log"},
		{TagError, true, "error"},
		{TagIdentify, true, "identify"},
		{5, false, "5"},
	}

	for _, tt := range tests {
		if got := tt.tag.Reserved(); got != tt.reserved {
			t.Errorf("Tag(%d).Reserved() = %v, want %v", int(tt.tag), got, tt.reserved)
		}
		if got := tt.tag.String(); got != tt.str {
			t.Errorf("Tag(%d).String() = %q, want %q", int(tt.tag), got, tt.str)
		}
	}
}
