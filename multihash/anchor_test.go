package multihash

import (
	"testing"

	"github.com/grovedb/grovedb/hash"
)

func TestStateRootRoundTrip(t *testing.T) {
	root := hash.Blake3([]byte("grove root"))

	wrapped, err := NewStateRoot(root)
	if err != nil {
		t.Fatalf("NewStateRoot: %v", err)
	}
	if len(wrapped) != 34 {
		t.Errorf("expected 34-byte multihash, got %d", len(wrapped))
	}

	if err := wrapped.Verify(root); err != nil {
		t.Errorf("Verify: %v", err)
	}

	other := hash.Blake3([]byte("different"))
	if err := wrapped.Verify(other); err == nil {
		t.Errorf("Verify should fail against a different root")
	}
}

func TestCommitmentAnchorRoundTrip(t *testing.T) {
	anchor := hash.Blake3([]byte("anchor"))

	wrapped, err := NewCommitmentAnchor(anchor)
	if err != nil {
		t.Fatalf("NewCommitmentAnchor: %v", err)
	}

	got, err := wrapped.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if got != anchor {
		t.Errorf("Digest round trip = %s, want %s", got, anchor)
	}
}
