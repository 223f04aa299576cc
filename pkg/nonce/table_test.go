package nonce

import "testing"

func TestNewGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(43620, 0, 0)
	b := NewGenerator(43620, 0, 0)

	if a.CurrentNonce() != b.CurrentNonce() {
		t.Fatalf("two generators built from the same (lot, tid, seed) diverged: %d != %d",
			a.CurrentNonce(), b.CurrentNonce())
	}
}

// TestNewGenerator_ReferenceVector pins spec.md §8 Scenario 1: the exact
// currentNonce for lot=43620, tid=0, seed=0, immediately after
// construction. The expected value was derived by hand-tracing this
// package's seeding arithmetic, not captured from another implementation.
// Determinism tests elsewhere in this file only check that two generators
// agree with each other; this one catches any change to that arithmetic.
func TestNewGenerator_ReferenceVector(t *testing.T) {
	g := NewGenerator(43620, 0, 0)
	const want = 0xd752311c
	if got := g.CurrentNonce(); got != want {
		t.Fatalf("CurrentNonce() = %#x, want %#x", got, want)
	}
}

func TestNewGenerator_DifferentSeedDiverges(t *testing.T) {
	a := NewGenerator(43620, 0, 0)
	b := NewGenerator(43620, 0, 0x1234)

	if a.CurrentNonce() == b.CurrentNonce() {
		t.Fatalf("generators with different seeds produced the same nonce")
	}
}

func TestAdvanceToNextNonce_ChangesCurrent(t *testing.T) {
	g := NewGenerator(43620, 0, 0)
	first := g.CurrentNonce()
	g.AdvanceToNextNonce()
	second := g.CurrentNonce()

	if first == second {
		t.Fatalf("advancing the nonce table did not change currentNonce")
	}
}

func TestAdvanceToNextNonce_ReproducibleFromHistory(t *testing.T) {
	// Property (spec.md §8): currentNonce is reproducible purely from
	// (lot, tid, history of advances/resyncs).
	g1 := NewGenerator(43620, 99, 7)
	g2 := NewGenerator(43620, 99, 7)

	for i := 0; i < 50; i++ {
		g1.AdvanceToNextNonce()
		g2.AdvanceToNextNonce()
		if g1.CurrentNonce() != g2.CurrentNonce() {
			t.Fatalf("iteration %d: generators diverged after identical advance history", i)
		}
	}
}

func TestResync_Reproducible(t *testing.T) {
	g1 := NewGenerator(43620, 99, 0)
	g2 := NewGenerator(43620, 99, 0)

	sent := g1.CurrentNonce()
	g1.Resync(0x3A5C, sent, 5)
	g2.Resync(0x3A5C, sent, 5)

	if g1.CurrentNonce() != g2.CurrentNonce() {
		t.Fatalf("resync with identical inputs produced different nonces")
	}
}

func TestResync_DifferentSyncWordDiverges(t *testing.T) {
	g1 := NewGenerator(43620, 99, 0)
	g2 := NewGenerator(43620, 99, 0)

	sent := g1.CurrentNonce()
	g1.Resync(0x3A5C, sent, 5)
	g2.Resync(0x00FF, sent, 5)

	if g1.CurrentNonce() == g2.CurrentNonce() {
		t.Fatalf("resync with different sync words produced the same nonce")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := NewGenerator(43620, 99, 7)
	g.AdvanceToNextNonce()
	g.AdvanceToNextNonce()

	restored := FromSnapshot(g.Snapshot())
	if restored.CurrentNonce() != g.CurrentNonce() {
		t.Fatalf("restored generator's currentNonce = %d, want %d", restored.CurrentNonce(), g.CurrentNonce())
	}

	g.AdvanceToNextNonce()
	restored.AdvanceToNextNonce()
	if restored.CurrentNonce() != g.CurrentNonce() {
		t.Fatalf("restored generator diverged after an additional advance")
	}
}
