package gaussconn

import "testing"

func TestFingerprintDistinguishesParameterOIDs(t *testing.T) {
	a := fingerprint("SELECT $1", []uint32{23})
	b := fingerprint("SELECT $1", []uint32{25})
	if a == b {
		t.Fatalf("fingerprints should differ by parameter OID: %q == %q", a, b)
	}
	if fingerprint("SELECT $1", []uint32{23}) != a {
		t.Fatalf("fingerprint should be deterministic for identical input")
	}
}

func TestRecordUseCrossesThresholdExactlyOnce(t *testing.T) {
	c := newStmtCache(8, 3)
	fp := "fp1"
	if c.RecordUse(fp) {
		t.Fatalf("use 1 should not cross threshold")
	}
	if c.RecordUse(fp) {
		t.Fatalf("use 2 should not cross threshold")
	}
	if !c.RecordUse(fp) {
		t.Fatalf("use 3 should cross AutoPrepareMinUsages=3")
	}
}

func TestRecordUseDisabledWhenMaxAutoPrepareIsZero(t *testing.T) {
	c := newStmtCache(0, 1)
	if c.RecordUse("fp") {
		t.Fatalf("RecordUse should never promote when MaxAutoPrepare<=0")
	}
}

func TestRecordUseIgnoresAlreadyPromotedStatement(t *testing.T) {
	c := newStmtCache(8, 1)
	c.Promote(&PreparedStatement{Fingerprint: "fp", Name: "_p0"})
	if c.RecordUse("fp") {
		t.Fatalf("an already-cached statement should not re-trigger promotion")
	}
}

func TestPromoteAndLookup(t *testing.T) {
	c := newStmtCache(8, 1)
	sd := &PreparedStatement{Fingerprint: "fp", Name: "_p0"}
	c.Promote(sd)

	got := c.Lookup("fp")
	if got != sd {
		t.Fatalf("Lookup should return the promoted statement")
	}
	if c.Lookup("missing") != nil {
		t.Fatalf("Lookup of an unpromoted fingerprint should return nil")
	}
}

func TestPromoteEvictsLeastRecentlyUsed(t *testing.T) {
	c := newStmtCache(2, 1)
	a := &PreparedStatement{Fingerprint: "a", Name: "_p0"}
	b := &PreparedStatement{Fingerprint: "b", Name: "_p1"}
	c.Promote(a)
	c.Promote(b)

	// touch "a" so "b" becomes the least recently used entry
	c.Lookup("a")

	third := &PreparedStatement{Fingerprint: "c", Name: "_p2"}
	c.Promote(third)

	if c.Lookup("b") != nil {
		t.Fatalf("expected b to be evicted as least recently used")
	}
	if c.Lookup("a") == nil || c.Lookup("c") == nil {
		t.Fatalf("expected a and c to remain cached")
	}

	evicted := c.TakeEvicted()
	if len(evicted) != 1 || evicted[0].Fingerprint != "b" {
		t.Fatalf("expected TakeEvicted to report b, got %+v", evicted)
	}
	if len(c.TakeEvicted()) != 0 {
		t.Fatalf("TakeEvicted should drain the pending list")
	}
}

func TestInvalidateAllClearsCacheAndPending(t *testing.T) {
	c := newStmtCache(8, 2)
	c.Promote(&PreparedStatement{Fingerprint: "a", Name: "_p0"})
	c.RecordUse("b")

	all := c.InvalidateAll()
	if len(all) != 1 || all[0].Fingerprint != "a" {
		t.Fatalf("expected InvalidateAll to return the one cached statement, got %+v", all)
	}
	if c.Len() != 0 {
		t.Fatalf("expected cache to be empty after InvalidateAll")
	}
	if c.RecordUse("b") {
		t.Fatalf("pending usage counters should also be cleared by InvalidateAll")
	}
}

func TestNextStatementNameIsSequentialAndUnique(t *testing.T) {
	c := newStmtCache(8, 1)
	first := c.NextStatementName()
	second := c.NextStatementName()
	if first == second {
		t.Fatalf("expected distinct statement names, got %q twice", first)
	}
	if first != "_p0" || second != "_p1" {
		t.Fatalf("expected _p0/_p1 naming convention, got %q/%q", first, second)
	}
}
