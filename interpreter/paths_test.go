package interpreter_test

import (
	"reflect"
	"testing"
)

func TestAddJars_ProtocolOrder(t *testing.T) {
	itp, eng := startedInterpreter(t, nil)
	eng.paths.entries = []string{"base.jar", "a.jar"}

	if err := itp.AddJars("a.jar", "b.jar", "a.jar"); err != nil {
		t.Fatalf("AddJars failed: %v", err)
	}

	if eng.reinits != 1 {
		t.Errorf("got %d reinitialization passes, want 1", eng.reinits)
	}

	// Every archive reaches the side-loader, duplicates included.
	if !reflect.DeepEqual(eng.sideLoaded, []string{"a.jar", "b.jar", "a.jar"}) {
		t.Errorf("side-loaded %v, want all given archives", eng.sideLoaded)
	}

	// Merged path is a deduplicated, order-preserving union.
	want := []string{"base.jar", "a.jar", "b.jar"}
	if !reflect.DeepEqual(eng.paths.entries, want) {
		t.Errorf("installed path %v, want %v", eng.paths.entries, want)
	}

	// Only the genuinely new entries are invalidated.
	if len(eng.paths.invalidated) != 1 || !reflect.DeepEqual(eng.paths.invalidated[0], []string{"b.jar"}) {
		t.Errorf("invalidated %v, want exactly [b.jar]", eng.paths.invalidated)
	}
}

func TestAddJars_BindingsSurviveHotSwap(t *testing.T) {
	itp, _ := startedInterpreter(t, nil)

	if err := itp.Bind("x", "Int", 42, false); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := itp.Bind("tmp", "Session", "s", true); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if err := itp.AddJars("extra.jar"); err != nil {
		t.Fatalf("AddJars failed: %v", err)
	}

	v, ok, err := itp.Read("x")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !ok || v != 42 {
		t.Errorf("binding lost across hot-swap: got (%v, %v), want (42, true)", v, ok)
	}
}

func TestAddJars_RebindCarriesTransience(t *testing.T) {
	itp, eng := startedInterpreter(t, nil)

	if err := itp.Bind("proxy", "io.Writer", "w", true); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := itp.AddJars("extra.jar"); err != nil {
		t.Fatalf("AddJars failed: %v", err)
	}

	b, ok := eng.ns.Lookup("proxy")
	if !ok {
		t.Fatal("proxy binding lost")
	}
	if !b.Transient {
		t.Error("rebind dropped the transient marker")
	}
}

func TestAddJars_UnresolvableTermSkippedNotFatal(t *testing.T) {
	itp, eng := startedInterpreter(t, nil)

	if err := itp.Bind("good", "Int", 1, false); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := itp.Bind("gone", "Int", 2, false); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	eng.ns.failLookup["gone"] = true
	before := len(eng.ns.bindCalls)

	if err := itp.AddJars("extra.jar"); err != nil {
		t.Fatalf("AddJars failed despite unresolvable term: %v", err)
	}

	rebinds := eng.ns.bindCalls[before:]
	if !reflect.DeepEqual(rebinds, []string{"good"}) {
		t.Errorf("rebound %v, want only [good]", rebinds)
	}
}

func TestAddJars_NoArchivesIsNoOp(t *testing.T) {
	itp, eng := startedInterpreter(t, nil)

	if err := itp.AddJars(); err != nil {
		t.Fatalf("AddJars failed: %v", err)
	}
	if eng.reinits != 0 {
		t.Errorf("empty AddJars triggered %d reinitializations, want 0", eng.reinits)
	}
}

func TestMergeSemantics_FirstOccurrenceWins(t *testing.T) {
	itp, eng := startedInterpreter(t, nil)
	eng.paths.entries = []string{"a.jar", "b.jar", "a.jar"}

	if err := itp.AddJars("c.jar", "b.jar"); err != nil {
		t.Fatalf("AddJars failed: %v", err)
	}

	want := []string{"a.jar", "b.jar", "c.jar"}
	if !reflect.DeepEqual(eng.paths.entries, want) {
		t.Errorf("installed path %v, want %v", eng.paths.entries, want)
	}
}
