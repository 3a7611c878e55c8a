package interpreter

import (
	"fmt"

	"github.com/hunglin/spark-kernel/observability"
)

// AddJars merges the given archive locations into the engine's resolution
// path and the runtime side-loader, then re-establishes previously defined
// bindings. Requires a started session. The steps are strictly ordered: the
// symbol-table reinitialization in step 1 orphans existing definitions, so
// the rebind pass must run last to repair that side effect.
//
// The engine mutex excludes an in-flight unit for the whole protocol, so
// calling AddJars concurrently with Interpret is safe (the hot-swap simply
// waits for the unit to finish).
func (itp *Interpreter) AddJars(archives ...string) error {
	itp.mu.Lock()
	if itp.state != Started {
		itp.mu.Unlock()
		return ErrNotStarted
	}
	eng := itp.eng
	itp.mu.Unlock()

	if len(archives) == 0 {
		return nil
	}

	itp.engineMu.Lock()
	defer itp.engineMu.Unlock()

	ns := eng.Namespace()
	defined := ns.Names()

	// Step 1: symbol-table reinitialization so the new archives resolve as
	// first-class definitions, not just dynamically loaded classes.
	if err := eng.Reinitialize(); err != nil {
		return fmt.Errorf("failed to reinitialize engine: %w", err)
	}

	// Step 2: make the archives reachable at execution time.
	if err := eng.SideLoad(archives...); err != nil {
		return fmt.Errorf("failed to side-load archives: %w", err)
	}

	// Steps 3+4: install the merged resolution path and invalidate cached
	// metadata for exactly the newly added entries.
	paths := eng.Paths()
	merged, added := mergePaths(paths.Entries(), archives)
	paths.SetEntries(merged)
	if len(added) > 0 {
		paths.Invalidate(added)
	}

	// Step 5: re-establish every previously defined top-level binding.
	// Unresolvable terms are skipped, not fatal.
	skipped := 0
	for _, name := range defined {
		b, ok := ns.Lookup(name)
		if !ok {
			skipped++
			itp.emit(EventRebindSkipped, observability.LevelWarning, map[string]any{"name": name})
			continue
		}
		if err := ns.Bind(b); err != nil {
			skipped++
			itp.emit(EventRebindSkipped, observability.LevelWarning, map[string]any{
				"name":  name,
				"error": err.Error(),
			})
		}
	}

	itp.emit(EventJarsAdded, observability.LevelInfo, map[string]any{
		"archives": len(archives),
		"added":    len(added),
		"rebound":  len(defined) - skipped,
		"skipped":  skipped,
	})
	return nil
}

// mergePaths returns the deduplicated union of current and archives,
// preserving relative order with first occurrence winning, plus the entries
// that were not already present.
func mergePaths(current, archives []string) (merged, added []string) {
	seen := make(map[string]struct{}, len(current)+len(archives))
	merged = make([]string, 0, len(current)+len(archives))

	for _, e := range current {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		merged = append(merged, e)
	}
	for _, e := range archives {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		merged = append(merged, e)
		added = append(added, e)
	}
	return merged, added
}
