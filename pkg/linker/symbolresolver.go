package linker

import (
	"sort"
	"strings"

	"rvld/pkg/errs"
	"rvld/pkg/model"
)

// symbolTables is SymbolResolver's output, consumed by Layout and
// Relocator. global and local both store symbols with Offset relative
// to the per-input-section-name merge buffer and Section set to the
// *input* section name — global gets rewritten to output-section
// coordinates once stage two is known (see rewriteToOutputSections);
// local never does, matching original_source/src/student/ld.cpp, since
// the Relocator resolves a local label through the section-merger
// lookup tables instead.
type symbolTables struct {
	global map[string]*model.Symbol
	local  []map[string]*model.Symbol // indexed by participant order
	output []model.Symbol             // accumulates the final output symbol list
}

func isLocalName(name string) bool {
	return strings.HasPrefix(name, ".")
}

// resolveSymbols builds the global and per-object local symbol tables
// per spec.md §4.3's precedence rules, using merge.mergeOffset to
// rewrite every defined symbol's offset from object-relative to
// merge-buffer-relative.
func resolveSymbols(objs []*model.Object, merge *mergeResult) (*symbolTables, error) {
	t := &symbolTables{
		global: make(map[string]*model.Symbol),
		local:  make([]map[string]*model.Symbol, len(objs)),
	}

	for objIdx, obj := range objs {
		t.local[objIdx] = make(map[string]*model.Symbol)

		for _, sym := range obj.Symbols {
			rewritten := sym
			if sym.Section != "" {
				if start, ok := merge.mergeOffset[objIdx][sym.Section]; ok {
					rewritten.Offset += start
				}
			}

			if isLocalName(sym.Name) || sym.Binding == model.BindLocal {
				rewritten.Binding = model.BindLocal
				t.local[objIdx][sym.Name] = &rewritten
				t.output = append(t.output, rewritten)
				continue
			}

			existing, ok := t.global[sym.Name]
			if !ok {
				copy := rewritten
				t.global[sym.Name] = &copy
				continue
			}

			if err := mergeGlobalSymbol(existing, &rewritten); err != nil {
				return nil, err
			}
		}
	}

	return t, nil
}

// mergeGlobalSymbol applies spec.md §4.3's resolution table to install
// candidate into (or reject it against) existing, which is mutated in
// place when candidate wins.
func mergeGlobalSymbol(existing, candidate *model.Symbol) error {
	switch existing.Binding {
	case model.BindGlobal:
		switch candidate.Binding {
		case model.BindGlobal:
			return errs.New(errs.MultipleDefinition, "symbol %q defined more than once", existing.Name)
		default:
			// weak or undefined candidate: keep existing strong definition.
		}
	case model.BindWeak:
		switch candidate.Binding {
		case model.BindGlobal:
			*existing = *candidate
		default:
			// weak vs weak/undefined: keep existing.
		}
	case model.BindUndefined:
		if candidate.Binding != model.BindUndefined {
			*existing = *candidate
		}
	}
	return nil
}

// rewriteToOutputSections implements spec.md §4.3's post-categorization
// pass: every remaining defined global (and every symbol already copied
// into the output list) has its section/offset translated from input-
// section coordinates to output-section coordinates, using the
// SectionMerger's lookup tables.
func rewriteToOutputSections(t *symbolTables, merge *mergeResult) {
	for _, sym := range t.global {
		rewriteSymbolInPlace(sym, merge)
	}

	for i := range t.output {
		rewriteSymbolInPlace(&t.output[i], merge)
	}

	// t.global is a map; iterating it directly would make the order of
	// the appended defined-global suffix (and hence OutputImage.Symbols)
	// vary between runs. Walk names in sorted order instead, per spec.md
	// §8 property 1 (determinism).
	names := make([]string, 0, len(t.global))
	for name := range t.global {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sym := t.global[name]
		if sym.Binding != model.BindUndefined {
			t.output = append(t.output, *sym)
		}
	}
}

func rewriteSymbolInPlace(sym *model.Symbol, merge *mergeResult) {
	if sym.Section == "" {
		return
	}
	outName, ok := merge.sectionToOutput[sym.Section]
	if !ok {
		return
	}
	sym.Offset += merge.offsetInOutput[sym.Section]
	sym.Section = outName
}
