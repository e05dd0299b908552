// Package lister implements the symbol-listing secondary tool: it
// shares the model package with the linker core and exercises it from
// the read side, grounded on the same symbol-classification rules the
// core's resolver enforces on the write side.
package lister

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"rvld/pkg/model"
)

// List writes one line per symbol in syms to w, classified and sorted
// per spec.md §4.6.
func List(w io.Writer, syms []model.Symbol) error {
	sorted := make([]model.Symbol, len(syms))
	copy(sorted, syms)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		aUndef := a.Binding == model.BindUndefined
		bUndef := b.Binding == model.BindUndefined
		if aUndef != bUndef {
			return bUndef
		}
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		return a.Offset < b.Offset
	})

	for _, sym := range sorted {
		address := sym.Offset
		if sym.Binding == model.BindUndefined {
			address = 0
		}
		if _, err := fmt.Fprintf(w, "%016x %c %s\n", address, classify(sym), sym.Name); err != nil {
			return err
		}
	}
	return nil
}

// classify implements spec.md §4.6's classification-character rule.
func classify(sym model.Symbol) byte {
	if sym.Binding == model.BindUndefined {
		return 'U'
	}

	var base byte = '?'
	switch {
	case strings.HasPrefix(sym.Section, ".text"):
		base = 'T'
	case strings.HasPrefix(sym.Section, ".data"):
		base = 'D'
	case strings.HasPrefix(sym.Section, ".bss"):
		base = 'B'
	case strings.HasPrefix(sym.Section, ".rodata"):
		base = 'R'
	}

	switch sym.Binding {
	case model.BindLocal:
		if base == '?' {
			return base
		}
		return base + ('a' - 'A')
	case model.BindWeak:
		if base == 'T' {
			return 'W'
		}
		if base == 'D' || base == 'B' || base == 'R' {
			return 'V'
		}
		return base
	default:
		return base
	}
}
