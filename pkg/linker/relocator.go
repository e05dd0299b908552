package linker

import (
	"encoding/binary"
	"math"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"rvld/pkg/errs"
	"rvld/pkg/model"
	"rvld/pkg/utils"
)

// applyRelocations implements spec.md §4.5 over every present output
// section. Sections have no cross-section data dependency at patch
// time (spec.md §5), so each is patched by its own goroutine, bounded
// by errgroup's concurrency limit.
func applyRelocations(opts Options, merge *mergeResult, data map[string][]byte, symtabs *symbolTables, layout *layoutResult) error {
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, name := range merge.order {
		name := name
		g.Go(func() error {
			return relocateSection(opts, name, data[name], merge.relocs[name], merge, symtabs, layout)
		})
	}

	return g.Wait()
}

func relocateSection(opts Options, secName string, data []byte, relocs []taggedRelocation, merge *mergeResult, symtabs *symbolTables, layout *layoutResult) error {
	for _, rel := range relocs {
		if secName == ".bss" {
			// .bss carries no file bytes; spec.md §4.5 skips these
			// unconditionally, before symbol resolution can even fail.
			continue
		}

		P := BaseAddress + layout.vaddrOffset[secName] + rel.Offset

		S, skip, err := resolveRelocationTarget(opts, rel, merge, symtabs, layout)
		if err != nil {
			return err
		}
		if skip {
			continue
		}

		if err := patch(data, rel.Relocation, S, P); err != nil {
			return err
		}
	}
	return nil
}

// resolveRelocationTarget computes S for one relocation, or reports
// that the relocation should be silently skipped (shared-output
// reference to an undefined global).
func resolveRelocationTarget(opts Options, rel taggedRelocation, merge *mergeResult, symtabs *symbolTables, layout *layoutResult) (S uint64, skip bool, err error) {
	if strings.HasPrefix(rel.Symbol, ".") {
		local := symtabs.local[rel.ObjIndex]
		sym, ok := local[rel.Symbol]
		if !ok {
			return 0, false, errs.New(errs.UndefinedLocalSymbol, "local symbol %q not found in originating object", rel.Symbol)
		}

		// sym.Section is still an input-section name (local symbols are
		// never rewritten to output coordinates), so translate it through
		// the section merger's lookup tables, same as a global symbol's
		// one-time rewrite in rewriteSymbolInPlace.
		outName, ok := merge.sectionToOutput[sym.Section]
		utils.Assert(ok) // every section a local symbol belongs to was merged into some output section
		voff := layout.vaddrOffset[outName]
		return BaseAddress + voff + merge.offsetInOutput[sym.Section] + sym.Offset, false, nil
	}

	sym, ok := symtabs.global[rel.Symbol]
	if !ok || sym.Binding == model.BindUndefined {
		if opts.OutputKind == model.OutputShared {
			return 0, true, nil
		}
		return 0, false, errs.New(errs.UndefinedSymbol, "undefined symbol %q", rel.Symbol)
	}

	off, ok := layout.vaddrOffset[sym.Section]
	if !ok {
		return BaseAddress + sym.Offset, false, nil
	}
	return BaseAddress + off + sym.Offset, false, nil
}

// patch applies one relocation's arithmetic, per the table in spec.md
// §4.5.
func patch(data []byte, rel model.Relocation, S, P uint64) error {
	width := rel.Kind.Width()
	if width == 0 {
		return errs.New(errs.UnsupportedRelocation, "relocation kind %v is not supported", rel.Kind)
	}
	if rel.Offset+uint64(width) > uint64(len(data)) {
		return errs.New(errs.RelocationOutOfBounds, "relocation at offset %d extends past section of size %d", rel.Offset, len(data))
	}

	loc := data[rel.Offset:]

	switch rel.Kind {
	case model.RelocAbs32:
		value := int64(S) + rel.Addend
		if value < 0 || value > 0xFFFFFFFF {
			return errs.New(errs.RelocationOverflow, "abs32 value %d out of range", value)
		}
		binary.LittleEndian.PutUint32(loc, uint32(value))

	case model.RelocAbs32Signed:
		value := int64(S) + rel.Addend
		if value < math.MinInt32 || value > math.MaxInt32 {
			return errs.New(errs.RelocationOverflow, "abs32_signed value %d out of range", value)
		}
		binary.LittleEndian.PutUint32(loc, uint32(int32(value)))

	case model.RelocPC32:
		value := int64(S) + rel.Addend - int64(P)
		if value < math.MinInt32 || value > math.MaxInt32 {
			return errs.New(errs.RelocationOverflow, "pcrel32 value %d out of range", value)
		}
		binary.LittleEndian.PutUint32(loc, uint32(int32(value)))

	case model.RelocAbs64:
		value := uint64(int64(S) + rel.Addend)
		binary.LittleEndian.PutUint64(loc, value)

	default:
		return errs.New(errs.UnsupportedRelocation, "relocation kind %v is not supported", rel.Kind)
	}

	return nil
}
