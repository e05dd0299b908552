package linker

import (
	"rvld/pkg/model"
	"rvld/pkg/utils"
)

const (
	// BaseAddress is the fixed virtual address at which the output
	// image's first output section begins, per spec.md §6.
	BaseAddress = 0x400000
	// PageSize is the alignment Layout rounds every output section's
	// virtual address up to, per spec.md §6.
	PageSize = 4096
)

// layoutResult is what Layout hands to Relocator and to OutputImage
// assembly: each present output section's virtual-address offset (from
// BaseAddress), file offset, and memory size.
type layoutResult struct {
	vaddrOffset map[string]uint64
	fileOffset  map[string]uint64
	memSize     map[string]uint64
}

// computeLayout implements spec.md §4.4: walk the present output
// sections in fixed order, page-aligning the virtual-address cursor
// between each, and advancing the file-offset cursor by on-disk size
// only (no page alignment of file offsets — spec.md §9's resolved open
// question).
func computeLayout(merge *mergeResult) *layoutResult {
	l := &layoutResult{
		vaddrOffset: make(map[string]uint64),
		fileOffset:  make(map[string]uint64),
		memSize:     make(map[string]uint64),
	}

	var vaddrCursor, fileCursor uint64
	for _, name := range merge.order {
		vaddrCursor = utils.AlignTo(vaddrCursor, PageSize)
		l.vaddrOffset[name] = vaddrCursor

		size := merge.memSize[name]
		l.memSize[name] = size

		if name == ".bss" {
			l.fileOffset[name] = 0
		} else {
			l.fileOffset[name] = fileCursor
			fileCursor += size
		}

		vaddrCursor += size
	}

	return l
}

// entryAddress implements spec.md §4.4's entry-point rule.
func entryAddress(opts Options, global map[string]*model.Symbol, layout *layoutResult) uint64 {
	if sym, ok := global[opts.EntrySymbol]; ok && sym.Binding != model.BindUndefined {
		if off, ok := layout.vaddrOffset[sym.Section]; ok {
			return BaseAddress + off + sym.Offset
		}
		return BaseAddress + sym.Offset
	}

	if off, ok := layout.vaddrOffset[".text"]; ok {
		return BaseAddress + off
	}
	return BaseAddress
}

// buildHeaders emits the section and program headers spec.md §4.4
// requires, one pair per present output section, with the permission
// flags from the table in spec.md §4.4.
func buildHeaders(merge *mergeResult, layout *layoutResult) ([]model.SectionHeader, []model.ProgramHeader) {
	shdrs := make([]model.SectionHeader, 0, len(merge.order))
	phdrs := make([]model.ProgramHeader, 0, len(merge.order))

	for _, name := range merge.order {
		vaddr := BaseAddress + layout.vaddrOffset[name]
		flags := model.StandardPermissions(name)

		shdrs = append(shdrs, model.SectionHeader{
			Name:       name,
			VAddr:      vaddr,
			FileOffset: layout.fileOffset[name],
			Size:       layout.memSize[name],
			Flags:      flags,
		})
		phdrs = append(phdrs, model.ProgramHeader{
			Name:       name,
			VAddr:      vaddr,
			FileOffset: layout.fileOffset[name],
			Size:       layout.memSize[name],
			Flags:      flags,
		})
	}

	return shdrs, phdrs
}
