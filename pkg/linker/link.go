// Package linker implements the four tightly coupled subsystems of
// the static-linker core: archive member selection, section merging
// and layout, symbol resolution, and relocation. Link is the single
// entry point; everything else in the package is an internal stage.
package linker

import "rvld/pkg/model"

// Link runs the full pipeline — ArchiveResolver, SectionMerger,
// SymbolResolver, Layout, Relocator — over objs and returns the
// resulting OutputImage, or the first fatal error any stage signals.
func Link(objs []*model.Object, opts Options) (*model.OutputImage, error) {
	opts = opts.WithDefaults()

	participants, err := resolveArchives(objs)
	if err != nil {
		return nil, err
	}

	merge := mergeSections(participants)

	symtabs, err := resolveSymbols(participants, merge)
	if err != nil {
		return nil, err
	}
	rewriteToOutputSections(symtabs, merge)

	layout := computeLayout(merge)

	data := make(map[string][]byte, len(merge.order))
	for _, name := range merge.order {
		buf := make([]byte, len(merge.data[name]))
		copy(buf, merge.data[name])
		data[name] = buf
	}

	if err := applyRelocations(opts, merge, data, symtabs, layout); err != nil {
		return nil, err
	}

	shdrs, phdrs := buildHeaders(merge, layout)

	img := &model.OutputImage{
		Kind:           opts.OutputKind,
		Name:           opts.OutputName,
		Entry:          entryAddress(opts, symtabs.global, layout),
		Sections:       make(map[string]*model.Section, len(merge.order)),
		Symbols:        symtabs.output,
		SectionHeaders: shdrs,
		ProgramHeaders: phdrs,
	}

	for _, name := range merge.order {
		img.Sections[name] = &model.Section{
			Name:   name,
			Data:   data[name],
			Relocs: outputRelocs(opts, merge.relocs[name]),
		}
	}

	return img, nil
}

// outputRelocs strips the merge-time object-index tag back off for
// the OutputImage, and implements spec.md §4.5's closing rule: an
// executable image's sections carry no relocation list once patched,
// while a shared image keeps every relocation of each section, patched
// or skipped, with offsets relative to its output section.
func outputRelocs(opts Options, tagged []taggedRelocation) []model.Relocation {
	if opts.OutputKind != model.OutputShared {
		return nil
	}
	out := make([]model.Relocation, len(tagged))
	for i, r := range tagged {
		out[i] = r.Relocation
	}
	return out
}
