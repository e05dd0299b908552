package linker

import "rvld/pkg/model"

// Options configures one Link invocation. The zero value links a
// static executable named a.out entering at _start.
type Options struct {
	// OutputKind selects between a statically linked executable and a
	// shared image (spec.md §4.5's skip-vs-error split on undefined
	// globals, and whether the output sections keep their relocation
	// lists).
	OutputKind model.OutputKind

	// OutputName is copied onto the resulting model.OutputImage's Name
	// field; Link itself never touches the filesystem.
	OutputName string

	// EntrySymbol is looked up in the global symbol table to compute
	// the output image's entry address. Defaults to "_start".
	EntrySymbol string

	// RewriteSkippedRelocations names the choice of what happens to a
	// relocation skipped in shared output because its symbol is
	// undefined. Link does not read this field: whatever its value, such
	// a relocation stays in the shared image's Relocs unchanged, and no
	// rewriting mode exists.
	RewriteSkippedRelocations bool
}

// WithDefaults returns a copy of opts with every unset field filled in.
func (opts Options) WithDefaults() Options {
	if opts.EntrySymbol == "" {
		opts.EntrySymbol = "_start"
	}
	if opts.OutputName == "" {
		opts.OutputName = "a.out"
	}
	return opts
}
