package linker

import (
	"sort"
	"strings"

	"rvld/pkg/model"
)

// taggedRelocation carries a model.Relocation plus the index (within the
// resolver's participant slice) of the object that originally contained
// it. Recording this at merge time, rather than recovering it later by
// range search, is the forward-tagged back-reference spec.md §9
// recommends over the source's linear scan.
type taggedRelocation struct {
	model.Relocation
	ObjIndex int
}

// mergeResult is everything SectionMerger exposes to SymbolResolver,
// Layout, and Relocator.
type mergeResult struct {
	order           []string // present standard output sections, in spec.md §4.4 order
	data            map[string][]byte
	memSize         map[string]uint64 // == len(data[name]) except for .bss
	relocs          map[string][]taggedRelocation
	sectionToOutput map[string]string // input section name -> output section name
	offsetInOutput  map[string]uint64 // input section name -> offset within its output section
	mergeOffset     []map[string]uint64 // [objIndex][input section name] -> offset within the per-name merge buffer
}

// mergeSections implements spec.md §4.2's two-stage merge over objs,
// which must already be the resolver's flat participant list in input
// order.
func mergeSections(objs []*model.Object) *mergeResult {
	names := collectSectionNames(objs)

	// Stage one: concatenate each input section name's bytes across all
	// participating objects, in object order, and rewrite that object's
	// relocations for the name to be relative to the merged buffer.
	buf := make(map[string][]byte, len(names))
	bufRelocs := make(map[string][]taggedRelocation, len(names))
	mergeOffset := make([]map[string]uint64, len(objs))
	for i := range objs {
		mergeOffset[i] = make(map[string]uint64)
	}

	for _, name := range names {
		for objIdx, obj := range objs {
			sec, ok := obj.Sections[name]
			if !ok {
				continue
			}
			start := uint64(len(buf[name]))
			mergeOffset[objIdx][name] = start
			buf[name] = append(buf[name], sec.Data...)

			for _, r := range sec.Relocs {
				r.Offset += start
				bufRelocs[name] = append(bufRelocs[name], taggedRelocation{
					Relocation: r,
					ObjIndex:   objIdx,
				})
			}
		}
	}

	// Stage two: categorize merged input-section buffers into the four
	// standard output sections by name prefix, in ascending
	// lexicographic input-section order.
	result := &mergeResult{
		data:            make(map[string][]byte),
		memSize:         make(map[string]uint64),
		relocs:          make(map[string][]taggedRelocation),
		sectionToOutput: make(map[string]string),
		offsetInOutput:  make(map[string]uint64),
		mergeOffset:     mergeOffset,
	}

	matched := make(map[string]bool, len(names))
	for _, outName := range model.StandardSectionOrder {
		for _, name := range names {
			if !strings.HasPrefix(name, outName) {
				continue
			}
			matched[name] = true
			placeInOutput(result, outName, name, buf[name], bufRelocs[name])
		}
	}

	// Any input section not matched by a standard prefix lands at the
	// end of .data.
	for _, name := range names {
		if matched[name] {
			continue
		}
		placeInOutput(result, ".data", name, buf[name], bufRelocs[name])
	}

	for _, outName := range model.StandardSectionOrder {
		if _, ok := result.data[outName]; ok {
			result.order = append(result.order, outName)
			continue
		}
		if _, ok := result.memSize[outName]; ok {
			result.order = append(result.order, outName)
		}
	}

	return result
}

// placeInOutput appends one merged input-section buffer to the named
// output section, rewriting its relocations' offsets and recording the
// section-merger lookup tables spec.md §4.2 promises later stages.
func placeInOutput(r *mergeResult, outName, inName string, data []byte, relocs []taggedRelocation) {
	// .bss never accumulates file bytes, so its offset-within-output must
	// come from the running memory size instead of len(r.data[outName])
	// — otherwise every .bss-prefixed input section after the first
	// lands at offset 0, per spec.md §4.2's "skipping bytes for .bss but
	// still accumulating size" rule.
	var offset uint64
	if outName == ".bss" {
		offset = r.memSize[outName]
	} else {
		offset = uint64(len(r.data[outName]))
	}
	r.sectionToOutput[inName] = outName
	r.offsetInOutput[inName] = offset

	if outName != ".bss" {
		if r.data[outName] == nil {
			r.data[outName] = []byte{}
		}
		r.data[outName] = append(r.data[outName], data...)
	}
	r.memSize[outName] += uint64(len(data))

	for _, rel := range relocs {
		rel.Offset += offset
		r.relocs[outName] = append(r.relocs[outName], rel)
	}
}

// collectSectionNames returns every distinct input-section name present
// in objs, sorted ascending — the order spec.md §4.2 stage two requires,
// and a convenient deterministic order for stage one too.
func collectSectionNames(objs []*model.Object) []string {
	set := make(map[string]bool)
	for _, obj := range objs {
		for name := range obj.Sections {
			set[name] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
