package linker

import (
	"bytes"
	"testing"

	"rvld/pkg/model"
)

func section(name string, data []byte, relocs ...model.Relocation) *model.Section {
	return &model.Section{Name: name, Data: data, Relocs: relocs}
}

func TestMergeSectionsConcatenatesInInputOrder(t *testing.T) {
	a := &model.Object{Name: "a.o", Sections: map[string]*model.Section{
		".text": section(".text", []byte{1, 2, 3}),
	}}
	b := &model.Object{Name: "b.o", Sections: map[string]*model.Section{
		".text": section(".text", []byte{4, 5}),
	}}

	merge := mergeSections([]*model.Object{a, b})

	want := []byte{1, 2, 3, 4, 5}
	if !bytes.Equal(merge.data[".text"], want) {
		t.Fatalf("merged .text = %v, want %v", merge.data[".text"], want)
	}
	if merge.offsetInOutput[".text"] != 0 {
		t.Fatalf("single input section should start at offset 0")
	}
}

func TestMergeSectionsShiftsRelocationOffsets(t *testing.T) {
	a := &model.Object{Name: "a.o", Sections: map[string]*model.Section{
		".text": section(".text", make([]byte, 40), model.Relocation{Offset: 5, Symbol: "bar", Addend: -4, Kind: model.RelocPC32}),
	}}
	b := &model.Object{Name: "b.o", Sections: map[string]*model.Section{
		".text": section(".text", make([]byte, 8), model.Relocation{Offset: 2, Symbol: "baz", Kind: model.RelocAbs32}),
	}}

	merge := mergeSections([]*model.Object{a, b})

	if len(merge.relocs[".text"]) != 2 {
		t.Fatalf("expected 2 relocations, got %d", len(merge.relocs[".text"]))
	}
	if got := merge.relocs[".text"][0].Offset; got != 5 {
		t.Fatalf("first object's relocation should be unshifted within .text, got offset %d", got)
	}
	if got := merge.relocs[".text"][0].ObjIndex; got != 0 {
		t.Fatalf("relocation should be tagged with originating object index 0, got %d", got)
	}
	// b.o's .text follows a.o's 40 bytes, so its relocation at 2 moves to 42.
	if got := merge.relocs[".text"][1].Offset; got != 42 {
		t.Fatalf("second object's relocation should be shifted by 40, got offset %d", got)
	}
	if got := merge.relocs[".text"][1].ObjIndex; got != 1 {
		t.Fatalf("relocation should be tagged with originating object index 1, got %d", got)
	}
}

func TestMergeSectionsBssHasNoFileBytesButHasSize(t *testing.T) {
	a := &model.Object{Name: "a.o", Sections: map[string]*model.Section{
		".bss": section(".bss", make([]byte, 16)),
	}}

	merge := mergeSections([]*model.Object{a})

	if len(merge.data[".bss"]) != 0 {
		t.Fatalf(".bss should contribute no file bytes, got %d", len(merge.data[".bss"]))
	}
	if merge.memSize[".bss"] != 16 {
		t.Fatalf(".bss memory size = %d, want 16", merge.memSize[".bss"])
	}
}

func TestMergeSectionsOmitsAbsentStandardSections(t *testing.T) {
	a := &model.Object{Name: "a.o", Sections: map[string]*model.Section{
		".text": section(".text", []byte{1}),
	}}

	merge := mergeSections([]*model.Object{a})

	for _, absent := range []string{".rodata", ".data", ".bss"} {
		for _, name := range merge.order {
			if name == absent {
				t.Fatalf("output section %q should be absent, but is present in order %v", absent, merge.order)
			}
		}
	}
	if len(merge.order) != 1 || merge.order[0] != ".text" {
		t.Fatalf("expected only .text present, got %v", merge.order)
	}
}

func TestMergeSectionsBssOffsetAccumulatesAcrossInputSections(t *testing.T) {
	a := &model.Object{Name: "a.o", Sections: map[string]*model.Section{
		".bss":     section(".bss", make([]byte, 16)),
		".bss.foo": section(".bss.foo", make([]byte, 8)),
	}}

	merge := mergeSections([]*model.Object{a})

	if merge.offsetInOutput[".bss"] != 0 {
		t.Fatalf(".bss offsetInOutput = %d, want 0", merge.offsetInOutput[".bss"])
	}
	// ".bss" < ".bss.foo" lexicographically, so .bss is placed first and
	// .bss.foo must start after its 16 accumulated bytes, not at 0.
	if merge.offsetInOutput[".bss.foo"] != 16 {
		t.Fatalf(".bss.foo offsetInOutput = %d, want 16", merge.offsetInOutput[".bss.foo"])
	}
	if merge.memSize[".bss"] != 24 {
		t.Fatalf(".bss total memSize = %d, want 24", merge.memSize[".bss"])
	}
	if len(merge.data[".bss"]) != 0 {
		t.Fatalf(".bss should still contribute no file bytes, got %d", len(merge.data[".bss"]))
	}
}

func TestMergeSectionsUnmatchedPrefixFallsBackToData(t *testing.T) {
	a := &model.Object{Name: "a.o", Sections: map[string]*model.Section{
		".comment": section(".comment", []byte{9}),
	}}

	merge := mergeSections([]*model.Object{a})

	if merge.sectionToOutput[".comment"] != ".data" {
		t.Fatalf(".comment should fall back to .data, got %q", merge.sectionToOutput[".comment"])
	}
}
