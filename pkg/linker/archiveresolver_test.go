package linker

import (
	"errors"
	"testing"

	"rvld/pkg/errs"
	"rvld/pkg/model"
)

func obj(name string, kind model.ObjectKind, syms ...model.Symbol) *model.Object {
	return &model.Object{Name: name, Kind: kind, Symbols: syms}
}

func sym(name string, b model.SymbolBinding) model.Symbol {
	return model.Symbol{Name: name, Binding: b, Section: ".text"}
}

func TestResolveArchivesPullsTransitively(t *testing.T) {
	// main references puts (defined by member M1) which references
	// write (defined by member M2) — a transitive pull.
	m2 := obj("m2.o", model.ObjectRelocatable, sym("write", model.BindGlobal))
	m1 := obj("m1.o", model.ObjectRelocatable,
		sym("puts", model.BindGlobal), sym("write", model.BindUndefined))
	archive := &model.Object{Name: "libc.a", Kind: model.ObjectArchive, Members: []*model.Object{m1, m2}}

	main := obj("main.o", model.ObjectRelocatable, sym("puts", model.BindUndefined))

	got, err := resolveArchives([]*model.Object{main, archive})
	if err != nil {
		t.Fatalf("resolveArchives: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 participants, got %d: %v", len(got), names(got))
	}
}

func TestResolveArchivesLeavesUnneededMembersOut(t *testing.T) {
	unused := obj("unused.o", model.ObjectRelocatable, sym("unused_fn", model.BindGlobal))
	archive := &model.Object{Name: "lib.a", Kind: model.ObjectArchive, Members: []*model.Object{unused}}
	main := obj("main.o", model.ObjectRelocatable, sym("main", model.BindGlobal))

	got, err := resolveArchives([]*model.Object{main, archive})
	if err != nil {
		t.Fatalf("resolveArchives: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the ordinary object, got %v", names(got))
	}
}

func TestResolveArchivesNoInput(t *testing.T) {
	_, err := resolveArchives(nil)
	if !errors.Is(err, errs.New(errs.NoInput, "")) {
		t.Fatalf("expected no-input, got %v", err)
	}
}

func names(objs []*model.Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Name
	}
	return out
}
