// Package objtext reads and writes the line-oriented ".rvldobj" text
// format: a stand-in object container that exercises pkg/model from
// outside the core without a real ELF/COFF/Mach-O parser. Only
// cmd/rvld imports this package (besides its own tests) — the core
// packages (model, linker, lister) see only *model.Object.
package objtext

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"rvld/pkg/model"
)

// ReadObject parses one "object ... endobject" block from r.
//
// Grammar:
//
//	object <name> <kind>
//	section <name> [symbols]
//	data <hex>
//	reloc <offset> <symbol> <addend> <kind>
//	endsection
//	symbol <name> <binding> <section> <offset>
//	endobject
func ReadObject(r io.Reader) (*model.Object, error) {
	sc := bufio.NewScanner(r)
	if !advance(sc) {
		return nil, fmt.Errorf("objtext: empty input")
	}
	obj, err := readObjectBlock(sc)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// ReadArchive parses an "archive ... endarchive" block made of
// "--- member <name> ---" delimited object blocks, grounded on the
// teacher's ReadArchiveMembers member-splitting loop (pkg/linker/
// archive.go) generalized from the binary ar format to this text
// delimiter.
func ReadArchive(r io.Reader) (*model.Object, error) {
	sc := bufio.NewScanner(r)
	if !advance(sc) {
		return nil, fmt.Errorf("objtext: empty input")
	}

	fields := strings.Fields(sc.Text())
	if len(fields) < 2 || fields[0] != "archive" {
		return nil, fmt.Errorf("objtext: expected \"archive <name>\", got %q", sc.Text())
	}
	archive := &model.Object{Name: fields[1], Kind: model.ObjectArchive}

	if !advance(sc) {
		return nil, fmt.Errorf("objtext: archive %q: unexpected EOF", archive.Name)
	}

	for {
		line := sc.Text()
		if line == "endarchive" {
			break
		}
		if !strings.HasPrefix(line, "--- member ") || !strings.HasSuffix(line, " ---") {
			return nil, fmt.Errorf("objtext: expected member delimiter, got %q", line)
		}

		if !advance(sc) {
			return nil, fmt.Errorf("objtext: archive %q: unexpected EOF inside member", archive.Name)
		}
		member, err := readObjectBlock(sc)
		if err != nil {
			return nil, fmt.Errorf("objtext: archive %q: %w", archive.Name, err)
		}
		archive.Members = append(archive.Members, member)

		if !advance(sc) {
			return nil, fmt.Errorf("objtext: archive %q: unexpected EOF after member", archive.Name)
		}
	}

	return archive, nil
}

// readObjectBlock consumes sc starting at an "object ..." line (already
// current) through its matching "endobject" line (left current on
// return).
func readObjectBlock(sc *bufio.Scanner) (*model.Object, error) {
	fields := strings.Fields(sc.Text())
	if len(fields) < 3 || fields[0] != "object" {
		return nil, fmt.Errorf("expected \"object <name> <kind>\", got %q", sc.Text())
	}
	obj := &model.Object{
		Name:     fields[1],
		Kind:     parseObjectKind(fields[2]),
		Sections: make(map[string]*model.Section),
	}

	for advance(sc) {
		line := sc.Text()
		if line == "endobject" {
			return obj, nil
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "section":
			sec, err := readSectionBlock(sc, fields)
			if err != nil {
				return nil, err
			}
			obj.Sections[sec.Name] = sec
		case "symbol":
			sym, err := parseSymbolLine(fields)
			if err != nil {
				return nil, err
			}
			obj.Symbols = append(obj.Symbols, sym)
		default:
			return nil, fmt.Errorf("unexpected line %q inside object %q", line, obj.Name)
		}
	}

	return nil, fmt.Errorf("object %q: missing endobject", obj.Name)
}

func readSectionBlock(sc *bufio.Scanner, headerFields []string) (*model.Section, error) {
	if len(headerFields) < 2 {
		return nil, fmt.Errorf("expected \"section <name> [symbols]\", got %q", strings.Join(headerFields, " "))
	}
	sec := &model.Section{Name: headerFields[1]}
	for _, flag := range headerFields[2:] {
		if flag == "symbols" {
			sec.HasSymbols = true
		}
	}

	for advance(sc) {
		line := sc.Text()
		if line == "endsection" {
			return sec, nil
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "data":
			if len(fields) != 2 {
				return nil, fmt.Errorf("section %q: malformed data line %q", sec.Name, line)
			}
			raw, err := hex.DecodeString(fields[1])
			if err != nil {
				return nil, fmt.Errorf("section %q: %w", sec.Name, err)
			}
			sec.Data = raw
		case "reloc":
			rel, err := parseRelocLine(fields)
			if err != nil {
				return nil, fmt.Errorf("section %q: %w", sec.Name, err)
			}
			sec.Relocs = append(sec.Relocs, rel)
		default:
			return nil, fmt.Errorf("section %q: unexpected line %q", sec.Name, line)
		}
	}

	return nil, fmt.Errorf("section %q: missing endsection", sec.Name)
}

func parseRelocLine(fields []string) (model.Relocation, error) {
	if len(fields) != 5 {
		return model.Relocation{}, fmt.Errorf("malformed reloc line %q", strings.Join(fields, " "))
	}
	offset, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return model.Relocation{}, fmt.Errorf("reloc offset: %w", err)
	}
	addend, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return model.Relocation{}, fmt.Errorf("reloc addend: %w", err)
	}
	kind, ok := parseRelocKind(fields[4])
	if !ok {
		return model.Relocation{}, fmt.Errorf("unknown relocation kind %q", fields[4])
	}
	return model.Relocation{Offset: offset, Symbol: fields[2], Addend: addend, Kind: kind}, nil
}

func parseSymbolLine(fields []string) (model.Symbol, error) {
	if len(fields) != 5 {
		return model.Symbol{}, fmt.Errorf("malformed symbol line %q", strings.Join(fields, " "))
	}
	binding, ok := parseBinding(fields[2])
	if !ok {
		return model.Symbol{}, fmt.Errorf("unknown symbol binding %q", fields[2])
	}
	offset, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return model.Symbol{}, fmt.Errorf("symbol offset: %w", err)
	}
	section := fields[3]
	if section == "-" {
		section = ""
	}
	return model.Symbol{Name: fields[1], Binding: binding, Section: section, Offset: offset}, nil
}

func parseObjectKind(s string) model.ObjectKind {
	switch s {
	case "archive":
		return model.ObjectArchive
	case "executable":
		return model.ObjectExecutable
	case "shared":
		return model.ObjectShared
	default:
		return model.ObjectRelocatable
	}
}

func parseBinding(s string) (model.SymbolBinding, bool) {
	switch s {
	case "global":
		return model.BindGlobal, true
	case "weak":
		return model.BindWeak, true
	case "local":
		return model.BindLocal, true
	case "undefined":
		return model.BindUndefined, true
	default:
		return 0, false
	}
}

func parseRelocKind(s string) (model.RelocKind, bool) {
	switch s {
	case "abs32":
		return model.RelocAbs32, true
	case "abs32_signed":
		return model.RelocAbs32Signed, true
	case "pcrel32":
		return model.RelocPC32, true
	case "abs64":
		return model.RelocAbs64, true
	default:
		return 0, false
	}
}

// advance scans past blank lines and reports whether a non-blank line
// was found.
func advance(sc *bufio.Scanner) bool {
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			return true
		}
	}
	return false
}

// WriteObject serializes obj in the grammar ReadObject parses.
func WriteObject(w io.Writer, obj *model.Object) error {
	bw := bufio.NewWriter(w)
	if err := writeObjectBlock(bw, obj); err != nil {
		return err
	}
	return bw.Flush()
}

func writeObjectBlock(w *bufio.Writer, obj *model.Object) error {
	fmt.Fprintf(w, "object %s %s\n", obj.Name, obj.Kind)

	for _, name := range sectionNames(obj) {
		sec := obj.Sections[name]
		if sec.HasSymbols {
			fmt.Fprintf(w, "section %s symbols\n", sec.Name)
		} else {
			fmt.Fprintf(w, "section %s\n", sec.Name)
		}
		if len(sec.Data) > 0 {
			fmt.Fprintf(w, "data %s\n", hex.EncodeToString(sec.Data))
		}
		for _, rel := range sec.Relocs {
			fmt.Fprintf(w, "reloc %d %s %d %s\n", rel.Offset, rel.Symbol, rel.Addend, rel.Kind)
		}
		fmt.Fprintln(w, "endsection")
	}

	for _, sym := range obj.Symbols {
		section := sym.Section
		if section == "" {
			section = "-"
		}
		fmt.Fprintf(w, "symbol %s %s %s %d\n", sym.Name, sym.Binding, section, sym.Offset)
	}

	fmt.Fprintln(w, "endobject")
	return nil
}

func sectionNames(obj *model.Object) []string {
	names := make([]string, 0, len(obj.Sections))
	for name := range obj.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
