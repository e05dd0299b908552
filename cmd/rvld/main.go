package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"rvld/pkg/errs"
	"rvld/pkg/linker"
	"rvld/pkg/lister"
	"rvld/pkg/model"
	"rvld/pkg/objtext"
	"rvld/pkg/utils"
)

type cliArgs struct {
	output    string
	entry     string
	shared    bool
	nm        bool
	libPaths  []string
	remaining []string
}

func main() {
	args := parseArgs(os.Args[1:])

	if args.nm {
		runNM(args)
		return
	}

	runLink(args)
}

// parseArgs mirrors the teacher family's dash-prefixed flag scanner
// (rvld.go's parseArgs in the unicornx-rvld sibling example): walk
// os.Args once, consuming a flag's value inline rather than building a
// flag.FlagSet, since several flags here are repeatable (-L) or
// boolean (-shared, -nm).
func parseArgs(argv []string) cliArgs {
	args := cliArgs{output: "a.out", entry: "_start"}

	for i := 0; i < len(argv); i++ {
		switch {
		case argv[i] == "-o":
			i++
			if i >= len(argv) {
				utils.Fatal("-o requires an argument")
			}
			args.output = argv[i]
		case argv[i] == "-e":
			i++
			if i >= len(argv) {
				utils.Fatal("-e requires an argument")
			}
			args.entry = argv[i]
		case argv[i] == "-L":
			i++
			if i >= len(argv) {
				utils.Fatal("-L requires an argument")
			}
			args.libPaths = append(args.libPaths, argv[i])
		case argv[i] == "-shared":
			args.shared = true
		case argv[i] == "-nm":
			args.nm = true
		case strings.HasPrefix(argv[i], "-"):
			utils.Fatal(fmt.Sprintf("unknown flag %q", argv[i]))
		default:
			args.remaining = append(args.remaining, argv[i])
		}
	}

	if len(args.remaining) == 0 {
		utils.Fatal("no input files")
	}
	return args
}

func runNM(args cliArgs) {
	if len(args.remaining) != 1 {
		utils.Fatal("-nm takes exactly one file")
	}

	obj, err := readInput(args.remaining[0])
	if err != nil {
		utils.Fatal(err)
	}

	if err := lister.List(os.Stdout, obj.Symbols); err != nil {
		utils.Fatal(err)
	}
}

func runLink(args cliArgs) {
	var objs []*model.Object
	for _, name := range args.remaining {
		obj, err := readInput(name)
		if err != nil {
			utils.Fatal(err)
		}
		objs = append(objs, obj)
	}

	opts := linker.Options{
		EntrySymbol: args.entry,
		OutputName:  args.output,
	}
	if args.shared {
		opts.OutputKind = model.OutputShared
	}

	img, err := linker.Link(objs, opts)
	if err != nil {
		reportLinkError(err)
	}

	fmt.Printf("%s: entry %#x\n", img.Name, img.Entry)
	for _, sh := range img.SectionHeaders {
		fmt.Printf("  %-8s vaddr=%#x foff=%#x size=%#x flags=%s\n",
			sh.Name, sh.VAddr, sh.FileOffset, sh.Size, sh.Flags)
	}
}

// reportLinkError classifies a failed link by errs.Kind before handing
// it to utils.Fatal, so the exit message names the spec.md §7 error
// kind rather than a bare Go error string.
func reportLinkError(err error) {
	var e *errs.E
	if errors.As(err, &e) {
		utils.Fatal(fmt.Sprintf("%s: %s", e.Kind, e.Message))
	}
	utils.Fatal(err)
}

// readInput reads name as either a single object or an archive,
// distinguishing them by the text format's leading keyword. -L search
// paths are accepted for command-line compatibility with the teacher
// family's invocation style but are unused here: .rvldobj invocations
// always name every input file explicitly, with no implicit library
// search.
func readInput(name string) (*model.Object, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 64)
	n, _ := f.Read(head)
	f.Seek(0, 0)

	if strings.HasPrefix(strings.TrimSpace(string(head[:n])), "archive") {
		return objtext.ReadArchive(f)
	}
	return objtext.ReadObject(f)
}
