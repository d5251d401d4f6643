// Command nua is the interpreter's CLI entry point: it loads one source
// file, runs it, and maps failures to a nonzero exit code with a
// single-line diagnostic, per spec.md §6. Grounded on the teacher's
// main(): flag.Bool for the one optional mode switch plus positional
// os.Args for file paths, and a deferred recover() that turns a Go
// panic (an out-of-range register or stack index — the Go-host
// equivalent of a segmentation fault) into the same diagnostic path as
// an ordinary reported error.
package main

import (
	"flag"
	"fmt"
	"os"

	"nua/internal/runtime"
)

func main() {
	debug := flag.Bool("debug", false, "enter single-step/breakpoint debug mode")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: nua [-debug] <file.nua>")
		os.Exit(2)
	}

	os.Exit(run(args[0], *debug))
}

func run(path string, debug bool) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "%s: internal error: %v\n", path, r)
			exitCode = 1
		}
	}()

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return 1
	}

	s := runtime.New(os.Stdout)

	if debug {
		err = s.RunDebug(path, string(src))
	} else {
		err = s.Run(path, string(src))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
