// Package runtime wires internal/compiler, internal/vm, internal/gc and
// internal/intern into the single "state" a program runs against, plus
// the standard native-function environment (stdlib.go). Grounded on
// vm/vm.go's GVM struct, which likewise bundles a *bufio.Writer for
// program output alongside the execution state it wraps.
package runtime

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"nua/internal/compiler"
	"nua/internal/gc"
	"nua/internal/intern"
	"nua/internal/value"
	"nua/internal/vm"
)

// State bundles everything one running nua program needs: its object
// heap, string intern table, interpreter, and global environment table.
type State struct {
	Stdout *bufio.Writer

	gc      *gc.Collector
	interns *intern.Table
	vm      *vm.VM
	globals *value.Table
}

// New builds a fresh runtime state. Program output (print's target)
// goes to out; nua's own GC is independent of the host Go runtime's, so
// unlike the teacher's RunProgram there is no debug.SetGCPercent(-1)
// dance here — nua's collector runs interleaved with execution exactly
// as spec.md §4.3 describes, not disabled around it.
func New(out io.Writer) *State {
	interns := intern.New()
	coll := gc.New(func(isLive func(*value.String) bool) { interns.Purge(isLive) })

	s := &State{
		Stdout:  bufio.NewWriter(out),
		gc:      coll,
		interns: interns,
		vm:      vm.New(coll, interns),
		globals: coll.NewTable(),
	}
	s.bindStdlib()
	return s
}

// Run compiles and executes one source file's top-level chunk against
// this state's (persistent, reused-across-calls) global environment.
func (s *State) Run(file, src string) error {
	def, err := compiler.Compile(file, src, s.gc, s.interns)
	if err != nil {
		return err
	}
	_, err = s.vm.Run(def, s.globals)
	s.Stdout.Flush()
	return err
}

// RunDebug runs file the same way Run does, but pauses before every
// instruction for a "n"/"next", "r"/"run", or "b <line>" command read
// from stdin — nua's analogue of vm/run.go's RunProgramDebugMode.
func (s *State) RunDebug(file, src string) error {
	def, err := compiler.Compile(file, src, s.gc, s.interns)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	running := false
	breakLines := make(map[int]bool)

	s.vm.Trace = func(d *value.FuncDef, pc int) {
		line := 0
		if pc < d.Lines.Len() {
			line = d.Lines.Get(pc)
		}
		if running && !breakLines[line] {
			return
		}
		running = false

		items := d.Instructions.Items()
		fmt.Fprintf(os.Stdout, "%s:%d: next> %s\n", d.File, line, items[pc].Op)

		for {
			fmt.Print("-> ")
			input, _ := reader.ReadString('\n')
			input = strings.ToLower(strings.TrimSpace(input))

			switch {
			case input == "n" || input == "next" || input == "":
				return
			case input == "r" || input == "run":
				running = true
				return
			case strings.HasPrefix(input, "b"):
				arg := strings.TrimSpace(strings.TrimPrefix(input, "b"))
				n, convErr := strconv.Atoi(arg)
				if convErr != nil {
					fmt.Println("unknown line number:", arg)
					continue
				}
				breakLines[n] = !breakLines[n]
				return
			default:
				fmt.Println("commands: n(ext), r(un), b <line>")
			}
		}
	}

	_, err = s.vm.Run(def, s.globals)
	s.vm.Trace = nil
	s.Stdout.Flush()
	return err
}
