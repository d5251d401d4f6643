package runtime

import (
	"fmt"

	"nua/internal/value"
)

// bindStdlib installs nua's standard native environment, per spec.md
// §6's guaranteed `print` plus the SPEC_FULL.md §B.2 supplements `type`
// and `len`, all in the same native-function shape.
func (s *State) bindStdlib() {
	s.bindNative("print", s.nativePrint)
	s.bindNative("type", s.nativeType)
	s.bindNative("len", s.nativeLen)
}

func (s *State) bindNative(name string, fn value.NativeFunc) {
	key := s.interns.Intern([]byte(name), s.gc.NewString)
	f := s.gc.NewFunction()
	f.Kind = value.FuncNative
	f.Native = fn
	s.globals.Set(value.FromString(key), value.FromFunction(f))
}

func (s *State) str(text string) value.Value {
	return value.FromString(s.interns.Intern([]byte(text), s.gc.NewString))
}

// nativePrint writes its arguments space-separated and newline
// terminated, per spec.md §6's "writes ... to standard output".
func (s *State) nativePrint(args []value.Value) []value.Value {
	for i, a := range args {
		if i > 0 {
			fmt.Fprint(s.Stdout, " ")
		}
		fmt.Fprint(s.Stdout, formatValue(a))
	}
	fmt.Fprintln(s.Stdout)
	return nil
}

// nativeType reports one of nua's five value kinds by name, grounded on
// original_source/val.h's val_type_str.
func (s *State) nativeType(args []value.Value) []value.Value {
	k := value.KNil
	if len(args) > 0 {
		k = args[0].Kind
	}
	return []value.Value{s.str(k.String())}
}

// nativeLen reports a table's sequence length (spec.md §3). Any other
// argument reports 0, matching the permissive style of the other
// native bindings rather than raising a runtime error for a debug aid.
func (s *State) nativeLen(args []value.Value) []value.Value {
	if len(args) == 0 || args[0].Kind != value.KTable {
		return []value.Value{value.Number(0)}
	}
	return []value.Value{value.Number(float64(args[0].Tab.Len()))}
}

func formatValue(v value.Value) string {
	switch v.Kind {
	case value.KNil:
		return "nil"
	case value.KNumber:
		return formatNumber(v.Num)
	case value.KString:
		return v.Str.String()
	case value.KTable:
		return "table"
	case value.KFunction:
		return "function"
	default:
		return "?unknown?"
	}
}

// formatNumber matches spec.md §8's expected stdout ("4.000000" for the
// number 4): fixed six-decimal-place notation, the same shape C's
// printf("%f", ...) produces and the original source's print_val relied
// on, rather than trimming trailing zeros the way a "nicer" scripting
// language formatter would.
func formatNumber(n float64) string {
	return fmt.Sprintf("%f", n)
}
