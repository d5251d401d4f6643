package runtime

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRunEndToEndScenarios exercises every scenario spec.md §8 names,
// table-driven in the style of clarete-langlang/go/api_test.go's
// []struct{Name, ...} end-to-end table.
func TestRunEndToEndScenarios(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		stdout string
	}{
		{
			name:   "arithmetic and print",
			src:    `local x = 1 + 2 * 0 + 3 print(x)`,
			stdout: "4.000000\n",
		},
		{
			name: "control flow",
			src: `local i = 0
while i < 3 do
	i = i + 1
	print(i)
end`,
			stdout: "1.000000\n2.000000\n3.000000\n",
		},
		{
			name:   "if/else with nil truthiness (nil branch)",
			src:    `if nil then print(1) else print(2) end`,
			stdout: "2.000000\n",
		},
		{
			name:   "if/else with nil truthiness (zero is truthy)",
			src:    `if 0 then print(1) else print(2) end`,
			stdout: "1.000000\n",
		},
		{
			name: "functions and environment",
			src: `function add(a, b)
	return a + b
end
print(add(2, 3))`,
			stdout: "5.000000\n",
		},
		{
			name: "table constructor, sequence and hash",
			src: `local t = {10, 20, 30}
t["k"] = 99
print(t[2])
print(t["k"])`,
			stdout: "20.000000\n99.000000\n",
		},
		{
			name: "multi-return and multi-assign",
			src: `function pair()
	return 1, 2
end
local a, b = pair()
print(a)
print(b)`,
			stdout: "1.000000\n2.000000\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			s := New(&out)
			err := s.Run("test.nua", tc.src)
			require.NoError(t, err)
			require.Equal(t, tc.stdout, out.String())
		})
	}
}

func TestRunReportsCompileError(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)
	err := s.Run("test.nua", `local = `)
	require.Error(t, err)
}

func TestRunReportsRuntimeError(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)
	err := s.Run("test.nua", `local t = 1 t["k"] = 2`)
	require.Error(t, err)
}

func TestTypeAndLenBuiltins(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)
	err := s.Run("test.nua", `
print(type(1))
print(type("x"))
print(type(nil))
local t = {1, 2, 3}
print(len(t))
`)
	require.NoError(t, err)
	require.Equal(t, "number\nstring\nnil\n3.000000\n", out.String())
}

func TestGlobalsPersistAcrossRuns(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)
	require.NoError(t, s.Run("a.nua", `x = 41`))
	require.NoError(t, s.Run("b.nua", `print(x + 1)`))
	require.Equal(t, "42.000000\n", out.String())
}
