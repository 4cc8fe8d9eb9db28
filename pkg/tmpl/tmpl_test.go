package tmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		data    any
		want    string
		wantErr bool
	}{
		{
			name: "rule message vars",
			tmpl: "replace {{ .literal }} with a named constant",
			data: map[string]any{"literal": "9.81f"},
			want: "replace 9.81f with a named constant",
		},
		{
			name: "struct data",
			tmpl: "{{ .Goal }} ({{ .Standard }})",
			data: struct {
				Goal     string
				Standard string
			}{Goal: "reduce allocations", Standard: "c++20"},
			want: "reduce allocations (c++20)",
		},
		{
			name: "nested vars",
			tmpl: "{{ .Vars.engine.name }}",
			data: map[string]any{"Vars": map[string]any{"engine": map[string]any{"name": "colonyops"}}},
			want: "colonyops",
		},
		{
			name: "no actions",
			tmpl: "static prompt",
			want: "static prompt",
		},
		{
			name: "empty value",
			tmpl: "[{{ .literal }}]",
			data: map[string]any{"literal": ""},
			want: "[]",
		},
		{
			name:    "missing key",
			tmpl:    "{{ .Missing }}",
			data:    map[string]any{"literal": "1"},
			wantErr: true,
		},
		{
			name:    "syntax error",
			tmpl:    "{{ .Goal }",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_TextFunctions(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		data any
		want string
	}{
		{
			name: "indent skips empty lines",
			tmpl: "{{ indent 2 .Text }}",
			data: map[string]string{"Text": "a\n\nb"},
			want: "  a\n\n  b",
		},
		{
			name: "numbered pads to widest line number",
			tmpl: "{{ numbered 9 .Text }}",
			data: map[string]any{"Text": "x\ny\n"},
			want: " 9 | x\n10 | y\n",
		},
		{
			name: "numbered empty text",
			tmpl: "{{ numbered 1 .Text }}",
			data: map[string]string{"Text": ""},
			want: "",
		},
		{
			name: "fence adds trailing newline",
			tmpl: `{{ fence "cpp" .Text }}`,
			data: map[string]string{"Text": "int x;"},
			want: "```cpp\nint x;\n```",
		},
		{
			name: "trim and upper",
			tmpl: "{{ .Text | trim | upper }}",
			data: map[string]string{"Text": "  warning \n"},
			want: "WARNING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheck(t *testing.T) {
	require.NoError(t, Check("{{ .Anything | upper }}"))
	require.Error(t, Check("{{ .Open "))
	require.Error(t, Check("{{ nosuchfunc .X }}"))
}
