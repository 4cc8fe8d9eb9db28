package patch

import (
	"strings"
	"testing"

	"github.com/sourcegraph/go-diff/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roundTripCases = []struct {
	name     string
	from, to string
}{
	{"both empty", "", ""},
	{"from empty", "", "a\nb\n"},
	{"to empty", "a\nb\n", ""},
	{"identical", "a\nb\nc\n", "a\nb\nc\n"},
	{"middle replaced", "a\nb\nc\n", "a\nx\nc\n"},
	{"appended", "a\n", "a\nb\nc\n"},
	{"prepended", "c\n", "a\nb\nc\n"},
	{"missing final newline", "a\nb", "a\nb\n"},
	{"final newline removed", "a\nb\n", "a\nb"},
	{"crlf kept", "a\r\nb\r\n", "a\r\nc\r\nb\r\n"},
	{"crlf to lf", "a\r\nb\r\n", "a\nb\n"},
	{"repeated lines", "x\nx\nx\n", "x\ny\nx\n"},
	{"blank lines only", "\n\n\n", "\n"},
	{
		"code edit",
		"for (int i = 0; i < v.size(); i++) {\n    sum += v[i];\n}\n",
		"for (const auto& x : v) {\n    sum += x;\n}\n",
	},
}

func TestDiffApply_RoundTrip(t *testing.T) {
	for _, tt := range roundTripCases {
		t.Run(tt.name, func(t *testing.T) {
			hunks := Diff(tt.from, tt.to)

			got, err := Apply(tt.from, hunks)
			require.NoError(t, err)
			assert.Equal(t, tt.to, got)
		})
	}
}

func TestDiff_SelfIsAllEqual(t *testing.T) {
	for _, tt := range roundTripCases {
		t.Run(tt.name, func(t *testing.T) {
			for _, text := range []string{tt.from, tt.to} {
				hunks := Diff(text, text)
				assert.True(t, OnlyEqual(hunks), "hunks: %v", hunks)
				assert.LessOrEqual(t, len(hunks), 1)
			}
		})
	}
}

func TestDiff_Hunks(t *testing.T) {
	hunks := Diff("a\nb\nc\n", "a\nx\nc\nd\n")

	want := []Hunk{
		{Kind: KindEqual, Old: Range{0, 1}, New: Range{0, 1}, Lines: []string{"a\n"}},
		{Kind: KindDelete, Old: Range{1, 1}, New: Range{1, 0}, Lines: []string{"b\n"}},
		{Kind: KindInsert, Old: Range{2, 0}, New: Range{1, 1}, Lines: []string{"x\n"}},
		{Kind: KindEqual, Old: Range{2, 1}, New: Range{2, 1}, Lines: []string{"c\n"}},
		{Kind: KindInsert, Old: Range{3, 0}, New: Range{3, 1}, Lines: []string{"d\n"}},
	}
	assert.Equal(t, want, hunks)
}

func TestDiff_EarliestMatchWins(t *testing.T) {
	// Matching the existing x with either copy is minimal; the earlier one
	// is chosen so the insert lands after it.
	hunks := Diff("x\n", "x\nx\n")

	require.Len(t, hunks, 2)
	assert.Equal(t, KindEqual, hunks[0].Kind)
	assert.Equal(t, KindInsert, hunks[1].Kind)
	assert.Equal(t, Range{1, 1}, hunks[1].New)
}

func TestDiff_Deterministic(t *testing.T) {
	from := "a\nb\nc\nd\ne\n"
	to := "b\na\nd\nc\ne\n"
	assert.Equal(t, Diff(from, to), Diff(from, to))
}

func TestApply_Mismatch(t *testing.T) {
	hunks := Diff("a\nb\n", "a\nc\n")

	tests := []struct {
		name string
		text string
	}{
		{"different line", "a\nz\n"},
		{"shorter text", "a\n"},
		{"longer text", "a\nb\nc\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.text, hunks)
			require.ErrorIs(t, err, ErrHunkMismatch)
		})
	}
}

func TestApply_OutOfOrderHunks(t *testing.T) {
	hunks := Diff("a\nb\nc\n", "a\nx\nc\n")
	hunks[0], hunks[1] = hunks[1], hunks[0]

	_, err := Apply("a\nb\nc\n", hunks)
	require.ErrorIs(t, err, ErrHunkMismatch)
}

func TestLines(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a\n"}},
		{"a\r\nb", []string{"a\r\n", "b"}},
		{"\n\n", []string{"\n", "\n"}},
	}

	for _, tt := range tests {
		got := Lines(tt.text)
		assert.Equal(t, tt.want, got, "Lines(%q)", tt.text)
		assert.Equal(t, tt.text, strings.Join(got, ""))
	}
}

func TestStats(t *testing.T) {
	s := Stats(Diff("a\nb\nc\n", "a\nx\ny\n"))
	assert.Equal(t, DiffStats{Added: 2, Removed: 2}, s)
	assert.Equal(t, "+2 -2", s.String())
}

func TestValidate(t *testing.T) {
	original := "int f() {\n    return 1;\n}\n"

	tests := []struct {
		name      string
		candidate string
		opts      ValidateOptions
		reason    Reason
	}{
		{name: "accepted", candidate: "int f() {\n    return 2;\n}\n"},
		{name: "empty", candidate: "", reason: ReasonEmpty},
		{name: "whitespace only", candidate: " \n\t\n", reason: ReasonEmpty},
		{name: "identical", candidate: original, reason: ReasonNoOp},
		{name: "whitespace reformatted", candidate: "int f()   {\n\treturn 1;\n\n}", reason: ReasonNoOp},
		{name: "whitespace around operators", candidate: "int f(){return 1;}", reason: ReasonNoOp},
		{name: "joined identifiers differ", candidate: "intf() {\n    return 1;\n}\n"},
		{name: "missing brace", candidate: "int f() {\n    return 2;\n", reason: ReasonUnbalanced},
		{name: "crossed brackets", candidate: "int f() {\n    return g(a[1)];\n}\n", reason: ReasonUnbalanced},
		{name: "stray closer", candidate: "int f() {\n    return 2;\n}}\n", reason: ReasonUnbalanced},
		{name: "brackets in literals ignored", candidate: "int f() {\n    puts(\"{[(\"); // )\n    return '}';\n}\n"},
		{name: "brackets in block comment ignored", candidate: "/* { */\nint f() { return 2; }\n"},
		{
			name:      "too many lines",
			candidate: "int f() {\n    return 2;\n}\n",
			opts:      ValidateOptions{MaxLines: 2},
			reason:    ReasonTooLarge,
		},
		{
			name:      "too many bytes",
			candidate: "int f() {\n    return 2;\n}\n",
			opts:      ValidateOptions{MaxBytes: 10},
			reason:    ReasonTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.candidate, original, tt.opts)
			if tt.reason == "" {
				require.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.reason, verr.Reason)
			assert.Contains(t, verr.Error(), string(tt.reason))
		})
	}
}

func TestCheckSize(t *testing.T) {
	huge := strings.Repeat("x;\n", 10_000)

	err := CheckSize(huge, ValidateOptions{MaxLines: 500})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, ReasonTooLarge, vErr.Reason)
	assert.Contains(t, vErr.Detail, "10000 lines")

	require.NoError(t, CheckSize(huge, ValidateOptions{}))
	require.NoError(t, CheckSize("x;\n", ValidateOptions{MaxLines: 1, MaxBytes: 3}))
}

func TestUnified(t *testing.T) {
	from := "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\n"
	to := "a\nB\nc\nd\ne\nf\ng\nh\nI\nj\n"

	out, err := Unified(Diff(from, to), UnifiedOptions{OrigName: "v1", NewName: "v2", Context: 1})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "--- v1\n+++ v2\n"), out)
	assert.Contains(t, out, "@@ -1,3 +1,3 @@")
	assert.Contains(t, out, "-b\n+B\n")
	assert.Contains(t, out, "@@ -8,3 +8,3 @@")

	fd, err := diff.ParseFileDiff([]byte(out))
	require.NoError(t, err)
	require.Len(t, fd.Hunks, 2)
	assert.Equal(t, int32(1), fd.Hunks[0].OrigStartLine)
	assert.Equal(t, int32(8), fd.Hunks[1].NewStartLine)
}

func TestUnified_MergesNearbyChanges(t *testing.T) {
	out, err := Unified(Diff("a\nb\nc\nd\n", "A\nb\nc\nD\n"), UnifiedOptions{Context: 1})
	require.NoError(t, err)

	fd, err := diff.ParseFileDiff([]byte(out))
	require.NoError(t, err)
	require.Len(t, fd.Hunks, 1)
	assert.Equal(t, int32(4), fd.Hunks[0].OrigLines)
}

func TestUnified_Identical(t *testing.T) {
	out, err := Unified(Diff("a\n", "a\n"), UnifiedOptions{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
