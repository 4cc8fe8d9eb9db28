package validate

import (
	"strings"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "my-session", false},
		{"valid with spaces", "my session", false},
		{"empty string", "", true},
		{"only spaces", "   ", true},
		{"only tabs", "\t\t", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SessionName(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "SessionName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		})
	}
}

func TestSessionID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid alphanumeric", "abc123", false},
		{"valid letters only", "abcdef", false},
		{"valid numbers only", "123456", false},
		{"empty string", "", true},
		{"with spaces", "abc 123", true},
		{"with hyphen", "abc-123", true},
		{"with underscore", "abc_123", true},
		{"uppercase letters", "ABC123", true},
		{"mixed case", "AbC123", true},
		{"special chars", "abc!@#", true},
		{"unicode", "abc日本", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SessionID(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "SessionID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		})
	}
}

func TestGoal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain goal", "reduce allocations in the update loop", false},
		{"empty", "", true},
		{"whitespace", " \n\t", true},
		{"at limit", strings.Repeat("a", MaxGoalLen), false},
		{"over limit", strings.Repeat("a", MaxGoalLen+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Goal(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "Goal error = %v", err)
		})
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"code", "int main() {}\n", false},
		{"empty", "", true},
		{"blank lines", "\n\n", true},
		{"invalid utf8", "int x = 0; // \xff\n", true},
		{"nul byte", "int x\x00;\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Snippet(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "Snippet error = %v", err)
		})
	}
}

func TestGoalField(t *testing.T) {
	err := criterio.ValidateStruct(
		SessionNameField("files[2].name", "physics"),
		GoalField("files[2].goal", ""),
	)

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "files[2].goal", fieldErrs[0].Field)
}
