package randid

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	pattern := regexp.MustCompile(`^([a-z][a-z0-9]*)?$`)

	for _, n := range []int{0, 1, 6, 8, 16} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			for range 50 {
				id := Generate(n)
				assert.Len(t, id, n)
				assert.Regexp(t, pattern, id)
			}
		})
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 200 {
		seen[Generate(8)] = struct{}{}
	}
	assert.GreaterOrEqual(t, len(seen), 195)
}
