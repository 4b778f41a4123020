package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neomorfeo/uastudio/internal/domain"
)

func TestRegistry(t *testing.T) {
	r := domain.NewRegistry("a", "b", "a")
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Contains("a"))
	assert.False(t, r.Contains("c"))

	r.Insert("c")
	r.Insert("c")
	assert.Equal(t, 3, r.Len())

	r.Remove("a")
	r.Remove("missing")
	assert.Equal(t, 2, r.Len())
	assert.False(t, r.Contains("a"))
	assert.ElementsMatch(t, []string{"b", "c"}, r.Members())

	r.Clear()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Members())
}
