package domain_test

import (
	"testing"

	"legal-rag/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestSourceHashPolicy_Compute(t *testing.T) {
	policy := domain.NewSourceHashPolicy()

	t.Run("Same input produces same hash", func(t *testing.T) {
		h1 := policy.Compute("Criminal Appeal No. 12/2019")
		h2 := policy.Compute("Criminal Appeal No. 12/2019")
		assert.Equal(t, h1, h2)
		assert.Len(t, h1, 64)
	})

	t.Run("Whitespace and line endings are normalized", func(t *testing.T) {
		h1 := policy.Compute("FACTS\nThe appellant was tried.")
		h2 := policy.Compute("\n FACTS\r\nThe appellant was tried.\n")
		assert.Equal(t, h1, h2)
	})

	t.Run("Different content produces different hash", func(t *testing.T) {
		h1 := policy.Compute("Section 302 IPC")
		h2 := policy.Compute("Section 304 IPC")
		assert.NotEqual(t, h1, h2)
	})
}
