package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantTimeHashCompare(t *testing.T) {
	a := HashSecret("the-shared-secret")
	b := HashSecret("the-shared-secret")
	c := HashSecret("a-different-secret")

	assert.True(t, ConstantTimeHashCompare(a, b))
	assert.False(t, ConstantTimeHashCompare(a, c))
}

func TestHashSecret_LengthIndependent(t *testing.T) {
	// Hashing first means mismatched-length secrets still compare over
	// equal-length digests.
	short := HashSecret("x")
	long := HashSecret("a-very-long-secret-value-here")

	assert.Len(t, short, 64)
	assert.Len(t, long, 64)
	assert.False(t, ConstantTimeHashCompare(short, long))
}
