package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateHash(t *testing.T) {
	a := GenerateHash("some text", 1000)
	assert.Len(t, a, 16)
	assert.Equal(t, a, GenerateHash("some text", 1000))
	assert.NotEqual(t, a, GenerateHash("some text", 2000))
	assert.NotEqual(t, a, GenerateHash("other text", 1000))
}

func TestFingerprint(t *testing.T) {
	assert.Len(t, Fingerprint("hello"), 16)
	assert.Equal(t, Fingerprint("hello"), Fingerprint("hello"))
	assert.NotEqual(t, Fingerprint("hello"), Fingerprint("hello!"))
}
