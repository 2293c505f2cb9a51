package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunChannel(t *testing.T) {
	assert.Equal(t, "run:abc-123", RunChannel("abc-123"))
}
