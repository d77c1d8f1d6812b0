package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapture_Size(t *testing.T) {
	assert.EqualValues(t, 0, Capture{}.Size())
	assert.EqualValues(t, 5, Capture{Data: []byte("audio")}.Size())
}
