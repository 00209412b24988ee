package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetStyles(t *testing.T) {
	styled := GetStyles(false)
	assert.True(t, styled.Header.GetBold())

	plain := GetStyles(true)
	assert.False(t, plain.Header.GetBold())
}
