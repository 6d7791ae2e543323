package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoMigrateRequested(t *testing.T) {
	assert.False(t, autoMigrateRequested(nil))
	assert.False(t, autoMigrateRequested([]string{"--port", "8080"}))
	assert.True(t, autoMigrateRequested([]string{"--auto-migrate"}))
	assert.True(t, autoMigrateRequested([]string{"-v", "-M"}))
}
