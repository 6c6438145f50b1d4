package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrySchemes(t *testing.T) {
	assert.Equal(t, []string{
		"http", "https", "json", "postgres", "postgresql", "redis", "sqlite", "sqlite3", "yaml", "yml",
	}, Registry().Schemes())
}
