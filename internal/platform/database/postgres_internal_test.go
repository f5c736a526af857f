package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	config, err := poolConfig("postgres://u:p@localhost:5432/tips?sslmode=disable", 7)
	require.NoError(t, err)
	assert.Equal(t, ApplicationName, config.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, int32(7), config.MaxConns)
}

func TestPoolConfig_KeepsURLApplicationName(t *testing.T) {
	config, err := poolConfig("postgres://u@localhost/tips?application_name=reviewer-cli", 0)
	require.NoError(t, err)
	assert.Equal(t, "reviewer-cli", config.ConnConfig.RuntimeParams["application_name"])
	assert.Positive(t, config.MaxConns, "zero keeps the pgxpool default")
}

func TestPoolConfig_BadURL(t *testing.T) {
	_, err := poolConfig("postgres://u@localhost:notaport/tips", 5)
	assert.Error(t, err)
}
