package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateConnectionString(t *testing.T) {
	got := CreateConnectionString(map[string]string{
		"user":     "postgres",
		"host":     "localhost",
		"password": `p'ss\word`,
	})
	assert.Equal(t, `host='localhost' password='p\'ss\\word' user='postgres'`, got)
}

func TestCreateConnectionString_Empty(t *testing.T) {
	assert.Equal(t, "", CreateConnectionString(nil))
}
