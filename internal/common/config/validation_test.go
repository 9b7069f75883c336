package config

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type sampleConfig struct {
	Name    string `validate:"required"`
	Clients int    `validate:"gt=0"`
}

func TestLogValidationErrors(t *testing.T) {
	assert.NoError(t, validator.New().Struct(sampleConfig{Name: "run", Clients: 2}))

	err := validator.New().Struct(sampleConfig{})
	var validationErrors validator.ValidationErrors
	assert.True(t, errors.As(err, &validationErrors))
	assert.Len(t, validationErrors, 2)
	assert.NotPanics(t, func() { LogValidationErrors(err) })
	assert.NotPanics(t, func() { LogValidationErrors(errors.New("not a validation error")) })
}

func TestStripPrefix(t *testing.T) {
	assert.Equal(t, "Database.Postgres", stripPrefix("TestConfig.Database.Postgres"))
	assert.Equal(t, "Loop", stripPrefix("Loop"))
}
