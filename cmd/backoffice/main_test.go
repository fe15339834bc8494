package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"help"}, &out))
	assert.Contains(t, out.String(), "token issue")
}

func TestRunUnknownCommand(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	err := run(context.Background(), []string{"frobnicate"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, `unknown command "frobnicate"`)
}
