package main

import (
	"testing"

	"github.com/gruntwork-io/smoke-checker/commands"
	"github.com/stretchr/testify/assert"
)

func TestMainExecutionFlow(t *testing.T) {
	// Ensure the main package wires up correctly and the default VERSION is
	// correctly typed
	assert.IsType(t, "", VERSION)

	app := commands.CreateCli(VERSION)
	assert.Equal(t, "smoke-checker", app.Name)
}
