package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsEndpoint(t *testing.T) {
	got, err := eventsEndpoint("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/v1/events", got)

	got, err = eventsEndpoint("https://ledger.example.com/stock")
	require.NoError(t, err)
	assert.Equal(t, "wss://ledger.example.com/stock/api/v1/events", got)

	_, err = eventsEndpoint("ftp://nowhere")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "seed", "verify", "history", "watch"} {
		assert.True(t, names[want], want)
	}
}
