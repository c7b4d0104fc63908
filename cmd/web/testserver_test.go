package main

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/keeper/internal/e2etest"
	"github.com/stretchr/testify/require"
)

// testLookupEnv serves an in-memory database on a random port with no completion endpoint configured.
func testLookupEnv(key string) (string, bool) {
	switch key {
	case "KEEPER_ADDR":
		return "localhost:0", true
	case "KEEPER_SQLITE_URL":
		return ":memory:", true
	case "KEEPER_API_KEY":
		return "", true
	default:
		return "", false
	}
}

// withEnv overrides keys of lookupEnv.
func withEnv(lookupEnv func(string) (string, bool), env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := env[key]; ok {
			return v, true
		}
		return lookupEnv(key)
	}
}

// startTestServer starts the server and stops it when the test ends.
func startTestServer(t *testing.T, lookupEnv func(string) (string, bool)) *e2etest.Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	server, err := e2etest.StartServer(ctx, io.Discard, lookupEnv, run)
	require.NoError(t, err)
	return server.Client()
}
