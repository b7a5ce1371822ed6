// Package testctr holds helpers shared by tests that start containers.
package testctr

import (
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// SkipIfDockerNotAvailable skips t when no healthy container provider is reachable.
func SkipIfDockerNotAvailable(t *testing.T) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
}
