// Package testutil provides shared test helpers for setting up vaults
// and wired services.
package testutil

import (
	"testing"
	"time"

	"github.com/starford/othala/internal/cache"
	"github.com/starford/othala/internal/similarity"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestService wires a fully functional vault service over a temporary
// directory, with generous cache limits.
func TestService(t *testing.T) (*vault.Service, storage.Provider) {
	t.Helper()
	_, store := TestVault(t)
	content, err := cache.New[[]byte](1<<20, 256, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	queries, err := cache.New[[]byte](1<<20, 64, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	detect := similarity.NewDetector(store, similarity.Options{})
	return vault.NewService(store, content, queries, detect), store
}
