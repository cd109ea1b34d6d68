package vault

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"vaultgraph/internal/storage"
)

// Manager registers vaults by workspace root and caches their records.
type Manager struct {
	vaultRepo storage.VaultStore

	mu     sync.RWMutex
	vaults map[string]storage.Vault // Cache vaults by canonical root
}

// NewManager creates a new vault manager.
func NewManager(vaultRepo storage.VaultStore) *Manager {
	return &Manager{
		vaultRepo: vaultRepo,
		vaults:    make(map[string]storage.Vault),
	}
}

// CanonicalRoot returns the absolute, cleaned form of a workspace root so that
// "./notes" and "/home/me/notes" name the same vault.
func CanonicalRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("workspace root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace root %s: %w", root, err)
	}
	return filepath.Clean(abs), nil
}

// Open returns the vault for root, registering it on first use.
func (m *Manager) Open(ctx context.Context, root string) (storage.Vault, error) {
	canonical, err := CanonicalRoot(root)
	if err != nil {
		return storage.Vault{}, err
	}
	if v, ok := m.cached(canonical); ok {
		return v, nil
	}

	v, err := m.vaultRepo.GetOrCreateByRoot(ctx, canonical)
	if err != nil {
		return storage.Vault{}, fmt.Errorf("failed to open vault %s: %w", canonical, err)
	}
	m.store(*v)
	return *v, nil
}

// Find returns the vault for root without registering it.
// Returns storage.ErrNotFound if the root was never indexed.
func (m *Manager) Find(ctx context.Context, root string) (storage.Vault, error) {
	canonical, err := CanonicalRoot(root)
	if err != nil {
		return storage.Vault{}, err
	}
	if v, ok := m.cached(canonical); ok {
		return v, nil
	}

	v, err := m.vaultRepo.GetByRoot(ctx, canonical)
	if err != nil {
		return storage.Vault{}, err
	}
	m.store(*v)
	return *v, nil
}

// List returns every registered vault.
func (m *Manager) List(ctx context.Context) ([]storage.Vault, error) {
	vaults, err := m.vaultRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vaults: %w", err)
	}
	return vaults, nil
}

// Forget drops a root from the cache, used after the vault is deleted.
func (m *Manager) Forget(root string) {
	canonical, err := CanonicalRoot(root)
	if err != nil {
		return
	}
	m.mu.Lock()
	delete(m.vaults, canonical)
	m.mu.Unlock()
}

// AbsPath returns the absolute path for a file given its vault ID and relative path.
func (m *Manager) AbsPath(vaultID int64, relPath string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.vaults {
		if v.ID == vaultID {
			return filepath.Join(v.WorkspaceRoot, filepath.FromSlash(relPath))
		}
	}
	// Unknown vault: callers open the vault before resolving paths.
	return ""
}

func (m *Manager) cached(root string) (storage.Vault, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vaults[root]
	return v, ok
}

func (m *Manager) store(v storage.Vault) {
	m.mu.Lock()
	m.vaults[v.WorkspaceRoot] = v
	m.mu.Unlock()
}
