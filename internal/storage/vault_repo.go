package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// VaultRepo provides methods for vault operations.
type VaultRepo struct {
	db DBTX
}

// NewVaultRepo creates a new VaultRepo.
func NewVaultRepo(db DBTX) *VaultRepo {
	return &VaultRepo{db: db}
}

// GetOrCreateByRoot gets an existing vault by workspace root, or creates it if it doesn't exist.
func (r *VaultRepo) GetOrCreateByRoot(ctx context.Context, root string) (*Vault, error) {
	vault, err := r.GetByRoot(ctx, root)
	if err == nil {
		return vault, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// INSERT OR IGNORE covers a concurrent creator racing us to the same root.
	if _, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO vault (workspace_root) VALUES (?)",
		root,
	); err != nil {
		return nil, fmt.Errorf("failed to insert vault: %w", err)
	}

	return r.GetByRoot(ctx, root)
}

// GetByRoot gets a vault by workspace root. Returns ErrNotFound if not found.
func (r *VaultRepo) GetByRoot(ctx context.Context, root string) (*Vault, error) {
	var vault Vault
	err := r.db.QueryRowContext(ctx,
		"SELECT id, workspace_root, created_at FROM vault WHERE workspace_root = ?",
		root,
	).Scan(&vault.ID, &vault.WorkspaceRoot, &vault.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vault: %w", err)
	}

	return &vault, nil
}

// ListAll returns all vaults ordered by workspace root.
func (r *VaultRepo) ListAll(ctx context.Context) ([]Vault, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, workspace_root, created_at FROM vault ORDER BY workspace_root",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vaults: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var vaults []Vault
	for rows.Next() {
		var vault Vault
		if err := rows.Scan(&vault.ID, &vault.WorkspaceRoot, &vault.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vault: %w", err)
		}
		vaults = append(vaults, vault)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return vaults, nil
}

func (r *VaultRepo) delete(ctx context.Context, vaultID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM vault WHERE id = ?", vaultID)
	if err != nil {
		return fmt.Errorf("failed to delete vault: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
