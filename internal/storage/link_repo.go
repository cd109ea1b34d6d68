package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"vaultgraph/internal/links"
)

const linkViewQuery = `SELECT l.id, l.source_doc_id, l.target_doc_id, l.target_path, l.target_anchor, l.alias,
	l.is_embed, l.is_wiki, l.is_external, s.rel_path, COALESCE(t.rel_path, '')
	FROM link l
	JOIN doc s ON s.id = l.source_doc_id
	LEFT JOIN doc t ON t.id = l.target_doc_id`

// LinkRepo provides methods for link operations.
type LinkRepo struct {
	db DBTX
}

// NewLinkRepo creates a new LinkRepo.
func NewLinkRepo(db DBTX) *LinkRepo {
	return &LinkRepo{db: db}
}

// ListByVault returns every link whose source document belongs to the vault.
func (r *LinkRepo) ListByVault(ctx context.Context, vaultID int64) ([]LinkView, error) {
	return r.query(ctx, linkViewQuery+" WHERE s.vault_id = ? ORDER BY s.rel_path, l.id", vaultID)
}

// Backlinks returns the links that resolve to the document at relPath.
func (r *LinkRepo) Backlinks(ctx context.Context, vaultID int64, relPath string) ([]LinkView, error) {
	return r.query(ctx, linkViewQuery+" WHERE t.vault_id = ? AND t.rel_path = ? ORDER BY s.rel_path, l.id", vaultID, relPath)
}

// ListBySource returns the outgoing links of one document in insertion order.
func (r *LinkRepo) ListBySource(ctx context.Context, docID int64) ([]LinkView, error) {
	return r.query(ctx, linkViewQuery+" WHERE l.source_doc_id = ? ORDER BY l.id", docID)
}

func (r *LinkRepo) query(ctx context.Context, query string, args ...any) ([]LinkView, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []LinkView
	for rows.Next() {
		var v LinkView
		var target sql.NullInt64
		if err := rows.Scan(&v.ID, &v.SourceDocID, &target, &v.TargetPath, &v.TargetAnchor, &v.Alias,
			&v.IsEmbed, &v.IsWiki, &v.IsExternal, &v.SourcePath, &v.TargetRel); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		if target.Valid {
			id := target.Int64
			v.TargetDocID = &id
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// replace swaps a document's outgoing links and lookup keys for refs. When the
// same raw target appears twice the first occurrence wins.
func (r *LinkRepo) replace(ctx context.Context, vaultID, docID int64, relPath string, refs []links.Reference) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM link WHERE source_doc_id = ?", docID); err != nil {
		return fmt.Errorf("failed to clear links: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM wiki_link_ref WHERE source_doc_id = ?", docID); err != nil {
		return fmt.Errorf("failed to clear wiki link refs: %w", err)
	}

	resolver := links.NewResolver(NewDocRepo(r.db), vaultID)
	for _, ref := range refs {
		target, err := resolver.Resolve(ctx, relPath, ref)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO link (source_doc_id, target_doc_id, target_path, target_anchor, alias, is_embed, is_wiki, is_external)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			docID, target, ref.Target, ref.Anchor, ref.Alias, ref.IsEmbed, ref.IsWiki, ref.IsExternal,
		); err != nil {
			return fmt.Errorf("failed to insert link %q: %w", ref.Target, err)
		}

		for _, key := range links.QueryKeys(relPath, ref) {
			if _, err := r.db.ExecContext(ctx,
				"INSERT OR IGNORE INTO wiki_link_ref (source_doc_id, query_key) VALUES (?, ?)",
				docID, key,
			); err != nil {
				return fmt.Errorf("failed to insert wiki link ref: %w", err)
			}
		}
	}
	return nil
}

type pendingLink struct {
	id      int64
	target  string
	isWiki  bool
	current sql.NullInt64
}

// reResolveFor re-resolves the local links of every document holding a lookup
// key that the path key of a newly created document satisfies. It returns the
// number of links whose target changed.
func (r *LinkRepo) reResolveFor(ctx context.Context, vaultID int64, pathKey string) (int, error) {
	keys := links.Suffixes(pathKey)
	if len(keys) == 0 {
		return 0, nil
	}

	args := []any{vaultID}
	for _, k := range keys {
		args = append(args, k)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT d.id, d.rel_path FROM wiki_link_ref w
		 JOIN doc d ON d.id = w.source_doc_id
		 WHERE d.vault_id = ? AND w.query_key IN (`+placeholders(len(keys))+`)
		 ORDER BY d.id`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to query wiki link refs: %w", err)
	}
	type source struct {
		id      int64
		relPath string
	}
	var sources []source
	for rows.Next() {
		var s source
		if err := rows.Scan(&s.id, &s.relPath); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan wiki link ref: %w", err)
		}
		sources = append(sources, s)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("row iteration error: %w", err)
	}

	resolver := links.NewResolver(NewDocRepo(r.db), vaultID)
	changed := 0
	for _, s := range sources {
		pending, err := r.localLinks(ctx, s.id)
		if err != nil {
			return 0, err
		}
		for _, l := range pending {
			target, err := resolver.Resolve(ctx, s.relPath, links.Reference{Target: l.target, IsWiki: l.isWiki})
			if err != nil {
				return 0, err
			}
			if sameTarget(l.current, target) {
				continue
			}
			if _, err := r.db.ExecContext(ctx, "UPDATE link SET target_doc_id = ? WHERE id = ?", target, l.id); err != nil {
				return 0, fmt.Errorf("failed to update link target: %w", err)
			}
			changed++
		}
	}
	return changed, nil
}

func (r *LinkRepo) localLinks(ctx context.Context, docID int64) ([]pendingLink, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, target_path, is_wiki, target_doc_id FROM link WHERE source_doc_id = ? AND is_external = 0",
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query local links: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []pendingLink
	for rows.Next() {
		var l pendingLink
		if err := rows.Scan(&l.id, &l.target, &l.isWiki, &l.current); err != nil {
			return nil, fmt.Errorf("failed to scan local link: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (r *LinkRepo) counts(ctx context.Context, vaultID int64) (total, unresolved int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN l.target_doc_id IS NULL AND l.is_external = 0 THEN 1 ELSE 0 END), 0)
		 FROM link l JOIN doc s ON s.id = l.source_doc_id WHERE s.vault_id = ?`,
		vaultID,
	).Scan(&total, &unresolved)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count links: %w", err)
	}
	return total, unresolved, nil
}

func sameTarget(current sql.NullInt64, next *int64) bool {
	if !current.Valid || next == nil {
		return !current.Valid && next == nil
	}
	return current.Int64 == *next
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
