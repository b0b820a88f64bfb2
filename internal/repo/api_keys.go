package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"studioline/internal/domain"
)

const apiKeyColumns = `id, actor_id, COALESCE(name,''), key_hash, created_at, COALESCE(last_used_at,''), COALESCE(revoked_at,'')`

// HashAPIKey is the digest stored in place of the plain key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

func scanAPIKey(s interface{ Scan(...any) error }) (domain.APIKey, error) {
	var k domain.APIKey
	err := s.Scan(&k.ID, &k.ActorID, &k.Name, &k.KeyHash, &k.CreatedAt, &k.LastUsedAt, &k.RevokedAt)
	return k, err
}

// InsertAPIKey stores an operator key. KeyHash must already be a digest.
func (r Repo) InsertAPIKey(ctx context.Context, tx *sql.Tx, key domain.APIKey) error {
	if key.ID == "" || key.ActorID == "" || key.KeyHash == "" {
		return errors.New("api key needs id, actor_id and key_hash")
	}
	if key.CreatedAt == "" {
		key.CreatedAt = nowString()
	}
	_, err := r.q(tx).ExecContext(ctx,
		`INSERT INTO api_keys(id, actor_id, name, key_hash, created_at) VALUES (?,?,?,?,?)`,
		key.ID, key.ActorID, nullable(key.Name), key.KeyHash, key.CreatedAt)
	return err
}

// ActiveAPIKeyByHash ignores revoked keys.
func (r Repo) ActiveAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	key, err := scanAPIKey(r.DB.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash=? AND revoked_at IS NULL`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.APIKey{}, ErrNotFound
	}
	return key, err
}

// TouchAPIKey records when a key last authenticated a request.
func (r Repo) TouchAPIKey(ctx context.Context, id, at string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE api_keys SET last_used_at=? WHERE id=?`, at, id)
	return err
}

// ListAPIKeys returns issued keys newest first, revoked ones included.
func (r Repo) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys`
	var args []any
	if actorID != "" {
		query += ` WHERE actor_id=?`
		args = append(args, actorID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := []domain.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey stamps revoked_at. The row is kept so key ownership stays auditable.
// Revoking an unknown or already revoked key is ErrNotFound.
func (r Repo) RevokeAPIKey(ctx context.Context, id, at string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE api_keys SET revoked_at=? WHERE id=? AND revoked_at IS NULL`, at, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}
