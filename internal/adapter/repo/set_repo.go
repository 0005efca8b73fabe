package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"mediaforge/internal/domain"
)

// SetRepositoryPG implements domain.SetRepository.
type SetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewSetRepository creates a set repository backed by PostgreSQL.
func NewSetRepository(pool *pgxpool.Pool) *SetRepositoryPG {
	return &SetRepositoryPG{pool: pool}
}

// CreateWithGenerations inserts the set and its generations in one
// transaction so a partial write never becomes visible.
func (r *SetRepositoryPG) CreateWithGenerations(ctx context.Context, set *domain.GenerationSet, generations []domain.Generation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO generation_sets (id, set_type, prompt, style, dimensions, created_at)
VALUES ($1, $2, $3, $4, $5, $6);
`, set.ID, set.SetType, set.Prompt, set.Style, set.Dimensions, set.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert set: %w", err)
	}

	for _, gen := range generations {
		palette, err := json.Marshal(gen.Palette)
		if err != nil {
			return fmt.Errorf("encode palette: %w", err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO generations (id, set_id, model_id, prompt, revised_prompt, dimensions, byte_size, cost, cost_unit, status, palette_json, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`,
			gen.ID,
			gen.SetID,
			gen.ModelID,
			gen.Prompt,
			gen.RevisedPrompt,
			gen.Dimensions,
			gen.ByteSize,
			gen.Cost.String(),
			gen.CostUnit,
			gen.Status,
			palette,
			gen.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert generation: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListSets returns the most recent sets, newest first.
func (r *SetRepositoryPG) ListSets(ctx context.Context, limit int) ([]domain.GenerationSet, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, set_type, prompt, style, dimensions, created_at
FROM generation_sets
ORDER BY created_at DESC
LIMIT $1;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []domain.GenerationSet
	for rows.Next() {
		var set domain.GenerationSet
		if err := rows.Scan(&set.ID, &set.SetType, &set.Prompt, &set.Style, &set.Dimensions, &set.CreatedAt); err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// ListGenerations returns the artifacts of one set in creation order.
func (r *SetRepositoryPG) ListGenerations(ctx context.Context, setID string) ([]domain.Generation, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, set_id, model_id, prompt, revised_prompt, dimensions, byte_size, cost::text, cost_unit, status, palette_json, created_at
FROM generations
WHERE set_id = $1
ORDER BY created_at ASC;
`, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var generations []domain.Generation
	for rows.Next() {
		var gen domain.Generation
		var cost string
		var palette []byte
		if err := rows.Scan(
			&gen.ID,
			&gen.SetID,
			&gen.ModelID,
			&gen.Prompt,
			&gen.RevisedPrompt,
			&gen.Dimensions,
			&gen.ByteSize,
			&cost,
			&gen.CostUnit,
			&gen.Status,
			&palette,
			&gen.CreatedAt,
		); err != nil {
			return nil, err
		}
		if gen.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("decode cost: %w", err)
		}
		if len(palette) > 0 {
			if err := json.Unmarshal(palette, &gen.Palette); err != nil {
				return nil, fmt.Errorf("decode palette: %w", err)
			}
		}
		generations = append(generations, gen)
	}
	return generations, rows.Err()
}

// DeleteSet removes a set; generations cascade via the foreign key.
func (r *SetRepositoryPG) DeleteSet(ctx context.Context, setID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM generation_sets WHERE id = $1;`, setID)
	return err
}

var _ domain.SetRepository = (*SetRepositoryPG)(nil)
