package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"projecthub/internal/models"
)

type ContractRepository struct {
	pool *pgxpool.Pool
}

func NewContractRepository(pool *pgxpool.Pool) *ContractRepository {
	return &ContractRepository{pool: pool}
}

func (r *ContractRepository) Create(ctx context.Context, contract models.Contract) error {
	const query = `
		INSERT INTO contracts (
			id, project_id, contract_url, contract_key, payment_url, payment_key, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`
	_, err := r.pool.Exec(ctx, query,
		contract.ID,
		contract.ProjectID,
		contract.ContractURL,
		contract.ContractKey,
		contract.PaymentURL,
		contract.PaymentKey,
		contract.CreatedAt,
	)
	return err
}

func (r *ContractRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	const query = `SELECT COUNT(*) FROM contracts WHERE project_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, projectID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ContractRepository) ListByProjects(ctx context.Context, projectIDs []string) ([]models.Contract, error) {
	const query = `
		SELECT id, project_id, contract_url, contract_key, payment_url, payment_key, created_at
		FROM contracts
		WHERE project_id = ANY($1)
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, projectIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []models.Contract
	for rows.Next() {
		var contract models.Contract
		if err := rows.Scan(
			&contract.ID,
			&contract.ProjectID,
			&contract.ContractURL,
			&contract.ContractKey,
			&contract.PaymentURL,
			&contract.PaymentKey,
			&contract.CreatedAt,
		); err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	return contracts, rows.Err()
}
