package database

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/victoralfred/varbacktest/internal/core/domain"
	"github.com/victoralfred/varbacktest/internal/report"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ReportRepository stores reports as JSONB next to the columns used for
// filtering and ordering.
type ReportRepository struct {
	db DB
}

func NewReportRepository(db DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Save(ctx context.Context, rep *report.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return domain.NewStorageError("save_report", err)
	}

	query := `
		INSERT INTO backtest_reports (
			id, symbol, confidence, threshold, observations, exceedances,
			kupiec_p_value, independence_p_value, conditional_p_value,
			degenerate, report, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	err = r.db.Exec(ctx, query,
		rep.ID, rep.Symbol, rep.Confidence, rep.Threshold, rep.Observations, rep.Exceedances,
		rep.Coverage.PValue, nullablePValue(rep.Independence.TestResult), nullablePValue(rep.Conditional),
		rep.Degenerate, payload, rep.CreatedAt,
	)
	if err != nil {
		return domain.NewStorageError("save_report", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*report.Report, error) {
	var payload []byte
	err := r.db.QueryRow(ctx, `SELECT report FROM backtest_reports WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("report", id.String())
		}
		return nil, domain.NewStorageError("get_report", err)
	}
	return decode(payload)
}

// List returns the newest reports first. limit is clamped to
// [1, MaxListLimit]; zero or negative means DefaultListLimit.
func (r *ReportRepository) List(ctx context.Context, limit int) ([]*report.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := r.db.Query(ctx, `SELECT report FROM backtest_reports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, domain.NewStorageError("list_reports", err)
	}
	defer rows.Close()

	reports := make([]*report.Report, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, domain.NewStorageError("list_reports", err)
		}
		rep, err := decode(payload)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list_reports", err)
	}

	return reports, nil
}

func decode(payload []byte) (*report.Report, error) {
	var rep report.Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, domain.NewStorageError("decode_report", err)
	}
	return &rep, nil
}

// nullablePValue stores an unavailable result as NULL
func nullablePValue(t domain.TestResult) *float64 {
	if t.Unavailable {
		return nil
	}
	p := t.PValue
	return &p
}
