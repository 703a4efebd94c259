package templates

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

var (
	// ErrTemplateNotFound is returned when no template carries the requested name.
	ErrTemplateNotFound = errors.New("tax template not found")
	// ErrStoreUnavailable is returned when the template store has no database.
	ErrStoreUnavailable = errors.New("tax template store unavailable")
)

// Template is a named, ordered set of tax lines applied to documents that
// carry no taxes of their own.
type Template struct {
	Name      string          `json:"name"`
	Title     string          `json:"title"`
	Lines     []taxes.TaxLine `json:"lines"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Summary is the list view of a template.
type Summary struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	LineCount int       `json:"lineCount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists tax templates.
type Store interface {
	Get(ctx context.Context, name string) (Template, error)
	List(ctx context.Context, limit, offset int) ([]Summary, error)
	Count(ctx context.Context) (int64, error)
	Save(ctx context.Context, t Template) error
}

// DB is the subset of pgxpool.Pool used by PGStore.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps templates in the tax_templates and tax_template_lines tables.
type PGStore struct {
	db DB
}

// NewPGStore returns a Store backed by PostgreSQL.
func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

const selectLines = `SELECT idx, charge_type, account_head, description, rate, tax_amount,
	included_in_rate, row_reference, category, add_or_deduct
FROM tax_template_lines WHERE template_name = $1 ORDER BY idx`

func (s *PGStore) Get(ctx context.Context, name string) (Template, error) {
	if s == nil || s.db == nil {
		return Template{}, ErrStoreUnavailable
	}
	t := Template{Name: name}
	err := s.db.QueryRow(ctx, `SELECT title, updated_at FROM tax_templates WHERE name = $1`, name).
		Scan(&t.Title, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, ErrTemplateNotFound
		}
		return Template{}, err
	}

	rows, err := s.db.Query(ctx, selectLines, name)
	if err != nil {
		return Template{}, err
	}
	t.Lines, err = pgx.CollectRows(rows, scanLine)
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

func scanLine(row pgx.CollectableRow) (taxes.TaxLine, error) {
	var (
		line               taxes.TaxLine
		chargeType         string
		category, addOrDed string
		rate, amount       decimal.Decimal
	)
	err := row.Scan(&line.Idx, &chargeType, &line.AccountHead, &line.Description, &rate, &amount,
		&line.IncludedInRate, &line.RowReference, &category, &addOrDed)
	line.ChargeType = taxes.ChargeType(chargeType)
	line.Category = taxes.Category(category)
	line.AddOrDeduct = taxes.AddOrDeduct(addOrDed)
	line.Rate = rate
	line.TaxAmount = amount
	return line, err
}

func (s *PGStore) List(ctx context.Context, limit, offset int) ([]Summary, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.db.Query(ctx, `SELECT t.name, t.title, t.updated_at,
	(SELECT COUNT(*) FROM tax_template_lines l WHERE l.template_name = t.name)
FROM tax_templates t ORDER BY t.name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		var sum Summary
		err := row.Scan(&sum.Name, &sum.Title, &sum.UpdatedAt, &sum.LineCount)
		return sum, err
	})
}

func (s *PGStore) Count(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrStoreUnavailable
	}
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tax_templates`).Scan(&total)
	return total, err
}

// Save upserts the template header and replaces its lines in one transaction.
func (s *PGStore) Save(ctx context.Context, t Template) error {
	if s == nil || s.db == nil {
		return ErrStoreUnavailable
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `INSERT INTO tax_templates (name, title, updated_at) VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET title = EXCLUDED.title, updated_at = now()`, t.Name, t.Title); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tax_template_lines WHERE template_name = $1`, t.Name); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, line := range t.Lines {
		batch.Queue(`INSERT INTO tax_template_lines (template_name, idx, charge_type, account_head, description,
	rate, tax_amount, included_in_rate, row_reference, category, add_or_deduct)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			t.Name, i+1, string(line.ChargeType), line.AccountHead, line.Description,
			line.Rate, line.TaxAmount, line.IncludedInRate, line.RowReference,
			string(line.Category), string(line.AddOrDeduct))
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
