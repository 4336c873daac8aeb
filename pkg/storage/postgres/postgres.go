// Package postgres provides a PostgreSQL implementation of
// transport.AnalysisStore. It uses pgx/v5 for connection pooling and JSONB
// columns for the analysis result and error.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/storage"
	"github.com/rhuss/consensus/pkg/transport"
)

// Store is a PostgreSQL-backed AnalysisStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ transport.AnalysisStore = (*Store)(nil)

// New connects to PostgreSQL. If MigrateOnStart is set, schema migrations
// are applied before it returns.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}
	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return s, nil
}

// row is the column form of a Report.
type row struct {
	result     []byte
	errJSON    []byte
	confidence *float64
	completed  *int64
}

func toRow(rep *api.Report) (row, error) {
	var r row
	if rep.Result != nil {
		b, err := json.Marshal(rep.Result)
		if err != nil {
			return r, fmt.Errorf("marshaling result: %w", err)
		}
		r.result = b
		c := rep.Result.OverallConfidence
		r.confidence = &c
	}
	if rep.Error != nil {
		b, err := json.Marshal(rep.Error)
		if err != nil {
			return r, fmt.Errorf("marshaling error: %w", err)
		}
		r.errJSON = b
	}
	if rep.CompletedAt != 0 {
		c := rep.CompletedAt
		r.completed = &c
	}
	return r, nil
}

// SaveReport inserts a new report owned by the context's tenant (or the
// report's own Tenant, when set).
func (s *Store) SaveReport(ctx context.Context, rep *api.Report) error {
	r, err := toRow(rep)
	if err != nil {
		return err
	}
	tenant := rep.Tenant
	if tenant == "" {
		tenant = storage.GetTenant(ctx)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analyses (
			id, tenant_id, domain, state, result, error,
			overall_confidence, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rep.ID, tenant, rep.Domain, string(rep.State), nullJSON(r.result), nullJSON(r.errJSON),
		r.confidence, rep.CreatedAt, r.completed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// UpdateReport overwrites the mutable columns of a stored report.
func (s *Store) UpdateReport(ctx context.Context, rep *api.Report) error {
	r, err := toRow(rep)
	if err != nil {
		return err
	}

	query := `
		UPDATE analyses
		SET state = $2, result = $3, error = $4, overall_confidence = $5, completed_at = $6
		WHERE id = $1`
	args := []any{rep.ID, string(rep.State), nullJSON(r.result), nullJSON(r.errJSON), r.confidence, r.completed}
	query, args = scopeToTenant(ctx, query, args)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const selectColumns = `id, tenant_id, domain, state, result, error, created_at, completed_at`

// GetReport retrieves a report by ID.
func (s *Store) GetReport(ctx context.Context, id string) (*api.Report, error) {
	query, args := scopeToTenant(ctx, "SELECT "+selectColumns+" FROM analyses WHERE id = $1", []any{id})

	rep, err := scanReport(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying report: %w", err)
	}
	return rep, nil
}

// DeleteReport removes a report.
func (s *Store) DeleteReport(ctx context.Context, id string) error {
	query, args := scopeToTenant(ctx, "DELETE FROM analyses WHERE id = $1", []any{id})

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListReports returns a page of reports ordered by (created_at, id). A
// cursor that does not exist yields an empty page.
func (s *Store) ListReports(ctx context.Context, opts transport.ListOptions) (*transport.ReportList, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if tenant := storage.GetTenant(ctx); tenant != "" {
		where = append(where, "tenant_id = "+arg(tenant))
	}
	if opts.Domain != "" {
		where = append(where, "domain = "+arg(opts.Domain))
	}

	asc := opts.Order == "asc"
	if cursor, after := cursorOf(opts); cursor != "" {
		// "after" walks in list order, "before" against it.
		op := "<"
		if asc == after {
			op = ">"
		}
		where = append(where, fmt.Sprintf(
			"(created_at, id) %s (SELECT created_at, id FROM analyses WHERE id = %s)", op, arg(cursor)))
	}

	dir := "DESC"
	if asc {
		dir = "ASC"
	}
	limit := opts.EffectiveLimit()

	query := "SELECT " + selectColumns + " FROM analyses"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT %s", dir, dir, arg(limit+1))

	debug.Log("storage", "listing reports", "query", query)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var page []*api.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		page = append(page, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	return transport.NewReportList(page, hasMore), nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func cursorOf(opts transport.ListOptions) (cursor string, after bool) {
	if opts.After != "" {
		return opts.After, true
	}
	return opts.Before, false
}

// scopeToTenant appends a tenant condition when the context carries one.
func scopeToTenant(ctx context.Context, query string, args []any) (string, []any) {
	tenant := storage.GetTenant(ctx)
	if tenant == "" {
		return query, args
	}
	args = append(args, tenant)
	return query + fmt.Sprintf(" AND tenant_id = $%d", len(args)), args
}

func scanReport(r pgx.Row) (*api.Report, error) {
	var (
		rep       api.Report
		state     string
		result    []byte
		errJSON   []byte
		completed *int64
	)
	if err := r.Scan(&rep.ID, &rep.Tenant, &rep.Domain, &state, &result, &errJSON, &rep.CreatedAt, &completed); err != nil {
		return nil, err
	}
	rep.Object = api.ReportObject
	rep.State = api.PipelineState(state)
	if completed != nil {
		rep.CompletedAt = *completed
	}
	if len(result) > 0 {
		var res api.AnalysisResult
		if err := json.Unmarshal(result, &res); err != nil {
			return nil, fmt.Errorf("unmarshaling result: %w", err)
		}
		rep.Result = &res
	}
	if len(errJSON) > 0 {
		var apiErr api.APIError
		if err := json.Unmarshal(errJSON, &apiErr); err != nil {
			return nil, fmt.Errorf("unmarshaling error: %w", err)
		}
		rep.Error = &apiErr
	}
	return &rep, nil
}

// nullJSON converts an empty byte slice to nil for nullable JSONB columns.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// isUniqueViolation reports a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
