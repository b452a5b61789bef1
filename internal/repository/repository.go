// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-access/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveEvent appends an access event to the history.
func (r *SQLRepository) SaveEvent(ctx context.Context, event *domain.AccessEvent) error {
	if event.CredentialID == "" {
		return fmt.Errorf("%w: credential id is required", ErrInvalidInput)
	}
	if event.RawTimestamp == "" {
		return fmt.Errorf("%w: raw timestamp is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO access_events (
			id, credential_id, raw_timestamp, timestamp, reader_kind,
			access_permitted, fraudulent, origin, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		uuid.New().String(),
		event.CredentialID, event.RawTimestamp, event.Timestamp,
		string(event.ReaderKind),
		boolPtrToNull(event.AccessPermitted),
		boolPtrToNull(event.Fraudulent),
		string(event.Origin),
		time.Now().UTC(),
	)
	return err
}

// ListEvents returns the full history in insertion order.
func (r *SQLRepository) ListEvents(ctx context.Context) ([]domain.AccessEvent, error) {
	query := `
		SELECT credential_id, raw_timestamp, timestamp, reader_kind,
			   access_permitted, fraudulent, origin
		FROM access_events
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AccessEvent
	for rows.Next() {
		var ev domain.AccessEvent
		var kind, origin string
		var permitted, fraudulent sql.NullInt64

		if err := rows.Scan(
			&ev.CredentialID, &ev.RawTimestamp, &ev.Timestamp,
			&kind, &permitted, &fraudulent, &origin,
		); err != nil {
			return nil, err
		}

		ev.ReaderKind = domain.ReaderKind(kind)
		ev.Origin = domain.Origin(origin)
		ev.AccessPermitted = nullToBoolPtr(permitted)
		ev.Fraudulent = nullToBoolPtr(fraudulent)

		events = append(events, ev)
	}

	return events, rows.Err()
}

// SaveReport stores a batch analysis report.
func (r *SQLRepository) SaveReport(ctx context.Context, report *domain.Report) error {
	if report.ID == "" {
		return fmt.Errorf("%w: report id is required", ErrInvalidInput)
	}

	results, _ := json.Marshal(report.Results)
	counts, _ := json.Marshal(report.Counts)

	noData := 0
	if report.NoData {
		noData = 1
	}

	query := `
		INSERT INTO reports (
			id, generated_at, results, counts, no_data,
			historical_count, live_count, duplicate_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		report.ID, report.GeneratedAt,
		string(results), string(counts), noData,
		report.HistoricalCount, report.LiveCount, report.DuplicateCount,
	)
	return err
}

// GetReport retrieves a report by ID.
func (r *SQLRepository) GetReport(ctx context.Context, reportID string) (*domain.Report, error) {
	query := `
		SELECT id, generated_at, results, counts, no_data,
			   historical_count, live_count, duplicate_count
		FROM reports
		WHERE id = ?
	`

	var report domain.Report
	var results, counts string
	var noData int

	err := r.db.QueryRowContext(ctx, r.rebind(query), reportID).Scan(
		&report.ID, &report.GeneratedAt, &results, &counts, &noData,
		&report.HistoricalCount, &report.LiveCount, &report.DuplicateCount,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	report.NoData = noData == 1
	json.Unmarshal([]byte(results), &report.Results)
	json.Unmarshal([]byte(counts), &report.Counts)

	return &report, nil
}

// SaveRuleConfig stores a custom scoring rule.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, version, expression, points, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			points = excluded.points,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Version,
		rule.Expression, rule.Points, rule.Reason, enabled,
		now, now,
	)
	return err
}

// GetRuleConfig retrieves a custom rule by ID.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, points, reason, enabled
		FROM rule_configs
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.RuleConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&cfg.ID, &cfg.Name, &cfg.Description, &cfg.Version,
		&cfg.Expression, &cfg.Points, &cfg.Reason, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	return &cfg, nil
}

// ListRuleConfigs returns all enabled custom rules.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, points, reason, enabled
		FROM rule_configs
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Description, &cfg.Version,
			&cfg.Expression, &cfg.Points, &cfg.Reason, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// boolPtrToNull maps a tri-state bool to a nullable integer column.
func boolPtrToNull(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

func nullToBoolPtr(n sql.NullInt64) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Int64 == 1
	return &v
}
