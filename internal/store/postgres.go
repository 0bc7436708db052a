package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"shiprelay/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies the .sql files in dir in lexical order (dev helper).
func (p *Postgres) MigrateDir(dir string) error {
	items, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, it := range items {
		if !it.IsDir() && strings.HasSuffix(it.Name(), ".sql") {
			names = append(names, it.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migration %s: %w", n, err)
		}
	}
	return nil
}

func (p *Postgres) SaveAuditLog(ctx context.Context, e model.AuditLogEntry) (int64, error) {
	if err := validateEntry(e); err != nil {
		return 0, err
	}
	var id int64
	err := p.db.QueryRowContext(ctx, `INSERT INTO audit_logs
		(external_order_id, order_label, shop, event_type, status, request_data, response_data, error_message, http_status, retry_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		e.ExternalOrderID, nullIfEmpty(e.OrderLabel), e.Shop, e.EventType, e.Status,
		rawOrNil(e.RequestData), rawOrNil(e.ResponseData), nullIfEmpty(e.ErrorMessage),
		zeroToNil(e.HTTPStatus), e.RetryCount).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Postgres) UpdateAuditLog(ctx context.Context, externalOrderID, eventType string, upd model.AuditLogUpdate) error {
	var id int64
	err := p.db.QueryRowContext(ctx, `SELECT id FROM audit_logs
		WHERE external_order_id=$1 AND event_type=$2
		ORDER BY created_at DESC, id DESC LIMIT 1`, externalOrderID, eventType).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = p.SaveAuditLog(ctx, entryFromUpdate(externalOrderID, eventType, upd))
		return err
	}
	if err != nil {
		return err
	}
	// COALESCE keeps fields not explicitly provided.
	var retry any
	if upd.RetryCount != nil && *upd.RetryCount >= 0 {
		retry = *upd.RetryCount
	}
	var httpStatus any
	if upd.HTTPStatus != nil {
		httpStatus = *upd.HTTPStatus
	}
	_, err = p.db.ExecContext(ctx, `UPDATE audit_logs SET
		status = COALESCE($2, status),
		response_data = COALESCE($3, response_data),
		error_message = COALESCE($4, error_message),
		http_status = COALESCE($5, http_status),
		retry_count = COALESCE($6, retry_count),
		updated_at = now()
		WHERE id=$1`,
		id, nullIfEmpty(upd.Status), rawOrNil(upd.ResponseData), nullIfEmpty(upd.ErrorMessage), httpStatus, retry)
	return err
}

func (p *Postgres) ListAuditLogsForOrder(ctx context.Context, externalOrderID string, limit int) ([]model.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, auditSelect+` WHERE external_order_id=$1
		ORDER BY created_at DESC, id DESC LIMIT $2`, externalOrderID, limit)
	if err != nil {
		return nil, err
	}
	return scanAuditLogs(rows)
}

func (p *Postgres) ListAuditLogs(ctx context.Context, shop string, limit int) ([]model.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if shop == "" {
		rows, err = p.db.QueryContext(ctx, auditSelect+` ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, auditSelect+` WHERE shop=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, shop, limit)
	}
	if err != nil {
		return nil, err
	}
	return scanAuditLogs(rows)
}

func (p *Postgres) PurgeAuditLogsOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(age.Seconds())))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (p *Postgres) GetLogisticCenter(ctx context.Context, shop string) (model.LogisticCenter, error) {
	return p.getCenter(ctx, `SELECT shop, base_url, access_token, external_id, webhook_token, created_at, updated_at
		FROM logistic_centers WHERE shop=$1`, shop)
}

func (p *Postgres) GetLogisticCenterByToken(ctx context.Context, token string) (model.LogisticCenter, error) {
	return p.getCenter(ctx, `SELECT shop, base_url, access_token, external_id, webhook_token, created_at, updated_at
		FROM logistic_centers WHERE webhook_token=$1`, token)
}

func (p *Postgres) getCenter(ctx context.Context, q, arg string) (model.LogisticCenter, error) {
	var lc model.LogisticCenter
	var baseURL, accessToken, externalID, webhookToken sql.NullString
	err := p.db.QueryRowContext(ctx, q, arg).
		Scan(&lc.Shop, &baseURL, &accessToken, &externalID, &webhookToken, &lc.CreatedAt, &lc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LogisticCenter{}, ErrNotFound
	}
	if err != nil {
		return model.LogisticCenter{}, err
	}
	lc.BaseURL = baseURL.String
	lc.AccessToken = accessToken.String
	lc.ExternalID = externalID.String
	lc.WebhookToken = webhookToken.String
	return lc, nil
}

func (p *Postgres) UpsertLogisticCenter(ctx context.Context, lc model.LogisticCenter) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO logistic_centers (shop, base_url, access_token, external_id, webhook_token)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (shop) DO UPDATE SET
			base_url=EXCLUDED.base_url,
			access_token=EXCLUDED.access_token,
			external_id=EXCLUDED.external_id,
			webhook_token=EXCLUDED.webhook_token,
			updated_at=now()`,
		lc.Shop, nullIfEmpty(lc.BaseURL), nullIfEmpty(lc.AccessToken), nullIfEmpty(lc.ExternalID), nullIfEmpty(lc.WebhookToken))
	return err
}

func (p *Postgres) GetSession(ctx context.Context, shop string) (model.Session, error) {
	var s model.Session
	var expires sql.NullTime
	err := p.db.QueryRowContext(ctx, `SELECT id, shop, access_token, expires FROM sessions WHERE shop=$1 LIMIT 1`, shop).
		Scan(&s.ID, &s.Shop, &s.AccessToken, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	if expires.Valid {
		s.Expires = expires.Time
	}
	return s, nil
}

func (p *Postgres) ListActiveSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, shop, access_token, expires FROM sessions
		WHERE expires IS NULL OR expires > now() ORDER BY shop`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Session{}
	for rows.Next() {
		var s model.Session
		var expires sql.NullTime
		if err := rows.Scan(&s.ID, &s.Shop, &s.AccessToken, &expires); err != nil {
			return nil, err
		}
		if expires.Valid {
			s.Expires = expires.Time
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertSession(ctx context.Context, s model.Session) error {
	var expires any
	if !s.Expires.IsZero() {
		expires = s.Expires
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO sessions (id, shop, access_token, expires)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (shop) DO UPDATE SET id=EXCLUDED.id, access_token=EXCLUDED.access_token, expires=EXCLUDED.expires`,
		s.ID, s.Shop, s.AccessToken, expires)
	return err
}

const auditSelect = `SELECT id, external_order_id, order_label, shop, event_type, status,
	request_data, response_data, error_message, http_status, retry_count, created_at, updated_at
	FROM audit_logs`

func scanAuditLogs(rows *sql.Rows) ([]model.AuditLogEntry, error) {
	defer rows.Close()
	out := []model.AuditLogEntry{}
	for rows.Next() {
		var e model.AuditLogEntry
		var label, errMsg sql.NullString
		var req, resp []byte
		var httpStatus sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ExternalOrderID, &label, &e.Shop, &e.EventType, &e.Status,
			&req, &resp, &errMsg, &httpStatus, &e.RetryCount, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.OrderLabel = label.String
		e.ErrorMessage = errMsg.String
		e.RequestData = req
		e.ResponseData = resp
		e.HTTPStatus = int(httpStatus.Int64)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func rawOrNil(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func zeroToNil(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
