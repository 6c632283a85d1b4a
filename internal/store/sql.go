package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"sportsmeet/internal/models"
)

// ErrDuplicate is returned when a participant already has a record for the event.
var ErrDuplicate = errors.New("participant already registered for event")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02 15:04:05.000000000"

const playerColumns = `id, identity_number, organisation, sport, discipline, category, name, age,
	date_of_birth, blood_group, tshirt_size, mobile, employee_id, meal_type, health_issues,
	profile_picture, id_card, travel_mode, travel_document, travel_document_name,
	travel_document_type, travel_updated_at, registered_by, created, updated`

var schema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		identity_number TEXT NOT NULL,
		organisation TEXT NOT NULL,
		sport TEXT NOT NULL,
		discipline TEXT NOT NULL,
		category TEXT NOT NULL,
		name TEXT NOT NULL,
		age INTEGER NOT NULL DEFAULT 0,
		date_of_birth TEXT NOT NULL DEFAULT '',
		blood_group TEXT NOT NULL DEFAULT '',
		tshirt_size TEXT NOT NULL DEFAULT '',
		mobile TEXT NOT NULL DEFAULT '',
		employee_id TEXT NOT NULL DEFAULT '',
		meal_type TEXT NOT NULL DEFAULT '',
		health_issues TEXT NOT NULL DEFAULT '',
		profile_picture TEXT NOT NULL DEFAULT '',
		id_card TEXT NOT NULL DEFAULT '',
		travel_mode TEXT,
		travel_document TEXT,
		travel_document_name TEXT,
		travel_document_type TEXT,
		travel_updated_at TEXT,
		registered_by TEXT NOT NULL,
		created TEXT NOT NULL,
		updated TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS players_identity_event ON players (identity_number, sport, discipline, category)`,
	`CREATE INDEX IF NOT EXISTS players_registered_by ON players (registered_by)`,
	`CREATE TABLE IF NOT EXISTS settings (
		setting_key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS news (
		id TEXT PRIMARY KEY,
		news TEXT NOT NULL,
		created TEXT NOT NULL
	)`,
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLRepo persists registrations in SQLite or PostgreSQL.
type SQLRepo struct {
	db     *sql.DB
	driver string
}

func NewSQLRepo(driver, dsn string) (*SQLRepo, error) {
	db, err := initDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	return &SQLRepo{db: db, driver: driver}, nil
}

func initDB(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// one writer at a time; transactions queue on the pool
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return db, nil
}

// sqliteDSN adds the connection options the repo relies on to a path or DSN.
// Caller options are kept, except that transactions always take the write
// lock up front.
func sqliteDSN(dsn string) string {
	base, query, _ := strings.Cut(dsn, "?")
	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}

	var params []string
	for _, p := range strings.Split(query, "&") {
		if p == "" || strings.HasPrefix(p, "_txlock=") {
			continue
		}
		params = append(params, p)
	}
	if !strings.Contains(query, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(query, "foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	params = append(params, "_txlock=immediate")
	return base + "?" + strings.Join(params, "&")
}

func (r *SQLRepo) Close() error {
	return r.db.Close()
}

func (r *SQLRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepo) tx(q queryer) *sqlTx {
	return &sqlTx{q: q, driver: r.driver}
}

func (r *SQLRepo) ListRegistrations(ctx context.Context, filter Filter) ([]*models.Player, error) {
	return r.tx(r.db).ListRegistrations(ctx, filter)
}

func (r *SQLRepo) CreateRegistration(ctx context.Context, player *models.Player) (*models.Player, error) {
	return r.tx(r.db).CreateRegistration(ctx, player)
}

func (r *SQLRepo) UpdateRegistration(ctx context.Context, player *models.Player) (*models.Player, error) {
	return r.tx(r.db).UpdateRegistration(ctx, player)
}

func (r *SQLRepo) GetRegistration(ctx context.Context, id string) (*models.Player, error) {
	row := r.db.QueryRowContext(ctx, rebind(r.driver, `SELECT `+playerColumns+` FROM players WHERE id = ?`), id)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *SQLRepo) DeleteRegistration(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, rebind(r.driver, `DELETE FROM players WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// WithIdentityTx runs fn in a write transaction. SQLite transactions start as
// IMMEDIATE and so hold the database write lock; PostgreSQL takes a
// transaction-scoped advisory lock on the identity number.
func (r *SQLRepo) WithIdentityTx(ctx context.Context, identityNumber string, fn func(tx RegistrationTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if r.driver == DriverPostgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, identityNumber); err != nil {
			return fmt.Errorf("failed to lock identity: %w", err)
		}
	}

	if err := fn(r.tx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLRepo) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var s models.Setting
	var updated string
	err := r.db.QueryRowContext(ctx, rebind(r.driver, `SELECT setting_key, value, updated FROM settings WHERE setting_key = ?`), key).
		Scan(&s.Key, &s.Value, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Updated = parseTime(updated)
	return &s, nil
}

func (r *SQLRepo) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, rebind(r.driver, `
		INSERT INTO settings (setting_key, value, updated)
		VALUES (?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
		value=excluded.value,
		updated=excluded.updated`),
		key, value, formatTime(time.Now()))
	return err
}

func (r *SQLRepo) ListNews(ctx context.Context, page, perPage int) ([]*models.NewsItem, int, error) {
	if page < 1 {
		page = 1
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, rebind(r.driver, `SELECT id, news, created FROM news ORDER BY created DESC LIMIT ? OFFSET ?`),
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*models.NewsItem{}
	for rows.Next() {
		var n models.NewsItem
		var created string
		if err := rows.Scan(&n.ID, &n.Text, &created); err != nil {
			return nil, 0, err
		}
		n.Created = parseTime(created)
		items = append(items, &n)
	}
	return items, total, rows.Err()
}

func (r *SQLRepo) CreateNews(ctx context.Context, text string) (*models.NewsItem, error) {
	n := &models.NewsItem{ID: uuid.NewString(), Text: text, Created: time.Now().UTC()}
	_, err := r.db.ExecContext(ctx, rebind(r.driver, `INSERT INTO news (id, news, created) VALUES (?, ?, ?)`),
		n.ID, n.Text, formatTime(n.Created))
	if err != nil {
		return nil, err
	}
	return n, nil
}

// sqlTx runs registration queries on either the pool or an open transaction.
type sqlTx struct {
	q      queryer
	driver string
}

func (t *sqlTx) ListRegistrations(ctx context.Context, filter Filter) ([]*models.Player, error) {
	var where []string
	var args []any
	if filter.IdentityNumber != "" {
		where = append(where, "identity_number = ?")
		args = append(args, filter.IdentityNumber)
	}
	if filter.RegisteredBy != "" {
		where = append(where, "registered_by = ?")
		args = append(args, filter.RegisteredBy)
	}
	if filter.Organisation != "" {
		where = append(where, "organisation = ?")
		args = append(args, filter.Organisation)
	}

	query := `SELECT ` + playerColumns + ` FROM players`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created DESC, id"

	rows, err := t.q.QueryContext(ctx, rebind(t.driver, query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []*models.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (t *sqlTx) CreateRegistration(ctx context.Context, player *models.Player) (*models.Player, error) {
	if player == nil {
		return nil, fmt.Errorf("empty player cannot be saved")
	}
	p := *player
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.Created, p.Updated = now, now

	args := append([]any{p.ID}, playerValues(&p)...)
	args = append(args, formatTime(p.Created), formatTime(p.Updated))
	_, err := t.q.ExecContext(ctx, rebind(t.driver, `INSERT INTO players (`+playerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), args...)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *sqlTx) UpdateRegistration(ctx context.Context, player *models.Player) (*models.Player, error) {
	if player == nil || player.ID == "" {
		return nil, fmt.Errorf("player without id cannot be updated")
	}
	p := *player
	p.Updated = time.Now().UTC()

	args := append(playerValues(&p), formatTime(p.Updated), p.ID)
	res, err := t.q.ExecContext(ctx, rebind(t.driver, `
		UPDATE players SET
		identity_number=?, organisation=?, sport=?, discipline=?, category=?, name=?, age=?,
		date_of_birth=?, blood_group=?, tshirt_size=?, mobile=?, employee_id=?, meal_type=?, health_issues=?,
		profile_picture=?, id_card=?, travel_mode=?, travel_document=?, travel_document_name=?,
		travel_document_type=?, travel_updated_at=?, registered_by=?, updated=?
		WHERE id = ?`), args...)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	if err := expectRow(res); err != nil {
		return nil, err
	}
	return &p, nil
}

// playerValues lists the mutable columns in playerColumns order, without id,
// created and updated.
func playerValues(p *models.Player) []any {
	var mode, doc, docName, docType, travelUpdated sql.NullString
	if tp := p.TravelPlan; tp != nil {
		mode = sql.NullString{String: tp.Mode, Valid: true}
		doc = sql.NullString{String: tp.Document, Valid: true}
		docName = sql.NullString{String: tp.DocumentName, Valid: true}
		docType = sql.NullString{String: tp.DocumentType, Valid: true}
		travelUpdated = sql.NullString{String: formatTime(tp.UpdatedAt), Valid: true}
	}
	return []any{
		p.IdentityNumber, p.Organisation, p.Event.Sport, p.Event.Discipline, p.Event.Category, p.Name, p.Age,
		p.DateOfBirth, p.BloodGroup, p.TShirtSize, p.Mobile, p.EmployeeID, p.MealType, p.HealthIssues,
		p.ProfilePicture, p.IDCard, mode, doc, docName, docType, travelUpdated, p.RegisteredBy,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(s scanner) (*models.Player, error) {
	var p models.Player
	var mode, doc, docName, docType, travelUpdated sql.NullString
	var created, updated string
	err := s.Scan(&p.ID, &p.IdentityNumber, &p.Organisation, &p.Event.Sport, &p.Event.Discipline, &p.Event.Category,
		&p.Name, &p.Age, &p.DateOfBirth, &p.BloodGroup, &p.TShirtSize, &p.Mobile, &p.EmployeeID, &p.MealType,
		&p.HealthIssues, &p.ProfilePicture, &p.IDCard, &mode, &doc, &docName, &docType, &travelUpdated,
		&p.RegisteredBy, &created, &updated)
	if err != nil {
		return nil, err
	}
	if mode.Valid {
		p.TravelPlan = &models.TravelPlan{
			Mode:         mode.String,
			Document:     doc.String,
			DocumentName: docName.String,
			DocumentType: docType.String,
			UpdatedAt:    parseTime(travelUpdated.String),
		}
	}
	p.Created = parseTime(created)
	p.Updated = parseTime(updated)
	return &p, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// rebind rewrites ? placeholders into PostgreSQL's $n form.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
