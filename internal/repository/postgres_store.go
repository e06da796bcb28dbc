package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	applogger "ForexPulse/pkg/logger"
)

// PostgresSchema is the idempotent DDL for PostgresStore.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS bars (
		instrument TEXT NOT NULL,
		timeframe  TEXT NOT NULL,
		ts         TIMESTAMPTZ NOT NULL,
		open       DOUBLE PRECISION NOT NULL,
		high       DOUBLE PRECISION NOT NULL,
		low        DOUBLE PRECISION NOT NULL,
		close      DOUBLE PRECISION NOT NULL,
		volume     DOUBLE PRECISION NOT NULL,
		bid        DOUBLE PRECISION,
		ask        DOUBLE PRECISION,
		PRIMARY KEY (instrument, timeframe, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS news (
		id                 BIGSERIAL PRIMARY KEY,
		source             TEXT NOT NULL,
		url                TEXT NOT NULL UNIQUE,
		published_at       TIMESTAMPTZ NOT NULL,
		title              TEXT NOT NULL,
		summary            TEXT NOT NULL DEFAULT '',
		summary_compressed TEXT NOT NULL DEFAULT '',
		sentiment_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
		sentiment_label    TEXT NOT NULL DEFAULT 'neutral',
		impact_level       TEXT NOT NULL DEFAULT 'low',
		impacted_assets    JSONB NOT NULL DEFAULT '[]',
		topics             JSONB NOT NULL DEFAULT '{}',
		rationale          TEXT NOT NULL DEFAULT '',
		is_fundamental     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS news_published_at_idx ON news (published_at)`,
	`CREATE INDEX IF NOT EXISTS news_created_at_idx ON news (created_at)`,
	`CREATE TABLE IF NOT EXISTS macro_events (
		id         BIGSERIAL PRIMARY KEY,
		event_time TIMESTAMPTZ NOT NULL,
		currency   TEXT NOT NULL,
		impact     TEXT NOT NULL,
		name       TEXT NOT NULL,
		forecast   TEXT NOT NULL DEFAULT '',
		previous   TEXT NOT NULL DEFAULT '',
		actual     TEXT NOT NULL DEFAULT '',
		source     TEXT NOT NULL,
		UNIQUE (event_time, currency, name, source)
	)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id            BIGSERIAL PRIMARY KEY,
		instrument    TEXT NOT NULL,
		ts            TIMESTAMPTZ NOT NULL,
		label         TEXT NOT NULL,
		confidence    DOUBLE PRECISION NOT NULL,
		explanation   JSONB NOT NULL,
		model_version TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (instrument, ts, model_version)
	)`,
	`CREATE TABLE IF NOT EXISTS job_health (
		job_name TEXT PRIMARY KEY,
		last_run TIMESTAMPTZ NOT NULL,
		status   TEXT NOT NULL,
		error    TEXT NOT NULL DEFAULT '',
		ok       BOOLEAN NOT NULL
	)`,
}

const pqUniqueViolation = "23505"

// PostgresStore implements domain Storage on PostgreSQL.
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
	l       *applogger.Logger
}

func NewPostgresStore(db *sqlx.DB, timeout time.Duration, l *applogger.Logger) *PostgresStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout, l: l}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	for _, stmt := range PostgresSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PostgresStore) Close() error { return s.db.Close() }

// --- bars ---

const barColumns = `instrument, timeframe, ts, open, high, low, close, volume, bid, ask`

func (s *PostgresStore) InsertBar(ctx context.Context, b models.Bar) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO bars (`+barColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (instrument, timeframe, ts) DO NOTHING`,
		b.Instrument, b.Timeframe, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume, b.Bid, b.Ask)
	if err != nil {
		return wrapPQ("insert bar", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domrepo.ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) GetBars(ctx context.Context, instrument string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w := newWhere()
	w.add("instrument = ?", instrument)
	w.add("timeframe = ?", string(tf))
	if !from.IsZero() {
		w.add("ts >= ?", from.UTC())
	}
	if !to.IsZero() {
		w.add("ts <= ?", to.UTC())
	}
	var out []models.Bar
	q := `SELECT ` + barColumns + ` FROM bars` + w.sql() + ` ORDER BY ts ASC`
	if err := s.db.SelectContext(ctx, &out, q, w.args...); err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetLatestNBars(ctx context.Context, instrument string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	return s.ListBars(ctx, domrepo.BarQuery{Instrument: instrument, Timeframe: tf, Limit: n})
}

func (s *PostgresStore) ListBars(ctx context.Context, q domrepo.BarQuery) ([]models.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w := newWhere()
	w.add("instrument = ?", q.Instrument)
	w.add("timeframe = ?", string(q.Timeframe))
	if !q.From.IsZero() {
		w.add("ts >= ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		w.add("ts <= ?", q.To.UTC())
	}
	limit := w.arg(q.Limit)
	offset := w.arg(q.Offset)
	query := `SELECT * FROM (SELECT ` + barColumns + ` FROM bars` + w.sql() +
		` ORDER BY ts DESC LIMIT ` + limit + ` OFFSET ` + offset + `) page ORDER BY ts ASC`

	var out []models.Bar
	if err := s.db.SelectContext(ctx, &out, query, w.args...); err != nil {
		return nil, fmt.Errorf("list bars: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) LatestBarTime(ctx context.Context, instrument string, tf domrepo.Timeframe) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var ts sql.NullTime
	err := s.db.GetContext(ctx, &ts, `SELECT max(ts) FROM bars WHERE instrument = $1 AND timeframe = $2`, instrument, string(tf))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest bar time: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time.UTC(), true, nil
}

// --- news ---

type newsRow struct {
	ID                int64     `db:"id"`
	Source            string    `db:"source"`
	URL               string    `db:"url"`
	PublishedAt       time.Time `db:"published_at"`
	Title             string    `db:"title"`
	Summary           string    `db:"summary"`
	SummaryCompressed string    `db:"summary_compressed"`
	SentimentScore    float64   `db:"sentiment_score"`
	SentimentLabel    string    `db:"sentiment_label"`
	ImpactLevel       string    `db:"impact_level"`
	ImpactedAssets    []byte    `db:"impacted_assets"`
	Topics            []byte    `db:"topics"`
	Rationale         string    `db:"rationale"`
	IsFundamental     bool      `db:"is_fundamental"`
	CreatedAt         time.Time `db:"created_at"`
}

const newsColumns = `id, source, url, published_at, title, summary, summary_compressed, sentiment_score,
	sentiment_label, impact_level, impacted_assets, topics, rationale, is_fundamental, created_at`

func (r newsRow) toModel() (models.NewsItem, error) {
	item := models.NewsItem{
		ID:          r.ID,
		Source:      r.Source,
		URL:         r.URL,
		PublishedAt: r.PublishedAt.UTC(),
		Title:       r.Title,
		Summary:     r.Summary,
		CreatedAt:   r.CreatedAt.UTC(),
		Analysis: models.NewsAnalysis{
			SummaryCompressed: r.SummaryCompressed,
			SentimentScore:    r.SentimentScore,
			SentimentLabel:    r.SentimentLabel,
			ImpactLevel:       r.ImpactLevel,
			Rationale:         r.Rationale,
			IsFundamental:     r.IsFundamental,
		},
	}
	if len(r.ImpactedAssets) > 0 {
		if err := json.Unmarshal(r.ImpactedAssets, &item.Analysis.ImpactedAssets); err != nil {
			return item, fmt.Errorf("decode impacted_assets: %w", err)
		}
	}
	if len(r.Topics) > 0 {
		if err := json.Unmarshal(r.Topics, &item.Analysis.Topics); err != nil {
			return item, fmt.Errorf("decode topics: %w", err)
		}
	}
	return item, nil
}

func (s *PostgresStore) UpsertNews(ctx context.Context, item models.NewsItem) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	assets, err := json.Marshal(item.Analysis.ImpactedAssets)
	if err != nil {
		return false, fmt.Errorf("encode impacted_assets: %w", err)
	}
	topics, err := json.Marshal(item.Analysis.Topics)
	if err != nil {
		return false, fmt.Errorf("encode topics: %w", err)
	}

	// xmax is zero only for a freshly inserted tuple.
	var inserted bool
	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO news (source, url, published_at, title, summary, summary_compressed, sentiment_score,
			sentiment_label, impact_level, impacted_assets, topics, rationale, is_fundamental)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			summary_compressed = EXCLUDED.summary_compressed,
			sentiment_score = EXCLUDED.sentiment_score,
			sentiment_label = EXCLUDED.sentiment_label,
			impact_level = EXCLUDED.impact_level,
			impacted_assets = EXCLUDED.impacted_assets,
			topics = EXCLUDED.topics,
			rationale = EXCLUDED.rationale,
			is_fundamental = EXCLUDED.is_fundamental
		RETURNING (xmax = 0)`,
		item.Source, item.URL, item.PublishedAt.UTC(), item.Title, item.Summary,
		item.Analysis.SummaryCompressed, item.Analysis.SentimentScore, item.Analysis.SentimentLabel,
		item.Analysis.ImpactLevel, assets, topics, item.Analysis.Rationale, item.Analysis.IsFundamental,
	).Scan(&inserted)
	if err != nil {
		return false, wrapPQ("upsert news", err)
	}
	return inserted, nil
}

func (s *PostgresStore) ListNews(ctx context.Context, q domrepo.NewsQuery) ([]models.NewsItem, error) {
	w := newWhere()
	if q.Impact != "" {
		w.add("impact_level = ?", q.Impact)
	}
	if q.Asset != "" {
		asset, _ := json.Marshal([]string{strings.ToUpper(q.Asset)})
		w.add("impacted_assets @> ?::jsonb", string(asset))
	}
	limit := w.arg(q.Limit)
	offset := w.arg(q.Offset)
	return s.selectNews(ctx, `SELECT `+newsColumns+` FROM news`+w.sql()+
		` ORDER BY published_at DESC, id DESC LIMIT `+limit+` OFFSET `+offset, w.args...)
}

func (s *PostgresStore) NewsInsertedSince(ctx context.Context, since time.Time, limit int) ([]models.NewsItem, error) {
	return s.selectNews(ctx, `SELECT `+newsColumns+` FROM news WHERE created_at > $1 ORDER BY created_at ASC, id ASC LIMIT $2`,
		since.UTC(), limit)
}

func (s *PostgresStore) NewsPublishedBetween(ctx context.Context, from, to time.Time) ([]models.NewsItem, error) {
	w := newWhere()
	if !from.IsZero() {
		w.add("published_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		w.add("published_at <= ?", to.UTC())
	}
	return s.selectNews(ctx, `SELECT `+newsColumns+` FROM news`+w.sql()+` ORDER BY published_at ASC`, w.args...)
}

func (s *PostgresStore) LatestNewsTime(ctx context.Context) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var ts sql.NullTime
	if err := s.db.GetContext(ctx, &ts, `SELECT max(published_at) FROM news`); err != nil {
		return time.Time{}, false, fmt.Errorf("latest news time: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time.UTC(), true, nil
}

func (s *PostgresStore) selectNews(ctx context.Context, q string, args ...interface{}) ([]models.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []newsRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("select news: %w", err)
	}
	out := make([]models.NewsItem, 0, len(rows))
	for _, r := range rows {
		item, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// --- macro ---

const macroColumns = `id, event_time, currency, impact, name, forecast, previous, actual, source`

func (s *PostgresStore) InsertMacroEvent(ctx context.Context, e models.MacroEvent) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO macro_events (event_time, currency, impact, name, forecast, previous, actual, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_time, currency, name, source) DO NOTHING`,
		e.Time.UTC(), e.Currency, e.Impact, e.Name, e.Forecast, e.Previous, e.Actual, e.Source)
	if err != nil {
		return wrapPQ("insert macro event", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domrepo.ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) ListMacroEvents(ctx context.Context, q domrepo.MacroQuery) ([]models.MacroEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w := newWhere()
	if !q.From.IsZero() {
		w.add("event_time >= ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		w.add("event_time <= ?", q.To.UTC())
	}
	if q.Currency != "" {
		w.add("currency = ?", strings.ToUpper(q.Currency))
	}
	limit := w.arg(q.Limit)

	var out []models.MacroEvent
	if err := s.db.SelectContext(ctx, &out, `SELECT `+macroColumns+` FROM macro_events`+w.sql()+
		` ORDER BY event_time ASC LIMIT `+limit, w.args...); err != nil {
		return nil, fmt.Errorf("list macro events: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MacroEventsBetween(ctx context.Context, from, to time.Time) ([]models.MacroEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w := newWhere()
	if !from.IsZero() {
		w.add("event_time >= ?", from.UTC())
	}
	if !to.IsZero() {
		w.add("event_time <= ?", to.UTC())
	}
	var out []models.MacroEvent
	if err := s.db.SelectContext(ctx, &out, `SELECT `+macroColumns+` FROM macro_events`+w.sql()+
		` ORDER BY event_time ASC`, w.args...); err != nil {
		return nil, fmt.Errorf("macro events between: %w", err)
	}
	return out, nil
}

// --- signals ---

type signalRow struct {
	ID           int64     `db:"id"`
	Instrument   string    `db:"instrument"`
	Timestamp    time.Time `db:"ts"`
	Label        string    `db:"label"`
	Confidence   float64   `db:"confidence"`
	Explanation  []byte    `db:"explanation"`
	ModelVersion string    `db:"model_version"`
	CreatedAt    time.Time `db:"created_at"`
}

const signalColumns = `id, instrument, ts, label, confidence, explanation, model_version, created_at`

func (r signalRow) toModel() (models.Signal, error) {
	sig := models.Signal{
		ID:           r.ID,
		Instrument:   r.Instrument,
		Timestamp:    r.Timestamp.UTC(),
		Label:        r.Label,
		Confidence:   r.Confidence,
		ModelVersion: r.ModelVersion,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(r.Explanation, &sig.Explanation); err != nil {
		return sig, fmt.Errorf("decode explanation: %w", err)
	}
	return sig, nil
}

func (s *PostgresStore) InsertSignal(ctx context.Context, sig models.Signal) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	expl, err := json.Marshal(sig.Explanation)
	if err != nil {
		return fmt.Errorf("encode explanation: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (instrument, ts, label, confidence, explanation, model_version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instrument, ts, model_version) DO NOTHING`,
		sig.Instrument, sig.Timestamp.UTC(), sig.Label, sig.Confidence, expl, sig.ModelVersion)
	if err != nil {
		return wrapPQ("insert signal", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domrepo.ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) ListSignals(ctx context.Context, q domrepo.SignalQuery) ([]models.Signal, error) {
	w := newWhere()
	if q.Instrument != "" {
		w.add("instrument = ?", q.Instrument)
	}
	limit := w.arg(q.Limit)
	offset := w.arg(q.Offset)
	return s.selectSignals(ctx, `SELECT `+signalColumns+` FROM signals`+w.sql()+
		` ORDER BY ts DESC, id DESC LIMIT `+limit+` OFFSET `+offset, w.args...)
}

func (s *PostgresStore) LatestSignal(ctx context.Context, instrument string) (models.Signal, error) {
	out, err := s.ListSignals(ctx, domrepo.SignalQuery{Instrument: instrument, Limit: 1})
	if err != nil {
		return models.Signal{}, err
	}
	if len(out) == 0 {
		return models.Signal{}, domrepo.ErrNotFound
	}
	return out[0], nil
}

func (s *PostgresStore) selectSignals(ctx context.Context, q string, args ...interface{}) ([]models.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []signalRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("select signals: %w", err)
	}
	out := make([]models.Signal, 0, len(rows))
	for _, r := range rows {
		sig, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, nil
}

// --- job health ---

func (s *PostgresStore) RecordJobRun(ctx context.Context, h models.JobHealth) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_health (job_name, last_run, status, error, ok)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_name) DO UPDATE SET
			last_run = EXCLUDED.last_run, status = EXCLUDED.status, error = EXCLUDED.error, ok = EXCLUDED.ok`,
		h.JobName, h.LastRun.UTC(), h.Status, h.Error, h.OK)
	if err != nil {
		s.l.Error("record job run failed", applogger.String("job", h.JobName), applogger.Error(err))
		return fmt.Errorf("record job run: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListJobHealth(ctx context.Context) ([]models.JobHealth, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.JobHealth
	if err := s.db.SelectContext(ctx, &out, `SELECT job_name, last_run, status, error, ok FROM job_health ORDER BY job_name`); err != nil {
		return nil, fmt.Errorf("list job health: %w", err)
	}
	return out, nil
}

// wrapPQ maps unique violations onto ErrAlreadyExists.
func wrapPQ(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return domrepo.ErrAlreadyExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

// where builds a WHERE clause with numbered placeholders; "?" marks each bind.
type where struct {
	conds []string
	args  []interface{}
}

func newWhere() *where { return &where{} }

func (w *where) add(cond string, args ...interface{}) {
	for _, a := range args {
		cond = strings.Replace(cond, "?", w.arg(a), 1)
	}
	w.conds = append(w.conds, cond)
}

// arg binds a value and returns its placeholder.
func (w *where) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

var _ domrepo.Storage = (*PostgresStore)(nil)
