package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	pkgch "ForexPulse/pkg/clickhouse"
	applogger "ForexPulse/pkg/logger"
)

// ClickHouseSchema returns the idempotent DDL for database db.
// Identity keys are the ORDER BY keys; reads use FINAL so replaced rows collapse.
func ClickHouseSchema(db string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars (
			instrument String,
			timeframe  LowCardinality(String),
			ts         DateTime64(3, 'UTC'),
			open       Float64,
			high       Float64,
			low        Float64,
			close      Float64,
			volume     Float64,
			bid        Nullable(Float64),
			ask        Nullable(Float64)
		) ENGINE = ReplacingMergeTree
		ORDER BY (instrument, timeframe, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.news (
			id                 Int64,
			source             String,
			url                String,
			published_at       DateTime64(3, 'UTC'),
			title              String,
			summary            String,
			summary_compressed String,
			sentiment_score    Float64,
			sentiment_label    LowCardinality(String),
			impact_level       LowCardinality(String),
			impacted_assets    String,
			topics             String,
			rationale          String,
			is_fundamental     UInt8,
			created_at         DateTime64(3, 'UTC'),
			updated_at         DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY url`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.macro_events (
			id         Int64,
			event_time DateTime64(3, 'UTC'),
			currency   LowCardinality(String),
			impact     LowCardinality(String),
			name       String,
			forecast   String,
			previous   String,
			actual     String,
			source     String
		) ENGINE = ReplacingMergeTree
		ORDER BY (event_time, currency, name, source)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signals (
			id            Int64,
			instrument    String,
			ts            DateTime64(3, 'UTC'),
			label         LowCardinality(String),
			confidence    Float64,
			explanation   String,
			model_version String,
			created_at    DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree
		ORDER BY (instrument, ts, model_version)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.job_health (
			job_name String,
			last_run DateTime64(3, 'UTC'),
			status   LowCardinality(String),
			error    String,
			ok       UInt8
		) ENGINE = ReplacingMergeTree(last_run)
		ORDER BY job_name`, db),
	}
}

// CHStore implements domain Storage backed by ClickHouse.
type CHStore struct {
	ch  *pkgch.Client
	db  *sql.DB
	ns  string
	l   *applogger.Logger
	now func() time.Time
}

func NewCHStore(ch *pkgch.Client) *CHStore {
	return &CHStore{ch: ch, db: ch.DB(), ns: ch.Database(), now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHStore) Init(ctx context.Context) error {
	return s.ch.Exec(ctx, ClickHouseSchema(s.ns)...)
}

func (s *CHStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHStore) Close() error { return s.ch.Close() }

func (s *CHStore) table(name string) string { return s.ns + "." + name }

// exists runs a count query; ReplacingMergeTree has no unique constraint so inserts check first.
func (s *CHStore) exists(ctx context.Context, q string, args ...interface{}) (bool, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- bars ---

func (s *CHStore) InsertBar(ctx context.Context, b models.Bar) error {
	ok, err := s.exists(ctx, `SELECT count() FROM `+s.table("bars")+` FINAL WHERE instrument = ? AND timeframe = ? AND ts = ?`,
		b.Instrument, b.Timeframe, b.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("check bar: %w", err)
	}
	if ok {
		if s.l != nil {
			s.l.Debug("clickhouse bar exists",
				applogger.String("instrument", b.Instrument),
				applogger.String("tf", b.Timeframe),
				applogger.Time("ts", b.Timestamp),
			)
		}
		return domrepo.ErrAlreadyExists
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.table("bars")+` (`+barColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Instrument, b.Timeframe, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume, b.Bid, b.Ask)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse insert_bar error",
				applogger.String("instrument", b.Instrument),
				applogger.String("tf", b.Timeframe),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert bar: %w", err)
	}
	return nil
}

func (s *CHStore) GetBars(ctx context.Context, instrument string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	conds := []string{"instrument = ?", "timeframe = ?"}
	args := []interface{}{instrument, string(tf)}
	if !from.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, to.UTC())
	}
	q := `SELECT ` + barColumns + ` FROM ` + s.table("bars") + ` FINAL WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY ts ASC`
	out, err := s.queryBars(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_bars error",
				applogger.String("instrument", instrument),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get bars: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse get_bars ok",
			applogger.String("instrument", instrument),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHStore) GetLatestNBars(ctx context.Context, instrument string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	return s.ListBars(ctx, domrepo.BarQuery{Instrument: instrument, Timeframe: tf, Limit: n})
}

func (s *CHStore) ListBars(ctx context.Context, bq domrepo.BarQuery) ([]models.Bar, error) {
	conds := []string{"instrument = ?", "timeframe = ?"}
	args := []interface{}{bq.Instrument, string(bq.Timeframe)}
	if !bq.From.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, bq.From.UTC())
	}
	if !bq.To.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, bq.To.UTC())
	}
	args = append(args, bq.Limit, bq.Offset)
	q := `SELECT ` + barColumns + ` FROM ` + s.table("bars") + ` FINAL WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY ts DESC LIMIT ? OFFSET ?`
	tmp, err := s.queryBars(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list bars: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	return tmp, nil
}

func (s *CHStore) queryBars(ctx context.Context, q string, args ...interface{}) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 256)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Instrument, &b.Timeframe, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Bid, &b.Ask); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *CHStore) LatestBarTime(ctx context.Context, instrument string, tf domrepo.Timeframe) (time.Time, bool, error) {
	var (
		n  uint64
		ts time.Time
	)
	err := s.db.QueryRowContext(ctx, `SELECT count(), max(ts) FROM `+s.table("bars")+` WHERE instrument = ? AND timeframe = ?`,
		instrument, string(tf)).Scan(&n, &ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest bar time: %w", err)
	}
	if n == 0 {
		return time.Time{}, false, nil
	}
	return ts.UTC(), true, nil
}

// --- news ---

func (s *CHStore) UpsertNews(ctx context.Context, item models.NewsItem) (bool, error) {
	var (
		id        int64
		createdAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, created_at FROM `+s.table("news")+` FINAL WHERE url = ?`, item.URL).
		Scan(&id, &createdAt)
	inserted := false
	switch {
	case err == sql.ErrNoRows:
		inserted = true
		id = stableID(item.URL)
		createdAt = s.now().UTC()
	case err != nil:
		return false, fmt.Errorf("check news: %w", err)
	}

	assets, err := json.Marshal(item.Analysis.ImpactedAssets)
	if err != nil {
		return false, fmt.Errorf("encode impacted_assets: %w", err)
	}
	topics, err := json.Marshal(item.Analysis.Topics)
	if err != nil {
		return false, fmt.Errorf("encode topics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.table("news")+` (id, source, url, published_at, title, summary,
		summary_compressed, sentiment_score, sentiment_label, impact_level, impacted_assets, topics, rationale,
		is_fundamental, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, item.Source, item.URL, item.PublishedAt.UTC(), item.Title, item.Summary,
		item.Analysis.SummaryCompressed, item.Analysis.SentimentScore, item.Analysis.SentimentLabel,
		item.Analysis.ImpactLevel, string(assets), string(topics), item.Analysis.Rationale,
		boolToUInt8(item.Analysis.IsFundamental), createdAt, s.now().UTC())
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse upsert_news error", applogger.String("url", item.URL), applogger.Error(err))
		}
		return false, fmt.Errorf("upsert news: %w", err)
	}
	return inserted, nil
}

const chNewsColumns = `id, source, url, published_at, title, summary, summary_compressed, sentiment_score,
	sentiment_label, impact_level, impacted_assets, topics, rationale, is_fundamental, created_at`

func (s *CHStore) ListNews(ctx context.Context, nq domrepo.NewsQuery) ([]models.NewsItem, error) {
	var (
		conds []string
		args  []interface{}
	)
	if nq.Impact != "" {
		conds = append(conds, "impact_level = ?")
		args = append(args, nq.Impact)
	}
	if nq.Asset != "" {
		conds = append(conds, "has(JSONExtract(impacted_assets, 'Array(String)'), ?)")
		args = append(args, strings.ToUpper(nq.Asset))
	}
	args = append(args, nq.Limit, nq.Offset)
	return s.queryNews(ctx, `SELECT `+chNewsColumns+` FROM `+s.table("news")+` FINAL`+whereAnd(conds)+
		` ORDER BY published_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
}

func (s *CHStore) NewsInsertedSince(ctx context.Context, since time.Time, limit int) ([]models.NewsItem, error) {
	return s.queryNews(ctx, `SELECT `+chNewsColumns+` FROM `+s.table("news")+` FINAL WHERE created_at > ?
		ORDER BY created_at ASC, id ASC LIMIT ?`, since.UTC(), limit)
}

func (s *CHStore) NewsPublishedBetween(ctx context.Context, from, to time.Time) ([]models.NewsItem, error) {
	var (
		conds []string
		args  []interface{}
	)
	if !from.IsZero() {
		conds = append(conds, "published_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "published_at <= ?")
		args = append(args, to.UTC())
	}
	return s.queryNews(ctx, `SELECT `+chNewsColumns+` FROM `+s.table("news")+` FINAL`+whereAnd(conds)+
		` ORDER BY published_at ASC`, args...)
}

func (s *CHStore) LatestNewsTime(ctx context.Context) (time.Time, bool, error) {
	var (
		n  uint64
		ts time.Time
	)
	if err := s.db.QueryRowContext(ctx, `SELECT count(), max(published_at) FROM `+s.table("news")).Scan(&n, &ts); err != nil {
		return time.Time{}, false, fmt.Errorf("latest news time: %w", err)
	}
	if n == 0 {
		return time.Time{}, false, nil
	}
	return ts.UTC(), true, nil
}

func (s *CHStore) queryNews(ctx context.Context, q string, args ...interface{}) ([]models.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}
	defer rows.Close()

	var out []models.NewsItem
	for rows.Next() {
		var (
			r          newsRow
			assets     string
			topics     string
			fundamental uint8
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.URL, &r.PublishedAt, &r.Title, &r.Summary, &r.SummaryCompressed,
			&r.SentimentScore, &r.SentimentLabel, &r.ImpactLevel, &assets, &topics, &r.Rationale, &fundamental,
			&r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		r.ImpactedAssets = []byte(assets)
		r.Topics = []byte(topics)
		r.IsFundamental = fundamental == 1
		item, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// --- macro ---

func (s *CHStore) InsertMacroEvent(ctx context.Context, e models.MacroEvent) error {
	ok, err := s.exists(ctx, `SELECT count() FROM `+s.table("macro_events")+` FINAL
		WHERE event_time = ? AND currency = ? AND name = ? AND source = ?`,
		e.Time.UTC(), e.Currency, e.Name, e.Source)
	if err != nil {
		return fmt.Errorf("check macro event: %w", err)
	}
	if ok {
		return domrepo.ErrAlreadyExists
	}
	id := stableID(e.Time.UTC().Format(time.RFC3339), e.Currency, e.Name, e.Source)
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.table("macro_events")+` (`+macroColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.Time.UTC(), e.Currency, e.Impact, e.Name, e.Forecast, e.Previous, e.Actual, e.Source)
	if err != nil {
		return fmt.Errorf("insert macro event: %w", err)
	}
	return nil
}

func (s *CHStore) ListMacroEvents(ctx context.Context, mq domrepo.MacroQuery) ([]models.MacroEvent, error) {
	var (
		conds []string
		args  []interface{}
	)
	if !mq.From.IsZero() {
		conds = append(conds, "event_time >= ?")
		args = append(args, mq.From.UTC())
	}
	if !mq.To.IsZero() {
		conds = append(conds, "event_time <= ?")
		args = append(args, mq.To.UTC())
	}
	if mq.Currency != "" {
		conds = append(conds, "currency = ?")
		args = append(args, strings.ToUpper(mq.Currency))
	}
	args = append(args, mq.Limit)
	return s.queryMacro(ctx, `SELECT `+macroColumns+` FROM `+s.table("macro_events")+` FINAL`+whereAnd(conds)+
		` ORDER BY event_time ASC LIMIT ?`, args...)
}

func (s *CHStore) MacroEventsBetween(ctx context.Context, from, to time.Time) ([]models.MacroEvent, error) {
	return s.ListMacroEvents(ctx, domrepo.MacroQuery{From: from, To: to, Limit: 1 << 30})
}

func (s *CHStore) queryMacro(ctx context.Context, q string, args ...interface{}) ([]models.MacroEvent, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query macro events: %w", err)
	}
	defer rows.Close()

	var out []models.MacroEvent
	for rows.Next() {
		var e models.MacroEvent
		if err := rows.Scan(&e.ID, &e.Time, &e.Currency, &e.Impact, &e.Name, &e.Forecast, &e.Previous, &e.Actual, &e.Source); err != nil {
			return nil, fmt.Errorf("scan macro event: %w", err)
		}
		e.Time = e.Time.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- signals ---

func (s *CHStore) InsertSignal(ctx context.Context, sig models.Signal) error {
	ok, err := s.exists(ctx, `SELECT count() FROM `+s.table("signals")+` FINAL WHERE instrument = ? AND ts = ? AND model_version = ?`,
		sig.Instrument, sig.Timestamp.UTC(), sig.ModelVersion)
	if err != nil {
		return fmt.Errorf("check signal: %w", err)
	}
	if ok {
		return domrepo.ErrAlreadyExists
	}
	expl, err := json.Marshal(sig.Explanation)
	if err != nil {
		return fmt.Errorf("encode explanation: %w", err)
	}
	createdAt := sig.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	id := stableID(sig.Instrument, sig.Timestamp.UTC().Format(time.RFC3339Nano), sig.ModelVersion)
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.table("signals")+` (`+signalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sig.Instrument, sig.Timestamp.UTC(), sig.Label, sig.Confidence, string(expl), sig.ModelVersion, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (s *CHStore) ListSignals(ctx context.Context, sq domrepo.SignalQuery) ([]models.Signal, error) {
	var (
		conds []string
		args  []interface{}
	)
	if sq.Instrument != "" {
		conds = append(conds, "instrument = ?")
		args = append(args, sq.Instrument)
	}
	args = append(args, sq.Limit, sq.Offset)
	rows, err := s.db.QueryContext(ctx, `SELECT `+signalColumns+` FROM `+s.table("signals")+` FINAL`+whereAnd(conds)+
		` ORDER BY ts DESC, created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		var (
			r    signalRow
			expl string
		)
		if err := rows.Scan(&r.ID, &r.Instrument, &r.Timestamp, &r.Label, &r.Confidence, &expl, &r.ModelVersion, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		r.Explanation = []byte(expl)
		sig, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *CHStore) LatestSignal(ctx context.Context, instrument string) (models.Signal, error) {
	out, err := s.ListSignals(ctx, domrepo.SignalQuery{Instrument: instrument, Limit: 1})
	if err != nil {
		return models.Signal{}, err
	}
	if len(out) == 0 {
		return models.Signal{}, domrepo.ErrNotFound
	}
	return out[0], nil
}

// --- job health ---

func (s *CHStore) RecordJobRun(ctx context.Context, h models.JobHealth) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.table("job_health")+` (job_name, last_run, status, error, ok) VALUES (?, ?, ?, ?, ?)`,
		h.JobName, h.LastRun.UTC(), h.Status, h.Error, boolToUInt8(h.OK))
	if err != nil {
		return fmt.Errorf("record job run: %w", err)
	}
	return nil
}

func (s *CHStore) ListJobHealth(ctx context.Context) ([]models.JobHealth, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job_name, last_run, status, error, ok FROM `+s.table("job_health")+` FINAL ORDER BY job_name`)
	if err != nil {
		return nil, fmt.Errorf("list job health: %w", err)
	}
	defer rows.Close()

	var out []models.JobHealth
	for rows.Next() {
		var (
			h  models.JobHealth
			ok uint8
		)
		if err := rows.Scan(&h.JobName, &h.LastRun, &h.Status, &h.Error, &ok); err != nil {
			return nil, fmt.Errorf("scan job health: %w", err)
		}
		h.OK = ok == 1
		out = append(out, h)
	}
	return out, rows.Err()
}

func whereAnd(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// stableID derives a positive row id from identity parts.
func stableID(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return int64(h.Sum64() >> 1)
}

var _ domrepo.Storage = (*CHStore)(nil)
