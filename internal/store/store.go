package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trendwatch/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// ErrDuplicateAlert is returned by InsertAlert when an active alert for the
// same entity and kind already exists inside the cooldown period.
var ErrDuplicateAlert = errors.New("duplicate alert within cooldown")

// Store is the SQLite-backed persistence layer for posts, trends, and alerts.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at dbPath and ensures the
// schema exists. Table and index creation is idempotent.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer goroutine owns all writes; one connection keeps
	// sqlite's locking out of the picture.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables and indexes
func (s *Store) initialize() error {
	postsTable := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		source_kind TEXT NOT NULL,
		author TEXT,
		text TEXT NOT NULL,
		url TEXT,
		created_at DATETIME NOT NULL,
		hashtags TEXT,
		entities TEXT,
		indexed_at DATETIME NOT NULL
	);`

	trendsTable := `
	CREATE TABLE IF NOT EXISTS trends (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		current_count INTEGER NOT NULL,
		baseline_count INTEGER NOT NULL,
		trend_score REAL NOT NULL,
		growth_rate REAL NOT NULL,
		velocity REAL NOT NULL,
		z_score REAL NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(entity, source_kind, created_at)
	);`

	alertsTable := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity TEXT NOT NULL,
		kind TEXT NOT NULL,
		threshold_value REAL,
		actual_value REAL,
		message TEXT,
		created_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'active'
	);`

	tables := []string{postsTable, trendsTable, alertsTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, idx := range schemaIndexes {
		if _, err := s.db.Exec(idx.ddl); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}

type indexDef struct {
	name string
	ddl  string
}

var schemaIndexes = []indexDef{
	{"idx_posts_created_at", `CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at)`},
	{"idx_posts_source_kind", `CREATE INDEX IF NOT EXISTS idx_posts_source_kind ON posts (source_kind)`},
	{"idx_posts_source_created", `CREATE INDEX IF NOT EXISTS idx_posts_source_created ON posts (source_kind, created_at)`},
	{"idx_posts_entities", `CREATE INDEX IF NOT EXISTS idx_posts_entities ON posts (entities)`},
	{"idx_trends_entity", `CREATE INDEX IF NOT EXISTS idx_trends_entity ON trends (entity)`},
	{"idx_trends_created_at", `CREATE INDEX IF NOT EXISTS idx_trends_created_at ON trends (created_at)`},
	{"idx_trends_score", `CREATE INDEX IF NOT EXISTS idx_trends_score ON trends (trend_score)`},
	{"idx_alerts_entity", `CREATE INDEX IF NOT EXISTS idx_alerts_entity ON alerts (entity)`},
	{"idx_alerts_created_at", `CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts (created_at)`},
	{"idx_alerts_status", `CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts (status)`},
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// UpsertPost inserts a post, replacing any existing row with the same id.
// Re-ingesting the same item is therefore idempotent. indexed_at is set here.
func (s *Store) UpsertPost(post core.Post) error {
	query := `
	INSERT OR REPLACE INTO posts
	(id, source_kind, author, text, url, created_at, hashtags, entities, indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	indexedAt := post.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(query,
		post.ID,
		string(post.SourceKind),
		post.Author,
		post.Text,
		post.URL,
		post.CreatedAt.UTC(),
		post.JoinedHashtags(),
		post.JoinedEntities(),
		indexedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", post.ID, err)
	}
	return nil
}

// GetPost retrieves a single post by id. Returns nil when absent.
func (s *Store) GetPost(id string) (*core.Post, error) {
	query := `
	SELECT id, source_kind, author, text, url, created_at, hashtags, entities, indexed_at
	FROM posts WHERE id = ?`

	row := s.db.QueryRow(query, id)
	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}
	return post, nil
}

// PostsSince returns posts with created_at inside [since, now], newest first.
func (s *Store) PostsSince(since time.Time) ([]core.Post, error) {
	query := `
	SELECT id, source_kind, author, text, url, created_at, hashtags, entities, indexed_at
	FROM posts WHERE created_at >= ?
	ORDER BY created_at DESC`

	rows, err := s.db.Query(query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []core.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

// PostsBetween returns posts with created_at in [start, end), newest first.
// An empty sourceKind matches every source.
func (s *Store) PostsBetween(start, end time.Time, sourceKind core.SourceKind) ([]core.Post, error) {
	query := `
	SELECT id, source_kind, author, text, url, created_at, hashtags, entities, indexed_at
	FROM posts WHERE created_at >= ? AND created_at < ?`
	args := []any{start.UTC(), end.UTC()}
	if sourceKind != "" {
		query += ` AND source_kind = ?`
		args = append(args, string(sourceKind))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []core.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*core.Post, error) {
	var post core.Post
	var sourceKind, hashtags, entities string
	var author, url sql.NullString

	err := row.Scan(
		&post.ID,
		&sourceKind,
		&author,
		&post.Text,
		&url,
		&post.CreatedAt,
		&hashtags,
		&entities,
		&post.IndexedAt,
	)
	if err != nil {
		return nil, err
	}

	post.SourceKind = core.SourceKind(sourceKind)
	post.Author = author.String
	post.URL = url.String
	post.Hashtags = core.SplitList(hashtags)
	post.Entities = core.SplitList(entities)
	return &post, nil
}

// InsertTrends persists one engine run as an upsert keyed on
// (entity, source_kind, created_at): replaying a batch replaces rows instead
// of duplicating them. All rows share the run's created_at.
func (s *Store) InsertTrends(trends []core.Trend) error {
	if len(trends) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT OR REPLACE INTO trends
	(entity, source_kind, current_count, baseline_count, trend_score, growth_rate, velocity, z_score, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trend insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trends {
		_, err := stmt.Exec(
			t.Entity,
			string(t.SourceKind),
			t.CurrentCount,
			t.BaselineCount,
			t.TrendScore,
			t.GrowthRate,
			t.Velocity,
			t.ZScore,
			t.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert trend %s: %w", t.Entity, err)
		}
	}

	return tx.Commit()
}

// RecentTrends returns trends created in the last maxAge, highest score first.
func (s *Store) RecentTrends(maxAge time.Duration, limit int) ([]core.Trend, error) {
	query := `
	SELECT entity, source_kind, current_count, baseline_count, trend_score, growth_rate, velocity, z_score, created_at
	FROM trends WHERE created_at > ?
	ORDER BY trend_score DESC LIMIT ?`

	cutoff := time.Now().UTC().Add(-maxAge)
	return s.queryTrends(query, cutoff, limit)
}

// TopTrends returns the highest-scoring recent trends for one source kind,
// or for all sources when sourceKind is empty.
func (s *Store) TopTrends(sourceKind core.SourceKind, maxAge time.Duration, limit int) ([]core.Trend, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	if sourceKind == "" {
		return s.RecentTrends(maxAge, limit)
	}
	query := `
	SELECT entity, source_kind, current_count, baseline_count, trend_score, growth_rate, velocity, z_score, created_at
	FROM trends WHERE created_at > ? AND source_kind = ?
	ORDER BY trend_score DESC LIMIT ?`
	return s.queryTrends(query, cutoff, string(sourceKind), limit)
}

// TrendHistory returns all rows for one entity over the last daysBack days,
// oldest first, for time-series consumers.
func (s *Store) TrendHistory(entity string, daysBack int) ([]core.Trend, error) {
	query := `
	SELECT entity, source_kind, current_count, baseline_count, trend_score, growth_rate, velocity, z_score, created_at
	FROM trends WHERE entity = ? AND created_at > ?
	ORDER BY created_at ASC`

	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	return s.queryTrends(query, entity, cutoff)
}

func (s *Store) queryTrends(query string, args ...any) ([]core.Trend, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trends: %w", err)
	}
	defer rows.Close()

	var trends []core.Trend
	for rows.Next() {
		var t core.Trend
		var sourceKind string
		err := rows.Scan(
			&t.Entity,
			&sourceKind,
			&t.CurrentCount,
			&t.BaselineCount,
			&t.TrendScore,
			&t.GrowthRate,
			&t.Velocity,
			&t.ZScore,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trend: %w", err)
		}
		t.SourceKind = core.SourceKind(sourceKind)
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

// InsertAlert persists an alert unless an active alert with the same entity
// and kind exists inside the cooldown window, in which case it returns
// ErrDuplicateAlert and writes nothing.
func (s *Store) InsertAlert(alert core.Alert, cooldown time.Duration) (int64, error) {
	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if cooldown > 0 {
		var n int
		cutoff := createdAt.Add(-cooldown)
		err := s.db.QueryRow(`
		SELECT COUNT(*) FROM alerts
		WHERE entity = ? AND kind = ? AND status = 'active' AND created_at > ?`,
			alert.Entity, string(alert.Kind), cutoff).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("failed to check alert cooldown: %w", err)
		}
		if n > 0 {
			return 0, ErrDuplicateAlert
		}
	}

	status := alert.Status
	if status == "" {
		status = core.AlertActive
	}

	res, err := s.db.Exec(`
	INSERT INTO alerts (entity, kind, threshold_value, actual_value, message, created_at, status)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.Entity,
		string(alert.Kind),
		alert.ThresholdValue,
		alert.ActualValue,
		alert.Message,
		createdAt,
		string(status),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	return res.LastInsertId()
}

// ActiveAlerts returns active alerts, newest first.
func (s *Store) ActiveAlerts(limit int) ([]core.Alert, error) {
	rows, err := s.db.Query(`
	SELECT id, entity, kind, threshold_value, actual_value, message, created_at, status
	FROM alerts WHERE status = 'active'
	ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []core.Alert
	for rows.Next() {
		var a core.Alert
		var kind, status string
		var message sql.NullString
		err := rows.Scan(&a.ID, &a.Entity, &kind, &a.ThresholdValue, &a.ActualValue, &message, &a.CreatedAt, &status)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Kind = core.AlertKind(kind)
		a.Status = core.AlertStatus(status)
		a.Message = message.String
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ResolveAlert marks one alert resolved.
func (s *Store) ResolveAlert(id int64) error {
	res, err := s.db.Exec(`UPDATE alerts SET status = 'resolved' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %d not found", id)
	}
	return nil
}

// CleanupResult reports rows removed by Cleanup.
type CleanupResult struct {
	TrendsDeleted int64 `json:"trends_deleted"`
	AlertsDeleted int64 `json:"alerts_deleted"`
}

// Cleanup deletes trend rows older than days and resolved alerts older than
// twice that. Posts are never removed here.
func (s *Store) Cleanup(days int) (CleanupResult, error) {
	var result CleanupResult

	trendCutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := s.db.Exec(`DELETE FROM trends WHERE created_at < ?`, trendCutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete old trends: %w", err)
	}
	result.TrendsDeleted, _ = res.RowsAffected()

	alertCutoff := time.Now().UTC().AddDate(0, 0, -days*2)
	res, err = s.db.Exec(`DELETE FROM alerts WHERE status = 'resolved' AND created_at < ?`, alertCutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete resolved alerts: %w", err)
	}
	result.AlertsDeleted, _ = res.RowsAffected()

	return result, nil
}

// Vacuum reclaims free pages in the database file.
func (s *Store) Vacuum() error {
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// Backup writes a consistent copy of the database to destPath.
func (s *Store) Backup(destPath string) error {
	if dir := filepath.Dir(destPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create backup directory: %w", err)
		}
	}
	if _, err := s.db.Exec(`VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}

// HealthReport is the result of a Health check. Issues make the report
// unhealthy; recommendations are advisory.
type HealthReport struct {
	OK              bool     `json:"ok"`
	IntegrityResult string   `json:"integrity_result"`
	MissingIndexes  []string `json:"missing_indexes,omitempty"`
	SizeBytes       int64    `json:"size_bytes"`
	Oversize        bool     `json:"oversize"`
	ArchivablePosts int      `json:"archivable_posts"`
	Issues          []string `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// healthSizeLimit flags databases a dashboard host would struggle with.
const healthSizeLimit = 1 << 30 // 1 GiB

// Health runs an integrity check and reports structural problems.
func (s *Store) Health() (HealthReport, error) {
	report := HealthReport{OK: true}

	if err := s.db.QueryRow(`PRAGMA integrity_check`).Scan(&report.IntegrityResult); err != nil {
		return report, fmt.Errorf("failed to run integrity check: %w", err)
	}
	if report.IntegrityResult != "ok" {
		report.OK = false
		report.Issues = append(report.Issues, "integrity check failed: "+report.IntegrityResult)
	}

	existing := map[string]bool{}
	rows, err := s.db.Query(`SELECT name FROM sqlite_master WHERE type = 'index'`)
	if err != nil {
		return report, fmt.Errorf("failed to list indexes: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return report, fmt.Errorf("failed to scan index name: %w", err)
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}

	for _, idx := range schemaIndexes {
		if !existing[idx.name] {
			report.MissingIndexes = append(report.MissingIndexes, idx.name)
		}
	}
	if len(report.MissingIndexes) > 0 {
		report.OK = false
		report.Issues = append(report.Issues,
			fmt.Sprintf("missing indexes: %s", strings.Join(report.MissingIndexes, ", ")))
		report.Recommendations = append(report.Recommendations,
			"run 'trendwatch init' to recreate missing indexes")
	}

	if info, err := os.Stat(s.path); err == nil {
		report.SizeBytes = info.Size()
		if info.Size() > healthSizeLimit {
			report.Oversize = true
			report.Issues = append(report.Issues, "database file exceeds 1 GiB")
			report.Recommendations = append(report.Recommendations,
				"run 'trendwatch cleanup --vacuum' to reclaim space")
		}
	}

	archiveCutoff := time.Now().UTC().AddDate(0, 0, -90)
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE created_at < ?`, archiveCutoff).
		Scan(&report.ArchivablePosts); err != nil {
		return report, fmt.Errorf("failed to count archivable posts: %w", err)
	}
	if report.ArchivablePosts > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("archive %d posts older than 90 days", report.ArchivablePosts))
	}

	return report, nil
}

// Stats summarizes database contents for the stats command.
type Stats struct {
	TotalPosts    int            `json:"total_posts"`
	PostsBySource map[string]int `json:"posts_by_source"`
	PostsLast24h  int            `json:"posts_last_24h"`
	TotalTrends   int            `json:"total_trends"`
	TrendsLast24h int            `json:"trends_last_24h"`
	MaxTrendScore float64        `json:"max_trend_score"`
	ActiveAlerts  int            `json:"active_alerts"`
	SizeBytes     int64          `json:"size_bytes"`
}

// GetStats collects table counts and aggregates.
func (s *Store) GetStats() (Stats, error) {
	stats := Stats{PostsBySource: map[string]int{}}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&stats.TotalPosts); err != nil {
		return stats, fmt.Errorf("failed to count posts: %w", err)
	}

	rows, err := s.db.Query(`SELECT source_kind, COUNT(*) FROM posts GROUP BY source_kind`)
	if err != nil {
		return stats, fmt.Errorf("failed to count posts by source: %w", err)
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			rows.Close()
			return stats, fmt.Errorf("failed to scan source count: %w", err)
		}
		stats.PostsBySource[kind] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE created_at > ?`, dayAgo).
		Scan(&stats.PostsLast24h); err != nil {
		return stats, fmt.Errorf("failed to count recent posts: %w", err)
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM trends`).Scan(&stats.TotalTrends); err != nil {
		return stats, fmt.Errorf("failed to count trends: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM trends WHERE created_at > ?`, dayAgo).
		Scan(&stats.TrendsLast24h); err != nil {
		return stats, fmt.Errorf("failed to count recent trends: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(trend_score), 0) FROM trends WHERE created_at > ?`, dayAgo).
		Scan(&stats.MaxTrendScore); err != nil {
		return stats, fmt.Errorf("failed to read max trend score: %w", err)
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts WHERE status = 'active'`).
		Scan(&stats.ActiveAlerts); err != nil {
		return stats, fmt.Errorf("failed to count active alerts: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = info.Size()
	}

	return stats, nil
}
