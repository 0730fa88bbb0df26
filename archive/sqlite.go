package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aweist/docket-watcher/models"
)

var ErrItemNotFound = errors.New("archive item not found")

// Store keeps archive documents in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging archive database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing archive schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS archive_items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		case_number TEXT NOT NULL DEFAULT '',
		client_name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		tags_json TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_archive_case ON archive_items(case_number);
	CREATE INDEX IF NOT EXISTS idx_archive_created ON archive_items(created_at);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts item, assigning an id and timestamp when missing.
func (s *Store) Save(ctx context.Context, item models.ArchiveItem) (models.ArchiveItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}

	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return models.ArchiveItem{}, fmt.Errorf("marshaling tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO archive_items (id, title, case_number, client_name, type, content, tags_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.CaseNumber, item.ClientName, string(item.Type),
		item.Content, string(tags), item.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return models.ArchiveItem{}, fmt.Errorf("inserting archive item: %w", err)
	}

	return item, nil
}

// Restore writes items back with their ids and timestamps, replacing items
// that already exist. All items are written in one transaction.
func (s *Store) Restore(ctx context.Context, items []models.ArchiveItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning restore: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		if item.ID == "" {
			return errors.New("restoring archive item: missing id")
		}
		if item.Tags == nil {
			item.Tags = []string{}
		}

		tags, err := json.Marshal(item.Tags)
		if err != nil {
			return fmt.Errorf("marshaling tags: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO archive_items (id, title, case_number, client_name, type, content, tags_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Title, item.CaseNumber, item.ClientName, string(item.Type),
			item.Content, string(tags), item.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("restoring archive item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing restore: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, title, case_number, client_name, type, content, tags_json, created_at FROM archive_items`

// List returns every item, newest first.
func (s *Store) List(ctx context.Context) ([]models.ArchiveItem, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying archive items: %w", err)
	}
	return scanItems(rows)
}

// Search matches query against title, case number and client name.
func (s *Store) Search(ctx context.Context, query string) ([]models.ArchiveItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx)
	}

	like := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE lower(title) LIKE ? OR lower(case_number) LIKE ? OR lower(client_name) LIKE ?
		ORDER BY created_at DESC, id`, like, like, like)
	if err != nil {
		return nil, fmt.Errorf("searching archive items: %w", err)
	}
	return scanItems(rows)
}

func (s *Store) Get(ctx context.Context, id string) (models.ArchiveItem, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return models.ArchiveItem{}, fmt.Errorf("querying archive item: %w", err)
	}

	items, err := scanItems(rows)
	if err != nil {
		return models.ArchiveItem{}, err
	}
	if len(items) == 0 {
		return models.ArchiveItem{}, ErrItemNotFound
	}
	return items[0], nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM archive_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting archive item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Folders groups items that carry a case number, most recently updated
// folder first.
func (s *Store) Folders(ctx context.Context) ([]models.CaseFolder, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	byCase := make(map[string]*models.CaseFolder)
	var order []string
	for _, item := range items {
		if item.CaseNumber == "" {
			continue
		}

		folder, ok := byCase[item.CaseNumber]
		if !ok {
			folder = &models.CaseFolder{CaseNumber: item.CaseNumber, ClientName: item.ClientName}
			byCase[item.CaseNumber] = folder
			order = append(order, item.CaseNumber)
		}
		folder.Items = append(folder.Items, item)
		if folder.ClientName == "" {
			folder.ClientName = item.ClientName
		}
		if item.CreatedAt.After(folder.LastUpdated) {
			folder.LastUpdated = item.CreatedAt
		}
	}

	folders := make([]models.CaseFolder, 0, len(order))
	for _, caseNumber := range order {
		folders = append(folders, *byCase[caseNumber])
	}
	sort.SliceStable(folders, func(i, j int) bool {
		return folders[i].LastUpdated.After(folders[j].LastUpdated)
	})

	return folders, nil
}

func scanItems(rows *sql.Rows) ([]models.ArchiveItem, error) {
	defer rows.Close()

	var items []models.ArchiveItem
	for rows.Next() {
		var (
			item      models.ArchiveItem
			itemType  string
			tagsJSON  string
			createdAt int64
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.CaseNumber, &item.ClientName,
			&itemType, &item.Content, &tagsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}

		item.Type = models.ArchiveItemType(itemType)
		item.CreatedAt = time.UnixMilli(createdAt)
		if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
			return nil, fmt.Errorf("unmarshaling tags of %s: %w", item.ID, err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}
