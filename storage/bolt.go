package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aweist/docket-watcher/models"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketSessions   = "sessions"
	bucketSettings   = "settings"
	bucketScheduler  = "scheduler"
	bucketDeliveries = "deliveries"
)

// Keys of the flat documents kept by the store. They double as the key names
// of a backup snapshot.
const (
	KeySessions      = "court_sessions"
	KeyAlertSettings = "alert_settings"
	KeyLastAlert     = "last_alert_date"
)

var documentBuckets = map[string]string{
	KeySessions:      bucketSessions,
	KeyAlertSettings: bucketSettings,
	KeyLastAlert:     bucketScheduler,
}

// lockTimeout bounds how long an operation waits for another process, usually
// a running serve, to finish its transaction on the file.
const lockTimeout = 2 * time.Second

// ErrLocked is returned when the file stays locked past the lock timeout.
var ErrLocked = errors.New("database is locked by another docket-watcher process; stop serve or use the web API")

// BoltStorage holds the database file only for the length of a transaction,
// so a running serve and short-lived CLI commands can share it. Reads open the
// file read-only and do not block each other.
type BoltStorage struct {
	path        string
	lockTimeout time.Duration

	mu sync.RWMutex
}

func NewBoltStorage(dbPath string) (*BoltStorage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	s := &BoltStorage{path: dbPath, lockTimeout: lockTimeout}

	err := s.update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketSessions, bucketSettings, bucketScheduler, bucketDeliveries} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Close is a no-op; the file is released after every transaction.
func (s *BoltStorage) Close() error {
	return nil
}

func (s *BoltStorage) open(readOnly bool) (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: s.lockTimeout, ReadOnly: readOnly})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("opening %s: %w", s.path, ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func (s *BoltStorage) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.open(true)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(fn)
}

func (s *BoltStorage) update(fn func(*bolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open(false)
	if err != nil {
		return err
	}

	if err := db.Update(fn); err != nil {
		_ = db.Close()
		return err
	}
	return db.Close()
}

// GetAllSessions returns the stored session collection in its persisted order.
func (s *BoltStorage) GetAllSessions() ([]models.CourtSession, error) {
	var sessions []models.CourtSession

	err := s.view(func(tx *bolt.Tx) error {
		var err error
		sessions, err = readSessions(tx)
		return err
	})

	return sessions, err
}

// SaveSessions replaces the whole session collection.
func (s *BoltStorage) SaveSessions(sessions []models.CourtSession) error {
	return s.update(func(tx *bolt.Tx) error {
		return writeSessions(tx, sessions)
	})
}

// UpdateSessions runs fn against the current collection and stores its result
// in the same write transaction, so readers only ever see the collection
// before or after the change.
func (s *BoltStorage) UpdateSessions(fn func([]models.CourtSession) ([]models.CourtSession, error)) error {
	return s.update(func(tx *bolt.Tx) error {
		current, err := readSessions(tx)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		return writeSessions(tx, next)
	})
}

func readSessions(tx *bolt.Tx) ([]models.CourtSession, error) {
	data := tx.Bucket([]byte(bucketSessions)).Get([]byte(KeySessions))
	if data == nil {
		return []models.CourtSession{}, nil
	}

	var sessions []models.CourtSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshaling sessions: %w", err)
	}

	return sessions, nil
}

func writeSessions(tx *bolt.Tx, sessions []models.CourtSession) error {
	if sessions == nil {
		sessions = []models.CourtSession{}
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("marshaling sessions: %w", err)
	}

	return tx.Bucket([]byte(bucketSessions)).Put([]byte(KeySessions), data)
}

// GetAlertSettings returns the saved settings, or the defaults when none were
// saved yet.
func (s *BoltStorage) GetAlertSettings() (models.AlertSettings, error) {
	settings := models.DefaultAlertSettings()

	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketSettings)).Get([]byte(KeyAlertSettings))
		if data == nil {
			return nil
		}

		return json.Unmarshal(data, &settings)
	})

	if err != nil {
		return models.DefaultAlertSettings(), fmt.Errorf("reading alert settings: %w", err)
	}

	return settings, nil
}

func (s *BoltStorage) SaveAlertSettings(settings models.AlertSettings) error {
	return s.update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(settings)
		if err != nil {
			return fmt.Errorf("marshaling alert settings: %w", err)
		}

		return tx.Bucket([]byte(bucketSettings)).Put([]byte(KeyAlertSettings), data)
	})
}

// GetLastAlertToken returns the dedup marker, or "" if no reminder was ever
// dispatched.
func (s *BoltStorage) GetLastAlertToken() (string, error) {
	var token string

	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketScheduler)).Get([]byte(KeyLastAlert))
		token = string(data)
		return nil
	})

	return token, err
}

func (s *BoltStorage) SetLastAlertToken(token string) error {
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketScheduler)).Put([]byte(KeyLastAlert), []byte(token))
	})
}

func (s *BoltStorage) RecordDelivery(record models.DeliveryRecord) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketDeliveries))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling delivery record: %w", err)
		}

		key := record.DeliveredAt.UTC().Format(time.RFC3339Nano) + "|" + record.Token
		return b.Put([]byte(key), data)
	})
}

// GetAllDeliveries returns the delivery history, most recent first.
func (s *BoltStorage) GetAllDeliveries() ([]models.DeliveryRecord, error) {
	var records []models.DeliveryRecord

	err := s.view(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketDeliveries))

		return b.ForEach(func(k, v []byte) error {
			var record models.DeliveryRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})

	sort.Slice(records, func(i, j int) bool {
		return records[i].DeliveredAt.After(records[j].DeliveredAt)
	})

	return records, err
}

func (s *BoltStorage) CleanupOldDeliveries(before time.Time) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketDeliveries))

		var keysToDelete [][]byte

		err := b.ForEach(func(k, v []byte) error {
			var record models.DeliveryRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}

			if record.DeliveredAt.Before(before) {
				keysToDelete = append(keysToDelete, k)
			}

			return nil
		})

		if err != nil {
			return err
		}

		for _, key := range keysToDelete {
			if err := b.Delete(key); err != nil {
				return err
			}
		}

		return nil
	})
}

// Export returns every flat document as raw JSON, keyed by document name.
// The dedup marker is exported as a JSON string.
func (s *BoltStorage) Export() (map[string]json.RawMessage, error) {
	docs := make(map[string]json.RawMessage)

	err := s.view(func(tx *bolt.Tx) error {
		for key, bucket := range documentBuckets {
			data := tx.Bucket([]byte(bucket)).Get([]byte(key))
			if data == nil {
				continue
			}

			if key == KeyLastAlert {
				encoded, err := json.Marshal(string(data))
				if err != nil {
					return err
				}
				data = encoded
			}

			docs[key] = append(json.RawMessage(nil), data...)
		}
		return nil
	})

	return docs, err
}

// Import overwrites the documents present in docs. Unknown keys are ignored.
// All documents are decoded before anything is written.
func (s *BoltStorage) Import(docs map[string]json.RawMessage) error {
	values := make(map[string][]byte)

	for key, raw := range docs {
		if _, ok := documentBuckets[key]; !ok {
			continue
		}

		switch key {
		case KeySessions:
			var sessions []models.CourtSession
			if err := json.Unmarshal(raw, &sessions); err != nil {
				return fmt.Errorf("decoding %s: %w", key, err)
			}
		case KeyAlertSettings:
			var settings models.AlertSettings
			if err := json.Unmarshal(raw, &settings); err != nil {
				return fmt.Errorf("decoding %s: %w", key, err)
			}
		case KeyLastAlert:
			var token string
			if err := json.Unmarshal(raw, &token); err != nil {
				return fmt.Errorf("decoding %s: %w", key, err)
			}
			values[key] = []byte(token)
			continue
		}

		values[key] = raw
	}

	if len(values) == 0 {
		return errors.New("backup contains no known documents")
	}

	return s.update(func(tx *bolt.Tx) error {
		for key, data := range values {
			if err := tx.Bucket([]byte(documentBuckets[key])).Put([]byte(key), data); err != nil {
				return fmt.Errorf("writing %s: %w", key, err)
			}
		}
		return nil
	})
}
