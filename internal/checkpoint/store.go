// Package checkpoint persists the ingestion cursor across restarts.
package checkpoint

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

var (
	bucketCursor = []byte("cursor")
	keyTracker   = []byte("tracker")
)

type record struct {
	StartHeight         uint64    `json:"start_height"`
	LastProcessedHeight uint64    `json:"last_processed_height"`
	Started             bool      `json:"started"`
	Processed           bool      `json:"processed"`
	SavedAt             time.Time `json:"saved_at"`
}

// Store keeps the cursor in a bbolt database.
type Store struct {
	db     *bbolt.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (or creates) the checkpoint database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCursor)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cursor bucket: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.Named("checkpoint"),
		now:    time.Now,
	}, nil
}

// Load returns the saved cursor. The boolean is false when nothing was saved yet.
func (s *Store) Load() (model.Cursor, bool, error) {
	var (
		rec   record
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCursor).Get(keyTracker)
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return model.Cursor{}, false, fmt.Errorf("load cursor: %w", err)
	}
	if !found {
		return model.Cursor{}, false, nil
	}

	s.logger.Info("cursor restored",
		zap.Uint64("start_height", rec.StartHeight),
		zap.Uint64("last_processed_height", rec.LastProcessedHeight),
		zap.Time("saved_at", rec.SavedAt),
	)

	return model.Cursor{
		StartHeight:         rec.StartHeight,
		LastProcessedHeight: rec.LastProcessedHeight,
		Started:             rec.Started,
		Processed:           rec.Processed,
	}, true, nil
}

// Save overwrites the saved cursor.
func (s *Store) Save(cursor model.Cursor) error {
	data, err := json.Marshal(record{
		StartHeight:         cursor.StartHeight,
		LastProcessedHeight: cursor.LastProcessedHeight,
		Started:             cursor.Started,
		Processed:           cursor.Processed,
		SavedAt:             s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCursor).Put(keyTracker, data)
	})
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
