package receipt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName      = "receipts"
	ownerBucketName = "owners" // holds one nested bucket of receipt IDs per user
)

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt inserts or replaces a record and indexes it under its owner
	SaveReceipt(record *Record) error

	// GetReceipt retrieves a record by ID
	GetReceipt(id string) (*Record, error)

	// ListReceipts returns the owner's records, newest first
	ListReceipts(userID string) ([]*Record, error)

	// DeleteReceipt removes a record and its owner index entry
	DeleteReceipt(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(ownerBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveReceipt saves a record to the database
func (b *BoltDB) SaveReceipt(record *Record) error {
	if record.ID == "" || record.UserID == "" {
		return fmt.Errorf("saving receipt: id and user id are required")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling receipt: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(bucketName)).Put([]byte(record.ID), data); err != nil {
			return err
		}
		owned, err := tx.Bucket([]byte(ownerBucketName)).CreateBucketIfNotExists([]byte(record.UserID))
		if err != nil {
			return fmt.Errorf("creating owner index: %w", err)
		}
		return owned.Put([]byte(record.ID), []byte{})
	})
}

// GetReceipt retrieves a record by ID
func (b *BoltDB) GetReceipt(id string) (*Record, error) {
	var record *Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		record, err = getRecord(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func getRecord(tx *bbolt.Tx, id string) (*Record, error) {
	data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling receipt: %w", err)
	}
	return &record, nil
}

// ListReceipts returns all records owned by userID
func (b *BoltDB) ListReceipts(userID string) ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		owned := tx.Bucket([]byte(ownerBucketName)).Bucket([]byte(userID))
		if owned == nil {
			return nil
		}
		return owned.ForEach(func(k, _ []byte) error {
			record, err := getRecord(tx, string(k))
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// DeleteReceipt removes a record from the database. Deleting a missing record is not an error.
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return nil
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("unmarshaling receipt: %w", err)
		}
		if owned := tx.Bucket([]byte(ownerBucketName)).Bucket([]byte(record.UserID)); owned != nil {
			if err := owned.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
