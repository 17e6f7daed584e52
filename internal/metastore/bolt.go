// internal/metastore/bolt.go
package metastore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/Gammanik/dfs/internal/dfserr"
)

var (
	opsBucket   = []byte("ops")
	filesBucket = []byte("files")
)

// BoltStore реализация Journal на основе BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore открывает или создает журнал
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	// Создаем необходимые бакеты
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(opsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(filesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Append сохраняет запись и индексирует ее по имени файла
func (bs *BoltStore) Append(rec *Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		rec.ID = id.String()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return bs.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(opsBucket).Put([]byte(rec.ID), encoded); err != nil {
			return err
		}

		// Индекс: files/<file>/<id> -> пусто
		fb, err := tx.Bucket(filesBucket).CreateBucketIfNotExists([]byte(rec.File))
		if err != nil {
			return err
		}
		return fb.Put([]byte(rec.ID), nil)
	})
}

// Get возвращает запись по идентификатору
func (bs *BoltStore) Get(id string) (*Record, error) {
	var rec Record

	err := bs.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(opsBucket).Get([]byte(id))
		if data == nil {
			return dfserr.New(dfserr.ErrNotFound, fmt.Sprintf("journal record %s", id), nil)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// History возвращает записи по файлу, от старых к новым
func (bs *BoltStore) History(file string) ([]Record, error) {
	var records []Record

	err := bs.db.View(func(tx *bolt.Tx) error {
		fb := tx.Bucket(filesBucket).Bucket([]byte(file))
		if fb == nil {
			return nil
		}
		ops := tx.Bucket(opsBucket)

		return fb.ForEach(func(id, _ []byte) error {
			data := ops.Get(id)
			if data == nil {
				return nil
			}
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})

	return records, err
}

// Recent возвращает до limit последних записей, от новых к старым
func (bs *BoltStore) Recent(limit int) ([]Record, error) {
	var records []Record

	err := bs.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(opsBucket).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(records) < limit); k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// Close закрывает хранилище
func (bs *BoltStore) Close() error {
	return bs.db.Close()
}
