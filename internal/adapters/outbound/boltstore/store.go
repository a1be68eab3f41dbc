package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/skillcoder/sandboxd/internal/logic/access"
	"github.com/skillcoder/sandboxd/internal/logic/instance"
)

var (
	bucketInstances   = []byte("instances")
	bucketConnections = []byte("connections")
)

// Store persists instance and grant records in a single-file bbolt database.
// Values are JSON; keys are the record names (instance name, grant login).
type Store struct {
	logger *slog.Logger
	db     *bolt.DB
}

// Open creates or opens the database file and ensures the buckets exist.
func Open(logger *slog.Logger, path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketInstances, bucketConnections} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("initialize store: %w", err)
	}

	return &Store{logger: logger, db: db}, nil
}

var (
	_ instance.Repository = (*Store)(nil)
	_ access.Repository   = (*Store)(nil)
)

// Name returns the name of the server component
func (s *Store) Name() string {
	return "record-store"
}

func (s *Store) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "closing record store")

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}

func (s *Store) SaveInstance(_ context.Context, inst *instance.Instance) error {
	return s.put(bucketInstances, inst.Name, inst)
}

func (s *Store) GetInstance(_ context.Context, name string) (*instance.Instance, error) {
	var inst instance.Instance
	if err := s.get(bucketInstances, name, &inst); err != nil {
		return nil, err
	}

	return &inst, nil
}

func (s *Store) ListInstances(_ context.Context) ([]instance.Instance, error) {
	return scan[instance.Instance](s, bucketInstances, nil)
}

func (s *Store) ListInstancesByOwner(
	_ context.Context,
	ownerID string,
) ([]instance.Instance, error) {
	return scan(s, bucketInstances, func(inst *instance.Instance) bool {
		return inst.OwnerID == ownerID
	})
}

func (s *Store) DeleteInstance(_ context.Context, name string) error {
	return s.delete(bucketInstances, name)
}

func (s *Store) SaveConnection(_ context.Context, conn *access.Connection) error {
	return s.put(bucketConnections, conn.Login, conn)
}

func (s *Store) GetConnection(_ context.Context, login string) (*access.Connection, error) {
	var conn access.Connection
	if err := s.get(bucketConnections, login, &conn); err != nil {
		return nil, err
	}

	return &conn, nil
}

// FindActiveConnection scans for the Active grant of a (owner, instance)
// pair. The record sets are per-student sized, so a cursor scan beats
// maintaining a secondary index.
func (s *Store) FindActiveConnection(
	_ context.Context,
	ownerID,
	instanceName string,
) (*access.Connection, error) {
	conns, err := scan(s, bucketConnections, func(conn *access.Connection) bool {
		return conn.OwnerID == ownerID &&
			conn.InstanceName == instanceName &&
			conn.Status == access.StatusActive
	})
	if err != nil {
		return nil, err
	}

	if len(conns) == 0 {
		return nil, fmt.Errorf("active grant for %s/%s: %w", ownerID, instanceName, errRecordNotFound)
	}

	return &conns[0], nil
}

func (s *Store) ListConnections(_ context.Context) ([]access.Connection, error) {
	return scan[access.Connection](s, bucketConnections, nil)
}

func (s *Store) ListConnectionsByOwner(
	_ context.Context,
	ownerID string,
) ([]access.Connection, error) {
	return scan(s, bucketConnections, func(conn *access.Connection) bool {
		return conn.OwnerID == ownerID
	})
}

func (s *Store) put(bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", key, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("put record %s: %w", key, err)
	}

	return nil
}

func (s *Store) get(bucket []byte, key string, out any) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("record %s: %w", key, errRecordNotFound)
		}

		return json.Unmarshal(data, out)
	})
	if err != nil {
		return fmt.Errorf("get record: %w", err)
	}

	return nil
}

func (s *Store) delete(bucket []byte, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete record %s: %w", key, err)
	}

	return nil
}

func scan[T any](s *Store, bucket []byte, keep func(*T) bool) ([]T, error) {
	out := []T{}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(_, data []byte) error {
			var record T
			if err := json.Unmarshal(data, &record); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}

			if keep == nil || keep(&record) {
				out = append(out, record)
			}

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan bucket %s: %w", bucket, err)
	}

	return out, nil
}
