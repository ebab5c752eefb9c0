// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/maskbid/maskbid/pkg/faults"
	"github.com/maskbid/maskbid/pkg/log"
)

// BadgerBackend stores records in an embedded badger database. Values are an
// 8-byte big-endian version followed by the JSON document.
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens (or creates) a database at path. An empty path opens
// an in-memory instance.
func NewBadgerBackend(path string, logger log.Logger) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{logger})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerBackend{db: db}, nil
}

func badgerKey(table, key string) []byte {
	return []byte(table + "/" + key)
}

func encodeValue(version int64, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(version))
	copy(buf[8:], data)
	return buf
}

func decodeValue(key string, raw []byte) (Record, error) {
	if len(raw) < 8 {
		return Record{}, fmt.Errorf("corrupt record %q", key)
	}
	return Record{
		Key:     key,
		Version: int64(binary.BigEndian.Uint64(raw[:8])),
		Data:    raw[8:],
	}, nil
}

func (b *BadgerBackend) Get(ctx context.Context, table, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	var rec Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(table, key))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = decodeValue(key, raw)
		return err
	})
	return rec, b.mapErr("get", err)
}

func (b *BadgerBackend) Insert(ctx context.Context, table, key string, data []byte) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	k := badgerKey(table, key)
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		switch {
		case err == nil:
			return ErrConflict
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(k, encodeValue(1, data))
	})
	if err != nil {
		return Record{}, b.mapErr("insert", err)
	}
	return Record{Key: key, Version: 1, Data: data}, nil
}

func (b *BadgerBackend) Swap(ctx context.Context, table, key string, version int64, data []byte) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	k := badgerKey(table, key)
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		cur, err := decodeValue(key, raw)
		if err != nil {
			return err
		}
		if cur.Version != version {
			return ErrConflict
		}
		return txn.Set(k, encodeValue(version+1, data))
	})
	if err != nil {
		return Record{}, b.mapErr("swap", err)
	}
	return Record{Key: key, Version: version + 1, Data: data}, nil
}

func (b *BadgerBackend) Find(ctx context.Context, table string, where Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(table + "/")
	var out []Record
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decodeValue(string(item.Key()[len(prefix):]), raw)
			if err != nil {
				return err
			}
			if matches(rec.Data, where) {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, b.mapErr("find", err)
	}
	return out, nil
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

// mapErr translates badger errors into the store's outcomes. A transaction
// conflict means another writer won the race.
func (b *BadgerBackend) mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound), errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, badger.ErrConflict), errors.Is(err, ErrConflict):
		return ErrConflict
	default:
		return faults.Wrap(faults.KindTransport, "badger "+op, err)
	}
}

// badgerLogger routes badger's printf logging into the structured logger.
type badgerLogger struct {
	log log.Logger
}

func (l badgerLogger) Errorf(f string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(f, args...), log.String("component", "badger"))
}

func (l badgerLogger) Warningf(f string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(f, args...), log.String("component", "badger"))
}

func (l badgerLogger) Infof(f string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(f, args...), log.String("component", "badger"))
}

func (l badgerLogger) Debugf(f string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(f, args...), log.String("component", "badger"))
}
