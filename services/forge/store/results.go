// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

// ErrNotFound is returned when a requested batch or job record does
// not exist.
var ErrNotFound = errors.New("store: not found")

// Key layout:
//
//	result/{batchID}/{jobID} -> datatypes.JobResult
//	batch/{batchID}          -> datatypes.BatchSummary
func resultKey(batchID, jobID string) []byte {
	return []byte("result/" + batchID + "/" + jobID)
}

func batchKey(batchID string) []byte {
	return []byte("batch/" + batchID)
}

// ResultStore is the durable results store. It owns a BadgerDB
// instance; call Close when done.
//
// Thread Safety: safe for concurrent use.
type ResultStore struct {
	db *badger.DB

	gcStop chan struct{}
	gcOnce sync.Once
}

// NewResultStore opens a ResultStore with the given config and
// starts the GC loop when configured.
func NewResultStore(cfg Config) (*ResultStore, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	s := &ResultStore{
		db:     db,
		gcStop: make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// RecordJobResult persists one job's final outcome.
func (s *ResultStore) RecordJobResult(result datatypes.JobResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: marshal job result: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(resultKey(result.BatchID, result.JobID), data)
	})
	if err != nil {
		return fmt.Errorf("store: write job result %s/%s: %w", result.BatchID, result.JobID, err)
	}
	return nil
}

// RecordBatchSummary persists a batch's final accounting.
func (s *ResultStore) RecordBatchSummary(summary datatypes.BatchSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("store: marshal batch summary: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(batchKey(summary.BatchID), data)
	})
	if err != nil {
		return fmt.Errorf("store: write batch summary %s: %w", summary.BatchID, err)
	}
	return nil
}

// GetBatchSummary retrieves a batch's summary, or ErrNotFound.
func (s *ResultStore) GetBatchSummary(batchID string) (datatypes.BatchSummary, error) {
	var summary datatypes.BatchSummary
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(batchKey(batchID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &summary)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return summary, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
	}
	if err != nil {
		return summary, fmt.Errorf("store: read batch summary %s: %w", batchID, err)
	}
	return summary, nil
}

// ListJobResults returns every job result recorded for a batch.
func (s *ResultStore) ListJobResults(batchID string) ([]datatypes.JobResult, error) {
	prefix := []byte("result/" + batchID + "/")
	var results []datatypes.JobResult
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var r datatypes.JobResult
				if err := json.Unmarshal(val, &r); err != nil {
					return err
				}
				results = append(results, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list job results %s: %w", batchID, err)
	}
	return results, nil
}

// Close stops the GC loop and closes the database.
func (s *ResultStore) Close() error {
	s.gcOnce.Do(func() { close(s.gcStop) })
	return s.db.Close()
}

func (s *ResultStore) runGC(interval time.Duration, discardRatio float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite just means nothing qualified this cycle.
			for {
				if err := s.db.RunValueLogGC(discardRatio); err != nil {
					break
				}
			}
		}
	}
}
