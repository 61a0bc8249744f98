// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package rocks adapts the teacher's column-family rocksdb Store
// (common/kvstore/rocksdb.go) into a single-column-family, blob-oriented
// kvstore.Store: every durable node, root, garbage, and block blob this
// module writes lands in one "blocks" column family, keyed by the opaque
// strings storage/kvstore/keys.go composes.
package rocks

import (
	"context"
	"os"
	"sync"

	rdb "github.com/tecbot/gorocksdb"

	"github.com/cubefs/fluree-lite/storage/kvstore"
)

const blocksCF = "blocks"

// Option mirrors the subset of the teacher's rocksdb tuning knobs this
// module exposes; callers reach for sensible defaults via NewDefaultOption.
type Option struct {
	CreateIfMissing bool
	BlockCacheBytes uint64
	WriteBufferSize int
	MaxOpenFiles    int
}

func NewDefaultOption() Option {
	return Option{
		CreateIfMissing: true,
		BlockCacheBytes: 256 << 20,
		WriteBufferSize: 64 << 20,
		MaxOpenFiles:    512,
	}
}

type Store struct {
	path     string
	db       *rdb.DB
	cfh      *rdb.ColumnFamilyHandle
	readOpt  *rdb.ReadOptions
	writeOpt *rdb.WriteOptions
	opt      *rdb.Options
	mu       sync.RWMutex
}

// Open mirrors the teacher's newRocksdb bring-up (OpenDbColumnFamilies),
// narrowed to the one "blocks" column family this store needs.
func Open(ctx context.Context, path string, opt Option) (*Store, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	bbto := rdb.NewDefaultBlockBasedTableOptions()
	bbto.SetBlockCache(rdb.NewLRUCache(opt.BlockCacheBytes))

	dbOpt := rdb.NewDefaultOptions()
	dbOpt.SetCreateIfMissing(opt.CreateIfMissing)
	dbOpt.SetCreateIfMissingColumnFamilies(true)
	dbOpt.SetBlockBasedTableFactory(bbto)
	dbOpt.SetWriteBufferSize(opt.WriteBufferSize)
	dbOpt.SetMaxOpenFiles(opt.MaxOpenFiles)

	cfNames := []string{"default", blocksCF}
	cfOpts := []*rdb.Options{dbOpt, dbOpt}

	db, cfhs, err := rdb.OpenDbColumnFamilies(dbOpt, path, cfNames, cfOpts)
	if err != nil {
		return nil, err
	}

	return &Store{
		path:     path,
		db:       db,
		cfh:      cfhs[1],
		opt:      dbOpt,
		readOpt:  rdb.NewDefaultReadOptions(),
		writeOpt: rdb.NewDefaultWriteOptions(),
	}, nil
}

func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readOpt.Destroy()
	s.writeOpt.Destroy()
	s.cfh.Destroy()
	s.db.Close()
}

func (s *Store) Exists(ctx context.Context, key string) *kvstore.Future[bool] {
	return kvstore.NewFuture(ctx, func(ctx context.Context) (bool, error) {
		slice, err := s.db.GetCF(s.readOpt, s.cfh, []byte(key))
		if err != nil {
			return false, err
		}
		defer slice.Free()
		return slice.Exists(), nil
	})
}

func (s *Store) Read(ctx context.Context, key string) *kvstore.Future[[]byte] {
	return kvstore.NewFuture(ctx, func(ctx context.Context) ([]byte, error) {
		slice, err := s.db.GetCF(s.readOpt, s.cfh, []byte(key))
		if err != nil {
			return nil, err
		}
		defer slice.Free()
		if !slice.Exists() {
			return nil, kvstore.ErrNotFound
		}
		out := make([]byte, len(slice.Data()))
		copy(out, slice.Data())
		return out, nil
	})
}

func (s *Store) Write(ctx context.Context, key string, value []byte) *kvstore.Future[kvstore.Address] {
	return kvstore.NewFuture(ctx, func(ctx context.Context) (kvstore.Address, error) {
		if err := s.db.PutCF(s.writeOpt, s.cfh, []byte(key), value); err != nil {
			return "", err
		}
		return kvstore.Address(key), nil
	})
}

func (s *Store) Rename(ctx context.Context, oldKey, newKey string) *kvstore.Future[struct{}] {
	return kvstore.NewFuture(ctx, func(ctx context.Context) (struct{}, error) {
		slice, err := s.db.GetCF(s.readOpt, s.cfh, []byte(oldKey))
		if err != nil {
			return struct{}{}, err
		}
		defer slice.Free()
		if !slice.Exists() {
			return struct{}{}, kvstore.ErrNotFound
		}

		batch := rdb.NewWriteBatch()
		defer batch.Destroy()
		batch.PutCF(s.cfh, []byte(newKey), slice.Data())
		batch.DeleteCF(s.cfh, []byte(oldKey))
		return struct{}{}, s.db.Write(s.writeOpt, batch)
	})
}

func (s *Store) Delete(ctx context.Context, key string) *kvstore.Future[struct{}] {
	return kvstore.NewFuture(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.db.DeleteCF(s.writeOpt, s.cfh, []byte(key))
	})
}

func (s *Store) List(ctx context.Context, prefix string) *kvstore.Future[[]string] {
	return kvstore.NewFuture(ctx, func(ctx context.Context) ([]string, error) {
		it := s.db.NewIteratorCF(s.readOpt, s.cfh)
		defer it.Close()

		var out []string
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			k := it.Key()
			out = append(out, string(k.Data()))
			k.Free()
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
		return out, nil
	})
}
