// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package listiter implements types.BlobIterator over a key listing taken
// from an object store, fetching values on demand.
package listiter

import (
	"bytes"
	"slices"

	"github.com/blinklabs-io/zktender/database/types"
)

// FetchFunc returns the value stored under key
type FetchFunc func(key []byte) ([]byte, error)

type Iterator struct {
	fetch   FetchFunc
	keys    [][]byte
	idx     int
	reverse bool
	err     error
}

// New returns an iterator over keys, which must be sorted ascending
func New(keys [][]byte, reverse bool, fetch FetchFunc) *Iterator {
	if reverse {
		slices.Reverse(keys)
	}
	return &Iterator{fetch: fetch, keys: keys, reverse: reverse}
}

func (it *Iterator) Rewind() { it.idx = 0 }

func (it *Iterator) Seek(prefix []byte) {
	for it.idx = 0; it.idx < len(it.keys); it.idx++ {
		cmp := bytes.Compare(it.keys[it.idx], prefix)
		if (!it.reverse && cmp >= 0) || (it.reverse && cmp <= 0) {
			return
		}
	}
}

func (it *Iterator) Valid() bool { return it.idx < len(it.keys) }

func (it *Iterator) ValidForPrefix(prefix []byte) bool {
	return it.Valid() && bytes.HasPrefix(it.keys[it.idx], prefix)
}

func (it *Iterator) Next() { it.idx++ }

func (it *Iterator) Item() types.BlobItem {
	if !it.Valid() {
		return nil
	}
	return &item{iter: it, key: it.keys[it.idx]}
}

func (it *Iterator) Close() {}

func (it *Iterator) Err() error { return it.err }

type item struct {
	iter *Iterator
	key  []byte
}

func (i *item) Key() []byte {
	return bytes.Clone(i.key)
}

func (i *item) ValueCopy(dst []byte) ([]byte, error) {
	val, err := i.iter.fetch(i.key)
	if err != nil {
		i.iter.err = err
		return nil, err
	}
	return append(dst[:0], val...), nil
}

// Failed returns an iterator that yields nothing and reports err
func Failed(err error) types.BlobIterator {
	return &errorIterator{err: err}
}

type errorIterator struct {
	err error
}

func (it *errorIterator) Rewind()                      {}
func (it *errorIterator) Seek(prefix []byte)           {}
func (it *errorIterator) Valid() bool                  { return false }
func (it *errorIterator) ValidForPrefix(p []byte) bool { return false }
func (it *errorIterator) Next()                        {}
func (it *errorIterator) Item() types.BlobItem         { return nil }
func (it *errorIterator) Close()                       {}
func (it *errorIterator) Err() error                   { return it.err }
