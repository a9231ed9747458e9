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

package gcs

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/blinklabs-io/zktender/database/plugin/blob/internal/listiter"
	"github.com/blinklabs-io/zktender/database/types"
)

// BlobStoreGCS stores proposal payloads in a Google Cloud Storage bucket.
type BlobStoreGCS struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	metrics         *gcsMetrics
	client          *storage.Client
	bucket          *storage.BucketHandle
	bucketName      string
	prefix          string
	credentialsFile string
	timeout         time.Duration
}

// gcsTxn satisfies types.Txn. Object writes are applied immediately
type gcsTxn struct {
	store     *BlobStoreGCS
	finished  bool
	readWrite bool
}

func (t *gcsTxn) Commit() error {
	t.finished = true
	return nil
}

func (t *gcsTxn) Rollback() error {
	t.finished = true
	return nil
}

// New creates a new GCS-backed blob store. dataDir must be "gcs://bucket"
// or "gcs://bucket/prefix"
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*BlobStoreGCS, error) {
	const scheme = "gcs://"
	path, ok := strings.CutPrefix(dataDir, scheme)
	bucketName, keyPrefix, _ := strings.Cut(path, "/")
	if !ok || bucketName == "" {
		return nil, errors.New(
			"gcs blob: bucket not set (expected dataDir='gcs://<bucket>[/prefix]')",
		)
	}
	if keyPrefix = strings.TrimSuffix(keyPrefix, "/"); keyPrefix != "" {
		keyPrefix += "/"
	}

	return NewWithOptions(
		WithBucket(bucketName),
		WithPrefix(keyPrefix),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a new GCS-backed blob store using options.
func NewWithOptions(opts ...BlobStoreGCSOptionFunc) (*BlobStoreGCS, error) {
	db := &BlobStoreGCS{}

	// Apply options
	for _, opt := range opts {
		opt(db)
	}

	// Set defaults
	if db.logger == nil {
		db.logger = storeLogger(nil)
	}

	return db, nil
}

// SetLogger sets the logger used once the store is started
func (d *BlobStoreGCS) SetLogger(logger *slog.Logger) {
	d.logger = storeLogger(logger)
}

// SetPromRegistry sets the metrics registry used once the store is started
func (d *BlobStoreGCS) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// ValidateCredentials checks that a configured credentials file exists
func ValidateCredentials(credentialsFile string) error {
	if credentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(credentialsFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf(
				"GCS credentials file does not exist: %s",
				credentialsFile,
			)
		}
		return fmt.Errorf("failed to read GCS credentials file: %w", err)
	}
	return nil
}

// Close closes the GCS client.
func (d *BlobStoreGCS) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	d.bucket = nil
	return err
}

// Start implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Start() error {
	// Validate required fields
	if d.bucketName == "" {
		return errors.New("gcs blob: bucket not set")
	}
	if err := ValidateCredentials(d.credentialsFile); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := []option.ClientOption{storage.WithDisabledClientMetrics()}
	if d.credentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(d.credentialsFile),
		)
	}

	client, err := storage.NewGRPCClient(
		ctx,
		clientOpts...,
	)
	if err != nil {
		return fmt.Errorf(
			"gcs blob: failed in creating storage client: %w",
			err,
		)
	}

	d.client = client
	d.bucket = client.Bucket(d.bucketName)
	if d.promRegistry != nil {
		d.registerBlobMetrics()
	}
	d.logger.Info(
		"payload store ready",
		"bucket", d.bucketName,
		"prefix", d.prefix,
	)
	return nil
}

// Stop implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Stop() error {
	return d.Close()
}

func (d *BlobStoreGCS) opContext() (context.Context, context.CancelFunc) {
	timeout := d.timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// NewTransaction returns a lightweight transaction wrapper.
func (d *BlobStoreGCS) NewTransaction(readWrite bool) types.Txn {
	return &gcsTxn{store: d, readWrite: readWrite}
}

func (d *BlobStoreGCS) validateTxn(txn types.Txn, write bool) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	t, ok := txn.(*gcsTxn)
	if !ok || t.store != d {
		return types.ErrTxnWrongType
	}
	if t.finished {
		return errors.New("transaction already finished")
	}
	if write && !t.readWrite {
		return errors.New("transaction is read-only")
	}
	if d.bucket == nil {
		return types.ErrBlobStoreUnavailable
	}
	return nil
}

// objectName maps a binary blob key to an object name. Hex keeps object
// names printable while preserving prefix and ordering relationships
func (d *BlobStoreGCS) objectName(key []byte) string {
	return d.prefix + hex.EncodeToString(key)
}

func (d *BlobStoreGCS) blobKey(objectName string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(objectName, d.prefix))
}

func (d *BlobStoreGCS) read(ctx context.Context, key []byte) ([]byte, error) {
	r, err := d.bucket.Object(d.objectName(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	defer r.Close()
	val, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d.metrics.observe("get", len(val))
	return val, nil
}

// Get retrieves a value from GCS within a transaction
func (d *BlobStoreGCS) Get(txn types.Txn, key []byte) ([]byte, error) {
	if err := d.validateTxn(txn, false); err != nil {
		return nil, err
	}
	ctx, cancel := d.opContext()
	defer cancel()
	return d.read(ctx, key)
}

// Set stores a key-value pair in GCS within a transaction
func (d *BlobStoreGCS) Set(txn types.Txn, key, val []byte) error {
	if err := d.validateTxn(txn, true); err != nil {
		return err
	}
	ctx, cancel := d.opContext()
	defer cancel()
	w := d.bucket.Object(d.objectName(key)).NewWriter(ctx)
	if _, err := w.Write(val); err != nil {
		_ = w.Close()
		d.logger.Error(
			"payload write failed",
			"key", hex.EncodeToString(key),
			"error", err,
		)
		return err
	}
	if err := w.Close(); err != nil {
		d.logger.Error(
			"payload write failed",
			"key", hex.EncodeToString(key),
			"error", err,
		)
		return err
	}
	d.metrics.observe("set", len(val))
	return nil
}

// Delete removes a key from GCS within a transaction
func (d *BlobStoreGCS) Delete(txn types.Txn, key []byte) error {
	if err := d.validateTxn(txn, true); err != nil {
		return err
	}
	ctx, cancel := d.opContext()
	defer cancel()
	if err := d.bucket.Object(d.objectName(key)).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return types.ErrBlobKeyNotFound
		}
		return err
	}
	d.metrics.observe("delete", 0)
	return nil
}

// NewIterator creates an iterator for GCS within a transaction. Keys are
// listed up front and values are fetched as items are read
func (d *BlobStoreGCS) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	if err := d.validateTxn(txn, false); err != nil {
		return listiter.Failed(err)
	}
	ctx, cancel := d.opContext()
	defer cancel()
	objects := d.bucket.Objects(ctx, &storage.Query{
		Prefix: d.objectName(opts.Prefix),
	})
	var keys [][]byte
	for {
		attrs, err := objects.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			d.logger.Error("payload list failed", "error", err)
			return listiter.Failed(err)
		}
		key, err := d.blobKey(attrs.Name)
		if err != nil {
			// Not one of ours
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i], keys[j]) < 0
	})
	return listiter.New(keys, opts.Reverse, func(key []byte) ([]byte, error) {
		ctx, cancel := d.opContext()
		defer cancel()
		return d.read(ctx, key)
	})
}
