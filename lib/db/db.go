package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
	ImplBolt  Implementation = "bolt"
	ImplLevel Implementation = "level"
	ImplRedis Implementation = "redis"
	ImplS3    Implementation = "s3"
)

// DefaultTableName is the name of the key-value table when none is configured.
const DefaultTableName = "kv_store"

// Feature represents table features as bit flags
type Feature uint64

const (
	FeatureUpsert       Feature = 1 << iota // Support for Upsert operations
	FeatureDelete                           // Support for Delete operations
	FeatureSelect                           // Support for Select operations
	FeatureSelectIn                         // Support for SelectIn operations
	FeatureSelectPrefix                     // Support for SelectPrefix operations
	FeatureAtomicBatch                      // Multi-row Upsert and Delete are all-or-nothing
	FeaturePersistent                       // Rows survive a process restart
	FeatureSnapshot                         // Support for Save and Load (see Snapshotter)
)

// FeatureCRUD is the set of features every table must provide to back a store.
const FeatureCRUD = FeatureUpsert | FeatureDelete | FeatureSelect | FeatureSelectIn | FeatureSelectPrefix

func (f Feature) String() string {
	switch f {
	case FeatureUpsert:
		return "Upsert"
	case FeatureDelete:
		return "Delete"
	case FeatureSelect:
		return "Select"
	case FeatureSelectIn:
		return "SelectIn"
	case FeatureSelectPrefix:
		return "SelectPrefix"
	case FeatureAtomicBatch:
		return "AtomicBatch"
	case FeaturePersistent:
		return "Persistent"
	case FeatureSnapshot:
		return "Snapshot"
	}

	// combined flags
	flags := f.Split()
	if len(flags) <= 1 {
		return "Unknown"
	}
	names := make([]string, len(flags))
	for i, flag := range flags {
		names[i] = flag.String()
	}
	return strings.Join(names, "|")
}

// Split returns the single flags contained in f, lowest bit first.
func (f Feature) Split() []Feature {
	var flags []Feature
	for bit := Feature(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit != 0 {
			flags = append(flags, bit)
		}
	}
	return flags
}

// Row is one entry of the key-value table.
type Row struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	RowCount          int            `json:"row_count"`
	DbType            Implementation `json:"db_type"`
	Table             string         `json:"table"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Table Interface
// --------------------------------------------------------------------------

// Table is the contract every storage engine offers to the store layer.
// It models a single two-column table (key text primary key, value json).
// Values are opaque JSON documents, engines never look inside them.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type Table interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Upsert inserts or replaces every row in one request.
	// An existing row with the same key is overwritten, there is never more than one row per key.
	// If FeatureAtomicBatch is supported, either all rows are written or none.
	Upsert(ctx context.Context, rows []Row) (err error)

	// Delete removes the rows for all given keys in one request.
	// Keys without a row are ignored.
	Delete(ctx context.Context, keys []string) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Select returns the value for an exact key.
	// The boolean return value indicates whether a row for the key was found.
	Select(ctx context.Context, key string) (value json.RawMessage, found bool, err error)

	// SelectIn returns the rows for all given keys that exist.
	// The order of the result is unspecified and missing keys are simply absent.
	SelectIn(ctx context.Context, keys []string) (rows []Row, err error)

	// SelectPrefix returns every row whose key starts with prefix.
	// The empty prefix matches all rows. The order of the result is unspecified.
	SelectPrefix(ctx context.Context, prefix string) (rows []Row, err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the table implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the table.
	GetInfo() (info DatabaseInfo)

	// Close releases all resources held by the table.
	Close() (err error)
}

// ErrClosed is returned by every operation on a table after Close was called.
var ErrClosed = errors.New("table is closed")
