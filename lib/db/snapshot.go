package db

import "io"

// Snapshotter is implemented by tables that can dump their full content to a
// stream and restore it again (FeatureSnapshot). It is used by in-memory
// tables to survive restarts.
type Snapshotter interface {
	// Save writes all rows to w.
	Save(w io.Writer) (err error)
	// Load replaces the content of the table with the rows read from r.
	Load(r io.Reader) (err error)
}
