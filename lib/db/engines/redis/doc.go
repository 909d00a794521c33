// Package redis provides a db.Table stored in a single redis hash.
//
// The hash is named after the table, every field is a row key and its value
// the JSON document. Prefix scans use HSCAN with a MATCH pattern in which glob
// metacharacters of the prefix are escaped, followed by an exact prefix check.
package redis
