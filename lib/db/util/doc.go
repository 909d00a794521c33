// Package util contains small helpers shared by the table engines: a seeded
// string hash used for sharding and the statistics the engines report through
// db.DatabaseInfo (value size histogram and shard distribution quality).
package util
