// Package s3 provides a db.Table stored in an S3 (or S3 compatible) bucket.
//
// Every row is one object named "<table>/<key>" holding the JSON document.
// Prefix scans list the objects below "<table>/<prefix>" and fetch them in
// parallel. S3 offers no transactions, so multi row writes are not atomic and
// the table does not report db.FeatureAtomicBatch.
package s3
