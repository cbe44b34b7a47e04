// Package dataset generates the toy e-commerce order sample and handles CSV
// import/export for the upload path.
//
// The generated data is deliberately imperfect: a configurable share of
// records carries malformed emails or negative prices so the transform
// stage's quality checks have real work to do. All data lives in memory for
// the duration of the session and is never persisted.
package dataset
