// Package dag keeps the file-level dependency graph behind a generated build
// description. Vertices are absolute file paths (or named targets) and an
// edge from A to B records that producing B consumes A.
//
// The graph is populated as build edges are emitted and is used to reject
// self-referential edges and to detect cycles before anything is written.
// It is not safe for concurrent use; graph generation is single-threaded.
package dag
