// Package flat provides an exact vector index persisted as a single
// zstd-compressed file per knowledge domain.
//
// Vectors are stored under caller-supplied int64 ids, which the ingestion
// pipeline sets equal to chunk ids. Searches scan every vector, so results
// are exact for both squared-L2 and inner-product metrics.
package flat
