// Package pools provides size-classed byte-slice pooling used to cut GC
// pressure on the two hot allocation paths in the storage engine: the
// per-connection read buffer (pkg/server) and SST payload construction
// (pkg/lsm).
package pools
