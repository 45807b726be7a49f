// Package featurecache stores extracted feature vectors keyed by the content
// hash of the rendered audio that produced them.
//
// Layout on disk: <cacheDir>/features/<first 2 hex>/<16 hex>.json, one JSON
// entry per distinct content hash. A bounded in-process map (insertion-order
// eviction) fronts the disk tier. Entries older than the TTL are treated as
// misses in both tiers and reclaimed by Sweep.
//
// Cache failures never propagate to callers: hashing or I/O problems degrade
// to a miss so classification throughput is preserved.
package featurecache
