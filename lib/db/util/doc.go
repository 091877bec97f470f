// Package util provides utility components for the keyspace engine.
//
// The package contains:
//   - functions: Seed generation and the seeded FNV-1a hasher used by the table maps
//   - statistics: Summary statistics and a SizeHistogram for tracking entry size distribution
package util
