// Package storage defines the pluggable storage driver interface.
//
// A storage is addressed by a URL such as
//
//	json:///data/inst.json?mode=r#46a67765-3d8b-5764-9583-3aec59a17983
//
// whose scheme selects a Driver from a Registry. Drivers exchange entity
// documents as ordered ir values; they know nothing about metadata or
// instances. Options common to all drivers (mode, arrays, single, compact,
// id) are parsed here, driver-specific keys are validated by each driver.
//
// File-based drivers share DocSet and FileHandle, which implement the
// single-entity and multi-entity document layouts and atomic rewrites.
package storage
