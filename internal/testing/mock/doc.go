// Package mock provides in-memory implementations of the domain repositories
// for tests.
//
// ClusterRepository records every update, restart, snapshot and restore it
// receives, and can be told to fail reads of a group or updates of a
// resource. ImageRepository serves fixed tags and digests. EventRepository
// collects the events it is given.
package mock
