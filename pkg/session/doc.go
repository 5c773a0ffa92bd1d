/*
Package session implements simulation session management.

It maps session IDs to live engine instances, serializes access per session,
persists snapshots through a SnapshotStore after every state change, and can
coordinate across replicas with an optional distributed locker.
*/
package session
