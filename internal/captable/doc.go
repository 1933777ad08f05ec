// Package captable holds the authoritative record of which process holds
// which capability.
//
// Entries are immutable. Every mutation builds a new Entry and replaces the
// old one, so a *Entry handed out by Get stays valid and unchanged forever.
// The table itself is not safe for concurrent use; the broker is its only
// mutator and serializes every access.
package captable
