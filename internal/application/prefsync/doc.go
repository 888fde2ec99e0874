// Package prefsync propagates preference changes from settings surfaces to
// every consumer of one user's preferences.
//
// A Store owns the canonical snapshot for one user. Writes are serialized,
// filtered by the protection policy, cached, handed to the Coalescer for
// debounced durable storage and broadcast in commit order by the Dispatcher.
// Subscribers applying automatic or externally-synced updates run under a
// Guard, which turns any write they attempt into a rejected no-op. This is what
// stops an update from echoing back into the store forever.
package prefsync
