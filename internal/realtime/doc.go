// Package realtime implements the connection registry and the fan-out
// dispatcher behind the real-time notification channel.
//
// # Registry
//
// The Registry maps a user ID to the set of transport sessions that user
// currently has open (one per browser tab / device). It owns the sessions
// it holds: once registered, only the registry path closes them. Reads
// return copy-on-read snapshots so fan-out can iterate while connects and
// disconnects race.
//
// # Dispatcher
//
// The Dispatcher resolves an audience (one user, a school, a clan, or
// everyone connected) to user IDs and pushes one encoded message to every
// live session. Delivery is best-effort and at-most-once:
//
//   - a failed push evicts that session and is logged, never returned;
//   - a failed audience resolution aborts the send and IS returned;
//   - a target with no sessions is a successful zero-delivery send.
//
// Producers must never fail their own request because a notification
// could not be delivered.
package realtime
