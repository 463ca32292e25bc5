// Package mapping converts records between the three shapes they take:
//
//   - the domain shape (models.Entity, models.Attachment) used by services;
//   - the local shape (EntityRow, AttachmentRow) stored in SQLite, where
//     booleans are 0/1 integers, structured fields are JSON text and
//     timestamps are unix milliseconds;
//   - the remote shape (RemoteRecord) sent to the replica, where booleans,
//     arrays and objects are native values and timestamps are RFC 3339.
//
// The local pair is ToLocalFormat / FromLocalFormat, the remote pair is
// ToRemoteFormat / FromRemoteFormat. Neither store knows about the other's
// encoding. Local-only fields (sync state, priority, revision) never cross
// into the remote shape.
package mapping
