// Package store is the client's Local Store: a durable SQLite database holding
// the records of every configured collection.
//
// # Data Model
//
// All collections share one table keyed by (collection, id) with a secondary
// index on (collection, synced), so the unsynced records of a collection are
// read without a full scan. Field values are kept as a JSON object.
//
// # Stamping
//
// Add and Update always set synced=false, refresh updated_at and bump the
// record revision. Callers cannot opt out. The only write that sets
// synced=true is MarkSynced, which applies to one revision only: if the record
// changed after it was read for submission, the acknowledgement is dropped.
//
// # Concurrency
//
// SQLiteStore is safe for concurrent use. It pins the pool to a single
// connection so that writers from the REPL and the sync engine serialize
// instead of failing with SQLITE_BUSY.
//
// Typical Usage
//
//	st, _ := store.Open(ctx, "tally.db", collections)
//	defer st.Close()
//	rec, _ := st.Add(ctx, "clients", &models.Record{ID: id, Fields: f})
//	pending, _ := st.GetUnsynced(ctx, "clients")
//	ok, _ := st.MarkSynced(ctx, "clients", rec.ID, rec.Revision)
package store
