// Package storage provides the persistent event-history log for the
// window-counter server.
//
// The presence registry itself is purely in-memory; this package only
// records connection, state, and routing events for later inspection.
// The primary implementation uses SQLite. The Store interface allows a
// MySQL backend to be selected through configuration while maintaining
// API compatibility.
//
// Usage:
//
//	store, err := storage.NewSQLiteStore("./events.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.RecordEvent(&storage.Event{Kind: "connected", ClientID: "c1"})
//	events, err := store.GetRecentEvents(50)
package storage
