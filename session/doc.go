// Package session implements request-scoped session state on top of a
// pluggable persistence Handler.
//
// A Session exposes typed attribute access and delegates its lifecycle to
// a Storage. Storage starts lazily on first access, reads and decodes the
// record for the session id and binds every registered Bag to its slice of
// the shared data. Attributes, flash messages and metadata each live in
// their own bag but are persisted together as a single record.
//
// Usage:
//
//	proxy := session.NewHandlerProxy(memstore.New())
//	storage := session.NewStorage(proxy)
//	sess := session.New(storage)
//
//	_ = sess.SetID(idFromCookie)
//	sess.Set("user_id", 42)
//
//	if err := sess.Save(); err != nil {
//		// handle error
//	}
//
// Save must be called explicitly before the response is finalized. The
// httpstate Manager does so for every request it handles.
package session
