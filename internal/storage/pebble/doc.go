// Package pebblestore wraps the node's Pebble database with an fsync policy,
// batched commits, range deletes and a metrics hook. Loglets of the local
// provider and the metadata backend share one DB and partition it by key
// prefix.
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data/pebble",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(ctx, b)
//	b.Close()
package pebblestore
