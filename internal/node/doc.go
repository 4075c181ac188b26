// Package node wires a single Bifrost node: the Pebble store, the metadata
// store persisted in it, the memory and local loglet factories, the
// provider and the bifrost handle. It also tracks the node status served
// to health tooling (unknown, alive, starting_up, shutting_down).
//
// Example:
//
//	n, err := node.Open(ctx, node.Options{Config: config.Default(), DataDir: "./data"})
//	if err != nil {
//	    return err
//	}
//	defer n.Close()
//	n.Start()
//	lsn, _ := n.Bifrost().Append(ctx, 0, envelope.Envelope{Payload: []byte("hello")})
package node
