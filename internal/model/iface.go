package model

// TopKReader is the read-side query contract shared by the engine,
// the HTTP API, the socket RPC server and its client.
type TopKReader interface {
	TopK(k int) (Snapshot, error)
	Stats() (Stats, error)
}
