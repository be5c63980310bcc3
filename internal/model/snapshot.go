package model

// Snapshot is the full shared state a client pulls. Clients treat it as
// authoritative and replace their local copy with it.
type Snapshot struct {
	Members []Member `json:"members"`
	Tasks   []Task   `json:"tasks"`
}

// SnapshotPatch is a client-proposed partial update. A nil collection means
// "untouched"; a present collection is merged last-write-wins at collection
// granularity by the ledger store.
type SnapshotPatch struct {
	Members *[]Member `json:"members"`
	Tasks   *[]Task   `json:"tasks"`
}
