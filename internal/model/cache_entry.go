package model

// CacheEntry is one stored route result. Coordinates and results hold the
// canonical JSON text of what the client sent.
type CacheEntry struct {
	ID                int64  `db:"id"`
	SourceCoordinates string `db:"source_coordinates"`
	DestCoordinates   string `db:"dest_coordinates"`
	AlgResults        string `db:"alg_results"`
	Ctime             int64  `db:"ctime"`
}
