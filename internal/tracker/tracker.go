package tracker

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Default tracking parameters.
const (
	// DefaultMaxDisappeared is the number of consecutive unmatched frames
	// after which a track is removed.
	DefaultMaxDisappeared = 30
	// DefaultMaxDistance is the maximum centroid distance in pixels for a
	// detection to be associated with an existing track.
	DefaultMaxDistance = 100
	// DefaultMinHits is the number of matches before a track is considered
	// valid.
	DefaultMinHits = 3
)

// Config holds configuration options for the tracker.
type Config struct {
	// MaxDisappeared is the max frames to keep an unmatched track alive.
	MaxDisappeared int
	// MaxDistance is the max centroid distance in pixels for matching.
	MaxDistance float64
	// MinHits is the min matches before a track is considered valid.
	MinHits int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxDisappeared: DefaultMaxDisappeared,
		MaxDistance:    DefaultMaxDistance,
		MinHits:        DefaultMinHits,
	}
}

// Store owns the set of live tracks and their identity counter. It is not
// safe for concurrent use; the frame processing loop is its single owner
// and readers must work from copies.
type Store struct {
	config Config
	nextID int
	tracks map[int]*Track
	// order holds live track IDs in insertion order so that iteration and
	// association are deterministic.
	order []int
}

// NewStore creates a new Store with the given configuration.
func NewStore(config Config) *Store {
	if config.MaxDisappeared <= 0 {
		config.MaxDisappeared = DefaultMaxDisappeared
	}
	if config.MaxDistance <= 0 {
		config.MaxDistance = DefaultMaxDistance
	}
	if config.MinHits <= 0 {
		config.MinHits = DefaultMinHits
	}

	return &Store{
		config: config,
		tracks: make(map[int]*Track),
	}
}

// Register creates a new track for an unmatched detection and returns its
// identity.
func (s *Store) Register(obs Observation, timestamp float64) int {
	t := &Track{
		ID:         s.nextID,
		Centroid:   obs.Centroid,
		BBox:       obs.BBox,
		Label:      obs.Label,
		Confidence: obs.Confidence,
		Positions:  []image.Point{obs.Centroid},
		Timestamps: []float64{timestamp},
		Hits:       1,
		IsValid:    s.config.MinHits <= 1,
	}

	s.tracks[t.ID] = t
	s.order = append(s.order, t.ID)
	s.nextID++

	return t.ID
}

// Deregister removes a track and returns it, or nil if the identity is
// unknown.
func (s *Store) Deregister(id int) *Track {
	t, ok := s.tracks[id]
	if !ok {
		return nil
	}

	delete(s.tracks, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return t
}

// Get returns the track with the given identity, or nil.
func (s *Store) Get(id int) *Track {
	return s.tracks[id]
}

// Len returns the number of live tracks.
func (s *Store) Len() int {
	return len(s.tracks)
}

// Tracks returns all live tracks in insertion order.
func (s *Store) Tracks() []*Track {
	out := make([]*Track, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tracks[id])
	}
	return out
}

// ValidTracks returns only the tracks that have accumulated enough matches
// to be trusted for output, in insertion order.
func (s *Store) ValidTracks() []*Track {
	out := make([]*Track, 0, len(s.order))
	for _, id := range s.order {
		if t := s.tracks[id]; t.IsValid {
			out = append(out, t)
		}
	}
	return out
}

// Update associates a frame's detections with the live tracks.
//
// Matching is greedy nearest-centroid: rows (tracks) are visited in order
// of their smallest pairwise distance, each taking its closest unused
// detection, with matches beyond MaxDistance rejected. This is cheaper than
// an optimal bipartite assignment and stable under small perturbations,
// but it can mis-assign when paths cross. That is a known limitation of
// the design, not something to fix here.
//
// Unmatched tracks accumulate a disappeared count and are removed once it
// exceeds MaxDisappeared. Unmatched detections are registered as new
// tracks.
func (s *Store) Update(observations []Observation, timestamp float64) {
	// No detections this frame: every track coasts, nothing is created.
	if len(observations) == 0 {
		for _, id := range append([]int(nil), s.order...) {
			s.markDisappeared(id)
		}
		return
	}

	// No existing tracks: every detection starts a new one.
	if len(s.tracks) == 0 {
		for _, obs := range observations {
			s.Register(obs, timestamp)
		}
		return
	}

	trackIDs := append([]int(nil), s.order...)

	// Pairwise Euclidean distances, tracks as rows and detections as
	// columns.
	d := mat.NewDense(len(trackIDs), len(observations), nil)
	for i, id := range trackIDs {
		c := s.tracks[id].Centroid
		for j, obs := range observations {
			d.Set(i, j, distance(c, obs.Centroid))
		}
	}

	// Order rows by their minimum distance ascending, then let each row
	// claim its closest column. Rows and columns are consumed at most
	// once per frame.
	rows := make([]int, len(trackIDs))
	rowMin := make([]float64, len(trackIDs))
	argMin := make([]int, len(trackIDs))
	for i := range rows {
		rows[i] = i
		rowMin[i], argMin[i] = rowMinimum(d, i)
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return rowMin[rows[a]] < rowMin[rows[b]]
	})

	usedRows := make(map[int]bool, len(rows))
	usedCols := make(map[int]bool, len(observations))

	for _, row := range rows {
		col := argMin[row]
		if usedRows[row] || usedCols[col] {
			continue
		}
		if d.At(row, col) > s.config.MaxDistance {
			continue
		}

		s.applyMatch(s.tracks[trackIDs[row]], observations[col], timestamp)
		usedRows[row] = true
		usedCols[col] = true
	}

	for row, id := range trackIDs {
		if !usedRows[row] {
			s.markDisappeared(id)
		}
	}

	for col, obs := range observations {
		if !usedCols[col] {
			s.Register(obs, timestamp)
		}
	}
}

// applyMatch updates a track with a matched detection.
func (s *Store) applyMatch(t *Track, obs Observation, timestamp float64) {
	t.Centroid = obs.Centroid
	t.BBox = obs.BBox
	t.Label = obs.Label
	t.Confidence = obs.Confidence
	t.appendPosition(obs.Centroid, timestamp)
	t.Hits++
	t.Disappeared = 0
	if t.Hits >= s.config.MinHits {
		t.IsValid = true
	}
}

// markDisappeared increments a track's disappeared count and removes the
// track once the ceiling is exceeded.
func (s *Store) markDisappeared(id int) {
	t := s.tracks[id]
	t.Disappeared++
	if t.Disappeared > s.config.MaxDisappeared {
		s.Deregister(id)
	}
}

// rowMinimum returns the smallest value in a matrix row and its column
// index.
func rowMinimum(d *mat.Dense, row int) (float64, int) {
	_, cols := d.Dims()
	minVal := math.Inf(1)
	minCol := 0
	for j := 0; j < cols; j++ {
		if v := d.At(row, j); v < minVal {
			minVal = v
			minCol = j
		}
	}
	return minVal, minCol
}

// distance returns the Euclidean distance between two points.
func distance(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
