package cache

import "fmt"

// Stage is one step of the per-paper pipeline. Stages form a strict order;
// invalidating a stage invalidates everything after it.
type Stage string

const (
	StageUploaded   Stage = "uploaded"
	StageNormalized Stage = "normalized"
	StageIndexed    Stage = "indexed"
	StageReviewed   Stage = "reviewed"
	StageScored     Stage = "scored"
	StageAssessed   Stage = "assessed"
)

// StageOrder lists the pipeline stages from first to last.
var StageOrder = []Stage{
	StageUploaded,
	StageNormalized,
	StageIndexed,
	StageReviewed,
	StageScored,
	StageAssessed,
}

// Index returns the position of s in the pipeline, or -1 when s is not a
// known stage.
func (s Stage) Index() int {
	for i, st := range StageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// DownstreamOf returns from and every later stage, the invalidation cascade
// set for from.
func DownstreamOf(from Stage) ([]Stage, error) {
	i := from.Index()
	if i < 0 {
		return nil, fmt.Errorf("unknown stage %q", from)
	}
	out := make([]Stage, len(StageOrder)-i)
	copy(out, StageOrder[i:])
	return out, nil
}
