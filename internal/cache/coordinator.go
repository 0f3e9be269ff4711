package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"reviewflow/internal/util"

	"golang.org/x/sync/singleflight"
)

// Coordinator stores stage artifacts as content-addressed JSON files under
// root/<fingerprint>/<stage>[-<model>].json. The fingerprint addresses the
// normalized content, so re-uploading identical bytes lands on the same
// artifacts.
//
// Human feedback is not a stage artifact and never lives under root;
// invalidation can therefore never touch it.
type Coordinator struct {
	root  string
	group singleflight.Group
}

func NewCoordinator(root string) *Coordinator {
	return &Coordinator{root: root}
}

// Path returns the artifact location for one (fingerprint, stage, model)
// triple. Model is empty for stages that are not model-specific. Fingerprints
// arrive from URL paths, so the join strips any directory components.
func (c *Coordinator) Path(fingerprint string, stage Stage, model string) string {
	name := string(stage)
	if model != "" {
		name += "-" + sanitizeModelID(model)
	}
	return filepath.Join(util.SafeJoin(c.root, fingerprint), name+".json")
}

// Get reads a cached artifact into out. A missing artifact is not an error;
// it reports found=false.
func (c *Coordinator) Get(fingerprint string, stage Stage, model string, out any) (bool, error) {
	b, err := os.ReadFile(c.Path(fingerprint, stage, model))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache artifact: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode cache artifact: %w", err)
	}
	return true, nil
}

// Put writes a stage artifact atomically, replacing any previous version.
func (c *Coordinator) Put(fingerprint string, stage Stage, model string, v any) error {
	if err := util.WriteJSONAtomic(c.Path(fingerprint, stage, model), v); err != nil {
		return fmt.Errorf("write cache artifact: %w", err)
	}
	return nil
}

// GetOrCompute returns the cached artifact bytes, computing and storing them
// on a miss. Concurrent callers for the same (fingerprint, stage, model)
// share one in-flight compute; duplicates wait and receive its result.
// hit reports whether the leading call was served from disk.
func (c *Coordinator) GetOrCompute(ctx context.Context, fingerprint string, stage Stage, model string, compute func(ctx context.Context) (any, error)) (data []byte, hit bool, err error) {
	type flightResult struct {
		data []byte
		hit  bool
	}
	key := fingerprint + "|" + string(stage) + "|" + model
	v, err, _ := c.group.Do(key, func() (any, error) {
		path := c.Path(fingerprint, stage, model)
		if b, readErr := os.ReadFile(path); readErr == nil {
			return flightResult{data: b, hit: true}, nil
		} else if !errors.Is(readErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("read cache artifact: %w", readErr)
		}

		val, computeErr := compute(ctx)
		if computeErr != nil {
			return nil, computeErr
		}
		if writeErr := util.WriteJSONAtomic(path, val); writeErr != nil {
			return nil, fmt.Errorf("write cache artifact: %w", writeErr)
		}
		b, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read back cache artifact: %w", readErr)
		}
		return flightResult{data: b, hit: false}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(flightResult)
	return res.data, res.hit, nil
}

// List returns the raw payload of every artifact for one stage of a paper,
// model-suffixed variants included, in file-name order.
func (c *Coordinator) List(fingerprint string, stage Stage) ([][]byte, error) {
	dir := util.SafeJoin(c.root, fingerprint)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	out := make([][]byte, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !stageFileMatches(e.Name(), []Stage{stage}) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read cache artifact %s: %w", e.Name(), err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Invalidate removes the artifacts of from and every downstream stage,
// including model-suffixed variants, and returns the cascaded stages.
// Upstream artifacts and the feedback log are untouched.
func (c *Coordinator) Invalidate(fingerprint string, from Stage) ([]Stage, error) {
	cascade, err := DownstreamOf(from)
	if err != nil {
		return nil, err
	}
	dir := util.SafeJoin(c.root, fingerprint)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return cascade, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !stageFileMatches(e.Name(), cascade) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return nil, fmt.Errorf("remove cache artifact %s: %w", e.Name(), err)
		}
	}
	log.Printf("[cache] invalidated fingerprint=%s from=%s stages=%d", fingerprint, from, len(cascade))
	return cascade, nil
}

// stageFileMatches reports whether a cache file name belongs to one of the
// given stages, with or without a model suffix.
func stageFileMatches(name string, stages []Stage) bool {
	base := strings.TrimSuffix(name, ".json")
	if base == name {
		return false
	}
	for _, s := range stages {
		if base == string(s) || strings.HasPrefix(base, string(s)+"-") {
			return true
		}
	}
	return false
}

func sanitizeModelID(model string) string {
	r := strings.NewReplacer(":", "-", "/", "-", "|", "-", " ", "-")
	return r.Replace(model)
}
