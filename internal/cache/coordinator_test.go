package cache

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type artifact struct {
	Value string `json:"value"`
}

func TestStageOrderAndCascade(t *testing.T) {
	cascade, err := DownstreamOf(StageIndexed)
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageIndexed, StageReviewed, StageScored, StageAssessed}, cascade)

	cascade, err = DownstreamOf(StageUploaded)
	require.NoError(t, err)
	assert.Len(t, cascade, 6)

	_, err = DownstreamOf(Stage("frobnicated"))
	assert.Error(t, err)
}

func TestPathIncludesModelSuffix(t *testing.T) {
	c := NewCoordinator("/tmp/cache")
	assert.Equal(t, "/tmp/cache/fp1/normalized.json", c.Path("fp1", StageNormalized, ""))
	assert.Equal(t, "/tmp/cache/fp1/reviewed-openai-gpt-4o.json", c.Path("fp1", StageReviewed, "openai:gpt-4o"))
}

func TestPutGetRoundTrip(t *testing.T) {
	c := NewCoordinator(t.TempDir())

	var out artifact
	found, err := c.Get("fp1", StageNormalized, "", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Put("fp1", StageNormalized, "", artifact{Value: "hello"}))
	found, err = c.Get("fp1", StageNormalized, "", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", out.Value)
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := NewCoordinator(t.TempDir())
	var computes int32
	compute := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&computes, 1)
		return artifact{Value: "computed"}, nil
	}

	first, hit, err := c.GetOrCompute(context.Background(), "fp1", StageReviewed, "m1", compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := c.GetOrCompute(context.Background(), "fp1", StageReviewed, "m1", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))

	var out artifact
	require.NoError(t, json.Unmarshal(second, &out))
	assert.Equal(t, "computed", out.Value)
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	c := NewCoordinator(t.TempDir())
	var computes int32
	compute := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&computes, 1)
		time.Sleep(50 * time.Millisecond)
		return artifact{Value: "slow"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), "fp1", StageScored, "m1", compute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))
}

func TestGetOrComputeDistinctModelsDoNotCollide(t *testing.T) {
	c := NewCoordinator(t.TempDir())
	mk := func(v string) func(ctx context.Context) (any, error) {
		return func(ctx context.Context) (any, error) { return artifact{Value: v}, nil }
	}
	a, _, err := c.GetOrCompute(context.Background(), "fp1", StageReviewed, "m1", mk("one"))
	require.NoError(t, err)
	b, _, err := c.GetOrCompute(context.Background(), "fp1", StageReviewed, "m2", mk("two"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestInvalidateCascadesDownstreamOnly(t *testing.T) {
	c := NewCoordinator(t.TempDir())
	require.NoError(t, c.Put("fp1", StageNormalized, "", artifact{Value: "n"}))
	require.NoError(t, c.Put("fp1", StageIndexed, "", artifact{Value: "i"}))
	require.NoError(t, c.Put("fp1", StageReviewed, "openai:gpt", artifact{Value: "r"}))
	require.NoError(t, c.Put("fp1", StageScored, "openai:gpt", artifact{Value: "s"}))
	require.NoError(t, c.Put("fp2", StageReviewed, "openai:gpt", artifact{Value: "other"}))

	cascade, err := c.Invalidate("fp1", StageIndexed)
	require.NoError(t, err)
	assert.Len(t, cascade, 4)

	var out artifact
	found, err := c.Get("fp1", StageNormalized, "", &out)
	require.NoError(t, err)
	assert.True(t, found, "upstream artifact must survive")

	for _, tc := range []struct {
		stage Stage
		model string
	}{
		{StageIndexed, ""},
		{StageReviewed, "openai:gpt"},
		{StageScored, "openai:gpt"},
	} {
		found, err := c.Get("fp1", tc.stage, tc.model, &out)
		require.NoError(t, err)
		assert.False(t, found, "stage %s must be invalidated", tc.stage)
	}

	found, err = c.Get("fp2", StageReviewed, "openai:gpt", &out)
	require.NoError(t, err)
	assert.True(t, found, "other papers must be untouched")
}

func TestListReturnsAllModelVariants(t *testing.T) {
	c := NewCoordinator(t.TempDir())
	require.NoError(t, c.Put("fp1", StageReviewed, "m1", artifact{Value: "one"}))
	require.NoError(t, c.Put("fp1", StageReviewed, "m2", artifact{Value: "two"}))
	require.NoError(t, c.Put("fp1", StageScored, "m1", artifact{Value: "score"}))

	payloads, err := c.List("fp1", StageReviewed)
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	var out artifact
	require.NoError(t, json.Unmarshal(payloads[0], &out))
	assert.Equal(t, "one", out.Value)

	payloads, err = c.List("missing", StageReviewed)
	require.NoError(t, err)
	assert.Empty(t, payloads)
}

func TestInvalidateMissingPaperIsNoop(t *testing.T) {
	c := NewCoordinator(t.TempDir())
	cascade, err := c.Invalidate("nope", StageUploaded)
	require.NoError(t, err)
	assert.Len(t, cascade, 6)
}

func TestInvalidateLeavesNonStageFiles(t *testing.T) {
	dir := t.TempDir()
	c := NewCoordinator(dir)
	require.NoError(t, c.Put("fp1", StageReviewed, "", artifact{Value: "r"}))
	require.NoError(t, os.WriteFile(dir+"/fp1/notes.txt", []byte("keep"), 0o644))

	_, err := c.Invalidate("fp1", StageUploaded)
	require.NoError(t, err)
	_, err = os.Stat(dir + "/fp1/notes.txt")
	assert.NoError(t, err)
}
