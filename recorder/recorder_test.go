package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/maternal-rl/types"
)

func episode(runID string, run, ep int) *types.EpisodeRecord {
	return &types.EpisodeRecord{
		RunID:      runID,
		Experiment: "threshold",
		Run:        run,
		Episode:    ep,
		Steps: []types.StepRecord{
			{Step: 0, State: "critical|a2|b0", Action: "escalate", Reward: 10},
			{Step: 1, State: "normal|a0|b0", Action: "monitor", Reward: 2, Done: true},
		},
		TotalReward: 12,
		Terminated:  true,
	}
}

func TestFileRecorderAppendsLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "traces")
	rec, err := NewFileRecorder(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, rec.Record(ctx, episode("r", 0, 0)))
	require.NoError(t, rec.Record(ctx, episode("r", 0, 1)))
	require.NoError(t, rec.Record(ctx, episode("r", 1, 0)))
	require.NoError(t, rec.Close())

	f, err := os.Open(rec.Path("threshold", 0))
	require.NoError(t, err)
	defer f.Close()

	episodes := make([]*types.EpisodeRecord, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		e := &types.EpisodeRecord{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), e))
		episodes = append(episodes, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, episodes, 2)
	assert.Equal(t, 1, episodes[1].Episode)
	assert.Equal(t, 12.0, episodes[0].TotalReward)
	assert.Equal(t, "escalate", episodes[0].Steps[0].Action)

	assert.FileExists(t, rec.Path("threshold", 1))
}

func TestFileRecorderHonoursContext(t *testing.T) {
	rec, err := NewFileRecorder(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rec.Record(ctx, episode("r", 0, 0)), context.Canceled)
}

type failingRecorder struct {
	records int
}

var errRecord = errors.New("record failed")

func (f *failingRecorder) Record(_ context.Context, _ *types.EpisodeRecord) error {
	f.records += 1
	return errRecord
}

func (f *failingRecorder) Close() error { return errRecord }

func TestMultiReachesEveryRecorder(t *testing.T) {
	first, second := &failingRecorder{}, &failingRecorder{}
	m := Multi{first, second}

	err := m.Record(context.Background(), episode("r", 0, 0))
	assert.ErrorIs(t, err, errRecord)
	assert.Equal(t, 1, first.records)
	assert.Equal(t, 1, second.records)
	assert.ErrorIs(t, m.Close(), errRecord)

	assert.NoError(t, Multi{}.Record(context.Background(), episode("r", 0, 0)))
	assert.NoError(t, Multi{}.Close())
}

func TestRedisRecorderTrimsToMaxLen(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()
	rec, err := NewRedisRecorder(ctx, RedisConfig{Addr: srv.Addr(), Key: "maternal:test", MaxLen: 2})
	require.NoError(t, err)
	defer rec.Close()

	runID := uuid.NewString()
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.Record(ctx, episode(runID, 0, i)))
	}
	stored, err := srv.List(rec.Key(runID))
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	episodes, err := rec.Episodes(ctx, runID)
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, 1, episodes[0].Episode)
	assert.Equal(t, 2, episodes[1].Episode)
	assert.Equal(t, runID, episodes[0].RunID)
}

func TestRedisRecorderKeepsEverythingWithoutMaxLen(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()
	rec, err := NewRedisRecorder(ctx, RedisConfig{Addr: srv.Addr()})
	require.NoError(t, err)
	defer rec.Close()

	assert.Equal(t, "maternal:episodes:run", rec.Key("run"))
	for i := 0; i < 5; i++ {
		require.NoError(t, rec.Record(ctx, episode("run", 0, i)))
	}
	episodes, err := rec.Episodes(ctx, "run")
	require.NoError(t, err)
	assert.Len(t, episodes, 5)

	empty, err := rec.Episodes(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisRecorderRejectsCorruptEntries(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()
	rec, err := NewRedisRecorder(ctx, RedisConfig{Addr: srv.Addr(), Key: "k"})
	require.NoError(t, err)
	defer rec.Close()

	_, err = srv.Push(rec.Key("run"), "not json")
	require.NoError(t, err)
	_, err = rec.Episodes(ctx, "run")
	assert.Error(t, err)
}

func TestRedisRecorderUnreachable(t *testing.T) {
	_, err := NewRedisRecorder(context.Background(), RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	assert.Error(t, err)
}
