package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDB implements database.Querier for testing.
type mockDB struct {
	mu    sync.Mutex
	count int
}

func (m *mockDB) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return nil
}

func (m *mockDB) insertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func TestAsyncLogger_FlushesOnInterval(t *testing.T) {
	db := &mockDB{}
	cfg := LoggerConfig{
		BufferSize:    100,
		BatchSize:     10,
		FlushInterval: 50 * time.Millisecond,
	}

	logger := NewAsyncLogger(db, NewStore(), cfg)

	logger.Log(context.Background(), Event{
		TipID:  "a1b2c3d4e5f6",
		Actor:  "dana",
		Action: ActionTipApproved,
		Source: SourceAPI,
	})

	// Wait for flush interval
	time.Sleep(150 * time.Millisecond)

	require.NoError(t, logger.Close())
	assert.GreaterOrEqual(t, db.insertCount(), 1)
}

func TestAsyncLogger_FlushesOnBatchSize(t *testing.T) {
	db := &mockDB{}
	cfg := LoggerConfig{
		BufferSize:    100,
		BatchSize:     3,
		FlushInterval: 10 * time.Second,
	}

	logger := NewAsyncLogger(db, NewStore(), cfg)

	for i := 0; i < 3; i++ {
		logger.Log(context.Background(), Event{Action: ActionTipAutoRejected})
	}

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, logger.Close())
	assert.GreaterOrEqual(t, db.insertCount(), 1)
}

// blockingDB parks every Exec until release is closed.
type blockingDB struct {
	mockDB
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.mockDB.Exec(ctx, sql, args...)
}

func TestAsyncLogger_DropsWhenBufferFull(t *testing.T) {
	db := &blockingDB{entered: make(chan struct{}), release: make(chan struct{})}
	cfg := LoggerConfig{
		BufferSize:    2,
		BatchSize:     1,
		FlushInterval: 10 * time.Second,
	}

	logger := NewAsyncLogger(db, NewStore(), cfg)

	// The first event occupies the worker inside a blocked flush.
	logger.Log(context.Background(), Event{Action: ActionTipIngested})
	<-db.entered

	for i := 0; i < 9; i++ {
		logger.Log(context.Background(), Event{Action: ActionTipIngested})
	}
	assert.Equal(t, int64(7), logger.Dropped())

	close(db.release)
	require.NoError(t, logger.Close())
	assert.GreaterOrEqual(t, db.insertCount(), 2)
}

func TestAsyncLogger_CloseIsIdempotentAndStopsIntake(t *testing.T) {
	db := &mockDB{}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{FlushInterval: time.Hour})

	logger.Log(context.Background(), Event{Action: ActionTipRemoved})
	require.NoError(t, logger.Close())
	assert.Equal(t, 1, db.insertCount(), "close flushes pending events")

	logger.Log(context.Background(), Event{Action: ActionTipRemoved})
	require.NoError(t, logger.Close())
	assert.Equal(t, 1, db.insertCount())
}

func TestAsyncLogger_DefaultsActorAndSource(t *testing.T) {
	db := &recordingDB{}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{FlushInterval: time.Hour})

	logger.Log(context.Background(), Event{TipID: "abc", Action: ActionTipIngested})
	require.NoError(t, logger.Close())

	args := db.lastArgs()
	require.Len(t, args, 5)
	assert.Equal(t, ActorSystem, args[1])
	assert.Equal(t, SourceSystem, args[4])
}

// recordingDB keeps the arguments of the last Exec.
type recordingDB struct {
	mockDB
	args []any
}

func (r *recordingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.mu.Lock()
	r.args = args
	r.mu.Unlock()
	return r.mockDB.Exec(ctx, sql, args...)
}

func (r *recordingDB) lastArgs() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.args
}
