package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"atbat/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

func newTestPostgresStore(db DBTX) *PostgresStore {
	p := NewPostgresStoreWithDB(db, time.Hour)
	p.now = func() time.Time { return t0 }
	return p
}

func TestPostgresStore_Create(t *testing.T) {
	db := new(mockDBTX)
	store := newTestPostgresStore(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 11 && args[0] == "sess-1" && args[2] == "unknown" && args[10] == t0.Add(time.Hour)
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	s := New("sess-1", t0)
	require.NoError(t, store.Create(context.Background(), s))
	assert.Equal(t, int64(1), s.Version)
	db.AssertExpectations(t)
}

func TestPostgresStore_Create_Duplicate(t *testing.T) {
	db := new(mockDBTX)
	store := newTestPostgresStore(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	assert.ErrorIs(t, store.Create(context.Background(), New("sess-1", t0)), ErrExists)
}

func TestPostgresStore_Create_NoExpiry(t *testing.T) {
	db := new(mockDBTX)
	store := NewPostgresStoreWithDB(db, 0)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 11 && args[10] == nil
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, store.Create(context.Background(), New("sess-1", t0)))
	db.AssertExpectations(t)
}

func TestPostgresStore_Get(t *testing.T) {
	db := new(mockDBTX)
	store := newTestPostgresStore(db)
	ctx := context.Background()

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "sess-1"                                                            // id
			*dest[1].(*int) = 4                                                                      // scenario_index
			*dest[2].(*string) = "hit"                                                               // outcome
			*dest[3].(*float64) = 0.8                                                                // confidence
			*dest[4].(*[]byte) = []byte(`{"launch_speed":110,"launch_angle":25,"bearing":"Center"}`) // last_swing
			*dest[5].(*int) = 3                                                                      // swings
			*dest[6].(*int) = 1                                                                      // home_runs
			*dest[7].(*int) = 5                                                                      // at_bats
			*dest[8].(*int64) = 7                                                                    // version
			*dest[9].(*time.Time) = t0                                                               // created_at
			*dest[10].(*time.Time) = t0.Add(time.Minute)                                             // updated_at
			return nil
		},
	}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"sess-1", t0}).Return(row)

	s, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 4, s.ScenarioIndex)
	assert.Equal(t, types.OutcomeHit, s.Outcome)
	assert.Equal(t, StateResolvedHit, s.State())
	assert.Equal(t, int64(7), s.Version)
	require.NotNil(t, s.LastSwing)
	assert.Equal(t, centerSwing, *s.LastSwing)
	db.AssertExpectations(t)
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	db := new(mockDBTX)
	store := newTestPostgresStore(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_Get_DBError(t *testing.T) {
	db := new(mockDBTX)
	store := newTestPostgresStore(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	_, err := store.Get(context.Background(), "sess-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_Update(t *testing.T) {
	db := new(mockDBTX)
	store := newTestPostgresStore(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 12 && args[0] == "sess-1" && args[1] == int64(3)
	})).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	s := New("sess-1", t0)
	s.Version = 3
	require.NoError(t, store.Update(context.Background(), s))
	assert.Equal(t, int64(4), s.Version)
	db.AssertExpectations(t)
}

func TestPostgresStore_Update_Conflict(t *testing.T) {
	db := new(mockDBTX)
	store := newTestPostgresStore(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*string) = "sess-1"
			*dest[2].(*string) = "unknown"
			*dest[8].(*int64) = 9
			return nil
		}})

	s := New("sess-1", t0)
	s.Version = 3
	assert.ErrorIs(t, store.Update(context.Background(), s), ErrVersionConflict)
	assert.Equal(t, int64(3), s.Version)
}

func TestPostgresStore_Update_NotFound(t *testing.T) {
	db := new(mockDBTX)
	store := newTestPostgresStore(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	s := New("sess-1", t0)
	assert.ErrorIs(t, store.Update(context.Background(), s), ErrNotFound)
}

func TestPostgresStore_Delete(t *testing.T) {
	db := new(mockDBTX)
	store := newTestPostgresStore(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"sess-1"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil).Once()
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"sess-1"}).
		Return(pgconn.NewCommandTag("DELETE 0"), nil).Once()

	require.NoError(t, store.Delete(context.Background(), "sess-1"))
	assert.ErrorIs(t, store.Delete(context.Background(), "sess-1"), ErrNotFound)
}

func TestPostgresStore_PurgeExpired(t *testing.T) {
	db := new(mockDBTX)
	store := newTestPostgresStore(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{t0}).
		Return(pgconn.NewCommandTag("DELETE 12"), nil)

	n, err := store.PurgeExpired(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestPostgresStore_PingWithoutPool(t *testing.T) {
	store := newTestPostgresStore(new(mockDBTX))
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())
}
