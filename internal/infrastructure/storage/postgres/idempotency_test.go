package postgres

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
)

func TestIdempotencyCompressionRoundTrip(t *testing.T) {
	store, err := NewIdempotencyStore(nil, time.Hour)
	require.NoError(t, err)

	body := bytes.Repeat([]byte(`{"field":"value"}`), 2048)
	compressed := store.encoder.EncodeAll(body, nil)
	assert.Less(t, len(compressed), len(body))

	out, err := store.decompress(compressed, CompressionZstd)
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestDecompress_PassThrough(t *testing.T) {
	store, err := NewIdempotencyStore(nil, time.Hour)
	require.NoError(t, err)

	body := []byte(`{"ok":true}`)
	out, err := store.decompress(body, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, body, out)

	out, err = store.decompress(nil, CompressionZstd)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDecompress_CorruptPayload(t *testing.T) {
	store, err := NewIdempotencyStore(nil, time.Hour)
	require.NoError(t, err)

	_, err = store.decompress([]byte("definitely not zstd"), CompressionZstd)
	assert.Error(t, err)
}

func TestNormalizeReplay(t *testing.T) {
	assert.Equal(t, 200, normalizeReplayStatus(0))
	assert.Equal(t, 422, normalizeReplayStatus(422))
	assert.Equal(t, "application/json", normalizeReplayContentType(""))
	assert.Equal(t, "text/plain", normalizeReplayContentType("text/plain"))
}

// idemRow mirrors a sys_idempotency row for the fake querier below.
type idemRow struct {
	operation   string
	status      IdempotencyStatus
	requestHash string
	response    []byte
	algo        CompressionAlgo
	statusCode  int
	contentType string
	updatedAt   time.Time
	expiresAt   time.Time
}

// fakeIdemDB is a weak simulation of the sys_idempotency table. It dispatches
// on fragments of the SQL the store issues and keeps rows in a map keyed by
// tenant/key. The onSelect hook runs after a row snapshot is taken, which lets
// a test mutate state between the store's read and its follow-up write.
type fakeIdemDB struct {
	rows     map[string]*idemRow
	onSelect func()
}

func newFakeIdemDB() *fakeIdemDB {
	return &fakeIdemDB{rows: map[string]*idemRow{}}
}

func (f *fakeIdemDB) GetQuerier(ctx context.Context) Querier { return f }

func (f *fakeIdemDB) key(tenantID, key string) string { return tenantID + "/" + key }

func (f *fakeIdemDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO sys_idempotency"):
		k := f.key(args[0].(string), args[1].(string))
		if _, exists := f.rows[k]; exists {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		f.rows[k] = &idemRow{
			operation:   args[2].(string),
			status:      args[3].(IdempotencyStatus),
			requestHash: args[4].(string),
			algo:        args[5].(CompressionAlgo),
			updatedAt:   args[6].(time.Time),
			expiresAt:   args[7].(time.Time),
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "GREATEST"):
		// Stale-pending reclaim, conditioned on the observed updated_at.
		k := f.key(args[2].(string), args[3].(string))
		row, ok := f.rows[k]
		if !ok || row.status != args[4].(IdempotencyStatus) || !row.updatedAt.Equal(args[5].(time.Time)) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		row.updatedAt = args[0].(time.Time)
		if exp := args[1].(time.Time); exp.After(row.expiresAt) {
			row.expiresAt = exp
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "SET status"):
		k := f.key(args[6].(string), args[7].(string))
		row, ok := f.rows[k]
		if !ok {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		row.status = args[0].(IdempotencyStatus)
		row.response = args[1].([]byte)
		row.algo = args[2].(CompressionAlgo)
		row.statusCode = args[3].(int)
		row.contentType = args[4].(string)
		row.updatedAt = args[5].(time.Time)
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "DELETE FROM sys_idempotency") && strings.Contains(sql, "idempotency_key"):
		k := f.key(args[0].(string), args[1].(string))
		if row, ok := f.rows[k]; ok && row.status == args[2].(IdempotencyStatus) {
			delete(f.rows, k)
			return pgconn.NewCommandTag("DELETE 1"), nil
		}
		return pgconn.NewCommandTag("DELETE 0"), nil

	case strings.Contains(sql, "expires_at <"):
		cutoff := args[0].(time.Time)
		n := 0
		for k, row := range f.rows {
			if row.expiresAt.Before(cutoff) {
				delete(f.rows, k)
				n++
			}
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected exec: %s", sql)
}

func (f *fakeIdemDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unexpected query: %s", sql)
}

func (f *fakeIdemDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	row, ok := f.rows[f.key(args[0].(string), args[1].(string))]
	if !ok {
		return errRow{pgx.ErrNoRows}
	}
	snapshot := *row
	if f.onSelect != nil {
		f.onSelect()
	}
	return &idemScanRow{row: snapshot}
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

type idemScanRow struct{ row idemRow }

func (r *idemScanRow) Scan(dest ...any) error {
	*dest[0].(*string) = r.row.operation
	*dest[1].(*IdempotencyStatus) = r.row.status
	*dest[2].(*string) = r.row.requestHash
	*dest[3].(*[]byte) = r.row.response
	*dest[4].(*CompressionAlgo) = r.row.algo
	*dest[5].(*int) = r.row.statusCode
	*dest[6].(*string) = r.row.contentType
	*dest[7].(*time.Time) = r.row.updatedAt
	return nil
}

func newIdemFixture(t *testing.T) (*fakeIdemDB, *IdempotencyStore, tenant.Scope) {
	t.Helper()
	db := newFakeIdemDB()
	store, err := NewIdempotencyStore(db, time.Minute)
	require.NoError(t, err)
	return db, store, tenant.MustScope(id.New())
}

func TestAcquireKey_FirstClaimWins(t *testing.T) {
	db, store, scope := newIdemFixture(t)

	replay, err := store.AcquireKey(context.Background(), scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)
	assert.Nil(t, replay)

	row := db.rows[scope.TenantID().String()+"/key-1"]
	require.NotNil(t, row)
	assert.Equal(t, IdempotencyStatusPending, row.status)
	assert.Equal(t, "hash-a", row.requestHash)
}

func TestAcquireKey_PendingBlocksSecondCaller(t *testing.T) {
	_, store, scope := newIdemFixture(t)
	ctx := context.Background()

	_, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)

	_, err = store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeIdempotency, appErr.Code)
}

func TestAcquireKey_ReplaysCompletedResponse(t *testing.T) {
	_, store, scope := newIdemFixture(t)
	ctx := context.Background()

	_, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)
	require.NoError(t, store.CompleteKey(ctx, scope, "key-1", 201, "application/json", map[string]string{"id": "m-1"}))

	replay, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.Equal(t, "application/json", replay.ContentType)
	assert.JSONEq(t, `{"id":"m-1"}`, string(replay.Body))
}

func TestAcquireKey_ReplaysFailure(t *testing.T) {
	_, store, scope := newIdemFixture(t)
	ctx := context.Background()

	_, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/issue", "hash-a")
	require.NoError(t, err)
	require.NoError(t, store.FailKey(ctx, scope, "key-1", 422, "application/json", map[string]string{"code": "INSUFFICIENT_STOCK"}))

	replay, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/issue", "hash-a")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 422, replay.StatusCode)
}

func TestAcquireKey_KeyReuseMismatch(t *testing.T) {
	_, store, scope := newIdemFixture(t)
	ctx := context.Background()

	_, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)

	_, err = store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-other")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeIdempotency, appErr.Code)
	assert.Equal(t, "POST /stock/receipt", appErr.Details["stored_operation"])
}

func TestAcquireKey_StaleClaimIsReclaimed(t *testing.T) {
	db, store, scope := newIdemFixture(t)
	ctx := context.Background()

	_, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)

	row := db.rows[scope.TenantID().String()+"/key-1"]
	row.updatedAt = time.Now().UTC().Add(-2 * stalePendingAge)

	replay, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)
	assert.Nil(t, replay)
	assert.WithinDuration(t, time.Now().UTC(), row.updatedAt, time.Second)
}

func TestAcquireKey_StaleReclaimSingleWinner(t *testing.T) {
	db, store, scope := newIdemFixture(t)
	ctx := context.Background()

	_, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)

	row := db.rows[scope.TenantID().String()+"/key-1"]
	row.updatedAt = time.Now().UTC().Add(-2 * stalePendingAge)

	// Between our read of the stale row and our reclaim, another retry
	// reclaims it. Our conditional update must then match zero rows.
	db.onSelect = func() {
		db.onSelect = nil
		row.updatedAt = time.Now().UTC()
	}

	_, err = store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeIdempotency, appErr.Code)
}

func TestReleaseKey_AllowsImmediateRetry(t *testing.T) {
	db, store, scope := newIdemFixture(t)
	ctx := context.Background()

	_, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)
	require.NoError(t, store.ReleaseKey(ctx, scope, "key-1"))
	assert.Empty(t, db.rows)

	replay, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestCompleteKey_CompressesLargeResponse(t *testing.T) {
	db, store, scope := newIdemFixture(t)
	ctx := context.Background()

	_, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)

	big := map[string]string{"note": strings.Repeat("x", 20*1024)}
	require.NoError(t, store.CompleteKey(ctx, scope, "key-1", 201, "application/json", big))

	row := db.rows[scope.TenantID().String()+"/key-1"]
	assert.Equal(t, CompressionZstd, row.algo)

	replay, err := store.AcquireKey(ctx, scope, "key-1", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Contains(t, string(replay.Body), strings.Repeat("x", 64))
}

func TestCleanupExpired(t *testing.T) {
	db, store, scope := newIdemFixture(t)
	ctx := context.Background()

	_, err := store.AcquireKey(ctx, scope, "kept", "POST /stock/receipt", "hash-a")
	require.NoError(t, err)
	_, err = store.AcquireKey(ctx, scope, "gone", "POST /stock/receipt", "hash-b")
	require.NoError(t, err)
	db.rows[scope.TenantID().String()+"/gone"].expiresAt = time.Now().UTC().Add(-time.Hour)

	n, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, db.rows, 1)
}
