package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/infrastructure/storage/postgres"
)

// keyStateDB is a weak simulation of the idempotency table, just enough state
// to observe which keys survive a request: a claim inserts, release deletes,
// fail/complete marks the row finished.
type keyStateDB struct {
	rows map[string]*keyState
}

type keyState struct {
	operation   string
	status      string
	requestHash string
	response    []byte
	statusCode  int
	contentType string
	updatedAt   time.Time
}

func newKeyStateDB() *keyStateDB { return &keyStateDB{rows: map[string]*keyState{}} }

func (f *keyStateDB) GetQuerier(ctx context.Context) postgres.Querier { return f }

func (f *keyStateDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO sys_idempotency"):
		k := args[0].(string) + "/" + args[1].(string)
		if _, exists := f.rows[k]; exists {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		f.rows[k] = &keyState{
			operation:   args[2].(string),
			status:      fmt.Sprint(args[3]),
			requestHash: args[4].(string),
			updatedAt:   args[6].(time.Time),
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "SET status"):
		k := args[6].(string) + "/" + args[7].(string)
		if row, ok := f.rows[k]; ok {
			row.status = fmt.Sprint(args[0])
			row.response = args[1].([]byte)
			row.statusCode = args[3].(int)
			row.contentType = args[4].(string)
			row.updatedAt = args[5].(time.Time)
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case strings.Contains(sql, "DELETE FROM sys_idempotency"):
		k := args[0].(string) + "/" + args[1].(string)
		if row, ok := f.rows[k]; ok && row.status == "pending" {
			delete(f.rows, k)
			return pgconn.NewCommandTag("DELETE 1"), nil
		}
		return pgconn.NewCommandTag("DELETE 0"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected exec: %s", sql)
}

func (f *keyStateDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unexpected query: %s", sql)
}

func (f *keyStateDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	row, ok := f.rows[args[0].(string)+"/"+args[1].(string)]
	if !ok {
		return keyStateRow{err: pgx.ErrNoRows}
	}
	return keyStateRow{row: *row}
}

type keyStateRow struct {
	row keyState
	err error
}

func (r keyStateRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.row.operation
	*dest[1].(*postgres.IdempotencyStatus) = postgres.IdempotencyStatus(r.row.status)
	*dest[2].(*string) = r.row.requestHash
	*dest[3].(*[]byte) = r.row.response
	*dest[4].(*postgres.CompressionAlgo) = postgres.CompressionNone
	*dest[5].(*int) = r.row.statusCode
	*dest[6].(*string) = r.row.contentType
	*dest[7].(*time.Time) = r.row.updatedAt
	return nil
}

func newErrorFlowRouter(t *testing.T, handler gin.HandlerFunc) (*gin.Engine, *keyStateDB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newKeyStateDB()
	store, err := postgres.NewIdempotencyStore(db, time.Minute)
	require.NoError(t, err)

	scope := tenant.MustScope(id.New())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(tenant.WithScope(c.Request.Context(), scope))
		c.Next()
	})
	r.Use(ErrorHandler())
	r.Use(Idempotency(store))
	r.POST("/stock/issue", handler)
	return r, db
}

func post(r *gin.Engine, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/stock/issue", strings.NewReader(`{"quantity":5}`))
	req.Header.Set(HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	return w
}

func TestErrorHandler_TransientConflictReleasesKey(t *testing.T) {
	calls := 0
	r, db := newErrorFlowRouter(t, func(c *gin.Context) {
		calls++
		if calls == 1 {
			_ = c.Error(apperror.NewStorageConflict(errors.New("deadlock detected")))
			c.Abort()
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": "m-1"})
	})

	first := post(r, "retry-key")
	assert.Equal(t, http.StatusConflict, first.Code)
	assert.Empty(t, db.rows)

	// The key is free again: the retry must re-run the handler, not replay
	// the cached conflict.
	second := post(r, "retry-key")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)
}

func TestErrorHandler_DeterministicFailureIsCached(t *testing.T) {
	calls := 0
	r, _ := newErrorFlowRouter(t, func(c *gin.Context) {
		calls++
		_ = c.Error(apperror.NewInsufficientStock("item-1", "loc-1", 5, 2))
		c.Abort()
	})

	first := post(r, "short-key")
	assert.Equal(t, http.StatusUnprocessableEntity, first.Code)

	second := post(r, "short-key")
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.Contains(t, second.Body.String(), "INSUFFICIENT_STOCK")
	assert.Equal(t, 1, calls)
}
