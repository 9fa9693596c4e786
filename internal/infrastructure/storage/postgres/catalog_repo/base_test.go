package catalog_repo

import (
	"context"
	"testing"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
)

func testRepo() *BaseCatalogRepo[any] {
	return NewBaseCatalogRepo[any](nil, "test_table", []string{"id", "name", "code"}, func() any { return nil })
}

type testEntity struct {
	entity.Base
	Name string `db:"name"`
	Code string `db:"code"`
}

// The repo is built without a database on purpose: reaching the INSERT would
// panic, so a clean TenantMismatch return proves nothing was written.
func TestCreate_RejectsForeignTenant(t *testing.T) {
	repo := NewBaseCatalogRepo[*testEntity](nil, "test_table",
		[]string{"id", "tenant_id", "name", "code"}, func() *testEntity { return &testEntity{} })
	scope := tenant.MustScope(id.New())

	e := &testEntity{Base: entity.NewBase(), Name: "foreign", Code: "X"}
	e.TenantID = id.New() // belongs to a different tenant

	err := repo.Create(context.Background(), scope, e)
	if err == nil {
		t.Fatal("expected error for foreign-tenant entity")
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeTenantMismatch {
		t.Errorf("expected tenant mismatch, got %v", err)
	}
}

func TestParseOrderBy(t *testing.T) {
	repo := testRepo()

	tests := []struct {
		name    string
		orderBy string
		want    string
		wantErr bool
	}{
		{name: "default", orderBy: "", want: "name ASC"},
		{name: "plain field", orderBy: "code", want: "code ASC"},
		{name: "descending", orderBy: "-code", want: "code DESC"},
		{name: "explicit ascending", orderBy: "+name", want: "name ASC"},
		{name: "audit column", orderBy: "-created_at", want: "created_at DESC"},
		{name: "unknown field", orderBy: "password", wantErr: true},
		{name: "injection attempt", orderBy: "name; DROP TABLE test_table", wantErr: true},
		{name: "bare minus", orderBy: "-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.parseOrderBy(tt.orderBy)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if appErr, ok := apperror.AsAppError(err); !ok || appErr.Code != apperror.CodeValidation {
					t.Errorf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBaseSelect_ScopesTenant(t *testing.T) {
	repo := testRepo()
	scope := tenant.MustScope(id.New())

	sql, args, err := repo.baseSelect(scope).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	wantSQL := "SELECT id, name, code FROM test_table WHERE tenant_id = $1"
	if sql != wantSQL {
		t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", wantSQL, sql)
	}
	if len(args) != 1 || args[0] != scope.TenantID() {
		t.Errorf("expected tenant id as the only argument, got %v", args)
	}
}

func TestSearchConditions(t *testing.T) {
	repo := testRepo()

	sql, args, err := repo.searchConditions("widget", []string{"name", "code"}).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	wantSQL := "(name ILIKE ? OR code ILIKE ?)"
	if sql != wantSQL {
		t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", wantSQL, sql)
	}
	if len(args) != 2 || args[0] != "%widget%" || args[1] != "%widget%" {
		t.Errorf("unexpected args: %v", args)
	}
}
