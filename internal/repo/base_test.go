package repo

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ctxKey struct{}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return conn
}

func TestConnBindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.Conn(ctx)
	if withCtx.Statement == nil {
		t.Fatalf("expected statement on bound conn")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("conn not bound to request context")
	}

	if base.Conn(nil) != db {
		t.Fatalf("nil context should return the base db")
	}
}

func TestBindKeepsBaseOnNilTx(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.Bind(nil).Conn(nil) != db {
		t.Fatalf("binding a nil tx should keep the base db")
	}

	tx := db.Session(&gorm.Session{})
	if base.Bind(tx).Conn(nil) != tx {
		t.Fatalf("bound base should use the tx")
	}
}
