package exception

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rotaplan/internal/calendar"
	logx "rotaplan/pkg/logx"
)

func testRecord(userID string, d calendar.Date) Record {
	return Record{
		UserID:      userID,
		Date:        d,
		Kind:        KindCancelled,
		Status:      StatusActive,
		CreatedAt:   time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC),
		ShiftTypeID: "day",
	}
}

// storeSuite exercises the Store contract against any backend.
func storeSuite(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	d := calendar.NewDate(2024, time.July, 10)

	id1, err := st.Put(ctx, testRecord("u1", d))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	id2, err := st.Put(ctx, testRecord("u1", d.AddDays(5)))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := st.Put(ctx, testRecord("u2", d)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Range and user filtering.
	recs, err := st.ActiveForRange(ctx, "u1", d, d.AddDays(3))
	if err != nil {
		t.Fatalf("ActiveForRange: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != id1 {
		t.Fatalf("range filter wrong: %+v", recs)
	}

	recs, err = st.ActiveForRange(ctx, "u1", d, d.AddDays(10))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	// Cancelled records disappear from ActiveForRange.
	if err := st.Cancel(ctx, id2); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	recs, err = st.ActiveForRange(ctx, "u1", d, d.AddDays(10))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != id1 {
		t.Fatalf("cancelled record still visible: %+v", recs)
	}

	// Cancelling an unknown id is a no-op.
	if err := st.Cancel(ctx, 9999); err != nil {
		t.Fatalf("Cancel unknown id: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	st := NewMemoryStore()
	defer st.Close()
	storeSuite(t, st)
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "exceptions")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	storeSuite(t, st)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: journal replay restores state.
	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	d := calendar.NewDate(2024, time.July, 10)
	recs, err := st2.ActiveForRange(context.Background(), "u1", d, d.AddDays(10))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("journal replay lost records: %+v", recs)
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "exceptions.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	storeSuite(t, st)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestKindStatusRoundTrip(t *testing.T) {
	t.Parallel()
	for _, k := range []Kind{KindTimeChange, KindCancelled, KindAdditional, KindSwap, KindOther} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("kind %v round trip: %v, %v", k, got, err)
		}
	}
	for _, s := range []Status{StatusActive, StatusCancelled} {
		got, err := ParseStatus(s.String())
		if err != nil || got != s {
			t.Fatalf("status %v round trip: %v, %v", s, got, err)
		}
	}
	if _, err := ParseKind("nope"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
