package joinrequeststore_test

import (
	"sync"
	"testing"
	"time"

	joinrequeststore "github.com/dalemusser/huddle/internal/app/store/joinrequests"
	"github.com/dalemusser/huddle/internal/app/system/indexes"
	"github.com/dalemusser/huddle/internal/domain/models"
	"github.com/dalemusser/huddle/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setup(t *testing.T) (*joinrequeststore.Store, func() int64) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	count := func() int64 {
		ctx, cancel := testutil.TestContext()
		defer cancel()
		n, err := db.Collection("join_requests").CountDocuments(ctx, bson.M{})
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}
	return joinrequeststore.New(db), count
}

func TestStore_OpenPending_CreateThenIdempotent(t *testing.T) {
	store, count := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g, u := primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first, err := store.OpenPending(ctx, g, u, now)
	if err != nil {
		t.Fatalf("OpenPending failed: %v", err)
	}
	if first.PrevStatus != "" || first.AlreadyPending() {
		t.Errorf("expected fresh request, got prev %q", first.PrevStatus)
	}
	if first.Request.Status != models.RequestPending {
		t.Errorf("status: got %q", first.Request.Status)
	}

	second, err := store.OpenPending(ctx, g, u, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second OpenPending failed: %v", err)
	}
	if !second.AlreadyPending() {
		t.Error("expected AlreadyPending on repeat")
	}
	if second.Request.ID != first.Request.ID {
		t.Errorf("expected same id, got %v vs %v", second.Request.ID, first.Request.ID)
	}
	if n := count(); n != 1 {
		t.Errorf("expected 1 document, got %d", n)
	}
}

func TestStore_OpenPending_ReopensDeclined(t *testing.T) {
	store, count := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g, u := primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Now().UTC()

	first, err := store.OpenPending(ctx, g, u, now)
	if err != nil {
		t.Fatalf("OpenPending failed: %v", err)
	}
	if _, err := store.Transition(ctx, first.Request.ID, models.RequestDeclined, now); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	again, err := store.OpenPending(ctx, g, u, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if again.PrevStatus != models.RequestDeclined {
		t.Errorf("PrevStatus: got %q, want declined", again.PrevStatus)
	}
	if again.Request.ID != first.Request.ID {
		t.Error("expected the same document to be reopened")
	}

	got, err := store.GetByID(ctx, first.Request.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.RequestPending {
		t.Errorf("status: got %q", got.Status)
	}
	if n := count(); n != 1 {
		t.Errorf("expected 1 document, got %d", n)
	}
}

func TestStore_OpenPending_Concurrent(t *testing.T) {
	store, count := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g, u := primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Now().UTC()

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.OpenPending(ctx, g, u, now)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("call %d failed: %v", i, err)
		}
	}
	if c := count(); c != 1 {
		t.Errorf("expected 1 document, got %d", c)
	}
}

func TestStore_Transition_SingleShot(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	up, err := store.OpenPending(ctx, primitive.NewObjectID(), primitive.NewObjectID(), time.Now().UTC())
	if err != nil {
		t.Fatalf("OpenPending failed: %v", err)
	}

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Transition(ctx, up.Request.ID, models.RequestApproved, time.Now().UTC())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch err {
		case nil:
			wins++
		case joinrequeststore.ErrNotPending:
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
}

func TestStore_Revert(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	opened := time.Now().UTC().Truncate(time.Millisecond)
	approved := opened.Add(time.Minute)
	reverted := opened.Add(2 * time.Minute)

	up, _ := store.OpenPending(ctx, primitive.NewObjectID(), primitive.NewObjectID(), opened)
	if _, err := store.Transition(ctx, up.Request.ID, models.RequestApproved, approved); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if err := store.Revert(ctx, up.Request.ID, models.RequestApproved, reverted); err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	got, _ := store.GetByID(ctx, up.Request.ID)
	if got.Status != models.RequestPending {
		t.Errorf("status: got %q, want pending", got.Status)
	}
	if !got.UpdatedAt.Equal(reverted) {
		t.Errorf("updated_at: got %v, want %v", got.UpdatedAt, reverted)
	}

	// A request no longer in the expected status is left alone.
	if err := store.Revert(ctx, up.Request.ID, models.RequestApproved, reverted.Add(time.Minute)); err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	got, _ = store.GetByID(ctx, up.Request.ID)
	if !got.UpdatedAt.Equal(reverted) {
		t.Errorf("second revert touched the request: updated_at %v", got.UpdatedAt)
	}
}

func TestStore_ListPending(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := primitive.NewObjectID()
	base := time.Now().UTC().Truncate(time.Millisecond)

	older, _ := store.OpenPending(ctx, g, primitive.NewObjectID(), base)
	newer, _ := store.OpenPending(ctx, g, primitive.NewObjectID(), base.Add(time.Minute))
	declined, _ := store.OpenPending(ctx, g, primitive.NewObjectID(), base.Add(2*time.Minute))
	if _, err := store.Transition(ctx, declined.Request.ID, models.RequestDeclined, base); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	// Another group's request must not leak in.
	_, _ = store.OpenPending(ctx, primitive.NewObjectID(), primitive.NewObjectID(), base)

	list, err := store.ListPending(ctx, g)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(list))
	}
	if list[0].ID != newer.Request.ID || list[1].ID != older.Request.ID {
		t.Error("expected most recent first")
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); err != joinrequeststore.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
