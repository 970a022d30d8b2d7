package messagestore_test

import (
	"bytes"
	"testing"
	"time"

	messagestore "github.com/dalemusser/huddle/internal/app/store/messages"
	"github.com/dalemusser/huddle/internal/domain/models"
	"github.com/dalemusser/huddle/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_InsertListCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := messagestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := primitive.NewObjectID()
	sender := primitive.NewObjectID()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, at := range []time.Time{base.Add(2 * time.Second), base, base.Add(time.Second)} {
		_, err := store.Insert(ctx, models.Message{
			GroupID:   g,
			SenderID:  sender,
			Payload:   []byte{byte(i)},
			CreatedAt: at,
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	_, _ = store.Insert(ctx, models.Message{GroupID: primitive.NewObjectID(), SenderID: sender, CreatedAt: base})

	all, err := store.ListSince(ctx, g, nil)
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	if !bytes.Equal(all[0].Payload, []byte{1}) || !bytes.Equal(all[2].Payload, []byte{0}) {
		t.Error("expected ascending created_at order")
	}

	since := base
	later, err := store.ListSince(ctx, g, &since)
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(later) != 2 {
		t.Errorf("expected 2 messages strictly after since, got %d", len(later))
	}

	n, err := store.CountSince(ctx, g, base.Add(time.Second))
	if err != nil {
		t.Fatalf("CountSince failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CountSince: got %d, want 1", n)
	}
}
