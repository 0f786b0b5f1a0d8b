package points

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/testutil"
)

func TestSnapshotDrainsMessages(t *testing.T) {
	tr := NewTracker()
	tr.Touch(1, "u1", "alice")
	tr.Touch(1, "u1", "alice")
	tr.Touch(1, "u2", "bob")

	snap := tr.snapshot(1)
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(snap))
	}
	if snap["u1"].messages != 2 || snap["u2"].messages != 1 {
		t.Errorf("message counts = %d/%d, want 2/1", snap["u1"].messages, snap["u2"].messages)
	}

	// Counters reset, but chatters remain active.
	snap = tr.snapshot(1)
	if len(snap) != 2 {
		t.Fatalf("second snapshot size = %d, want 2", len(snap))
	}
	if snap["u1"].messages != 0 {
		t.Errorf("messages after drain = %d, want 0", snap["u1"].messages)
	}
}

func TestSnapshotDropsIdleChatters(t *testing.T) {
	tr := NewTracker()
	current := time.Now()
	tr.now = func() time.Time { return current }

	tr.Touch(1, "u1", "alice")
	current = current.Add(activeWindow + time.Minute)
	tr.Touch(1, "u2", "bob")

	snap := tr.snapshot(1)
	if _, ok := snap["u1"]; ok {
		t.Error("idle chatter should be dropped")
	}
	if _, ok := snap["u2"]; !ok {
		t.Error("recent chatter should remain")
	}
}

func TestSnapshotTenantsIsolated(t *testing.T) {
	tr := NewTracker()
	tr.Touch(1, "u1", "alice")

	if snap := tr.snapshot(2); snap != nil {
		t.Errorf("account 2 snapshot = %v, want nil", snap)
	}
}

func TestFlushOnceAwards(t *testing.T) {
	dbx := testutil.SetupTestDB(t)

	acctID, err := db.UpsertAccount(context.Background(), dbx, db.Account{
		KickChannel: "points-test-chan",
		BotEnabled:  true,
	})
	if err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	t.Cleanup(func() {
		dbx.Exec(`DELETE FROM accounts WHERE id=$1`, acctID)
	})
	err = db.UpdateAccountFeatures(context.Background(), dbx, db.Account{
		ID:               acctID,
		BotEnabled:       true,
		PointsEnabled:    true,
		PointsPerMinute:  10,
		PointsPerMessage: 2,
	})
	if err != nil {
		t.Fatalf("update features: %v", err)
	}

	tr := NewTracker()
	tr.Touch(acctID, "u1", "alice")
	tr.Touch(acctID, "u1", "alice")
	tr.Touch(acctID, "u1", "alice")

	tr.flushOnce(context.Background(), dbx, time.Minute)

	// 10 per minute + 3 messages * 2.
	balance, err := db.GetPoints(context.Background(), dbx, acctID, "u1")
	if err != nil {
		t.Fatalf("get points: %v", err)
	}
	if balance != 16 {
		t.Errorf("balance = %d, want 16", balance)
	}

	// Second flush without new messages: watch time only.
	tr.flushOnce(context.Background(), dbx, time.Minute)
	balance, _ = db.GetPoints(context.Background(), dbx, acctID, "u1")
	if balance != 26 {
		t.Errorf("balance after second flush = %d, want 26", balance)
	}
}

func TestFlushSkipsDisabledAccounts(t *testing.T) {
	dbx := testutil.SetupTestDB(t)

	acctID, err := db.UpsertAccount(context.Background(), dbx, db.Account{
		KickChannel: "points-off-chan",
		BotEnabled:  true,
	})
	if err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	t.Cleanup(func() {
		dbx.Exec(`DELETE FROM accounts WHERE id=$1`, acctID)
	})

	tr := NewTracker()
	tr.Touch(acctID, "u1", "alice")
	tr.flushOnce(context.Background(), dbx, time.Minute)

	balance, err := db.GetPoints(context.Background(), dbx, acctID, "u1")
	if err != nil {
		t.Fatalf("get points: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0 for disabled points", balance)
	}
}
