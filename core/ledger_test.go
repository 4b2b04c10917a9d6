package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"questchain/core/events"
	"questchain/core/types"
	"questchain/crypto"
	"questchain/native/quest"
	"questchain/storage"
)

type memJournal struct {
	mu      sync.Mutex
	heights []uint64
	events  []types.Event
}

func (j *memJournal) Append(ctx context.Context, height, _ uint64, _ string, evts []types.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.heights = append(j.heights, height)
	j.events = append(j.events, evts...)
	return nil
}

func snapshot(t *testing.T, db storage.Reader) map[string]string {
	t.Helper()
	out := make(map[string]string)
	if err := db.Iterate(nil, func(key, value []byte) bool {
		out[string(key)] = string(value)
		return true
	}); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return out
}

func newTestLedger(t *testing.T) (*Ledger, *storage.MemDB, *memJournal) {
	t.Helper()
	db := storage.NewMemDB()
	ledger, err := NewLedger(db, false)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	ledger.SetValidator(crypto.PlainValidator{})
	now := time.Unix(1_700_000_000, 0)
	ledger.SetClock(func() time.Time { return now })
	journal := &memJournal{}
	ledger.SetJournal(journal)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger, db, journal
}

func mustExecute(t *testing.T, l *Ledger, sender, raw string) *Result {
	t.Helper()
	var msg ExecuteMsg
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	res, err := l.Execute(context.Background(), sender, msg)
	if err != nil {
		t.Fatalf("execute %s: %v", raw, err)
	}
	return res
}

func mustQuery(t *testing.T, l *Ledger, raw string) any {
	t.Helper()
	var msg QueryMsg
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	out, err := l.Query(context.Background(), msg)
	if err != nil {
		t.Fatalf("query %s: %v", raw, err)
	}
	return out
}

func instantiate(t *testing.T, l *Ledger) {
	t.Helper()
	if _, err := l.Instantiate(context.Background(), "creator", quest.InstantiateMsg{
		QuestCreationFee: "5",
		InitialBalance:   "1000",
	}); err != nil {
		t.Fatalf("instantiate: %v", err)
	}
}

func TestLedgerCommitsAndAdvancesHeight(t *testing.T) {
	ledger, _, journal := newTestLedger(t)
	instantiate(t, ledger)

	res := mustExecute(t, ledger, "creator", `{"create_quest":{"name":"Q","description":"D","reward_amount":"50"}}`)
	if res.Height != 2 || res.Time != 1_700_000_000 {
		t.Fatalf("unexpected result head: %+v", res)
	}
	if len(res.Events) != 1 || res.Events[0].Type != quest.EventTypeCreated {
		t.Fatalf("unexpected events: %+v", res.Events)
	}
	if id, _ := res.Events[0].Attr("quest_id"); id != "1" {
		t.Fatalf("unexpected quest id %q", id)
	}

	mustExecute(t, ledger, "worker", `{"complete_quest":{"quest_id":"1"}}`)
	if head := ledger.Head(); head.Height != 3 {
		t.Fatalf("expected height 3, got %d", head.Height)
	}

	balance := mustQuery(t, ledger, `{"get_balance":{"address":"worker"}}`).(*quest.BalanceResponse)
	if balance.Balance != "50" || balance.TotalEarned != "50" {
		t.Fatalf("unexpected worker balance: %+v", balance)
	}
	if len(journal.events) != 3 || journal.heights[2] != 3 {
		t.Fatalf("unexpected journal: heights=%v events=%d", journal.heights, len(journal.events))
	}
}

func TestLedgerFailedCallLeavesStateUntouched(t *testing.T) {
	ledger, db, journal := newTestLedger(t)
	instantiate(t, ledger)
	mustExecute(t, ledger, "creator", `{"create_quest":{"name":"Q","description":"D","reward_amount":"50"}}`)

	recorder := &events.Recorder{}
	ledger.SetEmitter(recorder)
	before := snapshot(t, db)
	journaled := len(journal.events)
	head := ledger.Head()

	failures := []struct {
		sender string
		raw    string
		kind   string
	}{
		{"creator", `{"complete_quest":{"quest_id":1}}`, quest.KindSelfCompletion},
		{"worker", `{"complete_quest":{"quest_id":9}}`, quest.KindNotFound},
		{"worker", `{"transfer":{"recipient":"creator","amount":"1"}}`, quest.KindInsufficientFunds},
		{"creator", `{"transfer":{"recipient":"worker","amount":"abc"}}`, quest.KindInvalidAmount},
		{"worker", `{"admin_withdraw":{"amount":"1"}}`, quest.KindUnauthorized},
		{"creator", `{"admin_withdraw":{"amount":"100000"}}`, quest.KindInsufficientFunds},
	}
	for _, tc := range failures {
		var msg ExecuteMsg
		if err := json.Unmarshal([]byte(tc.raw), &msg); err != nil {
			t.Fatalf("decode %s: %v", tc.raw, err)
		}
		_, err := ledger.Execute(context.Background(), tc.sender, msg)
		if err == nil {
			t.Fatalf("expected %s to fail", tc.raw)
		}
		if kind := quest.ErrorKind(err); kind != tc.kind {
			t.Fatalf("%s: expected %s, got %s (%v)", tc.raw, tc.kind, kind, err)
		}
	}

	after := snapshot(t, db)
	if len(before) != len(after) {
		t.Fatalf("key count changed: %d -> %d", len(before), len(after))
	}
	for k, v := range before {
		if after[k] != v {
			t.Fatalf("key %x changed", k)
		}
	}
	if len(journal.events) != journaled {
		t.Fatalf("failed calls were journaled")
	}
	if len(recorder.Events()) != 0 {
		t.Fatalf("failed calls emitted events")
	}
	if ledger.Head() != head {
		t.Fatalf("head moved on failure")
	}
}

func TestLedgerInstantiateOnce(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ok, err := ledger.IsInitialized()
	if err != nil || ok {
		t.Fatalf("expected uninitialized ledger, ok=%v err=%v", ok, err)
	}
	instantiate(t, ledger)
	_, err = ledger.Instantiate(context.Background(), "creator", quest.InstantiateMsg{QuestCreationFee: "1", InitialBalance: "1"})
	if !errors.Is(err, quest.ErrAlreadyInitialized) {
		t.Fatalf("expected already initialized, got %v", err)
	}
}

func TestLedgerRestoresHeadOnReopen(t *testing.T) {
	db := storage.NewMemDB()
	ledger, err := NewLedger(db, false)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	ledger.SetValidator(crypto.PlainValidator{})
	ledger.SetClock(func() time.Time { return time.Unix(500, 0) })
	instantiate(t, ledger)

	reopened, err := NewLedger(db, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	reopened.SetValidator(crypto.PlainValidator{})
	reopened.SetClock(func() time.Time { return time.Unix(100, 0) })
	if head := reopened.Head(); head.Height != 1 || head.Time != 500 {
		t.Fatalf("unexpected restored head: %+v", head)
	}
	res := mustExecute(t, reopened, "creator", `{"transfer":{"recipient":"friend","amount":"10"}}`)
	if res.Height != 2 || res.Time != 500 {
		t.Fatalf("block time must not regress: %+v", res)
	}
}

func TestLedgerQueries(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	var cfgMsg QueryMsg
	if err := json.Unmarshal([]byte(`{"get_config":{}}`), &cfgMsg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := ledger.Query(context.Background(), cfgMsg); !errors.Is(err, quest.ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}

	instantiate(t, ledger)
	for i := 0; i < 3; i++ {
		mustExecute(t, ledger, "creator", `{"create_quest":{"name":"Q","description":"D","reward_amount":"10"}}`)
	}
	mustExecute(t, ledger, "worker", `{"complete_quest":{"quest_id":2}}`)

	active := mustQuery(t, ledger, `{"get_active_quests":{}}`).(*quest.ActiveQuestsResponse)
	if active.Count != 2 || active.Quests[0].ID != 1 || active.Quests[1].ID != 3 {
		t.Fatalf("unexpected active quests: %+v", active)
	}
	cfg := mustQuery(t, ledger, `{"get_config":{}}`).(*quest.ConfigResponse)
	if cfg.TotalQuests != 3 || cfg.TotalCompleted != 1 || cfg.Owner != "creator" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	userQuests := mustQuery(t, ledger, `{"get_user_quests":{"address":"creator"}}`).([]quest.QuestView)
	if len(userQuests) != 3 {
		t.Fatalf("unexpected user quests: %+v", userQuests)
	}
	stats := mustQuery(t, ledger, `{"get_user_stats":{"address":"creator"}}`).(*quest.UserStatsResponse)
	if stats.Balance != "985" || stats.QuestsCreated != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	one := mustQuery(t, ledger, `{"get_quest":{"quest_id":2}}`).(*quest.QuestResponse)
	if !one.Quest.Completed || one.Quest.CompletedBy == nil || *one.Quest.CompletedBy != "worker" {
		t.Fatalf("unexpected quest: %+v", one.Quest)
	}
}

func TestLedgerClosed(t *testing.T) {
	ledger, err := NewLedger(storage.NewMemDB(), false)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := ledger.Execute(context.Background(), "creator", ExecuteMsg{AdminWithdraw: &AdminWithdrawMsg{Amount: "1"}}); !errors.Is(err, ErrLedgerClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestLedgerJournalsDespiteCancelledCaller(t *testing.T) {
	ledger, _, journal := newTestLedger(t)
	instantiate(t, ledger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := ledger.Execute(ctx, "creator", ExecuteMsg{CreateQuest: &CreateQuestMsg{Name: "Q", Description: "D", RewardAmount: "1"}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	journal.mu.Lock()
	defer journal.mu.Unlock()
	if len(journal.events) != 2 || journal.heights[1] != res.Height {
		t.Fatalf("committed call missing from journal: heights=%v", journal.heights)
	}
	if journal.events[1].Type != quest.EventTypeCreated {
		t.Fatalf("unexpected journaled event %s", journal.events[1].Type)
	}
}
