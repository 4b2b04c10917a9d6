package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExecuteMsgDecoding(t *testing.T) {
	cases := []struct {
		raw    string
		method string
	}{
		{`{"create_quest":{"name":"n","description":"d","reward_amount":"1"}}`, "create_quest"},
		{`{"complete_quest":{"quest_id":7}}`, "complete_quest"},
		{`{"complete_quest":{"quest_id":"7"}}`, "complete_quest"},
		{`{"transfer":{"recipient":"bob","amount":"3"}}`, "transfer"},
		{`{"admin_withdraw":{"amount":"3"}}`, "admin_withdraw"},
	}
	for _, tc := range cases {
		var msg ExecuteMsg
		if err := json.Unmarshal([]byte(tc.raw), &msg); err != nil {
			t.Fatalf("decode %s: %v", tc.raw, err)
		}
		if msg.Method() != tc.method {
			t.Fatalf("%s: expected %s, got %s", tc.raw, tc.method, msg.Method())
		}
		if msg.CompleteQuest != nil && msg.CompleteQuest.QuestID != 7 {
			t.Fatalf("unexpected quest id %d", msg.CompleteQuest.QuestID)
		}
	}
}

func TestExecuteMsgRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`[]`,
		`{"mint":{}}`,
		`{"transfer":{"recipient":"a","amount":"1"},"admin_withdraw":{"amount":"1"}}`,
		`{"transfer":{"recipient":"a","amount":"1","memo":"x"}}`,
		`{"complete_quest":{"quest_id":-1}}`,
		`{"complete_quest":{"quest_id":"one"}}`,
	} {
		var msg ExecuteMsg
		err := json.Unmarshal([]byte(raw), &msg)
		if err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
		if !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("%s: expected ErrInvalidMessage, got %v", raw, err)
		}
	}
}

func TestQueryMsgDecoding(t *testing.T) {
	var msg QueryMsg
	if err := json.Unmarshal([]byte(`{"get_active_quests":{}}`), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Method() != "get_active_quests" {
		t.Fatalf("unexpected method %s", msg.Method())
	}
	if err := json.Unmarshal([]byte(`{"get_config":null}`), &msg); err != nil {
		t.Fatalf("decode null payload: %v", err)
	}
	if msg.Method() != "get_config" {
		t.Fatalf("previous variant leaked: %s", msg.Method())
	}
	if err := json.Unmarshal([]byte(`{"get_quest":{"quest_id":"12"}}`), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.GetQuest == nil || msg.GetQuest.QuestID != 12 {
		t.Fatalf("unexpected query: %+v", msg)
	}
}

func TestExecuteMsgRoundTrip(t *testing.T) {
	msg := ExecuteMsg{Transfer: &TransferMsg{Recipient: "bob", Amount: "5"}}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"transfer":{"recipient":"bob","amount":"5"}}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
}
