package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidMessage reports a malformed execute or query message.
var ErrInvalidMessage = errors.New("core: invalid message")

// QuestID decodes from either a JSON number or a decimal string.
type QuestID uint64

// UnmarshalJSON implements json.Unmarshaler.
func (id *QuestID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		trimmed = []byte(strings.TrimSpace(raw))
	}
	value, err := strconv.ParseUint(string(trimmed), 10, 64)
	if err != nil {
		return fmt.Errorf("quest_id must be an unsigned integer")
	}
	*id = QuestID(value)
	return nil
}

// CreateQuestMsg opens a new quest funded by the sender's creation fee.
type CreateQuestMsg struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	RewardAmount string `json:"reward_amount"`
}

// CompleteQuestMsg claims the reward of an open quest.
type CompleteQuestMsg struct {
	QuestID QuestID `json:"quest_id"`
}

// TransferMsg moves balance to another identity.
type TransferMsg struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// AdminWithdrawMsg burns balance from the owner.
type AdminWithdrawMsg struct {
	Amount string `json:"amount"`
}

// ExecuteMsg is the tagged union of mutating calls. Exactly one variant is
// set, encoded as {"<snake_case_variant>": {...}}.
type ExecuteMsg struct {
	CreateQuest   *CreateQuestMsg   `json:"create_quest,omitempty"`
	CompleteQuest *CompleteQuestMsg `json:"complete_quest,omitempty"`
	Transfer      *TransferMsg      `json:"transfer,omitempty"`
	AdminWithdraw *AdminWithdrawMsg `json:"admin_withdraw,omitempty"`
}

// Method returns the snake_case name of the populated variant.
func (m ExecuteMsg) Method() string {
	switch {
	case m.CreateQuest != nil:
		return "create_quest"
	case m.CompleteQuest != nil:
		return "complete_quest"
	case m.Transfer != nil:
		return "transfer"
	case m.AdminWithdraw != nil:
		return "admin_withdraw"
	default:
		return ""
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ExecuteMsg) UnmarshalJSON(data []byte) error {
	name, body, err := splitVariant(data)
	if err != nil {
		return err
	}
	var out ExecuteMsg
	switch name {
	case "create_quest":
		out.CreateQuest = new(CreateQuestMsg)
		err = decodeStrict(body, out.CreateQuest)
	case "complete_quest":
		out.CompleteQuest = new(CompleteQuestMsg)
		err = decodeStrict(body, out.CompleteQuest)
	case "transfer":
		out.Transfer = new(TransferMsg)
		err = decodeStrict(body, out.Transfer)
	case "admin_withdraw":
		out.AdminWithdraw = new(AdminWithdrawMsg)
		err = decodeStrict(body, out.AdminWithdraw)
	default:
		return fmt.Errorf("%w: unknown execute variant %q", ErrInvalidMessage, name)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidMessage, name, err)
	}
	*m = out
	return nil
}

// AddressQuery targets a single identity.
type AddressQuery struct {
	Address string `json:"address"`
}

// QuestQuery targets a single quest.
type QuestQuery struct {
	QuestID QuestID `json:"quest_id"`
}

// Empty is the payload of variants without parameters.
type Empty struct{}

// QueryMsg is the tagged union of read-only calls.
type QueryMsg struct {
	GetConfig       *Empty        `json:"get_config,omitempty"`
	GetBalance      *AddressQuery `json:"get_balance,omitempty"`
	GetQuest        *QuestQuery   `json:"get_quest,omitempty"`
	GetActiveQuests *Empty        `json:"get_active_quests,omitempty"`
	GetUserQuests   *AddressQuery `json:"get_user_quests,omitempty"`
	GetUserStats    *AddressQuery `json:"get_user_stats,omitempty"`
}

// Method returns the snake_case name of the populated variant.
func (m QueryMsg) Method() string {
	switch {
	case m.GetConfig != nil:
		return "get_config"
	case m.GetBalance != nil:
		return "get_balance"
	case m.GetQuest != nil:
		return "get_quest"
	case m.GetActiveQuests != nil:
		return "get_active_quests"
	case m.GetUserQuests != nil:
		return "get_user_quests"
	case m.GetUserStats != nil:
		return "get_user_stats"
	default:
		return ""
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *QueryMsg) UnmarshalJSON(data []byte) error {
	name, body, err := splitVariant(data)
	if err != nil {
		return err
	}
	var out QueryMsg
	switch name {
	case "get_config":
		out.GetConfig = new(Empty)
		err = decodeStrict(body, out.GetConfig)
	case "get_balance":
		out.GetBalance = new(AddressQuery)
		err = decodeStrict(body, out.GetBalance)
	case "get_quest":
		out.GetQuest = new(QuestQuery)
		err = decodeStrict(body, out.GetQuest)
	case "get_active_quests":
		out.GetActiveQuests = new(Empty)
		err = decodeStrict(body, out.GetActiveQuests)
	case "get_user_quests":
		out.GetUserQuests = new(AddressQuery)
		err = decodeStrict(body, out.GetUserQuests)
	case "get_user_stats":
		out.GetUserStats = new(AddressQuery)
		err = decodeStrict(body, out.GetUserStats)
	default:
		return fmt.Errorf("%w: unknown query variant %q", ErrInvalidMessage, name)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidMessage, name, err)
	}
	*m = out
	return nil
}

func splitVariant(data []byte) (string, json.RawMessage, error) {
	var variants map[string]json.RawMessage
	if err := json.Unmarshal(data, &variants); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if len(variants) != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one variant, got %d", ErrInvalidMessage, len(variants))
	}
	for name, body := range variants {
		return name, body, nil
	}
	return "", nil, ErrInvalidMessage
}

func decodeStrict(body json.RawMessage, out any) error {
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		body = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
