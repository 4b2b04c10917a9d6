package quest

import "fmt"

// ConfigResponse is the wire form of the ledger config.
type ConfigResponse struct {
	Owner            string `json:"owner"`
	QuestCreationFee string `json:"quest_creation_fee"`
	TotalQuests      uint64 `json:"total_quests"`
	TotalCompleted   uint64 `json:"total_completed"`
}

// BalanceResponse reports the spendable and lifetime earned amounts of an
// identity.
type BalanceResponse struct {
	Address     string `json:"address"`
	Balance     string `json:"balance"`
	TotalEarned string `json:"total_earned"`
}

// QuestView is the wire form of a quest. Optional fields are null until the
// quest is completed.
type QuestView struct {
	ID           uint64  `json:"id"`
	Creator      string  `json:"creator"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	RewardAmount string  `json:"reward_amount"`
	Completed    bool    `json:"completed"`
	CompletedBy  *string `json:"completed_by"`
	CreatedAt    uint64  `json:"created_at"`
	CompletedAt  *uint64 `json:"completed_at"`
}

// QuestResponse wraps a single quest.
type QuestResponse struct {
	Quest QuestView `json:"quest"`
}

// ActiveQuestsResponse lists open quests in ascending id order.
type ActiveQuestsResponse struct {
	Quests []QuestView `json:"quests"`
	Count  uint64      `json:"count"`
}

// UserStatsResponse reports every counter tracked for an identity.
type UserStatsResponse struct {
	Address         string `json:"address"`
	Balance         string `json:"balance"`
	TotalEarned     string `json:"total_earned"`
	QuestsCreated   uint64 `json:"quests_created"`
	QuestsCompleted uint64 `json:"quests_completed"`
}

// NewQuestView converts a stored quest into its wire form.
func NewQuestView(q *Quest) QuestView {
	view := QuestView{
		ID:           q.ID,
		Creator:      q.Creator,
		Name:         q.Name,
		Description:  q.Description,
		RewardAmount: FormatAmount(q.RewardAmount),
		Completed:    q.Completed,
		CreatedAt:    q.CreatedAt,
	}
	if q.Completed {
		by := q.CompletedBy
		at := q.CompletedAt
		view.CompletedBy = &by
		view.CompletedAt = &at
	}
	return view
}

// GetConfig returns the current config snapshot.
func (e *Engine) GetConfig() (*ConfigResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return &ConfigResponse{
		Owner:            cfg.Owner,
		QuestCreationFee: FormatAmount(cfg.QuestCreationFee),
		TotalQuests:      cfg.TotalQuests,
		TotalCompleted:   cfg.TotalCompleted,
	}, nil
}

// GetBalance returns the balance of address, zero-valued for identities that
// were never referenced.
func (e *Engine) GetBalance(address string) (*BalanceResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	addr, err := e.validateAddress(address)
	if err != nil {
		return nil, err
	}
	bal, err := e.loadBalance(addr)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{
		Address:     addr,
		Balance:     FormatAmount(bal.Balance),
		TotalEarned: FormatAmount(bal.TotalEarned),
	}, nil
}

// GetQuest returns a single quest or ErrNotFound.
func (e *Engine) GetQuest(id uint64) (*QuestResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	q, ok, err := e.state.QuestGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || q == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return &QuestResponse{Quest: NewQuestView(q)}, nil
}

// GetActiveQuests scans every quest and keeps the open ones.
func (e *Engine) GetActiveQuests() (*ActiveQuestsResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	quests := make([]QuestView, 0)
	if err := e.state.QuestIterate(func(q *Quest) bool {
		if !q.Completed {
			quests = append(quests, NewQuestView(q))
		}
		return true
	}); err != nil {
		return nil, err
	}
	return &ActiveQuestsResponse{Quests: quests, Count: uint64(len(quests))}, nil
}

// GetUserQuests resolves the quests created by address in creation order.
// Index entries without a quest record are skipped.
func (e *Engine) GetUserQuests(address string) ([]QuestView, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	addr, err := e.validateAddress(address)
	if err != nil {
		return nil, err
	}
	ids, err := e.state.QuestUserIndexGet(addr)
	if err != nil {
		return nil, err
	}
	quests := make([]QuestView, 0, len(ids))
	for _, id := range ids {
		q, ok, err := e.state.QuestGet(id)
		if err != nil {
			return nil, err
		}
		if !ok || q == nil {
			continue
		}
		quests = append(quests, NewQuestView(q))
	}
	return quests, nil
}

// GetUserStats returns every counter of address, zero-valued for unknown
// identities.
func (e *Engine) GetUserStats(address string) (*UserStatsResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	addr, err := e.validateAddress(address)
	if err != nil {
		return nil, err
	}
	bal, err := e.loadBalance(addr)
	if err != nil {
		return nil, err
	}
	return &UserStatsResponse{
		Address:         addr,
		Balance:         FormatAmount(bal.Balance),
		TotalEarned:     FormatAmount(bal.TotalEarned),
		QuestsCreated:   bal.QuestsCreated,
		QuestsCompleted: bal.QuestsCompleted,
	}, nil
}
