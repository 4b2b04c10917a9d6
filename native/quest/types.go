package quest

import "github.com/holiman/uint256"

// Config is the ledger-wide singleton written once at initialization.
type Config struct {
	Owner            string
	QuestCreationFee *uint256.Int
	// TotalQuests doubles as the id of the most recently created quest.
	TotalQuests    uint64
	TotalCompleted uint64
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.QuestCreationFee = cloneAmount(c.QuestCreationFee)
	return &clone
}

// UserBalance tracks the bookkeeping balance and counters of one identity.
type UserBalance struct {
	Address         string
	Balance         *uint256.Int
	TotalEarned     *uint256.Int
	QuestsCreated   uint64
	QuestsCompleted uint64
}

// Clone returns a deep copy of the balance record.
func (b *UserBalance) Clone() *UserBalance {
	if b == nil {
		return nil
	}
	clone := *b
	clone.Balance = cloneAmount(b.Balance)
	clone.TotalEarned = cloneAmount(b.TotalEarned)
	return &clone
}

// Quest is a task with a fixed reward that any identity other than its
// creator may complete once.
type Quest struct {
	ID           uint64
	Creator      string
	Name         string
	Description  string
	RewardAmount *uint256.Int
	Completed    bool
	CompletedBy  string
	CreatedAt    uint64
	CompletedAt  uint64
}

// Clone returns a deep copy of the quest.
func (q *Quest) Clone() *Quest {
	if q == nil {
		return nil
	}
	clone := *q
	clone.RewardAmount = cloneAmount(q.RewardAmount)
	return &clone
}

// Env carries the block metadata supplied by the host for one message.
type Env struct {
	Height uint64
	// Time is the block time in unix seconds.
	Time uint64
}

// MessageInfo identifies the sender of a message.
type MessageInfo struct {
	Sender string
}

// InstantiateMsg configures a fresh ledger. Amounts are decimal strings.
type InstantiateMsg struct {
	Owner            *string `json:"owner,omitempty" yaml:"owner,omitempty"`
	QuestCreationFee string  `json:"quest_creation_fee" yaml:"quest_creation_fee"`
	InitialBalance   string  `json:"initial_balance" yaml:"initial_balance"`
}

func newUserBalance(addr string) *UserBalance {
	return &UserBalance{
		Address:     addr,
		Balance:     new(uint256.Int),
		TotalEarned: new(uint256.Int),
	}
}

func ensureBalance(bal *UserBalance, addr string) *UserBalance {
	if bal == nil {
		return newUserBalance(addr)
	}
	if bal.Balance == nil {
		bal.Balance = new(uint256.Int)
	}
	if bal.TotalEarned == nil {
		bal.TotalEarned = new(uint256.Int)
	}
	return bal
}
