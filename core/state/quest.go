package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"questchain/native/quest"
)

var (
	questConfigKey       = []byte("quest/config")
	questBalancePrefix   = []byte("quest/balance/")
	questRecordPrefix    = []byte("quest/record/")
	questUserIndexPrefix = []byte("quest/user-quests/")
)

type storedQuestConfig struct {
	Owner            string
	QuestCreationFee *big.Int
	TotalQuests      uint64
	TotalCompleted   uint64
}

type storedQuestBalance struct {
	Address         string
	Balance         *big.Int
	TotalEarned     *big.Int
	QuestsCreated   uint64
	QuestsCompleted uint64
}

type storedQuest struct {
	ID           uint64
	Creator      string
	Name         string
	Description  string
	RewardAmount *big.Int
	Completed    bool
	CompletedBy  string
	CreatedAt    uint64
	CompletedAt  uint64
}

// QuestRecordKey returns the key holding quest id. Ids are big-endian so a
// prefix scan yields quests in ascending id order.
func QuestRecordKey(id uint64) []byte {
	key := make([]byte, len(questRecordPrefix)+8)
	copy(key, questRecordPrefix)
	binary.BigEndian.PutUint64(key[len(questRecordPrefix):], id)
	return key
}

// QuestBalanceKey returns the key holding the balance record of addr.
func QuestBalanceKey(addr string) []byte {
	return identityKey(questBalancePrefix, addr)
}

// QuestUserIndexKey returns the key holding the ids of quests created by addr.
func QuestUserIndexKey(addr string) []byte {
	return identityKey(questUserIndexPrefix, addr)
}

func bigFromAmount(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

func amountFromBig(field string, v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return nil, fmt.Errorf("state: stored %s out of range", field)
	}
	return out, nil
}

// QuestConfigGet returns the ledger config when instantiated.
func (m *Manager) QuestConfigGet() (*quest.Config, bool, error) {
	var stored storedQuestConfig
	ok, err := m.KVGet(questConfigKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	fee, err := amountFromBig("quest creation fee", stored.QuestCreationFee)
	if err != nil {
		return nil, false, err
	}
	return &quest.Config{
		Owner:            stored.Owner,
		QuestCreationFee: fee,
		TotalQuests:      stored.TotalQuests,
		TotalCompleted:   stored.TotalCompleted,
	}, true, nil
}

// QuestConfigPut persists the ledger config.
func (m *Manager) QuestConfigPut(cfg *quest.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: quest config must not be nil")
	}
	return m.KVPut(questConfigKey, &storedQuestConfig{
		Owner:            cfg.Owner,
		QuestCreationFee: bigFromAmount(cfg.QuestCreationFee),
		TotalQuests:      cfg.TotalQuests,
		TotalCompleted:   cfg.TotalCompleted,
	})
}

// QuestBalanceGet returns the balance record of addr if one was ever written.
func (m *Manager) QuestBalanceGet(addr string) (*quest.UserBalance, bool, error) {
	var stored storedQuestBalance
	ok, err := m.KVGet(QuestBalanceKey(addr), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	balance, err := amountFromBig("balance", stored.Balance)
	if err != nil {
		return nil, false, err
	}
	earned, err := amountFromBig("total earned", stored.TotalEarned)
	if err != nil {
		return nil, false, err
	}
	return &quest.UserBalance{
		Address:         stored.Address,
		Balance:         balance,
		TotalEarned:     earned,
		QuestsCreated:   stored.QuestsCreated,
		QuestsCompleted: stored.QuestsCompleted,
	}, true, nil
}

// QuestBalancePut persists a balance record keyed by its address.
func (m *Manager) QuestBalancePut(balance *quest.UserBalance) error {
	if balance == nil {
		return fmt.Errorf("state: balance must not be nil")
	}
	if balance.Address == "" {
		return fmt.Errorf("state: balance address must not be empty")
	}
	return m.KVPut(QuestBalanceKey(balance.Address), &storedQuestBalance{
		Address:         balance.Address,
		Balance:         bigFromAmount(balance.Balance),
		TotalEarned:     bigFromAmount(balance.TotalEarned),
		QuestsCreated:   balance.QuestsCreated,
		QuestsCompleted: balance.QuestsCompleted,
	})
}

func questFromStored(stored *storedQuest) (*quest.Quest, error) {
	reward, err := amountFromBig("reward amount", stored.RewardAmount)
	if err != nil {
		return nil, err
	}
	return &quest.Quest{
		ID:           stored.ID,
		Creator:      stored.Creator,
		Name:         stored.Name,
		Description:  stored.Description,
		RewardAmount: reward,
		Completed:    stored.Completed,
		CompletedBy:  stored.CompletedBy,
		CreatedAt:    stored.CreatedAt,
		CompletedAt:  stored.CompletedAt,
	}, nil
}

// QuestGet returns the quest stored under id.
func (m *Manager) QuestGet(id uint64) (*quest.Quest, bool, error) {
	var stored storedQuest
	ok, err := m.KVGet(QuestRecordKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	q, err := questFromStored(&stored)
	if err != nil {
		return nil, false, err
	}
	return q, true, nil
}

// QuestPut persists a quest under its id.
func (m *Manager) QuestPut(q *quest.Quest) error {
	if q == nil {
		return fmt.Errorf("state: quest must not be nil")
	}
	return m.KVPut(QuestRecordKey(q.ID), &storedQuest{
		ID:           q.ID,
		Creator:      q.Creator,
		Name:         q.Name,
		Description:  q.Description,
		RewardAmount: bigFromAmount(q.RewardAmount),
		Completed:    q.Completed,
		CompletedBy:  q.CompletedBy,
		CreatedAt:    q.CreatedAt,
		CompletedAt:  q.CompletedAt,
	})
}

// QuestIterate walks every stored quest in ascending id order until fn
// returns false.
func (m *Manager) QuestIterate(fn func(*quest.Quest) bool) error {
	if err := m.ready(); err != nil {
		return err
	}
	var decodeErr error
	err := m.db.Iterate(questRecordPrefix, func(key, value []byte) bool {
		var stored storedQuest
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			decodeErr = fmt.Errorf("state: decode quest %x: %w", key, err)
			return false
		}
		q, err := questFromStored(&stored)
		if err != nil {
			decodeErr = err
			return false
		}
		return fn(q)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// QuestUserIndexGet returns the ids of quests created by addr in creation
// order.
func (m *Manager) QuestUserIndexGet(addr string) ([]uint64, error) {
	var ids []uint64
	if err := m.KVGetList(QuestUserIndexKey(addr), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// QuestUserIndexAppend records that addr created quest id. The index is
// append-only.
func (m *Manager) QuestUserIndexAppend(addr string, id uint64) error {
	ids, err := m.QuestUserIndexGet(addr)
	if err != nil {
		return err
	}
	ids = append(ids, id)
	return m.KVPut(QuestUserIndexKey(addr), ids)
}
