package quest

import (
	"errors"
	"fmt"

	"questchain/core/events"
	"questchain/core/types"
	"questchain/crypto"
)

var errNilState = errors.New("quest engine: state not configured")

type engineState interface {
	QuestConfigGet() (*Config, bool, error)
	QuestConfigPut(cfg *Config) error
	QuestBalanceGet(addr string) (*UserBalance, bool, error)
	QuestBalancePut(balance *UserBalance) error
	QuestGet(id uint64) (*Quest, bool, error)
	QuestPut(quest *Quest) error
	// QuestIterate walks quests in ascending id order until fn returns false.
	QuestIterate(fn func(*Quest) bool) error
	QuestUserIndexGet(addr string) ([]uint64, error)
	QuestUserIndexAppend(addr string, id uint64) error
}

// Engine applies quest ledger messages against the configured state. Every
// mutating method validates all preconditions before its first write, so a
// returned error means state was left untouched.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	validator crypto.Validator
}

// NewEngine constructs a quest engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		validator: crypto.Bech32Validator{Prefix: crypto.QuestPrefix},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetValidator configures the identity validator. A nil validator restores
// the bech32 default.
func (e *Engine) SetValidator(v crypto.Validator) {
	if v == nil {
		e.validator = crypto.Bech32Validator{Prefix: crypto.QuestPrefix}
		return
	}
	e.validator = v
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) validateAddress(addr string) (string, error) {
	canonical, err := e.validator.Validate(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return canonical, nil
}

func (e *Engine) loadConfig() (*Config, error) {
	cfg, ok, err := e.state.QuestConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return nil, ErrNotInitialized
	}
	if cfg.QuestCreationFee == nil {
		cfg.QuestCreationFee = cloneAmount(nil)
	}
	return cfg, nil
}

// loadBalance returns the stored record for addr or a zero-valued one when
// the identity was never seen. Absence is not an error.
func (e *Engine) loadBalance(addr string) (*UserBalance, error) {
	bal, ok, err := e.state.QuestBalanceGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return newUserBalance(addr), nil
	}
	return ensureBalance(bal, addr), nil
}

// Instantiate writes the ledger config and credits the sender with the
// initial balance. It is the only path that creates balance without a
// matching debit besides quest rewards.
func (e *Engine) Instantiate(env Env, info MessageInfo, msg InstantiateMsg) (*types.Event, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	sender, err := e.validateAddress(info.Sender)
	if err != nil {
		return nil, err
	}
	owner := sender
	if msg.Owner != nil {
		owner, err = e.validateAddress(*msg.Owner)
		if err != nil {
			return nil, err
		}
	}
	fee, err := ParseAmount("quest_creation_fee", msg.QuestCreationFee)
	if err != nil {
		return nil, err
	}
	initial, err := ParseAmount("initial_balance", msg.InitialBalance)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.QuestConfigGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}

	cfg := &Config{Owner: owner, QuestCreationFee: fee}
	balance := newUserBalance(sender)
	balance.Balance = initial

	if err := e.state.QuestConfigPut(cfg); err != nil {
		return nil, err
	}
	if err := e.state.QuestBalancePut(balance); err != nil {
		return nil, err
	}
	evt := instantiatedEvent(owner, msg.InitialBalance)
	e.emit(evt)
	return evt, nil
}

// CreateQuest charges the creation fee to the sender and records a new open
// quest with the next sequential id.
func (e *Engine) CreateQuest(env Env, info MessageInfo, name, description, rewardAmount string) (*types.Event, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	reward, err := ParseAmount("reward_amount", rewardAmount)
	if err != nil {
		return nil, err
	}
	creator, err := e.validateAddress(info.Sender)
	if err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	balance, err := e.loadBalance(creator)
	if err != nil {
		return nil, err
	}
	if balance.Balance.Lt(cfg.QuestCreationFee) {
		return nil, &InsufficientFundsError{
			Required:  cloneAmount(cfg.QuestCreationFee),
			Available: cloneAmount(balance.Balance),
		}
	}
	remaining, err := subAmount(balance.Balance, cfg.QuestCreationFee)
	if err != nil {
		return nil, err
	}
	balance.Balance = remaining
	balance.QuestsCreated++

	cfg.TotalQuests++
	quest := &Quest{
		ID:           cfg.TotalQuests,
		Creator:      creator,
		Name:         name,
		Description:  description,
		RewardAmount: reward,
		CreatedAt:    env.Time,
	}

	if err := e.state.QuestConfigPut(cfg); err != nil {
		return nil, err
	}
	if err := e.state.QuestPut(quest); err != nil {
		return nil, err
	}
	if err := e.state.QuestBalancePut(balance); err != nil {
		return nil, err
	}
	if err := e.state.QuestUserIndexAppend(creator, quest.ID); err != nil {
		return nil, err
	}
	evt := createdEvent(quest, cfg.QuestCreationFee, balance.Balance)
	e.emit(evt)
	return evt, nil
}

// CompleteQuest marks an open quest completed by the sender and mints the
// reward into the sender's balance. The creator's balance record is
// materialized as a side effect even though its amounts do not change.
func (e *Engine) CompleteQuest(env Env, info MessageInfo, questID uint64) (*types.Event, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	completerAddr, err := e.validateAddress(info.Sender)
	if err != nil {
		return nil, err
	}
	quest, ok, err := e.state.QuestGet(questID)
	if err != nil {
		return nil, err
	}
	if !ok || quest == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, questID)
	}
	if quest.Completed {
		return nil, fmt.Errorf("%w: id %d", ErrAlreadyCompleted, questID)
	}
	if quest.Creator == completerAddr {
		return nil, ErrSelfCompletion
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}

	completer, err := e.loadBalance(completerAddr)
	if err != nil {
		return nil, err
	}
	newBalance, err := addAmount(completer.Balance, quest.RewardAmount)
	if err != nil {
		return nil, err
	}
	newEarned, err := addAmount(completer.TotalEarned, quest.RewardAmount)
	if err != nil {
		return nil, err
	}
	completer.Balance = newBalance
	completer.TotalEarned = newEarned
	completer.QuestsCompleted++

	creator, err := e.loadBalance(quest.Creator)
	if err != nil {
		return nil, err
	}

	quest.Completed = true
	quest.CompletedBy = completerAddr
	quest.CompletedAt = env.Time
	cfg.TotalCompleted++

	if err := e.state.QuestPut(quest); err != nil {
		return nil, err
	}
	if err := e.state.QuestBalancePut(completer); err != nil {
		return nil, err
	}
	if err := e.state.QuestBalancePut(creator); err != nil {
		return nil, err
	}
	if err := e.state.QuestConfigPut(cfg); err != nil {
		return nil, err
	}
	evt := completedEvent(quest, completer)
	e.emit(evt)
	return evt, nil
}

// Transfer moves amount from the sender to recipient. Total balance is
// conserved; a transfer to oneself leaves the balance unchanged.
func (e *Engine) Transfer(env Env, info MessageInfo, recipient string, amount string) (*types.Event, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	value, err := ParseAmount("amount", amount)
	if err != nil {
		return nil, err
	}
	from, err := e.validateAddress(info.Sender)
	if err != nil {
		return nil, err
	}
	to, err := e.validateAddress(recipient)
	if err != nil {
		return nil, err
	}
	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}

	sender, err := e.loadBalance(from)
	if err != nil {
		return nil, err
	}
	if sender.Balance.Lt(value) {
		return nil, &InsufficientFundsError{Required: cloneAmount(value), Available: cloneAmount(sender.Balance)}
	}
	if from == to {
		if err := e.state.QuestBalancePut(sender); err != nil {
			return nil, err
		}
		evt := transferredEvent(from, to, value, sender, sender)
		e.emit(evt)
		return evt, nil
	}

	receiver, err := e.loadBalance(to)
	if err != nil {
		return nil, err
	}
	credited, err := addAmount(receiver.Balance, value)
	if err != nil {
		return nil, err
	}
	debited, err := subAmount(sender.Balance, value)
	if err != nil {
		return nil, err
	}
	sender.Balance = debited
	receiver.Balance = credited

	if err := e.state.QuestBalancePut(sender); err != nil {
		return nil, err
	}
	if err := e.state.QuestBalancePut(receiver); err != nil {
		return nil, err
	}
	evt := transferredEvent(from, to, value, sender, receiver)
	e.emit(evt)
	return evt, nil
}

// AdminWithdraw burns amount from the owner's balance. Only the configured
// owner may call it.
func (e *Engine) AdminWithdraw(env Env, info MessageInfo, amount string) (*types.Event, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	value, err := ParseAmount("amount", amount)
	if err != nil {
		return nil, err
	}
	caller, err := e.validateAddress(info.Sender)
	if err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if caller != cfg.Owner {
		return nil, ErrUnauthorized
	}
	owner, err := e.loadBalance(cfg.Owner)
	if err != nil {
		return nil, err
	}
	if owner.Balance.Lt(value) {
		return nil, &InsufficientFundsError{Required: cloneAmount(value), Available: cloneAmount(owner.Balance)}
	}
	remaining, err := subAmount(owner.Balance, value)
	if err != nil {
		return nil, err
	}
	owner.Balance = remaining
	if err := e.state.QuestBalancePut(owner); err != nil {
		return nil, err
	}
	evt := withdrawnEvent(value, owner)
	e.emit(evt)
	return evt, nil
}
