package quest

import (
	"strconv"

	"questchain/core/types"

	"github.com/holiman/uint256"
)

const (
	// EventTypeInstantiated is emitted once when the ledger is initialized.
	EventTypeInstantiated = "quest.instantiated"
	// EventTypeCreated is emitted when a quest is created.
	EventTypeCreated = "quest.created"
	// EventTypeCompleted is emitted when a quest is completed.
	EventTypeCompleted = "quest.completed"
	// EventTypeTransferred is emitted when balance moves between identities.
	EventTypeTransferred = "quest.transferred"
	// EventTypeWithdrawn is emitted when the owner burns balance.
	EventTypeWithdrawn = "quest.withdrawn"
)

// Method names carried in the "method" attribute.
const (
	MethodInstantiate   = "instantiate"
	MethodCreateQuest   = "create_quest"
	MethodCompleteQuest = "complete_quest"
	MethodTransfer      = "transfer"
	MethodAdminWithdraw = "admin_withdraw"
)

func instantiatedEvent(owner string, initialBalance string) *types.Event {
	return types.NewEvent(EventTypeInstantiated,
		"method", MethodInstantiate,
		"owner", owner,
		"initial_balance", initialBalance,
	)
}

func createdEvent(quest *Quest, fee *uint256.Int, newBalance *uint256.Int) *types.Event {
	return types.NewEvent(EventTypeCreated,
		"method", MethodCreateQuest,
		"quest_id", strconv.FormatUint(quest.ID, 10),
		"quest_name", quest.Name,
		"creator", quest.Creator,
		"fee_deducted", FormatAmount(fee),
		"reward", FormatAmount(quest.RewardAmount),
		"new_balance", FormatAmount(newBalance),
	)
}

func completedEvent(quest *Quest, completer *UserBalance) *types.Event {
	return types.NewEvent(EventTypeCompleted,
		"method", MethodCompleteQuest,
		"quest_id", strconv.FormatUint(quest.ID, 10),
		"completed_by", quest.CompletedBy,
		"reward", FormatAmount(quest.RewardAmount),
		"new_balance", FormatAmount(completer.Balance),
		"total_earned", FormatAmount(completer.TotalEarned),
	)
}

func transferredEvent(from, to string, amount *uint256.Int, sender, recipient *UserBalance) *types.Event {
	return types.NewEvent(EventTypeTransferred,
		"method", MethodTransfer,
		"from", from,
		"to", to,
		"amount", FormatAmount(amount),
		"sender_new_balance", FormatAmount(sender.Balance),
		"recipient_new_balance", FormatAmount(recipient.Balance),
	)
}

func withdrawnEvent(amount *uint256.Int, owner *UserBalance) *types.Event {
	return types.NewEvent(EventTypeWithdrawn,
		"method", MethodAdminWithdraw,
		"amount", FormatAmount(amount),
		"new_balance", FormatAmount(owner.Balance),
	)
}
