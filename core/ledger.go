package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"questchain/core/events"
	"questchain/core/state"
	"questchain/core/types"
	"questchain/crypto"
	"questchain/native/quest"
	"questchain/observability"
	"questchain/observability/metrics"
	questotel "questchain/observability/otel"
	"questchain/storage"
)

// ErrLedgerClosed is returned by calls made after Close.
var ErrLedgerClosed = errors.New("core: ledger closed")

const journalTimeout = 5 * time.Second

// Journal receives the events of every committed call.
type Journal interface {
	Append(ctx context.Context, height, blockTime uint64, sender string, evts []types.Event) error
}

// Result describes a committed mutating call.
type Result struct {
	Height uint64        `json:"height"`
	Time   uint64        `json:"time"`
	Events []types.Event `json:"events"`
}

// Ledger hosts the quest engine over a persistent database. Calls are
// serialised; each mutating call runs against a write cache that is flushed
// in one batch on success and dropped on failure.
type Ledger struct {
	mu        sync.RWMutex
	db        storage.Database
	head      state.ChainHead
	validator crypto.Validator
	journal   Journal
	emitter   events.Emitter
	clock     func() time.Time
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics.LedgerMetrics
}

// NewLedger opens a ledger over db, stamping or verifying the schema version
// and restoring the chain head.
func NewLedger(db storage.Database, allowMigrate bool) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	mgr := state.NewManager(db)
	if err := state.EnsureStateVersion(mgr, allowMigrate); err != nil {
		return nil, err
	}
	head, err := mgr.ChainHead()
	if err != nil {
		return nil, fmt.Errorf("core: load chain head: %w", err)
	}
	l := &Ledger{
		db:        db,
		head:      head,
		validator: crypto.Bech32Validator{Prefix: crypto.QuestPrefix},
		emitter:   events.NoopEmitter{},
		clock:     time.Now,
		logger:    slog.Default().With(slog.String("component", "ledger")),
		tracer:    questotel.Tracer("questchain/core"),
		metrics:   metrics.Ledger(),
	}
	l.metrics.SetHeight(head.Height)
	return l, nil
}

// SetValidator configures identity validation for every call.
func (l *Ledger) SetValidator(v crypto.Validator) {
	if v == nil {
		v = crypto.Bech32Validator{Prefix: crypto.QuestPrefix}
	}
	l.validator = v
}

// SetJournal configures the sink for committed events. Nil disables it.
func (l *Ledger) SetJournal(j Journal) { l.journal = j }

// SetEmitter configures the subscriber notified after each commit.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// SetClock overrides the source of block time.
func (l *Ledger) SetClock(clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	l.clock = clock
}

// SetLogger overrides the structured logger.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	l.logger = logger.With(slog.String("component", "ledger"))
}

// Head returns the last committed height and block time.
func (l *Ledger) Head() state.ChainHead {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head
}

// nextBlockTime never runs backwards relative to the committed head. A
// non-zero at pins the time instead of reading the clock.
func (l *Ledger) nextBlockTime(at time.Time) uint64 {
	if at.IsZero() {
		at = l.clock()
	}
	now := at.Unix()
	if now < 0 {
		now = 0
	}
	ts := uint64(now)
	if ts < l.head.Time {
		ts = l.head.Time
	}
	return ts
}

func (l *Ledger) newEngine(mgr *state.Manager, emitter events.Emitter) *quest.Engine {
	engine := quest.NewEngine()
	engine.SetState(mgr)
	engine.SetEmitter(emitter)
	engine.SetValidator(l.validator)
	return engine
}

type mutation func(engine *quest.Engine, env quest.Env, info quest.MessageInfo) (*types.Event, error)

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return quest.ErrorKind(err)
}

func (l *Ledger) apply(ctx context.Context, method, sender string, at time.Time, fn mutation) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil, ErrLedgerClosed
	}

	ctx, span := l.tracer.Start(ctx, "ledger."+method, trace.WithAttributes(attribute.String("quest.method", method)))
	defer span.End()
	start := time.Now()

	cache := storage.NewCacheDB(l.db)
	mgr := state.NewManager(cache)
	recorder := &events.Recorder{}
	env := quest.Env{Height: l.head.Height + 1, Time: l.nextBlockTime(at)}

	_, err := fn(l.newEngine(mgr, recorder), env, quest.MessageInfo{Sender: sender})
	if err == nil {
		err = mgr.SetChainHead(state.ChainHead{Height: env.Height, Time: env.Time})
	}
	if err != nil {
		cache.Discard()
		l.metrics.ObserveCall(method, outcomeOf(err), time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, quest.ErrorKind(err))
		l.logger.Info("call rejected",
			slog.String("method", method),
			slog.String("sender", sender),
			slog.String("reason", quest.ErrorKind(err)),
			slog.Any("error", err))
		return nil, err
	}
	keys := cache.Pending()
	if err := cache.Commit(); err != nil {
		l.metrics.ObserveCall(method, quest.KindInternal, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit")
		return nil, fmt.Errorf("core: commit %s: %w", method, err)
	}
	l.head = state.ChainHead{Height: env.Height, Time: env.Time}
	l.metrics.ObserveCommit(keys)
	l.metrics.SetHeight(env.Height)
	l.metrics.ObserveCall(method, outcomeOf(nil), time.Since(start))

	recorded := recorder.Events()
	result := &Result{Height: env.Height, Time: env.Time, Events: make([]types.Event, 0, len(recorded))}
	for _, evt := range recorded {
		result.Events = append(result.Events, *evt)
	}
	if l.journal != nil {
		// State is already committed; the caller going away must not drop the rows.
		journalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
		err := l.journal.Append(journalCtx, env.Height, env.Time, sender, result.Events)
		cancel()
		if err != nil {
			l.logger.Error("journal append failed", slog.Uint64("height", env.Height), slog.Any("error", err))
		}
	}
	for _, evt := range recorded {
		observability.Events().RecordEvent(evt.Type)
		l.emitter.Emit(events.Wrap(evt))
	}
	span.SetAttributes(attribute.Int64("quest.height", int64(env.Height)))
	l.logger.Debug("call committed",
		slog.String("method", method),
		slog.String("sender", sender),
		slog.Uint64("height", env.Height),
		slog.Int("events", len(result.Events)))
	return result, nil
}

// Instantiate initializes the ledger. It succeeds at most once per database.
func (l *Ledger) Instantiate(ctx context.Context, sender string, msg quest.InstantiateMsg) (*Result, error) {
	return l.InstantiateAt(ctx, sender, msg, time.Time{})
}

// InstantiateAt behaves like Instantiate with the block time pinned to at.
func (l *Ledger) InstantiateAt(ctx context.Context, sender string, msg quest.InstantiateMsg, at time.Time) (*Result, error) {
	return l.apply(ctx, quest.MethodInstantiate, sender, at, func(engine *quest.Engine, env quest.Env, info quest.MessageInfo) (*types.Event, error) {
		return engine.Instantiate(env, info, msg)
	})
}

// Execute applies a mutating message on behalf of sender.
func (l *Ledger) Execute(ctx context.Context, sender string, msg ExecuteMsg) (*Result, error) {
	var fn mutation
	switch {
	case msg.CreateQuest != nil:
		m := *msg.CreateQuest
		fn = func(engine *quest.Engine, env quest.Env, info quest.MessageInfo) (*types.Event, error) {
			return engine.CreateQuest(env, info, m.Name, m.Description, m.RewardAmount)
		}
	case msg.CompleteQuest != nil:
		id := uint64(msg.CompleteQuest.QuestID)
		fn = func(engine *quest.Engine, env quest.Env, info quest.MessageInfo) (*types.Event, error) {
			return engine.CompleteQuest(env, info, id)
		}
	case msg.Transfer != nil:
		m := *msg.Transfer
		fn = func(engine *quest.Engine, env quest.Env, info quest.MessageInfo) (*types.Event, error) {
			return engine.Transfer(env, info, m.Recipient, m.Amount)
		}
	case msg.AdminWithdraw != nil:
		amount := msg.AdminWithdraw.Amount
		fn = func(engine *quest.Engine, env quest.Env, info quest.MessageInfo) (*types.Event, error) {
			return engine.AdminWithdraw(env, info, amount)
		}
	default:
		return nil, fmt.Errorf("%w: empty execute message", ErrInvalidMessage)
	}
	return l.apply(ctx, msg.Method(), sender, time.Time{}, fn)
}

// Query answers a read-only message against committed state.
func (l *Ledger) Query(ctx context.Context, msg QueryMsg) (any, error) {
	method := msg.Method()
	if method == "" {
		return nil, fmt.Errorf("%w: empty query message", ErrInvalidMessage)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return nil, ErrLedgerClosed
	}

	_, span := l.tracer.Start(ctx, "ledger."+method)
	defer span.End()
	start := time.Now()

	engine := l.newEngine(state.NewManager(l.db), events.NoopEmitter{})
	var (
		out any
		err error
	)
	switch {
	case msg.GetConfig != nil:
		out, err = engine.GetConfig()
	case msg.GetBalance != nil:
		out, err = engine.GetBalance(msg.GetBalance.Address)
	case msg.GetQuest != nil:
		out, err = engine.GetQuest(uint64(msg.GetQuest.QuestID))
	case msg.GetActiveQuests != nil:
		out, err = engine.GetActiveQuests()
	case msg.GetUserQuests != nil:
		out, err = engine.GetUserQuests(msg.GetUserQuests.Address)
	case msg.GetUserStats != nil:
		out, err = engine.GetUserStats(msg.GetUserStats.Address)
	}
	l.metrics.ObserveCall(method, outcomeOf(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, quest.ErrorKind(err))
		return nil, err
	}
	return out, nil
}

// IsInitialized reports whether Instantiate has committed.
func (l *Ledger) IsInitialized() (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return false, ErrLedgerClosed
	}
	_, ok, err := state.NewManager(l.db).QuestConfigGet()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
