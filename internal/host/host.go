// Package host executes sale operations atomically.
//
// A Host owns the sale's escrow account. Each call moves the attached funds
// into escrow, runs the handler in one storage transaction, dispatches the
// emitted transfer and commits. Any failure rolls the transaction back and
// returns the attached funds to the caller.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"presale-ledger/internal/account"
	"presale-ledger/internal/domain"
	"presale-ledger/internal/idhash"
	"presale-ledger/internal/ledger"
	"presale-ledger/internal/observability"
	"presale-ledger/internal/presale"
	"presale-ledger/internal/storage"
)

// Publisher receives every committed event.
type Publisher interface {
	Publish(e *domain.SaleEvent)
}

// Options configures a Host.
type Options struct {
	Store     storage.Store
	Events    storage.EventStore
	Bank      ledger.Bank
	Tokens    ledger.TokenService
	Address   string // escrow address of the sale
	Clock     Clock
	Publisher Publisher // optional
	Logger    zerolog.Logger
}

// Host serializes and executes sale operations.
type Host struct {
	mu sync.Mutex

	store     storage.Store
	events    storage.EventStore
	bank      ledger.Bank
	tokens    ledger.TokenService
	contract  *presale.Contract
	address   string
	clock     Clock
	publisher Publisher
	logger    zerolog.Logger

	seq uint64 // last used event sequence
}

// New creates a Host and resumes the event sequence from opts.Events.
func New(ctx context.Context, opts Options) (*Host, error) {
	if opts.Store == nil || opts.Events == nil || opts.Bank == nil || opts.Tokens == nil {
		return nil, errors.New("host: store, events, bank and tokens are required")
	}
	if err := account.Validate(opts.Address); err != nil {
		return nil, fmt.Errorf("host: escrow address: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	last, err := opts.Events.LastSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("host: load last sequence: %w", err)
	}

	return &Host{
		store:     opts.Store,
		events:    opts.Events,
		bank:      opts.Bank,
		tokens:    opts.Tokens,
		contract:  presale.New(querier{bank: opts.Bank, tokens: opts.Tokens}),
		address:   opts.Address,
		clock:     opts.Clock,
		publisher: opts.Publisher,
		logger:    opts.Logger.With().Str("component", "host").Logger(),
		seq:       last,
	}, nil
}

// Address returns the escrow address of the sale.
func (h *Host) Address() string {
	return h.address
}

// Instantiate creates the sale.
func (h *Host) Instantiate(ctx context.Context, sender string, msg presale.InstantiateMsg) (*domain.SaleEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	now := h.clock.Now().Unix()

	res, st, err := h.inTx(ctx, func(tx storage.Tx) (*presale.Response, error) {
		return presale.Instantiate(ctx, tx, msg)
	})
	h.observe("instantiate", sender, start, err)
	if err != nil {
		return nil, err
	}
	return h.record(ctx, "instantiate", sender, now, st, res), nil
}

// Migrate upgrades the stored contract version.
func (h *Host) Migrate(ctx context.Context, sender string) (*domain.SaleEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	now := h.clock.Now().Unix()

	res, st, err := h.inTx(ctx, func(tx storage.Tx) (*presale.Response, error) {
		return presale.Migrate(ctx, tx, presale.MigrateMsg{})
	})
	h.observe("migrate", sender, start, err)
	if err != nil {
		return nil, err
	}
	return h.record(ctx, "migrate", sender, now, st, res), nil
}

// Execute runs msg on behalf of sender with funds attached.
func (h *Host) Execute(ctx context.Context, sender string, funds []domain.Coin, msg presale.ExecuteMsg) (*domain.SaleEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	action := string(msg.Action)
	start := time.Now()
	now := h.clock.Now()

	ev, err := h.execute(ctx, sender, funds, msg, uint64(now.Unix()))
	h.observe(action, sender, start, err)
	return ev, err
}

func (h *Host) execute(ctx context.Context, sender string, funds []domain.Coin, msg presale.ExecuteMsg, now uint64) (*domain.SaleEvent, error) {
	if err := account.Validate(sender); err != nil {
		return nil, err
	}
	if !msg.Action.IsValid() {
		return nil, fmt.Errorf("%w: %q", presale.ErrUnknownAction, msg.Action)
	}

	if msg.Action.AdvancesLifecycle() {
		if err := h.advance(ctx, now); err != nil {
			return nil, err
		}
	}

	moved := movable(funds)
	if len(moved) > 0 {
		if err := h.bank.Send(ctx, sender, h.address, moved); err != nil {
			return nil, fmt.Errorf("attach funds: %w", err)
		}
	}

	env := presale.Env{Now: now, Contract: h.address}
	info := presale.Info{Sender: sender, Funds: funds}

	var undo []func()
	res, st, err := h.inTx(ctx, func(tx storage.Tx) (*presale.Response, error) {
		res, err := h.contract.Execute(ctx, tx, env, info, msg)
		if err != nil {
			return nil, err
		}
		for _, m := range res.Messages {
			u, err := h.dispatch(ctx, m)
			if err != nil {
				return nil, fmt.Errorf("dispatch %s: %w", m.Kind, err)
			}
			undo = append(undo, u)
		}
		return res, nil
	})
	if err != nil {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		if len(moved) > 0 {
			h.returnFunds(ctx, sender, moved, msg.Action)
		}
		return nil, err
	}

	for _, m := range res.Messages {
		observability.RecordSettlement(string(m.Kind))
	}
	return h.record(ctx, string(msg.Action), sender, int64(now), st, res), nil
}

// advance persists the lifecycle transition implied by now in its own
// transaction, so it survives a failure of the operation that follows.
func (h *Host) advance(ctx context.Context, now uint64) error {
	tx, err := h.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	before, err := presale.QueryState(ctx, tx)
	if err != nil {
		return err
	}
	_, after, err := presale.AdvanceLifecycle(ctx, tx, now)
	if err != nil {
		return err
	}
	if after.Status == before.Status {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit lifecycle: %w", err)
	}

	observability.RecordLifecycleAdvance(after.Status.String())
	h.logger.Info().
		Str("from", before.Status.String()).
		Str("to", after.Status.String()).
		Uint64("now", now).
		Msg("Sale status advanced")
	return nil
}

// inTx runs fn in a transaction and commits on success. It returns the
// state as committed.
func (h *Host) inTx(ctx context.Context, fn func(tx storage.Tx) (*presale.Response, error)) (*presale.Response, *domain.SaleState, error) {
	tx, err := h.store.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := fn(tx)
	if err != nil {
		return nil, nil, err
	}
	st, err := tx.GetState(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load state: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return res, st, nil
}

// dispatch executes one outgoing transfer from escrow and returns its
// compensation.
func (h *Host) dispatch(ctx context.Context, m domain.Message) (func(), error) {
	switch m.Kind {
	case domain.MessageTokenTransfer:
		if err := h.tokens.Transfer(ctx, m.Contract, h.address, m.Recipient, m.Amount); err != nil {
			return nil, err
		}
		return func() {
			if err := h.tokens.Transfer(context.Background(), m.Contract, m.Recipient, h.address, m.Amount); err != nil {
				h.logger.Error().Err(err).Str("recipient", m.Recipient).Msg("Failed to reverse token transfer")
			}
		}, nil
	case domain.MessageBankSend:
		if err := h.bank.Send(ctx, h.address, m.Recipient, m.Coins); err != nil {
			return nil, err
		}
		return func() {
			if err := h.bank.Send(context.Background(), m.Recipient, h.address, m.Coins); err != nil {
				h.logger.Error().Err(err).Str("recipient", m.Recipient).Msg("Failed to reverse bank send")
			}
		}, nil
	}
	return nil, fmt.Errorf("unknown message kind %q", m.Kind)
}

func (h *Host) returnFunds(ctx context.Context, sender string, coins []domain.Coin, action presale.Action) {
	if err := h.bank.Send(context.WithoutCancel(ctx), h.address, sender, coins); err != nil {
		h.logger.Error().Err(err).Str("sender", sender).Msg("Failed to return attached funds")
		return
	}
	observability.RecordFundsReturned(string(action))
}

// record stores and publishes the event of a committed operation.
func (h *Host) record(ctx context.Context, action, sender string, now int64, st *domain.SaleState, res *presale.Response) *domain.SaleEvent {
	h.seq++
	ev := &domain.SaleEvent{
		EventID:   idhash.ComputeEventID(h.address, h.seq, action, sender, now),
		Sequence:  h.seq,
		Action:    action,
		Sender:    sender,
		Timestamp: now,
		Status:    st.Status,
		Attrs:     res.Attrs,
		Messages:  res.Messages,
	}

	err := h.events.Insert(ctx, ev)
	observability.RecordEventStored(err)
	if err != nil {
		h.logger.Error().Err(err).Uint64("sequence", ev.Sequence).Msg("Failed to store sale event")
	}

	raised, _ := st.TotalRaised.Float64()
	observability.UpdateSale(raised, st.Status.String())
	observability.MarkSuccess(now)

	if h.publisher != nil {
		h.publisher.Publish(ev)
	}
	return ev
}

func (h *Host) observe(action, sender string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	observability.RecordOperation(action, outcome, time.Since(start).Seconds())

	if err != nil {
		h.logger.Info().Err(err).Str("action", action).Str("sender", sender).Msg("Operation rejected")
		return
	}
	h.logger.Debug().Str("action", action).Str("sender", sender).Msg("Operation committed")
}

// movable keeps the coins the bank can move. Zero or malformed amounts are
// left for the handler to reject.
func movable(funds []domain.Coin) []domain.Coin {
	var out []domain.Coin
	for _, c := range funds {
		if c.Amount.IsPositive() && domain.IsWholeAmount(c.Amount) {
			out = append(out, c)
		}
	}
	return out
}

// querier exposes the collaborators' balances to the contract.
type querier struct {
	bank   ledger.Bank
	tokens ledger.TokenService
}

func (q querier) BankBalance(ctx context.Context, address, denom string) (decimal.Decimal, error) {
	return q.bank.Balance(ctx, address, denom)
}

func (q querier) TokenBalance(ctx context.Context, token, address string) (decimal.Decimal, error) {
	return q.tokens.BalanceOf(ctx, token, address)
}
