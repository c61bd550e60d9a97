package persistence

import (
	"context"
	"encoding/json"

	"signal-executor/internal/events"
	"signal-executor/internal/executor"
	"signal-executor/pkg/db"
	"signal-executor/pkg/logging"

	"go.uber.org/zap"
)

// Journal copies account events from the bus into the batch writer. It only
// ever writes; nothing is read back into executor state.
type Journal struct {
	w   *BatchWriter
	log *zap.SugaredLogger
}

// NewJournal builds a journal on top of w.
func NewJournal(w *BatchWriter, log *zap.SugaredLogger) *Journal {
	return &Journal{w: w, log: logging.OrNop(log).Named("journal")}
}

// Start subscribes to every account topic. The returned channel closes once
// ctx is done and the events already buffered have been queued.
func (j *Journal) Start(ctx context.Context, bus *events.Bus) <-chan struct{} {
	stream, unsub := bus.Subscribe(events.EventAll, 1024)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				j.drain(stream)
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				j.handle(msg)
			}
		}
	}()
	return done
}

func (j *Journal) drain(stream <-chan any) {
	for {
		select {
		case msg, ok := <-stream:
			if !ok {
				return
			}
			j.handle(msg)
		default:
			return
		}
	}
}

func (j *Journal) handle(msg any) {
	ev, ok := msg.(events.AccountEvent)
	if !ok {
		return
	}
	if op, ok := j.Op(ev); ok {
		j.w.Write(op)
	}
}

// Op maps an account event to its journal write.
func (j *Journal) Op(ev events.AccountEvent) (WriteOp, bool) {
	switch data := ev.Data.(type) {
	case executor.TradeRecord:
		outcome := db.OutcomePlaced
		if ev.Type == events.EventTradeFailed {
			outcome = db.OutcomeFailed
		}
		return WriteOp{Table: "trade_records", Query: db.InsertTradeSQL, Args: db.TradeArgs(tradeRow(ev.AccountID, outcome, data))}, true
	case executor.ProfitLockEvent:
		return WriteOp{Table: "profit_locks", Query: db.InsertProfitLockSQL, Args: db.ProfitLockArgs(db.ProfitLock{
			ID:          data.ID,
			AccountID:   ev.AccountID,
			Symbol:      data.Symbol,
			ProfitPct:   data.ProfitPercentage.String(),
			NewStop:     data.NewStop.String(),
			StopOrderID: data.StopOrderID,
			CreatedAt:   data.Time,
		})}, true
	case events.BreakerTrip, events.StateChange:
		detail, err := json.Marshal(data)
		if err != nil {
			j.log.Warnw("encode event detail failed", "event", ev.Type, "error", err)
			return WriteOp{}, false
		}
		return WriteOp{Table: "account_events", Query: db.InsertAccountEventSQL, Args: db.AccountEventArgs(db.AccountEvent{
			AccountID: ev.AccountID,
			Kind:      string(ev.Type),
			Detail:    string(detail),
			CreatedAt: ev.Time,
		})}, true
	default:
		return WriteOp{}, false
	}
}

func tradeRow(accountID, outcome string, t executor.TradeRecord) db.TradeRecord {
	return db.TradeRecord{
		ID:          t.ID,
		AccountID:   accountID,
		Outcome:     outcome,
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		Size:        t.Size.String(),
		EntryPrice:  t.EntryPrice.String(),
		TakeProfit:  t.TakeProfit.String(),
		StopLoss:    t.StopLoss.String(),
		TPKind:      string(t.TPKind),
		SLKind:      string(t.SLKind),
		OrderID:     t.OrderID,
		OrderStatus: string(t.OrderStatus),
		Error:       t.Error,
		CreatedAt:   t.Time,
	}
}
