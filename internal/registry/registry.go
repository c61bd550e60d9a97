// Package registry holds the executors of every configured account and fans
// signals out to them.
package registry

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"signal-executor/internal/executor"
	"signal-executor/pkg/config"
	"signal-executor/pkg/exchanges/common"
	"signal-executor/pkg/logging"

	"go.uber.org/zap"
)

// Account is one registry entry.
type Account struct {
	Executor *executor.Executor
	Enabled  bool // whether Dispatch sends signals to this account
	Testnet  bool
}

// Summary is the listing view of an account.
type Summary struct {
	ID      string          `json:"id"`
	Enabled bool            `json:"enabled"`
	Testnet bool            `json:"testnet"`
	Status  executor.Status `json:"status"`
}

// Options tunes the registry.
type Options struct {
	Workers int // max concurrent placements per Dispatch; 0 means one per account
	Logger  *zap.SugaredLogger
}

// Registry maps account ids to executors. It is built once and never
// mutated afterwards, so lookups need no locking.
type Registry struct {
	ids      []string
	accounts map[string]Account
	workers  int
	log      *zap.SugaredLogger
}

// New builds a registry. Account ids must be unique.
func New(accounts []Account, opts Options) (*Registry, error) {
	r := &Registry{
		accounts: make(map[string]Account, len(accounts)),
		workers:  opts.Workers,
		log:      logging.OrNop(opts.Logger).Named("registry"),
	}
	for _, a := range accounts {
		if a.Executor == nil {
			return nil, fmt.Errorf("registry: nil executor")
		}
		id := a.Executor.ID()
		if _, dup := r.accounts[id]; dup {
			return nil, fmt.Errorf("registry: duplicate account %q", id)
		}
		r.ids = append(r.ids, id)
		r.accounts[id] = a
	}
	if r.workers <= 0 || r.workers > len(r.ids) {
		r.workers = len(r.ids)
	}
	return r, nil
}

// GatewayFactory opens the venue connection for an account.
type GatewayFactory func(a config.Account) (common.Gateway, error)

// FromAccounts builds one executor per configured account.
func FromAccounts(accounts []config.Account, newGateway GatewayFactory, deps executor.Deps, opts Options) (*Registry, error) {
	entries := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		gw, err := newGateway(a)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a.ID, err)
		}
		entries = append(entries, Account{
			Executor: executor.New(executor.ConfigFromAccount(a), gw, deps),
			Enabled:  a.Enabled,
			Testnet:  a.IsTestnet,
		})
	}
	return New(entries, opts)
}

// Get returns the executor of an account.
func (r *Registry) Get(id string) (*executor.Executor, bool) {
	a, ok := r.accounts[id]
	return a.Executor, ok
}

// IDs returns account ids in configuration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Len is the number of accounts.
func (r *Registry) Len() int { return len(r.ids) }

// List summarizes every account in configuration order.
func (r *Registry) List() []Summary {
	out := make([]Summary, 0, len(r.ids))
	for _, id := range r.ids {
		a := r.accounts[id]
		out = append(out, Summary{ID: id, Enabled: a.Enabled, Testnet: a.Testnet, Status: a.Executor.Status()})
	}
	return out
}

// Start launches every executor's monitor.
func (r *Registry) Start(ctx context.Context) {
	for _, id := range r.ids {
		r.accounts[id].Executor.Start(ctx)
	}
	r.log.Infow("executors started", "accounts", len(r.ids))
}

// Stop waits for every monitor loop to exit.
func (r *Registry) Stop() {
	var wg sync.WaitGroup
	for _, id := range r.ids {
		wg.Add(1)
		go func(e *executor.Executor) {
			defer wg.Done()
			e.Stop()
		}(r.accounts[id].Executor)
	}
	wg.Wait()
}

// Dispatch places sig on every enabled account concurrently, at most
// Options.Workers at a time, and returns each account's result. A panic in
// one account becomes that account's error result.
func (r *Registry) Dispatch(ctx context.Context, sig executor.Signal) map[string]executor.OrderResult {
	results := make(map[string]executor.OrderResult, len(r.ids))
	if r.workers == 0 {
		return results
	}
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.workers)
	)
	for _, id := range r.ids {
		a := r.accounts[id]
		if !a.Enabled {
			continue
		}
		wg.Add(1)
		go func(id string, e *executor.Executor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := r.place(ctx, id, e, sig)
			mu.Lock()
			results[id] = res
			mu.Unlock()
		}(id, a.Executor)
	}
	wg.Wait()
	return results
}

func (r *Registry) place(ctx context.Context, id string, e *executor.Executor, sig executor.Signal) (res executor.OrderResult) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Errorw("placement panicked", "account", id, "panic", p, "stack", string(debug.Stack()))
			res = executor.OrderResult{Status: executor.StatusError, Message: fmt.Sprintf("internal error: %v", p)}
		}
	}()
	return e.PlaceOrder(ctx, sig)
}
