// Package authcore provides a peer-to-peer payment authorization engine
// for Go applications.
//
// Authcore is designed as a library, not a service. It owns the policy
// side of paying another peer: who may be paid, how much, how often, and
// with what proof. It never moves money itself; execution is delegated
// to pluggable payment method executors. It provides:
//
//   - Deterministic Ed25519 signing with nonce-based replay protection
//   - Per-peer and global spending limits with reserve/commit/rollback
//   - Rule-based auto-pay evaluation with manual-approval fallback
//   - Subscription agreements with proration on mid-period changes
//   - One-shot payment requests with receipts and signed attestations
//   - Pluggable hooks for audit trails and host integration
//
// # Quick Start
//
// Create a core instance with your preferred store and a signer:
//
//	import (
//	    "github.com/peerpay/authcore"
//	    "github.com/peerpay/authcore/signing"
//	    "github.com/peerpay/authcore/store/memory"
//	)
//
//	signer, err := signing.GenerateSigner(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	core := authcore.New(memory.New(), signer)
//
//	// Start the core (migrates the store, begins background workers)
//	if err := core.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer core.Stop()
//
// # Core Concepts
//
// Spending limits cap what a peer can receive per period. Every payment
// reserves against the limit before execution and commits after:
//
//	core.SetSpendingLimit(peer, authcore.MustParse("50000", "SAT"), limits.PeriodMonthly)
//
// Auto-pay rules decide incoming payment requests without a human in
// the loop. A request that matches no rule waits for manual approval:
//
//	core.SaveRule(ctx, &autopay.Rule{
//	    Name:           "small lightning payments",
//	    Enabled:        true,
//	    MaxAmount:      &cap,
//	    AllowedMethods: []string{"lightning"},
//	})
//	core.SetAutoPayEnabled(ctx, true)
//
// Incoming requests arrive as signed envelopes and run the full
// verify-evaluate-reserve-execute-commit pipeline:
//
//	req, decision, err := core.HandlePaymentRequest(ctx, envelope)
//
// Subscriptions are recurring agreements between two peers. The
// provider sweeps due renewals into payment requests:
//
//	due, err := core.DuePayments(ctx)
//
// # Storage
//
// The memory store suits tests and ephemeral wallets; the file store
// keeps one JSON record per entity for database-free deployments; the
// sqlite store persists across restarts with schema migrations.
// Spending limits and nonces live behind
// their own file-locked stores so that several processes can share one
// wallet safely:
//
//	ledger, err := limits.NewFileLedger(dir)
//	core := authcore.New(st, signer, authcore.WithLedger(ledger))
package authcore
