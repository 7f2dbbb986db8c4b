/*
Package operations provides the dispatch runtime for business operations: commands (writes),
queries (reads) and actions (orchestrations).

# Operations API

The Operations API enables:
- Defining reusable, versioned operations with typed parameters, results and dependencies
- Resolving each dispatch's dependencies exactly once from a dependency.Registry
- Wrapping execution in an ordered chain of middleware
- Memoizing read results within one invocation context
- Recording a report per dispatch for audit and debugging

# Core Components

Operation:
  - A reusable definition: ID, semver version, description, category and handler
  - Declares its dependencies through the shape of its DEP struct (`dep` tags)
  - Declares its own middleware and whether its results may be memoized

Instance:
  - One dispatch's unit of work, created with Operation.New
  - Holds immutable parameters and a write-once dependency slot
  - Moves through Created -> Booted -> Executing -> Completed | Failed

Bus:
  - Dispatch resolves dependencies, boots the instance, composes the middleware chain and runs it
  - Run executes an instance the caller already booted (Operation.NewBooted)
  - Holds no per-dispatch state and is safe for concurrent use

Scope:
  - Short-lived memo of read results bound to one invocation context
  - Begin with BeginScope or WithScope, discard with End

OperationRegistry:
  - Catalog of routes by definition, used by the CLI and extensions

Reporter:
  - Stores dispatch reports, see middleware.Report

# Basic Usage

	withdraw := operations.NewCommand("withdraw", semver.MustParse("1.0.0"), "Withdraw funds",
		func(b operations.Bundle, deps WithdrawDeps, in WithdrawInput) (int64, error) {
			return deps.Ledger.Debit(b.GetContext(), in.Account, in.Amount)
		})

	bus := operations.NewBus(lggr, registry, operations.WithBusMiddleware(middleware.Logging(lggr)))
	err := operations.WithScope(ctx, func(ctx context.Context) error {
		balance, err := operations.Dispatch(ctx, bus, withdraw.New(WithdrawInput{Account: "alice", Amount: 50}))
		...
	})
*/
package operations
