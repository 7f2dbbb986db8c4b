/*
Package dependency provides the process-wide dependency registry that operations resolve
their runtime needs against.

# Requirements

An operation declares what it needs through the shape of its dependency struct. Every exported
field tagged with `dep` names a Requirement:

	type WithdrawDeps struct {
		Ledger bank.Ledger `dep:"ledger"`
		Audit  Auditor     `dep:"audit,optional"`
	}

Populate fills such a struct from a Resolver in one pass, reporting every unresolvable
requirement at once.

# Registry

The Registry is written during bootstrap only:

	reg := dependency.NewRegistry()
	reg.Singleton("ledger", func(r dependency.Resolver) (any, error) { return bank.NewMemoryLedger(nil), nil })
	reg.Freeze()

Freeze is the initialization barrier. After it, writes fail with ErrRegistryFrozen and reads
take no lock, so any number of concurrent dispatches may resolve from it.
*/
package dependency
