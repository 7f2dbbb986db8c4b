package bank

import (
	"context"

	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/operations/middleware"
)

// Admin may run every operation.
const Admin = "admin"

type owned interface {
	Owner() string
}

// OwnerAuthorizer allows the admin to run everything and any other principal to run the
// operations whose input belongs to them.
var OwnerAuthorizer = middleware.AuthorizerFunc(func(_ context.Context, principal string, inv operations.Invocation) bool {
	if principal == Admin {
		return true
	}
	in, ok := inv.Input.(owned)

	return ok && in.Owner() == principal
})
