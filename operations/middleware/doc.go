// Package middleware provides the standard middleware of the operations bus: logging, retry,
// timeout, rate limiting, metrics, tracing, transactions, authorization and reporting.
//
// Every middleware here is independent of the operation it wraps. Install them Bus-wide with
// operations.WithBusMiddleware, per category with operations.WithCategoryMiddleware or per
// operation with operations.WithMiddleware.
package middleware
