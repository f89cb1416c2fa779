package models

import "context"

type operationContextKey struct{}

// OperationContext identifies the request that started a ledger operation.
// Its fields are copied into the metadata of every history entry the
// operation writes.
type OperationContext struct {
	RequestId string
	Source    string // api, cli, webhook
}

// WithOperationContext attaches operation data to a context.
func WithOperationContext(ctx context.Context, oc *OperationContext) context.Context {
	return context.WithValue(ctx, operationContextKey{}, oc)
}

// GetOperationContext retrieves operation data from context, or nil if absent.
func GetOperationContext(ctx context.Context) *OperationContext {
	oc, _ := ctx.Value(operationContextKey{}).(*OperationContext)
	return oc
}
