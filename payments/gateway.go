package payments

import (
	"context"

	"smartbite-api/campay"
)

//go:generate mockgen -source=gateway.go -destination=mock_gateway_test.go -package=payments

// Gateway is the slice of the mobile money API the payment service needs.
// *campay.Client implements it.
type Gateway interface {
	Collect(ctx context.Context, req campay.CollectRequest) (*campay.Transaction, error)
	TransactionStatus(ctx context.Context, reference string) (*campay.Transaction, error)
}
