package ports

import (
	"context"
	"route-invoice-service/internal/domain"
)

// Port: hands a finalized draft to the system that persists invoices.
type InvoiceSubmitter interface {
	Submit(ctx context.Context, submission domain.InvoiceSubmission) error
}
