package pdf

import "context"

// Provider renders payment documents.
type Provider interface {
	Receipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}
