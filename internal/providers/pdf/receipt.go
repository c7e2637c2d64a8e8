package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	PaymentID    string
	PaymentUUID  string
	OrgName      string
	OrgSlug      string
	PayerName    string
	PayerEmail   string
	Amount       int64
	DatePaid     string
	AuthorityRef string
}

func (p *PDFProvider) Receipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(12, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Payment: "+receipt.PaymentID, props.Text{Top: 0}),
			text.New("Reference: "+receipt.PaymentUUID, props.Text{Top: 4, Size: 8}),
			text.New("Date paid: "+receipt.DatePaid, props.Text{Top: 9}),
		),
		col.New(6),
	)

	payer := col.New(6).Add(text.New("Paid by", props.Text{Style: fontstyle.Bold}))
	if receipt.PayerName != "" || receipt.PayerEmail != "" {
		payer.Add(
			text.New(receipt.PayerName, props.Text{Top: 5}),
			text.New(receipt.PayerEmail, props.Text{Top: 9}),
		)
	} else {
		payer.Add(text.New("-", props.Text{Top: 5}))
	}

	m.AddRow(25,
		col.New(6).Add(
			text.New(receipt.OrgName, props.Text{Style: fontstyle.Bold}),
			text.New(receipt.OrgSlug, props.Text{Top: 5}),
		),
		payer,
	)

	m.AddRow(15,
		text.NewCol(12, fmt.Sprintf("%d paid on %s", receipt.Amount, receipt.DatePaid), props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	if receipt.AuthorityRef != "" {
		m.AddRow(10,
			text.NewCol(12, "Gateway reference: "+receipt.AuthorityRef, props.Text{Size: 9}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9}),
		text.NewCol(2, fmt.Sprintf("%d", receipt.Amount), props.Text{Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
