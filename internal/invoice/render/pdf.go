package render

import (
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/railzwaylabs/interviewledger/internal/invoice/domain"
	"go.uber.org/zap"
)

const (
	margin    = 15
	rowHeight = 7
)

var (
	titleStyle = props.Text{Size: 16, Style: fontstyle.Bold}
	labelStyle = props.Text{Size: 9, Style: fontstyle.Bold}
	bodyStyle  = props.Text{Size: 9}
	rightStyle = props.Text{Size: 9, Align: align.Right}
	totalStyle = props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right}
)

// Renderer turns invoice documents into PDF bytes.
type Renderer struct {
	log *zap.Logger
}

func NewRenderer(log *zap.Logger) *Renderer {
	return &Renderer{log: log.Named("invoice.render")}
}

func (r *Renderer) PDF(doc domain.Document) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(margin).
		WithRightMargin(margin).
		WithTopMargin(margin).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "INVOICE", titleStyle),
		text.NewCol(4, doc.Number, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(rowHeight,
		text.NewCol(8, "Purchase "+doc.PurchaseID, bodyStyle),
		text.NewCol(4, "Issued "+doc.IssueDate.Format("2006-01-02"), rightStyle),
	)
	m.AddRows(line.NewRow(4))

	m.AddRows(partyRows("From", doc.Issuer)...)
	m.AddRows(partyRows("Bill to", doc.BillTo)...)
	m.AddRows(partyRows("Payer", doc.Payer)...)
	m.AddRows(line.NewRow(4))

	m.AddRow(rowHeight,
		text.NewCol(6, "Description", labelStyle),
		text.NewCol(2, "Qty", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)
	for _, l := range doc.Lines {
		m.AddRow(rowHeight,
			text.NewCol(6, l.Description, bodyStyle),
			text.NewCol(2, strconv.FormatInt(l.Quantity, 10), rightStyle),
			text.NewCol(2, l.UnitPrice, rightStyle),
			text.NewCol(2, l.Amount, rightStyle),
		)
	}
	m.AddRows(line.NewRow(4))

	total := "Total: " + doc.Total
	if doc.Currency != "" {
		total = fmt.Sprintf("Total (%s): %s", doc.Currency, doc.Total)
	}
	m.AddRow(10, col.New(6), text.NewCol(6, total, totalStyle))

	if len(doc.Notes) > 0 {
		m.AddRow(rowHeight, text.NewCol(12, "Notes", labelStyle))
		for _, n := range doc.Notes {
			m.AddRow(rowHeight, text.NewCol(12, "- "+n, bodyStyle))
		}
	}

	out, err := m.Generate()
	if err != nil {
		r.log.Error("pdf generation failed", zap.String("invoice_number", doc.Number), zap.Error(err))
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return out.GetBytes(), nil
}

func partyRows(label string, p domain.Party) []core.Row {
	if p.Name == "" && p.Address == "" && p.Email == "" {
		return nil
	}
	rows := []core.Row{
		row.New(rowHeight).Add(
			text.NewCol(3, label, labelStyle),
			text.NewCol(9, p.Name, bodyStyle),
		),
	}
	for _, extra := range []string{p.Address, p.Email} {
		if extra == "" {
			continue
		}
		rows = append(rows, row.New(5).Add(col.New(3), text.NewCol(9, extra, bodyStyle)))
	}
	return rows
}
