package service

import (
	"context"

	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"github.com/railzwaylabs/interviewledger/internal/config"
	institutiondomain "github.com/railzwaylabs/interviewledger/internal/institution/domain"
	"github.com/railzwaylabs/interviewledger/internal/invoice/archive"
	"github.com/railzwaylabs/interviewledger/internal/invoice/domain"
	"github.com/railzwaylabs/interviewledger/internal/invoice/render"
	ledgerdomain "github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const pdfContentType = "application/pdf"

type Params struct {
	fx.In

	Log          *zap.Logger
	Config       config.Config
	Ledger       ledgerdomain.Service
	Institutions institutiondomain.Directory
	Renderer     *render.Renderer

	Resolver pricingdomain.Resolver `optional:"true"`
	Archive  archive.Store          `optional:"true"`
	AuditSvc auditdomain.Service    `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	ledger       ledgerdomain.Service
	institutions institutiondomain.Directory
	renderer     *render.Renderer
	resolver     pricingdomain.Resolver
	archive      archive.Store
	auditSvc     auditdomain.Service

	issuer   domain.Party
	currency string
}

func NewService(p Params) domain.Service {
	return &Service{
		log:          p.Log.Named("invoice.service"),
		ledger:       p.Ledger,
		institutions: p.Institutions,
		renderer:     p.Renderer,
		resolver:     p.Resolver,
		archive:      p.Archive,
		auditSvc:     p.AuditSvc,
		issuer: domain.Party{
			Name:    p.Config.Invoice.IssuerName,
			Address: p.Config.Invoice.IssuerAddress,
		},
		currency: p.Config.Invoice.Currency,
	}
}

func (s *Service) Render(ctx context.Context, req domain.RenderRequest) (*domain.Document, error) {
	item, err := s.ledger.GetBillingItem(ctx, req.PurchaseID)
	if err != nil {
		return nil, err
	}
	inst, err := s.institutions.Get(ctx, item.InstitutionID)
	if err != nil {
		return nil, err
	}

	var pricing *pricingdomain.Resolution
	if s.resolver != nil {
		pricing, err = s.resolver.Resolve(ctx, item.InstitutionID)
		if err != nil {
			s.log.Warn("invoice rendered without pricing",
				zap.String("purchase_id", item.PurchaseID),
				zap.Error(err),
			)
			pricing = nil
		}
	}

	doc := domain.Render(domain.RenderInput{
		Item:        *item,
		Institution: inst,
		Payer:       req.Payer,
		Pricing:     pricing,
		Issuer:      s.issuer,
		Currency:    s.currency,
	})
	return &doc, nil
}

// RenderPDF renders the invoice to PDF and archives it when an archive store
// is configured. An archive failure does not fail the render.
func (s *Service) RenderPDF(ctx context.Context, req domain.RenderRequest) (*domain.Rendered, error) {
	doc, err := s.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.PDF(*doc)
	if err != nil {
		return nil, err
	}

	out := &domain.Rendered{
		Document: *doc,
		FileName: doc.FileName("pdf"),
		PDF:      pdf,
	}
	if s.archive == nil {
		return out, nil
	}

	key := archive.Key(doc.InstitutionID, out.FileName)
	if err := s.archive.Put(ctx, key, pdf, pdfContentType); err != nil {
		s.log.Warn("invoice archive failed",
			zap.String("invoice_number", doc.Number),
			zap.Error(err),
		)
		return out, nil
	}
	out.ArchiveKey = key

	if s.auditSvc != nil {
		institutionID, purchaseID := doc.InstitutionID, doc.PurchaseID
		if err := s.auditSvc.AuditLog(ctx, &institutionID, "invoice.archived", "session_purchase", &purchaseID, map[string]any{
			"invoice_number": doc.Number,
			"key":            key,
		}); err != nil {
			s.log.Warn("audit write failed", zap.String("action", "invoice.archived"), zap.Error(err))
		}
	}
	return out, nil
}
