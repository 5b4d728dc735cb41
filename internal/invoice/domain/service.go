package domain

import (
	"context"
)

type RenderRequest struct {
	PurchaseID string `json:"purchase_id"`
	Payer      Party  `json:"payer"`
}

// Rendered is a document together with its PDF form.
type Rendered struct {
	Document   Document `json:"document"`
	FileName   string   `json:"file_name"`
	PDF        []byte   `json:"-"`
	ArchiveKey string   `json:"archive_key,omitempty"`
}

type Service interface {
	Render(ctx context.Context, req RenderRequest) (*Document, error)
	RenderPDF(ctx context.Context, req RenderRequest) (*Rendered, error)
}
