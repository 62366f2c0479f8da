// Package store provides read access to scanner output documents.
package store

import (
	"context"

	"wheel-trader/internal/models"
)

// ScanSource loads scan documents.
type ScanSource interface {
	// Latest returns the newest scan document and the path it was read from.
	Latest(ctx context.Context) (*models.ScanDocument, string, error)
	// Load reads the scan document at path.
	Load(ctx context.Context, path string) (*models.ScanDocument, error)
}
