// interfaces.go - Dependencies consumed by the handlers
package api

import (
	"context"

	"github.com/pdf-toolbox/backend/internal/models"
	"github.com/pdf-toolbox/backend/internal/relay"
)

// Relayer runs batches against the vendor. *relay.Relay implements it.
type Relayer interface {
	Run(ctx context.Context, req relay.Request) (*relay.Result, error)
	Balance(ctx context.Context) (*models.Balance, error)
}

// ToolCatalog resolves tool identifiers. *catalog.Catalog implements it.
type ToolCatalog interface {
	Lookup(id string) (models.Tool, bool)
	All() []models.Tool
}
