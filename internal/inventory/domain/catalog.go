package domain

// Catalog sync message kinds published by the catalog service.
const (
	CatalogVariantUpserted  = "variant.upserted"
	CatalogVariantRestocked = "variant.restocked"
	CatalogPriceChanged     = "variant.price_changed"
)

// CatalogEvent is one catalog change. Quantity is only read for restocks and
// new variants; existing stock is owned by the ledger.
type CatalogEvent struct {
	Kind         string `json:"kind"`
	VariantID    string `json:"variant_id"`
	ProductID    string `json:"product_id,omitempty"`
	Size         string `json:"size,omitempty"`
	Color        string `json:"color,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
	ReorderLevel int    `json:"reorder_level,omitempty"`
	PriceCents   int64  `json:"price_cents"`
}
