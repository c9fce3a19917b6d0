package entity

import "time"

// Product producto del catálogo. El núcleo de stock solo consume BatchTracked.
type Product struct {
	ID           string
	SKU          string
	Name         string
	BatchTracked bool // cada lote queda en su propia fila para trazabilidad y vencimiento
	CreatedAt    time.Time
}

// Bin ubicación física direccionable dentro de una bodega.
type Bin struct {
	ID        string
	Code      string
	CreatedAt time.Time
}
