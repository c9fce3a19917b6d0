// Package catalogxml importa productos y bins desde la exportación XML del ERP.
// Las exportaciones antiguas vienen en ISO-8859-1; se decodifican a UTF-8 al leer.
package catalogxml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

type catalogo struct {
	Productos []producto `xml:"productos>producto"`
	Bins      []bin      `xml:"bins>bin"`
}

type producto struct {
	ID     string `xml:"id,attr"`
	SKU    string `xml:"sku,attr"`
	Nombre string `xml:"nombre,attr"`
	Lotes  bool   `xml:"lotes,attr"`
}

type bin struct {
	ID     string `xml:"id,attr"`
	Codigo string `xml:"codigo,attr"`
}

// Catalog productos y bins leídos del XML.
type Catalog struct {
	Products []*entity.Product
	Bins     []*entity.Bin
}

// Decode lee el catálogo. Filas sin id o sin código se descartan.
func Decode(r io.Reader, now time.Time) (*Catalog, error) {
	var c catalogo
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
			return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
		}
		if strings.EqualFold(charset, "windows-1252") {
			return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
		}
		return nil, fmt.Errorf("charset no soportado: %s", charset)
	}
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decodificar catálogo: %w", err)
	}

	out := &Catalog{}
	for _, p := range c.Productos {
		id, sku := strings.TrimSpace(p.ID), strings.TrimSpace(p.SKU)
		if id == "" || sku == "" {
			continue
		}
		out.Products = append(out.Products, &entity.Product{
			ID:           id,
			SKU:          sku,
			Name:         strings.TrimSpace(p.Nombre),
			BatchTracked: p.Lotes,
			CreatedAt:    now,
		})
	}
	for _, b := range c.Bins {
		id, code := strings.TrimSpace(b.ID), strings.TrimSpace(b.Codigo)
		if id == "" || code == "" {
			continue
		}
		out.Bins = append(out.Bins, &entity.Bin{ID: id, Code: code, CreatedAt: now})
	}
	return out, nil
}

// ImportResult filas insertadas y omitidas (ya existentes).
type ImportResult struct {
	Products, Bins int
	Skipped        int
}

// Import inserta el catálogo. Es idempotente: los duplicados se cuentan y se omiten.
func Import(ctx context.Context, products repository.ProductRepository, bins repository.BinRepository, c *Catalog) (ImportResult, error) {
	var res ImportResult
	for _, p := range c.Products {
		switch err := products.Create(ctx, p); {
		case err == nil:
			res.Products++
		case errors.Is(err, domain.ErrDuplicate):
			res.Skipped++
		default:
			return res, fmt.Errorf("producto %s: %w", p.ID, err)
		}
	}
	for _, b := range c.Bins {
		switch err := bins.Create(ctx, b); {
		case err == nil:
			res.Bins++
		case errors.Is(err, domain.ErrDuplicate):
			res.Skipped++
		default:
			return res, fmt.Errorf("bin %s: %w", b.ID, err)
		}
	}
	return res, nil
}
