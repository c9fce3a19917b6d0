// seed carga productos y bins desde la exportación XML del ERP en el almacenamiento configurado
// (DB_DRIVER) y, opcionalmente, imprime un token JWT de desarrollo.
//
// Uso: go run ./cmd/seed [ruta/catalogo.xml] [rol]
// Por defecto busca catalogo.xml en el directorio actual. Si se indica rol
// (admin | bodeguero | vendedor) imprime un token para el usuario "seed".
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/stock-ledger/internal/bootstrap"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/catalogxml"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/jwt"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	xmlPath := "catalogo.xml"
	if len(os.Args) > 1 {
		xmlPath = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	f, err := os.Open(xmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir XML: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	catalog, err := catalogxml.Decode(f, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Decodificar XML: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg.DB, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Almacenamiento: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	res, err := catalogxml.Import(ctx, store.Products, store.Bins, catalog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Importar catálogo: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Importado %s: %d productos, %d bins, %d ya existentes\n", xmlPath, res.Products, res.Bins, res.Skipped)

	if len(os.Args) > 2 {
		tok, err := jwt.Generate(cfg.JWT.Secret, "seed", os.Args[2], cfg.JWT.Issuer, cfg.JWT.Expiration)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Generar token: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Token (%s): %s\n", os.Args[2], tok)
	}
}
