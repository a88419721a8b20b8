package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/webshop-checkout/internal/ledger"
	"github.com/iliyamo/webshop-checkout/internal/model"
	"github.com/iliyamo/webshop-checkout/internal/repository"
)

// CatalogHandler serves the public product list and live stock.
type CatalogHandler struct {
	Products ProductCatalog
	Stock    StockLedger
}

func NewCatalogHandler(p ProductCatalog, s StockLedger) *CatalogHandler {
	return &CatalogHandler{Products: p, Stock: s}
}

type productView struct {
	ID       string                `json:"id"`
	Slug     string                `json:"slug"`
	Title    string                `json:"title"`
	Price    *string               `json:"price"`
	Tracked  bool                  `json:"stock_tracked"`
	Metadata model.ProductMetadata `json:"metadata"`
}

func toProductView(p model.Product) productView {
	v := productView{ID: p.ID, Slug: p.Slug, Title: p.Title, Tracked: p.TracksStock(), Metadata: p.Metadata}
	if p.Price.Valid {
		s := p.Price.Decimal.StringFixed(2)
		v.Price = &s
	}
	return v
}

// ListProducts returns a page of products.  Availability is not part of
// the list because the response is cached; clients ask the stock
// endpoint instead.
func (h *CatalogHandler) ListProducts(c echo.Context) error {
	limit := queryInt(c, "limit", 50, 1, 200)
	offset := queryInt(c, "offset", 0, 0, 1<<30)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	products, err := h.Products.List(ctx, limit, offset)
	if err != nil {
		log.Printf("catalog: list products: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load products"})
	}
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, toProductView(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "limit": limit, "offset": offset})
}

// GetStock reports how many units can still be reserved.
func (h *CatalogHandler) GetStock(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.Products.GetByID(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}
	if err != nil {
		log.Printf("catalog: load product %s: %v", c.Param("id"), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load product"})
	}
	resp := echo.Map{"product_id": p.ID, "tracked": p.TracksStock()}
	if n := h.Stock.AvailableFor(ctx, p); n != ledger.Unlimited {
		resp["available"] = n
	}
	return c.JSON(http.StatusOK, resp)
}

func queryInt(c echo.Context, name string, def, lo, hi int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return def
	}
	return min(hi, max(lo, n))
}
