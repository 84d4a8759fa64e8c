package gateway

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/tablepos/pkg/models"
	"github.com/example/tablepos/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (g *Gateway) listProducts(c *gin.Context) {
	products := g.deps.Catalog.Products()
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

func (g *Gateway) searchProducts(c *gin.Context) {
	inStock, _ := strconv.ParseBool(c.Query("in_stock"))
	products := g.deps.Catalog.Search(c.Query("q"), c.Query("category"), inStock)
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

func (g *Gateway) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": g.deps.Catalog.Categories()})
}

func (g *Gateway) productByBarcode(c *gin.Context) {
	product, ok := g.deps.Catalog.FindByBarcode(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no product with that barcode"})
		return
	}
	c.JSON(http.StatusOK, product)
}

func (g *Gateway) createProduct(c *gin.Context) {
	fields, img, closeImg, ok := g.bindProduct(c)
	if !ok {
		return
	}
	defer closeImg()

	product, err := g.deps.Catalog.Create(c.Request.Context(), fields, img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (g *Gateway) updateProduct(c *gin.Context) {
	fields, img, closeImg, ok := g.bindProduct(c)
	if !ok {
		return
	}
	defer closeImg()

	product, err := g.deps.Catalog.Update(c.Request.Context(), c.Param("id"), fields, img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	if err := g.deps.Catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) getImage(c *gin.Context) {
	rc, contentType, err := g.deps.Images.Open(c.Request.Context(), c.Param("name"))
	if errors.Is(err, storage.ErrObjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

// bindProduct reads the product form and its optional "image" file. Only the
// fields present in the form are set.
func (g *Gateway) bindProduct(c *gin.Context) (models.ProductFields, *storage.Image, func(), bool) {
	noop := func() {}

	limit := g.config.MaxUploadMB
	if limit <= 0 {
		limit = 5
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit<<20)

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d MB", limit)})
			return models.ProductFields{}, nil, noop, false
		}
		badRequest(c, err)
		return models.ProductFields{}, nil, noop, false
	}

	fields, err := productFields(c)
	if err != nil {
		badRequest(c, err)
		return models.ProductFields{}, nil, noop, false
	}

	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return fields, nil, noop, true
	}
	if err != nil {
		badRequest(c, err)
		return models.ProductFields{}, nil, noop, false
	}

	img, f, err := openImage(header)
	if err != nil {
		badRequest(c, err)
		return models.ProductFields{}, nil, noop, false
	}
	return fields, img, func() { f.Close() }, true
}

func openImage(header *multipart.FileHeader) (*storage.Image, io.Closer, error) {
	f, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read image: %w", err)
	}
	return &storage.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        f,
	}, f, nil
}

func productFields(c *gin.Context) (models.ProductFields, error) {
	var f models.ProductFields

	if v, ok := c.GetPostForm("name"); ok {
		v = strings.TrimSpace(v)
		f.Name = &v
	}
	if v, ok := c.GetPostForm("price"); ok {
		price, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return f, fmt.Errorf("invalid price %q", v)
		}
		f.Price = &price
	}
	if v, ok := c.GetPostForm("stock"); ok {
		stock, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return f, fmt.Errorf("invalid stock %q", v)
		}
		f.Stock = &stock
	}
	if v, ok := c.GetPostForm("category"); ok {
		v = strings.TrimSpace(v)
		f.Category = &v
	}
	if v, ok := c.GetPostForm("barcode"); ok {
		v = strings.TrimSpace(v)
		f.Barcode = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		f.Description = &v
	}
	return f, nil
}
