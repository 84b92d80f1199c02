package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/service"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ApplicationHeader names the calling application that owns created products
const ApplicationHeader = "X-Application"

// ReadinessCheck reports whether a backing dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	catalog *service.CatalogService
	baseURL string
	checks  map[string]ReadinessCheck
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler. baseURL prefixes the Location of
// created products.
func NewHandler(catalog *service.CatalogService, baseURL string) *Handler {
	return &Handler{
		catalog: catalog,
		baseURL: baseURL,
		checks:  map[string]ReadinessCheck{},
		logger:  util.GetLogger(),
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/producten", h.listProducts)
		v1.POST("/producten", h.createProduct)
		v1.GET("/producten/:id", h.getProduct)
		v1.PUT("/producten/:id", h.replaceProduct)
		v1.DELETE("/producten/:id", h.deleteProduct)

		v1.GET("/producten/:id/log", h.history)
		v1.POST("/producten/:id/revert/:version", h.revert)

		v1.POST("/producten/:id/extras/:otherId", h.relation(h.catalog.AddExtra))
		v1.DELETE("/producten/:id/extras/:otherId", h.relation(h.catalog.RemoveExtra))
		v1.POST("/producten/:id/producten/:otherId", h.relation(h.catalog.AddSetMember))
		v1.DELETE("/producten/:id/producten/:otherId", h.relation(h.catalog.RemoveSetMember))
		v1.POST("/producten/:id/variaties/:otherId", h.relation(h.catalog.AddVariation))
		v1.DELETE("/producten/:id/variaties/:otherId", h.relation(h.catalog.RemoveVariation))
		v1.PUT("/producten/:id/moeder", h.setParent)
		v1.POST("/producten/:id/groepen/:otherId", h.relation(h.catalog.AddGroup))
		v1.DELETE("/producten/:id/groepen/:otherId", h.relation(h.catalog.RemoveGroup))
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listProducts handles catalog queries
func (h *Handler) listProducts(c *gin.Context) {
	filter := models.ProductFilter{
		Organization: c.Query("bronOrganisatie"),
		SortBy:       c.Query("sort"),
		Order:        c.Query("order"),
	}
	if raw := c.Query("type"); raw != "" {
		productType, err := models.ParseProductType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product type", "details": err.Error()})
			return
		}
		filter.Type = productType
	}
	if raw := c.Query("losLeverbaar"); raw != "" {
		standalone, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid losLeverbaar filter", "details": err.Error()})
			return
		}
		filter.StandalonePurchasable = &standalone
	}

	products, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = h.present(p)
	}
	c.JSON(http.StatusOK, out)
}

// createProduct handles product creation
func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	p, err := h.catalog.CreateProduct(c.Request.Context(), &req, c.GetHeader(ApplicationHeader))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Location", p.URL(h.baseURL))
	c.JSON(http.StatusCreated, h.present(p))
}

// getProduct handles get product by ID
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.present(p))
}

// replaceProduct handles full updates of the writable fields
func (h *Handler) replaceProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.ProductWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	p, err := h.catalog.ReplaceProduct(c.Request.Context(), id, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.present(p))
}

// deleteProduct handles product removal
func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// history lists the recorded versions of a product
func (h *Handler) history(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	versions, err := h.catalog.History(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// revert restores a recorded version
func (h *Handler) revert(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid version"})
		return
	}

	p, err := h.catalog.Revert(c.Request.Context(), id, version)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.present(p))
}

type relationFunc func(ctx context.Context, id, otherID int64) (*models.Product, error)

// relation adapts a pairwise catalog mutation to a route
func (h *Handler) relation(mutate relationFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		otherID, ok := pathID(c, "otherId")
		if !ok {
			return
		}

		p, err := mutate(c.Request.Context(), id, otherID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, h.present(p))
	}
}

// setParent moves a variation to another parent, or detaches it
func (h *Handler) setParent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.ParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	p, err := h.catalog.SetParent(c.Request.Context(), id, req.ParentID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.present(p))
}

// productResponse is the read representation of a product
type productResponse struct {
	*models.Product
	URL string `json:"url"`
}

func (h *Handler) present(p *models.Product) productResponse {
	return productResponse{Product: p, URL: p.URL(h.baseURL)}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// writeError maps catalog errors to HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var validation *models.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid product",
			"fields": validation.Fields,
		})
		return
	}

	status, message := http.StatusInternalServerError, "Internal error"
	switch {
	case models.IsProductNotFoundError(err):
		status, message = http.StatusNotFound, "Product not found"
	case errors.Is(err, models.ErrVersionNotFound):
		status, message = http.StatusNotFound, "Version not found"
	case errors.Is(err, models.ErrDuplicateIdentifier):
		status, message = http.StatusConflict, "Duplicate product"
	case errors.Is(err, models.ErrConcurrentModification):
		status, message = http.StatusConflict, "Product is being modified"
	case errors.Is(err, models.ErrImmutableField):
		status, message = http.StatusUnprocessableEntity, "Field cannot be changed"
	case errors.Is(err, models.ErrTypeConstraint),
		errors.Is(err, models.ErrSelfReference),
		errors.Is(err, models.ErrRelationCycle),
		errors.Is(err, models.ErrParentAlreadySet),
		errors.Is(err, models.ErrStaleParent),
		errors.Is(err, models.ErrUnsavedProduct):
		status, message = http.StatusUnprocessableEntity, "Relation not allowed"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
