package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ecommerce-api/internal/service"
	"ecommerce-api/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	carts     *service.CartService
	orders    *service.OrderService
	discounts *service.DiscountService
	admin     *service.AdminService
	checkout  *service.CheckoutOrchestrator
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	carts *service.CartService,
	orders *service.OrderService,
	discounts *service.DiscountService,
	admin *service.AdminService,
	checkout *service.CheckoutOrchestrator,
) *Handler {
	return &Handler{
		carts:     carts,
		orders:    orders,
		discounts: discounts,
		admin:     admin,
		checkout:  checkout,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine, corsOrigins []string) {
	router.HandleMethodNotAllowed = true

	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))
	router.Use(corsMiddleware(corsOrigins))

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	cart := router.Group("/cart/:user_id")
	{
		cart.POST("/items", h.addItem)
		cart.DELETE("/items/:item_id", h.removeItem)
		cart.GET("", h.getCart)
		cart.POST("/checkout", h.checkoutCart)
		cart.GET("/orders", h.getUserOrders)
	}

	router.GET("/orders/:order_id", h.getOrder)

	admin := router.Group("/admin")
	{
		admin.POST("/discount-codes", h.generateDiscountCode)
		admin.GET("/discount-codes", h.listDiscountCodes)
		admin.GET("/stats", h.getStats)
		admin.GET("/orders", h.getOrderSummary)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// addItem handles adding an item to a cart
func (h *Handler) addItem(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErrorMessage(err)})
		return
	}

	item, msg := req.toItem()
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	cart, err := h.carts.AddItem(c.Request.Context(), userID, item)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"cart":    cart,
	})
}

// removeItem handles removing an item line from a cart
func (h *Handler) removeItem(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(c.Request.Context(), userID, c.Param("item_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"cart":    cart,
	})
}

// getCart handles get cart by user ID
func (h *Handler) getCart(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

// checkoutCart handles converting a cart into an order
func (h *Handler) checkoutCart(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	discountCode, msg := parseCheckoutBody(c.Request)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), userID, discountCode, c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if result.Replayed {
		c.JSON(http.StatusOK, gin.H{
			"message": "Order already placed",
			"order":   result.Order,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order placed successfully",
		"order":   result.Order,
	})
}

// getUserOrders lists a user's orders
func (h *Handler) getUserOrders(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	orders, err := h.orders.GetUserOrders(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":      orders,
		"total_count": len(orders),
	})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// generateDiscountCode handles manual discount code generation
func (h *Handler) generateDiscountCode(c *gin.Context) {
	dc, err := h.admin.GenerateDiscountCode(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":       "Discount code generated successfully",
		"discount_code": dc,
	})
}

// listDiscountCodes lists discount codes, only the currently valid ones
// with ?available=true
func (h *Handler) listDiscountCodes(c *gin.Context) {
	if c.Query("available") == "true" {
		codes, err := h.discounts.AvailableCodes(c.Request.Context())
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"discount_codes": codes,
			"total_count":    len(codes),
		})
		return
	}

	summary, err := h.admin.GetDiscountCodeSummary(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"discount_codes":  summary.Codes,
		"total_count":     summary.TotalCodes,
		"used_count":      summary.UsedCodes,
		"available_count": summary.AvailableCodes,
	})
}

func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.admin.GetStatistics(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) getOrderSummary(c *gin.Context) {
	summary, err := h.admin.GetOrderSummary(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":      summary,
		"total_count": len(summary),
	})
}

func userIDParam(c *gin.Context) (string, bool) {
	userID := c.Param("user_id")
	if strings.TrimSpace(userID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID cannot be empty"})
		return "", false
	}
	return userID, true
}

// writeError maps service errors to status codes. Unclassified errors are
// logged and reported generically.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": errorMessage(err)})
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidDiscount),
		errors.Is(err, service.ErrPreconditionFailed):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		return "Cart is empty"
	case errors.Is(err, service.ErrInvalidDiscount):
		return "Invalid or expired discount code"
	case errors.Is(err, service.ErrNotFound):
		return "Resource not found"
	default:
		return "Invalid request"
	}
}
