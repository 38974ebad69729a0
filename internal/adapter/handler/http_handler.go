package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/catalog-orders/internal/core/domain"
	"github.com/rl1809/catalog-orders/internal/core/service"
)

// Identity headers set by the authenticating gateway in front of the service.
const (
	headerUserID         = "X-User-ID"
	headerUserEmail      = "X-User-Email"
	headerIdempotencyKey = "Idempotency-Key"
)

const maxBodyBytes = 1 << 20

type actorKey struct{}

type HTTPHandler struct {
	orders   *service.OrderService
	products *service.ProductService
	history  *service.HistoryService
	logger   *zap.Logger
}

type ProductHTTPRequest struct {
	PartNumber     string          `json:"part_number"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Specifications json.RawMessage `json:"specifications"`
	Category       string          `json:"category"`
	ImageURL       string          `json:"image_url"`
	Price          decimal.Decimal `json:"price"`
	Active         *bool           `json:"active"`
	Stock          int             `json:"stock"`
}

type CreateOrderHTTPRequest struct {
	Items []domain.OrderLine `json:"items"`
}

type UpdateStatusHTTPRequest struct {
	Status string `json:"status"`
}

func NewHTTPHandler(orders *service.OrderService, products *service.ProductService, history *service.HistoryService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{orders: orders, products: products, history: history, logger: logger}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(withActor)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.With(requireActor).Post("/", h.CreateProduct)
			r.Get("/part/{partNumber}", h.GetProductByPartNumber)
			r.Get("/{id}", h.GetProduct)
			r.With(requireActor).Put("/{id}", h.UpdateProduct)
			r.With(requireActor).Delete("/{id}", h.DeleteProduct)
			r.Get("/{id}/history", h.GetProductHistory)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(requireActor)
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListMyOrders)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}/status", h.UpdateOrderStatus)
			r.Get("/{id}/history", h.GetOrderHistory)
			r.Get("/{id}/items/history", h.GetOrderItemHistory)
		})

		r.With(requireActor).Get("/admin/orders", h.ListOrdersByStatus)
	})
	return r
}

func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{ID: r.Header.Get(headerUserID), Email: r.Header.Get(headerUserEmail)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorFrom(r.Context()).ID == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "UNAUTHENTICATED", Message: "missing user identity"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFrom(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorKey{}).(domain.Actor)
	return actor
}

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := toResponse(h.logger, r.Method+" "+r.URL.Path, err)
	writeJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.InvalidArgument("invalid request body: %v", err)
	}
	return nil
}

func (req ProductHTTPRequest) input() domain.ProductInput {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return domain.ProductInput{
		PartNumber:     req.PartNumber,
		Name:           req.Name,
		Description:    req.Description,
		Specifications: req.Specifications,
		Category:       req.Category,
		ImageURL:       req.ImageURL,
		Price:          req.Price,
		Active:         active,
		Stock:          req.Stock,
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseProductQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.products.ListProducts(r.Context(), filter, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseProductQuery(r *http.Request) (domain.ProductFilter, domain.Page, error) {
	q := r.URL.Query()
	filter := domain.ProductFilter{Category: q.Get("category"), NameContains: q.Get("name")}
	page := domain.Page{Sort: q.Get("sort")}

	var err error
	if page.Index, err = intParam(q.Get("page")); err != nil {
		return filter, page, domain.InvalidArgument("page: %v", err)
	}
	if page.Size, err = intParam(q.Get("size")); err != nil {
		return filter, page, domain.InvalidArgument("size: %v", err)
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return filter, page, domain.InvalidArgument("active: %v", err)
		}
		filter.Active = &active
	}
	if filter.MinPrice, err = decimalParam(q.Get("minPrice")); err != nil {
		return filter, page, domain.InvalidArgument("minPrice: %v", err)
	}
	if filter.MaxPrice, err = decimalParam(q.Get("maxPrice")); err != nil {
		return filter, page, domain.InvalidArgument("maxPrice: %v", err)
	}
	return filter, page, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func decimalParam(v string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductHTTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	product, err := h.products.CreateProduct(r.Context(), actorFrom(r.Context()), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) GetProductByPartNumber(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetProductByPartNumber(r.Context(), chi.URLParam(r, "partNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductHTTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	product, err := h.products.UpdateProduct(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.DeleteProduct(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) GetProductHistory(w http.ResponseWriter, r *http.Request) {
	revs, err := h.history.GetProductHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revs)
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderHTTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.orders.PlaceOrder(r.Context(), actorFrom(r.Context()), r.Header.Get(headerIdempotencyKey), req.Items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrdersForUser(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusHTTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.orders.UpdateOrderStatus(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	revs, err := h.history.GetOrderHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revs)
}

func (h *HTTPHandler) GetOrderItemHistory(w http.ResponseWriter, r *http.Request) {
	revs, err := h.history.GetOrderItemHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revs)
}

func (h *HTTPHandler) ListOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrdersByStatus(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
