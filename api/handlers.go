/*
handlers.go - HTTP handlers for the trade settlement API

PURPOSE:
  Exposes parties, invoices, products, prices, orders and reports over
  REST. Handlers parse and validate input, delegate to the domain layer,
  and translate domain errors to HTTP status codes.

ENDPOINTS:
  Auth:
    POST   /api/login                  Exchange credentials for a token

  Parties:
    GET    /api/parties                List parties (?role=buyer|supplier)
    POST   /api/parties                Create party
    GET    /api/parties/{id}           Get party
    GET    /api/parties/{id}/invoices  Full invoice history, balancing included
    GET    /api/parties/{id}/orders    Orders the party took part in
                                       (?year=, ?month=; either side)

  Invoices:
    POST   /api/invoices               Register an invoice (payment received/made)

  Products and prices:
    GET    /api/products               List products
    POST   /api/products               Create product
    POST   /api/prices                 Set a party's unit price for a product

  Orders:
    POST   /api/orders                 Create order
    GET    /api/orders/{id}            Get order
    POST   /api/orders/{id}/settle     Settle both sides against invoices

  Reports:
    GET    /api/reports/{year}         Year aggregate
    GET    /api/reports/{year}/{month} Month aggregate

  Costs:
    POST   /api/costs                  Record an operating cost

ERROR HANDLING:
  - 400: invalid input (bad JSON, negative amounts, reserved invoice number)
  - 401: missing/invalid token on a protected route
  - 404: referenced entity does not exist
  - 409: broken ledger invariant, surfaced for manual reconciliation
  - 500: persistence and other internal failures

SEE ALSO:
  - dto.go: request/response data structures
  - auth.go: token issuance and the RequireAdmin middleware
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/trade-settlement/settlement"
	"github.com/warp/trade-settlement/store/sqlite"
	"github.com/warp/trade-settlement/trade"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Orders  *trade.OrderService
	Reports *trade.ReportService
	Log     zerolog.Logger
}

// NewHandler creates a handler over the given store and services.
func NewHandler(store *sqlite.Store, orders *trade.OrderService, reports *trade.ReportService, log zerolog.Logger) *Handler {
	return &Handler{
		Store:   store,
		Orders:  orders,
		Reports: reports,
		Log:     log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// PARTY HANDLERS
// =============================================================================

// ListParties returns all parties, optionally filtered by ?role=.
func (h *Handler) ListParties(w http.ResponseWriter, r *http.Request) {
	role := settlement.Role(r.URL.Query().Get("role"))
	if role != "" && role != settlement.RoleBuyer && role != settlement.RoleSupplier {
		writeError(w, http.StatusBadRequest, "Unknown role filter", nil)
		return
	}

	parties, err := h.Store.ListParties(r.Context(), role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list parties", err)
		return
	}

	dtos := make([]PartyDTO, 0, len(parties))
	for _, p := range parties {
		dtos = append(dtos, toPartyDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateParty creates a new buyer or supplier.
func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	var req CreatePartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	role := settlement.Role(req.Role)
	if req.Name == "" || (role != settlement.RoleBuyer && role != settlement.RoleSupplier) {
		writeError(w, http.StatusBadRequest, "Name and a role of buyer or supplier are required", nil)
		return
	}

	p := &trade.Party{
		ID:        settlement.PartyID(uuid.NewString()),
		Name:      req.Name,
		Role:      role,
		CreatedAt: time.Now(),
	}
	if err := h.Store.SaveParty(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create party", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPartyDTO(p))
}

// GetParty returns a single party.
func (h *Handler) GetParty(w http.ResponseWriter, r *http.Request) {
	id := settlement.PartyID(chi.URLParam(r, "id"))

	p, err := h.Store.Party(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get party", err)
		return
	}

	writeJSON(w, http.StatusOK, toPartyDTO(p))
}

// GetPartyInvoices returns a party's full invoice history, the balancing
// invoice included.
func (h *Handler) GetPartyInvoices(w http.ResponseWriter, r *http.Request) {
	id := settlement.PartyID(chi.URLParam(r, "id"))

	if _, err := h.Store.Party(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to get party", err)
		return
	}

	invoices, err := h.Store.PartyInvoices(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceDTOs(invoices))
}

// GetPartyOrders lists the orders a party took part in, on either side,
// within one year (default: current) or one month of it.
func (h *Handler) GetPartyOrders(w http.ResponseWriter, r *http.Request) {
	id := settlement.PartyID(chi.URLParam(r, "id"))

	if _, err := h.Store.Party(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to get party", err)
		return
	}

	year := time.Now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		y, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	if q := r.URL.Query().Get("month"); q != "" {
		m, err := strconv.Atoi(q)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		from = time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, 0)
	}

	orders, err := h.Store.PartyOrders(r.Context(), id, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}

	dtos := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderDTO(o))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// CreateInvoice registers a payment invoice on a party's ledger.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// The balancing number is system-owned; clients cannot mint one.
	if req.Number == settlement.BalancingInvoiceNumber {
		writeError(w, http.StatusBadRequest, "Invoice number is reserved", nil)
		return
	}
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "Invoice number is required", nil)
		return
	}
	if !req.Value.IsPositive() {
		writeError(w, http.StatusBadRequest, "Invoice value must be positive", nil)
		return
	}

	if _, err := h.Store.Party(r.Context(), settlement.PartyID(req.PartyID)); err != nil {
		h.writeDomainError(w, "Failed to get party", err)
		return
	}

	issued := req.IssuedOn
	if issued.IsZero() {
		issued = time.Now()
	}

	inv := &settlement.Invoice{
		ID:          settlement.InvoiceID(uuid.NewString()),
		PartyID:     settlement.PartyID(req.PartyID),
		Number:      req.Number,
		Value:       req.Value,
		AmountToUse: req.Value,
		IssuedOn:    issued,
	}
	if err := h.Store.SaveInvoice(r.Context(), inv); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save invoice", err)
		return
	}

	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

// =============================================================================
// PRODUCT AND PRICE HANDLERS
// =============================================================================

// ListProducts returns all products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, ProductDTO{ID: p.ID, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct creates a new product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Product name is required", nil)
		return
	}

	p := &trade.Product{ID: uuid.NewString(), Name: req.Name}
	if err := h.Store.SaveProduct(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create product", err)
		return
	}

	writeJSON(w, http.StatusCreated, ProductDTO{ID: p.ID, Name: p.Name})
}

// SetPrice sets or replaces a party's unit price for a product.
func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req SetPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Value.IsNegative() {
		writeError(w, http.StatusBadRequest, "Price must not be negative", nil)
		return
	}

	if _, err := h.Store.Party(r.Context(), settlement.PartyID(req.PartyID)); err != nil {
		h.writeDomainError(w, "Failed to get party", err)
		return
	}

	price := &trade.Price{
		PartyID:   settlement.PartyID(req.PartyID),
		ProductID: req.ProductID,
		Value:     req.Value,
	}
	if err := h.Store.SavePrice(r.Context(), price); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save price", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// CreateOrder creates a new order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	o := &trade.Order{
		BuyerID:    settlement.PartyID(req.BuyerID),
		SupplierID: settlement.PartyID(req.SupplierID),
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		TypedPrice: req.TypedPrice,
		Comment:    settlement.Comment{UserText: req.UserComment},
		PlacedOn:   req.PlacedOn,
	}
	if err := h.Orders.CreateOrder(r.Context(), o); err != nil {
		h.writeDomainError(w, "Failed to create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderDTO(o))
}

// GetOrder returns a single order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Store.Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// SettleOrder settles both sides of an order against the parties' invoices.
func (h *Handler) SettleOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	summary, err := h.Orders.SettleOrder(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to settle order", err)
		return
	}

	writeJSON(w, http.StatusOK, SettleOrderResponse{
		Order:    toOrderDTO(summary.Order),
		Buyer:    toResultDTO(summary.Buyer),
		Supplier: toResultDTO(summary.Supplier),
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// YearReport returns the aggregate report for one year.
func (h *Handler) YearReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	report, err := h.Reports.YearReport(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}

	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// MonthReport returns the aggregate report for one month.
func (h *Handler) MonthReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	report, err := h.Reports.MonthReport(r.Context(), year, time.Month(month))
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}

	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// =============================================================================
// COST HANDLERS
// =============================================================================

// CreateCost records an operating cost.
func (h *Handler) CreateCost(w http.ResponseWriter, r *http.Request) {
	var req CreateCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Value.IsNegative() {
		writeError(w, http.StatusBadRequest, "Cost value must not be negative", nil)
		return
	}

	incurred := req.IncurredOn
	if incurred.IsZero() {
		incurred = time.Now()
	}

	c := &trade.Cost{
		ID:          uuid.NewString(),
		Description: req.Description,
		Value:       req.Value,
		IncurredOn:  incurred,
	}
	if err := h.Store.SaveCost(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save cost", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": c.ID})
}

// =============================================================================
// HELPERS
// =============================================================================

// writeDomainError maps domain errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case settlement.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, settlement.ErrInvariantViolation):
		// Broken ledger state: refuse to proceed, leave it for an operator.
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
