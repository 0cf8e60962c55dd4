/*
dto.go - Data transfer objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the wire contract
  from the domain types. Monetary amounts cross the wire as fixed-scale
  strings ("100.00"), never as floats.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

VALIDATION:
  Validation is done in handlers; DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/trade-settlement/settlement"
	"github.com/warp/trade-settlement/trade"
)

// =============================================================================
// PARTIES
// =============================================================================

type PartyDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreatePartyRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func toPartyDTO(p *trade.Party) PartyDTO {
	return PartyDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Role:      string(p.Role),
		CreatedAt: p.CreatedAt,
	}
}

// =============================================================================
// INVOICES
// =============================================================================

type InvoiceDTO struct {
	ID          string           `json:"id"`
	PartyID     string           `json:"partyId"`
	Number      string           `json:"number"`
	Value       settlement.Money `json:"value"`
	AmountToUse settlement.Money `json:"amountToUse"`
	Used        bool             `json:"used"`
	IssuedOn    time.Time        `json:"issuedOn"`
	Balancing   bool             `json:"balancing"`
}

type CreateInvoiceRequest struct {
	PartyID  string           `json:"partyId"`
	Number   string           `json:"number"`
	Value    settlement.Money `json:"value"`
	IssuedOn time.Time        `json:"issuedOn"`
}

func toInvoiceDTO(inv *settlement.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:          string(inv.ID),
		PartyID:     string(inv.PartyID),
		Number:      inv.Number,
		Value:       inv.Value,
		AmountToUse: inv.AmountToUse,
		Used:        inv.Used,
		IssuedOn:    inv.IssuedOn,
		Balancing:   inv.IsBalancing(),
	}
}

func toInvoiceDTOs(invoices []*settlement.Invoice) []InvoiceDTO {
	dtos := make([]InvoiceDTO, 0, len(invoices))
	for _, inv := range invoices {
		dtos = append(dtos, toInvoiceDTO(inv))
	}
	return dtos
}

// =============================================================================
// PRODUCTS AND PRICES
// =============================================================================

type ProductDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateProductRequest struct {
	Name string `json:"name"`
}

type SetPriceRequest struct {
	PartyID   string           `json:"partyId"`
	ProductID string           `json:"productId"`
	Value     settlement.Money `json:"value"`
}

// =============================================================================
// ORDERS AND SETTLEMENT
// =============================================================================

type CommentDTO struct {
	System string `json:"system"`
	User   string `json:"user"`
}

type OrderDTO struct {
	ID          string           `json:"id"`
	BuyerID     string           `json:"buyerId"`
	SupplierID  string           `json:"supplierId"`
	ProductID   string           `json:"productId"`
	Quantity    decimal.Decimal  `json:"quantity"`
	TypedPrice  settlement.Money `json:"typedPrice"`
	BuyerSum    settlement.Money `json:"buyerSum"`
	SupplierSum settlement.Money `json:"supplierSum"`
	Comment     CommentDTO       `json:"comment"`
	PlacedOn    time.Time        `json:"placedOn"`
}

type CreateOrderRequest struct {
	BuyerID     string           `json:"buyerId"`
	SupplierID  string           `json:"supplierId"`
	ProductID   string           `json:"productId"`
	Quantity    decimal.Decimal  `json:"quantity"`
	TypedPrice  settlement.Money `json:"typedPrice"`
	UserComment string           `json:"userComment"`
	PlacedOn    time.Time        `json:"placedOn"`
}

func toOrderDTO(o *trade.Order) OrderDTO {
	return OrderDTO{
		ID:          o.ID,
		BuyerID:     string(o.BuyerID),
		SupplierID:  string(o.SupplierID),
		ProductID:   o.ProductID,
		Quantity:    o.Quantity,
		TypedPrice:  o.TypedPrice,
		BuyerSum:    o.BuyerSum,
		SupplierSum: o.SupplierSum,
		Comment:     CommentDTO{System: o.Comment.SystemText, User: o.Comment.UserText},
		PlacedOn:    o.PlacedOn,
	}
}

type ConsumptionEventDTO struct {
	InvoiceID     string           `json:"invoiceId"`
	InvoiceNumber string           `json:"invoiceNumber"`
	Applied       settlement.Money `json:"applied"`
	Kind          string           `json:"kind"`
}

type SettlementResultDTO struct {
	Events    []ConsumptionEventDTO `json:"events"`
	Shortfall settlement.Money      `json:"shortfall"`
	Balancing *InvoiceDTO           `json:"balancing,omitempty"`
}

type SettleOrderResponse struct {
	Order    OrderDTO            `json:"order"`
	Buyer    SettlementResultDTO `json:"buyer"`
	Supplier SettlementResultDTO `json:"supplier"`
}

func toResultDTO(r settlement.Result) SettlementResultDTO {
	dto := SettlementResultDTO{
		Events:    make([]ConsumptionEventDTO, 0, len(r.Events)),
		Shortfall: r.Shortfall,
	}
	for _, ev := range r.Events {
		dto.Events = append(dto.Events, ConsumptionEventDTO{
			InvoiceID:     string(ev.InvoiceID),
			InvoiceNumber: ev.InvoiceNumber,
			Applied:       ev.Applied,
			Kind:          string(ev.Kind),
		})
	}
	if r.Balancing != nil {
		balancing := toInvoiceDTO(r.Balancing)
		dto.Balancing = &balancing
	}
	return dto
}

// =============================================================================
// REPORTS AND COSTS
// =============================================================================

type ReportDTO struct {
	Type                   string           `json:"type"`
	SoldValue              settlement.Money `json:"soldValue"`
	BoughtValue            settlement.Money `json:"boughtValue"`
	Income                 settlement.Money `json:"income"`
	SoldQuantity           decimal.Decimal  `json:"soldQuantity"`
	AverageSold            settlement.Money `json:"averageSold"`
	AveragePurchase        settlement.Money `json:"averagePurchase"`
	AverageEarningsPerUnit settlement.Money `json:"averageEarningsPerUnit"`
	SumCosts               settlement.Money `json:"sumCosts"`
	BuyersUnpaid           settlement.Money `json:"buyersUnpaid"`
}

func toReportDTO(r *trade.Report) ReportDTO {
	return ReportDTO{
		Type:                   r.Type,
		SoldValue:              r.SoldValue,
		BoughtValue:            r.BoughtValue,
		Income:                 r.Income,
		SoldQuantity:           r.SoldQuantity,
		AverageSold:            r.AverageSold,
		AveragePurchase:        r.AveragePurchase,
		AverageEarningsPerUnit: r.AverageEarningsPerUnit,
		SumCosts:               r.SumCosts,
		BuyersUnpaid:           r.BuyersUnpaid,
	}
}

type CreateCostRequest struct {
	Description string           `json:"description"`
	Value       settlement.Money `json:"value"`
	IncurredOn  time.Time        `json:"incurredOn"`
}

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
