package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ticketon/backend/internal/model"
	"github.com/ticketon/backend/internal/repository"
	"github.com/ticketon/backend/internal/service"
)

// OrganizerHandler serves event management, voucher issuance and the
// organizer side of the purchase lifecycle (reviewing payment
// proofs).  Invalidate, when set, is called after every event write
// so the public browse cache reflects the change immediately.
type OrganizerHandler struct {
	Events     *repository.EventRepo
	Vouchers   *repository.VoucherRepo
	Svc        service.Lifecycle
	Invalidate func()
}

func NewOrganizerHandler(events *repository.EventRepo, vouchers *repository.VoucherRepo, svc service.Lifecycle) *OrganizerHandler {
	return &OrganizerHandler{Events: events, Vouchers: vouchers, Svc: svc}
}

func (h *OrganizerHandler) invalidate() {
	if h.Invalidate != nil {
		h.Invalidate()
	}
}

// ----- DTOs -----

type eventReq struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Price       int64     `json:"price"`
	SeatTotal   int       `json:"seat_total"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

type voucherReq struct {
	Code            string    `json:"code"`
	DiscountAmount  int64     `json:"discount_amount"`
	DiscountPercent int64     `json:"discount_percent"`
	MaxUsage        int       `json:"max_usage"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// CreateEvent publishes a new event with its full seat inventory
// available.
func (h *OrganizerHandler) CreateEvent(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.Price < 0 || req.SeatTotal <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title, non-negative price and positive seat_total required"})
	}
	if !req.EndDate.After(req.StartDate) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be after start_date"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev := &model.Event{
		OrganizerID: currentUserID(c),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Price:       req.Price,
		SeatTotal:   req.SeatTotal,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if err := h.Events.Create(ctx, ev, time.Now().UTC()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
	}
	h.invalidate()
	return c.JSON(http.StatusCreated, toEventResp(ev))
}

// ListMyEvents returns the organizer's own events.
func (h *OrganizerHandler) ListMyEvents(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	events, err := h.Events.ListByOrganizer(ctx, currentUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]eventResp, 0, len(events))
	for i := range events {
		out = append(out, toEventResp(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// UpdateEvent modifies an event's mutable fields.  Seat totals are
// fixed at publication; only price, text fields and dates may change.
func (h *OrganizerHandler) UpdateEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.Price < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and non-negative price required"})
	}
	if !req.EndDate.After(req.StartDate) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be after start_date"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev := &model.Event{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Price:       req.Price,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if err := h.Events.Update(ctx, ev, currentUserID(c), time.Now().UTC()); err != nil {
		return lifecycleError(c, err)
	}
	h.invalidate()
	return c.JSON(http.StatusOK, echo.Map{"status": "updated"})
}

// DeleteEvent soft-deletes an event.  Historical transactions keep
// referencing it; it just disappears from browse and stops accepting
// purchases.
func (h *OrganizerHandler) DeleteEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Events.SoftDelete(ctx, id, currentUserID(c), time.Now().UTC()); err != nil {
		return lifecycleError(c, err)
	}
	h.invalidate()
	return c.NoContent(http.StatusNoContent)
}

// CreateVoucher issues a discount code for one of the organizer's
// events.
func (h *OrganizerHandler) CreateVoucher(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req voucherReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Code == "" || req.MaxUsage <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code and positive max_usage required"})
	}
	if req.DiscountAmount <= 0 && (req.DiscountPercent <= 0 || req.DiscountPercent > 100) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "discount_amount or discount_percent (1-100) required"})
	}
	if !req.EndDate.After(req.StartDate) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be after start_date"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v := &model.Voucher{
		EventID:         eventID,
		Code:            req.Code,
		DiscountAmount:  req.DiscountAmount,
		DiscountPercent: req.DiscountPercent,
		MaxUsage:        req.MaxUsage,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	}
	if err := h.Vouchers.Create(ctx, v, currentUserID(c), time.Now().UTC()); err != nil {
		if repository.IsDuplicateCode(err) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "voucher code already exists"})
		}
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": v.ID, "code": v.Code})
}

// ListVouchers returns the vouchers of one of the organizer's events.
func (h *OrganizerHandler) ListVouchers(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	vouchers, err := h.Vouchers.ListByEvent(ctx, eventID, currentUserID(c))
	if err != nil {
		return lifecycleError(c, err)
	}
	type voucherResp struct {
		ID              uint64    `json:"id"`
		Code            string    `json:"code"`
		DiscountAmount  int64     `json:"discount_amount"`
		DiscountPercent int64     `json:"discount_percent"`
		MaxUsage        int       `json:"max_usage"`
		UsedCount       int       `json:"used_count"`
		StartDate       time.Time `json:"start_date"`
		EndDate         time.Time `json:"end_date"`
	}
	out := make([]voucherResp, 0, len(vouchers))
	for _, v := range vouchers {
		out = append(out, voucherResp{
			ID: v.ID, Code: v.Code,
			DiscountAmount: v.DiscountAmount, DiscountPercent: v.DiscountPercent,
			MaxUsage: v.MaxUsage, UsedCount: v.UsedCount,
			StartDate: v.StartDate, EndDate: v.EndDate,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"vouchers": out})
}

// ListTransactions returns every transaction against the organizer's
// events, newest first, so pending proofs can be reviewed.
func (h *OrganizerHandler) ListTransactions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	txns, err := h.Svc.ListForOrganizer(ctx, currentUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]transactionResp, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResp(&txns[i].Transaction, txns[i].Items))
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": out})
}

// ApproveTransaction accepts a submitted payment proof and completes
// the purchase.
func (h *OrganizerHandler) ApproveTransaction(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Approve(ctx, id, currentUserID(c)); err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.StatusDone})
}

// RejectTransaction declines a submitted payment proof and returns
// the transaction's seats, points and voucher slot.
func (h *OrganizerHandler) RejectTransaction(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Reject(ctx, id, currentUserID(c)); err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.StatusRejected})
}
