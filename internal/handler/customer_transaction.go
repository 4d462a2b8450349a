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

// CustomerHandler serves the customer side of the purchase lifecycle:
// creating transactions, submitting payment proof, canceling, and the
// reward read endpoints.  All state transitions go through the
// lifecycle service; the handler only translates HTTP.
type CustomerHandler struct {
	Svc     service.Lifecycle
	Points  *repository.PointRepo
	Coupons *repository.CouponRepo
}

func NewCustomerHandler(svc service.Lifecycle, points *repository.PointRepo, coupons *repository.CouponRepo) *CustomerHandler {
	return &CustomerHandler{Svc: svc, Points: points, Coupons: coupons}
}

// ----- DTOs -----

type createTransactionReq struct {
	EventID     uint64 `json:"event_id"`
	Quantity    int    `json:"quantity"`
	VoucherCode string `json:"voucher_code"`
	CouponCode  string `json:"coupon_code"`
	Points      int64  `json:"points"`
}

type submitProofReq struct {
	PaymentProof string `json:"payment_proof"`
}

type transactionItemResp struct {
	Quantity int   `json:"quantity"`
	Price    int64 `json:"price"`
}

type transactionResp struct {
	ID           uint64                `json:"id"`
	EventID      uint64                `json:"event_id"`
	TotalPrice   int64                 `json:"total_price"`
	FinalPrice   int64                 `json:"final_price"`
	PointsUsed   int64                 `json:"points_used"`
	Status       string                `json:"status"`
	PaymentProof *string               `json:"payment_proof,omitempty"`
	ExpiresAt    time.Time             `json:"expires_at"`
	CreatedAt    time.Time             `json:"created_at"`
	Items        []transactionItemResp `json:"items,omitempty"`
}

func toTransactionResp(t *model.Transaction, items []model.TransactionItem) transactionResp {
	resp := transactionResp{
		ID:           t.ID,
		EventID:      t.EventID,
		TotalPrice:   t.TotalPrice,
		FinalPrice:   t.FinalPrice,
		PointsUsed:   t.PointsUsed,
		Status:       t.Status,
		PaymentProof: t.PaymentProof,
		ExpiresAt:    t.ExpiresAt,
		CreatedAt:    t.CreatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, transactionItemResp{Quantity: it.Quantity, Price: it.Price})
	}
	return resp
}

// lifecycleError maps the service and repository sentinels onto HTTP
// responses.  Unknown errors collapse to 500 without detail.
func lifecycleError(c echo.Context, err error) error {
	switch err {
	case repository.ErrEventNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case repository.ErrTransactionNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
	case repository.ErrForbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case repository.ErrInvalidState:
		return c.JSON(http.StatusConflict, echo.Map{"error": "transaction is not in a state that allows this"})
	case repository.ErrInsufficientSeats:
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough seats left"})
	case repository.ErrInsufficientPoints:
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough points"})
	case repository.ErrVoucherInvalid:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "voucher is not valid for this purchase"})
	case repository.ErrVoucherExhausted:
		return c.JSON(http.StatusConflict, echo.Map{"error": "voucher usage limit reached"})
	case repository.ErrCouponExpired:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "coupon is expired or unknown"})
	case repository.ErrTransactionExpired:
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment deadline has passed"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
}

// CreateTransaction starts a purchase.  On success the caller gets
// the priced transaction in WAITING_PAYMENT with its payment
// deadline.
func (h *CustomerHandler) CreateTransaction(c echo.Context) error {
	var req createTransactionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.EventID == 0 || req.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and positive quantity required"})
	}
	if req.Points < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "points must not be negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Svc.Create(ctx, currentUserID(c), service.CreateTransactionInput{
		EventID:         req.EventID,
		Quantity:        req.Quantity,
		VoucherCode:     strings.TrimSpace(req.VoucherCode),
		CouponCode:      strings.TrimSpace(req.CouponCode),
		PointsRequested: req.Points,
	})
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusCreated, toTransactionResp(t, []model.TransactionItem{{Quantity: req.Quantity, Price: t.TotalPrice / int64(req.Quantity)}}))
}

// ListTransactions returns the caller's transactions, newest first.
func (h *CustomerHandler) ListTransactions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	txns, err := h.Svc.ListForUser(ctx, currentUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]transactionResp, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResp(&txns[i].Transaction, txns[i].Items))
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": out})
}

// GetTransaction returns one of the caller's transactions.
func (h *CustomerHandler) GetTransaction(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Svc.GetForUser(ctx, id, currentUserID(c))
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, toTransactionResp(&t.Transaction, t.Items))
}

// SubmitProof attaches the payment proof URL and moves the
// transaction into organizer review.
func (h *CustomerHandler) SubmitProof(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
	}
	var req submitProofReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.PaymentProof) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_proof required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Svc.SubmitProof(ctx, id, currentUserID(c), strings.TrimSpace(req.PaymentProof))
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, toTransactionResp(t, nil))
}

// CancelTransaction abandons a pending transaction and returns its
// seats, points and voucher slot.
func (h *CustomerHandler) CancelTransaction(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Cancel(ctx, id, currentUserID(c)); err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.StatusCanceled})
}

// ListPoints returns the caller's unexpired point grants and their
// total.
func (h *CustomerHandler) ListPoints(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	uid := currentUserID(c)
	grants, err := h.Points.ListByUser(ctx, uid, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	var total int64
	type grantResp struct {
		Amount    int64     `json:"amount"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	out := make([]grantResp, 0, len(grants))
	for _, g := range grants {
		total += g.Amount
		out = append(out, grantResp{Amount: g.Amount, ExpiresAt: g.ExpiresAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "grants": out})
}

// ValidateCoupon previews a coupon without consuming it.
func (h *CustomerHandler) ValidateCoupon(c echo.Context) error {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "coupon code required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	coupon, err := h.Coupons.Validate(ctx, code, time.Now().UTC())
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"code":       coupon.Code,
		"discount":   coupon.Discount,
		"expires_at": coupon.ExpiresAt,
	})
}
