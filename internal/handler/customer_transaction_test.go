package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketon/backend/internal/handler"
	"github.com/ticketon/backend/internal/model"
	"github.com/ticketon/backend/internal/repository"
	"github.com/ticketon/backend/internal/service"
)

// lifecycleStub lets each test script the engine's answers and record
// what the handler asked for.
type lifecycleStub struct {
	createIn     service.CreateTransactionInput
	createUserID uint64
	createOut    *model.Transaction
	createErr    error

	submitOut *model.Transaction
	submitErr error

	approveErr error
	rejectErr  error
	cancelErr  error
	canceledID uint64
}

func (s *lifecycleStub) Create(_ context.Context, userID uint64, in service.CreateTransactionInput) (*model.Transaction, error) {
	s.createUserID = userID
	s.createIn = in
	return s.createOut, s.createErr
}

func (s *lifecycleStub) SubmitProof(_ context.Context, _, _ uint64, _ string) (*model.Transaction, error) {
	return s.submitOut, s.submitErr
}

func (s *lifecycleStub) Approve(context.Context, uint64, uint64) error { return s.approveErr }
func (s *lifecycleStub) Reject(context.Context, uint64, uint64) error  { return s.rejectErr }

func (s *lifecycleStub) Cancel(_ context.Context, id, _ uint64) error {
	s.canceledID = id
	return s.cancelErr
}

func (s *lifecycleStub) ListForUser(context.Context, uint64) ([]service.TransactionWithItems, error) {
	return nil, nil
}

func (s *lifecycleStub) GetForUser(context.Context, uint64, uint64) (*service.TransactionWithItems, error) {
	return nil, repository.ErrTransactionNotFound
}

func (s *lifecycleStub) ListForOrganizer(context.Context, uint64) ([]service.TransactionWithItems, error) {
	return nil, nil
}

func request(method, target, body string, userID uint64, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	return c, rec
}

func TestCreateTransaction_PassesInputThrough(t *testing.T) {
	stub := &lifecycleStub{createOut: &model.Transaction{
		ID: 11, EventID: 3, TotalPrice: 200000, FinalPrice: 175000, PointsUsed: 5000,
		Status: model.StatusWaitingPayment, ExpiresAt: time.Now().UTC().Add(2 * time.Hour),
	}}
	h := handler.NewCustomerHandler(stub, nil, nil)

	c, rec := request(http.MethodPost, "/v1/customer/transactions",
		`{"event_id":3,"quantity":2,"voucher_code":"SAVE10","points":5000}`, 7)
	require.NoError(t, h.CreateTransaction(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(7), stub.createUserID)
	assert.Equal(t, uint64(3), stub.createIn.EventID)
	assert.Equal(t, 2, stub.createIn.Quantity)
	assert.Equal(t, "SAVE10", stub.createIn.VoucherCode)
	assert.Equal(t, int64(5000), stub.createIn.PointsRequested)
	assert.Contains(t, rec.Body.String(), `"final_price":175000`)
}

func TestCreateTransaction_Validation(t *testing.T) {
	h := handler.NewCustomerHandler(&lifecycleStub{}, nil, nil)

	c, rec := request(http.MethodPost, "/v1/customer/transactions", `{"event_id":0,"quantity":1}`, 7)
	require.NoError(t, h.CreateTransaction(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = request(http.MethodPost, "/v1/customer/transactions", `{"event_id":3,"quantity":1,"points":-5}`, 7)
	require.NoError(t, h.CreateTransaction(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTransaction_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{repository.ErrEventNotFound, http.StatusNotFound},
		{repository.ErrInsufficientSeats, http.StatusConflict},
		{repository.ErrVoucherInvalid, http.StatusBadRequest},
		{repository.ErrVoucherExhausted, http.StatusConflict},
		{repository.ErrCouponExpired, http.StatusBadRequest},
	}
	for _, tc := range cases {
		h := handler.NewCustomerHandler(&lifecycleStub{createErr: tc.err}, nil, nil)
		c, rec := request(http.MethodPost, "/v1/customer/transactions", `{"event_id":3,"quantity":1}`, 7)
		require.NoError(t, h.CreateTransaction(c))
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestSubmitProof_RequiresBody(t *testing.T) {
	h := handler.NewCustomerHandler(&lifecycleStub{}, nil, nil)
	c, rec := request(http.MethodPost, "/v1/customer/transactions/5/payment-proof", `{}`, 7, "id", "5")
	require.NoError(t, h.SubmitProof(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitProof_ExpiredMapsToConflict(t *testing.T) {
	h := handler.NewCustomerHandler(&lifecycleStub{submitErr: repository.ErrTransactionExpired}, nil, nil)
	c, rec := request(http.MethodPost, "/v1/customer/transactions/5/payment-proof",
		`{"payment_proof":"https://x/proof.png"}`, 7, "id", "5")
	require.NoError(t, h.SubmitProof(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelTransaction(t *testing.T) {
	stub := &lifecycleStub{}
	h := handler.NewCustomerHandler(stub, nil, nil)
	c, rec := request(http.MethodPost, "/v1/customer/transactions/5/cancel", "", 7, "id", "5")
	require.NoError(t, h.CancelTransaction(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(5), stub.canceledID)

	h = handler.NewCustomerHandler(&lifecycleStub{cancelErr: repository.ErrInvalidState}, nil, nil)
	c, rec = request(http.MethodPost, "/v1/customer/transactions/5/cancel", "", 7, "id", "5")
	require.NoError(t, h.CancelTransaction(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApproveAndReject(t *testing.T) {
	h := handler.NewOrganizerHandler(nil, nil, &lifecycleStub{})
	c, rec := request(http.MethodPost, "/v1/organizer/transactions/5/approve", "", 2, "id", "5")
	require.NoError(t, h.ApproveTransaction(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), model.StatusDone)

	h = handler.NewOrganizerHandler(nil, nil, &lifecycleStub{approveErr: repository.ErrForbidden})
	c, rec = request(http.MethodPost, "/v1/organizer/transactions/5/approve", "", 2, "id", "5")
	require.NoError(t, h.ApproveTransaction(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	h = handler.NewOrganizerHandler(nil, nil, &lifecycleStub{rejectErr: repository.ErrInvalidState})
	c, rec = request(http.MethodPost, "/v1/organizer/transactions/5/reject", "", 2, "id", "5")
	require.NoError(t, h.RejectTransaction(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
