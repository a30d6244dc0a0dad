package payos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderWrappedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payos/create", r.URL.Path)

		var req CreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(190000), req.Amount)

		_, _ = w.Write([]byte(`{
			"code": "00",
			"desc": "success",
			"data": {
				"checkoutUrl": "https://pay.payos.vn/web/abc",
				"qrCode": "000201010212...",
				"paymentLinkId": "abc",
				"accountNumber": "123456789",
				"accountName": "CINEBOOK JSC",
				"bin": "970422"
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	info, err := c.CreateOrder(context.Background(), "tok", CreateOrderRequest{
		OrderCode: 1717243800000, Amount: 190000, Description: "CineBook order",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.payos.vn/web/abc", info.CheckoutURL)
	assert.Equal(t, "970422", info.BankBin)
}

func TestCreateOrderFlatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"checkoutUrl": "https://pay.payos.vn/web/flat", "qrCode": "qr"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	info, err := c.CreateOrder(context.Background(), "tok", CreateOrderRequest{OrderCode: 1, Amount: 1000})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.payos.vn/web/flat", info.CheckoutURL)
}

func TestCreateOrderProviderCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": "231", "desc": "Đơn hàng đã tồn tại"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	_, err := c.CreateOrder(context.Background(), "tok", CreateOrderRequest{OrderCode: 1, Amount: 1000})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "231", perr.Code)
	assert.Equal(t, "Đơn hàng đã tồn tại", perr.Desc)
}

func TestCreateOrderNoHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": "00", "data": {"paymentLinkId": "abc"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	_, err := c.CreateOrder(context.Background(), "tok", CreateOrderRequest{OrderCode: 1, Amount: 1000})
	require.Error(t, err)

	var perr *ProviderError
	assert.ErrorAs(t, err, &perr)
}

func TestCheckOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payos/check/1717243800000", r.URL.Path)
		_, _ = w.Write([]byte(`{"code": "00", "data": {"status": "PAID"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	status, err := c.CheckOrder(context.Background(), "tok", 1717243800000)
	require.NoError(t, err)
	assert.Equal(t, "PAID", status)
}

func TestCheckOrderFlatStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "PENDING"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	status, err := c.CheckOrder(context.Background(), "tok", 1)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", status)
}

func TestPaid(t *testing.T) {
	assert.True(t, Paid("PAID"))
	assert.True(t, Paid("paid"))
	assert.True(t, Paid("COMPLETED"))
	assert.True(t, Paid("completed"))
	assert.False(t, Paid("PENDING"))
	assert.False(t, Paid("CANCELLED"))
	assert.False(t, Paid(""))
}
