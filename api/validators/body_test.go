package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
)

type lineBody struct {
	ItemCode string `json:"item_code" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type orderBody struct {
	RestaurantID string     `json:"restaurant_id" validate:"required"`
	Lines        []lineBody `json:"lines" validate:"required,min=1,dive"`
}

func TestDecodeJSONBodyReportsNestedFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"restaurant_id":"R1","lines":[{"item_code":"SKU-1","quantity":0}]}`))
	var body orderBody
	err := DecodeJSONBody(req, &body)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]any)
	require.Equal(t, "must be greater than 0", details["lines[0].quantity"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"restaurant_id":"R1","extra":true}`))
	var body orderBody
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"restaurant_id":"R1","lines":[{"item_code":"A","quantity":1}]} {}`))
	var body orderBody
	require.Error(t, DecodeJSONBody(req, &body))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err := ParseQueryInt(req, "limit", 50, 1, 200)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	v, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 50, 1, 200)
	require.NoError(t, err)
	require.Equal(t, 50, v)
}

func TestParsePathID(t *testing.T) {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", "42")
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.WithValue(context.Background(), chi.RouteCtxKey, rc))
	id, err := ParsePathID(req, "orderId")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)

	rc.URLParams = chi.RouteParams{}
	rc.URLParams.Add("orderId", "-1")
	_, err = ParsePathID(req, "orderId")
	require.Error(t, err)
}
