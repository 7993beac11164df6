package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type placeOrderBody struct {
	AddressID string `json:"address_id" validate:"required,uuid"`
	Method    string `json:"payment_method" validate:"required,oneof=cod online wallet"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=10"`
}

func postJSON(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var dest placeOrderBody
	err := DecodeJSONBody(postJSON(`{"address_id":"9f1c7c5e-4c55-4d0e-9f59-0d7f0f2b9a11","payment_method":"wallet"}`), &dest)
	require.NoError(t, err)
	assert.Equal(t, "wallet", dest.Method)
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"empty", ``, "request body is required"},
		{"syntax", `{"payment_method" "cod"}`, "malformed JSON"},
		{"unknown field", `{"coupon":"X"}`, "unknown field"},
		{"wrong type", `{"quantity":"two"}`, "invalid field type"},
		{"trailing object", `{"payment_method":"cod"} {}`, "request body must be a single JSON object"},
		{"too large", `{"payment_method":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, "request body too large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var dest placeOrderBody
			err := DecodeJSONBody(postJSON(tc.body), &dest)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed, "expected typed error, got %v", err)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			assert.Equal(t, tc.message, typed.PublicMessage())
		})
	}
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	var dest placeOrderBody
	err := DecodeJSONBody(postJSON(`{"address_id":"nope","payment_method":"cash","quantity":11}`), &dest)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)

	details, ok := typed.Details().([]FieldError)
	require.True(t, ok, "details %T", typed.Details())
	assert.Equal(t, []FieldError{
		{Field: "address_id", Message: "must be a valid uuid"},
		{Field: "payment_method", Message: "must be one of: cod, online, wallet"},
		{Field: "quantity", Message: "must be at most 10"},
	}, details)
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&page=x&size=500", nil)

	v, err := ParseQueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	v, err = ParseQueryInt(req, "missing", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = ParseQueryInt(req, "page", 1, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(req, "size", 10, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "damaged box", SanitizeString("  damaged\x00 box\t ", 0))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\nline two", 100))
	// "é" is two bytes; a 5-byte cap must not split it.
	assert.Equal(t, "caf", SanitizeString("café!", 4))
	assert.Equal(t, "café", SanitizeString("café!", 5))
}
