package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/watchfi/storefront/pkg/errors"
)

type methodBody struct {
	Token string `json:"token" validate:"required,payment_token"`
}

type nestedBody struct {
	Items []struct {
		Label string `json:"label" validate:"required"`
	} `json:"items" validate:"min=1,dive"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	out, _ := typed.Details().(map[string]string)
	return out
}

func TestDecodeJSONBodyAcceptsPaymentToken(t *testing.T) {
	var body methodBody
	require.NoError(t, DecodeJSONBody(post(`{"token":"usdc"}`), &body))
	assert.Equal(t, "usdc", body.Token)

	err := DecodeJSONBody(post(`{"token":"BTC"}`), &methodBody{})
	assert.Equal(t, "must be SOL or USDC", details(t, err)["token"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"token":"SOL","extra":1}`,
		"two objects":   `{"token":"SOL"}{"token":"SOL"}`,
		"not json":      `token=SOL`,
	}
	for name, raw := range cases {
		err := DecodeJSONBody(post(raw), &methodBody{})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}
}

func TestDecodeJSONBodyLimitsSize(t *testing.T) {
	huge := `{"token":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	err := DecodeJSONBody(post(huge), &methodBody{})
	require.Error(t, err)
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestValidationDetailsUseJSONPaths(t *testing.T) {
	err := DecodeJSONBody(post(`{"items":[{"label":""}]}`), &nestedBody{})
	assert.Equal(t, "is required", details(t, err)["items[0].label"])
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500&bad=x", nil)

	page, err := ParseQueryInt(req, "page", 1, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, page)

	missing, err := ParseQueryInt(req, "missing", 12, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 12, missing)

	_, err = ParseQueryInt(req, "limit", 20, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryInt(req, "bad", 20, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Rolex", SanitizeString("  Rol\x00ex \n", 0))
	assert.Equal(t, "Pate", SanitizeString("Patek Philippe", 4))
	assert.Equal(t, "Très", SanitizeString("Très bien", 4))
}
