package handlers

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bindTarget struct {
	VIN   string  `json:"vin" binding:"required"`
	Price float64 `json:"price"`
}

func bindBody(t *testing.T, key, body string) (bindTarget, *gin.Context, error) {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var out bindTarget
	err := BindNestedOrFlat(c, key, &out)
	return out, c, err
}

func TestBindNestedOrFlat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		key     string
		body    string
		want    bindTarget
		wantErr bool
	}{
		{"wrapped", "vehicle", `{"vehicle": {"vin": "1HGCM82633A004352", "price": 18500}}`, bindTarget{VIN: "1HGCM82633A004352", Price: 18500}, false},
		{"flat", "vehicle", `{"vin": "JH4KA8260MC000000", "price": 9900.5}`, bindTarget{VIN: "JH4KA8260MC000000", Price: 9900.5}, false},
		{"other key falls back to flat", "vehicle", `{"sale": {"vin": "X"}, "vin": "Y"}`, bindTarget{VIN: "Y"}, false},
		{"type mismatch", "vehicle", `{"vin": "Z", "price": "cheap"}`, bindTarget{}, true},
		{"wrapped type mismatch", "vehicle", `{"vehicle": {"vin": "Z", "price": "cheap"}}`, bindTarget{}, true},
		{"wrapped non-object", "vehicle", `{"vehicle": "1HGCM"}`, bindTarget{}, true},
		{"missing required field", "vehicle", `{"vehicle": {"price": 100}}`, bindTarget{}, true},
		{"empty body", "vehicle", ``, bindTarget{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := bindBody(t, tt.key, tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBindNestedOrFlat_BodyStaysReadable(t *testing.T) {
	body := `{"vin": "1HGCM82633A004352"}`
	_, c, err := bindBody(t, "vehicle", body)
	require.NoError(t, err)

	again, err := io.ReadAll(c.Request.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(again))
}
