package receipts

import (
	"bytes"
	"testing"
	"time"

	"papeleria/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	o := models.Order{
		OrderID:   "ord-1",
		Client:    "ana@example.com",
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Status:    models.DefaultOrderStatus,
		Total:     25,
		Products: []models.LineItem{
			{Name: "Cuaderno rayado", Quantity: 2, Price: 10},
			{Name: "Lápiz HB", Quantity: 1, Price: 5},
		},
		Shipping: models.Shipping{Address: "Calle 1", Unit: "3B", Phone: "555", State: "Jalisco"},
	}

	pdf, err := Render(o)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.Equal(t, "ord-1|ana@example.com|25.00", QRPayload(o))
}
