package public

import (
	"github.com/dukani-next/internal/delivery"
	"github.com/dukani-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetCounties county names in dataset order
func (h *Handler) GetCounties(c *gin.Context) {
	response.Success(c, h.Locations.Counties())
}

// GetCounty sub-counties, towns and the couriers serving the county
func (h *Handler) GetCounty(c *gin.Context) {
	view, ok := h.Locations.County(c.Param("county"))
	if !ok {
		response.NotFound(c, "county not found")
		return
	}
	response.Success(c, view)
}

// GetCouriers every delivery partner
func (h *Handler) GetCouriers(c *gin.Context) {
	response.Success(c, h.Locations.Couriers())
}

// GetDeliveryQuote fee, zone and transit estimate for a destination
func (h *Handler) GetDeliveryQuote(c *gin.Context) {
	quote, err := h.Locations.Quote(delivery.QuoteInput{
		County:    c.Query("county"),
		SubCounty: c.Query("sub_county"),
		Town:      c.Query("town"),
		CourierID: c.Query("courier"),
	})
	if err != nil {
		respondWithMappedError(c, err, deliveryErrorRules, response.CodeInternal, "failed to quote delivery")
		return
	}
	response.Success(c, quote)
}
