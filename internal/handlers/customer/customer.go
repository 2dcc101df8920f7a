// internal/handlers/customer/customer.go
package customer

import (
	"errors"
	"net/http"
	"strconv"

	"erp-sync-service/internal/domain/customer"
	xerrors "erp-sync-service/internal/pkg/errors"
	"erp-sync-service/internal/pkg/response"
	service "erp-sync-service/internal/service/customer"

	"github.com/gin-gonic/gin"
)

type CustomerHandler struct {
	customerService *service.CustomerService
}

func NewCustomerHandler(customerService *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
	}
}

// ListCustomers lists customer avatars with filters
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	var filters customer.CustomerListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.customerService.ListAvatars(c.Request.Context(), &filters)
	if err != nil {
		response.FromError(c, "failed to list customers", err)
		return
	}

	response.Success(c, http.StatusOK, "customers retrieved", result)
}

// GetCustomer returns one avatar by its ERP partner id
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	remoteID, err := strconv.ParseInt(c.Param("remote_id"), 10, 64)
	if err != nil || remoteID < 1 {
		response.ValidationError(c, "invalid customer ID", xerrors.ErrInvalidInput)
		return
	}

	result, err := h.customerService.GetAvatar(c.Request.Context(), remoteID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "customer not found")
			return
		}
		response.FromError(c, "failed to get customer", err)
		return
	}

	response.Success(c, http.StatusOK, "customer retrieved", result)
}

// GetStats returns aggregate scores across all avatars
func (h *CustomerHandler) GetStats(c *gin.Context) {
	stats, err := h.customerService.GetStats(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to get customer statistics", err)
		return
	}

	response.Success(c, http.StatusOK, "customer statistics retrieved", stats)
}
