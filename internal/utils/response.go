package utils

import (
	"net/http"

	"caseflow/internal/types"

	"github.com/gin-gonic/gin"
)

// SendErrorResponse sends a structured error response
func SendErrorResponse(c *gin.Context, err *types.APIError) {
	response := gin.H{
		"error": gin.H{
			"code":    err.Code,
			"message": err.Message,
		},
	}

	if err.Details != "" {
		response["error"].(gin.H)["details"] = err.Details
	}

	c.JSON(err.HTTPStatus, response)
}

// SendSuccessResponse sends a structured success response
func SendSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
