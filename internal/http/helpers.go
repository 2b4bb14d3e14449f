package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondAuthRequired sends the 401 every protected route returns for
// an unauthenticated caller.
func respondAuthRequired(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
}

// respondDatabaseError logs the underlying error and sends a generic
// 500. The real error never reaches the client.
func respondDatabaseError(c *gin.Context, err error, context string) {
	log.Printf("database error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error."})
}

func logAuditFailure(err error) {
	log.Printf("failed to write audit event: %v", err)
}
