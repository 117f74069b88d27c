package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CatalogVersionHeader names the catalog that produced a response.
const CatalogVersionHeader = "X-Catalog-Version"

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Created writes a 201 Created JSON response.
func Created(c *gin.Context, payload any) {
	JSON(c, http.StatusCreated, payload)
}

// Versioned writes a 200 OK response stamped with the catalog version.
// An empty version omits the header.
func Versioned(c *gin.Context, version string, payload any) {
	if version != "" {
		c.Header(CatalogVersionHeader, version)
	}
	OK(c, payload)
}
