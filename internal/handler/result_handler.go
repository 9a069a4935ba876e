package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xxxsen/routecache/internal/service"
)

const (
	msgSaved        = "Data saved successfully"
	msgDeleted      = "Data deleted successfully"
	msgCheckFailed  = "Database error"
	msgSaveFailed   = "Error saving to database"
	msgDeleteFailed = "Error deleting directions from the database"
)

type ResultHandler struct {
	results *service.ResultService
}

func NewResultHandler(results *service.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

type coordinatesRequest struct {
	SourceCoordinates json.RawMessage `json:"sourceCoordinates"`
	DestCoordinates   json.RawMessage `json:"destCoordinates"`
}

type saveResultRequest struct {
	coordinatesRequest
	AlgResults json.RawMessage `json:"algResults"`
}

func (h *ResultHandler) CheckConnection(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connected": h.results.Connected(c.Request.Context())})
}

func (h *ResultHandler) Check(c *gin.Context) {
	var req coordinatesRequest
	if !bindJSON(c, &req) {
		return
	}
	payload, ok, err := h.results.Check(c.Request.Context(), req.SourceCoordinates, req.DestCoordinates)
	if err != nil {
		handleError(c, err, msgCheckFailed)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"exists": false})
		return
	}
	if !json.Valid(payload) {
		handleError(c, fmt.Errorf("stored results are not valid json"), msgCheckFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": true, "algResults": payload})
}

func (h *ResultHandler) Save(c *gin.Context) {
	var req saveResultRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.results.Save(c.Request.Context(), req.SourceCoordinates, req.DestCoordinates, req.AlgResults)
	if err != nil {
		handleError(c, err, msgSaveFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgSaved, "id": id})
}

// Delete answers 200 even when nothing matched.
func (h *ResultHandler) Delete(c *gin.Context) {
	var req coordinatesRequest
	if !bindJSON(c, &req) {
		return
	}
	count, err := h.results.Delete(c.Request.Context(), req.SourceCoordinates, req.DestCoordinates)
	if err != nil {
		handleError(c, err, msgDeleteFailed)
		return
	}
	logger(c).Debug("results deleted", zap.Int64("count", count))
	c.JSON(http.StatusOK, gin.H{"message": msgDeleted})
}
