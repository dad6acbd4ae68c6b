package handlers

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-associations/internal/drafts"
	"github.com/cyphera/cyphera-associations/internal/helpers"
	"github.com/cyphera/cyphera-associations/internal/middleware"
	"github.com/cyphera/cyphera-associations/internal/store"
	"github.com/cyphera/cyphera-associations/pkg/association"
)

// AssociationReader lists what the association store holds for an account.
type AssociationReader interface {
	GetAssociationsForAccount(ctx context.Context, chainID *big.Int, account common.Address) ([]store.SignedAssociation, error)
}

// CommonServices holds the dependencies shared by the handlers.
type CommonServices struct {
	store     AssociationReader
	drafts    drafts.Repository
	validator *association.Validator
}

func NewCommonServices(reader AssociationReader, repo drafts.Repository, validator *association.Validator) *CommonServices {
	return &CommonServices{
		store:     reader,
		drafts:    repo,
		validator: validator,
	}
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error         string `json:"error"`
	Detail        string `json:"detail,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// sendError logs err against the request's correlation id and sends message
// as a JSON error response.
func sendError(c *gin.Context, statusCode int, message string, err error) {
	log := middleware.Logger(c.Request.Context())
	fields := []zap.Field{
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Int("status", statusCode),
	}
	if statusCode >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	resp := ErrorResponse{Error: message, CorrelationID: middleware.CorrelationID(c)}
	if err != nil && statusCode < http.StatusInternalServerError {
		resp.Detail = err.Error()
	}
	c.JSON(statusCode, resp)
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// sendList is a helper function that sends a list response
func sendList(c *gin.Context, items interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   items,
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, drafts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, association.ErrRecordMismatch),
		errors.Is(err, association.ErrRevoked),
		errors.Is(err, drafts.ErrKeyMismatch):
		return http.StatusConflict
	case errors.Is(err, association.ErrTimestampRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseAccountParams(c *gin.Context) (*big.Int, common.Address, bool) {
	chainID, ok := helpers.ParseChainID(c.Param("chainId"))
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid chain ID", nil)
		return nil, common.Address{}, false
	}
	address := c.Param("address")
	if !helpers.IsAddressValid(address) {
		sendError(c, http.StatusBadRequest, "Invalid address", nil)
		return nil, common.Address{}, false
	}
	return chainID, common.HexToAddress(address), true
}

func parseHashParam(c *gin.Context, name string) (common.Hash, bool) {
	raw := c.Param(name)
	if len(raw) != 66 || raw[:2] != "0x" {
		sendError(c, http.StatusBadRequest, "Invalid association ID", nil)
		return common.Hash{}, false
	}
	var id common.Hash
	if err := id.UnmarshalText([]byte(raw)); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid association ID", err)
		return common.Hash{}, false
	}
	return id, true
}
