package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cyphera/cyphera-associations/pkg/association"
)

type AssociationHandler struct {
	common *CommonServices
}

func NewAssociationHandler(common *CommonServices) *AssociationHandler {
	return &AssociationHandler{common: common}
}

// ValidationResponse is the public form of association.Result.
type ValidationResponse struct {
	AssociationID   string             `json:"associationId"`
	AssociationCID  string             `json:"associationCid"`
	Status          association.Status `json:"status"`
	Valid           bool               `json:"valid"`
	Active          bool               `json:"active"`
	Revoked         bool               `json:"revoked"`
	InitiatorValid  bool               `json:"initiatorValid"`
	ApproverValid   bool               `json:"approverValid"`
	InitiatorReason string             `json:"initiatorReason,omitempty"`
	ApproverReason  string             `json:"approverReason,omitempty"`
}

func newValidationResponse(sar *association.SAR, res association.Result) ValidationResponse {
	resp := ValidationResponse{
		AssociationID:  res.ID.Hex(),
		Status:         sar.Status(),
		Valid:          res.Valid(),
		Active:         res.Active,
		Revoked:        res.Revoked,
		InitiatorValid: res.InitiatorValid,
		ApproverValid:  res.ApproverValid,
	}
	if contentID, err := association.ContentID(res.ID); err == nil {
		resp.AssociationCID = contentID.String()
	}
	if res.InitiatorReason != nil {
		resp.InitiatorReason = res.InitiatorReason.Error()
	}
	if res.ApproverReason != nil {
		resp.ApproverReason = res.ApproverReason.Error()
	}
	return resp
}

// ListAssociations returns the store's associations for an account.
// @Summary      List stored associations
// @Description  Reads getAssociationsForAccount from the association store and derives ids, content ids and the counterparty
// @Tags         associations
// @Produce      json
// @Param        chainId  path      string  true  "EIP-155 chain id"
// @Param        address  path      string  true  "Account address"
// @Success      200      {object}  map[string]interface{}  "list of store.SignedAssociation"
// @Failure      400      {object}  ErrorResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /api/v1/accounts/{chainId}/{address}/associations [get]
func (h *AssociationHandler) ListAssociations(c *gin.Context) {
	chainID, account, ok := parseAccountParams(c)
	if !ok {
		return
	}

	associations, err := h.common.store.GetAssociationsForAccount(c.Request.Context(), chainID, account)
	if err != nil {
		sendError(c, http.StatusBadGateway, "Failed to read association store", err)
		return
	}
	sendList(c, associations)
}

// ValidateAssociation checks both signatures of a submitted SAR.
// @Summary      Validate a signed association record
// @Tags         associations
// @Accept       json
// @Produce      json
// @Param        sar  body      association.SAR  true  "Signed association record"
// @Success      200  {object}  ValidationResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/associations/validate [post]
func (h *AssociationHandler) ValidateAssociation(c *gin.Context) {
	var sar association.SAR
	if err := c.ShouldBindJSON(&sar); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, err := sar.ID(); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid record", err)
		return
	}

	res := h.common.validator.Validate(c.Request.Context(), &sar)
	sendSuccess(c, http.StatusOK, newValidationResponse(&sar, res))
}
