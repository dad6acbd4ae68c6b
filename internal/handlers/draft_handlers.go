package handlers

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/cyphera/cyphera-associations/pkg/association"
	"github.com/cyphera/cyphera-associations/pkg/interop"
)

type DraftHandler struct {
	common *CommonServices
}

func NewDraftHandler(common *CommonServices) *DraftHandler {
	return &DraftHandler{common: common}
}

// DraftResponse is a draft together with its identifiers.
type DraftResponse struct {
	AssociationID  string             `json:"associationId"`
	AssociationCID string             `json:"associationCid"`
	Status         association.Status `json:"status"`
	SAR            *association.SAR   `json:"sar"`
}

// AddSignatureRequest carries one side's signature over an existing draft.
// Record must be the draft's record.
type AddSignatureRequest struct {
	Side      association.Side    `json:"side"`
	KeyType   association.KeyType `json:"keyType"`
	Signature hexutil.Bytes       `json:"signature" binding:"required"`
	Record    association.Record  `json:"record"`
}

func newDraftResponse(sar *association.SAR) (DraftResponse, error) {
	id, err := sar.ID()
	if err != nil {
		return DraftResponse{}, err
	}
	contentID, err := association.ContentID(id)
	if err != nil {
		return DraftResponse{}, err
	}
	return DraftResponse{
		AssociationID:  id.Hex(),
		AssociationCID: contentID.String(),
		Status:         sar.Status(),
		SAR:            sar,
	}, nil
}

// checkPresentSignatures rejects a draft carrying a signature that does not
// validate. Missing signatures are fine.
func (h *DraftHandler) checkPresentSignatures(c *gin.Context, sar *association.SAR) error {
	res := h.common.validator.Validate(c.Request.Context(), sar)
	for _, side := range []association.Side{association.Initiator, association.Approver} {
		sig, _ := sar.Signature(side)
		if len(sig) == 0 {
			continue
		}
		if reason := res.Reason(side); reason != nil {
			return errors.Join(errors.New(side.String()+" signature is invalid"), reason)
		}
	}
	return nil
}

// CreateDraft stores a draft SAR under its association id.
// @Summary      Create a draft
// @Description  Signatures already present must validate. Revoked records are rejected.
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        sar  body      association.SAR  true  "Draft or partially signed record"
// @Success      201  {object}  DraftResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /api/v1/drafts [post]
func (h *DraftHandler) CreateDraft(c *gin.Context) {
	var sar association.SAR
	if err := c.ShouldBindJSON(&sar); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if sar.Revoked() {
		sendError(c, http.StatusConflict, "Revoked associations cannot be drafted", association.ErrRevoked)
		return
	}
	id, err := sar.ID()
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid record", err)
		return
	}
	if err := h.checkPresentSignatures(c, &sar); err != nil {
		sendError(c, http.StatusUnprocessableEntity, "Invalid signature", err)
		return
	}

	if err := h.common.drafts.Save(c.Request.Context(), id, &sar); err != nil {
		sendError(c, statusFor(err), "Failed to save draft", err)
		return
	}
	resp, err := newDraftResponse(&sar)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to describe draft", err)
		return
	}
	sendSuccess(c, http.StatusCreated, resp)
}

// GetDraft returns one draft.
// @Summary      Get a draft
// @Tags         drafts
// @Produce      json
// @Param        id   path      string  true  "Association id (0x-prefixed 32 bytes)"
// @Success      200  {object}  DraftResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/drafts/{id} [get]
func (h *DraftHandler) GetDraft(c *gin.Context) {
	id, ok := parseHashParam(c, "id")
	if !ok {
		return
	}
	sar, err := h.common.drafts.Get(c.Request.Context(), id)
	if err != nil {
		sendError(c, statusFor(err), "Draft not available", err)
		return
	}
	resp, err := newDraftResponse(sar)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to describe draft", err)
		return
	}
	sendSuccess(c, http.StatusOK, resp)
}

// ListDrafts returns the drafts an account takes part in.
// @Summary      List drafts for an account
// @Tags         drafts
// @Produce      json
// @Param        chainId  path      string  true  "EIP-155 chain id"
// @Param        address  path      string  true  "Account address"
// @Success      200      {object}  map[string]interface{}  "list of DraftResponse"
// @Failure      400      {object}  ErrorResponse
// @Router       /api/v1/accounts/{chainId}/{address}/drafts [get]
func (h *DraftHandler) ListDrafts(c *gin.Context) {
	chainID, account, ok := parseAccountParams(c)
	if !ok {
		return
	}
	encoded, err := interop.Encode(chainID, account.Bytes())
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid chain ID", err)
		return
	}
	sars, err := h.common.drafts.List(c.Request.Context(), encoded)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to list drafts", err)
		return
	}

	out := make([]DraftResponse, 0, len(sars))
	for _, sar := range sars {
		resp, err := newDraftResponse(sar)
		if err != nil {
			continue
		}
		out = append(out, resp)
	}
	sendList(c, out)
}

// AddSignature records the counterparty's signature on a draft.
// @Summary      Add a signature to a draft
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Association id"
// @Param        request  body      AddSignatureRequest  true  "Side, key type, signature and the record it covers"
// @Success      200      {object}  DraftResponse
// @Failure      404      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Failure      422      {object}  ErrorResponse
// @Router       /api/v1/drafts/{id}/signature [put]
func (h *DraftHandler) AddSignature(c *gin.Context) {
	id, ok := parseHashParam(c, "id")
	if !ok {
		return
	}
	var req AddSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := c.Request.Context()
	sar, err := h.common.drafts.Get(ctx, id)
	if err != nil {
		sendError(c, statusFor(err), "Draft not available", err)
		return
	}
	if err := association.UpdateSignature(sar, req.Side, req.Record, req.Signature, req.KeyType); err != nil {
		sendError(c, statusFor(err), "Signature not applied", err)
		return
	}
	res := h.common.validator.Validate(ctx, sar)
	if reason := res.Reason(req.Side); reason != nil {
		sendError(c, http.StatusUnprocessableEntity, "Invalid signature", reason)
		return
	}

	if err := h.common.drafts.Save(ctx, id, sar); err != nil {
		sendError(c, statusFor(err), "Failed to save draft", err)
		return
	}
	resp, err := newDraftResponse(sar)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to describe draft", err)
		return
	}
	sendSuccess(c, http.StatusOK, resp)
}

// DeleteDraft drops a draft, typically once it has been stored.
// @Summary      Delete a draft
// @Tags         drafts
// @Param        id  path  string  true  "Association id"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/drafts/{id} [delete]
func (h *DraftHandler) DeleteDraft(c *gin.Context) {
	id, ok := parseHashParam(c, "id")
	if !ok {
		return
	}
	if err := h.common.drafts.Delete(c.Request.Context(), id); err != nil {
		sendError(c, statusFor(err), "Failed to delete draft", err)
		return
	}
	c.Status(http.StatusNoContent)
}
