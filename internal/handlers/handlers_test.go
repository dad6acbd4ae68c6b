package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cyphera/cyphera-associations/internal/drafts"
	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/internal/middleware"
	"github.com/cyphera/cyphera-associations/internal/store"
	"github.com/cyphera/cyphera-associations/pkg/association"
	"github.com/cyphera/cyphera-associations/pkg/delegation"
	"github.com/cyphera/cyphera-associations/pkg/interop"
	"github.com/cyphera/cyphera-associations/pkg/signer"
)

func init() {
	logger.InitLogger("test")
	gin.SetMode(gin.TestMode)
}

const sepolia = 11155111

type MockAssociationReader struct {
	mock.Mock
}

func (m *MockAssociationReader) GetAssociationsForAccount(ctx context.Context, chainID *big.Int, account common.Address) ([]store.SignedAssociation, error) {
	args := m.Called(ctx, chainID, account)
	if v := args.Get(0); v != nil {
		return v.([]store.SignedAssociation), args.Error(1)
	}
	return nil, args.Error(1)
}

type fixture struct {
	router    *gin.Engine
	reader    *MockAssociationReader
	drafts    *drafts.MemoryRepository
	initiator *signer.PrivateKeySigner
	approver  *signer.PrivateKeySigner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	initiator, err := signer.GeneratePrivateKeySigner()
	require.NoError(t, err)
	approver, err := signer.GeneratePrivateKeySigner()
	require.NoError(t, err)

	f := &fixture{
		reader:    new(MockAssociationReader),
		drafts:    drafts.NewMemoryRepository(),
		initiator: initiator,
		approver:  approver,
	}
	validator := association.NewValidator(signer.Checker{}, delegation.Verifier{})
	services := NewCommonServices(f.reader, f.drafts, validator)
	associations := NewAssociationHandler(services)
	draftHandler := NewDraftHandler(services)

	r := gin.New()
	r.Use(middleware.RequestScope())
	v1 := r.Group("/api/v1")
	v1.GET("/accounts/:chainId/:address/associations", associations.ListAssociations)
	v1.GET("/accounts/:chainId/:address/drafts", draftHandler.ListDrafts)
	v1.POST("/associations/validate", associations.ValidateAssociation)
	v1.POST("/drafts", draftHandler.CreateDraft)
	v1.GET("/drafts/:id", draftHandler.GetDraft)
	v1.PUT("/drafts/:id/signature", draftHandler.AddSignature)
	v1.DELETE("/drafts/:id", draftHandler.DeleteDraft)
	f.router = r
	return f
}

func (f *fixture) record() association.Record {
	return association.Record{
		Initiator:   interop.EncodeEVM(sepolia, f.initiator.Address()),
		Approver:    interop.EncodeEVM(sepolia, f.approver.Address()),
		ValidUntil:  4_000_000_000,
		InterfaceID: association.InterfaceID{0x01, 0x02, 0x03, 0x04},
		Data:        []byte("member"),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestListAssociations(t *testing.T) {
	f := newFixture(t)
	account := f.initiator.Address()
	view := store.SignedAssociation{
		AssociationID:       common.HexToHash("0x01"),
		InitiatorAddress:    account.Hex(),
		CounterpartyAddress: f.approver.Address().Hex(),
	}
	isSepolia := mock.MatchedBy(func(id *big.Int) bool { return id.Cmp(big.NewInt(sepolia)) == 0 })
	f.reader.On("GetAssociationsForAccount", mock.Anything, isSepolia, account).
		Return([]store.SignedAssociation{view}, nil).Once()

	w := f.do(t, http.MethodGet, "/api/v1/accounts/11155111/"+account.Hex()+"/associations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[struct {
		Object string                    `json:"object"`
		Data   []store.SignedAssociation `json:"data"`
	}](t, w)
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, view.CounterpartyAddress, resp.Data[0].CounterpartyAddress)
	f.reader.AssertExpectations(t)
}

func TestListAssociations_Errors(t *testing.T) {
	f := newFixture(t)
	account := f.initiator.Address()

	tests := []struct {
		name     string
		path     string
		setup    func()
		wantCode int
	}{
		{
			name:     "bad chain id",
			path:     "/api/v1/accounts/mainnet/" + account.Hex() + "/associations",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad address",
			path:     "/api/v1/accounts/1/0x1234/associations",
			wantCode: http.StatusBadRequest,
		},
		{
			name: "store unavailable",
			path: "/api/v1/accounts/1/" + account.Hex() + "/associations",
			setup: func() {
				f.reader.On("GetAssociationsForAccount", mock.Anything, mock.Anything, account).
					Return(nil, errors.New("rpc down")).Once()
			},
			wantCode: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			w := f.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.wantCode, w.Code)

			resp := decode[ErrorResponse](t, w)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, w.Header().Get(middleware.CorrelationIDHeader), resp.CorrelationID)
		})
	}
}

func TestValidateAssociation(t *testing.T) {
	f := newFixture(t)
	sar := association.Build(f.record())
	require.NoError(t, association.Sign(sar, association.Initiator, f.initiator, association.KeyTypeK1))

	w := f.do(t, http.MethodPost, "/api/v1/associations/validate", sar)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ValidationResponse](t, w)
	assert.True(t, resp.InitiatorValid)
	assert.False(t, resp.ApproverValid)
	assert.False(t, resp.Valid)
	assert.Equal(t, association.StatusPartiallySigned, resp.Status)
	assert.NotEmpty(t, resp.ApproverReason)
	assert.NotEmpty(t, resp.AssociationCID)

	require.NoError(t, association.Sign(sar, association.Approver, f.approver, association.KeyTypeK1))
	w = f.do(t, http.MethodPost, "/api/v1/associations/validate", sar)
	resp = decode[ValidationResponse](t, w)
	assert.True(t, resp.Valid)
	assert.True(t, resp.Active)

	id, err := sar.ID()
	require.NoError(t, err)
	assert.Equal(t, id.Hex(), resp.AssociationID)
}

func TestValidateAssociation_BadBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/associations/validate", bytes.NewBufferString(`{"record":{"initiator":"zz"}}`))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftExchange(t *testing.T) {
	f := newFixture(t)
	record := f.record()
	sar := association.Build(record)
	require.NoError(t, association.Sign(sar, association.Initiator, f.initiator, association.KeyTypeK1))

	w := f.do(t, http.MethodPost, "/api/v1/drafts", sar)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[DraftResponse](t, w)
	assert.Equal(t, association.StatusPartiallySigned, created.Status)

	w = f.do(t, http.MethodGet, "/api/v1/drafts/"+created.AssociationID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/accounts/11155111/"+f.approver.Address().Hex()+"/drafts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[struct {
		Data []DraftResponse `json:"data"`
	}](t, w)
	require.Len(t, listed.Data, 1)
	assert.Equal(t, created.AssociationID, listed.Data[0].AssociationID)

	// The approver signs the id it computes locally.
	id, err := association.ID(record)
	require.NoError(t, err)
	sig, err := f.approver.SignDigest(id)
	require.NoError(t, err)

	w = f.do(t, http.MethodPut, "/api/v1/drafts/"+created.AssociationID+"/signature", AddSignatureRequest{
		Side:      association.Approver,
		KeyType:   association.KeyTypeK1,
		Signature: sig,
		Record:    record,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[DraftResponse](t, w)
	assert.Equal(t, association.StatusFullySigned, updated.Status)

	stored, err := f.drafts.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Bytes(sig), stored.ApproverSignature)
	assert.NotEmpty(t, stored.InitiatorSignature)

	w = f.do(t, http.MethodDelete, "/api/v1/drafts/"+created.AssociationID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/drafts/"+created.AssociationID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddSignature_Conflicts(t *testing.T) {
	f := newFixture(t)
	record := f.record()
	sar := association.Build(record)
	id, err := sar.ID()
	require.NoError(t, err)
	require.NoError(t, f.drafts.Save(context.Background(), id, sar))
	path := "/api/v1/drafts/" + id.Hex() + "/signature"

	sig, err := f.approver.SignDigest(id)
	require.NoError(t, err)

	t.Run("record mismatch", func(t *testing.T) {
		other := record
		other.Data = []byte("something else")
		w := f.do(t, http.MethodPut, path, AddSignatureRequest{
			Side: association.Approver, KeyType: association.KeyTypeK1, Signature: sig, Record: other,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("signature from the wrong key", func(t *testing.T) {
		wrong, err := f.initiator.SignDigest(id)
		require.NoError(t, err)
		w := f.do(t, http.MethodPut, path, AddSignatureRequest{
			Side: association.Approver, KeyType: association.KeyTypeK1, Signature: wrong, Record: record,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		stored, err := f.drafts.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Empty(t, stored.ApproverSignature)
	})

	t.Run("unknown draft", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/api/v1/drafts/"+common.Hash{0x09}.Hex()+"/signature", AddSignatureRequest{
			Side: association.Approver, KeyType: association.KeyTypeK1, Signature: sig, Record: record,
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/api/v1/drafts/abc/signature", AddSignatureRequest{Signature: sig})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateDraft_Rejects(t *testing.T) {
	f := newFixture(t)

	t.Run("revoked", func(t *testing.T) {
		sar := association.Build(f.record())
		sar.RevokedAt = 1
		w := f.do(t, http.MethodPost, "/api/v1/drafts", sar)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid signature", func(t *testing.T) {
		sar := association.Build(f.record())
		// Signed by the approver's key but filed as the initiator's.
		require.NoError(t, association.Sign(sar, association.Initiator, f.approver, association.KeyTypeK1))
		w := f.do(t, http.MethodPost, "/api/v1/drafts", sar)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]HealthCheck
		wantCode int
		wantBody string
	}{
		{name: "no checks", wantCode: http.StatusOK, wantBody: "ok"},
		{
			name:     "passing",
			checks:   map[string]HealthCheck{"database": func(context.Context) error { return nil }},
			wantCode: http.StatusOK,
			wantBody: "ok",
		},
		{
			name:     "failing",
			checks:   map[string]HealthCheck{"database": func(context.Context) error { return errors.New("down") }},
			wantCode: http.StatusServiceUnavailable,
			wantBody: "degraded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

			NewHealthHandler(tt.checks).Health(c)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantBody, decode[HealthResponse](t, w).Status)
		})
	}
}
