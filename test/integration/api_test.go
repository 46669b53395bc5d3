package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelblakek/invoice-automation/config"
	"github.com/samuelblakek/invoice-automation/pkg/engine"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/routes/reconcile"
	"github.com/samuelblakek/invoice-automation/pkg/routes/settlement"
	"github.com/samuelblakek/invoice-automation/pkg/server"
)

type apiHelper struct {
	t   *testing.T
	srv *server.Server
}

func newAPIHelper(t *testing.T) *apiHelper {
	t.Helper()

	p := newPipeline(t)
	cache := engine.NewResultCache(100)

	cfg := &config.Config{
		AppName:      "invoice-automation-test",
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
	}
	srv, err := server.New(cfg, server.Handlers{
		Reconcile:  reconcile.NewHandler(p.engine, cache),
		Settlement: settlement.NewHandler(p.engine, cache, nil, testLogger()),
	}, testLogger())
	require.NoError(t, err)

	return &apiHelper{t: t, srv: srv}
}

func (h *apiHelper) post(path string, body any) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(h.t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.srv.Echo().ServeHTTP(rec, req)
	return rec
}

func validReconcilePayload() map[string]any {
	return map[string]any{
		"invoice_number":  "INV-500",
		"supplier":        "Cornerstone Maintenance",
		"category":        "maintenance",
		"store_name":      "0042 - High Street",
		"net_amount":      "375.00",
		"po_reference":    "PO# CJL-316",
		"quote_reference": "Q-1043",
		"authorized_by":   "J Smith",
		"invoice_date":    "12/06/2025",
	}
}

func TestReconcileAPI(t *testing.T) {
	t.Run("should reconcile a valid invoice to auto-update", func(t *testing.T) {
		h := newAPIHelper(t)

		rec := h.post("/api/v1/reconcile", validReconcilePayload())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result models.ReconciliationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, models.DispositionAutoUpdate, result.Disposition)
		assert.NotEmpty(t, result.ID)
	})

	t.Run("should reject a payload missing required fields", func(t *testing.T) {
		h := newAPIHelper(t)

		rec := h.post("/api/v1/reconcile", map[string]any{"supplier": "Cornerstone Maintenance"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should reject an unparseable amount", func(t *testing.T) {
		h := newAPIHelper(t)

		payload := validReconcilePayload()
		payload["net_amount"] = "about twelve"
		rec := h.post("/api/v1/reconcile", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSettlementAPI(t *testing.T) {
	t.Run("should settle a reconciled result by ID", func(t *testing.T) {
		h := newAPIHelper(t)

		rec := h.post("/api/v1/reconcile", validReconcilePayload())
		require.Equal(t, http.StatusOK, rec.Code)

		var result models.ReconciliationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

		settleRec := h.post("/api/v1/settlements", map[string]any{"result_id": result.ID})
		require.Equal(t, http.StatusOK, settleRec.Code, settleRec.Body.String())

		var settled settlement.SettleResponse
		require.NoError(t, json.Unmarshal(settleRec.Body.Bytes(), &settled))
		assert.Equal(t, result.ID, settled.ResultID)
		assert.Equal(t, "MAINTENANCE", settled.Row.Sheet)
	})

	t.Run("should return 404 for a result the cache no longer holds", func(t *testing.T) {
		h := newAPIHelper(t)

		rec := h.post("/api/v1/settlements", map[string]any{"result_id": "gone"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("should refuse a needs-review result without confirmation", func(t *testing.T) {
		h := newAPIHelper(t)

		payload := validReconcilePayload()
		payload["invoice_number"] = "INV-600"
		payload["po_reference"] = "CJL318"
		payload["store_name"] = "0077 - Riverside"
		payload["net_amount"] = "450.00"
		delete(payload, "quote_reference")
		delete(payload, "authorized_by")

		rec := h.post("/api/v1/reconcile", payload)
		require.Equal(t, http.StatusOK, rec.Code)

		var result models.ReconciliationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.Equal(t, models.DispositionNeedsReview, result.Disposition)

		settleRec := h.post("/api/v1/settlements", map[string]any{"result_id": result.ID})
		assert.Equal(t, http.StatusConflict, settleRec.Code)

		confirmed := h.post("/api/v1/settlements", map[string]any{
			"result_id":  result.ID,
			"confirmed":  true,
			"decided_by": "ops@example.com",
		})
		assert.Equal(t, http.StatusOK, confirmed.Code, confirmed.Body.String())
	})
}
