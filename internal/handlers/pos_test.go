package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/mostrador/internal/config"
	"github.com/example/mostrador/internal/erp"
	"github.com/example/mostrador/internal/middleware"
	"github.com/example/mostrador/internal/models"
	"github.com/example/mostrador/internal/services"
	"github.com/example/mostrador/internal/session"
	"github.com/example/mostrador/internal/utils"
)

// memorySubmissionLog stands in for the Postgres-backed log.
type memorySubmissionLog struct {
	mu      sync.Mutex
	records []models.SubmissionRecord
}

func (l *memorySubmissionLog) Record(ctx context.Context, record *models.SubmissionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	l.records = append(l.records, *record)
	return nil
}

func (l *memorySubmissionLog) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		if l.records[i].ID == id {
			l.records[i].NotifiedAt = &at
		}
	}
	return nil
}

func (l *memorySubmissionLog) List(ctx context.Context, username string, limit, offset int) ([]models.SubmissionRecord, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []models.SubmissionRecord
	for _, r := range l.records {
		if r.Username == username {
			matched = append(matched, r)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (l *memorySubmissionLog) all() []models.SubmissionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.SubmissionRecord(nil), l.records...)
}

type posTestEnv struct {
	app         *fiber.App
	store       *session.MemoryStore
	token       string
	submissions *memorySubmissionLog

	// Fake ERP state, mutable per test.
	products  map[string]map[string]any
	documents map[string]map[string]any
	threshold float64

	lastOrderMethod string
	lastOrderBody   map[string]any
}

func newPOSTestEnv(t *testing.T, products map[string]map[string]any, threshold float64) *posTestEnv {
	t.Helper()

	env := &posTestEnv{
		products:    products,
		documents:   map[string]map[string]any{},
		threshold:   threshold,
		submissions: &memorySubmissionLog{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/articulos/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/articulos/")
		product, ok := env.products[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": product})
	})
	mux.HandleFunc("/eventos-promocionales/activo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/parametros/MONTO_MAYORISTA", func(w http.ResponseWriter, r *http.Request) {
		if env.threshold <= 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"par_cod": "MONTO_MAYORISTA", "par_val": env.threshold},
		})
	})
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		env.lastOrderMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&env.lastOrderBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"fac_sec": "9001", "fac_nro": "DOC-9001"},
		})
	})
	mux.HandleFunc("/order/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/order/")
		switch r.Method {
		case http.MethodGet:
			doc, ok := env.documents[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": doc})
		case http.MethodPut:
			env.lastOrderMethod = r.Method
			_ = json.NewDecoder(r.Body).Decode(&env.lastOrderBody)
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		JWTSecret:              "test-secret",
		TokenTTL:               time.Hour,
		SubmitLockTTL:          30 * time.Second,
		WholesaleThresholdCode: "MONTO_MAYORISTA",
	}

	erpClient, err := erp.NewClient(config.ERPConfig{
		BaseURL:  server.URL,
		Username: "svc",
		Password: "secret",
		Timeout:  5 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)

	env.store = session.NewMemoryStore()
	telegram := services.NewTelegramService("", "", zerolog.Nop())
	resync := services.NewResyncService(erpClient, env.store, time.Millisecond, zerolog.Nop())
	handler := NewPOSHandler(env.submissions, erpClient, env.store, cfg, telegram, resync, zerolog.Nop())

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(middleware.AuthMiddleware(cfg))
	app.Get("/pos/session", handler.GetSession)
	app.Post("/pos/session/lines", handler.AddLine)
	app.Delete("/pos/session/lines/:productId", handler.DecrementLine)
	app.Post("/pos/session/reset", handler.Reset)
	app.Put("/pos/session/client", handler.SetClient)
	app.Put("/pos/session/pricing", handler.SetPricing)
	app.Post("/pos/session/refresh", handler.RefreshLines)
	app.Post("/pos/session/submit", handler.Submit)
	app.Get("/pos/orders/:id/edit", handler.LoadForEdit)
	app.Get("/pos/submissions", handler.ListSubmissions)
	env.app = app

	token, err := utils.GenerateToken(cfg.JWTSecret, uuid.New(), "cajero1", time.Hour)
	require.NoError(t, err)
	env.token = token

	return env
}

func (e *posTestEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+e.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Error responses from fiber's default handler are plain text.
	var payload map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}
	return resp.StatusCode, payload
}

func testProduct(id string, retail, wholesale float64, stock int) map[string]any {
	return map[string]any{
		"art_sec":    id,
		"art_cod":    "C-" + id,
		"art_nom":    "Producto " + id,
		"pre_det":    retail,
		"pre_may":    wholesale,
		"existencia": stock,
	}
}

func TestPOSFlowAddDecrementAndTotals(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 5),
		"2": testProduct("2", 50, 40, 5),
	}, 0)

	status, payload := env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "added", payload["outcome"])

	status, payload = env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "incremented", payload["outcome"])

	status, payload = env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "2"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "added", payload["outcome"])

	totals := payload["totals"].(map[string]any)
	assert.Equal(t, 250.0, totals["retail_total"])
	assert.Equal(t, 250.0, totals["grand_total"])
	assert.Equal(t, "retail", totals["effective_price_type"])
	assert.Equal(t, false, totals["price_type_locked"])

	status, payload = env.do(t, http.MethodDelete, "/pos/session/lines/2", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "removed", payload["outcome"])

	status, payload = env.do(t, http.MethodGet, "/pos/session", nil)
	require.Equal(t, http.StatusOK, status)
	totals = payload["totals"].(map[string]any)
	assert.Equal(t, 200.0, totals["grand_total"])
}

func TestPOSFlowStockBoundaries(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 1),
		"0": testProduct("0", 100, 80, 0),
	}, 0)

	status, payload := env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "added", payload["outcome"])

	status, payload = env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "capped", payload["outcome"])

	status, payload = env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "0"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "out_of_stock", payload["outcome"])

	status, payload = env.do(t, http.MethodDelete, "/pos/session/lines/ghost", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "not_found", payload["outcome"])
}

func TestPOSFlowThresholdLocksPriceType(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 10),
	}, 150)

	env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})
	_, payload := env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})

	totals := payload["totals"].(map[string]any)
	assert.Equal(t, true, totals["price_type_locked"])
	assert.Equal(t, "wholesale", totals["effective_price_type"])
	assert.Equal(t, 160.0, totals["grand_total"])

	// The stored selection is overridden while the lock holds.
	status, payload := env.do(t, http.MethodPut, "/pos/session/pricing", fiber.Map{"price_type": "retail"})
	require.Equal(t, http.StatusOK, status)
	totals = payload["totals"].(map[string]any)
	assert.Equal(t, "wholesale", totals["effective_price_type"])
}

func TestPOSFlowClientAndReset(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 5),
	}, 0)

	env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})

	status, payload := env.do(t, http.MethodPut, "/pos/session/client", fiber.Map{
		"nit_sec": "nit-1",
		"nit_nom": "Cliente Uno",
	})
	require.Equal(t, http.StatusOK, status)
	sess := payload["session"].(map[string]any)
	client := sess["client"].(map[string]any)
	assert.Equal(t, "Cliente Uno", client["nit_nom"])

	status, payload = env.do(t, http.MethodPost, "/pos/session/reset", nil)
	require.Equal(t, http.StatusOK, status)
	sess = payload["session"].(map[string]any)
	assert.Empty(t, sess["lines"])
	client = sess["client"].(map[string]any)
	assert.Equal(t, "nit-1", client["nit_sec"], "reset keeps the client")
}

func TestPOSFlowManualDiscount(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 5),
	}, 0)

	env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})

	status, payload := env.do(t, http.MethodPut, "/pos/session/pricing", fiber.Map{"manual_discount_percent": 10})
	require.Equal(t, http.StatusOK, status)
	totals := payload["totals"].(map[string]any)
	assert.Equal(t, 10.0, totals["manual_discount_amount"])
	assert.Equal(t, 90.0, totals["grand_total"])

	status, _ = env.do(t, http.MethodPut, "/pos/session/pricing", fiber.Map{"manual_discount_percent": 150})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPOSFlowSubmitCreatesDocumentAndClearsSession(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 5),
	}, 0)

	env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})
	env.do(t, http.MethodPut, "/pos/session/client", fiber.Map{"nit_sec": "nit-1", "nit_nom": "Cliente Uno"})

	status, payload := env.do(t, http.MethodPost, "/pos/session/submit", fiber.Map{"document_type": "COT"})
	require.Equal(t, http.StatusOK, status)
	data := payload["data"].(map[string]any)
	assert.Equal(t, "9001", data["document_id"])
	assert.Equal(t, "DOC-9001", data["number"])
	assert.Equal(t, false, data["edited"])
	assert.Equal(t, http.MethodPost, env.lastOrderMethod)

	// The submitted payload carries quote nature lines.
	detalle := env.lastOrderBody["detalle"].([]any)
	line := detalle[0].(map[string]any)
	assert.Equal(t, "c", line["kar_nat"])
	assert.Equal(t, 100.0, line["kar_pre_pub"])

	// Successful submission destroys the session.
	_, err := env.store.Load(context.Background(), "cajero1")
	assert.ErrorIs(t, err, session.ErrNotFound)

	records := env.submissions.all()
	require.Len(t, records, 1)
	assert.Equal(t, "9001", records[0].ERPDocumentID)
	assert.Equal(t, "COT", records[0].DocumentType)
	assert.Equal(t, 100.0, records[0].GrandTotal)
	assert.Empty(t, records[0].SyncError)

	status, payload = env.do(t, http.MethodGet, "/pos/submissions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, payload["data"].([]any), 1)
}

func TestPOSFlowSubmitGuards(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 5),
	}, 0)

	// Empty order.
	status, _ := env.do(t, http.MethodPost, "/pos/session/submit", fiber.Map{"document_type": "COT"})
	assert.Equal(t, http.StatusBadRequest, status)

	// Lines but no client.
	env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})
	status, _ = env.do(t, http.MethodPost, "/pos/session/submit", fiber.Map{"document_type": "COT"})
	assert.Equal(t, http.StatusBadRequest, status)

	// Unknown document type.
	env.do(t, http.MethodPut, "/pos/session/client", fiber.Map{"nit_sec": "nit-1", "nit_nom": "Cliente"})
	status, _ = env.do(t, http.MethodPost, "/pos/session/submit", fiber.Map{"document_type": "FAC"})
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Empty(t, env.submissions.all(), "guard failures never reach the log")
}

func TestPOSFlowSubmitLockConflict(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 5),
	}, 0)

	env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})
	env.do(t, http.MethodPut, "/pos/session/client", fiber.Map{"nit_sec": "nit-1", "nit_nom": "Cliente"})

	held, err := env.store.AcquireSubmitLock(context.Background(), "cajero1", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	status, _ := env.do(t, http.MethodPost, "/pos/session/submit", fiber.Map{"document_type": "COT"})
	assert.Equal(t, http.StatusConflict, status)

	// The original holder's lock survives the rejected attempt.
	again, err := env.store.AcquireSubmitLock(context.Background(), "cajero1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	loaded, err := env.store.Load(context.Background(), "cajero1")
	require.NoError(t, err)
	assert.Len(t, loaded.Lines, 1, "rejected submission keeps the session")
}

func invoiceDocument() map[string]any {
	return map[string]any{
		"header": map[string]any{
			"fac_tip":     "VTA",
			"nit_sec":     "nit-1",
			"lis_pre_cod": "2",
			"fac_des_gen": 5.0,
		},
		"detalle": []map[string]any{
			{"art_sec": "1", "kar_uni": 2, "kar_pre_pub": 80.0, "kar_nat": "-", "kar_kar_sec": "kar-1", "kar_fac_sec": "fac-7"},
		},
		"cliente": map[string]any{"nit_sec": "nit-1", "nit_nom": "Cliente Uno"},
	}
}

func TestPOSFlowEditInvoiceMergesOriginRefs(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 5),
	}, 0)
	env.documents["7001"] = invoiceDocument()

	status, payload := env.do(t, http.MethodGet, "/pos/orders/7001/edit", nil)
	require.Equal(t, http.StatusOK, status)

	sess := payload["session"].(map[string]any)
	assert.Equal(t, "7001", sess["editing_document_id"])
	assert.Equal(t, "wholesale", sess["price_type"])
	assert.Equal(t, 5.0, sess["loaded_header_discount"])
	lines := sess["lines"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, 2.0, lines[0].(map[string]any)["quantity"])

	status, payload = env.do(t, http.MethodPost, "/pos/session/submit", fiber.Map{"document_type": "VTA"})
	require.Equal(t, http.StatusOK, status)
	data := payload["data"].(map[string]any)
	assert.Equal(t, "7001", data["document_id"])
	assert.Equal(t, true, data["edited"])
	assert.Equal(t, http.MethodPut, env.lastOrderMethod)

	// Origin refs re-fetched from the persisted invoice ride on the update.
	detalle := env.lastOrderBody["detalle"].([]any)
	line := detalle[0].(map[string]any)
	assert.Equal(t, "kar-1", line["kar_kar_sec"])
	assert.Equal(t, "fac-7", line["kar_fac_sec"])
	assert.Equal(t, "-", line["kar_nat"])

	_, err := env.store.Load(context.Background(), "cajero1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestPOSFlowEditSubmitAbortsWhenOriginFetchFails(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 5),
	}, 0)
	env.documents["7001"] = invoiceDocument()

	status, _ := env.do(t, http.MethodGet, "/pos/orders/7001/edit", nil)
	require.Equal(t, http.StatusOK, status)

	// The document vanishes upstream before the update lands.
	delete(env.documents, "7001")

	status, _ = env.do(t, http.MethodPost, "/pos/session/submit", fiber.Map{"document_type": "VTA"})
	assert.Equal(t, http.StatusBadGateway, status)

	loaded, err := env.store.Load(context.Background(), "cajero1")
	require.NoError(t, err)
	assert.Len(t, loaded.Lines, 1, "aborted update keeps the session")
	assert.Empty(t, env.submissions.all())
}

func TestPOSFlowRefreshLines(t *testing.T) {
	env := newPOSTestEnv(t, map[string]map[string]any{
		"1": testProduct("1", 100, 80, 5),
	}, 0)

	env.do(t, http.MethodPost, "/pos/session/lines", fiber.Map{"product_id": "1"})
	env.products["1"]["art_nom"] = "Producto Renombrado"

	status, _ := env.do(t, http.MethodPost, "/pos/session/refresh", nil)
	require.Equal(t, http.StatusAccepted, status)

	assert.Eventually(t, func() bool {
		loaded, err := env.store.Load(context.Background(), "cajero1")
		if err != nil {
			return false
		}
		return loaded.Lines[0].Name == "Producto Renombrado"
	}, time.Second, 10*time.Millisecond)
}

func TestPOSFlowRejectsMissingToken(t *testing.T) {
	env := newPOSTestEnv(t, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/pos/session", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
