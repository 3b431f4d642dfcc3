package worker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"depotbook/src/repositories"
	"depotbook/src/services"
	"depotbook/src/testutil"
	"depotbook/src/worker"
	"depotbook/src/worker/controllers"
	"depotbook/src/worker/handlers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWorker(t *testing.T) (*worker.Server, *controllers.Controller) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	catalog := services.NewCatalogService(db, repositories.NewInstrumentRepository(db), nil)
	_, err := catalog.GetOrCreateInstrument(ctx, nil, "US0378331005", "Apple", "USD")
	require.NoError(t, err)
	_, err = catalog.AddOrUpdateSymbol(ctx, services.Principal{UserID: 1}, services.SymbolInput{
		ISIN: "US0378331005", Vendor: "yahoo", Market: "NASDAQ", Currency: "USD", Symbol: "AAPL",
	})
	require.NoError(t, err)

	controller := controllers.NewController(db, testutil.NewLogger())
	t.Cleanup(controller.StopSchedulers)
	return worker.NewServer(handlers.NewHandler(controller)), controller
}

func send(server *worker.Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestWorkerHealthcheck(t *testing.T) {
	server, controller := setupWorker(t)

	rec := send(server, http.MethodGet, "/alive", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive","scheduled":[]}`, rec.Body.String())

	require.NoError(t, controller.ScheduleMerge("@every 1h"))
	require.NoError(t, controller.ScheduleMerge("@every 2h"))
	assert.Error(t, controller.ScheduleMerge("whenever"))

	rec = send(server, http.MethodGet, "/alive", "", "")
	assert.JSONEq(t, `{"status":"alive","scheduled":["price-merge"]}`, rec.Body.String())
}

func TestPricePipeline(t *testing.T) {
	server, _ := setupWorker(t)

	csvBatch := "vendor,symbol,date,open,high,low,close,volume\n" +
		"yahoo,AAPL,2024-01-02,100,100,100,100,10\n" +
		"yahoo,AAPL,2024-01-03,100,100,100,100,10\n" +
		"yahoo,MSFT,2024-01-03,300,300,300,300,10\n"
	rec := send(server, http.MethodPost, "/api/prices/", "text/csv", csvBatch)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	jsonBatch := `[
		{"vendor":"yahoo","symbol":"AAPL","date":"2024-01-04","open":"50","high":"50","low":"50","close":"50","volume":"20"},
		{"vendor":"yahoo","symbol":"AAPL","date":"2024-01-05","open":"49","high":"49","low":"49","close":"49","volume":"20"}
	]`
	rec = send(server, http.MethodPost, "/api/prices/", "application/json", jsonBatch)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var batch services.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	assert.Equal(t, 2, batch.Rows)
	assert.NotEmpty(t, batch.BatchID)

	rec = send(server, http.MethodPost, "/api/prices/merge", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var merged services.MergeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &merged))
	assert.Equal(t, services.MergeResult{Merged: 4, Dropped: 1}, merged)

	rec = send(server, http.MethodPost, "/api/corporate-actions", "application/json", `[
		{"vendor":"yahoo","symbol":"AAPL","date":"2024-01-04","split_ratio":"2"},
		{"vendor":"yahoo","symbol":"AAPL","date":"2024-01-05","dividend":"1"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(server, http.MethodGet, "/api/prices/yahoo/AAPL/adjusted?from=2024-01-02&to=2024-01-05", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var series struct {
		Symbol               string  `json:"symbol"`
		CumulativeAdjustment float64 `json:"cumulative_adjustment"`
		Prices               []struct {
			Close  string  `json:"close"`
			Factor float64 `json:"factor"`
		} `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Equal(t, "AAPL", series.Symbol)
	assert.InDelta(t, 0.49, series.CumulativeAdjustment, 1e-12)
	require.Len(t, series.Prices, 4)
	for _, p := range series.Prices {
		assert.Equal(t, "49", p.Close)
	}
	assert.InDelta(t, 1.0, series.Prices[3].Factor, 1e-12)

	t.Run("Bad requests", func(t *testing.T) {
		rec := send(server, http.MethodPost, "/api/prices/", "application/json", `{"vendor":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = send(server, http.MethodPost, "/api/prices/", "text/csv", "vendor,symbol,date,close\nyahoo,AAPL,2024-01-06,x\n")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = send(server, http.MethodPost, "/api/prices/", "application/json",
			`[{"vendor":"yahoo","symbol":"AAPL","date":"2024-01-06","close":"-1"}]`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = send(server, http.MethodGet, "/api/prices/yahoo/AAPL/adjusted", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = send(server, http.MethodGet, "/api/prices/yahoo/MSFT/adjusted?from=2024-01-02", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = send(server, http.MethodPost, "/api/corporate-actions", "application/json",
			`[{"vendor":"yahoo","symbol":"MSFT","date":"2024-01-04","split_ratio":"2"}]`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
