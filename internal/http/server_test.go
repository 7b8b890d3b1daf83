package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmehdipour/isp-billing/internal/config"
	"github.com/jmehdipour/isp-billing/internal/invoice"
	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/radius"
	"github.com/jmehdipour/isp-billing/internal/service/isp"
	"github.com/jmehdipour/isp-billing/internal/testutil"
	"github.com/jmehdipour/isp-billing/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeRevenue struct {
	points []model.RevenuePoint
	months int
}

func (f *fakeRevenue) MonthlyRevenue(_ context.Context, months int) ([]model.RevenuePoint, error) {
	f.months = months
	return f.points, nil
}

type apiFixture struct {
	e   *echo.Echo
	mem *testutil.Memory
}

func newAPI(t *testing.T, revenue *fakeRevenue) *apiFixture {
	t.Helper()
	mem := testutil.NewMemory()
	clock := util.NewFixedClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))

	svc := isp.New(isp.Deps{
		Tx:        mem,
		Plans:     mem.Plans,
		Customers: mem.Customers,
		Billing:   mem.Billing,
		Outbox:    mem.Outbox,
		Dashboard: mem.Dashboard,
		Radius: radius.NewSynchronizer(mem.Radius, mem.Plans, clock, config.RadiusConfig{
			DownloadAttribute: "WISPr-Bandwidth-Max-Down",
			UploadAttribute:   "WISPr-Bandwidth-Max-Up",
		}),
		Invoices: invoice.NewNumberer(mem.Billing, clock, 3),
		Clock:    clock,
	}, isp.Options{BcryptCost: bcrypt.MinCost})

	r := Routes{Service: svc}
	if revenue != nil {
		r.Revenue = revenue
	}
	return &apiFixture{e: NewRouter(r), mem: mem}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	f := newAPI(t, nil)
	rec, _ := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPlanLifecycle(t *testing.T) {
	f := newAPI(t, nil)

	rec, body := f.do(t, http.MethodPost, "/v1/service-plans",
		`{"name":"Home 50","price":"29.99","bandwidth_mbps":50,"data_limit_gb":500}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "50 Mbps", body["formatted_bandwidth"])
	assert.Equal(t, "500 GB", body["formatted_data_limit"])
	assert.Equal(t, "29.99", body["price"])
	planID := int64(body["id"].(float64))

	rec, body = f.do(t, http.MethodPost, "/v1/customers", `{
		"name":"Jane Doe","email":"jane@example.com","username":"jane","password":"abc123",
		"service_plan_id":`+itoa(planID)+`,"status":"active","service_start_date":"2024-03-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, body, "password")
	assert.Equal(t, "green", body["status_color"])
	assert.Len(t, f.mem.Radius.ByUsername("jane"), 3)

	rec, body = f.do(t, http.MethodDelete, "/v1/service-plans/"+itoa(planID), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["retryable"])

	rec, body = f.do(t, http.MethodGet, "/v1/service-plans/"+itoa(planID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["customers_count"])

	rec, body = f.do(t, http.MethodGet, "/v1/service-plans?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(5), body["limit"])
}

func TestValidationErrorShape(t *testing.T) {
	f := newAPI(t, nil)

	rec, body := f.do(t, http.MethodPost, "/v1/service-plans", `{"name":"","price":"1000000.00","bandwidth_mbps":0}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation failed", body["error"])
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "price")
	assert.Contains(t, fields, "bandwidth_mbps")
}

func TestBadRequests(t *testing.T) {
	f := newAPI(t, nil)

	rec, _ := f.do(t, http.MethodPost, "/v1/customers", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/v1/customers/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := f.do(t, http.MethodGet, "/v1/billing-records/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", body["error"])
}

func TestBillingFlow(t *testing.T) {
	f := newAPI(t, nil)

	plan := model.ServicePlan{Name: "Home 50", Price: decimal.RequireFromString("29.99"), BandwidthMbps: 50, IsActive: true}
	require.NoError(t, f.mem.Plans.Insert(context.Background(), nil, &plan))
	cust := model.Customer{Name: "Jane", Email: "jane@example.com", Username: "jane", ServicePlanID: plan.ID, Status: model.CustomerActive}
	require.NoError(t, f.mem.Customers.Insert(context.Background(), nil, &cust))

	rec, body := f.do(t, http.MethodPost, "/v1/billing-records", `{
		"customer_id":`+itoa(cust.ID)+`,"billing_period_start":"2024-03-01","billing_period_end":"2024-03-31",
		"amount":999999.99,"due_date":"2024-04-05","notes":"<script>x</script>first invoice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "INV-2024-03-0001", body["invoice_number"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "first invoice", body["notes"])
	id := itoa(int64(body["id"].(float64)))

	rec, body = f.do(t, http.MethodPost, "/v1/billing-records/"+id+"/pay", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", body["status"])
	assert.Equal(t, "green", body["status_color"])
	assert.NotNil(t, body["paid_date"])

	rec, body = f.do(t, http.MethodGet, "/v1/billing-records?status=paid&customer_id="+itoa(cust.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total"])

	rec, _ = f.do(t, http.MethodDelete, "/v1/customers/"+itoa(cust.ID), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/v1/billing-records/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDashboardEndpoint(t *testing.T) {
	f := newAPI(t, nil)
	rec, body := f.do(t, http.MethodGet, "/v1/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "stats")
	assert.Contains(t, body, "overdue_invoices")
}

func TestRevenueReport(t *testing.T) {
	rec, _ := newAPI(t, nil).do(t, http.MethodGet, "/v1/reports/revenue", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rev := &fakeRevenue{points: []model.RevenuePoint{
		{Month: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Revenue: decimal.RequireFromString("120.50"), Paid: 4},
	}}
	rec, body := newAPI(t, rev).do(t, http.MethodGet, "/v1/reports/revenue?months=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, rev.months)
	assert.Equal(t, float64(1), body["count"])
}

func TestWriteErrorConflictRetryable(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/billing-records", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, writeError(c, isp.ErrInvoiceNumberConflict))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retryable":true`)

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	require.NoError(t, writeError(c, errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
