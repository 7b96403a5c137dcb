package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"edudebt_collection/internal/config"
	"edudebt_collection/internal/models"
	"edudebt_collection/internal/server"
	"edudebt_collection/internal/services/calculator"

	"github.com/shopspring/decimal"
)

func memoryConfig(authDisabled bool) *config.Config {
	return &config.Config{Settings: config.Settings{
		Store:             config.StoreMemory,
		Calc:              calculator.DefaultConfig(),
		DefaultCommission: decimal.NewFromInt(10),
		LockTTL:           10 * time.Second,
		ImportBatchSize:   100,
		AuthDisabled:      authDisabled,
		StaticTokens:      map[string]string{"tok-1": "clerk:tenant-1"},
	}}
}

func TestBuildMemoryServesCollectionFlow(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(false))
	if err != nil {
		t.Fatal(err)
	}
	if a.Handlers.Files != nil {
		t.Error("file store must stay nil without S3")
	}

	debt, err := a.Handlers.Debts.CreateDebt(context.Background(), models.Debt{
		TenantID: "tenant-1",
		Number:   "INV-1",
		Amount:   decimal.RequireFromString("1000"),
		DueDate:  time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
		Status:   models.StatusOverdue,
		Stage:    models.StageAwaitingContact.Ptr(),
	})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(server.Routes(a.Handlers, a.Auth))
	defer srv.Close()

	post := func(path, body string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer tok-1")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp
	}

	if resp := post("/debts/"+debt.ID+"/attempts", `{"channel":"email"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("attempt: %d", resp.StatusCode)
	}
	if resp := post("/debts/"+debt.ID+"/settle", `{"amount":"1000"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("settle: %d", resp.StatusCode)
	}

	got, err := a.Handlers.Debts.GetDebt(context.Background(), debt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusPaid || got.Commission == nil || !got.Commission.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected debt after settle: %+v", got)
	}

	events, err := a.Handlers.History.ListByDebt(context.Background(), debt.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) == 0 {
		t.Error("expected recorded lifecycle events")
	}
}

func TestBuildHonoursZeroDefaultCommission(t *testing.T) {
	cfg := memoryConfig(true)
	cfg.DefaultCommission = decimal.Zero
	a, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	debt, err := a.Handlers.Debts.CreateDebt(context.Background(), models.Debt{
		TenantID: "tenant-1",
		Number:   "INV-0",
		Amount:   decimal.RequireFromString("500"),
		DueDate:  time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
		Status:   models.StatusOverdue,
		Stage:    models.StageInNegotiation.Ptr(),
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := a.Handlers.Settlement.Settle(context.Background(), debt.ID, decimal.RequireFromString("500"), "ops")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Commission.IsZero() {
		t.Fatalf("expected zero commission, got %s", res.Commission)
	}
}

func TestBuildAuthDisabledAcceptsAnonymous(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(true))
	if err != nil {
		t.Fatal(err)
	}
	rr := httptest.NewRecorder()
	server.Routes(a.Handlers, a.Auth).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tenants/tenant-1/overdue", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestBuildPostgresWithoutConnectionsFails(t *testing.T) {
	cfg := memoryConfig(false)
	cfg.Store = config.StorePostgres
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatal("expected error without postgres and mongo")
	}
}

func TestChecksFollowConfiguredConnections(t *testing.T) {
	if got := checks(memoryConfig(false)); len(got) != 0 {
		t.Fatalf("memory mode should have no checks, got %d", len(got))
	}
}
