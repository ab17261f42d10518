package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"symmio/internal/models"
	"symmio/internal/repository"
)

type snapshotRepo struct {
	repository.Repository

	affiliate *models.AffiliateSnapshot
	hedger    *models.HedgerSnapshot
}

func (r *snapshotRepo) GetLatestAffiliateSnapshot(ctx context.Context, tenant, name string) (*models.AffiliateSnapshot, error) {
	if r.affiliate != nil && r.affiliate.Tenant == tenant && r.affiliate.Name == name {
		return r.affiliate, nil
	}
	return nil, nil
}

func (r *snapshotRepo) GetLatestHedgerSnapshot(ctx context.Context, tenant, hedgerName string) (*models.HedgerSnapshot, error) {
	if r.hedger != nil && r.hedger.Tenant == tenant && r.hedger.HedgerName == hedgerName {
		return r.hedger, nil
	}
	return nil, nil
}

func newTestRouter(repo repository.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	(&SnapshotHandler{Repo: repo}).Register(r)
	return r
}

func TestAffiliateSnapshotEndpoint(t *testing.T) {
	repo := &snapshotRepo{affiliate: &models.AffiliateSnapshot{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Tenant:    "base", Name: "frontend",
		BlockNumber: 900,
		Deposit:     decimal.New(130, 18),
	}}
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/affiliate?tenant=base&name=frontend", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var got models.AffiliateSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.BlockNumber != 900 || !got.Deposit.Equal(decimal.New(130, 18)) {
		t.Fatalf("got %+v", got)
	}
}

func TestSnapshotNotFound(t *testing.T) {
	router := newTestRouter(&snapshotRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/hedger?tenant=base&hedger=hedger-1", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] != "snapshot not found" {
		t.Fatalf("body = %v", body)
	}
}

func TestSnapshotMissingParams(t *testing.T) {
	router := newTestRouter(&snapshotRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/affiliate?tenant=base", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}
