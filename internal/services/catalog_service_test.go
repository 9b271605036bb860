package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/miradorstack/benford-lab/internal/cache"
	"github.com/miradorstack/benford-lab/internal/catalog"
	"github.com/miradorstack/benford-lab/internal/models"
	"github.com/miradorstack/benford-lab/internal/security"
	"github.com/miradorstack/benford-lab/internal/session"
	"github.com/miradorstack/benford-lab/internal/storage"
	"github.com/miradorstack/benford-lab/internal/utils"
)

type catalogClientStub struct {
	searches  int
	downloads int
	body      string
	authErr   error
}

func (c *catalogClientStub) Authenticate(_ context.Context, creds catalog.Credentials) (catalog.Credentials, error) {
	if c.authErr != nil {
		return catalog.Credentials{}, c.authErr
	}
	return catalog.ValidateCredentials(creds)
}

func (c *catalogClientStub) Search(_ context.Context, _ catalog.Credentials, query string) ([]catalog.Dataset, error) {
	c.searches++
	return []catalog.Dataset{{Ref: "gov/" + strings.ReplaceAll(query, " ", "-"), Title: query}}, nil
}

func (c *catalogClientStub) Metadata(_ context.Context, _ catalog.Credentials, ref string) (*catalog.Metadata, error) {
	return &catalog.Metadata{Ref: ref, CSVFiles: []catalog.File{{Name: "data.csv", Size: int64(len(c.body))}}}, nil
}

func (c *catalogClientStub) Download(_ context.Context, _ catalog.Credentials, _, file string, _ int64, intake *storage.Intake) (storage.Upload, error) {
	c.downloads++
	return intake.Accept(strings.NewReader(c.body), file)
}

func newCatalogFixture(t *testing.T, client *catalogClientStub, cfg CatalogConfig) (*CatalogService, *session.Session, *storage.Intake) {
	t.Helper()
	vault, err := security.NewVault("test-secret")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	intake := storage.NewIntake(newRoot(t), 1<<20)
	svc := NewCatalogService(utils.Discard(), client, vault, cache.NewMemoryProvider(), intake, cfg)
	sess := session.Load(session.NewCookieStore("test", false), httptest.NewRequest(http.MethodGet, "/", nil))
	return svc, sess, intake
}

var validCreds = catalog.Credentials{Username: "analyst", Key: "abcd1234efgh"}

func TestCatalogRequiresConnection(t *testing.T) {
	svc, sess, _ := newCatalogFixture(t, &catalogClientStub{}, CatalogConfig{})
	if _, err := svc.Search(context.Background(), sess, "population"); !errors.Is(err, catalog.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if status := svc.Status(sess); status.Connected {
		t.Fatalf("session should not be connected")
	}
}

func TestCatalogConnectAndStatus(t *testing.T) {
	svc, sess, _ := newCatalogFixture(t, &catalogClientStub{}, CatalogConfig{CallLimit: 5})
	if err := svc.Connect(context.Background(), sess, validCreds); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	status := svc.Status(sess)
	if !status.Connected || status.Username != "ana***" || status.RemainingCalls != 5 || status.ExpiresAt == nil {
		t.Fatalf("unexpected status %+v", status)
	}
	svc.Disconnect(sess)
	if svc.Status(sess).Connected {
		t.Fatalf("expected disconnect to clear credentials")
	}
}

func TestCatalogConnectRejected(t *testing.T) {
	stub := &catalogClientStub{authErr: catalog.ErrAuth}
	svc, sess, _ := newCatalogFixture(t, stub, CatalogConfig{})
	if err := svc.Connect(context.Background(), sess, validCreds); !errors.Is(err, catalog.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if svc.Status(sess).Connected {
		t.Fatalf("rejected credentials must not be stored")
	}
}

func TestCatalogSearchCachesAndBudgets(t *testing.T) {
	stub := &catalogClientStub{}
	svc, sess, _ := newCatalogFixture(t, stub, CatalogConfig{CallLimit: 2})
	ctx := context.Background()
	if err := svc.Connect(ctx, sess, validCreds); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	first, err := svc.Search(ctx, sess, "  City Population ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if first.Cached || first.Query != "city population" {
		t.Fatalf("unexpected first response %+v", first)
	}
	second, err := svc.Search(ctx, sess, "city   population")
	if err != nil {
		t.Fatalf("cached Search: %v", err)
	}
	if !second.Cached || stub.searches != 1 {
		t.Fatalf("expected cached answer, searches=%d", stub.searches)
	}
	if got := svc.Status(sess).RemainingCalls; got != 1 {
		t.Fatalf("cache hits must not consume budget, remaining=%d", got)
	}

	if _, err := svc.Search(ctx, sess, "river"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, err := svc.Search(ctx, sess, "income"); !errors.Is(err, catalog.ErrRateLimit) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
	if stub.searches != 2 {
		t.Fatalf("denied search must not reach the client, searches=%d", stub.searches)
	}

	var dataErr *catalog.ExternalDataError
	if _, err := svc.Search(ctx, sess, "   "); !errors.As(err, &dataErr) {
		t.Fatalf("expected ExternalDataError for empty query, got %v", err)
	}
}

func TestCatalogDownloadPreviewCap(t *testing.T) {
	stub := &catalogClientStub{body: "amount\n1\n2\n3\n"}
	svc, sess, intake := newCatalogFixture(t, stub, CatalogConfig{MaxPreviewRows: 2})
	ctx := context.Background()
	if err := svc.Connect(ctx, sess, validCreds); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if _, err := svc.Download(ctx, sess, modelsDownload("gov/pop", "data.csv")); err == nil {
		t.Fatalf("expected row cap rejection")
	}
	entries, _ := os.ReadDir(intake.Root().Dir())
	if len(entries) != 0 {
		t.Fatalf("oversized download should be removed, found %d files", len(entries))
	}

	var dataErr *catalog.ExternalDataError
	if _, err := svc.Download(ctx, sess, modelsDownload("gov/pop", "other.csv")); !errors.As(err, &dataErr) {
		t.Fatalf("expected missing file error, got %v", err)
	}
}

func TestCatalogDownloadPreview(t *testing.T) {
	stub := &catalogClientStub{body: "amount,name\n120,a\n340,b\n"}
	svc, sess, _ := newCatalogFixture(t, stub, CatalogConfig{})
	ctx := context.Background()
	if err := svc.Connect(ctx, sess, validCreds); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	preview, err := svc.Download(ctx, sess, modelsDownload("gov/pop", "data.csv"))
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if preview.RowCount != 2 || len(preview.NumericColumns) != 1 || !strings.HasSuffix(preview.Filename, "_data.csv") {
		t.Fatalf("unexpected preview %+v", preview)
	}
	if got := svc.Status(sess).RemainingCalls; got != session.DefaultCallLimit-1 {
		t.Fatalf("download should consume one call, remaining=%d", got)
	}
}

func modelsDownload(ref, file string) models.CatalogDownloadRequest {
	return models.CatalogDownloadRequest{Ref: ref, File: file}
}
