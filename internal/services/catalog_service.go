package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/miradorstack/benford-lab/internal/cache"
	"github.com/miradorstack/benford-lab/internal/catalog"
	"github.com/miradorstack/benford-lab/internal/metrics"
	"github.com/miradorstack/benford-lab/internal/models"
	"github.com/miradorstack/benford-lab/internal/security"
	"github.com/miradorstack/benford-lab/internal/session"
	"github.com/miradorstack/benford-lab/internal/storage"
)

// CatalogClient is the subset of the catalog client used by the service.
type CatalogClient interface {
	Authenticate(ctx context.Context, creds catalog.Credentials) (catalog.Credentials, error)
	Search(ctx context.Context, creds catalog.Credentials, query string) ([]catalog.Dataset, error)
	Metadata(ctx context.Context, creds catalog.Credentials, ref string) (*catalog.Metadata, error)
	Download(ctx context.Context, creds catalog.Credentials, ref, file string, size int64, intake *storage.Intake) (storage.Upload, error)
}

// CatalogConfig holds the per-session policy applied around catalog calls.
type CatalogConfig struct {
	CallLimit      int
	CallWindow     time.Duration
	CacheTTL       time.Duration
	MaxPreviewRows int
}

func (c *CatalogConfig) normalise() {
	if c.CallLimit <= 0 {
		c.CallLimit = session.DefaultCallLimit
	}
	if c.CallWindow <= 0 {
		c.CallWindow = session.DefaultCallWindow
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 15 * time.Minute
	}
	if c.MaxPreviewRows <= 0 {
		c.MaxPreviewRows = 500_000
	}
}

// CatalogService applies the call budget, the search cache and the preview cap to catalog operations.
type CatalogService struct {
	logger *slog.Logger
	client CatalogClient
	vault  *security.Vault
	cache  cache.Provider
	intake *storage.Intake
	cfg    CatalogConfig
	now    func() time.Time
}

// NewCatalogService wires the catalog policy. Downloads are stored through intake.
func NewCatalogService(logger *slog.Logger, client CatalogClient, vault *security.Vault, provider cache.Provider, intake *storage.Intake, cfg CatalogConfig) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	cfg.normalise()
	return &CatalogService{
		logger: logger,
		client: client,
		vault:  vault,
		cache:  provider,
		intake: intake,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Connect verifies creds with the catalog and stores them sealed in sess.
func (s *CatalogService) Connect(ctx context.Context, sess *session.Session, creds catalog.Credentials) error {
	verified, err := s.client.Authenticate(ctx, creds)
	if err != nil {
		s.logger.Warn("catalog authentication failed",
			slog.String("username", security.Mask(creds.Username)),
			slog.Any("error", err),
		)
		return err
	}
	token, err := s.vault.Encrypt(verified)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}
	sess.SetCredential(token, s.now())
	s.logger.Info("catalog credentials stored", slog.String("username", security.Mask(verified.Username)))
	return nil
}

// Disconnect forgets the session's credentials and call record.
func (s *CatalogService) Disconnect(sess *session.Session) {
	sess.ClearCredential()
}

// Status reports the connection state with a masked username.
func (s *CatalogService) Status(sess *session.Session) models.CatalogStatus {
	now := s.now()
	budget := sess.Budget(s.cfg.CallLimit, s.cfg.CallWindow)
	status := models.CatalogStatus{
		RemainingCalls: budget.Remaining(now),
		CallLimit:      budget.Limit(),
	}
	stored, ok := sess.Credential(now)
	if !ok {
		return status
	}
	creds, err := s.vault.Decrypt(stored.Token)
	if err != nil {
		sess.ClearCredential()
		return status
	}
	expires := stored.ExpiresAt
	status.Connected = true
	status.Username = security.Mask(creds.Username)
	status.ExpiresAt = &expires
	return status
}

// Search returns ranked datasets for query. Cached answers do not consume the call budget.
func (s *CatalogService) Search(ctx context.Context, sess *session.Session, query string) (*models.CatalogSearchResponse, error) {
	q := catalog.NormalizeQuery(query)
	if q == "" {
		return nil, &catalog.ExternalDataError{Msg: "Please enter a search query."}
	}
	creds, err := s.credentials(sess)
	if err != nil {
		return nil, err
	}

	key := "search:" + q
	var cached []catalog.Dataset
	switch err := cache.GetJSON(ctx, s.cache, key, &cached); {
	case err == nil:
		metrics.ObserveCatalogCache(true)
		return &models.CatalogSearchResponse{Query: q, Cached: true, Datasets: cached}, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		s.logger.Warn("catalog cache read failed", slog.Any("error", err))
	}
	metrics.ObserveCatalogCache(false)

	budget, err := s.reserve(sess)
	if err != nil {
		return nil, err
	}
	results, err := s.client.Search(ctx, creds, q)
	if err != nil {
		return nil, err
	}
	budget.Record(s.now())
	sess.SetBudget(budget)

	if err := cache.SetJSON(ctx, s.cache, key, results, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", slog.Any("error", err))
	}
	return &models.CatalogSearchResponse{Query: q, Datasets: results}, nil
}

// Download fetches one CSV file of a dataset into the intake root and previews it. Files
// above the preview row cap are removed.
func (s *CatalogService) Download(ctx context.Context, sess *session.Session, req models.CatalogDownloadRequest) (*models.PreviewResponse, error) {
	creds, err := s.credentials(sess)
	if err != nil {
		return nil, err
	}
	budget, err := s.reserve(sess)
	if err != nil {
		return nil, err
	}

	meta, err := s.client.Metadata(ctx, creds, req.Ref)
	if err != nil {
		return nil, err
	}
	var size int64 = -1
	for _, f := range meta.CSVFiles {
		if f.Name == req.File {
			size = f.Size
			break
		}
	}
	if size < 0 {
		return nil, &catalog.ExternalDataError{Msg: "File not found in dataset."}
	}

	upload, err := s.client.Download(ctx, creds, meta.Ref, req.File, size, s.intake)
	if err != nil {
		return nil, err
	}
	budget.Record(s.now())
	sess.SetBudget(budget)

	preview, err := Preview(upload, s.cfg.MaxPreviewRows)
	if err != nil {
		if rmErr := os.Remove(upload.Path); rmErr != nil {
			s.logger.Warn("failed to remove rejected download", slog.String("file", upload.Name), slog.Any("error", rmErr))
		}
		return nil, err
	}
	s.logger.Info("catalog file downloaded",
		slog.String("ref", meta.Ref),
		slog.String("file", upload.Name),
		slog.Int64("bytes", upload.Size),
	)
	return preview, nil
}

func (s *CatalogService) credentials(sess *session.Session) (catalog.Credentials, error) {
	stored, ok := sess.Credential(s.now())
	if !ok {
		return catalog.Credentials{}, fmt.Errorf("%w: no active catalog session", catalog.ErrAuth)
	}
	creds, err := s.vault.Decrypt(stored.Token)
	if err != nil {
		sess.ClearCredential()
		return catalog.Credentials{}, err
	}
	return creds, nil
}

func (s *CatalogService) reserve(sess *session.Session) (*session.CallBudget, error) {
	budget := sess.Budget(s.cfg.CallLimit, s.cfg.CallWindow)
	if !budget.Allow(s.now()) {
		return nil, fmt.Errorf("%w: %d calls per %s", catalog.ErrRateLimit, budget.Limit(), s.cfg.CallWindow)
	}
	return budget, nil
}
