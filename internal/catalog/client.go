// Package catalog talks to a Kaggle-compatible dataset catalog over its REST API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/miradorstack/benford-lab/internal/metrics"
	"github.com/miradorstack/benford-lab/internal/storage"
)

// Defaults for the public Kaggle API.
const (
	DefaultBaseURL          = "https://www.kaggle.com/api/v1"
	DefaultMaxDownloadBytes = 50 << 20
	DefaultSearchLimit      = 10
)

// Config tunes the catalog client.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	MaxDownloadBytes int64
	SearchLimit      int
	// RequestsPerSecond bounds outbound calls process-wide.
	RequestsPerSecond float64
	Burst             int
}

// Client implements authenticate, search, metadata and download.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxDownload int64
	searchLimit int
	logger      *slog.Logger
}

// NewClient constructs a client; zero config fields take the defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.SearchLimit + 1
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxDownload: cfg.MaxDownloadBytes,
		searchLimit: cfg.SearchLimit,
		logger:      logger,
	}
}

// MaxDownloadBytes reports the download size cap.
func (c *Client) MaxDownloadBytes() int64 {
	return c.maxDownload
}

type listedDataset struct {
	Ref      string `json:"ref"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type listedFiles struct {
	DatasetFiles []struct {
		Name       string `json:"name"`
		TotalBytes int64  `json:"totalBytes"`
	} `json:"datasetFiles"`
}

// Authenticate validates the credential format and confirms them with a cheap listing call.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (Credentials, error) {
	creds, err := ValidateCredentials(creds)
	if err != nil {
		return Credentials{}, err
	}
	var probe []listedDataset
	err = c.getJSON(ctx, creds, "/datasets/list", url.Values{"page": {"1"}, "search": {""}}, &probe)
	metrics.ObserveCatalogCall("authenticate", err)
	if err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Search returns up to the search limit of datasets carrying CSV files, best scored first.
func (c *Client) Search(ctx context.Context, creds Credentials, query string) ([]Dataset, error) {
	datasets, err := c.search(ctx, creds, query)
	metrics.ObserveCatalogCall("search", err)
	return datasets, err
}

func (c *Client) search(ctx context.Context, creds Credentials, query string) ([]Dataset, error) {
	var listed []listedDataset
	params := url.Values{"search": {query}, "page": {"1"}}
	if err := c.getJSON(ctx, creds, "/datasets/list", params, &listed); err != nil {
		return nil, err
	}
	if len(listed) > c.searchLimit {
		listed = listed[:c.searchLimit]
	}

	results := make([]Dataset, 0, len(listed))
	for _, ds := range listed {
		ref, err := ValidateRef(ds.Ref)
		if err != nil {
			return nil, err
		}
		files, err := c.csvFiles(ctx, creds, ref)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		results = append(results, Dataset{
			Ref:         ref,
			Title:       ds.Title,
			Description: ds.Subtitle,
			CSVFiles:    files,
			Score:       SuitabilityScore(ds.Title, ref),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// Metadata lists the CSV files of ref.
func (c *Client) Metadata(ctx context.Context, creds Credentials, ref string) (*Metadata, error) {
	ref, err := ValidateRef(ref)
	if err != nil {
		return nil, err
	}
	files, err := c.csvFiles(ctx, creds, ref)
	metrics.ObserveCatalogCall("metadata", err)
	if err != nil {
		return nil, err
	}
	return &Metadata{Ref: ref, CSVFiles: files}, nil
}

func (c *Client) csvFiles(ctx context.Context, creds Credentials, ref string) ([]File, error) {
	var listed listedFiles
	if err := c.getJSON(ctx, creds, "/datasets/list/"+ref, nil, &listed); err != nil {
		return nil, err
	}
	files := make([]File, 0, len(listed.DatasetFiles))
	for _, f := range listed.DatasetFiles {
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			files = append(files, File{Name: f.Name, Size: f.TotalBytes})
		}
	}
	return files, nil
}

// Download fetches file of ref into intake under a unique name. Archived payloads are
// unpacked and the archive removed. size is the advertised size from Metadata.
func (c *Client) Download(ctx context.Context, creds Credentials, ref, file string, size int64, intake *storage.Intake) (storage.Upload, error) {
	upload, err := c.download(ctx, creds, ref, file, size, intake)
	metrics.ObserveCatalogCall("download", err)
	return upload, err
}

func (c *Client) download(ctx context.Context, creds Credentials, ref, file string, size int64, intake *storage.Intake) (storage.Upload, error) {
	ref, err := ValidateRef(ref)
	if err != nil {
		return storage.Upload{}, err
	}
	if file, err = ValidateFilename(file); err != nil {
		return storage.Upload{}, err
	}
	if size > c.maxDownload {
		return storage.Upload{}, dataError("File exceeds the download size limit.", nil)
	}

	resp, err := c.do(ctx, creds, "/datasets/download/"+ref+"/"+url.PathEscape(file), nil)
	if err != nil {
		return storage.Upload{}, err
	}
	defer resp.Body.Close()

	now := time.Now()
	name, err := storage.UploadName(file, now)
	if err != nil {
		return storage.Upload{}, dataError("Invalid filename.", err)
	}
	raw, err := intake.Store(resp.Body, name)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return storage.Upload{}, dataError("File exceeds the download size limit.", err)
		}
		return storage.Upload{}, fmt.Errorf("store download: %w", err)
	}

	kind, err := sniffArchive(raw.Path)
	if err != nil {
		_ = os.Remove(raw.Path)
		return storage.Upload{}, fmt.Errorf("inspect download: %w", err)
	}
	if kind == archiveNone {
		return raw, nil
	}

	c.logger.Debug("unpacking catalog download", slog.String("ref", ref), slog.String("archive", kind.String()))
	defer os.Remove(raw.Path)

	extractedName, err := storage.UploadName(file, now)
	if err != nil {
		return storage.Upload{}, dataError("Invalid filename.", err)
	}
	var extracted storage.Upload
	err = extract(raw.Path, kind, file, func(r io.Reader) error {
		var storeErr error
		extracted, storeErr = intake.Store(r, extractedName)
		return storeErr
	})
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return storage.Upload{}, dataError("File exceeds the download size limit.", err)
		}
		return storage.Upload{}, err
	}
	if _, err := os.Stat(extracted.Path); err != nil {
		return storage.Upload{}, dataError("Downloaded file not found after extraction.", err)
	}
	return extracted, nil
}

func (c *Client) getJSON(ctx context.Context, creds Credentials, p string, params url.Values, out any) error {
	resp, err := c.do(ctx, creds, p, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dataError("Unexpected response from the dataset catalog.", err)
	}
	return nil
}

// do issues an authenticated GET and maps non-2xx statuses to package errors. The caller
// closes the body on success.
func (c *Client) do(ctx context.Context, creds Credentials, p string, params url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("wait for catalog slot: %w", ctxErr)
		}
		return nil, fmt.Errorf("wait for catalog slot: %w", err)
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(p, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(creds.Username, creds.Key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dataError("The dataset catalog is unreachable.", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, authError("Credentials were rejected by the dataset catalog.")
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: provider returned %s", ErrRateLimit, resp.Status)
	case http.StatusNotFound:
		return nil, dataError("Dataset or file not found.", fmt.Errorf("catalog returned %s", resp.Status))
	default:
		return nil, dataError("The dataset catalog returned an error.", fmt.Errorf("catalog returned %s", resp.Status))
	}
}
