package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/spf13/afero"

	"github.com/nc9/sanity-go/internal/constants"
	internalhttp "github.com/nc9/sanity-go/internal/http"
	"github.com/nc9/sanity-go/pkg/sanity"
)

// Static errors for err113 compliance.
var (
	ErrNilAsset      = errors.New("asset upload request is nil")
	ErrAssetNotFound = errors.New("asset source not found")
	ErrEmptyAsset    = errors.New("asset source is empty")
)

// AssetsClient uploads images and files.
type AssetsClient struct {
	client     *Client
	downloader *downloader
}

// Upload reads or downloads req.Source and stores it as an asset.
func (c *AssetsClient) Upload(ctx context.Context, req *sanity.AssetUploadRequest) (*sanity.AssetResponse, error) {
	if req == nil {
		return nil, &sanity.ValidationError{Err: ErrNilAsset}
	}

	err := req.Validate()
	if err != nil {
		return nil, err
	}

	err = c.client.requireToken("asset uploads")
	if err != nil {
		return nil, err
	}

	operationID := c.client.operation("upload_asset", map[string]interface{}{
		"source": req.Source,
		"remote": req.IsRemote(),
	})

	var (
		data       []byte
		headerType string
	)

	if req.IsRemote() {
		data, headerType, err = c.downloader.fetch(ctx, req.Source)
	} else {
		data, err = readLocal(c.client.fs, req.Source)
	}

	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, &sanity.ValidationError{Err: fmt.Errorf("%s: %w", req.Source, ErrEmptyAsset)}
	}

	mimeType := detectMIMEType(req, headerType, data)

	kind := req.Kind
	if kind == "" {
		kind = sanity.KindForMIMEType(mimeType)
	}

	query := url.Values{}
	if name := req.BaseName(); name != "" {
		query.Set("filename", name)
	}

	if req.Label != "" {
		query.Set("label", req.Label)
	}

	if req.Title != "" {
		query.Set("title", req.Title)
	}

	resp, err := c.client.do(ctx, &internalhttp.Request{
		Method:      http.MethodPost,
		BaseURL:     c.client.config.APIBaseURL(),
		Path:        c.client.versionPath("assets/" + kind.Endpoint() + "/" + c.client.config.Dataset),
		Query:       query,
		Body:        data,
		ContentType: mimeType,
		OperationID: operationID,
	})
	if err != nil {
		return nil, fmt.Errorf("uploading asset: %w", err)
	}

	return sanity.ParseAssetResponse(resp.StatusCode, resp.Body)
}

func readLocal(fs afero.Fs, name string) ([]byte, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &sanity.ValidationError{Err: fmt.Errorf("%s: %w", name, ErrAssetNotFound)}
		}

		return nil, &sanity.ValidationError{Err: fmt.Errorf("reading %s: %w", name, err)}
	}

	return data, nil
}

// detectMIMEType prefers the explicit type, then the file extension, then
// the download's Content-Type, then content sniffing.
func detectMIMEType(req *sanity.AssetUploadRequest, headerType string, data []byte) string {
	if req.MIMEType != "" {
		return req.MIMEType
	}

	if t := sanity.GuessMIMEType(req.BaseName()); t != "" {
		return t
	}

	if headerType != "" {
		media, _, err := mime.ParseMediaType(headerType)
		if err == nil && media != constants.ContentTypeOctetStream {
			return media
		}
	}

	sniff := data
	if len(sniff) > constants.SniffLength {
		sniff = sniff[:constants.SniffLength]
	}

	media, _, err := mime.ParseMediaType(http.DetectContentType(sniff))
	if err != nil {
		return constants.ContentTypeOctetStream
	}

	return media
}

// downloader fetches remote asset sources, retrying transient failures.
type downloader struct {
	httpClient *http.Client
	maxRetries uint64
}

func newDownloader() *downloader {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = constants.DownloadTimeout

	return &downloader{httpClient: hc, maxRetries: constants.DownloadRetryMax}
}

func (d *downloader) close() {
	d.httpClient.CloseIdleConnections()
}

// fetch returns the body and Content-Type of source.
func (d *downloader) fetch(ctx context.Context, source string) ([]byte, string, error) {
	var (
		data        []byte
		contentType string
		attempts    int
	)

	operation := func() error {
		attempts++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return backoff.Permanent(&sanity.ValidationError{Err: fmt.Errorf("asset URL: %w", err)})
		}

		resp, err := d.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}

			return &sanity.TransportError{
				Method:   http.MethodGet,
				URL:      source,
				Timeout:  internalhttp.IsTimeout(err),
				Attempts: attempts,
				Err:      err,
			}
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &sanity.TransportError{Method: http.MethodGet, URL: source, Attempts: attempts, Err: err}
		}

		classified := internalhttp.Classify(http.MethodGet, source, &internalhttp.Response{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       body,
			Attempts:   attempts,
		})
		if classified != nil {
			if sanity.IsRetryable(classified) {
				return classified
			}

			return backoff.Permanent(classified)
		}

		data = body
		contentType = resp.Header.Get("Content-Type")

		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = constants.DefaultBackoffFactor
	policy.MaxInterval = constants.DefaultRetryWaitMax

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, d.maxRetries), ctx))
	if err != nil {
		return nil, "", fmt.Errorf("downloading asset source: %w", err)
	}

	return data, contentType, nil
}
