package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	apperrors "go-pod-analyzer/internal/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

const blobHostSuffix = ".blob.core.windows.net"

// BlobLocation identifies a blob inside a storage account.
type BlobLocation struct {
	Account   string
	Container string
	Blob      string
}

// ParseBlobURL splits https://<account>.blob.core.windows.net/<container>/<blob>.
func ParseBlobURL(blobURL string) (BlobLocation, error) {
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return BlobLocation{}, fmt.Errorf("invalid blob URL: %w", err)
	}
	host := strings.ToLower(parsed.Hostname())
	if !strings.HasSuffix(host, blobHostSuffix) {
		return BlobLocation{}, fmt.Errorf("not an Azure blob URL: %s", host)
	}

	path := strings.TrimPrefix(parsed.Path, "/")
	container, blob, ok := strings.Cut(path, "/")
	if !ok || container == "" || blob == "" {
		return BlobLocation{}, fmt.Errorf("blob URL must include container and blob name: %s", parsed.Path)
	}

	return BlobLocation{
		Account:   strings.TrimSuffix(host, blobHostSuffix),
		Container: container,
		Blob:      blob,
	}, nil
}

// AzureBlobFetcher downloads images from a single storage account.
type AzureBlobFetcher struct {
	client   *azblob.Client
	account  string
	maxBytes int64
}

func NewAzureBlobFetcher(accountName, accountKey string, maxBytes int64) (*AzureBlobFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s%s", accountName, blobHostSuffix),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	if maxBytes <= 0 {
		maxBytes = defaultMaxImageSize
	}
	return &AzureBlobFetcher{client: client, account: strings.ToLower(accountName), maxBytes: maxBytes}, nil
}

// Owns reports whether blobURL points into this fetcher's account.
func (s *AzureBlobFetcher) Owns(blobURL string) bool {
	loc, err := ParseBlobURL(blobURL)
	return err == nil && loc.Account == s.account
}

func (s *AzureBlobFetcher) FetchImage(ctx context.Context, blobURL string) (*Image, error) {
	loc, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}
	if loc.Account != s.account {
		return nil, fmt.Errorf("blob account %q is not configured", loc.Account)
	}

	blobName, err := url.PathUnescape(loc.Blob)
	if err != nil {
		return nil, fmt.Errorf("invalid blob name: %w", err)
	}

	resp, err := s.client.DownloadStream(ctx, loc.Container, blobName, nil)
	if err != nil {
		return nil, downloadError(ctx, blobURL, err)
	}
	body := resp.Body
	defer body.Close()

	data, err := readLimited(body, s.maxBytes)
	if err != nil {
		return nil, err
	}

	declared := ""
	if resp.ContentType != nil {
		declared = *resp.ContentType
	}
	return &Image{Data: data, MimeType: detectMimeType(declared, data)}, nil
}

// downloadError reports a service refusal as a StatusError, the same as an
// HTTP fetch, and everything else as a transport failure.
func downloadError(ctx context.Context, blobURL string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return &StatusError{URL: blobURL, StatusCode: respErr.StatusCode}
	}
	return apperrors.NewTransportError(ctx, "blob download failed", err)
}
