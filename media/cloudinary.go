package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Host is the media host as the services see it: upload a file and get back a
// stable URL, destroy an object by identifier, list everything under the
// configured folder.
type Host interface {
	Upload(ctx context.Context, filename string, file io.Reader) (string, error)
	Destroy(ctx context.Context, publicID string) (bool, error)
	List(ctx context.Context) ([]Asset, error)
}

// ErrHostUnavailable wraps transport-level failures talking to the host so
// callers can distinguish "host said no" from "host unreachable".
var ErrHostUnavailable = errors.New("media host unavailable")

// CloudinaryHost implements Host against the Cloudinary REST API. Mutating
// calls are request-signed with the API secret; the listing call uses the
// Admin API with basic auth.
type CloudinaryHost struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	baseURL   string // overridable in tests
	client    *http.Client
	logger    *zap.SugaredLogger
}

// NewCloudinaryHost creates a host client for the given account. Uploaded
// covers all land under folder.
func NewCloudinaryHost(cloudName, apiKey, apiSecret, folder string, logger *zap.SugaredLogger) *CloudinaryHost {
	return &CloudinaryHost{
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		folder:    folder,
		baseURL:   "https://api.cloudinary.com/v1_1",
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// signature computes the request signature Cloudinary expects: the
// alphabetically sorted params joined as a query string, concatenated with
// the API secret, hashed with SHA-1.
func (h *CloudinaryHost) signature(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + h.apiSecret))
	return hex.EncodeToString(sum[:])
}

type uploadResult struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload pushes the file and returns the delivery URL. The public ID is a
// fresh UUID under the configured folder, so concurrent uploads can never
// collide on the host side.
func (h *CloudinaryHost) Upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	publicID := h.folder + "/" + uuid.NewString()
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	params := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}

	var body strings.Builder
	writer := multipart.NewWriter(&body)
	for k, v := range params {
		_ = writer.WriteField(k, v)
	}
	_ = writer.WriteField("api_key", h.apiKey)
	_ = writer.WriteField("signature", h.signature(params))

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", h.baseURL, h.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.String()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHostUnavailable, err)
	}
	defer resp.Body.Close()

	var result uploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decoding upload response: %v", ErrHostUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK || result.SecureURL == "" {
		return "", fmt.Errorf("upload rejected (status %d): %s", resp.StatusCode, result.Error.Message)
	}

	h.logger.Infow("Uploaded image", "public_id", result.PublicID)
	return result.SecureURL, nil
}

type destroyResult struct {
	Result string `json:"result"`
}

// Destroy removes an object by public ID. Returns false when the host never
// had (or no longer has) the object; that is not an error.
func (h *CloudinaryHost) Destroy(ctx context.Context, publicID string) (bool, error) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	params := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("api_key", h.apiKey)
	form.Set("signature", h.signature(params))

	endpoint := fmt.Sprintf("%s/%s/image/destroy", h.baseURL, h.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrHostUnavailable, err)
	}
	defer resp.Body.Close()

	var result destroyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("%w: decoding destroy response: %v", ErrHostUnavailable, err)
	}

	switch result.Result {
	case "ok":
		h.logger.Infow("Destroyed image", "public_id", publicID)
		return true, nil
	case "not found":
		return false, nil
	default:
		return false, fmt.Errorf("destroy failed for %s: %s", publicID, result.Result)
	}
}

type listResult struct {
	Resources []struct {
		PublicID  string `json:"public_id"`
		SecureURL string `json:"secure_url"`
		CreatedAt string `json:"created_at"`
		Bytes     int64  `json:"bytes"`
	} `json:"resources"`
}

// List returns every object under the configured folder via the Admin API.
func (h *CloudinaryHost) List(ctx context.Context) ([]Asset, error) {
	endpoint := fmt.Sprintf("%s/%s/resources/image/upload?prefix=%s&max_results=500",
		h.baseURL, h.cloudName, url.QueryEscape(h.folder+"/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(h.apiKey, h.apiSecret)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing resources failed (status %d)", resp.StatusCode)
	}

	var result listResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding list response: %v", ErrHostUnavailable, err)
	}

	assets := make([]Asset, 0, len(result.Resources))
	for _, res := range result.Resources {
		createdAt, _ := time.Parse(time.RFC3339, res.CreatedAt)
		assets = append(assets, Asset{
			PublicID:  res.PublicID,
			URL:       res.SecureURL,
			CreatedAt: createdAt,
			Bytes:     res.Bytes,
		})
	}
	return assets, nil
}
