package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lending-engine/internal/config"
	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/pkg/apperrors"
)

const (
	opRegisterClient   = "createClient"
	opInitiateQuery    = "initiateQueryScore"
	opQueryScore       = "queryScore"
	headerClientToken  = "client-token"
	maxErrorBodyLength = 512
)

// HTTPClient implements Client over the gateway's REST API.
type HTTPClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg config.ScoringConfig, logger *slog.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "ScoringHTTPClient"),
	}
}

func (c *HTTPClient) RegisterClient(ctx context.Context, info ClientInfo) (string, error) {
	body, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to marshal client info: %w", err)
	}

	res, err := c.do(ctx, opRegisterClient, http.MethodPost, "/client/createClient", bytes.NewReader(body), nil)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return "", c.statusError(opRegisterClient, res)
	}

	var registered ClientInfo
	if err := json.NewDecoder(res.Body).Decode(&registered); err != nil {
		return "", invalidResponse(opRegisterClient, res.StatusCode, "malformed registration payload", err)
	}
	if registered.Token == "" {
		return "", invalidResponse(opRegisterClient, res.StatusCode, "registration response has no token", nil)
	}

	c.logger.InfoContext(ctx, "Registered client with scoring gateway", slog.Int64("clientID", registered.ID))
	return registered.Token, nil
}

func (c *HTTPClient) InitiateScoreQuery(ctx context.Context, customerNumber, clientToken string) (string, error) {
	path := "/scoring/initiateQueryScore/" + url.PathEscape(customerNumber)
	res, err := c.do(ctx, opInitiateQuery, http.MethodGet, path, nil, map[string]string{headerClientToken: clientToken})
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return "", c.statusError(opInitiateQuery, res)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", unavailable(opInitiateQuery, err)
	}
	token := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if token == "" {
		return "", invalidResponse(opInitiateQuery, res.StatusCode, "empty query token", nil)
	}

	c.logger.DebugContext(ctx, "Initiated score query", slog.String("customerNumber", customerNumber))
	return token, nil
}

func (c *HTTPClient) QueryScore(ctx context.Context, queryToken, clientToken string) (ScoreOutcome, error) {
	path := "/scoring/queryScore/" + url.PathEscape(queryToken)
	res, err := c.do(ctx, opQueryScore, http.MethodGet, path, nil, map[string]string{headerClientToken: clientToken})
	if err != nil {
		return ScoreOutcome{}, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return Pending(), nil
	}
	if res.StatusCode/100 != 2 {
		return ScoreOutcome{}, c.statusError(opQueryScore, res)
	}

	var result ScoreResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return ScoreOutcome{}, invalidResponse(opQueryScore, res.StatusCode, "malformed score payload", err)
	}
	if strings.EqualFold(result.Exclusion, exclusionPending) {
		return Pending(), nil
	}
	if result.Exclusion == "" {
		return ScoreOutcome{}, invalidResponse(opQueryScore, res.StatusCode, "score payload has no exclusion code", nil)
	}
	return Ready(result), nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		monitoring.ObserveGatewayCall(op, "error", time.Since(start))
		c.logger.WarnContext(ctx, "Scoring gateway call failed", slog.String("op", op), slog.Any("error", err))
		return nil, unavailable(op, err)
	}
	monitoring.ObserveGatewayCall(op, strconv.Itoa(res.StatusCode), time.Since(start))
	return res, nil
}

func (c *HTTPClient) statusError(op string, res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyLength))
	msg := strings.TrimSpace(string(raw))

	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = http.StatusText(res.StatusCode)
	}

	if res.StatusCode >= http.StatusInternalServerError {
		return &GatewayError{Op: op, StatusCode: res.StatusCode, Message: msg, Kind: apperrors.ErrGatewayUnavailable}
	}
	return invalidResponse(op, res.StatusCode, msg, nil)
}
