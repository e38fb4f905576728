package scoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-engine/internal/config"
	"lending-engine/internal/infrastructure/logging"
	"lending-engine/internal/pkg/apperrors"
)

func newGateway(t *testing.T, setup func(r chi.Router)) *HTTPClient {
	t.Helper()
	r := chi.NewRouter()
	setup(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.ScoringConfig{BaseURL: srv.URL + "/", Timeout: time.Second}, logging.Discard())
}

func TestRegisterClient(t *testing.T) {
	client := newGateway(t, func(r chi.Router) {
		r.Post("/client/createClient", func(w http.ResponseWriter, r *http.Request) {
			var info ClientInfo
			require.NoError(t, json.NewDecoder(r.Body).Decode(&info))
			assert.Equal(t, "lending-engine", info.Name)
			info.ID = 42
			info.Token = "registered-token"
			_ = json.NewEncoder(w).Encode(info)
		})
	})

	token, err := client.RegisterClient(context.Background(), ClientInfo{Name: "lending-engine", URL: "http://engine", Username: "u", Password: "p"})

	require.NoError(t, err)
	assert.Equal(t, "registered-token", token)
}

func TestRegisterClient_MissingToken(t *testing.T) {
	client := newGateway(t, func(r chi.Router) {
		r.Post("/client/createClient", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"id":1}`)
		})
	})

	_, err := client.RegisterClient(context.Background(), ClientInfo{})

	assert.ErrorIs(t, err, apperrors.ErrInvalidResponse)
}

func TestInitiateScoreQuery(t *testing.T) {
	client := newGateway(t, func(r chi.Router) {
		r.Get("/scoring/initiateQueryScore/{customerNumber}", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "234774784", chi.URLParam(r, "customerNumber"))
			assert.Equal(t, "client-token", r.Header.Get("client-token"))
			_, _ = io.WriteString(w, "query-token-1\n")
		})
	})

	token, err := client.InitiateScoreQuery(context.Background(), "234774784", "client-token")

	require.NoError(t, err)
	assert.Equal(t, "query-token-1", token)
}

func TestInitiateScoreQuery_ServerError(t *testing.T) {
	client := newGateway(t, func(r chi.Router) {
		r.Get("/scoring/initiateQueryScore/{customerNumber}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"message":"scoring engine down"}`)
		})
	})

	_, err := client.InitiateScoreQuery(context.Background(), "234774784", "client-token")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGatewayUnavailable)
	assert.True(t, IsUnavailable(err))
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusInternalServerError, ge.StatusCode)
	assert.Equal(t, "scoring engine down", ge.Message)
}

func TestInitiateScoreQuery_Unauthorized(t *testing.T) {
	client := newGateway(t, func(r chi.Router) {
		r.Get("/scoring/initiateQueryScore/{customerNumber}", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad token", http.StatusUnauthorized)
		})
	})

	_, err := client.InitiateScoreQuery(context.Background(), "234774784", "client-token")

	assert.ErrorIs(t, err, apperrors.ErrInvalidResponse)
	assert.ErrorContains(t, err, "bad token")
}

func TestQueryScore(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantPending bool
		wantErr     error
		wantScore   int
	}{
		{name: "ready", status: http.StatusOK, body: `{"id":1,"customerNumber":"234774784","score":650,"limitAmount":10000,"exclusion":"No Exclusion","exclusionReason":"No Exclusion"}`, wantScore: 650},
		{name: "not found is pending", status: http.StatusNotFound, body: "", wantPending: true},
		{name: "pending exclusion", status: http.StatusOK, body: `{"exclusion":"pending"}`, wantPending: true},
		{name: "malformed", status: http.StatusOK, body: `{"score":`, wantErr: apperrors.ErrInvalidResponse},
		{name: "missing exclusion", status: http.StatusOK, body: `{"score":650}`, wantErr: apperrors.ErrInvalidResponse},
		{name: "bad gateway", status: http.StatusBadGateway, body: "upstream", wantErr: apperrors.ErrGatewayUnavailable},
		{name: "bad request", status: http.StatusBadRequest, body: "nope", wantErr: apperrors.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newGateway(t, func(r chi.Router) {
				r.Get("/scoring/queryScore/{token}", func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "query-token", chi.URLParam(r, "token"))
					w.WriteHeader(tt.status)
					_, _ = io.WriteString(w, tt.body)
				})
			})

			outcome, err := client.QueryScore(context.Background(), "query-token", "client-token")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPending, outcome.Pending)
			if !tt.wantPending {
				require.NotNil(t, outcome.Result)
				assert.Equal(t, tt.wantScore, outcome.Result.Score)
				assert.False(t, outcome.Result.Excluded())
			}
		})
	}
}

func TestQueryScore_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	client := NewHTTPClient(config.ScoringConfig{BaseURL: base, Timeout: time.Second}, logging.Discard())

	_, err := client.QueryScore(context.Background(), "query-token", "client-token")

	assert.ErrorIs(t, err, apperrors.ErrGatewayUnavailable)
}

func TestBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)
		_, _ = io.WriteString(w, "q")
	}))
	defer srv.Close()
	client := NewHTTPClient(config.ScoringConfig{BaseURL: srv.URL, Username: "admin", Password: "secret"}, logging.Discard())

	_, err := client.InitiateScoreQuery(context.Background(), "234774784", "t")
	assert.NoError(t, err)
}
