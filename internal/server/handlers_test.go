package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billparty/internal/auth"
	"github.com/mmynk/billparty/internal/models"
	"github.com/mmynk/billparty/internal/receipt"
	"github.com/mmynk/billparty/internal/storage"
	"github.com/mmynk/billparty/internal/storage/sqlite"
)

// fakeSessions resolves every request to fixed claims, or fails.
type fakeSessions struct {
	claims  *auth.IdentityClaims
	fail    bool
	localID string
}

func (f *fakeSessions) Resolve(_ context.Context, _ *http.Request) (*auth.IdentityClaims, error) {
	if f.fail {
		return nil, auth.ErrMissingToken
	}
	c := *f.claims
	return &c, nil
}

func (f *fakeSessions) EnsureProvisioned(_ context.Context, _ *auth.IdentityClaims) (string, error) {
	return f.localID, nil
}

// fakeUploader records the upload and returns canned results.
type fakeUploader struct {
	image    *models.BillImage
	receipt  *receipt.Receipt
	err      error
	partyID  string
	fileName string
}

func (f *fakeUploader) Upload(_ context.Context, partyID, fileName string, _ []byte) (*models.BillImage, *receipt.Receipt, error) {
	f.partyID = partyID
	f.fileName = fileName
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.image, f.receipt, nil
}

type testEnv struct {
	srv      *httptest.Server
	sessions *fakeSessions
	uploader *fakeUploader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sessions := &fakeSessions{
		claims:  &auth.IdentityClaims{Subject: "idp|1", Email: "alice@example.com"},
		localID: "local-1",
	}
	uploader := &fakeUploader{
		image:   &models.BillImage{ID: "img-1", FileTitle: "dinner.jpg", ImageURL: "https://cdn.example.com/dinner.jpg"},
		receipt: &receipt.Receipt{MerchantName: "Trattoria", Items: []receipt.ReceiptItem{}},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := New(store, sessions, uploader, logger)

	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, sessions: sessions, uploader: uploader}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) createUser(t *testing.T, name, email string) models.User {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/users", map[string]string{"name": name, "email": email})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[models.User](t, resp)
}

func TestMethodGating(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		path    string
		allowed []string
	}{
		{"/api/users", []string{"GET", "POST"}},
		{"/api/users/some-id", []string{"GET", "PUT", "DELETE"}},
		{"/api/parties", []string{"GET", "POST"}},
		{"/api/parties/some-id", []string{"GET", "DELETE"}},
		{"/api/parties/some-id/contributors", []string{"POST"}},
		{"/api/parties/some-id/balances", []string{"GET"}},
		{"/api/expenses", []string{"POST"}},
		{"/api/expenses/some-id", []string{"GET", "PUT", "DELETE"}},
		{"/api/receipts", []string{"POST"}},
	}

	for _, route := range routes {
		t.Run(route.path, func(t *testing.T) {
			// An unlisted method yields exactly 405 with the allowed set.
			resp := env.do(t, http.MethodPatch, route.path, nil)
			resp.Body.Close()
			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
			allow := resp.Header.Get("Allow")
			for _, m := range route.allowed {
				assert.Contains(t, allow, m)
			}
			assert.Contains(t, allow, "OPTIONS")

			// OPTIONS yields 200 with CORS headers, uniformly.
			resp = env.do(t, http.MethodOptions, route.path, nil)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCreatePartyScenario(t *testing.T) {
	env := newTestEnv(t)

	owner := env.createUser(t, "Alice", "alice@example.com")

	resp := env.do(t, http.MethodPost, "/api/parties", map[string]string{
		"ownerId": owner.ID,
		"name":    "Trip",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	party := decodeBody[models.Party](t, resp)
	require.NotEmpty(t, party.ID)

	resp = env.do(t, http.MethodGet, "/api/parties/"+party.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	agg := decodeBody[models.PartyAggregate](t, resp)

	assert.Equal(t, owner.ID, agg.Owner.ID)
	assert.NotNil(t, agg.Expenses)
	assert.Len(t, agg.Expenses, 0)
	assert.NotNil(t, agg.Contributors)
	assert.Len(t, agg.Contributors, 0)
	assert.NotNil(t, agg.BillImages)
	assert.Len(t, agg.BillImages, 0)
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing fields are named", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/users", map[string]string{"name": "Alice"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeBody[map[string]string](t, resp)
		assert.Contains(t, body["error"], "email")
		assert.NotContains(t, body["error"], "name")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/users", strings.NewReader("{not json"))
		require.NoError(t, err)
		resp, err := env.srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/expenses", map[string]any{
			"partyId":     "p",
			"payerId":     "u",
			"description": "x",
			"amount":      0,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeBody[map[string]string](t, resp)
		assert.Contains(t, body["error"], "amount")
	})
}

func TestStatusMapping(t *testing.T) {
	env := newTestEnv(t)

	t.Run("duplicate email is 409", func(t *testing.T) {
		env.createUser(t, "Bob", "bob@example.com")
		resp := env.do(t, http.MethodPost, "/api/users", map[string]string{"name": "Bobby", "email": "bob@example.com"})
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown user is 404", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/users/no-such-id", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown party is 404", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/parties/no-such-id", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("expense against unknown party is 404", func(t *testing.T) {
		user := env.createUser(t, "Dana", "dana@example.com")
		resp := env.do(t, http.MethodPost, "/api/expenses", map[string]any{
			"partyId":     "no-such-party",
			"payerId":     user.ID,
			"description": "Orphan",
			"amount":      10,
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestStoreErrorMapping(t *testing.T) {
	srv := New(nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", storage.ErrNotFound, http.StatusNotFound},
		{"duplicate email", storage.ErrDuplicateEmail, http.StatusConflict},
		{"malformed aggregate", storage.ErrMalformedAggregate, http.StatusInternalServerError},
		{"unexpected failure", errors.New("disk unavailable"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/parties/p1", nil)

			// Repository errors arrive wrapped.
			srv.storeError(rec, req, fmt.Errorf("failed to get party aggregate: %w", tc.err))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestAuthenticationRequired(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.fail = true

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/parties"},
		{http.MethodPost, "/api/parties"},
		{http.MethodGet, "/api/parties/some-id"},
		{http.MethodPost, "/api/expenses"},
		{http.MethodPost, "/api/receipts"},
	}

	for _, p := range paths {
		resp := env.do(t, p.method, p.path, nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", p.method, p.path)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	env := newTestEnv(t)

	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")

	resp := env.do(t, http.MethodPost, "/api/parties", map[string]string{"ownerId": alice.ID, "name": "Flat"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	party := decodeBody[models.Party](t, resp)

	resp = env.do(t, http.MethodPost, "/api/expenses", map[string]any{
		"partyId":     party.ID,
		"payerId":     alice.ID,
		"description": "Dinner",
		"amount":      30,
		"participants": []map[string]any{
			{"userId": alice.ID, "share": 15},
			{"userId": bob.ID, "share": 15},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	expense := decodeBody[models.Expense](t, resp)
	require.NotEmpty(t, expense.ID)

	resp = env.do(t, http.MethodGet, "/api/expenses/"+expense.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[models.Expense](t, resp)
	assert.Len(t, got.Participants, 2)

	// Balances over the populated party: Bob owes Alice 15.
	resp = env.do(t, http.MethodGet, "/api/parties/"+party.ID+"/balances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balances := decodeBody[balancesResponse](t, resp)
	require.Len(t, balances.Settlements, 1)
	assert.Equal(t, bob.ID, balances.Settlements[0].FromUserID)
	assert.Equal(t, alice.ID, balances.Settlements[0].ToUserID)
	assert.InDelta(t, 15, balances.Settlements[0].Amount, 0.001)

	resp = env.do(t, http.MethodPut, "/api/expenses/"+expense.ID, map[string]any{
		"payerId":     bob.ID,
		"description": "Dinner and drinks",
		"amount":      40,
		"participants": []map[string]any{
			{"userId": alice.ID, "share": 20},
			{"userId": bob.ID, "share": 20},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[models.Expense](t, resp)
	assert.Equal(t, bob.ID, updated.PayerID)
	// The response reflects the persisted row: partyId and the creation
	// time survive even though the request carries neither.
	assert.Equal(t, party.ID, updated.PartyID)
	assert.Equal(t, expense.CreatedAt, updated.CreatedAt)
	assert.NotZero(t, updated.CreatedAt)

	resp = env.do(t, http.MethodDelete, "/api/expenses/"+expense.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/expenses/"+expense.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReceiptUpload(t *testing.T) {
	env := newTestEnv(t)

	alice := env.createUser(t, "Alice", "alice@example.com")
	resp := env.do(t, http.MethodPost, "/api/parties", map[string]string{"ownerId": alice.ID, "name": "Trip"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	party := decodeBody[models.Party](t, resp)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("partyId", party.ID))
	file, err := form.CreateFormFile("file", "dinner.jpg")
	require.NoError(t, err)
	_, err = file.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/receipts", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err = env.srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	result := decodeBody[receiptResponse](t, resp)
	assert.Equal(t, "img-1", result.BillImage.ID)
	assert.Equal(t, "Trattoria", result.Receipt.MerchantName)
	assert.Equal(t, party.ID, env.uploader.partyID)
	assert.Equal(t, "dinner.jpg", env.uploader.fileName)

	t.Run("unknown party surfaces as 404", func(t *testing.T) {
		env.uploader.err = fmt.Errorf("failed to record bill image: %w", storage.ErrNotFound)
		defer func() { env.uploader.err = nil }()

		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		require.NoError(t, form.WriteField("partyId", "no-such-party"))
		file, err := form.CreateFormFile("file", "x.jpg")
		require.NoError(t, err)
		file.Write([]byte("bytes"))
		require.NoError(t, form.Close())

		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/receipts", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", form.FormDataContentType())

		resp, err := env.srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("missing party id", func(t *testing.T) {
		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		file, err := form.CreateFormFile("file", "x.jpg")
		require.NoError(t, err)
		file.Write([]byte("bytes"))
		require.NoError(t, form.Close())

		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/receipts", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", form.FormDataContentType())

		resp, err := env.srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestUserLifecycle(t *testing.T) {
	env := newTestEnv(t)

	user := env.createUser(t, "Erin", "erin@example.com")

	resp := env.do(t, http.MethodPut, "/api/users/"+user.ID, map[string]string{"name": "Erin Updated", "email": "erin@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[models.User](t, resp)
	assert.Equal(t, "Erin Updated", updated.Name)
	// The response reflects the persisted row, not the request body.
	assert.Equal(t, user.CreatedAt, updated.CreatedAt)
	assert.NotZero(t, updated.CreatedAt)

	resp = env.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decodeBody[[]models.User](t, resp)
	assert.Len(t, users, 1)

	resp = env.do(t, http.MethodDelete, "/api/users/"+user.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/users/"+user.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
