package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorrisk/internal/auth"
	"vendorrisk/internal/conditional"
	"vendorrisk/internal/files"
	"vendorrisk/internal/freshness"
	"vendorrisk/internal/portal"
)

type testEnv struct {
	t        *testing.T
	srv      *Server
	svc      *portal.Service
	store    *portal.MemoryStore
	issuer   *auth.Issuer
	registry *freshness.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := portal.NewMemoryStore()
	registry := freshness.New(nil)
	t.Cleanup(func() { _ = registry.Close() })

	dir := t.TempDir()
	fileStore, err := files.NewLocalStore(dir, UploadsPath)
	require.NoError(t, err)

	svc := portal.NewService(store, registry, fileStore)
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	responses, err := conditional.NewResponseCache(64)
	require.NoError(t, err)

	srv := New(Deps{
		Service:   svc,
		Auth:      auth.New(issuer, store),
		Registry:  registry,
		Responses: responses,
	}, &Config{UploadsDir: dir, MetricsEnabled: true})

	return &testEnv{t: t, srv: srv, svc: svc, store: store, issuer: issuer, registry: registry}
}

// user signs up through the service and approves the account.
func (e *testEnv) user(name string, role portal.Role, clientID string) (*portal.User, string) {
	e.t.Helper()
	ctx := context.Background()
	hash, err := auth.HashPassword("password")
	require.NoError(e.t, err)
	u, err := e.svc.Signup(ctx, portal.SignupInput{
		Name: name, Email: name + "@example.com", Role: role, ClientID: clientID,
	}, hash)
	require.NoError(e.t, err)
	u, err = e.svc.SetVerification(ctx, u.ID, portal.ActionApprove)
	require.NoError(e.t, err)
	token, err := e.issuer.Issue(u.ID, u.Role)
	require.NoError(e.t, err)
	return u, token
}

func (e *testEnv) do(method, target, token string, body io.Reader, contentType string, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(target, token string, headers ...string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, target, token, nil, "", headers...)
}

func (e *testEnv) sendJSON(method, target, token string, payload any) *httptest.ResponseRecorder {
	e.t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(e.t, err)
	return e.do(method, target, token, bytes.NewReader(body), "application/json")
}

func (e *testEnv) submit(token string, fields map[string]string, fileName string, content []byte) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(e.t, err)
		_, err = part.Write(content)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())
	return e.do(http.MethodPost, "/api/vendor/questionnaire", token, &buf, w.FormDataContentType())
}

type envelope struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
	LastUpdated int64           `json:"lastUpdated"`
	Error       string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get("/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = e.do(http.MethodGet, "/health", "", nil, "", echo.HeaderXRequestID, "trace-1")
	assert.Equal(t, "trace-1", rec.Header().Get(echo.HeaderXRequestID))
}

func TestReady(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get("/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	down := New(Deps{
		Registry: e.registry,
		Ready:    func(context.Context) error { return errors.New("connection refused") },
	}, nil)
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get("/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get("/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Route not found", env.Error)
}

func TestSignupAndLogin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.sendJSON(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Acme", "email": "ops@acme.test", "password": "hunter22", "role": "CLIENT",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "hunter22")

	rec = e.sendJSON(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Acme", "email": "OPS@acme.test", "password": "x", "role": "CLIENT",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already in use", decode(t, rec).Error)

	rec = e.sendJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ops@acme.test", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		Token string `json:"token"`
		User  struct {
			Role               string `json:"role"`
			VerificationStatus string `json:"verificationStatus"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &login))
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "CLIENT", login.User.Role)
	assert.Equal(t, "PENDING", login.User.VerificationStatus)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, login.Token, cookie.Value)

	rec = e.sendJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ops@acme.test", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleEnforcement(t *testing.T) {
	e := newTestEnv(t)
	_, vendorToken := e.user("vendor", portal.RoleVendor, "")

	rec := e.get("/api/company/users", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized - No token provided", decode(t, rec).Error)

	rec = e.get("/api/company/users", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.get("/api/company/users", vendorToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden - Access denied", decode(t, rec).Error)

	rec = e.get("/api/shared/vendor-summary/whatever", vendorToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCachedRead_NotModifiedUntilWrite(t *testing.T) {
	e := newTestEnv(t)
	_, vendorToken := e.user("vendor", portal.RoleVendor, "")

	rec := e.get("/api/vendor/questionnaire", vendorToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode(t, rec)
	require.NotZero(t, first.LastUpdated)
	assert.JSONEq(t, `[]`, string(first.Data))

	stamp := strconv.FormatInt(first.LastUpdated, 10)
	rec = e.get("/api/vendor/questionnaire?timestamp="+stamp, vendorToken)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = e.submit(vendorToken, map[string]string{
		"questionKey": "q1", "answerType": "NO_COMMENT", "comment": "not yet",
	}, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Questionnaire answer created successfully.", decode(t, rec).Message)

	rec = e.get("/api/vendor/questionnaire?timestamp="+stamp, vendorToken)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode(t, rec)
	assert.Greater(t, second.LastUpdated, first.LastUpdated)
	assert.Contains(t, string(second.Data), `"questionKey":"q1"`)

	rec = e.get("/api/vendor/questionnaire?refresh=true&timestamp="+strconv.FormatInt(second.LastUpdated, 10), vendorToken)
	assert.Equal(t, http.StatusOK, rec.Code, "refresh bypasses the timestamp check")
}

func TestSubmitAnswer_FileUploadServedAndSigned(t *testing.T) {
	e := newTestEnv(t)
	client, clientToken := e.user("client", portal.RoleClient, "")
	vendor, vendorToken := e.user("vendor", portal.RoleVendor, client.ID)

	rec := e.submit(vendorToken, map[string]string{"questionKey": "q2", "answerType": "YES_FILE"},
		"policy v2.gif", []byte("GIF89a"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only PDF, JPEG, and PNG files are allowed", decode(t, rec).Error)

	rec = e.submit(vendorToken, map[string]string{"questionKey": "q2", "answerType": "YES_FILE"}, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File is required for YES_FILE answers.", decode(t, rec).Error)

	rec = e.submit(vendorToken, map[string]string{"questionKey": "q2", "answerType": "YES_FILE"},
		"policy v2.pdf", []byte("%PDF-1.7"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	target := "/api/shared/vendor/" + vendor.ID + "/answers"
	rec = e.get(target, clientToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var answers portal.VendorAnswers
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &answers))
	require.Len(t, answers.Answers, 1)
	require.NotNil(t, answers.Answers[0].FileURL)
	fileURL := *answers.Answers[0].FileURL
	assert.True(t, strings.HasPrefix(fileURL, UploadsPath+"/"), fileURL)
	assert.True(t, strings.HasSuffix(fileURL, "-policy_v2.pdf"), fileURL)

	rec = e.get(fileURL, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.7", rec.Body.String())

	rec = e.get(target, clientToken, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	_, otherToken := e.user("other", portal.RoleClient, "")
	rec = e.get(target, otherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied", decode(t, rec).Error)
}

func TestUpdateAndDeleteAnswer(t *testing.T) {
	e := newTestEnv(t)
	_, vendorToken := e.user("vendor", portal.RoleVendor, "")
	_, otherToken := e.user("other", portal.RoleVendor, "")

	rec := e.submit(vendorToken, map[string]string{"questionKey": "q1", "answerType": "NO_COMMENT", "comment": "a"}, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var a portal.Answer
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &a))

	rec = e.sendJSON(http.MethodPatch, "/api/vendor/questionnaire/"+a.ID, otherToken, map[string]string{"comment": "b"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized access.", decode(t, rec).Error)

	rec = e.sendJSON(http.MethodPatch, "/api/vendor/questionnaire/"+a.ID, vendorToken, map[string]string{"comment": "b"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(decode(t, rec).Data), `"comment":"b"`)

	rec = e.do(http.MethodDelete, "/api/vendor/questionnaire/"+a.ID, vendorToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Questionnaire deleted successfully.", decode(t, rec).Message)
}

func TestClientViews(t *testing.T) {
	e := newTestEnv(t)
	client, clientToken := e.user("client", portal.RoleClient, "")
	_, _ = e.user("alpha", portal.RoleVendor, client.ID)
	_, _ = e.user("beta", portal.RoleVendor, client.ID)

	rec := e.get("/api/client/vendors", clientToken)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.NotZero(t, env.LastUpdated)
	var all []portal.ClientVendor
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 2)

	rec = e.get("/api/client/vendors?name=ALP", clientToken)
	require.Equal(t, http.StatusOK, rec.Code)
	env = decode(t, rec)
	assert.Zero(t, env.LastUpdated, "filtered lists are not cached")
	var filtered []portal.ClientVendor
	require.NoError(t, json.Unmarshal(env.Data, &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "alpha", filtered[0].Name)

	rec = e.get("/api/client/dashboard/stats", clientToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalVendors":2,"completedQuestionnaires":0,"summariesUploaded":0}`, string(decode(t, rec).Data))
}

func TestCompanyFlow(t *testing.T) {
	e := newTestEnv(t)
	_, companyToken := e.user("company", portal.RoleCompany, "")
	client, clientToken := e.user("client", portal.RoleClient, "")
	vendor, _ := e.user("vendor", portal.RoleVendor, client.ID)

	rec := e.sendJSON(http.MethodPatch, "/api/company/approve/"+vendor.ID, companyToken, map[string]string{"action": "MAYBE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Action must be APPROVE or REJECT", decode(t, rec).Error)

	rec = e.get("/api/shared/vendor-summary/"+vendor.ID, clientToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "null", string(decode(t, rec).Data))

	rec = e.sendJSON(http.MethodPost, "/api/company/summary/upload", companyToken, map[string]string{
		"vendorId": vendor.ID, "content": "Low risk.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Summary uploaded successfully", decode(t, rec).Message)

	rec = e.get("/api/shared/vendor-summary/"+vendor.ID, clientToken)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Contains(t, string(env.Data), `"content":"Low risk."`)
	stamp := strconv.FormatInt(env.LastUpdated, 10)

	rec = e.get("/api/shared/vendor-summary/"+vendor.ID+"?timestamp="+stamp, clientToken)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = e.sendJSON(http.MethodPatch, "/api/company/approve/"+vendor.ID, companyToken, map[string]string{"action": "REJECT"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User rejected successfully.", decode(t, rec).Message)

	rec = e.get("/api/shared/vendor-summary/"+vendor.ID+"?timestamp="+stamp, clientToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Vendor not verified.", decode(t, rec).Error)

	rec = e.get("/api/company/stats", companyToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"verifiedClients":1,"verifiedVendors":0,"pendingUsers":0,"totalSummaries":1}`, string(decode(t, rec).Data))

	rec = e.get("/api/company/client/"+client.ID, companyToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), vendor.ID)

	rec = e.do(http.MethodDelete, "/api/company/delete-user/"+vendor.ID, companyToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodDelete, "/api/company/delete-user/"+vendor.ID, companyToken, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decode(t, rec).Error)
}

func TestSetClientRefreshesClientViews(t *testing.T) {
	e := newTestEnv(t)
	client, clientToken := e.user("client", portal.RoleClient, "")
	_, vendorToken := e.user("vendor", portal.RoleVendor, "")

	rec := e.get("/api/client/client-vendors", clientToken)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.JSONEq(t, `[]`, string(env.Data))
	stamp := strconv.FormatInt(env.LastUpdated, 10)

	rec = e.get("/api/shared/clients", vendorToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), client.ID)

	rec = e.sendJSON(http.MethodPatch, "/api/vendor/set-client", vendorToken, map[string]string{"clientId": "missing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid client", decode(t, rec).Error)

	rec = e.sendJSON(http.MethodPatch, "/api/vendor/set-client", vendorToken, map[string]string{"clientId": client.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.get("/api/client/client-vendors?timestamp="+stamp, clientToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"name":"vendor"`)
}

func TestQuestionnaireStatus(t *testing.T) {
	e := newTestEnv(t)
	_, companyToken := e.user("company", portal.RoleCompany, "")
	vendor, vendorToken := e.user("vendor", portal.RoleVendor, "")

	rec := e.get("/api/shared/questionnaire-status", companyToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "vendorId is required", decode(t, rec).Error)

	rec = e.submit(vendorToken, map[string]string{"questionKey": "q1", "answerType": "NO_COMMENT", "comment": "n/a"}, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.get("/api/shared/questionnaire-status?vendorId="+vendor.ID, companyToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status portal.QuestionnaireStatusView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &status))
	assert.Equal(t, 1, status.Answered)
	assert.Equal(t, 20, status.CompletionPercent)

	rec = e.get("/api/shared/questionnaire-status", vendorToken)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFileURL(t *testing.T) {
	e := newTestEnv(t)
	_, companyToken := e.user("company", portal.RoleCompany, "")

	rec := e.get("/api/company/file-url/1700000000000-report.pdf", companyToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"/api/uploads/1700000000000-report.pdf"}`, string(decode(t, rec).Data))
}

func TestCompanyUserTables_FollowQuestionnaireAndClient(t *testing.T) {
	e := newTestEnv(t)
	_, companyToken := e.user("company", portal.RoleCompany, "")
	client, _ := e.user("client", portal.RoleClient, "")
	vendor, vendorToken := e.user("vendor", portal.RoleVendor, "")

	statusOf := func(rec *httptest.ResponseRecorder, id string) string {
		t.Helper()
		var users []portal.User
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &users))
		for _, u := range users {
			if u.ID == id {
				return u.QuestionnaireStatus
			}
		}
		t.Fatalf("user %s not listed", id)
		return ""
	}

	rec := e.get("/api/company/users", companyToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, portal.QuestionnairePending, statusOf(rec, vendor.ID))
	stamp := strconv.FormatInt(decode(t, rec).LastUpdated, 10)

	for _, q := range portal.Questions {
		rec = e.submit(vendorToken, map[string]string{"questionKey": q.Key, "answerType": "NO_COMMENT", "comment": "n/a"}, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = e.get("/api/company/users?timestamp="+stamp, companyToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, portal.QuestionnaireCompleted, statusOf(rec, vendor.ID))

	rec = e.get("/api/company/users", companyToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, portal.QuestionnaireCompleted, statusOf(rec, vendor.ID))

	// An unverified vendor can still pick its client.
	hash, err := auth.HashPassword("password")
	require.NoError(t, err)
	pending, err := e.svc.Signup(context.Background(), portal.SignupInput{
		Name: "newcomer", Email: "newcomer@example.com", Role: portal.RoleVendor,
	}, hash)
	require.NoError(t, err)
	pendingToken, err := e.issuer.Issue(pending.ID, pending.Role)
	require.NoError(t, err)

	rec = e.get("/api/company/pending-users", companyToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(decode(t, rec).Data), client.ID)
	stamp = strconv.FormatInt(decode(t, rec).LastUpdated, 10)

	rec = e.sendJSON(http.MethodPatch, "/api/vendor/set-client", pendingToken, map[string]string{"clientId": client.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.get("/api/company/pending-users?timestamp="+stamp, companyToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"clientId":"`+client.ID+`"`)
}
