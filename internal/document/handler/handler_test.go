package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docuchain/docuchain-backend/internal/blobstore"
	"github.com/docuchain/docuchain-backend/internal/config"
	"github.com/docuchain/docuchain-backend/internal/document/repository"
	"github.com/docuchain/docuchain-backend/internal/document/service"
	"github.com/docuchain/docuchain-backend/internal/ledger"
	"github.com/docuchain/docuchain-backend/internal/models"
	"github.com/docuchain/docuchain-backend/internal/users"
	"github.com/docuchain/docuchain-backend/internal/wallet"
)

// userHeader lets each test request pick its authenticated caller, standing
// in for the real auth middleware.
const userHeader = "X-Test-User"

type testApp struct {
	router *gin.Engine
	alice  *models.User
	bob    *models.User
	carol  *models.User
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.Environment = "test"
	cfg.Upload.MaxBytes = config.MaxUploadBytes
	cfg.Upload.AllowedTypes = []string{"application/pdf", "text/plain"}

	deriver, err := wallet.NewDeriver("handler-test-secret", 32, 0)
	require.NoError(t, err)
	blob, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	userRepo := users.NewMemoryUserRepository()
	svc := service.New(repository.NewMemoryRepo(), userRepo, blob, ledger.NewMemLedger(deriver), deriver, false)

	app := &testApp{router: gin.New()}
	for _, u := range []struct {
		name  string
		email string
		dst   **models.User
	}{
		{"Alice", "alice@example.com", &app.alice},
		{"Bob", "bob@example.com", &app.bob},
		{"Carol", "carol@example.com", &app.carol},
	} {
		created, err := userRepo.Create(context.Background(), &models.User{Name: u.name, Email: u.email, PasswordHash: "x"})
		require.NoError(t, err)
		*u.dst = created
	}

	api := app.router.Group("/api")
	api.Use(func(c *gin.Context) {
		if uid := c.GetHeader(userHeader); uid != "" {
			c.Set("userID", uid)
		}
		c.Next()
	})
	NewDocumentHandler(svc, cfg).Register(api)
	return app
}

func (a *testApp) do(t *testing.T, as *models.User, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if as != nil {
		req.Header.Set(userHeader, as.ID.Hex())
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) doJSON(t *testing.T, as *models.User, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, as, method, path, bytes.NewBufferString(body), "application/json")
}

func multipartFile(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func (a *testApp) upload(t *testing.T, as *models.User, data []byte) string {
	t.Helper()
	body, ct := multipartFile(t, "notes.txt", "text/plain", data, nil)
	w := a.do(t, as, http.MethodPost, "/api/documents/upload", body, ct)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Document struct {
			ID string `json:"id"`
		} `json:"document"`
		TxHash string `json:"txHash"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Document.ID)
	require.NotEmpty(t, resp.TxHash)
	return resp.Document.ID
}

func TestUploadListDownload(t *testing.T) {
	app := newTestApp(t)
	id := app.upload(t, app.alice, []byte("hello handler"))

	w := app.do(t, app.alice, http.MethodGet, "/api/documents", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)

	w = app.do(t, app.alice, http.MethodGet, "/api/documents/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "encryptionKey")

	w = app.do(t, app.alice, http.MethodGet, "/api/documents/"+id+"/download", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "hello handler", w.Body.String())
	require.Contains(t, w.Header().Get("Content-Disposition"), `"notes.txt"`)
}

func TestUploadValidation(t *testing.T) {
	app := newTestApp(t)

	// no file part
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("title", "no file"))
	require.NoError(t, mw.Close())
	w := app.do(t, app.alice, http.MethodPost, "/api/documents/upload", buf, mw.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "message")

	// disallowed content type
	body, ct := multipartFile(t, "tool.exe", "application/x-msdownload", []byte{0x4d, 0x5a}, nil)
	w = app.do(t, app.alice, http.MethodPost, "/api/documents/upload", body, ct)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "not allowed")
}

func TestUploadRequiresAuth(t *testing.T) {
	app := newTestApp(t)
	body, ct := multipartFile(t, "x.txt", "text/plain", []byte("x"), nil)
	w := app.do(t, nil, http.MethodPost, "/api/documents/upload", body, ct)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestShareLifecycle(t *testing.T) {
	app := newTestApp(t)
	id := app.upload(t, app.alice, []byte("shared over http"))

	w := app.doJSON(t, app.alice, http.MethodPost, "/api/share/grant",
		fmt.Sprintf(`{"documentId":%q,"email":"bob@example.com","permission":"read"}`, id))
	require.Equal(t, http.StatusOK, w.Code)
	var grant struct {
		TxHash         string `json:"txHash"`
		GranteeAddress string `json:"granteeAddress"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &grant))
	require.NotEmpty(t, grant.TxHash)
	require.True(t, strings.HasPrefix(grant.GranteeAddress, "0x"))

	w = app.do(t, app.bob, http.MethodGet, "/api/share/check/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var check struct {
		Local   bool `json:"local"`
		OnChain bool `json:"onchain"`
		Granted bool `json:"granted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))
	require.True(t, check.Granted)

	w = app.do(t, app.carol, http.MethodGet, "/api/share/check/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))
	require.False(t, check.Granted)

	w = app.do(t, app.bob, http.MethodGet, "/api/documents/"+id+"/download", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "shared over http", w.Body.String())

	w = app.do(t, app.bob, http.MethodGet, "/api/share/my-shares", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var mine struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Equal(t, 1, mine.Count)

	w = app.doJSON(t, app.alice, http.MethodPost, "/api/share/revoke",
		fmt.Sprintf(`{"documentId":%q,"email":"bob@example.com"}`, id))
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, app.bob, http.MethodGet, "/api/documents/"+id+"/download", nil, "")
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestShareConflictsAndValidation(t *testing.T) {
	app := newTestApp(t)
	id := app.upload(t, app.alice, []byte("conflict doc"))

	grantBody := fmt.Sprintf(`{"documentId":%q,"email":"bob@example.com"}`, id)
	w := app.doJSON(t, app.alice, http.MethodPost, "/api/share/grant", grantBody)
	require.Equal(t, http.StatusOK, w.Code)
	w = app.doJSON(t, app.alice, http.MethodPost, "/api/share/grant", grantBody)
	require.Equal(t, http.StatusConflict, w.Code)

	w = app.doJSON(t, app.alice, http.MethodPost, "/api/share/grant",
		fmt.Sprintf(`{"documentId":%q,"email":"ghost@example.com"}`, id))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = app.doJSON(t, app.alice, http.MethodPost, "/api/share/grant",
		fmt.Sprintf(`{"documentId":%q,"email":"alice@example.com"}`, id))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = app.doJSON(t, app.alice, http.MethodPost, "/api/share/grant",
		fmt.Sprintf(`{"documentId":%q,"email":"bob@example.com","permission":"admin"}`, id))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "permission")

	w = app.doJSON(t, app.alice, http.MethodPost, "/api/share/revoke",
		fmt.Sprintf(`{"documentId":%q,"email":"carol@example.com"}`, id))
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestOwnerOnlyStatusCodes(t *testing.T) {
	app := newTestApp(t)
	id := app.upload(t, app.alice, []byte("owner only"))
	w := app.doJSON(t, app.alice, http.MethodPost, "/api/share/grant",
		fmt.Sprintf(`{"documentId":%q,"email":"bob@example.com"}`, id))
	require.Equal(t, http.StatusOK, w.Code)

	// shared user: forbidden; stranger: the document does not exist for them
	w = app.do(t, app.bob, http.MethodDelete, "/api/documents/"+id, nil, "")
	require.Equal(t, http.StatusForbidden, w.Code)
	w = app.do(t, app.carol, http.MethodDelete, "/api/documents/"+id, nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, app.alice, http.MethodDelete, "/api/documents/not-a-hex-id", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, app.alice, http.MethodDelete, "/api/documents/"+primitive.NewObjectID().Hex(), nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchGrantEndpoint(t *testing.T) {
	app := newTestApp(t)
	id := app.upload(t, app.alice, []byte("batch doc"))

	w := app.doJSON(t, app.alice, http.MethodPost, "/api/share/batch-grant",
		fmt.Sprintf(`{"documentId":%q,"emails":["bob@example.com","ghost@example.com"]}`, id))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Shared   []string `json:"shared"`
		NotFound []string `json:"notFound"`
		TxHash   string   `json:"txHash"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, []string{"bob@example.com"}, resp.Shared)
	require.Equal(t, []string{"ghost@example.com"}, resp.NotFound)
	require.NotEmpty(t, resp.TxHash)

	w = app.doJSON(t, app.alice, http.MethodPost, "/api/share/batch-grant",
		fmt.Sprintf(`{"documentId":%q,"emails":[]}`, id))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenameEndpoint(t *testing.T) {
	app := newTestApp(t)
	id := app.upload(t, app.alice, []byte("rename me"))

	w := app.doJSON(t, app.alice, http.MethodPut, "/api/documents/"+id, `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"Renamed"`)

	w = app.doJSON(t, app.alice, http.MethodPut, "/api/documents/"+id, `{"title":"   "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSharingInfoEndpoint(t *testing.T) {
	app := newTestApp(t)
	id := app.upload(t, app.alice, []byte("info doc"))
	w := app.doJSON(t, app.alice, http.MethodPost, "/api/share/grant",
		fmt.Sprintf(`{"documentId":%q,"email":"bob@example.com","permission":"write"}`, id))
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, app.alice, http.MethodGet, "/api/share/info/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var info struct {
		SharedWith []struct {
			Email      string `json:"email"`
			Permission string `json:"permission"`
		} `json:"sharedWith"`
		LedgerAccessors []string `json:"ledgerAccessors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Len(t, info.SharedWith, 1)
	require.Equal(t, "bob@example.com", info.SharedWith[0].Email)
	require.Equal(t, "write", info.SharedWith[0].Permission)
	require.Len(t, info.LedgerAccessors, 1)

	w = app.do(t, app.bob, http.MethodGet, "/api/share/info/"+id, nil, "")
	require.Equal(t, http.StatusForbidden, w.Code)
}
