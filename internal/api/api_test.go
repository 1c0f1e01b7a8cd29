package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/galerija/internal/auth"
	"github.com/erazemk/galerija/internal/blob"
	"github.com/erazemk/galerija/internal/catalog"
	"github.com/erazemk/galerija/internal/contact"
	"github.com/erazemk/galerija/internal/db"
	"github.com/erazemk/galerija/internal/model"
	"github.com/erazemk/galerija/internal/store"
)

const testJWTSecret = "test-secret"

type recordingSender struct {
	mu   sync.Mutex
	sent []contact.Message
}

func (s *recordingSender) Send(_ context.Context, m contact.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, m)
	return nil
}

type testEnv struct {
	server *httptest.Server
	token  string
	mail   *recordingSender
	cfg    Config
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)

	local, err := blob.NewDirStore(t.TempDir(), "/images")
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	mail := &recordingSender{}
	cfg := Config{
		DB:              database,
		JWTSecret:       testJWTSecret,
		Paintings:       catalog.NewService(database, auth.RoleAuthorizer{Minimum: model.RoleEditor}, nil),
		Blobs:           local,
		Local:           local,
		LegacyImageBase: "https://legacy.example.com/",
		Contact:         mail,
	}
	server := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(server.Close)

	// Create admin user.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin)

	return &testEnv{server: server, token: login(t, server.URL, "admin", "password"), mail: mail, cfg: cfg}
}

func login(t *testing.T, baseURL, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func do(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func paintingBody(title string) map[string]string {
	return map[string]string{
		"title":      title,
		"dimensions": "40x50 cm",
		"medium":     "Oil",
		"price":      "$1,200",
		"image":      "/images/" + strings.ToLower(title) + ".jpg",
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	if code := do(t, "POST", base+"/api/auth/logout", env.token, nil, nil); code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", code)
	}
	if code := do(t, "GET", base+"/api/users", env.token, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 with revoked token, got %d", code)
	}
}

func TestPaintingsAPIFlow(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	var x, y model.Painting
	if code := do(t, "POST", base+"/api/paintings", env.token, paintingBody("Y"), &y); code != http.StatusCreated {
		t.Fatalf("create Y: expected 201, got %d", code)
	}
	if code := do(t, "POST", base+"/api/paintings", env.token, paintingBody("X"), &x); code != http.StatusCreated {
		t.Fatalf("create X: expected 201, got %d", code)
	}

	// Public listing, newest first.
	var list []model.Painting
	if code := do(t, "GET", base+"/api/paintings", "", nil, &list); code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", code)
	}
	if len(list) != 2 || list[0].ID != x.ID || list[0].Order != 0 || list[1].Order != 1 {
		t.Fatalf("unexpected list %+v", list)
	}

	// Move X down.
	swap := []map[string]any{{"id": x.ID, "order": 1}, {"id": y.ID, "order": 0}}
	if code := do(t, "PATCH", base+"/api/paintings/order", env.token, swap, nil); code != http.StatusOK {
		t.Fatalf("reorder: expected 200, got %d", code)
	}
	do(t, "GET", base+"/api/paintings", "", nil, &list)
	if list[0].ID != y.ID || list[1].ID != x.ID {
		t.Errorf("expected Y before X after swap")
	}

	// Partial update.
	var updated model.Painting
	code := do(t, "PATCH", base+"/api/paintings/"+x.ID, env.token, map[string]string{"notes": "sold"}, &updated)
	if code != http.StatusOK || updated.Notes != "sold" || updated.Title != "X" {
		t.Errorf("update: got %d %+v", code, updated)
	}

	// Delete, then the painting is gone.
	if code := do(t, "DELETE", base+"/api/paintings/"+x.ID, env.token, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", code)
	}
	if code := do(t, "GET", base+"/api/paintings/"+x.ID, "", nil, nil); code != http.StatusNotFound {
		t.Errorf("get deleted: expected 404, got %d", code)
	}
}

func TestCreateMissingFieldReturnsField(t *testing.T) {
	env := setupTestServer(t)

	body := paintingBody("A")
	delete(body, "price")
	var resp errorBody
	code := do(t, "POST", env.server.URL+"/api/paintings", env.token, body, &resp)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if resp.Field != "price" {
		t.Errorf("expected field price, got %q", resp.Field)
	}
}

func TestReorderUnknownIDConflict(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	var y model.Painting
	do(t, "POST", base+"/api/paintings", env.token, paintingBody("Y"), &y)

	batch := []map[string]any{{"id": y.ID, "order": 5}, {"id": "nonexistent", "order": 6}}
	var resp errorBody
	if code := do(t, "PATCH", base+"/api/paintings/order", env.token, batch, &resp); code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	if len(resp.Failed) != 1 || resp.Failed[0] != "nonexistent" {
		t.Errorf("expected failed [nonexistent], got %v", resp.Failed)
	}

	var got model.Painting
	do(t, "GET", base+"/api/paintings/"+y.ID, "", nil, &got)
	if got.Order != 0 {
		t.Errorf("expected Y's order unchanged, got %d", got.Order)
	}
}

func TestReorderRejectsNonIntegerOrder(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	var y model.Painting
	do(t, "POST", base+"/api/paintings", env.token, paintingBody("Y"), &y)

	for _, order := range []any{1.5, "2", nil} {
		batch := []map[string]any{{"id": y.ID, "order": order}}
		if code := do(t, "PATCH", base+"/api/paintings/order", env.token, batch, nil); code != http.StatusBadRequest {
			t.Errorf("order %v: expected 400, got %d", order, code)
		}
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	var a, b model.Painting
	do(t, "POST", base+"/api/paintings", env.token, paintingBody("A"), &a)
	do(t, "POST", base+"/api/paintings", env.token, paintingBody("B"), &b)
	do(t, "PATCH", base+"/api/paintings/order", env.token, []map[string]any{{"id": a.ID, "order": 7}}, nil)

	var resp orderUpdatesResponse
	if code := do(t, "POST", base+"/api/paintings/normalize", env.token, nil, &resp); code != http.StatusOK {
		t.Fatalf("normalize: expected 200, got %d", code)
	}
	want := []model.OrderUpdate{{ID: b.ID, Order: 0}, {ID: a.ID, Order: 1}}
	if len(resp.Updated) != 2 || resp.Updated[0] != want[0] || resp.Updated[1] != want[1] {
		t.Errorf("expected %v, got %v", want, resp.Updated)
	}
}

func TestUnauthenticatedMutation(t *testing.T) {
	env := setupTestServer(t)

	if code := do(t, "POST", env.server.URL+"/api/paintings", "", paintingBody("A"), nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated create, got %d", code)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("viewerpass"), bcrypt.MinCost)
	store.CreateUser(ctx, env.cfg.DB, "visitor", string(hash), model.RoleViewer)
	viewerToken := login(t, base, "visitor", "viewerpass")

	if code := do(t, "POST", base+"/api/paintings", viewerToken, paintingBody("A"), nil); code != http.StatusForbidden {
		t.Errorf("expected 403 for viewer creating painting, got %d", code)
	}
	if code := do(t, "GET", base+"/api/users", viewerToken, nil, nil); code != http.StatusForbidden {
		t.Errorf("expected 403 for viewer listing users, got %d", code)
	}
	if code := do(t, "GET", base+"/api/paintings", viewerToken, nil, nil); code != http.StatusOK {
		t.Errorf("expected 200 for viewer listing paintings, got %d", code)
	}
}

func TestUsersAPI(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	body := map[string]string{"username": "painter", "password": "longenough", "role": model.RoleEditor}
	var created model.User
	if code := do(t, "POST", base+"/api/users", env.token, body, &created); code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d", code)
	}
	if code := do(t, "POST", base+"/api/users", env.token, body, nil); code != http.StatusConflict {
		t.Errorf("duplicate user: expected 409, got %d", code)
	}

	body["role"] = "owner"
	body["username"] = "other"
	if code := do(t, "POST", base+"/api/users", env.token, body, nil); code != http.StatusBadRequest {
		t.Errorf("invalid role: expected 400, got %d", code)
	}

	var users []model.User
	do(t, "GET", base+"/api/users", env.token, nil, &users)
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	editorToken := login(t, base, "painter", "longenough")
	if code := do(t, "POST", base+"/api/paintings", editorToken, paintingBody("A"), nil); code != http.StatusCreated {
		t.Errorf("editor create: expected 201, got %d", code)
	}
}

func TestRoleChangeAppliesToIssuedToken(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	body := map[string]string{"username": "painter", "password": "longenough", "role": model.RoleViewer}
	var created model.User
	if code := do(t, "POST", base+"/api/users", env.token, body, &created); code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d", code)
	}
	token := login(t, base, "painter", "longenough")

	if code := do(t, "POST", base+"/api/paintings", token, paintingBody("A"), nil); code != http.StatusForbidden {
		t.Fatalf("viewer create: expected 403, got %d", code)
	}

	roleURL := fmt.Sprintf("%s/api/users/%d/role", base, created.ID)
	var updated model.User
	if code := do(t, "PUT", roleURL, env.token, map[string]string{"role": model.RoleEditor}, &updated); code != http.StatusOK {
		t.Fatalf("update role: expected 200, got %d", code)
	}
	if updated.Role != model.RoleEditor {
		t.Errorf("expected editor, got %q", updated.Role)
	}

	if code := do(t, "POST", base+"/api/paintings", token, paintingBody("A"), nil); code != http.StatusCreated {
		t.Errorf("promoted create with old token: expected 201, got %d", code)
	}

	if code := do(t, "PUT", roleURL, env.token, map[string]string{"role": "owner"}, nil); code != http.StatusBadRequest {
		t.Errorf("invalid role: expected 400, got %d", code)
	}
	if code := do(t, "PUT", base+"/api/users/999/role", env.token, map[string]string{"role": model.RoleViewer}, nil); code != http.StatusNotFound {
		t.Errorf("missing user: expected 404, got %d", code)
	}
	if code := do(t, "PUT", roleURL, token, map[string]string{"role": model.RoleAdmin}, nil); code != http.StatusForbidden {
		t.Errorf("editor changing roles: expected 403, got %d", code)
	}

	var admins []model.User
	do(t, "GET", base+"/api/users", env.token, nil, &admins)
	for _, u := range admins {
		if u.Username != "admin" {
			continue
		}
		selfURL := fmt.Sprintf("%s/api/users/%d/role", base, u.ID)
		if code := do(t, "PUT", selfURL, env.token, map[string]string{"role": model.RoleViewer}, nil); code != http.StatusBadRequest {
			t.Errorf("own role change: expected 400, got %d", code)
		}
	}
}

func TestDeletedUserTokenRejected(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	body := map[string]string{"username": "painter", "password": "longenough", "role": model.RoleEditor}
	var created model.User
	if code := do(t, "POST", base+"/api/users", env.token, body, &created); code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d", code)
	}
	token := login(t, base, "painter", "longenough")

	userURL := fmt.Sprintf("%s/api/users/%d", base, created.ID)
	if code := do(t, "DELETE", userURL, env.token, nil, nil); code != http.StatusOK {
		t.Fatalf("delete user: expected 200, got %d", code)
	}
	if code := do(t, "DELETE", userURL, env.token, nil, nil); code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", code)
	}

	if code := do(t, "GET", base+"/api/paintings", token, nil, nil); code != http.StatusOK {
		t.Errorf("public list: expected 200, got %d", code)
	}
	if code := do(t, "POST", base+"/api/paintings", token, paintingBody("A"), nil); code != http.StatusUnauthorized {
		t.Errorf("deleted user's token: expected 401, got %d", code)
	}
}

func TestUploadAndServeImage(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for x := 0; x < 20; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, color.RGBA{0, 128, 255, 255})
		}
	}
	var pngData bytes.Buffer
	png.Encode(&pngData, img)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "sky.png")
	part.Write(pngData.Bytes())
	mw.Close()

	req, _ := http.NewRequest("POST", base+"/api/upload", &body)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	var uploaded uploadResponse
	json.NewDecoder(resp.Body).Decode(&uploaded)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(uploaded.URL, "/images/paintings/") || uploaded.Size != int64(pngData.Len()) {
		t.Fatalf("unexpected upload response %+v", uploaded)
	}
	if uploaded.Width != 20 || uploaded.Height != 10 {
		t.Errorf("unexpected dimensions %dx%d", uploaded.Width, uploaded.Height)
	}

	resp, err = http.Get(base + uploaded.URL)
	if err != nil {
		t.Fatalf("fetching image: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("expected stored jpeg, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	env := setupTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	part.Write([]byte("just some text"))
	mw.Close()

	req, _ := http.NewRequest("POST", env.server.URL+"/api/upload", &body)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLegacyImageRedirect(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	do(t, "POST", base+"/api/paintings", env.token, paintingBody("Old"), nil)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(base + "/images/old.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://legacy.example.com/old.jpg" {
		t.Errorf("unexpected redirect %q", loc)
	}

	resp, _ = client.Get(base + "/images/unknown.jpg")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown image, got %d", resp.StatusCode)
	}
}

func TestContactEndpoint(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	msg := map[string]string{"name": "Ana", "email": "ana@example.com", "message": "Is it for sale?"}
	if code := do(t, "POST", base+"/api/contact", "", msg, nil); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(env.mail.sent) != 1 || env.mail.sent[0].Name != "Ana" {
		t.Errorf("expected message delivered, got %+v", env.mail.sent)
	}

	msg["email"] = "nope"
	if code := do(t, "POST", base+"/api/contact", "", msg, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad email, got %d", code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t)

	if code := do(t, "GET", env.server.URL+"/healthz", "", nil, nil); code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", code)
	}
	resp, err := http.Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics: expected 200, got %d", resp.StatusCode)
	}
}
