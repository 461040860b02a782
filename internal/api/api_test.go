package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/api"
	"github.com/sengunthar/matrimony/internal/app"
	"github.com/sengunthar/matrimony/internal/auth"
	"github.com/sengunthar/matrimony/internal/config"
	"github.com/sengunthar/matrimony/internal/db"
	"github.com/sengunthar/matrimony/internal/db/dbtest"
	"github.com/sengunthar/matrimony/internal/logger"
	"github.com/sengunthar/matrimony/internal/realtime"
	"github.com/sengunthar/matrimony/internal/service/account"
	"github.com/sengunthar/matrimony/internal/service/match"
	"github.com/sengunthar/matrimony/internal/service/notify"
	"github.com/sengunthar/matrimony/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const clientOrigin = "http://client.test"

type testAPI struct {
	router *gin.Engine
	db     *gorm.DB
	hub    *realtime.Hub
	issuer *auth.Issuer
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()

	gdb := dbtest.Open(t)
	cfg := config.Load("")
	cfg.JWT.Secret = "api-test-secret"
	cfg.HTTP.CORSOrigins = []string{clientOrigin}

	appCtx := app.New(gdb, nil, logger.Discard(), cfg)
	store, err := storage.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	hub := realtime.NewHub(logger.Discard())
	t.Cleanup(hub.CloseAll)

	issuer := auth.NewIssuer(cfg.JWT.Secret)
	sink := notify.NewSink(appCtx, hub)
	router := api.NewRouter(appCtx, api.Deps{
		Accounts: account.NewService(appCtx, sink, store, auth.NewHasher(bcrypt.MinCost), issuer),
		Matches:  match.NewService(appCtx, sink, store),
		Sink:     sink,
		Hub:      hub,
		Issuer:   issuer,
		Store:    store,
	})

	_, err = db.SeedAdmin(gdb, "admin@test.com", "adminpass", "Admin")
	require.NoError(t, err)

	return &testAPI{router: router, db: gdb, hub: hub, issuer: issuer}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) signup(t *testing.T, fields map[string]string, photo []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if photo != nil {
		fw, err := mw.CreateFormFile("profile_photo", "me.jpg")
		require.NoError(t, err)
		_, err = fw.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) login(t *testing.T, path, email, password string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, path, "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	decode(t, w, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	decode(t, w, &out)
	return out.Error
}

func (a *testAPI) userID(t *testing.T, email string) uint64 {
	t.Helper()
	var u db.User
	require.NoError(t, a.db.Where("email = ?", email).First(&u).Error)
	return u.ID
}

func TestAPI_EndToEnd(t *testing.T) {
	a := setupAPI(t)

	w := a.signup(t, map[string]string{
		"name": "Arun", "email": "Arun@Test.com", "password": "pw-arun",
		"phone": "9000000001", "age": "29", "city": "Erode",
	}, []byte("jpeg"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Admin will verify within 2 days")

	w = a.signup(t, map[string]string{
		"name": "Bala", "email": "bala@test.com", "password": "pw-bala", "whatsapp": "9000000002",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.signup(t, map[string]string{"name": "Dup", "email": "bala@test.com", "password": "x"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// pending accounts cannot log in
	w = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "arun@test.com", "password": "pw-arun"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := a.login(t, "/api/admin/login", "admin@test.com", "adminpass")

	w = a.do(t, http.MethodGet, "/api/admin/pending", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []map[string]any
	decode(t, w, &pending)
	require.Len(t, pending, 2)
	assert.Equal(t, "arun@test.com", pending[0]["email"])
	assert.Equal(t, "pending", pending[0]["status"])

	arunID, balaID := a.userID(t, "arun@test.com"), a.userID(t, "bala@test.com")
	for _, id := range []uint64{arunID, balaID} {
		w = a.do(t, http.MethodPost, fmt.Sprintf("/api/admin/verify/%d", id), admin, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Contains(t, w.Body.String(), "User bala@test.com activated successfully")

	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/admin/verify/%d", balaID), admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	arun := a.login(t, "/api/auth/login", "arun@test.com", "pw-arun")
	bala := a.login(t, "/api/auth/login", "bala@test.com", "pw-bala")

	// browse
	w = a.do(t, http.MethodGet, "/api/profiles", bala, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cards []map[string]any
	decode(t, w, &cards)
	require.Len(t, cards, 1)
	assert.Equal(t, "Arun", cards[0]["name"])
	assert.EqualValues(t, 29, cards[0]["age"])
	photo, _ := cards[0]["profile_photo"].(string)
	require.True(t, strings.HasPrefix(photo, "/uploads/photos/"), photo)

	w = a.do(t, http.MethodGet, photo, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg", w.Body.String())

	// no relation yet
	w = a.do(t, http.MethodGet, fmt.Sprintf("/api/profile/%d", balaID), arun, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile map[string]any
	decode(t, w, &profile)
	assert.Equal(t, true, profile["can_send_request"])
	assert.Nil(t, profile["match_status"])
	assert.NotContains(t, profile, "contact_details")
	assert.NotContains(t, profile, "email")

	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/profile/%d/match-request", balaID), arun, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Match request sent successfully!")

	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/profile/%d/match-request", balaID), arun, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/profile/%d/match-request", arunID), arun, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// pending request discloses nothing
	w = a.do(t, http.MethodGet, fmt.Sprintf("/api/profile/%d", arunID), bala, nil)
	decode(t, w, &profile)
	assert.Equal(t, "pending", profile["match_status"])
	assert.NotContains(t, profile, "contact_details")

	w = a.do(t, http.MethodGet, "/api/match-requests", bala, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var incoming []map[string]any
	decode(t, w, &incoming)
	require.Len(t, incoming, 1)
	assert.Equal(t, "Arun", incoming[0]["sender_name"])
	requestID := uint64(incoming[0]["id"].(float64))

	// only the receiver may answer
	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/match-requests/%d/accept", requestID), arun, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/match-requests/%d/accept", requestID), bala, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Contact details shared via notifications.")

	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/match-requests/%d/accept", requestID), bala, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/match-requests/%d/reject", requestID), bala, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// matched: contacts disclosed both ways
	w = a.do(t, http.MethodGet, fmt.Sprintf("/api/profile/%d", balaID), arun, nil)
	decode(t, w, &profile)
	assert.Equal(t, "matched", profile["match_status"])
	assert.Equal(t, false, profile["can_send_request"])
	assert.Equal(t, map[string]any{"email": "bala@test.com", "whatsapp": "9000000002"}, profile["contact_details"])

	// notifications
	w = a.do(t, http.MethodGet, "/api/notifications", arun, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes []map[string]any
	decode(t, w, &notes)
	require.Len(t, notes, 2)
	assert.Equal(t, "match_accepted", notes[0]["type"])
	assert.Equal(t, "Great news! Bala accepted your match request. Contact: bala@test.com, WhatsApp: 9000000002", notes[0]["message"])
	assert.Equal(t, "account_approved", notes[1]["type"])
	assert.Equal(t, false, notes[0]["is_read"])

	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", uint64(notes[0]["id"].(float64))), arun, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = a.do(t, http.MethodGet, "/api/notifications/unread-count", arun, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())

	// someone else's notification is ignored
	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", uint64(notes[1]["id"].(float64))), bala, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, "/api/notifications/unread-count", arun, nil)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())
}

func TestAPI_Auth(t *testing.T) {
	a := setupAPI(t)
	member := dbtest.User(t, a.db, db.User{Email: "m@test.com"})
	pendingUser := dbtest.User(t, a.db, db.User{Email: "p@test.com", Status: db.UserPending})

	userToken, err := a.issuer.Issue(auth.User{UserID: member.ID, Email: member.Email}, time.Hour)
	require.NoError(t, err)
	pendingToken, err := a.issuer.Issue(auth.User{UserID: pendingUser.ID, Email: pendingUser.Email}, time.Hour)
	require.NoError(t, err)
	adminToken := a.login(t, "/api/admin/login", "admin@test.com", "adminpass")

	w := a.do(t, http.MethodGet, "/api/profiles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authorization required", errorOf(t, w))

	w = a.do(t, http.MethodGet, "/api/profiles", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodGet, "/api/admin/pending", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodGet, "/api/profiles", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// pending members reach their inbox but not the match routes
	w = a.do(t, http.MethodGet, "/api/profiles", pendingToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = a.do(t, http.MethodGet, "/api/notifications", pendingToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// a deleted account's token stops working
	require.NoError(t, a.db.Delete(&db.User{}, member.ID).Error)
	w = a.do(t, http.MethodGet, "/api/notifications", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@test.com", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = a.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{"email": "admin@test.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_BadInput(t *testing.T) {
	a := setupAPI(t)
	member := dbtest.User(t, a.db, db.User{Email: "m@test.com"})
	token, err := a.issuer.Issue(auth.User{UserID: member.ID, Email: member.Email}, time.Hour)
	require.NoError(t, err)

	w := a.do(t, http.MethodGet, "/api/profile/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid profile ID", errorOf(t, w))

	w = a.do(t, http.MethodGet, "/api/profile/9999", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodGet, "/api/profiles?page_token=%25%25", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/api/profiles?limit=ten", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.signup(t, map[string]string{"name": "N", "email": "n@test.com", "password": "pw", "age": "old"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.signup(t, map[string]string{"email": "n@test.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_BrowsePagination(t *testing.T) {
	a := setupAPI(t)
	viewer := dbtest.User(t, a.db, db.User{Email: "viewer@test.com"})
	for i := 0; i < 3; i++ {
		dbtest.User(t, a.db, db.User{Email: fmt.Sprintf("p%d@test.com", i)})
	}
	token, err := a.issuer.Issue(auth.User{UserID: viewer.ID, Email: viewer.Email}, time.Hour)
	require.NoError(t, err)

	w := a.do(t, http.MethodGet, "/api/profiles?limit=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var first []map[string]any
	decode(t, w, &first)
	assert.Len(t, first, 2)
	next := w.Header().Get("X-Next-Page-Token")
	require.NotEmpty(t, next)

	w = a.do(t, http.MethodGet, "/api/profiles?limit=2&page_token="+url.QueryEscape(next), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var second []map[string]any
	decode(t, w, &second)
	assert.Len(t, second, 1)
	assert.Empty(t, w.Header().Get("X-Next-Page-Token"))
}

func TestAPI_PublicRoutesAndCORS(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Server is running", w.Body.String())

	w = a.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"OK"`)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", clientOrigin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, clientOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPI_SocketReceivesNotifications(t *testing.T) {
	a := setupAPI(t)
	sender := dbtest.User(t, a.db, db.User{Name: "Sender", Email: "s@test.com"})
	receiver := dbtest.User(t, a.db, db.User{Email: "r@test.com"})

	senderToken, err := a.issuer.Issue(auth.User{UserID: sender.ID, Email: sender.Email}, time.Hour)
	require.NoError(t, err)
	receiverToken, err := a.issuer.Issue(auth.User{UserID: receiver.ID, Email: receiver.Email}, time.Hour)
	require.NoError(t, err)

	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + url.QueryEscape(receiverToken)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return a.hub.Connections(receiver.ID) == 1 }, time.Second, 10*time.Millisecond)

	w := a.do(t, http.MethodPost, fmt.Sprintf("/api/profile/%d/match-request", receiver.ID), senderToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg realtime.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "notification", msg.Type)
	require.NotNil(t, msg.Notification)
	assert.Equal(t, db.NotifyMatchRequest, msg.Notification.Type)
	assert.Equal(t, "Sender sent you a match request!", msg.Notification.Message)
}
