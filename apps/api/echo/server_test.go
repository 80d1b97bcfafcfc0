package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/usafiri/core"
	"github.com/edusuite/usafiri/core/student"
	"github.com/edusuite/usafiri/core/transport"
	"github.com/edusuite/usafiri/core/user"
	emailsvc "github.com/edusuite/usafiri/services/email"
	logsvc "github.com/edusuite/usafiri/services/logger"
	gormrepos "github.com/edusuite/usafiri/storage/database/gorm"
	testutil "github.com/edusuite/usafiri/tests"
)

type testEnv struct {
	server  Server
	conf    *core.Config
	usrRepo user.Repository
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := testutil.NewTestConfig()
	db := testutil.PrepareDB(t)

	usrRepo := gormrepos.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	stdSvc := student.NewService(gormrepos.NewStudentRepository(db))
	trpSvc := transport.NewService(gormrepos.NewTransportRepository(db))

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	transport.InitValidators(validate, translator)

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	server := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		UserSvc:      usrSvc,
		StudentSvc:   stdSvc,
		TransportSvc: trpSvc,
		Validate:     validate,
		Translator:   translator,
	})
	return &testEnv{server: server, conf: conf, usrRepo: usrRepo, mailSvc: mailSvc}
}

func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()

	ja := newJWTAuth(env.conf)
	token, err := ja.GenerateToken(ja.GetUserClaims(usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "decoding envelope (body: %s)", rec.Body.String())
	return resp
}

var linkParamsRe = regexp.MustCompile(`uid=([\w\-]+)&token=([\w\-]+)`)

func Test_registrationFlow(t *testing.T) {
	env := setup(t)

	// register
	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"name":     "John Doe",
		"email":    "john@test.test",
		"password": "S3cur3!pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register code = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if resp := decodeEnvelope(t, rec); !resp.Success {
		t.Errorf("register success = false, message: %s", resp.Message)
	}

	// login blocked until verified
	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"email": "john@test.test", "password": "S3cur3!pass",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unverified login code = %d, want %d", rec.Code, http.StatusForbidden)
	}

	// extract uid & token from the verification email
	sent := env.mailSvc.SentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent emails = %d, want 1", len(sent))
	}
	match := linkParamsRe.FindStringSubmatch(sent[0].TextContent)
	if match == nil {
		t.Fatalf("no verification link in email: %s", sent[0].TextContent)
	}

	// verify email
	rec = env.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]interface{}{
		"uid": match[1], "token": match[2],
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-email code = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	// verifying twice fails
	rec = env.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]interface{}{
		"uid": match[1], "token": match[2],
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("second verify-email code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	// login now works and sets the refresh cookie
	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"email": "john@test.test", "password": "S3cur3!pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login code = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var loginData struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
	resp := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(raw, &loginData); err != nil {
		t.Fatalf("decoding login data failed: %v", err)
	}
	if loginData.Token == "" {
		t.Error("login returned no token")
	}
	var cookieSet bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName && c.HttpOnly && c.Value != "" {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Error("login did not set the HttpOnly refresh cookie")
	}

	// wrong password
	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"email": "john@test.test", "password": "Wr0ng!pass",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad login code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	// regular users cannot reach admin endpoints
	rec = env.do(t, http.MethodGet, "/api/v1/students", loginData.Token, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student list as USER code = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func Test_passwordResetFlow(t *testing.T) {
	env := setup(t)

	testutil.CreateUser(t, env.usrRepo, "Resetter", "reset@test.test", "S3cur3!pass", user.RoleUser, true)

	// unknown emails get the same neutral answer
	rec := env.do(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]interface{}{
		"email": "ghost@test.test",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("forgot-password (unknown) code = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(env.mailSvc.SentMessages()) != 0 {
		t.Error("unknown email must not trigger a reset email")
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]interface{}{
		"email": "reset@test.test",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot-password code = %d, want %d", rec.Code, http.StatusOK)
	}
	sent := env.mailSvc.SentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent emails = %d, want 1", len(sent))
	}
	match := linkParamsRe.FindStringSubmatch(sent[0].TextContent)
	if match == nil {
		t.Fatalf("no reset link in email: %s", sent[0].TextContent)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/reset-password", "", map[string]interface{}{
		"uid": match[1], "token": match[2], "password": "N3w!Secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset-password code = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	// token is single-use: the password change invalidated it
	rec = env.do(t, http.MethodPost, "/api/v1/auth/reset-password", "", map[string]interface{}{
		"uid": match[1], "token": match[2], "password": "An0ther!pass",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reused reset token code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	// new password works
	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"email": "reset@test.test", "password": "N3w!Secret",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func Test_transportAllocationFlow(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.test", "S3cur3!pass", user.RoleAdmin, true)
	token := env.token(t, admin)

	created := func(t *testing.T, path string, body interface{}) map[string]interface{} {
		t.Helper()
		rec := env.do(t, http.MethodPost, path, token, body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("POST %s code = %d, want %d (body: %s)", path, rec.Code, http.StatusCreated, rec.Body.String())
		}
		data, _ := decodeEnvelope(t, rec).Data.(map[string]interface{})
		return data
	}

	std := created(t, "/api/v1/students", map[string]interface{}{
		"name": "Amina", "rollNo": "R-100", "grade": "6",
	})
	vehicle := created(t, "/api/v1/transport/vehicles", map[string]interface{}{
		"vehicleNumber": "KCA 100A", "driverName": "Driver", "contactNumber": "0700000000", "capacity": 30,
	})
	fee := created(t, "/api/v1/transport/fees", map[string]interface{}{
		"type": "MONTHLY", "amount": 120.5,
	})
	pickup := created(t, "/api/v1/transport/pickup-points", map[string]interface{}{
		"name": "Market", "address": "Main St",
	})
	route := created(t, "/api/v1/transport/routes", map[string]interface{}{
		"name": "North", "startPoint": "A", "endPoint": "B",
		"transportFeeId": fee["id"],
		"stops": []map[string]interface{}{
			{"pickupPointId": pickup["id"], "sequenceOrder": 1},
		},
	})

	created(t, "/api/v1/transport/routes/assign-vehicle", map[string]interface{}{
		"vehicleId": vehicle["id"], "routeId": route["id"],
	})

	alloc := map[string]interface{}{
		"studentId": std["id"], "routeId": route["id"], "vehicleId": vehicle["id"],
	}
	created(t, "/api/v1/transport/allocations", alloc)

	// duplicate allocation conflicts
	rec := env.do(t, http.MethodPost, "/api/v1/transport/allocations", token, alloc)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate allocation code = %d, want %d (body: %s)", rec.Code, http.StatusConflict, rec.Body.String())
	}
	if resp := decodeEnvelope(t, rec); resp.Success {
		t.Error("duplicate allocation envelope success = true, want false")
	}

	// one pending fee was generated
	rec = env.do(t, http.MethodGet, "/api/v1/transport/student-fees", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("student-fees code = %d, want %d", rec.Code, http.StatusOK)
	}
	fees, _ := decodeEnvelope(t, rec).Data.([]interface{})
	if len(fees) != 1 {
		t.Fatalf("student fees = %d, want 1", len(fees))
	}
	feeRec := fees[0].(map[string]interface{})
	if feeRec["status"] != "PENDING" {
		t.Errorf("fee status = %v, want PENDING", feeRec["status"])
	}
	if feeRec["amount"] != 120.5 {
		t.Errorf("fee amount = %v, want 120.5", feeRec["amount"])
	}

	// mark as paid
	rec = env.do(t, http.MethodPatch, "/api/v1/transport/student-fees/"+feeRec["id"].(string)+"/pay", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pay fee code = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	paid, _ := decodeEnvelope(t, rec).Data.(map[string]interface{})
	if paid["status"] != "PAID" {
		t.Errorf("fee status = %v, want PAID", paid["status"])
	}

	// route delete is blocked while the allocation exists
	rec = env.do(t, http.MethodDelete, "/api/v1/transport/routes/"+route["id"].(string), token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("protected route delete code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	// unauthenticated requests are rejected
	rec = env.do(t, http.MethodGet, "/api/v1/transport/routes", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func Test_userManagement(t *testing.T) {
	env := setup(t)

	superAdmin := testutil.CreateUser(t, env.usrRepo, "Root", "root@test.test", "S3cur3!pass", user.RoleSuperAdmin, true)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.test", "S3cur3!pass", user.RoleAdmin, true)
	rootToken := env.token(t, superAdmin)
	adminToken := env.token(t, admin)

	// super admin creates an admin account
	rec := env.do(t, http.MethodPost, "/api/v1/users", rootToken, map[string]interface{}{
		"name": "New Admin", "email": "newadmin@test.test", "password": "S3cur3!pass", "role": user.RoleAdmin,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user code = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	// plain admins cannot mint admins
	rec = env.do(t, http.MethodPost, "/api/v1/users", adminToken, map[string]interface{}{
		"name": "Sneaky", "email": "sneaky@test.test", "password": "S3cur3!pass", "role": user.RoleAdmin,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("admin minting admin code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	// list with pagination meta
	rec = env.do(t, http.MethodGet, "/api/v1/users?limit=2&page=1", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list users code = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Meta == nil || resp.Meta.Total != 3 || resp.Meta.Limit != 2 {
		t.Errorf("list users meta = %+v, want total 3 limit 2", resp.Meta)
	}
	if users, _ := resp.Data.([]interface{}); len(users) != 2 {
		t.Errorf("list users page size = %d, want 2", len(users))
	}

	// self-deletion is forbidden
	rec = env.do(t, http.MethodDelete, "/api/v1/users/"+admin.ID, adminToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("self delete code = %d, want %d", rec.Code, http.StatusForbidden)
	}

	// deleting another user works
	rec = env.do(t, http.MethodDelete, "/api/v1/users/"+admin.ID, rootToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete user code = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
}
