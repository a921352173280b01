package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/field-operations/internal/handler"
	"github.com/iliyamo/field-operations/internal/notify"
	"github.com/iliyamo/field-operations/internal/router"
	"github.com/iliyamo/field-operations/internal/service"
	"github.com/iliyamo/field-operations/internal/storage"
	"github.com/iliyamo/field-operations/internal/store/memory"
)

const (
	adminEmail = "admin@example.com"
	adminPass  = "password-admin"
)

type server struct {
	e     *echo.Echo
	files *storage.Memory
}

func newServer(t *testing.T) *server {
	t.Helper()
	st := memory.New()
	files := storage.NewMemory()
	svc := service.New(st, files, notify.Nop{}, service.Options{
		JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost,
	})
	if _, err := svc.SeedAdmin(context.Background(), adminEmail, adminPass); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	e := echo.New()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }

	h := handler.New(svc, time.Second)
	router.RegisterRoutes(e, st)
	router.RegisterAuth(e, h, pass)
	router.RegisterAPI(e, h, svc)
	return &server{e: e, files: files}
}

// do sends a JSON request; body may be nil.
func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, rec.Code, rec.Body)
	}
	var out struct {
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	decode(t, rec, &out)
	return out.Access.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type apiError struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Field     string `json:"field"`
	Retryable bool   `json:"retryable"`
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body)
	}
}

func TestAuthentication(t *testing.T) {
	s := newServer(t)

	if rec := s.do(t, http.MethodGet, "/v1/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/v1/me", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": adminEmail, "password": "wrong-pass"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: %d", rec.Code)
	}

	tok := s.login(t, adminEmail, adminPass)
	rec = s.do(t, http.MethodGet, "/v1/me", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rec.Code, rec.Body)
	}
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	decode(t, rec, &me)
	if me.Email != adminEmail || me.Role != "admin" {
		t.Fatalf("me = %+v", me)
	}
}

func TestLoginValidation(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "not-an-email", "password": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var e apiError
	decode(t, rec, &e)
	if e.Error != "validation" || e.Field != "email" {
		t.Fatalf("body = %+v", e)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, adminEmail, adminPass)

	rec := s.do(t, http.MethodPost, "/v1/users", admin, map[string]any{
		"email": "pm@example.com", "password": "password-pm", "name": "Pat", "role": "pm",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pm: %d %s", rec.Code, rec.Body)
	}
	var pm struct {
		ID uint64 `json:"id"`
	}
	decode(t, rec, &pm)
	pmTok := s.login(t, "pm@example.com", "password-pm")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   string
		field  string
	}{
		{"role gate", http.MethodPost, "/v1/users", pmTok,
			map[string]any{"email": "x@example.com", "password": "password-x", "name": "X", "role": "field"},
			http.StatusForbidden, "access_denied", ""},
		{"missing project", http.MethodGet, "/v1/projects/999", admin, nil, http.StatusNotFound, "not_found", ""},
		{"bad id", http.MethodGet, "/v1/projects/abc", admin, nil, http.StatusBadRequest, "validation", "id"},
		{"missing code", http.MethodPost, "/v1/projects", admin,
			map[string]any{"name": "Tower", "manager_id": pm.ID}, http.StatusBadRequest, "validation", "code"},
		{"duplicate email", http.MethodPost, "/v1/users", admin,
			map[string]any{"email": "pm@example.com", "password": "password-pm", "name": "Pat", "role": "pm"},
			http.StatusConflict, "conflict", ""},
		{"bad status filter", http.MethodGet, "/v1/projects?status=done", admin, nil, http.StatusBadRequest, "validation", "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.method, tc.path, tc.token, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body)
			}
			var e apiError
			decode(t, rec, &e)
			if e.Error != tc.kind || e.Field != tc.field {
				t.Fatalf("body = %+v, want kind %q field %q", e, tc.kind, tc.field)
			}
		})
	}
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, adminEmail, adminPass)

	var me struct {
		ID uint64 `json:"id"`
	}
	decode(t, s.do(t, http.MethodGet, "/v1/me", admin, nil), &me)

	rec := s.do(t, http.MethodPost, "/v1/projects", admin, map[string]any{"code": "P-1", "name": "Tower", "manager_id": me.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var p struct {
		ID     uint64 `json:"id"`
		Status string `json:"status"`
	}
	decode(t, rec, &p)
	if p.Status != "pending" {
		t.Fatalf("status = %q", p.Status)
	}

	rec = s.do(t, http.MethodPost, "/v1/projects/"+itoa(p.ID)+"/status", admin, map[string]string{"status": "in_progress"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body)
	}
	rec = s.do(t, http.MethodPost, "/v1/projects/"+itoa(p.ID)+"/status", admin, map[string]string{"status": "completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", rec.Code, rec.Body)
	}
	rec = s.do(t, http.MethodPost, "/v1/projects/"+itoa(p.ID)+"/status", admin, map[string]string{"status": "pending"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("reopen completed: %d %s", rec.Code, rec.Body)
	}
}

func TestPhotoUploadCompletesModule(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, adminEmail, adminPass)
	var me struct {
		ID uint64 `json:"id"`
	}
	decode(t, s.do(t, http.MethodGet, "/v1/me", admin, nil), &me)

	var p struct {
		ID uint64 `json:"id"`
	}
	decode(t, s.do(t, http.MethodPost, "/v1/projects", admin, map[string]any{"code": "P-2", "name": "Depot", "manager_id": me.ID}), &p)

	rec := s.do(t, http.MethodPost, "/v1/projects/"+itoa(p.ID)+"/modules", admin, map[string]any{
		"site": "A", "module_id": 3, "required_photo_count": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("module: %d %s", rec.Code, rec.Body)
	}
	var m struct {
		ID uint64 `json:"id"`
	}
	decode(t, rec, &m)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("photo", "front.jpg")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("jpeg bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/modules/"+itoa(m.ID)+"/photos", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+admin)
	rr := httptest.NewRecorder()
	s.e.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rr.Code, rr.Body)
	}
	var res struct {
		Photo struct {
			Ref string `json:"ref"`
		} `json:"photo"`
		Module struct {
			Status               string `json:"status"`
			CompletionPercentage int    `json:"completion_percentage"`
		} `json:"module"`
	}
	decode(t, rr, &res)
	if res.Module.Status != "completed" || res.Module.CompletionPercentage != 100 {
		t.Fatalf("module after upload = %+v", res.Module)
	}
	if !s.files.Has(res.Photo.Ref) {
		t.Fatalf("object %q not stored", res.Photo.Ref)
	}

	// Without a file the upload is rejected before anything is stored.
	rec = s.do(t, http.MethodPost, "/v1/modules/"+itoa(m.ID)+"/photos", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file: %d", rec.Code)
	}
	if s.files.Len() != 1 {
		t.Fatalf("files = %d", s.files.Len())
	}
}

func TestExportReceiptsWorkbook(t *testing.T) {
	s := newServer(t)
	admin := s.login(t, adminEmail, adminPass)

	rec := s.do(t, http.MethodPost, "/v1/receipts/export", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("X-Exported-Count"); got != "0" {
		t.Fatalf("X-Exported-Count = %q", got)
	}
	if !strings.HasPrefix(rec.Header().Get(echo.HeaderContentDisposition), "attachment;") {
		t.Fatalf("Content-Disposition = %q", rec.Header().Get(echo.HeaderContentDisposition))
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	defer f.Close()
	if _, err := f.GetRows("Receipts"); err != nil {
		t.Fatalf("rows: %v", err)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }
