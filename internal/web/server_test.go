package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvkit/internal/config"
	"github.com/JonMunkholm/csvkit/internal/core"
	"github.com/JonMunkholm/csvkit/internal/store"
	"github.com/JonMunkholm/csvkit/internal/wire"
)

type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]store.Dataset
}

func (m *memStore) Save(_ context.Context, d store.Dataset) (store.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	m.rows[d.ID] = d
	return d, nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (store.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return store.Dataset{}, store.ErrNotFound
	}
	return d, nil
}

func (m *memStore) List(_ context.Context, _ int) ([]store.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Dataset
	for _, d := range m.rows {
		d.Body = ""
		out = append(out, d)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) Purge(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// newTestServer builds a server over an in-memory store. A nil store
// disables dataset storage.
func newTestServer(t *testing.T, env map[string]string, withStore bool) *Server {
	t.Helper()
	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("config.LoadFrom() error = %v", err)
	}

	var ds core.DatasetStore
	if withStore {
		ds = &memStore{rows: make(map[uuid.UUID]store.Dataset)}
	}
	svc, err := core.NewService(cfg, ds)
	if err != nil {
		t.Fatalf("core.NewService() error = %v", err)
	}
	s := NewServer(svc, cfg)
	t.Cleanup(func() {
		s.Shutdown(context.Background())
		svc.Close()
	})
	return s
}

func do(s *Server, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v: %q", err, rec.Body.String())
	}
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec := do(s, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Limiter.MaxConcurrent != 8 || !resp.Cache.Enabled || resp.Storage {
		t.Errorf("health = %+v", resp)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec := do(s, http.MethodGet, "/healthz", "", nil)
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestParse_JSON(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec := do(s, http.MethodPost, "/api/parse", "name,qty\napple,3\n\"b,c\",4\n", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("X-Record-Count"); got != "2" {
		t.Errorf("X-Record-Count = %q, want 2", got)
	}

	var got wire.TableData
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := wire.TableData{
		HasHeader: true,
		Header:    []string{"name", "qty"},
		Rows:      [][]string{{"apple", "3"}, {"b,c", "4"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("table = %+v, want %+v", got, want)
	}
}

func TestParse_Negotiation(t *testing.T) {
	s := newTestServer(t, nil, false)
	body := "a;b\n1;x y\n"

	tests := []struct {
		accept string
		wantCT string
	}{
		{"application/msgpack", wire.ContentTypeMsgpack},
		{"application/cbor", wire.ContentTypeCBOR},
		{"application/vnd.apache.arrow.stream", wire.ContentTypeArrow},
		{"text/csv", "text/csv; charset=utf-8"},
		{"text/html", wire.ContentTypeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/parse?delimiter=semicolon", body, map[string]string{"Accept": tt.accept})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.wantCT {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantCT)
			}

			switch tt.wantCT {
			case wire.ContentTypeMsgpack:
				d, err := wire.Msgpack[wire.TableData]{}.Decode(rec.Body.Bytes())
				if err != nil || len(d.Rows) != 1 || d.Rows[0][1] != "x y" {
					t.Errorf("msgpack decode = %+v, %v", d, err)
				}
			case "text/csv; charset=utf-8":
				if got := rec.Body.String(); got != body {
					t.Errorf("csv body = %q, want %q", got, body)
				}
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	s := newTestServer(t, map[string]string{"MAX_INPUT_SIZE": "64"}, false)

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantCode   string
		wantRecord int
	}{
		{"ragged row", "/api/parse", "a,b\n1,2\n3\n", http.StatusUnprocessableEntity, "CSV001", 3},
		{"unterminated quote", "/api/parse", "a,b\n1,\"x\n", http.StatusUnprocessableEntity, "CSV002", 2},
		{"bad numeric", "/api/parse?numeric=true", "a\nabc\n", http.StatusUnprocessableEntity, "CSV002", 2},
		{"bad delimiter", "/api/parse?delimiter=ab", "a\n", http.StatusUnprocessableEntity, "CSV003", 0},
		{"delimiter equals quote", "/api/parse?delimiter=%22", "a\n", http.StatusUnprocessableEntity, "CSV003", 0},
		{"bad boolean", "/api/parse?header=maybe", "a\n", http.StatusUnprocessableEntity, "CSV003", 0},
		{"too large", "/api/parse", strings.Repeat("x", 65), http.StatusRequestEntityTooLarge, "INP001", 0},
		{"project empty body", "/api/project", "", http.StatusUnprocessableEntity, "CSV005", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, tt.target, tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			resp := decodeError(t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if resp.Detail == "" {
				t.Error("detail is empty for a user-facing error")
			}
			if tt.wantRecord > 0 {
				if resp.Position == nil || resp.Position.Record != tt.wantRecord {
					t.Errorf("position = %+v, want record %d", resp.Position, tt.wantRecord)
				}
			}
		})
	}
}

func TestSerialize(t *testing.T) {
	s := newTestServer(t, nil, false)

	data := wire.TableData{
		HasHeader: true,
		Header:    []string{"id", "note"},
		Rows:      [][]string{{"1", "a,b"}, {"2", `say "hi"`}},
	}
	msgpackBody, err := wire.Msgpack[wire.TableData]{}.Encode(data)
	if err != nil {
		t.Fatal(err)
	}
	cborCodec, err := wire.NewCBOR[wire.TableData]()
	if err != nil {
		t.Fatal(err)
	}
	cborBody, err := cborCodec.Encode(data)
	if err != nil {
		t.Fatal(err)
	}
	jsonBody, _ := json.Marshal(data)
	want := "id,note\n1,\"a,b\"\n2,\"say \"\"hi\"\"\"\n"

	tests := []struct {
		name   string
		target string
		ct     string
		body   []byte
		want   string
	}{
		{"json", "/api/serialize", "application/json", jsonBody, want},
		{"default content type", "/api/serialize", "", jsonBody, want},
		{"msgpack", "/api/serialize", "application/msgpack", msgpackBody, want},
		{"cbor", "/api/serialize", "application/cbor", cborBody, want},
		{"crlf", "/api/serialize?crlf=true", "application/json", jsonBody, strings.ReplaceAll(want, "\n", "\r\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, bytes.NewReader(tt.body))
			if tt.ct != "" {
				req.Header.Set("Content-Type", tt.ct)
			}
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
			}
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerialize_Errors(t *testing.T) {
	s := newTestServer(t, nil, false)

	tests := []struct {
		name       string
		ct         string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unsupported type", "text/plain", "a,b", http.StatusBadRequest, "INP002"},
		{"bad json", "application/json", "{", http.StatusBadRequest, "INP002"},
		{"ragged rows", "application/json", `{"has_header":false,"rows":[["a","b"],["c"]]}`, http.StatusUnprocessableEntity, "CSV001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/serialize", tt.body, map[string]string{"Content-Type": tt.ct})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if resp := decodeError(t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestProject(t *testing.T) {
	s := newTestServer(t, map[string]string{"CSV_HAS_HEADER": "false"}, false)

	rec := do(s, http.MethodPost, "/api/project", "name,qty\napple,3\npear,\n", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var got struct {
		Columns []string            `json:"columns"`
		Rows    []map[string]string `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Columns, []string{"name", "qty"}) {
		t.Errorf("columns = %q", got.Columns)
	}
	want := []map[string]string{{"name": "apple", "qty": "3"}, {"name": "pear", "qty": ""}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("rows = %v, want %v", got.Rows, want)
	}
}

func TestDatasets_Lifecycle(t *testing.T) {
	s := newTestServer(t, nil, true)

	rec := do(s, http.MethodPost, "/api/datasets?name=fruit&delimiter=pipe", "name|qty\r\napple|3\r\n", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body = %s", rec.Code, rec.Body)
	}
	var saved store.Dataset
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatal(err)
	}
	if saved.Name != "fruit" || saved.Records != 1 {
		t.Errorf("saved = %+v", saved)
	}
	if got := rec.Header().Get("Location"); got != "/api/datasets/"+saved.ID.String() {
		t.Errorf("Location = %q", got)
	}

	rec = do(s, http.MethodGet, "/api/datasets", "", nil)
	var list struct {
		Datasets []store.Dataset `json:"datasets"`
		Count    int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Datasets[0].ID != saved.ID {
		t.Errorf("list = %+v", list)
	}

	rec = do(s, http.MethodGet, "/api/datasets/"+saved.ID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", rec.Code, rec.Body)
	}
	var got DatasetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Table.Rows, [][]string{{"apple", "3"}}) {
		t.Errorf("table rows = %v", got.Table.Rows)
	}

	rec = do(s, http.MethodGet, "/api/datasets/"+saved.ID.String()+"/csv", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "name|qty\napple|3\n" {
		t.Errorf("download = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="fruit.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}

	rec = do(s, http.MethodDelete, "/api/datasets/"+saved.ID.String(), "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = do(s, http.MethodGet, "/api/datasets/"+saved.ID.String(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "DS001" {
		t.Errorf("code = %q, want DS001", resp.Code)
	}
}

func TestDatasets_Errors(t *testing.T) {
	withStore := newTestServer(t, nil, true)
	withoutStore := newTestServer(t, nil, false)

	tests := []struct {
		name       string
		s          *Server
		method     string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"invalid id", withStore, http.MethodGet, "/api/datasets/not-a-uuid", "", http.StatusBadRequest, "INP003"},
		{"delete unknown", withStore, http.MethodDelete, "/api/datasets/" + uuid.NewString(), "", http.StatusNotFound, "DS001"},
		{"save malformed", withStore, http.MethodPost, "/api/datasets", "a,b\n1\n", http.StatusUnprocessableEntity, "CSV001"},
		{"storage disabled list", withoutStore, http.MethodGet, "/api/datasets", "", http.StatusNotImplemented, "DS002"},
		{"storage disabled save", withoutStore, http.MethodPost, "/api/datasets", "a\n1\n", http.StatusNotImplemented, "DS002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(tt.s, tt.method, tt.target, tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if resp := decodeError(t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer(t, map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "k1,k2"}, false)

	tests := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusForbidden},
		{"k2", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("key=%q", tt.key), func(t *testing.T) {
			h := map[string]string{}
			if tt.key != "" {
				h["X-API-Key"] = tt.key
			}
			if rec := do(s, http.MethodPost, "/api/parse", "a\n1\n", h); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	// Pages and health stay open.
	if rec := do(s, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, map[string]string{"RATE_LIMIT_PER_MINUTE": "2"}, false)

	for i := 0; i < 2; i++ {
		if rec := do(s, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}

	rec := do(s, http.MethodPost, "/api/parse", "a\n", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if resp := decodeError(t, rec); resp.Code != "SRV003" {
		t.Errorf("code = %q, want SRV003", resp.Code)
	}
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, map[string]string{"CSV_DELIMITER": "tab"}, false)

	rec := do(s, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<form method="post" action="/preview">`) {
		t.Error("index page has no preview form")
	}
	if !strings.Contains(body, `name="delimiter" size="6" value="tab"`) {
		t.Error("index page does not show the tab delimiter by name")
	}
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, nil, false)

	form := url.Values{
		"csv":     {"name,qty\n<b>pear</b>,2\n"},
		"header":  {"true"},
		"numeric": {""},
	}
	rec := do(s, http.MethodPost, "/preview", form.Encode(), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<th>qty</th>") {
		t.Error("preview is missing the header row")
	}
	if strings.Contains(body, "<b>pear</b>") || !strings.Contains(body, "&lt;b&gt;pear&lt;/b&gt;") {
		t.Error("preview did not escape field content")
	}
	if !strings.Contains(body, "1 records, 2 columns") {
		t.Error("preview is missing the summary")
	}
}

func TestPreview_RawBodyNumeric(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec := do(s, http.MethodPost, "/preview?numeric=true", "x\n1.5\n", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `<td class="num" title="1.5">1.5</td>`) {
		t.Errorf("numeric cell not marked: %s", rec.Body)
	}
}

func TestPreview_ErrorPage(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec := do(s, http.MethodPost, "/preview", "a,b\n1\n", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want HTML", ct)
	}
	if !strings.Contains(rec.Body.String(), "Code: CSV001") {
		t.Errorf("error page missing code: %s", rec.Body)
	}
}

func TestPreview_FormTooLarge(t *testing.T) {
	s := newTestServer(t, map[string]string{"MAX_INPUT_SIZE": "64"}, false)

	form := url.Values{"csv": {strings.Repeat("a,b\n", 2000)}}
	rec := do(s, http.MethodPost, "/preview", form.Encode(), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Code: INP001") {
		t.Errorf("error page missing code: %s", rec.Body)
	}
}

func TestPreview_MalformedForm(t *testing.T) {
	s := newTestServer(t, nil, false)

	rec := do(s, http.MethodPost, "/preview", "csv=%zz", map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAttachmentName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"fruit", "fruit.csv"},
		{"report.CSV", "report.CSV"},
		{`a "b"/c`, "a__b__c.csv"},
	}
	for _, tt := range tests {
		if got := attachmentName(tt.in); got != tt.want {
			t.Errorf("attachmentName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
