package alist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{
		BaseURL: ts.URL,
		Token:   "secret-token",
		Limiter: NewUnlimited(),
	})
	return c, ts
}

func TestListDirectory_Success(t *testing.T) {
	var gotAuth, gotPath string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		gotPath, _ = req["path"].(string)

		json.NewEncoder(w).Encode(map[string]any{
			"code":    200,
			"message": "success",
			"data": map[string]any{
				"content": []map[string]any{
					{"name": "movie.mkv", "size": 123, "is_dir": false,
						"hash_info": map[string]string{"sha1": "DEADBEEF"}},
					{"name": "sub", "size": 0, "is_dir": true},
				},
				"total":    2,
				"provider": "Other",
			},
		})
	}))
	defer ts.Close()

	listing, err := c.ListDirectory(context.Background(), "/A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "secret-token" {
		t.Errorf("Authorization header: got %q, want %q", gotAuth, "secret-token")
	}
	if gotPath != "/A" {
		t.Errorf("request path: got %q, want %q", gotPath, "/A")
	}
	if len(listing.Content) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(listing.Content))
	}
	if listing.Provider != "Other" {
		t.Errorf("provider: got %q, want Other", listing.Provider)
	}
	if got := listing.Content[0].HashInfo.Sum(); got != "deadbeef" {
		t.Errorf("hash sum: got %q, want lowercase deadbeef", got)
	}
	if !listing.Content[1].IsDir {
		t.Error("second entry should be a directory")
	}
}

func TestListDirectory_NullContentIsEmpty(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":200,"message":"success","data":{"content":null,"total":0,"provider":"Local"}}`)
	}))
	defer ts.Close()

	listing, err := c.ListDirectory(context.Background(), "/empty")
	if err != nil {
		t.Fatalf("null content must not be an error, got %v", err)
	}
	if listing.Content != nil {
		t.Errorf("expected nil content, got %v", listing.Content)
	}
}

func TestListDirectory_HTTPError(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := c.ListDirectory(context.Background(), "/A")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T: %v", err, err)
	}
	if httpErr.Status != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", httpErr.Status)
	}
}

func TestListDirectory_APIError(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":401,"message":"token expired","data":null}`)
	}))
	defer ts.Close()

	_, err := c.ListDirectory(context.Background(), "/A")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != 401 || apiErr.Message != "token expired" {
		t.Errorf("got code=%d message=%q", apiErr.Code, apiErr.Message)
	}
}

func TestListDirectory_ProtocolError(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json at all`)
	}))
	defer ts.Close()

	_, err := c.ListDirectory(context.Background(), "/A")
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
}

func TestGetFileInfo_Success(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/fs/get" {
			t.Errorf("unexpected endpoint %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code":    200,
			"message": "success",
			"data": map[string]any{
				"name": "poster.jpg", "size": 9, "is_dir": false,
				"raw_url":   "http://example.test/d/poster.jpg",
				"provider":  "Local",
				"hash_info": map[string]string{"md5": "abc"},
			},
		})
	}))
	defer ts.Close()

	info, err := c.GetFileInfo(context.Background(), "/A/poster.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.RawURL != "http://example.test/d/poster.jpg" {
		t.Errorf("raw_url: got %q", info.RawURL)
	}
	if info.HashInfo.Algo() != HashMD5 {
		t.Errorf("algo: got %q, want md5", info.HashInfo.Algo())
	}
}

func TestGetFileInfo_MissingRawURL(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":200,"message":"success","data":{"name":"x","size":1}}`)
	}))
	defer ts.Close()

	_, err := c.GetFileInfo(context.Background(), "/A/x")
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
}

func TestDownload_StreamsBody(t *testing.T) {
	content := []byte("file bytes here")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, Limiter: NewUnlimited()})
	body, err := c.Download(context.Background(), ts.URL+"/d/file")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("body: got %q, want %q", got, content)
	}
}

func TestDownload_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, Limiter: NewUnlimited()})
	_, err := c.Download(context.Background(), ts.URL+"/d/missing")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T: %v", err, err)
	}
	if httpErr.Status != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", httpErr.Status)
	}
}
