package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestUploadObjectPDF(t *testing.T) {
	var gotPath, gotToken, gotBearer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-API-Token")
		gotBearer = r.Header.Get("Authorization")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "%PDF-1.4" {
			t.Errorf("file content = %q", data)
		}
		if hdr.Filename != "passport.pdf" {
			t.Errorf("filename = %q", hdr.Filename)
		}

		json.NewEncoder(w).Encode(UploadedFile{Name: "passport.pdf", URL: "/docs/7/passport.pdf", Size: 8})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok-123", time.Second)
	out, err := c.UploadObjectPDF(context.Background(), 7, "passport.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotPath != "/upload/docs/object/7" {
		t.Errorf("path = %q", gotPath)
	}
	if gotToken != "tok-123" {
		t.Errorf("X-API-Token = %q", gotToken)
	}
	if gotBearer != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotBearer)
	}
	if out.URL != "/docs/7/passport.pdf" {
		t.Errorf("url = %q", out.URL)
	}
}

func TestUploadViolationCreation_EncodesPhotos(t *testing.T) {
	var payload struct {
		Photos []string `json:"photos_base64"`
		Date   string   `json:"date"`
	}
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(UploadedFile{URL: "/violations/5/creation"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	_, err := c.UploadViolationCreation(context.Background(), "iko", 5, []Image{
		{Data: []byte("png-bytes"), Mime: "image/png"},
		{Data: []byte("raw"), Mime: "application/octet-stream"}, // falls back to jpeg
	}, "2026-08-31")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if gotPath != "/upload/violation/iko/5/creation" {
		t.Errorf("path = %q", gotPath)
	}
	if payload.Date != "2026-08-31" {
		t.Errorf("date = %q", payload.Date)
	}
	if len(payload.Photos) != 2 {
		t.Fatalf("photos = %d, want 2", len(payload.Photos))
	}
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	if payload.Photos[0] != want {
		t.Errorf("photo[0] = %q", payload.Photos[0])
	}
	if !strings.HasPrefix(payload.Photos[1], "data:image/jpeg;base64,") {
		t.Errorf("photo[1] = %q, want jpeg fallback", payload.Photos[1])
	}
}

func TestBrowseObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/browse/object/12" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ObjectTree{
			ObjectID:      "12",
			Documentation: TreeNode{Name: "docs", IsDir: true},
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok", 0) // trailing slash trimmed
	tree, err := c.BrowseObject(context.Background(), 12)
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if tree.ObjectID != "12" || !tree.Documentation.IsDir {
		t.Errorf("tree = %+v", tree)
	}
}

func TestDo_ErrorStatusIncludesSnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	_, err := c.BrowseForeman(context.Background(), "f-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 403") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err = %v", err)
	}
}
