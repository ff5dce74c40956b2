package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/shared"
	th "github.com/desertthunder/veechar/internal/testing"
)

const folderPage = `<html><body><table>
<tr><td><a href=audio.php?q=f&f=%2FKatha%2FGiani_Sant_Singh style="color:0069c6"><font size=2>Giani_Sant_Singh&nbsp;</font></a></td></tr>
<tr><td><a href=audio.php?q=f&f=%2FKatha%2FBhai_Pinderpal_Singh style="color:0069c6"><font size=2>Bhai Pinderpal Singh</font></a></td></tr>
<tr><td><a href=audio.php?q=f&f=%2FKatha style="color:0069c6"><font size=1>8 folders, 7 files</font></a></td></tr>
<tr><td><a href=audio.php?q=f&f=%2FKatha%2FHidden><font>Unstyled</font></a></td></tr>
<tr><td><a href="/audios/Katha/Japji.Sahib--Part%2001.mp3"><img src="dl.png"></a></td></tr>
<tr><td><a href="/audios/Katha/Japji.Sahib--Part%2001.mp3"><img src="play.png"></a></td></tr>
<tr><td><a href="/audios/Katha/Rehras%20Sahib.mp3"><img src="dl.png"></a></td></tr>
<tr><td><a href="/audios/Katha/notes.pdf">notes</a></td></tr>
</table></body></html>`

func TestParseListing(t *testing.T) {
	items, err := ParseListing([]byte(folderPage), "https://example.com/")
	if err != nil {
		t.Fatalf("ParseListing failed: %v", err)
	}

	expected := []models.AudioItem{
		{Name: "Giani Sant Singh", Kind: models.KindFolder, URL: "/Katha/Giani_Sant_Singh"},
		{Name: "Bhai Pinderpal Singh", Kind: models.KindFolder, URL: "/Katha/Bhai_Pinderpal_Singh"},
		{Name: "Japji Sahib - Part 01", Kind: models.KindAudio, URL: "https://example.com/audios/Katha/Japji.Sahib--Part%2001.mp3"},
		{Name: "Rehras Sahib", Kind: models.KindAudio, URL: "https://example.com/audios/Katha/Rehras%20Sahib.mp3"},
	}

	if len(items) != len(expected) {
		t.Fatalf("expected %d items, got %d: %+v", len(expected), len(items), items)
	}
	for i, want := range expected {
		got := items[i]
		if got.Name != want.Name || got.Kind != want.Kind || got.URL != want.URL {
			t.Errorf("item %d: expected %+v, got %+v", i, want, got)
		}
	}

	t.Run("invalid UTF-8", func(t *testing.T) {
		_, err := ParseListing([]byte{0xff, 0xfe, 0xfd}, "https://example.com")
		if !errors.Is(err, shared.ErrParse) {
			t.Errorf("expected ErrParse, got %v", err)
		}
	})

	t.Run("empty page", func(t *testing.T) {
		items, err := ParseListing([]byte("<html></html>"), "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected no items, got %d", len(items))
		}
	})
}

func TestAudioName(t *testing.T) {
	tests := []struct {
		href     string
		expected string
	}{
		{"/audios/Katha/Japji.Sahib.mp3", "Japji Sahib"},
		{"/audios/Katha/Asa--Di--Vaar.MP3", "Asa - Di - Vaar"},
		{"/audios/Katha/Sukhmani%20Sahib%20%28Part%201%29.mp3", "Sukhmani Sahib (Part 1)"},
		{"/audios/Katha/bad%zz.mp3", "bad%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := audioName(tt.href); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRootFolders(t *testing.T) {
	roots := RootFolders()
	if len(roots) != 5 {
		t.Fatalf("expected 5 root folders, got %d", len(roots))
	}
	for _, item := range roots {
		if !item.IsFolder() {
			t.Errorf("%s should be a folder", item.Name)
		}
		if !strings.HasPrefix(item.URL, "/") {
			t.Errorf("%s path %q should be absolute", item.Name, item.URL)
		}
	}

	roots[0].Name = "changed"
	if RootFolders()[0].Name == "changed" {
		t.Error("RootFolders should return a fresh slice")
	}
}

func TestArchiveService(t *testing.T) {
	t.Run("NewArchiveService defaults", func(t *testing.T) {
		svc := NewArchiveService(ArchiveOptions{})
		if svc.BaseURL() != DefaultBaseURL {
			t.Errorf("expected base URL %s, got %s", DefaultBaseURL, svc.BaseURL())
		}
		if svc.userAgent != DefaultUserAgent {
			t.Errorf("expected user agent %s, got %s", DefaultUserAgent, svc.userAgent)
		}
		if svc.Name() != "Gurmat Veechar" {
			t.Errorf("unexpected name %s", svc.Name())
		}
	})

	t.Run("Fetch", func(t *testing.T) {
		var gotFolder, gotAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/audio.php" {
				t.Errorf("expected path /audio.php, got %s", r.URL.Path)
			}
			if r.URL.Query().Get("q") != "f" {
				t.Errorf("expected q=f, got %s", r.URL.Query().Get("q"))
			}
			gotFolder = r.URL.Query().Get("f")
			gotAgent = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(folderPage))
		}))
		defer server.Close()

		svc := NewArchiveService(ArchiveOptions{BaseURL: server.URL, UserAgent: "test-agent", RequestsPerSecond: 100})
		items, err := svc.Fetch(context.Background(), "/Katha/Giani Sant Singh")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(items) != 4 {
			t.Errorf("expected 4 items, got %d", len(items))
		}
		if gotFolder != "/Katha/Giani Sant Singh" {
			t.Errorf("expected folder to round-trip, got %q", gotFolder)
		}
		if gotAgent != "test-agent" {
			t.Errorf("expected user agent test-agent, got %q", gotAgent)
		}
		if items[2].URL != server.URL+"/audios/Katha/Japji.Sahib--Part%2001.mp3" {
			t.Errorf("expected absolute audio URL, got %s", items[2].URL)
		}
	})

	t.Run("Fetch non-2xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		svc := NewArchiveService(ArchiveOptions{BaseURL: server.URL, RequestsPerSecond: 100})
		if _, err := svc.Fetch(context.Background(), ""); !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})

	t.Run("Fetch unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		svc := NewArchiveService(ArchiveOptions{BaseURL: url, RequestsPerSecond: 100})
		if _, err := svc.Fetch(context.Background(), ""); !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})

	t.Run("Fetch body read failure", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: &th.FCloser{}, Header: make(http.Header)}
		client := &http.Client{Transport: th.NewMockRoundTripper(resp, nil)}

		svc := NewArchiveService(ArchiveOptions{Client: client, RequestsPerSecond: 100})
		if _, err := svc.Fetch(context.Background(), "/Katha"); !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})

	t.Run("Fetch transport error", func(t *testing.T) {
		client := &http.Client{Transport: th.NewMockRoundTripper(nil, errors.New("connection reset"))}

		svc := NewArchiveService(ArchiveOptions{Client: client, RequestsPerSecond: 100})
		_, err := svc.Fetch(context.Background(), "/Katha")
		if !errors.Is(err, shared.ErrNetwork) || !strings.Contains(err.Error(), "connection reset") {
			t.Errorf("expected wrapped ErrNetwork, got %v", err)
		}
	})

	t.Run("Fetch cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		svc := NewArchiveService(ArchiveOptions{BaseURL: "http://127.0.0.1:1", RequestsPerSecond: 100})
		if _, err := svc.Fetch(ctx, ""); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}
