package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/harvester/internal/codec"
	"github.com/mmcdole/harvester/internal/domain"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func newClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	tc, err := codec.New("gbk")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = srv.URL + "/productpage/p-{item}-s-0-t-6-p-{page}.html"
	}
	c, err := NewClient(cfg, tc, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchPageDecodesGBK(t *testing.T) {
	want := `{"comments":[{"id":1,"content":"很好"}]}`
	gbk, _ := simplifiedchinese.GBK.NewEncoder().String(want)

	var gotPath, gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "text/html;charset=GBK")
		w.Write([]byte(gbk))
	}))
	defer srv.Close()

	c := newClient(t, srv, Config{Headers: map[string]string{"Referer": "https://item.jd.com/"}})
	res, err := c.FetchPage(context.Background(), domain.PageRequest{ItemID: "100012043978", Page: 3})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if res.Text != want {
		t.Errorf("text: got %q, want %q", res.Text, want)
	}
	if gotPath != "/productpage/p-100012043978-s-0-t-6-p-3.html" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotUA != userAgent {
		t.Errorf("user agent: got %q", gotUA)
	}
	if gotReferer != "https://item.jd.com/" {
		t.Errorf("referer: got %q", gotReferer)
	}
}

func TestFetchPageStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient(t, srv, Config{})
	_, err := c.FetchPage(context.Background(), domain.PageRequest{ItemID: "1"})
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("got %v, want ErrFetch", err)
	}
}

func TestFetchPageNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newClient(t, srv, Config{})
	srv.Close()

	_, err := c.FetchPage(context.Background(), domain.PageRequest{ItemID: "1"})
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("got %v, want ErrFetch", err)
	}
}

func TestFetchPageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := newClient(t, srv, Config{Timeout: 50 * time.Millisecond})
	_, err := c.FetchPage(context.Background(), domain.PageRequest{ItemID: "1"})
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("got %v, want ErrFetch", err)
	}
}

func TestFetchPageEncodingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{'{', 0xFF, '}'})
	}))
	defer srv.Close()

	c := newClient(t, srv, Config{})
	_, err := c.FetchPage(context.Background(), domain.PageRequest{ItemID: "1"})
	if !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("got %v, want ErrEncoding", err)
	}
}

func TestFetchPageRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"comments":[{"id":1,"content":"abcdef"}]}`))
	}))
	defer srv.Close()

	c := newClient(t, srv, Config{MaxBytes: 20})
	_, err := c.FetchPage(context.Background(), domain.PageRequest{ItemID: "1"})
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("got %v, want ErrFetch", err)
	}

	// A body of exactly MaxBytes is still accepted
	c = newClient(t, srv, Config{MaxBytes: int64(len(`{"comments":[{"id":1,"content":"abcdef"}]}`))})
	if _, err := c.FetchPage(context.Background(), domain.PageRequest{ItemID: "1"}); err != nil {
		t.Fatalf("body at limit: %v", err)
	}
}

func TestPageURLTemplate(t *testing.T) {
	tc, _ := codec.New("gbk")
	c, err := NewClient(Config{
		URLTemplate: "https://club.jd.com/comment/productPageComments.action?productId={item}&score=0&sortType=6&page={page}&pageSize={size}",
		PageSize:    10,
	}, tc, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got := c.PageURL(domain.PageRequest{ItemID: "42", Page: 2})
	want := "https://club.jd.com/comment/productPageComments.action?productId=42&score=0&sortType=6&page=2&pageSize=10"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewClientValidatesTemplate(t *testing.T) {
	tc, _ := codec.New("gbk")
	if _, err := NewClient(Config{URLTemplate: "https://example.com/{item}"}, tc, nil); err == nil {
		t.Error("expected error for template without {page}")
	}
	if _, err := NewClient(Config{}, nil, nil); err == nil {
		t.Error("expected error for nil transcoder")
	}
}
