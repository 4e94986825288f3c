package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/config"
)

const page = `<!DOCTYPE html>
<html><head><title>三体 第7集_高清完整版在线观看_腾讯视频</title></head>
<body><h1>三体</h1><button class="txp_btn_next">next</button></body></html>`

func TestParseFetchedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != DefaultUserAgent {
			t.Errorf("User-Agent = %q", r.UserAgent())
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	p := New(nil, Options{Log: zerolog.Nop()})
	doc, err := p.Fetch(context.Background(), srv.URL+"/x/cover/abc.html")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title() != "三体 第7集_高清完整版在线观看_腾讯视频" {
		t.Errorf("Title = %q", doc.Title())
	}
	if !doc.ClickFirst([]string{".missing", ".txp_btn_next"}) || doc.Clicked != ".txp_btn_next" {
		t.Errorf("Clicked = %q", doc.Clicked)
	}

	res, err := p.Parse(context.Background(), config.Defaults(), srv.URL+"/x/cover/abc.html")
	if err != nil {
		t.Fatal(err)
	}
	if res.Series != "三体" || res.Episode != "第7集" {
		t.Errorf("Parse = %+v", res)
	}
	if res.URL != srv.URL+"/x/cover/abc.html" {
		t.Errorf("URL = %q", res.URL)
	}
}

func TestFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := New(nil, Options{Log: zerolog.Nop()})
	if _, err := p.Fetch(context.Background(), srv.URL+"/gone"); err == nil {
		t.Error("404: want error")
	}
	if _, err := p.Fetch(context.Background(), "not a url"); err == nil {
		t.Error("invalid URL: want error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Fetch(ctx, srv.URL); err == nil {
		t.Error("canceled context: want error")
	}
}

func TestBaseDomain(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://www.bilibili.com/video/BV1", "bilibili.com"},
		{"https://v.qq.com/x/cover/abc.html", "qq.com"},
		{"https://news.bbc.co.uk/", "bbc.co.uk"},
	}
	for _, tt := range tests {
		got, err := BaseDomain(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("BaseDomain(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
