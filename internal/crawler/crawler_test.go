package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mapoc/internal/httpclient"
)

const squarePoly = `france
1
   0 0
   10 0
   10 10
   0 10
   0 0
END
END
`

func listing(rows ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><table id=\"subregions\">")
	for _, r := range rows {
		b.WriteString("<tr><td>" + r + "</td><td><a href=\"ignored.html\">x</a></td></tr>")
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func catalogServer(t *testing.T) *httptest.Server {
	pages := map[string]string{
		"/index.html": listing(
			`<a href="europe.html">Europe</a>`,
			`<a href="broken.html">Atlantis</a>`,
		),
		"/europe.html": listing(
			`<a href="europe/france.html">France</a>`,
			`<a href="europe-latest-free.shp.zip">Europe</a> <a href="europe.poly">[poly]</a>`,
		),
		"/europe/france.html": listing(
			`<a href="france/ile-de-france.html">Île-de-France</a>`,
			`<a href="france.poly">France</a> <a href="france-latest-free.shp.zip">[shp]</a>`,
		),
		"/europe/france/ile-de-france.html": listing(
			`<a href="ile-de-france-latest-free.shp.zip">Île-de-France</a>`,
			`<a href="../france.html">France again</a>`,
		),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/europe/france.poly" {
			_, _ = w.Write([]byte(squarePoly))
			return
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})
	return httptest.NewServer(mux)
}

func TestBuildCatalog(t *testing.T) {
	ts := catalogServer(t)
	defer ts.Close()

	b := NewBuilder(httpclient.New(5*time.Second, 1))
	res, err := b.Build(context.Background(), ts.URL+"/index.html")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tree := res.Tree

	fr, ok := tree.Find("France")
	if !ok {
		t.Fatalf("France missing")
	}
	if got := strings.Join(tree.Path(fr), "/"); got != "/Europe/France" {
		t.Fatalf("unexpected path %q", got)
	}
	idf, ok := tree.Find("Ile-de-France")
	if !ok {
		t.Fatalf("Ile-de-France missing (accents should be folded)")
	}
	if tree.Node(idf).Parent != fr {
		t.Fatalf("Ile-de-France parent = %d, want %d", tree.Node(idf).Parent, fr)
	}
	if want := ts.URL + "/europe/france/ile-de-france.html"; tree.Node(idf).URL != want {
		t.Fatalf("node url %q, want %q", tree.Node(idf).URL, want)
	}
	if _, ok := tree.Find("Atlantis"); ok {
		t.Fatalf("failed page must not produce a node")
	}
	if res.Stats.PageFailures != 1 {
		t.Fatalf("page failures = %d, want 1", res.Stats.PageFailures)
	}
	// index, europe, france, ile-de-france; the back link to france is not refetched
	if res.Stats.Pages != 4 {
		t.Fatalf("pages = %d, want 4", res.Stats.Pages)
	}
	if tree.Len() != 4 {
		t.Fatalf("tree size = %d, want 4", tree.Len())
	}

	if u, ok := res.URLs.FirstWithSuffix("Ile-de-France", "latest-free.shp.zip"); !ok || u != ts.URL+"/europe/france/ile-de-france-latest-free.shp.zip" {
		t.Fatalf("unexpected bundle url %q (%v)", u, ok)
	}
	if got := res.URLs["France"]; len(got) != 2 {
		t.Fatalf("France urls = %v, want polygon and bundle", got)
	}

	// europe.poly is missing upstream; the crawl keeps going and France still gets its polygon
	if res.Stats.Polygons != 1 || res.Stats.PolygonFailures != 1 {
		t.Fatalf("polygon stats = %+v", res.Stats)
	}
	eu, _ := tree.Find("Europe")
	if tree.Node(eu).PolygonText != "" || tree.Polygons(eu) != nil {
		t.Fatalf("Europe must stay without a polygon")
	}
	if len(tree.Polygons(fr)) != 1 {
		t.Fatalf("France polygon not attached")
	}
	if tree.Node(idf).PolygonText != "" {
		t.Fatalf("Ile-de-France has no polygon link")
	}
}

func TestBuildDedupesByText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listing(
			`<a href="a-old.zip">Alpha</a>`,
			`<a href="b.zip">Beta</a>`,
			`<a href="a-new.zip">Alpha</a>`,
		)))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res, err := NewBuilder(httpclient.New(5*time.Second, 1)).Build(context.Background(), ts.URL+"/index.html")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := res.URLs[""]
	want := []string{ts.URL + "/a-new.zip", ts.URL + "/b.zip"}
	if len(got) != len(want) {
		t.Fatalf("root urls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("root urls = %v, want %v", got, want)
		}
	}
}

func TestBuildRootUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := NewBuilder(httpclient.New(5*time.Second, 1)).Build(context.Background(), ts.URL+"/index.html")
	if !errors.Is(err, ErrRootUnavailable) {
		t.Fatalf("expected ErrRootUnavailable, got %v", err)
	}
}

func TestParseListingSpecialTableAfterMain(t *testing.T) {
	html := `<table id="specialsubregions"><tr><td><a href="s.html">Special</a></td></tr></table>` +
		`<table id="subregions"><tr><th>Region</th></tr><tr><td><a href="m.html">Main</a></td></tr></table>`
	base, _ := http.NewRequest(http.MethodGet, "http://example.test/dir/index.html", nil)
	links, err := parseListing([]byte(html), "text/html", base.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(links) != 2 || links[0].Text != "Main" || links[1].Text != "Special" {
		t.Fatalf("unexpected links %+v", links)
	}
	if links[0].Href != "http://example.test/dir/m.html" {
		t.Fatalf("href not absolute: %q", links[0].Href)
	}
}
