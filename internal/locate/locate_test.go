package locate

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mapoc/internal/catalog"
	"mapoc/internal/fetcher"
	"mapoc/internal/gazetteer"
	"mapoc/internal/httpclient"
	"mapoc/internal/regiontree"
	"mapoc/internal/resolver"
)

const ileDeFrancePoly = `ile-de-france
1
   1.5 48.0
   3.5 48.0
   3.5 50.0
   1.5 50.0
END
END
`

const bayernPoly = `bayern
1
   10.0 47.0
   13.0 47.0
   13.0 50.0
   10.0 50.0
END
END
`

func bundle(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("gis_osm_roads_free_1.shp")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("roads"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fixture: root → Europe → {France → Ile-de-France, Germany → Bayern}
func fixture(t *testing.T) (*Locator, *int32, string) {
	t.Helper()
	var hits int32
	body := bundle(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write(body)
	}))
	t.Cleanup(ts.Close)

	tree := regiontree.New("")
	eu := tree.AddChild(tree.Root(), "Europe", ts.URL+"/europe.html")
	fr := tree.AddChild(eu, "France", ts.URL+"/europe/france.html")
	idf := tree.AddChild(fr, "Ile-de-France", ts.URL+"/europe/france/ile-de-france.html")
	tree.SetPolygonText(idf, ileDeFrancePoly)
	de := tree.AddChild(eu, "Germany", ts.URL+"/europe/germany.html")
	by := tree.AddChild(de, "Bayern", ts.URL+"/europe/germany/bayern.html")
	tree.SetPolygonText(by, bayernPoly)

	urls := regiontree.URLIndex{}
	urls.Add("Ile-de-France", ts.URL+"/europe/france/ile-de-france.poly")
	urls.Add("Ile-de-France", ts.URL+"/europe/france/ile-de-france-latest-free.shp.zip")
	urls.Add("Bayern", ts.URL+"/europe/germany/bayern-latest-free.shp.zip")

	gz := &gazetteer.Table{
		Cities: []gazetteer.City{
			gazetteer.NewCity("2988507", "Paris", "Paris", "FR", 48.85341, 2.3488, 2138551),
			gazetteer.NewCity("4717560", "Paris", "Paris", "US", 33.66094, -95.55551, 24171),
			gazetteer.NewCity("2867714", "München", "Munchen", "DE", 48.13743, 11.57549, 1260391),
		},
		Countries: []gazetteer.Country{
			{Code: "FR", Name: "France"},
			{Code: "DE", Name: "Germany"},
			{Code: "US", Name: "United States"},
		},
	}
	cat := &catalog.Catalog{Tree: tree, URLs: urls, Gazetteer: gz}
	root := t.TempDir()
	f := fetcher.New(root, httpclient.New(5*time.Second, 1))
	return New(cat, f, nil, nil, 0), &hits, root
}

func TestLocateScopedEndToEnd(t *testing.T) {
	l, hits, root := fixture(t)
	ctx := context.Background()

	a1, err := l.Locate(ctx, Request{City: "Paris", Country: "France", Scoped: true})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if a1.Region != "Ile-de-France" {
		t.Fatalf("region = %q, want Ile-de-France", a1.Region)
	}
	if a1.Place.Point[0] != 2.3488 || a1.Place.Point[1] != 48.85341 {
		t.Fatalf("unexpected point %v", a1.Place.Point)
	}
	want := filepath.Join(root, "ile-de-france-latest-free.shp")
	if a1.Dir != want {
		t.Fatalf("dir = %q, want %q", a1.Dir, want)
	}
	if _, err := os.Stat(filepath.Join(a1.Dir, "gis_osm_roads_free_1.shp")); err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}

	a2, err := l.Locate(ctx, Request{City: "Paris", Country: "France", Scoped: true})
	if err != nil {
		t.Fatalf("second locate: %v", err)
	}
	if a2.Dir != a1.Dir {
		t.Fatalf("dirs differ: %q vs %q", a1.Dir, a2.Dir)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Fatalf("want 1 network hit, got %d", n)
	}

	// the country filter is case-insensitive; the scope must be too
	a3, err := l.Locate(ctx, Request{City: "Paris", Country: "france", Scoped: true})
	if err != nil {
		t.Fatalf("lowercase country: %v", err)
	}
	if a3.Region != "Ile-de-France" || a3.Dir != a1.Dir {
		t.Fatalf("lowercase country: region %q dir %q", a3.Region, a3.Dir)
	}
}

func TestLocateChooserIndexOutOfRange(t *testing.T) {
	l, _, _ := fixture(t)
	for _, idx := range []int{9, -1} {
		idx := idx
		l.chooser = resolver.FuncChooser(func(labels []string) (int, error) { return idx, nil })
		_, err := l.Locate(context.Background(), Request{City: "Paris", Country: "France", Interactive: true})
		if err == nil {
			t.Fatalf("index %d: expected an error", idx)
		}
	}
}

func TestLocateScopedCountryFromCode(t *testing.T) {
	l, _, _ := fixture(t)
	a, err := l.Locate(context.Background(), Request{City: "Munchen", Scoped: true})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if a.Region != "Bayern" {
		t.Fatalf("region = %q, want Bayern", a.Region)
	}
}

func TestLocateNearestCentroid(t *testing.T) {
	l, _, _ := fixture(t)
	// without a country the most populous Paris wins, then the nearest leaf centroid
	a, err := l.Locate(context.Background(), Request{City: "paris"})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if a.Region != "Ile-de-France" {
		t.Fatalf("region = %q, want Ile-de-France", a.Region)
	}
}

func TestLocateInteractiveRegionChoice(t *testing.T) {
	l, _, _ := fixture(t)
	var offered []string
	l.chooser = resolver.FuncChooser(func(labels []string) (int, error) {
		offered = labels
		return len(labels) - 1, nil
	})
	a, err := l.Locate(context.Background(), Request{City: "Paris", Country: "France", Interactive: true})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(offered) != 2 || offered[0] != "Ile-de-France" || offered[1] != "Bayern" {
		t.Fatalf("unexpected region choices %v", offered)
	}
	if a.Region != "Bayern" {
		t.Fatalf("region = %q, want the chosen Bayern", a.Region)
	}
}

func TestLocateErrors(t *testing.T) {
	l, _, _ := fixture(t)
	ctx := context.Background()

	_, err := l.Locate(ctx, Request{City: "Atlantis"})
	if !errors.Is(err, resolver.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}

	_, err = l.Locate(ctx, Request{City: "Paris", Country: "United States", Scoped: true})
	if !errors.Is(err, ErrNoRegion) {
		t.Fatalf("expected ErrNoRegion, got %v", err)
	}

	l.cat.URLs = regiontree.URLIndex{}
	_, err = l.Locate(ctx, Request{City: "Paris", Country: "France"})
	var nd *fetcher.NoDownloadError
	if !errors.As(err, &nd) || nd.Region != "Ile-de-France" {
		t.Fatalf("expected NoDownloadError for Ile-de-France, got %v", err)
	}
}

func TestCityRegions(t *testing.T) {
	l, _, _ := fixture(t)
	got, err := CityRegions(context.Background(), l.cat, l.matcher, nil)
	if err != nil {
		t.Fatalf("city regions: %v", err)
	}
	if r := got["Paris"]; len(r) != 1 || r[0] != "Ile-de-France" {
		t.Fatalf("Paris regions = %v", r)
	}
	if r := got["Munchen"]; len(r) != 1 || r[0] != "Bayern" {
		t.Fatalf("Munchen regions = %v", r)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected result %v", got)
	}
}
