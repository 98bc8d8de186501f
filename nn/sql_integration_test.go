package nn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/viant/sqlite-kd/engine"
	"github.com/viant/sqlite-kd/index"
	"github.com/viant/sqlite-kd/index/kdtree"
	"github.com/viant/sqlite-kd/point"
)

var atlanta = []point.Record{
	{ID: "A", Position: map[string]float64{"lat": 33.748995, "long": -84.387982}, Payload: "five points"},
	{ID: "B", Position: map[string]float64{"lat": 33.748996, "long": -84.387980}, Payload: "five points annex"},
	{ID: "C", Position: map[string]float64{"lat": 33.7495, "long": -84.3885}},
	{ID: "D", Position: map[string]float64{"lat": 33.76, "long": -84.39}},
	{ID: "E", Position: map[string]float64{"lat": 33.7604, "long": -84.3903}},
	{ID: "F", Position: map[string]float64{"lat": 33.77, "long": -84.4}},
	{ID: "G", Position: map[string]float64{"lat": 33.74, "long": -84.38}},
	{ID: "H", Position: map[string]float64{"lat": 33.752103, "long": -84.138643}},
}

// sharedDB is the one database the process-wide kdnn module is bound to.
var sharedDB *sql.DB

func TestMain(m *testing.M) {
	os.Exit(runWithSharedDB(m))
}

func runWithSharedDB(m *testing.M) int {
	dir, err := os.MkdirTemp("", "kdnn")
	if err != nil {
		fmt.Fprintf(os.Stderr, "MkdirTemp failed: %v\n", err)
		return 1
	}
	defer os.RemoveAll(dir)
	db, err := engine.Open(filepath.Join(dir, "kdnn.sqlite"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine.Open failed: %v\n", err)
		return 1
	}
	defer db.Close()
	// Single connection while registering and switching the journal mode.
	db.SetMaxOpenConns(1)
	if err := Register(db); err != nil {
		fmt.Fprintf(os.Stderr, "Register failed: %v\n", err)
		return 1
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		fmt.Fprintf(os.Stderr, "PRAGMA setup failed: %v\n", err)
		return 1
	}
	// Filter reads the points table on a second connection.
	db.SetMaxOpenConns(2)
	sharedDB = db
	return m.Run()
}

// createNearby populates name_points with records and creates a kdnn table
// name_nearby over it. It returns both table names.
func createNearby(t *testing.T, name, using string, records []point.Record) (points, nearby string) {
	t.Helper()
	points, nearby = name+"_points", name+"_nearby"
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING kdnn(%s, %s)`, nearby, points, using)
	if _, err := sharedDB.Exec(stmt); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			t.Skipf("kdnn module unavailable: %v", err)
		}
		t.Fatalf("CREATE VIRTUAL TABLE failed: %v", err)
	}
	ctx := context.Background()
	if err := Prepare(ctx, sharedDB, points); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	store, err := point.NewSQLiteStore(sharedDB, points)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if _, err := store.AddRecords(ctx, records); err != nil {
		t.Fatalf("AddRecords failed: %v", err)
	}
	return points, nearby
}

func createAtlanta(t *testing.T, name, kind string) (points, nearby string) {
	return createNearby(t, name, `dimensions='lat,long', weights='lat=364000,long=288200', index=`+kind, atlanta)
}

func nearestOf(t *testing.T, points, nearby, id string) (string, float64, bool) {
	t.Helper()
	var position string
	if err := sharedDB.QueryRow(`SELECT position FROM `+points+` WHERE id = ?`, id).Scan(&position); err != nil {
		t.Fatalf("lookup %s failed: %v", id, err)
	}
	var match string
	var distance float64
	err := sharedDB.QueryRow(`SELECT id, distance FROM `+nearby+` WHERE query MATCH ? AND radius = 500 AND self = ?`, position, id).Scan(&match, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false
	}
	if err != nil {
		t.Fatalf("nearest of %s failed: %v", id, err)
	}
	return match, distance, true
}

func TestRegister(t *testing.T) {
	if err := Register(sharedDB); err != nil {
		t.Fatalf("registering the same db again failed: %v", err)
	}
	other, err := engine.Open(filepath.Join(t.TempDir(), "other.sqlite"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	defer other.Close()
	if err := Register(other); err == nil || !strings.Contains(err.Error(), "another") {
		t.Fatalf("expected error registering a second db, got %v", err)
	}
	if err := Register(nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestNearbyGeographic(t *testing.T) {
	expect := map[string]string{"A": "B", "B": "A", "C": "A", "D": "E", "E": "D", "F": "", "G": "", "H": ""}
	for _, kind := range []string{"kdtree", "brute"} {
		points, nearby := createAtlanta(t, "geo_"+kind, kind)
		for _, r := range atlanta {
			match, distance, ok := nearestOf(t, points, nearby, r.ID)
			if want := expect[r.ID]; match != want {
				t.Fatalf("%s: nearest of %s = %q, want %q", kind, r.ID, match, want)
			}
			if ok && (distance < 0 || distance > 500) {
				t.Fatalf("%s: distance %v out of range", kind, distance)
			}
		}
	}
}

func TestNearbyQueryForms(t *testing.T) {
	_, nearby := createAtlanta(t, "forms", "kdtree")
	blob, err := point.EncodeCoordinates([]float64{33.748995, -84.387982})
	if err != nil {
		t.Fatalf("EncodeCoordinates failed: %v", err)
	}
	for _, q := range []interface{}{blob, `[33.748995, -84.387982]`, `33.748995,-84.387982`, `{"lat":33.748995,"long":-84.387982}`} {
		var id, payload string
		if err := sharedDB.QueryRow(`SELECT id, payload FROM `+nearby+` WHERE query MATCH ? AND radius = ?`, q, 500.0).Scan(&id, &payload); err != nil {
			t.Fatalf("query %v failed: %v", q, err)
		}
		// Without self exclusion the exact match wins at distance zero.
		if id != "A" || payload != "five points" {
			t.Fatalf("query %v: got %s/%q, want A", q, id, payload)
		}
	}
}

func TestNearbyRequiresRadius(t *testing.T) {
	_, nearby := createAtlanta(t, "plan", "brute")
	_, err := sharedDB.Query(`SELECT id FROM ` + nearby + ` WHERE query MATCH '[33.7,-84.3]'`)
	if err == nil {
		t.Fatalf("expected planning error without radius")
	}
	var id string
	err = sharedDB.QueryRow(`SELECT id FROM ` + nearby + ` WHERE query MATCH '[33.7,-84.3]' AND radius = 0`).Scan(&id)
	if err == nil || !strings.Contains(err.Error(), "distance") {
		t.Fatalf("expected invalid distance error, got %v", err)
	}
}

func TestNearbyPersistsAndInvalidates(t *testing.T) {
	points, nearby := createAtlanta(t, "persist", "kdtree")
	ctx := context.Background()
	if match, _, _ := nearestOf(t, points, nearby, "G"); match != "" {
		t.Fatalf("G should have no neighbour, got %q", match)
	}

	var blob []byte
	var kind string
	if err := sharedDB.QueryRow(`SELECT kind, "index" FROM kd_storage WHERE source_table = ? AND dimensions = 'lat,long'`, points).Scan(&kind, &blob); err != nil {
		t.Fatalf("kd_storage lookup failed: %v", err)
	}
	if index.Magic(blob) != kdtree.Magic || kind != "kdtree" {
		t.Fatalf("unexpected persisted index %q of kind %q", index.Magic(blob), kind)
	}
	idx, ok, err := LoadPersisted(ctx, sharedDB, points, []string{"lat", "long"}, kindKDTree)
	if err != nil || !ok {
		t.Fatalf("LoadPersisted = %v, %v", ok, err)
	}
	if idx.Len() != len(atlanta) {
		t.Fatalf("persisted index has %d records, want %d", idx.Len(), len(atlanta))
	}
	if _, ok, _ := LoadPersisted(ctx, sharedDB, points, []string{"long", "lat"}, kindKDTree); ok {
		t.Fatalf("index must not load for a different dimension order")
	}
	if _, ok, _ := LoadPersisted(ctx, sharedDB, points, []string{"lat", "long"}, kindBrute); ok {
		t.Fatalf("k-d tree blob must not load as brute force")
	}

	// A neighbour for G appears; the trigger drops the stored and cached index.
	if _, err := sharedDB.Exec(`INSERT INTO `+points+`(id, position) VALUES('G2', '{"lat":33.740001,"long":-84.380001}')`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	blob = nil
	if err := sharedDB.QueryRow(`SELECT "index" FROM kd_storage WHERE source_table = ?`, points).Scan(&blob); err != nil {
		t.Fatalf("kd_storage lookup failed: %v", err)
	}
	if len(blob) != 0 {
		t.Fatalf("expected persisted index to be cleared by trigger")
	}
	if match, _, _ := nearestOf(t, points, nearby, "G"); match != "G2" {
		t.Fatalf("after rebuild nearest of G = %q, want G2", match)
	}
}

func TestNearbyAutoTies(t *testing.T) {
	origin := []point.Record{
		{ID: "P0", Position: map[string]float64{"x": 0, "y": 0}},
		{ID: "P1", Position: map[string]float64{"x": 0, "y": 0}},
		{ID: "P2", Position: map[string]float64{"x": 0, "y": 0}},
	}
	tree := kdtree.New()
	if err := tree.Build([]string{"x", "y"}, origin); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want, err := tree.Nearest(index.Query{Position: map[string]float64{"x": 0, "y": 0}, MaxDistance: 1})
	if err != nil || want == nil {
		t.Fatalf("tree Nearest = %v, %v", want, err)
	}

	testCases := []struct {
		description string
		kind        string
		expect      string
	}{
		{description: "auto answers like the k-d tree", kind: "auto", expect: want.ID},
		{description: "k-d tree takes the median first", kind: "kdtree", expect: "P1"},
		{description: "brute force takes the first inserted", kind: "brute", expect: "P0"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			_, nearby := createNearby(t, "ties_"+testCase.kind, `dimensions='x,y', index=`+testCase.kind, origin)
			var id string
			if err := sharedDB.QueryRow(`SELECT id FROM `+nearby+` WHERE query MATCH '[0,0]' AND radius = 1`).Scan(&id); err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if id != testCase.expect {
				t.Fatalf("nearest = %q, want %q", id, testCase.expect)
			}
		})
	}
}
