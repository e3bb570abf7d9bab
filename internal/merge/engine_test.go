package merge

import (
	"encoding/json"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
)

var testDate = time.Date(2025, 7, 27, 0, 0, 0, 0, time.UTC)

func obs(asin, store, country, region string, fbaAvail, fbaInbound, local, sales7 int64) model.Observation {
	prefix := store
	if i := len(store) - len(country) - 1; i > 0 && store[i] == '-' {
		prefix = store[:i]
	}
	return model.Observation{
		ASIN:           asin,
		StoreName:      store,
		StorePrefix:    prefix,
		Country:        country,
		Region:         region,
		DataDate:       testDate,
		FBAAvailable:   fbaAvail,
		FBAInbound:     fbaInbound,
		LocalAvailable: local,
		Sales7Days:     sales7,
	}
}

func scenarioEU() []model.Observation {
	return []model.Observation{
		obs("B01EU", "01 VivaJoy-DE", "DE", model.RegionEU, 100, 50, 30, 14),
		obs("B01EU", "01 VivaJoy-FR", "FR", model.RegionEU, 60, 20, 40, 7),
		obs("B01EU", "02 MumEZ-DE", "DE", model.RegionEU, 120, 60, 10, 21),
		obs("B01EU", "02 MumEZ-IT", "IT", model.RegionEU, 90, 40, 25, 14),
	}
}

func TestMergeEUTwoStage(t *testing.T) {
	points, skipped := NewEngine().Merge(testDate, scenarioEU())
	if skipped != 0 {
		t.Fatalf("unexpected skipped rows: %d", skipped)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	p := points[0]
	if p.Region != model.RegionEU || p.MergeType != model.MergeTypeEU {
		t.Fatalf("unexpected region/merge type: %s/%s", p.Region, p.MergeType)
	}
	if p.FBAAvailable != 220 || p.FBAInbound != 110 {
		t.Fatalf("fba = %d/%d, want 220/110", p.FBAAvailable, p.FBAInbound)
	}
	if p.LocalAvailable != 30 {
		t.Fatalf("local = %d, want max of representatives 30", p.LocalAvailable)
	}
	if p.TotalInventory != 360 {
		t.Fatalf("total = %d, want 360", p.TotalInventory)
	}
	if p.Sales7Days != 35 {
		t.Fatalf("sales_7days = %d, want 35", p.Sales7Days)
	}
	if p.StoreCount != 2 || !reflect.DeepEqual([]string(p.MergedStores), []string{"01 VivaJoy", "02 MumEZ"}) {
		t.Fatalf("merged stores = %v (%d)", p.MergedStores, p.StoreCount)
	}
	if p.Store != "EU aggregate" || p.InventoryPointName != "B01EU-EU" {
		t.Fatalf("store=%q name=%q", p.Store, p.InventoryPointName)
	}
}

func TestRepresentativeTieBreaks(t *testing.T) {
	// equal stock: higher 7-day sales wins
	reps := SelectRepresentatives([]model.Observation{
		obs("A", "S-DE", "DE", model.RegionEU, 10, 0, 0, 1),
		obs("A", "S-FR", "FR", model.RegionEU, 10, 0, 0, 5),
	})
	if len(reps) != 1 || reps[0].Country != "FR" {
		t.Fatalf("expected FR by sales, got %+v", reps)
	}

	// equal stock and sales: smaller country code wins
	reps = SelectRepresentatives([]model.Observation{
		obs("A", "S-IT", "IT", model.RegionEU, 10, 0, 0, 5),
		obs("A", "S-ES", "ES", model.RegionEU, 10, 0, 0, 5),
	})
	if reps[0].Country != "ES" {
		t.Fatalf("expected ES by country code, got %s", reps[0].Country)
	}
}

func TestMergeNonEUSumsLocal(t *testing.T) {
	in := []model.Observation{
		obs("B02US", "01 VivaJoy-US", "US", "US", 200, 0, 50, 0),
		obs("B02US", "02 MumEZ-US", "US", "US", 150, 0, 40, 0),
	}
	points, _ := NewEngine().Merge(testDate, in)
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	p := points[0]
	if p.Region != "US" || p.MergeType != model.MergeTypeCountry {
		t.Fatalf("unexpected region/merge type: %s/%s", p.Region, p.MergeType)
	}
	if p.FBAAvailable != 350 || p.LocalAvailable != 90 {
		t.Fatalf("fba=%d local=%d, want 350/90", p.FBAAvailable, p.LocalAvailable)
	}
	if p.Store != "US aggregate" || p.StoreCount != 2 {
		t.Fatalf("store=%q count=%d", p.Store, p.StoreCount)
	}
}

func TestMergeNonEUSingleStoreKeepsStoreName(t *testing.T) {
	in := []model.Observation{
		obs("B03UK", "01 VivaJoy-UK", "UK", "UK", 5, 1, 2, 0),
		obs("B03UK", "01 VivaJoy-UK", "UK", "UK", 3, 0, 4, 0),
	}
	points, _ := NewEngine().Merge(testDate, in)
	p := points[0]
	if p.Store != "01 VivaJoy-UK" || p.StoreCount != 1 {
		t.Fatalf("store=%q count=%d", p.Store, p.StoreCount)
	}
	if p.FBAAvailable != 8 || p.LocalAvailable != 6 {
		t.Fatalf("fba=%d local=%d", p.FBAAvailable, p.LocalAvailable)
	}
}

func TestMergeSplitsRegionsAndSorts(t *testing.T) {
	in := []model.Observation{
		obs("B2", "01 VivaJoy-US", "US", "US", 1, 0, 0, 0),
		obs("B1", "01 VivaJoy-UK", "UK", "UK", 1, 0, 0, 0),
		obs("B1", "01 VivaJoy-DE", "DE", model.RegionEU, 1, 0, 0, 0),
		obs("B1", "01 VivaJoy-US", "US", "US", 1, 0, 0, 0),
		obs("B9", "Shop", "", model.RegionUnknown, 1, 0, 0, 0),
	}
	points, skipped := NewEngine().Merge(testDate, in)
	if skipped != 1 {
		t.Fatalf("expected the UNKNOWN row to be skipped, got %d", skipped)
	}
	var keys []string
	for _, p := range points {
		keys = append(keys, p.Region+"/"+p.ASIN)
	}
	want := []string{"EU/B1", "UK/B1", "US/B1", "US/B2"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func TestMergeLocalRules(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 50; iter++ {
		var in, eu []model.Observation
		var wantUSLocal int64
		for _, shop := range []string{"01 A", "02 B", "03 C"} {
			for _, c := range []string{"DE", "FR"} {
				o := obs("X", shop+"-"+c, c, model.RegionEU, rng.Int63n(100), rng.Int63n(100), rng.Int63n(100), rng.Int63n(5))
				in = append(in, o)
				eu = append(eu, o)
			}
			us := obs("X", shop+"-US", "US", "US", 1, 1, rng.Int63n(100), 0)
			in = append(in, us)
			wantUSLocal += us.LocalAvailable
		}

		var wantEULocal int64
		for _, r := range SelectRepresentatives(eu) {
			wantEULocal = max(wantEULocal, r.LocalAvailable)
		}

		points, _ := NewEngine().Merge(testDate, in)
		if len(points) != 2 {
			t.Fatalf("expected EU and US points, got %d", len(points))
		}
		for _, p := range points {
			if p.TotalInventory != p.FBAAvailable+p.FBAInbound+p.LocalAvailable {
				t.Fatalf("identity broken: %+v", p)
			}
			switch p.Region {
			case model.RegionEU:
				if p.LocalAvailable != wantEULocal {
					t.Fatalf("EU local = %d, want %d", p.LocalAvailable, wantEULocal)
				}
			case "US":
				if p.LocalAvailable != wantUSLocal {
					t.Fatalf("US local = %d, want %d", p.LocalAvailable, wantUSLocal)
				}
			}
		}
	}
}

func TestMergeDisplayFallback(t *testing.T) {
	a := obs("B1", "01 A-DE", "DE", model.RegionEU, 1, 0, 0, 0)
	a.ProductName = "Bottle"
	a.SalesPerson = "Alice"
	b := obs("B1", "02 B-DE", "DE", model.RegionEU, 50, 0, 0, 0)
	b.SalesPerson = "Bob"

	points, _ := NewEngine().Merge(testDate, []model.Observation{a, b})
	p := points[0]
	if p.SalesPerson != "Bob" {
		t.Fatalf("sales person should come from the best-stocked shop, got %q", p.SalesPerson)
	}
	if p.ProductName != "Bottle" {
		t.Fatalf("blank product name should fall back to another shop, got %q", p.ProductName)
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	in := scenarioEU()
	in = append(in,
		obs("B02US", "01 VivaJoy-US", "US", "US", 200, 0, 50, 3),
		obs("B02US", "02 MumEZ-US", "US", "US", 150, 0, 40, 3),
		obs("B01EU", "03 Tie-DE", "DE", model.RegionEU, 10, 0, 1, 1),
		obs("B01EU", "03 Tie-FR", "FR", model.RegionEU, 10, 0, 9, 1),
	)
	for i := range in {
		in[i].SalesAmount = 10.1 * float64(i+1)
		in[i].AdSpend = 0.3 * float64(i+1)
	}

	want, _ := json.Marshal(first(NewEngine().Merge(testDate, in)))
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := append([]model.Observation(nil), in...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, _ := json.Marshal(first(NewEngine().Merge(testDate, shuffled)))
		if string(got) != string(want) {
			t.Fatalf("output changed after shuffle:\n%s\n%s", got, want)
		}
	}
}

func first(points []model.InventoryPoint, _ int) []model.InventoryPoint {
	return points
}
