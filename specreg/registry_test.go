package specreg

import "testing"

func mustBundle(t *testing.T) Bundle {
	t.Helper()
	b, err := LoadEmbeddedBundle()
	if err != nil {
		t.Fatalf("LoadEmbeddedBundle: %v", err)
	}
	return b
}

func TestEmbeddedBundleLoads(t *testing.T) {
	b := mustBundle(t)
	if len(b.Vendors) < 3 {
		t.Fatalf("expected at least 3 embedded vendors, got %d", len(b.Vendors))
	}
}

func TestResolveCanonicalLexicographicTieBreak(t *testing.T) {
	b := Bundle{Vendors: []VendorSpec{
		{Name: "AVendor", Channels: []ChannelSpec{{CanonicalID: "Zeta", Aliases: []string{"shared"}}}},
		{Name: "BVendor", Channels: []ChannelSpec{{CanonicalID: "Alpha", Aliases: []string{"shared"}}}},
	}}
	r, err := New(b, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, ok := r.ResolveCanonical("shared")
	if !ok {
		t.Fatal("expected a resolution")
	}
	if got != "Alpha" {
		t.Fatalf("expected lexicographically-first canonical 'Alpha', got %q", got)
	}
}

func TestResolveCanonicalVendorHintWins(t *testing.T) {
	b := Bundle{Vendors: []VendorSpec{
		{Name: "AVendor", Channels: []ChannelSpec{{CanonicalID: "Zeta", Aliases: []string{"shared"}}}},
		{Name: "BVendor", Channels: []ChannelSpec{{CanonicalID: "Alpha", Aliases: []string{"shared"}}}},
	}}
	r, err := New(b, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, ok := r.ResolveCanonicalForVendor("shared", "AVendor")
	if !ok || got != "Zeta" {
		t.Fatalf("expected vendor hint to win with Zeta, got %q ok=%v", got, ok)
	}
}

func TestResolveCanonicalCaseInsensitive(t *testing.T) {
	r, err := New(mustBundle(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, ok := r.ResolveCanonical("act_afr")
	if !ok || got != "AFR" {
		t.Fatalf("expected AFR, got %q ok=%v", got, ok)
	}
}

func TestMetadataLookup(t *testing.T) {
	r, err := New(mustBundle(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	spec, ok := r.Metadata("RPM")
	if !ok {
		t.Fatal("expected RPM metadata")
	}
	if spec.CanonicalUnit != "rpm" {
		t.Fatalf("expected unit rpm, got %q", spec.CanonicalUnit)
	}
}

func TestAdaptersForExtension(t *testing.T) {
	r, err := New(mustBundle(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vendors := r.AdaptersForExtension(".csv")
	if len(vendors) == 0 {
		t.Fatal("expected at least one csv vendor adapter")
	}
	for _, v := range vendors {
		if v.Name == "CANProtocol" {
			t.Fatal("protocol spec must never be returned as a file-format adapter")
		}
	}
}

func TestRefreshAtomicSwap(t *testing.T) {
	r, err := New(mustBundle(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	newBundle := Bundle{Vendors: []VendorSpec{
		{Name: "Solo", Channels: []ChannelSpec{{CanonicalID: "Solo1", Aliases: []string{"solo"}}}},
	}}
	if err := r.Refresh(newBundle); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := r.ResolveCanonical("RPM"); ok {
		t.Fatal("expected old aliases to be gone after refresh")
	}
	if got, ok := r.ResolveCanonical("solo"); !ok || got != "Solo1" {
		t.Fatalf("expected new alias to resolve, got %q ok=%v", got, ok)
	}
}

func TestRefreshFailureRetainsPriorSnapshot(t *testing.T) {
	r, err := New(mustBundle(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Refresh(Bundle{}); err == nil {
		t.Fatal("expected empty bundle refresh to fail")
	}
	if _, ok := r.ResolveCanonical("RPM"); !ok {
		t.Fatal("expected prior snapshot to survive a failed refresh")
	}
}
