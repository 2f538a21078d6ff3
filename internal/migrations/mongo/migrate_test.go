package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func findIndex(def Collection, first string) (bson.D, bool, *int32, bool) {
	for _, idx := range def.Indexes {
		keys, ok := idx.Keys.(bson.D)
		if !ok || len(keys) == 0 || keys[0].Key != first {
			continue
		}
		var unique bool
		var ttl *int32
		if idx.Options != nil {
			if idx.Options.Unique != nil {
				unique = *idx.Options.Unique
			}
			ttl = idx.Options.ExpireAfterSeconds
		}
		return keys, unique, ttl, true
	}
	return nil, false, nil, false
}

func TestCollections(t *testing.T) {
	collections := Collections()

	for _, name := range []string{"Courts", "Bookings", "Payments", "Memberships", "Booking_locks"} {
		def, ok := collections[name]
		if !ok {
			t.Errorf("missing collection %s", name)
			continue
		}
		if _, ok := def.Validator["$jsonSchema"]; !ok {
			t.Errorf("collection %s has no $jsonSchema validator", name)
		}
		if len(def.Indexes) == 0 {
			t.Errorf("collection %s has no indexes", name)
		}
	}
}

func TestIndexes(t *testing.T) {
	collections := Collections()

	tests := []struct {
		collection string
		firstKey   string
		wantKeys   []string
		wantUnique bool
		wantTTL    bool
	}{
		{collection: "Courts", firstKey: "code", wantKeys: []string{"code"}, wantUnique: true},
		{collection: "Bookings", firstKey: "reference", wantKeys: []string{"reference"}, wantUnique: true},
		{collection: "Bookings", firstKey: "court_id", wantKeys: []string{"court_id", "start_time", "end_time", "status"}},
		{collection: "Payments", firstKey: "booking_id", wantKeys: []string{"booking_id"}, wantUnique: true},
		{collection: "Booking_locks", firstKey: "expires_at", wantKeys: []string{"expires_at"}, wantTTL: true},
	}

	for _, tt := range tests {
		t.Run(tt.collection+"/"+tt.firstKey, func(t *testing.T) {
			keys, unique, ttl, ok := findIndex(collections[tt.collection], tt.firstKey)
			if !ok {
				t.Fatalf("no index starting with %s", tt.firstKey)
			}
			if len(keys) != len(tt.wantKeys) {
				t.Fatalf("expected keys %v, got %v", tt.wantKeys, keys)
			}
			for i, k := range tt.wantKeys {
				if keys[i].Key != k {
					t.Errorf("key %d: expected %s, got %s", i, k, keys[i].Key)
				}
			}
			if unique != tt.wantUnique {
				t.Errorf("expected unique=%v, got %v", tt.wantUnique, unique)
			}
			if tt.wantTTL && (ttl == nil || *ttl != 0) {
				t.Errorf("expected TTL index expiring at expires_at, got %v", ttl)
			}
		})
	}
}
