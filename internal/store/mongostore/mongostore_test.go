package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/mmcdole/harvester/internal/domain"
)

func TestConnectionURI(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{}, "mongodb://localhost:27017"},
		{Config{Host: "db.internal", Port: 27018}, "mongodb://db.internal:27018"},
		{Config{URI: "mongodb://u:p@rs0/?replicaSet=rs0", Host: "ignored"}, "mongodb://u:p@rs0/?replicaSet=rs0"},
	}
	for _, tt := range tests {
		if got := tt.cfg.ConnectionURI(); got != tt.want {
			t.Errorf("ConnectionURI(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}

func TestOpenRequiresCollection(t *testing.T) {
	_, err := Open(context.Background(), Config{Database: "jd"})
	if !errors.Is(err, domain.ErrConnection) {
		t.Fatalf("got %v, want ErrConnection", err)
	}
}

// TestUpsertIntegration runs against a live server when HARVESTER_TEST_MONGO_URI is set.
func TestUpsertIntegration(t *testing.T) {
	uri := os.Getenv("HARVESTER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("HARVESTER_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	coll := "comments_test_" + time.Now().Format("150405.000000")
	s, err := Open(ctx, Config{URI: uri, Database: "harvester_test", Collection: coll})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() {
		s.coll.Drop(ctx)
		s.Close()
	}()

	rec := domain.Record{"_id": json.Number("7"), "id": json.Number("7"), "content": "x"}
	for i := 0; i < 2; i++ {
		if err := s.UpsertByIdentity(ctx, rec); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count: got %d, want 1", n)
	}
}
