//go:build integration

// Integration test for the API client.
// Requires a running server: go run ./cmd/buildings
//
// Run: go test -tags=integration ./pkg/buildingsclient/
package buildingsclient_test

import (
	"context"
	"os"
	"testing"

	"github.com/joeblew999/plat-buildings/pkg/buildingsclient"
)

func baseURL() string {
	if u := os.Getenv("BUILDINGS_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8087"
}

func client() *buildingsclient.Client {
	return buildingsclient.New(baseURL())
}

func TestHealth(t *testing.T) {
	_, body, err := client().Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
}

func TestGetInfo(t *testing.T) {
	_, body, err := client().GetInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if body.Name != "plat-buildings" {
		t.Fatalf("name=%q, want plat-buildings", body.Name)
	}
}

func TestCovering(t *testing.T) {
	_, body, err := client().Covering(context.Background(),
		"POLYGON ((36.0 -1.1, 36.2 -1.1, 36.2 -0.9, 36.0 -0.9, 36.0 -1.1))")
	if err != nil {
		t.Fatal(err)
	}
	if body.Count == 0 || len(body.Tokens) != body.Count {
		t.Fatalf("covering=%+v", body)
	}
}

func TestResults(t *testing.T) {
	_, _, err := client().Results(context.Background())
	if err != nil {
		t.Fatal(err)
	}
}

func TestQuery(t *testing.T) {
	_, body, err := client().Query(context.Background(), "SELECT 1 as ok")
	if err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 {
		t.Fatalf("count=%d, want 1", body.Count)
	}
}
