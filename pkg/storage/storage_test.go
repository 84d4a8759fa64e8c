package storage

import (
	"strings"
	"testing"
)

func TestObjectNameKeepsExtension(t *testing.T) {
	a := ObjectName("Nasi Goreng.JPG")
	b := ObjectName("Nasi Goreng.JPG")

	if !strings.HasSuffix(a, ".jpg") {
		t.Fatalf("name %q lost extension", a)
	}
	if a == b {
		t.Fatal("object names must be random")
	}
	if got := ObjectName("noext"); strings.Contains(got, ".") {
		t.Fatalf("unexpected extension in %q", got)
	}
}

func TestPublicURL(t *testing.T) {
	if got := PublicURL("/api/v1/images/", "x.png"); got != "/api/v1/images/x.png" {
		t.Fatalf("PublicURL = %q", got)
	}
}
