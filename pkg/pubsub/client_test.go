package pubsub

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stmary/giftshop-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	c := &Client{project: "giftshop-prod"}

	cases := []struct {
		kind, id, want string
	}{
		{"topics", "giftshop-order-events", "projects/giftshop-prod/topics/giftshop-order-events"},
		{"subscriptions", " giftshop-order-emails ", "projects/giftshop-prod/subscriptions/giftshop-order-emails"},
		{"topics", "projects/other/topics/t", "projects/other/topics/t"},
		{"subscriptions", "projects/other/topics/t", "projects/giftshop-prod/subscriptions/projects/other/topics/t"},
		{"topics", "", ""},
	}
	for _, tc := range cases {
		if got := c.resource(tc.kind, tc.id); got != tc.want {
			t.Fatalf("resource(%q, %q) = %q, want %q", tc.kind, tc.id, got, tc.want)
		}
	}
	if got := (&Client{}).resource("topics", "t"); got != "" {
		t.Fatalf("expected empty without project, got %s", got)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "  "}, config.PubSubConfig{}, Options{}, nil)
	if !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected default credentials, got %d options", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/key.json"}); len(opts) != 1 {
		t.Fatalf("expected a single credentials option, got %d", len(opts))
	}
}

func TestDescribeLookup(t *testing.T) {
	if err := describeLookup("topic", "t", nil); err != nil {
		t.Fatalf("nil lookup error should pass, got %v", err)
	}
	missing := describeLookup("topic", "projects/p/topics/t", status.Error(codes.NotFound, "gone"))
	if missing == nil || missing.Error() != "pubsub: topic projects/p/topics/t does not exist" {
		t.Fatalf("unexpected not-found message %v", missing)
	}
	denied := status.Error(codes.PermissionDenied, "nope")
	if err := describeLookup("subscription", "s", denied); !errors.Is(err, denied) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil || c.OrdersSubscription() != nil {
		t.Fatal("expected nil handles from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
}
