// Package revalidate tells the rendering tier which pages and cache tags went
// stale after a successful mutation.
package revalidate

import (
	"context"
	"fmt"
	"time"

	"github.com/stmary/giftshop-backend/pkg/logger"
)

// Channel carries revalidation notices as JSON.
const Channel = "gs:revalidate"

const (
	PathHome            = "/"
	PathProducts        = "/products"
	PathCart            = "/cart"
	PathCheckout        = "/checkout"
	PathOrders          = "/orders"
	PathAdminOrders     = "/admin/orders"
	PathAdminProducts   = "/admin/products"
	PathAdminCategories = "/admin/categories"
	PathAdminSettings   = "/admin/settings"
	PathAccountEdit     = "/account/edit"
	PathAccount         = "/account"

	TagStoreSettings = "store-settings"
)

// OrderPath is the detail page of one order.
func OrderPath(id fmt.Stringer) string {
	return PathOrders + "/" + id.String()
}

// ProductPath is the detail page of one product.
func ProductPath(id fmt.Stringer) string {
	return PathProducts + "/" + id.String()
}

// Notice is the message published on Channel.
type Notice struct {
	Paths []string  `json:"paths,omitempty"`
	Tags  []string  `json:"tags,omitempty"`
	At    time.Time `json:"at"`
}

// Revalidator is what services depend on.
type Revalidator interface {
	Paths(ctx context.Context, paths ...string)
	Tags(ctx context.Context, tags ...string)
}

type store interface {
	InvalidateTag(ctx context.Context, tag string) (int, error)
	Publish(ctx context.Context, channel string, payload any) error
}

// Service deletes tagged redis keys and announces stale paths. Failures are
// logged and never returned.
type Service struct {
	store store
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(store store, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{store: store, logg: logg, now: time.Now}
}

func (s *Service) Paths(ctx context.Context, paths ...string) {
	if s == nil || len(paths) == 0 {
		return
	}
	s.publish(ctx, Notice{Paths: dedupe(paths)})
}

func (s *Service) Tags(ctx context.Context, tags ...string) {
	if s == nil || len(tags) == 0 {
		return
	}
	tags = dedupe(tags)
	if s.store != nil {
		for _, tag := range tags {
			removed, err := s.store.InvalidateTag(ctx, tag)
			if err != nil {
				s.logg.Error(s.logg.WithField(ctx, "tag", tag), "revalidate tag failed", err)
				continue
			}
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{"tag": tag, "removed": removed}), "tag invalidated")
		}
	}
	s.publish(ctx, Notice{Tags: tags})
}

func (s *Service) publish(ctx context.Context, notice Notice) {
	if s.store == nil {
		return
	}
	notice.At = s.now().UTC()
	if err := s.store.Publish(ctx, Channel, notice); err != nil {
		s.logg.Error(ctx, "publish revalidation notice failed", err)
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Nop discards every notice.
type Nop struct{}

func (Nop) Paths(context.Context, ...string) {}
func (Nop) Tags(context.Context, ...string)  {}

// Recorder keeps notices in memory for tests.
type Recorder struct {
	PathCalls [][]string
	TagCalls  [][]string
}

func (r *Recorder) Paths(_ context.Context, paths ...string) {
	r.PathCalls = append(r.PathCalls, append([]string(nil), paths...))
}

func (r *Recorder) Tags(_ context.Context, tags ...string) {
	r.TagCalls = append(r.TagCalls, append([]string(nil), tags...))
}

// AllPaths flattens every recorded path in call order.
func (r *Recorder) AllPaths() []string {
	var out []string
	for _, call := range r.PathCalls {
		out = append(out, call...)
	}
	return out
}
