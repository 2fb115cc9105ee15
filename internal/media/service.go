package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/storage/gcs"
)

// Service validates and stores uploaded images.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (*Upload, error)
	Delete(ctx context.Context, object string) error
}

// UploadInput is one file to store. OwnerID scopes payment proofs.
type UploadInput struct {
	Kind    enums.MediaKind
	OwnerID uuid.UUID
	Body    io.Reader
}

// Upload describes a stored object.
type Upload struct {
	Object      string `json:"object"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type service struct {
	store  gcs.Uploader
	limits Limits
	logg   *logger.Logger
}

func NewService(store gcs.Uploader, limits Limits, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if limits.MaxProofBytes <= 0 {
		limits.MaxProofBytes = 10 << 20
	}
	if limits.MaxImageBytes <= 0 {
		limits.MaxImageBytes = 5 << 20
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{store: store, limits: limits, logg: logg}, nil
}

// Upload reads at most one byte past the limit so oversize files are
// rejected without buffering them whole.
func (s *service) Upload(ctx context.Context, input UploadInput) (*Upload, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("kind must be one of: %s", kinds()))
	}
	if input.Kind == enums.MediaKindPaymentProof && input.OwnerID == uuid.Nil {
		return nil, pkgerrors.Unauthorized()
	}
	if input.Body == nil {
		return nil, s.limits.check(input.Kind, 0, "")
	}

	limit := s.limits.maxBytes(input.Kind)
	data, err := io.ReadAll(io.LimitReader(input.Body, limit+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read upload")
	}
	sniffed := mimetype.Detect(data).String()
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if err := s.limits.check(input.Kind, int64(len(data)), sniffed); err != nil {
		return nil, err
	}

	object := objectName(input.Kind, input.OwnerID, uuid.New(), sniffed)
	url, err := s.store.Upload(ctx, object, sniffed, bytes.NewReader(data))
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "object", object), "upload failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, uploadFailure(input.Kind))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"object": object, "size": len(data)}), "media uploaded")
	return &Upload{Object: object, URL: url, ContentType: sniffed, Size: int64(len(data))}, nil
}

func (s *service) Delete(ctx context.Context, object string) error {
	if strings.TrimSpace(object) == "" {
		return nil
	}
	if err := s.store.DeleteObject(ctx, "", object); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete uploaded file")
	}
	return nil
}

func objectName(kind enums.MediaKind, owner, id uuid.UUID, contentType string) string {
	name := id.String() + extensions[contentType]
	if kind == enums.MediaKindPaymentProof {
		return fmt.Sprintf("%s/%s/%s", prefixes[kind], owner, name)
	}
	return fmt.Sprintf("%s/%s", prefixes[kind], name)
}

func uploadFailure(kind enums.MediaKind) string {
	if kind == enums.MediaKindPaymentProof {
		return "failed to upload payment proof"
	}
	return "failed to upload image"
}

func kinds() string {
	out := make([]string, 0, len(prefixes))
	for _, k := range []enums.MediaKind{enums.MediaKindPaymentProof, enums.MediaKindCategory, enums.MediaKindProduct, enums.MediaKindHero} {
		out = append(out, string(k))
	}
	return strings.Join(out, ", ")
}
