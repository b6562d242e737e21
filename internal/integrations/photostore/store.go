// Package photostore issues the first half of the photo upload handshake: a
// presigned PUT location plus the object key the chat flow later hands to
// the dialog engine. Bytes never pass through this service.
package photostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const defaultExpiry = 5 * time.Minute

// extensions maps the accepted image MIME types to object key suffixes.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// presignAPI is the minimal presigner interface required by Store.
// *s3.PresignClient satisfies it.
type presignAPI interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Ticket is a single-use upload grant.
type Ticket struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// Store issues upload tickets against one bucket.
type Store struct {
	presigner presignAPI
	bucket    string
	expiry    time.Duration
	newID     func() string
}

func New(presigner presignAPI, bucket string) (*Store, error) {
	if presigner == nil {
		return nil, errors.New("photostore: presigner must not be nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("photostore: bucket must not be empty")
	}
	return &Store{
		presigner: presigner,
		bucket:    bucket,
		expiry:    defaultExpiry,
		newID:     uuid.NewString,
	}, nil
}

// NewUploadTicket presigns a PUT for one photo of the given species and
// content type. Unknown species fall back to Dog, matching the booking
// flow's historical default.
func (s *Store) NewUploadTicket(ctx context.Context, species, contentType string) (Ticket, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return Ticket{}, fmt.Errorf("photostore: unsupported content type %q", contentType)
	}

	key := "uploads/" + normalizeSpecies(species) + "/" + s.newID() + ext

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return Ticket{}, fmt.Errorf("photostore: presign put: %w", err)
	}

	return Ticket{UploadURL: req.URL, Key: key}, nil
}

// normalizeSpecies title-cases the slot value ("dog" -> "Dog") so object
// keys group consistently.
func normalizeSpecies(species string) string {
	species = strings.TrimSpace(species)
	if species == "" {
		return "Dog"
	}
	return strings.ToUpper(species[:1]) + strings.ToLower(species[1:])
}
