package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"blinddate-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	input   *s3.PutObjectInput
	expires time.Duration
	err     error
}

func (p *fakePresigner) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	p.input = params
	p.expires = opts.Expires
	return &v4.PresignedHTTPRequest{
		URL:    "https://bucket.example/" + aws.ToString(params.Key) + "?sig=abc",
		Method: "PUT",
	}, nil
}

func TestPresignUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStudent(t, "01001", "Kofi", models.GenderMale)
	presigner := &fakePresigner{}
	svc := newPhotoService(f.students, presigner, "photos", "https://cdn.example")

	resp, err := svc.PresignUpload(ctx, "01001", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Key, "profiles/01001/"))
	assert.True(t, strings.HasSuffix(resp.Key, ".jpg"))
	assert.Equal(t, "https://cdn.example/"+resp.Key, resp.PhotoURL)
	assert.Equal(t, 300, resp.ExpiresIn)
	assert.Contains(t, resp.UploadURL, resp.Key)

	assert.Equal(t, "photos", aws.ToString(presigner.input.Bucket))
	assert.Equal(t, "image/jpeg", aws.ToString(presigner.input.ContentType))
	assert.Equal(t, 5*time.Minute, presigner.expires)

	var ve *ValidationError
	_, err = svc.PresignUpload(ctx, "01001", "application/pdf")
	assert.ErrorAs(t, err, &ve)

	_, err = svc.PresignUpload(ctx, "09999", "image/png")
	assert.ErrorIs(t, err, ErrStudentNotFound)

	presigner.err = errors.New("no credentials")
	_, err = svc.PresignUpload(ctx, "01001", "image/png")
	assert.Error(t, err)
}

func TestConfirmPhoto(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStudent(t, "01001", "Kofi", models.GenderMale)
	svc := newPhotoService(f.students, &fakePresigner{}, "photos", "https://cdn.example")

	student, err := svc.Confirm(ctx, "01001", "profiles/01001/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/profiles/01001/abc.jpg", student.ProfilePicURL)

	var ve *ValidationError
	_, err = svc.Confirm(ctx, "01001", "profiles/01002/abc.jpg")
	assert.ErrorAs(t, err, &ve)

	_, err = svc.Confirm(ctx, "09999", "profiles/09999/abc.jpg")
	assert.ErrorIs(t, err, ErrStudentNotFound)
}
