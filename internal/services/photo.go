package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"blinddate-backend/internal/config"
	"blinddate-backend/internal/models"
	"blinddate-backend/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const uploadExpiry = 5 * time.Minute

// Presigner signs S3 uploads. *s3.PresignClient satisfies it.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// PhotoService hands out presigned upload URLs for profile pictures
type PhotoService struct {
	students  *repository.StudentRepository
	presigner Presigner
	bucket    string
	publicURL string
}

// NewPhotoService creates a photo service backed by S3. Static keys are
// used when configured, otherwise the default AWS credential chain.
func NewPhotoService(ctx context.Context, students *repository.StudentRepository, cfg config.AWSConfig) (*PhotoService, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		publicURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.S3Bucket
	}
	return newPhotoService(students, s3.NewPresignClient(client), cfg.S3Bucket, publicURL), nil
}

func newPhotoService(students *repository.StudentRepository, presigner Presigner, bucket, publicURL string) *PhotoService {
	return &PhotoService{
		students:  students,
		presigner: presigner,
		bucket:    bucket,
		publicURL: publicURL,
	}
}

// UploadResponse carries the presigned URL and where the photo will live
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	PhotoURL  string `json:"photo_url"`
	ExpiresIn int    `json:"expires_in"`
}

// PresignUpload returns a URL the student can PUT a JPEG to for five minutes
func (s *PhotoService) PresignUpload(ctx context.Context, studentID, contentType string) (*UploadResponse, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, invalid("Only image uploads are allowed.")
	}
	if _, err := s.student(ctx, studentID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("profiles/%s/%s.jpg", studentID, uuid.New().String())
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return &UploadResponse{
		UploadURL: req.URL,
		Key:       key,
		PhotoURL:  s.publicURL + "/" + key,
		ExpiresIn: int(uploadExpiry / time.Second),
	}, nil
}

// Confirm records an uploaded photo as the student's profile picture
func (s *PhotoService) Confirm(ctx context.Context, studentID, key string) (*models.Student, error) {
	if !strings.HasPrefix(key, "profiles/"+studentID+"/") {
		return nil, invalid("Photo does not belong to this student.")
	}
	photoURL := s.publicURL + "/" + key
	if err := s.students.UpdateFields(ctx, studentID, map[string]any{"profilePicUrl": photoURL}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, &StorageError{Op: "save profile picture", Err: err}
	}
	log.Info().Str("student_id", studentID).Msg("Profile picture updated")
	return s.student(ctx, studentID)
}

func (s *PhotoService) student(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, &StorageError{Op: "load student", Err: err}
	}
	return student, nil
}
