package storage

import (
	"fmt"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

var (
	s3Session     *session.Session
	s3Bucket      string
	s3Region      string
	cloudFrontURL string
	useS3         bool
)

func InitS3(bucket, region, cloudfront string) error {
	if bucket == "" || region == "" {
		return fmt.Errorf("S3_BUCKET and S3_REGION are required for S3 storage")
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return err
	}

	s3Session = sess
	s3Bucket = bucket
	s3Region = region
	cloudFrontURL = strings.TrimSuffix(cloudfront, "/")
	useS3 = true
	return nil
}

func uploadToS3(file *multipart.FileHeader, folder string) (string, error) {
	if s3Session == nil {
		return "", fmt.Errorf("S3 not initialized")
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	key := objectName(folder, file.Filename)

	_, err = s3.New(s3Session).PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s3Bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(file.Header.Get("Content-Type")),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", err
	}

	return publicURL(key), nil
}

func publicURL(key string) string {
	if cloudFrontURL != "" {
		return cloudFrontURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s3Bucket, s3Region, key)
}

func deleteFromS3(rawURL string) error {
	if s3Session == nil {
		return fmt.Errorf("S3 not initialized")
	}

	key, err := keyFromURL(rawURL)
	if err != nil {
		return err
	}

	_, err = s3.New(s3Session).DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s3Bucket),
		Key:    aws.String(key),
	})
	return err
}

// keyFromURL strips the CloudFront or bucket host from an object URL.
func keyFromURL(rawURL string) (string, error) {
	if cloudFrontURL != "" && strings.HasPrefix(rawURL, cloudFrontURL+"/") {
		return strings.TrimPrefix(rawURL, cloudFrontURL+"/"), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid object url: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("object url %q has no key", rawURL)
	}
	return key, nil
}
