// Package storage persists uploaded images either on local disk or in S3.
package storage

import (
	"fmt"
	"mime/multipart"
	"strings"
)

const MaxImageSize = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

func ValidateImage(file *multipart.FileHeader) error {
	if file.Size > MaxImageSize {
		return fmt.Errorf("image exceeds %d MB", MaxImageSize>>20)
	}
	ct := strings.ToLower(file.Header.Get("Content-Type"))
	if !allowedImageTypes[ct] {
		return fmt.Errorf("unsupported image type %q", ct)
	}
	return nil
}

// Upload stores file under folder and returns its public URL.
func Upload(file *multipart.FileHeader, folder string) (string, error) {
	if useS3 {
		return uploadToS3(file, folder)
	}
	return uploadToLocal(file, folder)
}

func Delete(url string) error {
	if url == "" {
		return nil
	}
	if useS3 {
		return deleteFromS3(url)
	}
	return deleteFromLocal(url)
}

func Mode() string {
	if useS3 {
		return "s3"
	}
	return "local"
}
