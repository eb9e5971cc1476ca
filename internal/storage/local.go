package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	UploadBasePath = "./uploads"
	GalleryPath    = "gallery"
	LogoPath       = "logos"
)

var localRoot = UploadBasePath

// InitLocalStorage creates the upload directories under root.
func InitLocalStorage(root string) error {
	if root != "" {
		localRoot = root
	}

	for _, dir := range []string{localRoot, filepath.Join(localRoot, GalleryPath), filepath.Join(localRoot, LogoPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}

	useS3 = false
	return nil
}

func objectName(folder, filename string) string {
	return fmt.Sprintf("%s/%s/%s-%s%s",
		folder,
		time.Now().Format("2006/01"),
		time.Now().Format("20060102-150405"),
		uuid.New().String()[:8],
		strings.ToLower(filepath.Ext(filename)),
	)
}

func uploadToLocal(file *multipart.FileHeader, folder string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %v", err)
	}
	defer src.Close()

	name := objectName(folder, file.Filename)
	fullPath := filepath.Join(localRoot, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %v", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %v", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %v", err)
	}

	return "/uploads/" + name, nil
}

func deleteFromLocal(url string) error {
	rel := strings.TrimPrefix(url, "/uploads/")
	if rel == url {
		return fmt.Errorf("file path outside uploads directory")
	}

	baseAbs, err := filepath.Abs(localRoot)
	if err != nil {
		return fmt.Errorf("invalid base path: %v", err)
	}
	absPath, err := filepath.Abs(filepath.Join(localRoot, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("invalid file path: %v", err)
	}
	if real, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = real
	}
	if !strings.HasPrefix(absPath, baseAbs+string(filepath.Separator)) {
		return fmt.Errorf("file path outside uploads directory")
	}

	if err := os.Remove(absPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %v", err)
	}
	return nil
}
