package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	maxUploadSize = 5 << 20
	uploadField   = "image"
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

type UploadResponse struct {
	ImageUrl string `json:"imageUrl"`
}

// uploadImage stores an image sent as the multipart field "image" and returns
// the URL it is served under. The URL is what send-image messages carry.
func (s *SupportChatApp) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		s.log.Println("upload:", err)
		s.writeError(w, NewBadRequestError())
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		s.writeError(w, NewBadRequestError())
		return
	}

	ext, err := detectImage(file)
	if err != nil {
		s.log.Println("upload:", err)
		s.writeError(w, NewBadRequestError())
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.writeError(w, NewInternalServerError(fmt.Errorf("generate short id: %w", err)))
		return
	}

	name := "image-" + sid + ext
	if err := s.saveUpload(name, file); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.incr(metricImagesUploaded)
	s.writeJson(w, http.StatusOK, UploadResponse{ImageUrl: "/uploads/" + name})
}

// detectImage sniffs the content type of file and rewinds it.
func detectImage(file multipart.File) (string, error) {
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("only image files are allowed, got %q", mtype.String())
	}

	ext, ok := imageExtensions[mtype.String()]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", mtype.String())
	}

	return ext, nil
}

func (s *SupportChatApp) saveUpload(name string, src io.Reader) error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(s.uploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("write upload file: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close upload file: %w", err)
	}

	return nil
}
