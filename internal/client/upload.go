package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/and161185/studyshare/internal/model"
)

// MaxUploadSize is the largest file the service accepts.
const MaxUploadSize = 10 << 20 // 10 MiB

// allowedExts mirrors the document types the service stores.
var allowedExts = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
}

// UploadRequest describes a new resource submission.
type UploadRequest struct {
	Title       string
	Description string
	Subject     string
	Semester    string
	FileName    string
	File        io.Reader
}

func (r *UploadRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("validation: empty title")
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("validation: empty description")
	}
	if !model.ValidSubject(r.Subject) {
		return fmt.Errorf("validation: unknown subject %q", r.Subject)
	}
	if !model.ValidSemester(r.Semester) {
		return fmt.Errorf("validation: unknown semester %q", r.Semester)
	}
	if !allowedExts[strings.ToLower(filepath.Ext(r.FileName))] {
		return fmt.Errorf("validation: file must be PDF, DOC, DOCX or TXT")
	}
	if r.File == nil {
		return fmt.Errorf("validation: no file content")
	}
	return nil
}

// Upload submits a new resource as multipart form data. The file is
// size-checked client-side before anything is sent.
func (c *Client) Upload(ctx context.Context, ur UploadRequest) (*model.Resource, error) {
	if err := ur.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"title":       ur.Title,
		"description": ur.Description,
		"subject":     ur.Subject,
		"semester":    ur.Semester,
	} {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(ur.FileName))
	if err != nil {
		return nil, err
	}
	// Copy one byte past the limit so oversized input is detected
	// without buffering arbitrarily much of it.
	n, err := io.Copy(fw, io.LimitReader(ur.File, MaxUploadSize+1))
	if err != nil {
		return nil, err
	}
	if n > MaxUploadSize {
		return nil, fmt.Errorf("validation: file exceeds %d bytes", MaxUploadSize)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/resources", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res model.Resource
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
