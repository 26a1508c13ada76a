package handler

import (
	"fmt"
	"net/http"
	"strconv"
)

type emptyResponse struct {
	status int
}

func (e emptyResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// Empty returns 204 No Content.
func Empty() Response {
	return emptyResponse{status: http.StatusNoContent}
}

// EmptyWithStatus returns the given status without a body.
func EmptyWithStatus(status int) Response {
	return emptyResponse{status: status}
}

type attachmentResponse struct {
	filename    string
	contentType string
	data        []byte
}

func (a attachmentResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", a.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.data)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(a.data)
	return err
}

// Attachment serves data as a downloadable file.
func Attachment(filename, contentType string, data []byte) Response {
	return attachmentResponse{filename: filename, contentType: contentType, data: data}
}
