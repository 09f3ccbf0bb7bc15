package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tauraamui/tennistrack/pkg/configdef"
	"github.com/tauraamui/tennistrack/pkg/log"
	"github.com/tauraamui/tennistrack/pkg/metrics"
	"goji.io/pat"
)

const (
	uploadField      = "video"
	downloadFilename = "processed_video.mp4"
)

// upload parts above this are spooled to disk by the multipart reader
var multipartMemory int64 = 32 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Unable to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.page.render(w); err != nil {
		log.Error("Unable to render page: %v", err)
	}
}

type health struct {
	Status string       `json:"status"`
	Model  *ModelStatus `json:"model,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{Status: "ok"}
	if s.opts.Model != nil {
		m := s.opts.Model()
		h.Model = &m
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize)
	}

	err := r.ParseMultipartForm(multipartMemory)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	var (
		file   multipart.File
		header *multipart.FileHeader
	)
	if err == nil {
		file, header, err = r.FormFile(uploadField)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.UploadsRejectedTotal.WithLabelValues("too_large").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		metrics.UploadsRejectedTotal.WithLabelValues("missing").Inc()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("expected a %q file upload", uploadField))
		return
	}
	defer file.Close()

	if !(configdef.Upload{Extensions: s.opts.Extensions}).Allows(header.Filename) {
		metrics.UploadsRejectedTotal.WithLabelValues("extension").Inc()
		writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"unsupported file type %q, expected one of %s", filepath.Ext(header.Filename), strings.Join(s.opts.Extensions, ", "),
		))
		return
	}

	j, err := s.jobs.reserve()
	if err != nil {
		metrics.UploadsRejectedTotal.WithLabelValues("busy").Inc()
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	id := j.snapshot().ID

	if err := s.stage(j, file, header); err != nil {
		log.Error("[job %s] unable to stage upload: %v", id, err)
		removeFiles(j.files()...)
		s.jobs.discard(id)
		writeError(w, http.StatusInternalServerError, "unable to store upload")
		return
	}

	log.Info("[job %s] accepted upload %s", id, header.Filename)
	s.running.Add(1)
	go s.execute(j)

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// stage copies the upload to a temp input file keeping its extension, so
// the decoder can pick the container, and reserves the output path.
func (s *Server) stage(j *job, file multipart.File, header *multipart.FileHeader) error {
	in, err := afero.TempFile(fs, s.opts.TempDir, "tennistrack-in-*"+strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		return err
	}
	j.setInput(in.Name())

	_, copyErr := io.Copy(in, file)
	if err := in.Close(); copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		return copyErr
	}

	out, err := reserveTempPath(s.opts.TempDir, "tennistrack-out-*.mp4")
	if err != nil {
		return err
	}
	j.setOutput(out)
	return nil
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*job, bool) {
	j, ok := s.jobs.get(pat.Param(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no such job")
	}
	return j, ok
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, j.snapshot())
}

func (s *Server) handleJobVideo(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.serveResult(w, r, j, j.playable(), "inline")
}

func (s *Server) handleJobDownload(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	_, output := j.paths()
	s.serveResult(w, r, j, output, "attachment")
}

func (s *Server) serveResult(w http.ResponseWriter, r *http.Request, j *job, path, disposition string) {
	if state := j.snapshot().State; state != StateDone {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s", state))
		return
	}

	f, err := fs.Open(path)
	if err != nil {
		writeError(w, http.StatusGone, "result no longer available")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unable to read result")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, downloadFilename))
	http.ServeContent(w, r, downloadFilename, info.ModTime(), f)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := pat.Param(r, "id")
	j, err := s.jobs.remove(id)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if j == nil {
		writeError(w, http.StatusNotFound, "no such job")
		return
	}
	removeFiles(j.files()...)
	w.WriteHeader(http.StatusNoContent)
}
