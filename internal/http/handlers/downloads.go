package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"autovideo/pkg/zip"
)

var downloadTypes = map[string]string{
	".mp4":  "video/mp4",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".txt":  "text/plain; charset=utf-8",
	".srt":  "text/plain; charset=utf-8",
	".json": "application/json",
}

// Download serves one deliverable from the job's output directory.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	name := filepath.Base(chi.URLParam(r, "filename"))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	path, err := a.Output.Path(jobID + "/" + name)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	contentType, ok := downloadTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// DownloadBundle streams every deliverable of the job as one zip archive.
func (a *App) DownloadBundle(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	dir, err := a.Output.Path(jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job has no deliverables")
		return
	}
	files, err := os.ReadDir(dir)
	if err != nil || len(files) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "job has no deliverables")
		return
	}
	entries := make([]zip.Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		entries = append(entries, zip.Entry{Name: jobID + "/" + f.Name(), Path: filepath.Join(dir, f.Name())})
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+jobID+`.zip"`)
	if _, err := zip.Write(w, entries); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("http: bundle write failed")
	}
}
