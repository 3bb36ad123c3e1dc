package httpserver

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/sessions"

	"gallery/internal/config"
	"gallery/internal/fsutil"
	"gallery/internal/gallery"
	"gallery/internal/ipgate"
	"gallery/internal/logging"
	"gallery/internal/sniff"
)

// Files up to this size are parsed in memory; the body limit keeps every
// accepted upload below it.
const multipartMemory = 32 << 20

type Options struct {
	Config config.Config

	// MaxBodyBytes overrides config.MaxUploadBytes. Zero means the default.
	MaxBodyBytes int64
}

type Server struct {
	store    *gallery.Store
	gate     ipgate.Gate
	sessions *sessions.CookieStore
	maxBody  int64

	index *template.Template
}

//go:embed web/index.html
var embeddedWeb embed.FS

func New(opts Options) (*Server, error) {
	store, err := gallery.NewStore(opts.Config.Root)
	if err != nil {
		return nil, err
	}
	sess, err := newSessionStore(opts.Config.SecretKey)
	if err != nil {
		return nil, err
	}
	index, err := template.New("index.html").Funcs(template.FuncMap{
		"humanSize": humanSize,
		"humanTime": humanTime,
	}).ParseFS(embeddedWeb, "web/index.html")
	if err != nil {
		return nil, err
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = config.MaxUploadBytes
	}
	return &Server{
		store:    store,
		gate:     ipgate.New(opts.Config.WhitelistedIP),
		sessions: sess,
		maxBody:  maxBody,
		index:    index,
	}, nil
}

func (s *Server) Store() *gallery.Store {
	return s.store
}

// Handler returns the full middleware chain around the routes. The gate and
// the body limit apply to every route alike.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /uploads/{filename}", s.handleImage)
	mux.HandleFunc("GET /delete/{filename}", s.handleDelete)

	var h http.Handler = mux
	h = limitBody(s.maxBody, h)
	h = s.gate.Wrap(h)
	h = logRequests(h)
	return withHeaders(h)
}

// --- handlers ---

type indexData struct {
	Images  []gallery.Image
	Flashes []string
	Accept  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	images, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	data := indexData{
		Images:  images,
		Flashes: s.popFlashes(w, r),
		Accept:  "image/png,image/jpeg,image/gif",
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, data); err != nil {
		logging.Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			tooLarge(w)
		case errors.Is(err, http.ErrNotMultipart):
			s.redirectWithFlash(w, r, "No file selected.")
		default:
			http.Error(w, "bad multipart", http.StatusBadRequest)
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	src, fh, err := r.FormFile("file")
	if err != nil {
		// Browsers send an empty filename when nothing was picked.
		s.redirectWithFlash(w, r, "No file selected.")
		return
	}
	defer src.Close()
	if fh.Filename == "" || fh.Size == 0 {
		s.redirectWithFlash(w, r, "No file selected.")
		return
	}

	kind, err := sniff.Image(src)
	if err != nil {
		if errors.Is(err, sniff.ErrRejected) {
			logging.Info().Str("client_filename", fh.Filename).Err(err).Msg("upload rejected")
			http.Error(w, "Invalid file type", http.StatusBadRequest)
			return
		}
		s.internalError(w, r, err)
		return
	}

	name, err := gallery.NewName(kind)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	size, err := s.store.Write(r.Context(), name, src)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	logging.Info().
		Str("image", name).
		Str("mime", kind.MIME).
		Int64("size", size).
		Str("client_filename", fh.Filename).
		Msg("image stored")

	s.redirectWithFlash(w, r, "Image uploaded.")
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	f, st, err := s.store.Open(r.PathValue("filename"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	defer f.Close()

	if ct := contentTypeForName(st.Name()); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	// Stored images are never rewritten under the same name.
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if err := s.store.Delete(name); err != nil {
		s.storeError(w, r, err)
		return
	}
	logging.Info().Str("image", name).Msg("image deleted")
	http.Redirect(w, r, "/", http.StatusFound)
}

// --- helpers ---

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fsutil.ErrTamperedName):
		logging.Warn().Str("path", r.URL.Path).Msg("rejected tampered filename")
		http.Error(w, "Invalid filename.", http.StatusBadRequest)
	case errors.Is(err, fsutil.ErrPathEscape):
		logging.Warn().Str("path", r.URL.Path).Msg("rejected path escape")
		http.Error(w, "Attempt to access file outside of upload directory.", http.StatusForbidden)
	case errors.Is(err, gallery.ErrNotFound):
		http.NotFound(w, r)
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, msg string) {
	s.addFlash(w, r, msg)
	http.Redirect(w, r, "/", http.StatusFound)
}

func tooLarge(w http.ResponseWriter) {
	http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
}

func contentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	// Fallbacks for systems with sparse mime tables.
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	}
	return mime.TypeByExtension(ext)
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func humanTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
