// Package httpapi exposes redaction sessions over HTTP for headless and
// remote use. Clients upload a document, feed annotations in the render space
// of whatever scale they rendered at, and download the redacted result.
package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/wudi/redactkit/document"
	"github.com/wudi/redactkit/geo"
	"github.com/wudi/redactkit/observability"
	"github.com/wudi/redactkit/redaction"
	"github.com/wudi/redactkit/viewer"
)

// DefaultUploadLimit caps document uploads when Options does not set one.
const DefaultUploadLimit = 64 << 20

// Options tunes the server. Zero values pick the defaults: a 64 MiB upload
// cap and CORS open to any origin.
type Options struct {
	UploadLimit    int64
	AllowedOrigins []string
}

// Server manages one viewer session per uploaded document.
type Server struct {
	src  document.Source
	rsrc document.RendererSource
	log  observability.Logger

	uploadLimit int64
	origins     []string

	mu       sync.Mutex
	sessions map[string]*viewer.Session
}

func NewServer(src document.Source, rsrc document.RendererSource, log observability.Logger, opts Options) *Server {
	if log == nil {
		log = observability.NopLogger{}
	}
	limit := opts.UploadLimit
	if limit <= 0 {
		limit = DefaultUploadLimit
	}
	return &Server{
		src:         src,
		rsrc:        rsrc,
		log:         log,
		uploadLimit: limit,
		origins:     opts.AllowedOrigins,
		sessions:    make(map[string]*viewer.Session),
	}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/documents", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/api/documents/{id}", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/api/documents/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/api/documents/{id}/pages/{page}/image", s.handleImage).Methods(http.MethodGet)
	r.HandleFunc("/api/documents/{id}/annotations", s.handleAnnotations).Methods(http.MethodPut)
	r.HandleFunc("/api/documents/{id}/apply", s.handleApply).Methods(http.MethodPost)
	r.HandleFunc("/api/documents/{id}/download", s.handleDownload).Methods(http.MethodGet)
	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

// Close shuts every session down.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, id)
	}
}

func (s *Server) session(id string) (*viewer.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func newID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

type uploadResponse struct {
	ID    string `json:"id"`
	Pages int    `json:"pages"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.uploadLimit); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing document field: %w", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, s.uploadLimit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	if int64(len(data)) > s.uploadLimit {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("document too large"))
		return
	}

	sess := viewer.NewSession(s.src, s.rsrc, s.log)
	if err := sess.LoadBytes(data, header.Filename); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	id := newID()
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Info("document uploaded",
		observability.String("id", id),
		observability.String("name", header.Filename),
		observability.Int("pages", sess.PageCount()))
	writeJSON(w, http.StatusCreated, uploadResponse{ID: id, Pages: sess.PageCount()})
}

type infoResponse struct {
	Pages       int     `json:"pages"`
	Scale       float64 `json:"scale"`
	Annotations int     `json:"annotations"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown document"))
		return
	}
	writeJSON(w, http.StatusOK, infoResponse{
		Pages:       sess.PageCount(),
		Scale:       sess.Scale(),
		Annotations: sess.AnnotationTotal(),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown document"))
		return
	}
	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown document"))
		return
	}
	page, err := strconv.Atoi(mux.Vars(r)["page"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("bad page index"))
		return
	}
	scale := sess.Scale()
	if v := r.URL.Query().Get("scale"); v != "" {
		scale, err = strconv.ParseFloat(v, 64)
		if err != nil || scale <= 0 || scale > viewer.MaxScale {
			writeError(w, http.StatusBadRequest, errors.New("bad scale"))
			return
		}
	}
	img, err := sess.RenderPage(r.Context(), page, scale)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		s.log.Error("encode page image", observability.Error("error", err))
	}
}

// annotationsRequest replaces the whole annotation set. Regions are given in
// render space at the client's scale; the server re-expresses them at the
// session scale through document space.
type annotationsRequest struct {
	Scale   float64 `json:"scale"`
	Regions []struct {
		Page   int     `json:"page"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"regions"`
}

type annotationsResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown document"))
		return
	}
	var req annotationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if req.Scale <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("scale must be positive"))
		return
	}

	regions := make([]viewer.Annotation, 0, len(req.Regions))
	for _, reg := range req.Regions {
		regions = append(regions, viewer.Annotation{
			Page: reg.Page,
			Rect: geo.Rect{X0: reg.X, Y0: reg.Y, X1: reg.X + reg.Width, Y1: reg.Y + reg.Height},
		})
	}
	accepted, rejected := sess.ReplaceAnnotations(req.Scale, regions)
	writeJSON(w, http.StatusOK, annotationsResponse{Accepted: accepted, Rejected: rejected})
}

type applyResponse struct {
	Pages   int `json:"pages"`
	Regions int `json:"regions"`
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown document"))
		return
	}
	pages, regions, err := sess.Apply(r.Context())
	if err != nil {
		if errors.Is(err, redaction.ErrEmptyPlan) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, applyResponse{Pages: pages, Regions: regions})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown document"))
		return
	}
	data, err := sess.Bytes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="redacted.pdf"`)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
