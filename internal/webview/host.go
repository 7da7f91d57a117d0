package webview

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// indexFile is served for directory requests and for client-side routes.
const indexFile = "index.html"

// Host serves a built frontend over HTTP on the loopback interface and
// performs the page-load injection for every HTML document it serves.
type Host struct {
	dir        string
	onPageLoad func(Window)
	server     *http.Server
	url        string
}

// NewHost creates a Host for the frontend in dir. onPageLoad runs once per
// served HTML document, exactly as a native webview would call it after
// each navigation.
func NewHost(dir string, onPageLoad func(Window)) *Host {
	h := &Host{dir: dir, onPageLoad: onPageLoad}
	h.server = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h
}

// Start begins serving on ln in the background. The returned channel
// receives the serve error, or nil after a clean Shutdown, and is then
// closed.
func (h *Host) Start(ln net.Listener) <-chan error {
	h.url = "http://" + ln.Addr().String() + "/"

	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("frontend host failed: %w", err)
			return
		}
		errc <- nil
	}()
	return errc
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (h *Host) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// URL returns the address the frontend is served on, once Start has been
// called.
func (h *Host) URL() string {
	return h.url
}

// ServeHTTP implements http.Handler.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, ok := h.resolve(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if strings.EqualFold(filepath.Ext(file), ".html") {
		h.servePage(w, r, file)
		return
	}

	f, err := os.Open(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// resolve maps a URL path to a file under the frontend directory.
// Directories map to their index.html. Extension-less paths that do not
// exist map to the root index.html so client-side routes survive reloads.
func (h *Host) resolve(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	file := filepath.Join(h.dir, filepath.FromSlash(clean))

	info, err := os.Stat(file)
	switch {
	case err == nil && info.IsDir():
		file = filepath.Join(file, indexFile)
		if _, err := os.Stat(file); err != nil {
			return "", false
		}
		return file, true
	case err == nil:
		return file, true
	case path.Ext(clean) == "":
		file = filepath.Join(h.dir, indexFile)
		if _, err := os.Stat(file); err != nil {
			return "", false
		}
		return file, true
	default:
		return "", false
	}
}

// servePage runs the page-load hook against the document and serves the
// result. Pages are never cached since the injected port changes on every
// launch.
func (h *Host) servePage(w http.ResponseWriter, r *http.Request, file string) {
	doc, err := os.ReadFile(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	page := &documentWindow{}
	if h.onPageLoad != nil {
		h.onPageLoad(page)
	}

	body, err := InjectHTML(doc, page.scripts...)
	if err != nil {
		// Serving the page without the global still lets the frontend
		// fall back to its default base URL.
		body = doc
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}

// documentWindow collects the scripts evaluated for one HTML response.
type documentWindow struct {
	scripts []string
}

func (d *documentWindow) Eval(script string) error {
	d.scripts = append(d.scripts, script)
	return nil
}
