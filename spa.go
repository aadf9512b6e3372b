// Copyright 2022 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package spadev

import (
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// DefaultStaticPrefix is the request path prefix of the SPA's static assets
// as laid out by the usual SPA build tool chains. Requests inside this prefix
// are never routed to the index document.
const DefaultStaticPrefix = "/static/"

// SPAHandler implements an http.Handler that serves static files from an
// fs.FS, except for "client routes": requests whose final path segment lacks
// a file extension get the index document instead, so that client-side DOM
// routers see their routes survive bookmarking and reloading.
type SPAHandler struct {
	fs                fs.FS         // the FS to serve static resources from.
	index             string        // (unrooted) path and name of the index/SPA file inside fs.
	staticPrefix      string        // requests inside this prefix always pass through.
	staticfileHandler http.Handler  // FS adapted to http's file serving handler needs.
	rewriteBase       bool          // rewrite <base href> in the index document?
	indexRewriter     IndexRewriter // optional user function to rewrite the index/SPA file as necessary.
}

// NewSPAHandler returns a new HTTP handler serving static resources from the
// specified fs, and the index resource for client routes. The index resource
// should be specified as an unrooted, slash-separated path+name to be servable
// from the given fs; but NewSPAHandler will sanitize the index path anyway.
//
// The index parameter typically is "index.html"; please check with your SPA
// build environment documentation for the exact file name.
//
// In order to serve the static resources from a directory on the OS file
// system, use os.DirFS:
//
//	h := NewSPAHandler(os.DirFS("build"), "index.html")
func NewSPAHandler(fs fs.FS, index string, opts ...SPAHandlerOption) *SPAHandler {
	h := &SPAHandler{
		fs:                fs,
		staticfileHandler: http.FileServer(http.FS(fs)),
		index:             path.Clean("/" + index)[1:],
		staticPrefix:      DefaultStaticPrefix,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SPAHandlerOption sets optional properties at the time of creating an
// SPAHandler.
type SPAHandlerOption func(*SPAHandler)

// IndexRewriter rewrites (parts) of an index/SPA file contents to be delivered
// to a requesting client. It can be optionally activated using the
// WithIndexRewriter option when creating a new SPAHandler.
type IndexRewriter func(r *http.Request, index string) string

// WithIndexRewriter sets the specified IndexRewriter that gets called before
// delivering the index/SPA file contents to requesting clients, allowing for
// application-specific changes.
func WithIndexRewriter(rewriter IndexRewriter) SPAHandlerOption {
	return func(h *SPAHandler) {
		h.indexRewriter = rewriter
	}
}

// WithStaticPrefix sets the request path prefix whose requests always get
// passed through to the static file server. A missing leading or trailing
// "/" gets added.
func WithStaticPrefix(prefix string) SPAHandlerOption {
	return func(h *SPAHandler) {
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		h.staticPrefix = prefix
	}
}

// WithBaseRewriting enables rewriting the HTML base element of the index
// document to the base path the client sees, based on forwarding proxy
// headers. Without this option the index document is served as-is.
func WithBaseRewriting() SPAHandlerOption {
	return func(h *SPAHandler) {
		h.rewriteBase = true
	}
}

// ServeHTTP serves the index document for client routes as well as for
// explicit requests of the index document itself, and passes all other read
// requests on to the static file server. Only GET and HEAD are
// supported, anything else gets a 405.
func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	default:
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "405 method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path == "/"+h.index || IsClientRoute(r.URL.Path, h.staticPrefix) {
		h.serveIndex(w, r)
		return
	}
	h.staticfileHandler.ServeHTTP(w, r)
}

// IsClientRoute returns true if the specified (already URL-decoded) request
// path is to be answered with the index document instead of a static file.
// Paths inside staticPrefix as well as "hidden" paths starting with "/." are
// never client routes. Everything else is a client route when its final path
// segment doesn't contain a ".", that is, doesn't look like a file name with
// an extension.
//
// Please note that only the final segment counts: "/v1.2/page" is a client
// route, while "/page/v1.2" isn't.
func IsClientRoute(urlpath string, staticPrefix string) bool {
	if strings.HasPrefix(urlpath, staticPrefix) || strings.HasPrefix(urlpath, "/.") {
		return false
	}
	return !strings.Contains(urlpath[strings.LastIndex(urlpath, "/")+1:], ".")
}

// serveIndex serves the index file, optionally rewriting its HTML base element
// and passing it through the application-specific index rewriter.
//
// Serving the index directly instead of rewriting the request path and handing
// it to the file server avoids the latter's redirect of ".../index.html" to
// ".../".
func (h *SPAHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	var err error
	defer func() {
		if err != nil {
			NormalizedHttpError(w, err)
		}
	}()
	f, err := h.fs.Open(h.index)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	fileInfo, err := f.Stat()
	if err != nil {
		return
	}
	if fileInfo.IsDir() {
		err = fs.ErrNotExist
		return
	}
	indexhtmlcontents, err := io.ReadAll(f)
	if err != nil {
		return
	}
	finalIndexhtml := string(indexhtmlcontents)
	if h.rewriteBase {
		finalIndexhtml = rewriteBase(finalIndexhtml, basename(r))
	}
	if h.indexRewriter != nil {
		finalIndexhtml = h.indexRewriter(r, finalIndexhtml)
	}
	http.ServeContent(w, r, path.Base(h.index), fileInfo.ModTime(), strings.NewReader(finalIndexhtml))
}
