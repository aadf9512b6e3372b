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
	"net/http"
)

// NoCacheDirectives tell browsers and intermediate caches to consider a
// response stale from the start and to always revalidate.
const NoCacheDirectives = "no-store, no-cache, must-revalidate, max-age=0"

// NoCache wraps the specified handler so that every response it produces
// carries NoCacheDirectives in its Cache-Control header, whatever its status.
//
// The header is injected only at the time the response header gets written,
// as http.FileServer's error responses deliberately drop any Cache-Control
// header set beforehand.
func NoCache(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ncw := &noCacheWriter{ResponseWriter: w}
		h.ServeHTTP(ncw, r)
		if !ncw.wroteHeader {
			// handler didn't write anything at all, so let's finish an empty
			// 200 response ourselves.
			ncw.WriteHeader(http.StatusOK)
		}
	})
}

// noCacheWriter sets the no-cache directives just in time before the wrapped
// ResponseWriter sends the response header.
type noCacheWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

var _ io.ReaderFrom = (*noCacheWriter)(nil)

func (w *noCacheWriter) WriteHeader(code int) {
	w.Header().Set("Cache-Control", NoCacheDirectives)
	if code >= 200 {
		// informational 1xx responses may be followed by the final one.
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *noCacheWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// ReadFrom keeps the wrapped ResponseWriter's sendfile optimization available
// to http.FileServer.
func (w *noCacheWriter) ReadFrom(src io.Reader) (int64, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		return rf.ReadFrom(src)
	}
	return io.Copy(w.ResponseWriter, src)
}

// Unwrap allows http.ResponseController to reach the original ResponseWriter.
func (w *noCacheWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
