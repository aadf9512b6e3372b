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
	"errors"
	"io/fs"
	"net/http"
)

// NormalizedHttpError writes an HTTP error response with a status code derived
// from the specified error, but without leaking any internal server details,
// such as file system paths, to the client.
//
//   - fs.ErrNotExist: 404 Not Found
//   - fs.ErrPermission: 403 Forbidden
//   - fs.ErrInvalid: 400 Bad Request, such as for invalid fs.FS path names
//   - anything else: 500 Internal Server Error
func NormalizedHttpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "404 page not found", http.StatusNotFound)
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, "403 Forbidden", http.StatusForbidden)
	case errors.Is(err, fs.ErrInvalid):
		http.Error(w, "400 Bad Request", http.StatusBadRequest)
	default:
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
	}
}
