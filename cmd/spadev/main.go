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

/*
Command spadev serves a pre-built single page application from a "build"
directory next to the spadev binary on port 3000, with client-side routes
falling back to the index document and all caching disabled.

Usage:

	spadev [--port 3000] [--root build] [--index index.html]
	       [--static-prefix /static/] [--rewrite-base]
	       [--log-level info] [--log-format console]

All flags can also be set using SPADEV_-prefixed environment variables, such
as SPADEV_PORT, optionally from a ".env" file in the working directory. An
explicitly specified relative root directory is relative to the working
directory instead of the binary.

spadev runs until interrupted (SIGINT or SIGTERM) and then exits with status
zero. It exits with status 1 if it cannot start, for instance when the port
is already in use.
*/
package main

func main() {
	Execute()
}
