/*
Package spadev serves pre-built "Single Page Applications" (SPAs) during
development: client-side routes get the SPA's index document, static assets
are served as-is, and nothing ever gets cached.

The SPAHandler type implements http.Handler to serve the SPA and its static
resources from any resource provider implementing the fs.FS interface. A
request path gets the index document instead of a static file when it is a
"client route", see IsClientRoute: outside the static assets prefix (usually
"/static/"), not a "/."-hidden path, and its final path segment without any
".".

NoCache decorates any http.Handler so that all its responses, including
error responses, carry cache-control directives defeating any caching:

	h := spadev.NoCache(spadev.NewSPAHandler(os.DirFS("build"), "index.html"))

The spadev command in cmd/spadev wraps all this into a ready-to-use
development server listening on port 3000 by default.
*/
package spadev
