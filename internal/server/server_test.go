// Copyright 2022 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap/zaptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

var _ = Describe("server", func() {

	var client *http.Client

	BeforeEach(func() {
		goods := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).Within(2 * time.Second).ProbeEvery(50 * time.Millisecond).
				ShouldNot(HaveLeaked(goods))
		})
		client = &http.Client{
			Transport: &http.Transport{DisableKeepAlives: true},
			Timeout:   5 * time.Second,
		}
	})

	// start runs a new server on an ephemeral loopback port, returning the
	// base URL, the cancel function to stop the server, and the channel
	// receiving Run's result.
	start := func(h http.Handler) (string, context.CancelFunc, <-chan error) {
		GinkgoHelper()
		ready := make(chan net.Addr, 1)
		done := make(chan error, 1)
		ctx, cancel := context.WithCancel(context.Background())
		s := New(h,
			WithAddr("127.0.0.1:0"),
			WithLogger(zaptest.NewLogger(GinkgoT())),
			WithReadyFunc(func(addr net.Addr) { ready <- addr }))
		go func() {
			defer GinkgoRecover()
			done <- s.Run(ctx)
		}()
		var addr net.Addr
		Eventually(ready).Should(Receive(&addr))
		return "http://" + addr.String(), cancel, done
	}

	get := func(url string) (int, string, error) {
		resp, err := client.Get(url)
		if err != nil {
			return 0, "", err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body), err
	}

	It("serves until cancelled", func() {
		url, cancel, done := start(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "CANARY")
		}))
		status, body, err := get(url + "/foo")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(Equal("CANARY"))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
		_, _, err = get(url + "/foo")
		Expect(err).To(HaveOccurred(), "listener still open")
	})

	It("keeps serving after a failing request", func() {
		url, cancel, done := start(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/panic" {
				panic("kaboom")
			}
			_, _ = io.WriteString(w, "ALIVE")
		}))
		defer func() {
			cancel()
			Eventually(done).Should(Receive(BeNil()))
		}()
		_, _, err := get(url + "/panic")
		Expect(err).To(HaveOccurred())
		status, body, err := get(url + "/")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(Equal("ALIVE"))
	})

	It("stops cleanly despite connections lingering past the shutdown timeout", func() {
		ready := make(chan net.Addr, 1)
		done := make(chan error, 1)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s := New(http.NotFoundHandler(),
			WithAddr("127.0.0.1:0"),
			WithShutdownTimeout(200*time.Millisecond),
			WithReadyFunc(func(addr net.Addr) { ready <- addr }))
		go func() {
			defer GinkgoRecover()
			done <- s.Run(ctx)
		}()
		var addr net.Addr
		Eventually(ready).Should(Receive(&addr))

		// a silent connection, as browsers open for preconnecting.
		conn := Successful(net.Dial("tcp", addr.String()))
		defer conn.Close()

		cancel()
		Eventually(done).Within(2 * time.Second).Should(Receive(BeNil()))
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, err := conn.Read(make([]byte, 1))
		Expect(err).To(HaveOccurred(), "lingering connection not closed")
	})

	It("fails binding an address already in use", func() {
		ln := Successful(net.Listen("tcp", "127.0.0.1:0"))
		defer ln.Close()

		readied := false
		s := New(http.NotFoundHandler(),
			WithAddr(ln.Addr().String()),
			WithReadyFunc(func(net.Addr) { readied = true }))
		Expect(s.Run(context.Background())).To(MatchError(ContainSubstring("cannot listen on")))
		Expect(readied).To(BeFalse())
	})

	It("shuts down even when cancelled right away", func() {
		ctx, cancel := context.WithCancel(context.Background())
		ln := Successful(net.Listen("tcp", "127.0.0.1:0"))
		cancel()
		Expect(New(http.NotFoundHandler(), WithShutdownTimeout(time.Second)).Serve(ctx, ln)).To(Succeed())
		_, err := net.Dial("tcp", ln.Addr().String())
		Expect(err).To(HaveOccurred())
	})

})
