/*
Copyright 2016 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package hook implements the webhook sink and diff-view HTTP surface:
// it wires together the VCS gateway, snapshot registry, push classifier,
// commit-log parser, policy checker, status reconciler, and comment
// composer into the two webhook-driven operations (pull_request opened,
// push) and the four GET diff-view endpoints.
package hook

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/guyincognito/gitbot/classify"
	"github.com/guyincognito/gitbot/comment"
	"github.com/guyincognito/gitbot/commitlog"
	"github.com/guyincognito/gitbot/config"
	"github.com/guyincognito/gitbot/git"
	"github.com/guyincognito/gitbot/github"
	"github.com/guyincognito/gitbot/policy"
	"github.com/guyincognito/gitbot/refs"
	"github.com/guyincognito/gitbot/registry"
	"github.com/guyincognito/gitbot/render"
	"github.com/guyincognito/gitbot/status"
)

// Server implements http.Handler. It validates incoming webhooks, runs the
// rebase-archaeology and policy-enforcement logic, and serves the
// diff-view endpoints referenced by the comments it posts.
type Server struct {
	Repo        *git.Repo
	Platform    *github.Client
	ConfigAgent *config.Agent
	HMACSecret  []byte
	Hostname    string
	URLRoot     string
	Metrics     *Metrics

	registry   *registry.Registry
	reconciler *status.Reconciler
	renderer   render.Renderer
}

// NewServer builds a Server wired against repo and platformClient,
// fetching every tracked repository over SSH through hostname.
func NewServer(repo *git.Repo, platformClient *github.Client, configAgent *config.Agent, hmacSecret []byte, hostname, urlRoot string) *Server {
	return &Server{
		Repo:        repo,
		Platform:    platformClient,
		ConfigAgent: configAgent,
		HMACSecret:  hmacSecret,
		Hostname:    hostname,
		URLRoot:     urlRoot,
		Metrics:     NewMetrics(),
		registry: registry.New(vcsAdapter{repo: repo}, func(org, repo string) string {
			return sshRemote(hostname, org, repo)
		}),
		reconciler: status.New(platformAdapter{client: platformClient}),
		renderer:   render.NewTextRenderer(),
	}
}

// ServeHTTP routes webhook deliveries and diff-view GET requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	if r.Method == http.MethodGet {
		s.serveGet(w, r)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "405 Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		http.Error(w, "400 Bad Request: Missing X-GitHub-Event Header", http.StatusBadRequest)
		return
	}
	eventGUID := r.Header.Get("X-GitHub-Delivery")
	if eventGUID == "" {
		http.Error(w, "400 Bad Request: Missing X-GitHub-Delivery Header", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("X-Hub-Signature")
	if sig == "" {
		http.Error(w, "403 Forbidden: Missing X-Hub-Signature", http.StatusForbidden)
		return
	}
	contentType := r.Header.Get("content-type")
	if contentType != "application/json" {
		http.Error(w, "400 Bad Request: Hook only accepts content-type: application/json - please reconfigure this hook on GitHub", http.StatusBadRequest)
		return
	}

	payload, err := ioutil.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "500 Internal Server Error: Failed to read request body", http.StatusInternalServerError)
		return
	}
	if !github.ValidatePayload(payload, sig, s.HMACSecret) {
		http.Error(w, "403 Forbidden: Invalid X-Hub-Signature", http.StatusForbidden)
		return
	}
	fmt.Fprint(w, "Event received. Have a nice day.")

	go s.demuxEvent(eventType, eventGUID, payload)
}

func (s *Server) demuxEvent(eventType, eventGUID string, payload []byte) {
	l := logrus.WithFields(logrus.Fields{
		"event-type": eventType,
		"event-GUID": eventGUID,
	})
	s.Metrics.WebhookCounter.WithLabelValues(eventType).Inc()

	var err error
	switch eventType {
	case "pull_request":
		err = s.handlePullRequestEvent(l, payload)
	case "push":
		err = s.handlePushEvent(l, payload)
	default:
		l.Debug("Ignoring unhandled event type.")
		return
	}
	if err != nil {
		s.Metrics.DispatchErrors.WithLabelValues(eventType).Inc()
		l.WithError(err).Error("Error dispatching event.")
	}
}

// handlePullRequestEvent implements the pull_request(opened) path:
// validate payload, initialize rebase 0, fetch the base branch, parse the
// resulting commit log, then policy-check and reconcile.
func (s *Server) handlePullRequestEvent(l *logrus.Entry, payload []byte) error {
	ev, err := github.DecodePullRequestOpened(payload)
	if err != nil {
		return err
	}
	if ev == nil {
		return nil // not an "opened" action; no-op.
	}
	l = l.WithFields(logrus.Fields{"org": ev.Org, "repo": ev.Repo, "pr": ev.PRNumber})
	ctx := context.Background()

	coords := refs.Coordinates{Org: ev.Org, Repo: ev.Repo, PRNumber: ev.PRNumber, BaseBranch: ev.BaseBranch}

	unlock, err := s.registry.Lock(ctx, ev.Org, ev.Repo, ev.PRNumber)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.registry.Initialize(ctx, coords, ev.HeadRef); err != nil {
		if _, ok := err.(*registry.AlreadyInitialized); ok {
			l.Warn("PR already initialized, ignoring duplicate opened event.")
			return nil
		}
		return err
	}

	if err := s.Repo.Fetch(ctx, s.sshRemote(ev.Org, ev.Repo), ev.BaseBranch); err != nil {
		return err
	}

	rangeExpr := "FETCH_HEAD.." + refs.Build(coords, refs.Head, 0)
	return s.checkAndReconcile(ctx, l, ev.Org, ev.Repo, rangeExpr, ev.HeadSHA)
}

// handlePushEvent implements the push path: locate the owning PR, fetch
// the pushed ref, classify the push, advance or open a new rebase, post a
// comment on rewrite, then policy-check and reconcile.
func (s *Server) handlePushEvent(l *logrus.Entry, payload []byte) error {
	ev, err := github.DecodePush(payload)
	if err != nil {
		return err
	}
	l = l.WithFields(logrus.Fields{"org": ev.Org, "repo": ev.Repo, "ref": ev.Ref})
	ctx := context.Background()

	remote := s.sshRemote(ev.Org, ev.Repo)

	prNumber, ok, err := s.findOwningPR(ctx, remote, ev.ShaAfter)
	if err != nil {
		return err
	}
	if !ok {
		l.Debug("Push does not belong to a tracked PR, ignoring.")
		return nil
	}

	// Take the family lock before reading the registry: latestRebase
	// feeds both the fast-forward head ref and the rewrite comment, so a
	// concurrent delivery for the same family must not slip in between
	// the read and the mutation it gates.
	unlock, err := s.registry.Lock(ctx, ev.Org, ev.Repo, prNumber)
	if err != nil {
		return err
	}
	defer unlock()

	coords, latestRebase, ok, err := s.registry.DiscoverFamily(ctx, ev.Org, ev.Repo, prNumber)
	if err != nil {
		return err
	}
	if !ok {
		l.Warn("Push matches an open PR with no snapshot family yet, ignoring.")
		return nil
	}
	l = l.WithFields(logrus.Fields{"pr": prNumber, "base_branch": coords.BaseBranch})

	if err := s.Repo.Fetch(ctx, remote, ev.Ref); err != nil {
		return err
	}

	isAncestor := func(a, b string) (bool, error) { return s.Repo.IsAncestor(ctx, a, b) }
	kind, err := classify.Push(ev.ShaBefore, ev.ShaAfter, isAncestor)
	if err != nil {
		return err
	}

	var headRef string
	switch kind {
	case classify.FastForward:
		if err := s.registry.AdvanceHead(ctx, coords, "FETCH_HEAD"); err != nil {
			return err
		}
		headRef = refs.Build(coords, refs.Head, latestRebase)
	case classify.Rewrite:
		newN, err := s.registry.OpenNewRebase(ctx, coords, "FETCH_HEAD")
		if err != nil {
			return err
		}
		headRef = refs.Build(coords, refs.Head, newN)

		body := comment.Compose(comment.Input{
			URLRoot:                s.URLRoot,
			BranchName:             coords.String(),
			Sender:                 ev.Sender,
			LatestRebaseBeforePush: latestRebase,
		})
		if err := s.Platform.PostIssueComment(ctx, ev.Org, ev.Repo, prNumber, body); err != nil {
			return err
		}
	}

	if err := s.Repo.Fetch(ctx, remote, coords.BaseBranch); err != nil {
		return err
	}

	rangeExpr := "FETCH_HEAD.." + headRef
	return s.checkAndReconcile(ctx, l, ev.Org, ev.Repo, rangeExpr, ev.ShaAfter)
}

// findOwningPR uses ls-remote to locate the open PR whose head ref
// currently resolves to sha, since a push payload carries no PR number.
func (s *Server) findOwningPR(ctx context.Context, remote, sha string) (int, bool, error) {
	remoteRefs, err := s.Repo.LsRemote(ctx, remote, "refs/pull/*/head")
	if err != nil {
		return 0, false, err
	}
	for _, rr := range remoteRefs {
		if rr.SHA != sha {
			continue
		}
		n, err := parsePRNumberFromPullRef(rr.Ref)
		if err != nil {
			continue
		}
		return n, true, nil
	}
	return 0, false, nil
}

// checkAndReconcile parses the commit log over rangeExpr, policy-checks
// each commit, and reconciles statuses, rolling up to headSHA.
func (s *Server) checkAndReconcile(ctx context.Context, l *logrus.Entry, org, repo, rangeExpr, headSHA string) error {
	raw, err := s.Repo.LogFull(ctx, rangeExpr)
	if err != nil {
		return err
	}
	commits, err := commitlog.Parse(raw)
	if err != nil {
		return err
	}

	cfg := policy.Config{Domains: s.ConfigAgent.Config().Domains}
	showCheck := func(ctx context.Context, sha string) (bool, error) { return s.Repo.ShowCheck(ctx, sha) }

	hadFailures := false
	for _, c := range commits {
		violations := policy.Check(ctx, c, cfg, showCheck)
		for _, v := range violations {
			s.Metrics.ViolationsFound.WithLabelValues(v.RuleID).Inc()
		}
		commitHadFailures, err := s.reconciler.ReconcileCommit(ctx, org, repo, c.SHA, violations)
		if err != nil {
			return err
		}
		hadFailures = hadFailures || commitHadFailures
	}
	if hadFailures {
		if err := s.reconciler.ReconcileBranch(ctx, org, repo, headSHA); err != nil {
			return err
		}
	}
	l.WithFields(logrus.Fields{"commits": len(commits), "had_failures": hadFailures}).Info("Reconciled statuses.")
	return nil
}

func (s *Server) sshRemote(org, repo string) string {
	return sshRemote(s.Hostname, org, repo)
}

// sshRemote builds the SSH fetch URL for (org, repo) against hostname,
// matching the form package git's fetch commands expect as a remote.
func sshRemote(hostname, org, repo string) string {
	return fmt.Sprintf("git@%s:%s/%s.git", hostname, org, repo)
}

// parsePRNumberFromPullRef extracts the PR number from a
// "refs/pull/<n>/head" ref name.
func parsePRNumberFromPullRef(ref string) (int, error) {
	segs := strings.Split(ref, "/")
	if len(segs) != 4 || segs[0] != "refs" || segs[1] != "pull" || segs[3] != "head" {
		return 0, fmt.Errorf("hook: %q is not a refs/pull/<n>/head ref", ref)
	}
	return strconv.Atoi(segs[2])
}

// parseBranchName decodes the branch_name query parameter produced by
// refs.Coordinates.String(): "<org>/<repo>/PR/<pr_number>/<base_branch>".
func parseBranchName(s string) (refs.Coordinates, error) {
	segs := strings.Split(s, "/")
	if len(segs) < 5 {
		return refs.Coordinates{}, fmt.Errorf("hook: %q has too few segments to be a branch_name", s)
	}
	if segs[2] != "PR" {
		return refs.Coordinates{}, fmt.Errorf("hook: %q is missing the PR segment", s)
	}
	prNumber, err := strconv.Atoi(segs[3])
	if err != nil {
		return refs.Coordinates{}, fmt.Errorf("hook: %q has a non-numeric pr_number: %v", s, err)
	}
	baseBranch := strings.Join(segs[4:], "/")
	if baseBranch == "" {
		return refs.Coordinates{}, fmt.Errorf("hook: %q has an empty base_branch", s)
	}
	// Segments end up on git command lines as parts of ref names; hold
	// them to the same grammar the gateway enforces.
	if err := git.ValidateRefName(s); err != nil {
		return refs.Coordinates{}, err
	}
	return refs.Coordinates{Org: segs[0], Repo: segs[1], PRNumber: prNumber, BaseBranch: baseBranch}, nil
}

// splitSelector decodes a "<pointer>-<n>" rebase selector, as produced by
// package comment's sel() helper.
func splitSelector(sel string) (refs.Pointer, int, error) {
	idx := strings.LastIndex(sel, "-")
	if idx < 0 {
		return "", 0, fmt.Errorf("hook: %q is not a <pointer>-<n> selector", sel)
	}
	pointer := refs.Pointer(sel[:idx])
	if pointer != refs.Base && pointer != refs.Head {
		return "", 0, fmt.Errorf("hook: %q has unknown pointer %q", sel, pointer)
	}
	n, err := strconv.Atoi(sel[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("hook: %q has a non-numeric rebase number: %v", sel, err)
	}
	return pointer, n, nil
}

func parseBoolFlag(v string) bool {
	return v == "1"
}

// serveGet routes the four GET diff-view endpoints. Any other GET request
// (e.g. a load balancer health check) is answered with a bare 200.
func (s *Server) serveGet(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/rebase_diff":
		s.serveRebaseDiff(w, r)
	case "/rebase_commit_log_diff":
		s.serveRebaseCommitLogDiff(w, r)
	case "/rebase_diff_series":
		s.serveRebaseDiffSeries(w, r)
	case "/rebase_commit_log_series":
		s.serveRebaseCommitLogSeries(w, r)
	}
}

func writeHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, html)
}

// lockAndFetchBase acquires the family lock for coords and fetches its
// base branch, leaving FETCH_HEAD pointed at the base branch tip for the
// duration of the returned unlock. Callers must not let FETCH_HEAD-reading
// operations outlive the critical section this establishes.
func (s *Server) lockAndFetchBase(ctx context.Context, coords refs.Coordinates) (func(), error) {
	unlock, err := s.registry.Lock(ctx, coords.Org, coords.Repo, coords.PRNumber)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.Fetch(ctx, s.sshRemote(coords.Org, coords.Repo), coords.BaseBranch); err != nil {
		unlock()
		return nil, err
	}
	return unlock, nil
}

func (s *Server) serveRebaseDiff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	coords, err := parseBranchName(q.Get("branch_name"))
	if err != nil {
		http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	startSel, endSel := q.Get("rebase_start"), q.Get("rebase_end")
	startPointer, startN, err := splitSelector(startSel)
	if err != nil {
		http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	endPointer, endN, err := splitSelector(endSel)
	if err != nil {
		http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	sideBySide := parseBoolFlag(q.Get("side_by_side"))

	startRef := refs.Build(coords, startPointer, startN)
	endRef := refs.Build(coords, endPointer, endN)
	// Default a/ b/ prefixes here: this output goes through the
	// structural diff parser, which expects them. The page title carries
	// the selector labels instead.
	diffText, err := s.Repo.Diff(ctx, startRef+".."+endRef, git.DiffOptions{})
	if err != nil {
		http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	title := fmt.Sprintf("%s: %s..%s", coords.String(), startSel, endSel)
	var html string
	if sideBySide {
		html, err = s.renderer.SideBySide(diffText, title)
	} else {
		html, err = s.renderer.Diff(diffText, title)
	}
	if err != nil {
		http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeHTML(w, html)
}

func (s *Server) serveRebaseCommitLogDiff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	coords, err := parseBranchName(q.Get("branch_name"))
	if err != nil {
		http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	startSel, endSel := q.Get("rebase_start"), q.Get("rebase_end")
	startPointer, startN, err := splitSelector(startSel)
	if err != nil {
		http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	endPointer, endN, err := splitSelector(endSel)
	if err != nil {
		http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	showDiffs := parseBoolFlag(q.Get("show_diffs"))
	sideBySide := parseBoolFlag(q.Get("side_by_side"))

	unlock, err := s.lockAndFetchBase(ctx, coords)
	if err != nil {
		http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer unlock()

	startRef := refs.Build(coords, startPointer, startN)
	endRef := refs.Build(coords, endPointer, endN)
	logStart, err := s.Repo.Log(ctx, "FETCH_HEAD.."+startRef, showDiffs)
	if err != nil {
		http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	logEnd, err := s.Repo.Log(ctx, "FETCH_HEAD.."+endRef, showDiffs)
	if err != nil {
		http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	title := fmt.Sprintf("%s: commit log %s..%s", coords.String(), startSel, endSel)
	var html string
	if sideBySide {
		html, err = render.RenderColumns(title, []render.Column{
			{Header: startSel, Text: logStart},
			{Header: endSel, Text: logEnd},
		})
	} else {
		var delta string
		delta, err = render.DiffText(ctx, logStart, logEnd, startSel, endSel)
		if err == nil {
			if delta == "" {
				html, err = render.RenderPre(title, "Commit logs have not changed")
			} else {
				html, err = render.RenderPre(title, delta)
			}
		}
	}
	if err != nil {
		http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeHTML(w, html)
}

var seriesOrdinals = []string{"rebase_first", "rebase_second", "rebase_third", "rebase_fourth"}

func parseSeriesSelectors(q map[string][]string) []string {
	var sels []string
	for _, key := range seriesOrdinals {
		vs, ok := q[key]
		if !ok || vs[0] == "" {
			break
		}
		sels = append(sels, vs[0])
	}
	return sels
}

func (s *Server) serveRebaseDiffSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	coords, err := parseBranchName(q.Get("branch_name"))
	if err != nil {
		http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	sels := parseSeriesSelectors(q)
	if len(sels) < 2 {
		html, _ := render.RenderPre("Rebase Diff Series", "Need at least two rebases to diff.")
		writeHTML(w, html)
		return
	}

	unlock, err := s.lockAndFetchBase(ctx, coords)
	if err != nil {
		http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer unlock()

	var columns []render.Column
	for _, sel := range sels {
		pointer, n, err := splitSelector(sel)
		if err != nil {
			http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}
		ref := refs.Build(coords, pointer, n)
		diffText, err := s.Repo.Diff(ctx, "FETCH_HEAD.."+ref, git.DiffOptions{SrcPrefix: "base", DstPrefix: sel})
		if err != nil {
			http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		columns = append(columns, render.Column{Header: sel, Text: diffText})
	}

	html, err := render.RenderColumns(coords.String()+": rebase diff series", columns)
	if err != nil {
		http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeHTML(w, html)
}

func (s *Server) serveRebaseCommitLogSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	coords, err := parseBranchName(q.Get("branch_name"))
	if err != nil {
		http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	sels := parseSeriesSelectors(q)
	if len(sels) < 2 {
		html, _ := render.RenderPre("Rebase Commit Log Series", "Need at least two rebases to diff.")
		writeHTML(w, html)
		return
	}
	showDiffs := parseBoolFlag(q.Get("show_diffs"))

	unlock, err := s.lockAndFetchBase(ctx, coords)
	if err != nil {
		http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer unlock()

	var columns []render.Column
	for _, sel := range sels {
		pointer, n, err := splitSelector(sel)
		if err != nil {
			http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}
		ref := refs.Build(coords, pointer, n)
		logText, err := s.Repo.Log(ctx, "FETCH_HEAD.."+ref, showDiffs)
		if err != nil {
			http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		columns = append(columns, render.Column{Header: sel, Text: logText})
	}

	html, err := render.RenderColumns(coords.String()+": rebase commit log series", columns)
	if err != nil {
		http.Error(w, "500 Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeHTML(w, html)
}
