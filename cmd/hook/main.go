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

package main

import (
	"bytes"
	"flag"
	"io/ioutil"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/NYTimes/gziphandler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/guyincognito/gitbot/config"
	"github.com/guyincognito/gitbot/git"
	"github.com/guyincognito/gitbot/github"
	"github.com/guyincognito/gitbot/hook"
	"github.com/guyincognito/gitbot/logutil"
)

type options struct {
	port int

	configPath string
	repoDir    string
	hostname   string
	urlRoot    string

	dryRun bool

	githubEndpoint  string
	githubTokenFile string

	webhookSecretFile string
}

func gatherOptions() options {
	o := options{}
	flag.IntVar(&o.port, "port", 8888, "Port to listen on.")

	flag.StringVar(&o.configPath, "config-path", "/etc/config/config", "Path to config.yaml.")
	flag.StringVar(&o.repoDir, "repo-dir", "/var/gitbot/registry", "Path to the on-disk repository backing the snapshot registry.")
	flag.StringVar(&o.hostname, "hostname", "github.com", "SSH host used to build fetch remotes for tracked repositories.")
	flag.StringVar(&o.urlRoot, "url-root", "https://gitbot.example.com", "Base URL this instance is reachable at, used in posted comment links.")

	flag.BoolVar(&o.dryRun, "dry-run", true, "Dry run for testing. Uses API tokens but does not mutate.")

	flag.StringVar(&o.githubEndpoint, "github-endpoint", "https://api.github.com", "GitHub's API endpoint.")
	flag.StringVar(&o.githubTokenFile, "github-token-file", "/etc/github/oauth", "Path to the file containing the GitHub OAuth secret.")

	flag.StringVar(&o.webhookSecretFile, "hmac-secret-file", "/etc/webhook/hmac", "Path to the file containing the GitHub HMAC secret.")
	flag.Parse()
	return o
}

func main() {
	o := gatherOptions()
	logrus.SetFormatter(logutil.NewDefaultFieldsFormatter(nil, logrus.Fields{"component": "hook"}))

	configAgent := &config.Agent{}
	if err := configAgent.Start(o.configPath); err != nil {
		logrus.WithError(err).Fatal("Error starting config agent.")
	}

	// Ignore SIGTERM so that we don't drop in-flight hooks when the pod is
	// removed. We'll get SIGTERM first and then SIGKILL after our graceful
	// termination deadline.
	signal.Ignore(syscall.SIGTERM)

	webhookSecretRaw, err := ioutil.ReadFile(o.webhookSecretFile)
	if err != nil {
		logrus.WithError(err).Fatal("Could not read webhook secret file.")
	}
	webhookSecret := bytes.TrimSpace(webhookSecretRaw)

	oauthSecretRaw, err := ioutil.ReadFile(o.githubTokenFile)
	if err != nil {
		logrus.WithError(err).Fatal("Could not read oauth secret file.")
	}
	oauthSecret := string(bytes.TrimSpace(oauthSecretRaw))

	var githubClient *github.Client
	if o.dryRun {
		githubClient, err = github.NewDryRunClient(configAgent.Config().Username, oauthSecret, o.githubEndpoint)
	} else {
		githubClient, err = github.NewClient(configAgent.Config().Username, oauthSecret, o.githubEndpoint)
	}
	if err != nil {
		logrus.WithError(err).Fatal("Error building GitHub client.")
	}

	gitRepo := git.NewRepo(o.repoDir)

	server := hook.NewServer(gitRepo, githubClient, configAgent, webhookSecret, o.hostname, o.urlRoot)

	mux := http.NewServeMux()
	// Return 200 on / for health checks.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/check_rebase", server)
	// The diff-view pages can be large; compress them in flight.
	mux.Handle("/rebase_diff", gziphandler.GzipHandler(server))
	mux.Handle("/rebase_commit_log_diff", gziphandler.GzipHandler(server))
	mux.Handle("/rebase_diff_series", gziphandler.GzipHandler(server))
	mux.Handle("/rebase_commit_log_series", gziphandler.GzipHandler(server))

	logrus.Fatal(http.ListenAndServe(":"+strconv.Itoa(o.port), mux))
}
