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

package github

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	gogithub "github.com/google/go-github/github"
)

// PayloadError means the webhook body didn't match either of the two
// shapes this bot understands.
type PayloadError struct {
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("github: malformed webhook payload: %s", e.Reason)
}

// ValidatePayload checks the legacy X-Hub-Signature header (HMAC-SHA1)
// against secret. GitHub's newer SHA-256 signature is not accepted here;
// the platform this bot targets only ever sends X-Hub-Signature.
func ValidatePayload(payload []byte, signatureHeader string, secret []byte) bool {
	const prefix = "sha1="
	if !strings.HasPrefix(signatureHeader, prefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha1.New, secret)
	mac.Write(payload)
	got := mac.Sum(nil)
	return hmac.Equal(want, got)
}

// PullRequestOpened is the narrowed, closed variant of a "pull_request"
// webhook body this bot acts on (action == "opened").
type PullRequestOpened struct {
	Org        string
	Repo       string
	PRNumber   int
	BaseBranch string
	BaseSHA    string
	HeadSHA    string
	HeadRef    string // e.g. "refs/pull/7/head"
	Sender     string
}

// Push is the narrowed, closed variant of a "push" webhook body.
type Push struct {
	Org       string
	Repo      string
	Ref       string // e.g. "refs/heads/my-branch"
	ShaBefore string
	ShaAfter  string
	Sender    string
}

// DecodePullRequestOpened unmarshals a "pull_request" webhook payload and
// narrows it. Actions other than "opened" yield a nil *PullRequestOpened
// and a nil error -- the dispatcher treats that as a no-op, not a failure.
func DecodePullRequestOpened(payload []byte) (*PullRequestOpened, error) {
	var ev gogithub.PullRequestEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, &PayloadError{Reason: err.Error()}
	}
	if ev.GetAction() != "opened" {
		return nil, nil
	}
	pr := ev.GetPullRequest()
	repo := ev.GetRepo()
	if pr == nil || repo == nil || repo.GetOwner() == nil {
		return nil, &PayloadError{Reason: "pull_request event is missing repo or pull_request"}
	}
	return &PullRequestOpened{
		Org:        repo.GetOwner().GetLogin(),
		Repo:       repo.GetName(),
		PRNumber:   ev.GetNumber(),
		BaseBranch: pr.GetBase().GetRef(),
		BaseSHA:    pr.GetBase().GetSHA(),
		HeadSHA:    pr.GetHead().GetSHA(),
		HeadRef:    fmt.Sprintf("refs/pull/%d/head", ev.GetNumber()),
		Sender:     ev.GetSender().GetLogin(),
	}, nil
}

// shaRE matches the hex object names push payloads carry. Anything else
// never reaches a git command line.
var shaRE = regexp.MustCompile(`^[0-9a-f]{1,40}$`)

// DecodePush unmarshals a "push" webhook payload and narrows it.
func DecodePush(payload []byte) (*Push, error) {
	var ev gogithub.PushEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, &PayloadError{Reason: err.Error()}
	}
	repo := ev.GetRepo()
	if repo == nil {
		return nil, &PayloadError{Reason: "push event is missing repo"}
	}
	if !shaRE.MatchString(ev.GetBefore()) || !shaRE.MatchString(ev.GetAfter()) {
		return nil, &PayloadError{Reason: "push event has malformed before/after shas"}
	}
	org := repo.GetOwner().GetName()
	if org == "" {
		// Some deliveries only populate the owner's login, not its name.
		// go-github's push owner type has no login field, so read it from
		// the raw payload.
		var raw struct {
			Repository struct {
				Owner struct {
					Login string `json:"login"`
				} `json:"owner"`
			} `json:"repository"`
		}
		if err := json.Unmarshal(payload, &raw); err == nil {
			org = raw.Repository.Owner.Login
		}
	}
	return &Push{
		Org:       org,
		Repo:      repo.GetName(),
		Ref:       ev.GetRef(),
		ShaBefore: ev.GetBefore(),
		ShaAfter:  ev.GetAfter(),
		Sender:    ev.GetSender().GetLogin(),
	}, nil
}
