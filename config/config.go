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

// Package config knows how to read and parse config.yaml.
package config

import (
	"fmt"
	"io/ioutil"

	"sigs.k8s.io/yaml"
)

// Config is a read-only snapshot of the bot's configuration: the
// credentials it authenticates with, the platform it talks to, and the
// policy allow-list the checker consults.
type Config struct {
	// Username is the bot account's login, used for HTTP Basic auth
	// against the platform API.
	Username string `json:"username,omitempty"`
	// PersonalAccessToken is the token for Username against the platform
	// API. cmd/hook does not read it: it takes the token from the file
	// named by its -github-token-file flag.
	PersonalAccessToken string `json:"personal_access_token,omitempty"`
	// Endpoint is the platform's REST API base URL, e.g.
	// "https://api.github.com/". cmd/hook does not read it: it takes the
	// endpoint from its -github-endpoint flag.
	Endpoint string `json:"endpoint,omitempty"`
	// Hostname is the SSH host for a repo's fetch remote, e.g.
	// "github.com". cmd/hook does not read it: it takes the host from its
	// -hostname flag.
	Hostname string `json:"hostname,omitempty"`
	// Domains is the allow-listed set of email domains the policy checker
	// accepts for commit author/committer addresses.
	Domains []string `json:"domains,omitempty"`
}

// Load loads and parses the config at path.
func Load(path string) (*Config, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %v", path, err)
	}
	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshaling %s: %v", path, err)
	}
	return c, nil
}
