// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package gitsync

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// TransportRule routes remotes whose host matches a suffix through a
// proxy. The canonical case is ".onion" remotes through a local Tor
// SOCKS proxy.
type TransportRule struct {
	// HostSuffix matches the remote URL's hostname, e.g. ".onion".
	HostSuffix string `json:"host_suffix"`
	// Proxy is the proxy URL passed to git for matching remotes,
	// e.g. "socks5h://127.0.0.1:9050".
	Proxy string `json:"proxy"`
}

// TransportRules decides, per remote URL, what proxy configuration a
// git invocation needs. Rules apply as scoped -c arguments on the one
// command that talks to the matching remote; global git configuration
// is never touched.
type TransportRules struct {
	rules []TransportRule
}

// NoTransportRules returns an empty rule set that matches nothing.
func NoTransportRules() *TransportRules {
	return &TransportRules{}
}

// LoadTransportRules reads a rules file. The format is jsonc, so the
// file can carry comments explaining why a given network needs a
// proxy.
func LoadTransportRules(path string) (*TransportRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gitsync: reading transport rules: %w", err)
	}
	var rules []TransportRule
	if err := json.Unmarshal(jsonc.ToJSON(data), &rules); err != nil {
		return nil, fmt.Errorf("gitsync: parsing transport rules %s: %w", path, err)
	}
	for i, rule := range rules {
		if rule.HostSuffix == "" || rule.Proxy == "" {
			return nil, fmt.Errorf("gitsync: transport rule %d: host_suffix and proxy are both required", i)
		}
	}
	return &TransportRules{rules: rules}, nil
}

// GitArgs returns the scoped -c arguments a git command needs to reach
// remoteURL, or nil when the remote needs no special transport.
func (t *TransportRules) GitArgs(remoteURL string) []string {
	rule := t.match(remoteURL)
	if rule == nil {
		return nil
	}
	return []string{
		"-c", "http.proxy=" + rule.Proxy,
		"-c", "https.proxy=" + rule.Proxy,
	}
}

func (t *TransportRules) match(remoteURL string) *TransportRule {
	host := remoteHost(remoteURL)
	if host == "" {
		return nil
	}
	for i := range t.rules {
		if strings.HasSuffix(host, t.rules[i].HostSuffix) {
			return &t.rules[i]
		}
	}
	return nil
}

// remoteHost extracts the hostname from a clone URL. Local paths and
// unparseable URLs yield "", which matches no rule.
func remoteHost(remoteURL string) string {
	if !strings.Contains(remoteURL, "://") {
		// scp-like syntax: [user@]host:path
		if at := strings.Index(remoteURL, "@"); at >= 0 {
			if colon := strings.Index(remoteURL[at:], ":"); colon > 0 {
				return remoteURL[at+1 : at+colon]
			}
		}
		return ""
	}
	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
