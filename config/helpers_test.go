package config

import (
	"time"

	pr "github.com/unkn0wn-root/depcache/provider"
)

func withKind(kind string, mut func(*ProviderConfig)) ProviderConfig {
	p := DefaultConfig().Provider
	p.Kind = kind
	if mut != nil {
		mut(&p)
	}
	return p
}

func entryOpts() pr.EntryOptions { return pr.EntryOptions{TTL: time.Minute, Cost: 1} }
