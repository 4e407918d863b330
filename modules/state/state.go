// Package state implements the per-workspace State record (§4.10, §3): HEAD,
// the local backend selection (§4.3's Kind + optional persistent id map),
// the staged candidate tree, per-remote branch snapshots, and the local
// branch → upstream map. It is read once, mutated in memory, and rewritten
// as a single value, encoded with github.com/BurntSushi/toml the way
// backend/fsblob encodes its branches file.
package state

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/digest"
)

// HeadKind tags the HEAD variant.
type HeadKind int

const (
	HeadEmpty HeadKind = iota
	HeadDetached
	HeadBranch
)

// Head is one of {Empty, Detached(commit), Branch(name)}.
type Head struct {
	Kind   HeadKind
	Commit digest.Digest
	Branch string
}

// Upstream names the remote+branch a local branch tracks.
type Upstream struct {
	Remote string
	Branch string
}

// StoreConfig selects and configures the local backend §4.3 opens at
// workspace-load time. Kind names one of the concrete Store
// implementations ("fsblob", the default, or "kvlocal"); IDMapDSN, when
// non-empty, is a go-sql-driver/mysql DSN for a persistent id map fronting
// Resolve (§9's open question).
type StoreConfig struct {
	Kind     string
	IDMapDSN string
}

// State is the full per-workspace record.
type State struct {
	Head       Head
	Store      StoreConfig
	Candidate  *digest.Digest
	Remotes    map[string]string                   // remote name -> URL
	RemoteRefs map[string]map[string]digest.Digest // remote name -> branch name -> commit
	Upstreams  map[string]Upstream                 // local branch name -> upstream
}

// Empty returns the State of a freshly initialised workspace.
func Empty() *State {
	return &State{
		Head:       Head{Kind: HeadEmpty},
		Store:      StoreConfig{Kind: "fsblob"},
		Remotes:    map[string]string{},
		RemoteRefs: map[string]map[string]digest.Digest{},
		Upstreams:  map[string]Upstream{},
	}
}

type headRecord struct {
	Kind   string `toml:"kind"`
	Commit string `toml:"commit,omitempty"`
	Branch string `toml:"branch,omitempty"`
}

type remoteBranchRecord struct {
	Name   string `toml:"name"`
	Commit string `toml:"commit"`
}

type remoteRecord struct {
	Name     string               `toml:"name"`
	URL      string               `toml:"url,omitempty"`
	Branches []remoteBranchRecord `toml:"branches"`
}

type upstreamRecord struct {
	Branch         string `toml:"branch"`
	Remote         string `toml:"remote"`
	UpstreamBranch string `toml:"upstream_branch"`
}

type storeRecord struct {
	Kind     string `toml:"kind"`
	IDMapDSN string `toml:"idmap_dsn,omitempty"`
}

type stateFile struct {
	Head      headRecord       `toml:"head"`
	Store     storeRecord      `toml:"store"`
	Candidate string           `toml:"candidate,omitempty"`
	Remotes   []remoteRecord   `toml:"remotes"`
	Upstream  []upstreamRecord `toml:"upstream"`
}

func toFile(s *State) (stateFile, error) {
	var f stateFile
	switch s.Head.Kind {
	case HeadEmpty:
		f.Head = headRecord{Kind: "empty"}
	case HeadDetached:
		f.Head = headRecord{Kind: "detached", Commit: s.Head.Commit.String()}
	case HeadBranch:
		f.Head = headRecord{Kind: "branch", Branch: s.Head.Branch}
	default:
		return stateFile{}, atcerr.NewInvariantViolation("unknown HEAD kind %d", s.Head.Kind)
	}
	f.Store = storeRecord{Kind: s.Store.Kind, IDMapDSN: s.Store.IDMapDSN}
	if s.Candidate != nil {
		f.Candidate = s.Candidate.String()
	}
	names := make(map[string]bool)
	for name := range s.Remotes {
		names[name] = true
	}
	for name := range s.RemoteRefs {
		names[name] = true
	}
	for remote := range names {
		rec := remoteRecord{Name: remote, URL: s.Remotes[remote]}
		for name, commit := range s.RemoteRefs[remote] {
			rec.Branches = append(rec.Branches, remoteBranchRecord{Name: name, Commit: commit.String()})
		}
		f.Remotes = append(f.Remotes, rec)
	}
	for branch, up := range s.Upstreams {
		f.Upstream = append(f.Upstream, upstreamRecord{Branch: branch, Remote: up.Remote, UpstreamBranch: up.Branch})
	}
	return f, nil
}

func fromFile(f stateFile) (*State, error) {
	s := Empty()
	switch f.Head.Kind {
	case "", "empty":
		s.Head = Head{Kind: HeadEmpty}
	case "detached":
		d, err := digest.Parse(f.Head.Commit)
		if err != nil {
			return nil, atcerr.NewMalformedObject("State", "detached HEAD commit: "+err.Error())
		}
		s.Head = Head{Kind: HeadDetached, Commit: d}
	case "branch":
		s.Head = Head{Kind: HeadBranch, Branch: f.Head.Branch}
	default:
		return nil, atcerr.NewMalformedObject("State", "unrecognised HEAD kind "+f.Head.Kind)
	}
	s.Store = StoreConfig{Kind: f.Store.Kind, IDMapDSN: f.Store.IDMapDSN}
	if s.Store.Kind == "" {
		s.Store.Kind = "fsblob"
	}
	if f.Candidate != "" {
		d, err := digest.Parse(f.Candidate)
		if err != nil {
			return nil, atcerr.NewMalformedObject("State", "candidate: "+err.Error())
		}
		s.Candidate = &d
	}
	for _, rec := range f.Remotes {
		if rec.URL != "" {
			s.Remotes[rec.Name] = rec.URL
		}
		branches := map[string]digest.Digest{}
		for _, b := range rec.Branches {
			d, err := digest.Parse(b.Commit)
			if err != nil {
				return nil, atcerr.NewMalformedObject("State", "remote branch: "+err.Error())
			}
			branches[b.Name] = d
		}
		s.RemoteRefs[rec.Name] = branches
	}
	for _, u := range f.Upstream {
		s.Upstreams[u.Branch] = Upstream{Remote: u.Remote, Branch: u.UpstreamBranch}
	}
	return s, nil
}

// Load reads the State record from path, returning Empty() if the file
// does not exist (a freshly initialised workspace).
func Load(path string) (*State, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Empty(), nil
	}
	var f stateFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, atcerr.NewIo("decode state "+path, err)
	}
	return fromFile(f)
}

// Save rewrites the State record at path as a single atomic value (temp
// file + rename), matching backend/fsblob's branch-file write discipline.
func Save(path string, s *State) error {
	f, err := toFile(s)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.toml")
	if err != nil {
		return atcerr.NewIo("create temp state file", err)
	}
	defer os.Remove(tmp.Name())
	if err := toml.NewEncoder(tmp).Encode(f); err != nil {
		tmp.Close()
		return atcerr.NewIo("encode state", err)
	}
	if err := tmp.Close(); err != nil {
		return atcerr.NewIo("close temp state file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return atcerr.NewIo("rename state file into place", err)
	}
	return nil
}
