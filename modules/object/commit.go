package object

import (
	"context"
	"time"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/codec"
	"github.com/attaca-vcs/attaca/modules/digest"
)

// Author is the optional {name, mailbox} record §3 describes.
type Author struct {
	Name    *string
	Mailbox *string
}

// Commit is the decoded, in-memory view of a Commit object.
type Commit struct {
	Handle    backend.Handle
	Subtree   Reference
	Parents   []Reference
	Timestamp time.Time
	Author    Author
	Message   *string

	unrecognisedLines []string
}

// FetchCommit loads and decodes a Commit object.
func FetchCommit(ctx context.Context, f Fetcher, h backend.Handle) (*Commit, error) {
	raw, refHandles, err := f.Load(ctx, h)
	if err != nil {
		return nil, err
	}
	refDigests := make([]digest.Digest, len(refHandles))
	handleByDigest := make(map[digest.Digest]backend.Handle, len(refHandles))
	for i, rh := range refHandles {
		d, err := f.Digest("", rh)
		if err != nil {
			return nil, err
		}
		refDigests[i] = d
		handleByDigest[d] = rh
	}
	decoded, err := codec.DecodeCommit(codec.Blob{Bytes: raw, Refs: refDigests})
	if err != nil {
		return nil, err
	}
	parents := make([]Reference, len(decoded.Parents))
	for i, d := range decoded.Parents {
		parents[i] = Reference{Kind: KindCommit, Handle: handleByDigest[d]}
	}
	return &Commit{
		Handle:            h,
		Subtree:           Reference{Kind: KindTree, Handle: handleByDigest[decoded.Subtree]},
		Parents:           parents,
		Timestamp:         time.Unix(0, decoded.TimestampNanos).UTC(),
		Author:            Author{Name: decoded.AuthorName, Mailbox: decoded.AuthorMailbox},
		Message:           decoded.Message,
		unrecognisedLines: decoded.UnrecognisedLines,
	}, nil
}

// CommitRequest is the caller-supplied logical value used to build a new
// Commit object.
type CommitRequest struct {
	Subtree   Reference
	Parents   []Reference
	Timestamp time.Time
	Author    Author
	Message   *string
}

// BuildCommit assembles and finishes a Commit object.
func BuildCommit(ctx context.Context, reg *backend.Registry, req CommitRequest) (Reference, error) {
	subtreeDigest, err := reg.Digest("", req.Subtree.Handle)
	if err != nil {
		return Reference{}, err
	}
	parentDigests := make([]digest.Digest, len(req.Parents))
	for i, p := range req.Parents {
		d, err := reg.Digest("", p.Handle)
		if err != nil {
			return Reference{}, err
		}
		parentDigests[i] = d
	}
	blob := codec.EncodeCommit(codec.Commit{
		Subtree:        subtreeDigest,
		Parents:        parentDigests,
		TimestampNanos: req.Timestamp.UnixNano(),
		AuthorName:     req.Author.Name,
		AuthorMailbox:  req.Author.Mailbox,
		Message:        req.Message,
	})
	b := reg.Builder()
	if _, err := b.Write(blob.Bytes); err != nil {
		return Reference{}, err
	}
	b.AddReference(req.Subtree.Handle)
	for _, p := range req.Parents {
		b.AddReference(p.Handle)
	}
	h, err := reg.Finish(ctx, b)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Kind: KindCommit, Handle: h}, nil
}
