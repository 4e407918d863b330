package codec

import (
	"testing"

	"github.com/attaca-vcs/attaca/modules/digest"
	"github.com/stretchr/testify/require"
)

func TestSmallRoundTrip(t *testing.T) {
	for _, contents := range [][]byte{nil, []byte("hello"), make([]byte, 4096)} {
		b := EncodeSmall(contents)
		got, err := DecodeSmall(b)
		require.NoError(t, err)
		require.Equal(t, contents, got)
	}
}

func mkDigest(b byte) digest.Digest {
	var d digest.Digest
	d[0] = b
	return d
}

func TestLargeRoundTrip(t *testing.T) {
	entries := []LargeEntry{
		{Start: 10, End: 20, Ref: mkDigest(1)},
		{Start: 0, End: 10, Ref: mkDigest(2)},
		{Start: 20, End: 30, Ref: mkDigest(1)},
	}
	blob := EncodeLarge(entries)
	require.Len(t, blob.Refs, 2, "refs deduplicated in first-seen order")

	got, err := DecodeLarge(blob, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, int64(0), got[0].Start)
	require.Equal(t, int64(10), got[1].Start)
	require.Equal(t, int64(20), got[2].Start)
}

func TestLargeRejectsOverlap(t *testing.T) {
	blob := Blob{Bytes: []byte("0 10 0\n5 15 0\n"), Refs: []digest.Digest{mkDigest(1)}}
	_, err := DecodeLarge(blob, nil)
	require.Error(t, err)
}

func TestLargeRejectsBadRefIndex(t *testing.T) {
	blob := Blob{Bytes: []byte("0 10 3\n"), Refs: []digest.Digest{mkDigest(1)}}
	_, err := DecodeLarge(blob, nil)
	require.Error(t, err)
}

func TestTreeRoundTrip(t *testing.T) {
	entries := []TreeEntry{
		{Name: "zebra", Kind: TreeEntryData, Size: 4, Depth: 0, Ref: mkDigest(1)},
		{Name: "alpha", Kind: TreeEntryTree, Ref: mkDigest(2)},
		{Name: "middle", Kind: TreeEntryData, Size: 8192, Depth: 1, Ref: mkDigest(1)},
	}
	blob := EncodeTree(entries)
	require.Len(t, blob.Refs, 2)

	got, err := DecodeTree(blob)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "alpha", got[0].Name)
	require.Equal(t, "middle", got[1].Name)
	require.Equal(t, "zebra", got[2].Name)
	require.Equal(t, TreeEntryTree, got[0].Kind)
	require.Equal(t, int64(8192), got[1].Size)
	require.Equal(t, 1, got[1].Depth)
}

func TestTreeRejectsSlashInName(t *testing.T) {
	entries := []TreeEntry{{Name: "a/b", Kind: TreeEntryTree, Ref: mkDigest(1)}}
	blob := EncodeTree(entries)
	_, err := DecodeTree(blob)
	require.Error(t, err)
}

func TestTreeRejectsDuplicateName(t *testing.T) {
	blob := Blob{Bytes: []byte("10:0 tree dup,10:0 tree dup,"), Refs: []digest.Digest{mkDigest(1)}}
	_, err := DecodeTree(blob)
	require.Error(t, err)
}

func TestCommitRoundTrip(t *testing.T) {
	name := "Ada Lovelace"
	mailbox := "ada@example.com"
	message := "initial import"
	c := Commit{
		Subtree:        mkDigest(1),
		Parents:        []digest.Digest{mkDigest(2), mkDigest(3)},
		TimestampNanos: 1700000000000000000,
		AuthorName:     &name,
		AuthorMailbox:  &mailbox,
		Message:        &message,
	}
	blob := EncodeCommit(c)
	got, err := DecodeCommit(blob)
	require.NoError(t, err)
	require.Equal(t, c.Subtree, got.Subtree)
	require.Equal(t, c.Parents, got.Parents)
	require.Equal(t, c.TimestampNanos, got.TimestampNanos)
	require.Equal(t, *c.AuthorName, *got.AuthorName)
	require.Equal(t, *c.AuthorMailbox, *got.AuthorMailbox)
	require.Equal(t, *c.Message, *got.Message)
}

func TestCommitPreservesUnrecognisedLines(t *testing.T) {
	c := Commit{Subtree: mkDigest(1), UnrecognisedLines: []string{`<this> some:unknownPredicate "value" .`}}
	blob := EncodeCommit(c)

	got, err := DecodeCommit(blob)
	require.NoError(t, err)
	require.Len(t, got.UnrecognisedLines, 1)
	require.Contains(t, got.UnrecognisedLines[0], "some:unknownPredicate")

	reencoded := EncodeCommit(got)
	redecoded, err := DecodeCommit(reencoded)
	require.NoError(t, err)
	require.Equal(t, got.UnrecognisedLines, redecoded.UnrecognisedLines)
}
