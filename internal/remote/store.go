// Package remote talks to the hosted repository that owns the relayed file.
package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"gihan9a/filerelay/pkg/relayproto"
)

// CommitMessage is the message attached to every commit written through the relay
const CommitMessage = "Update database.json"

// FileRef identifies a single file in a hosted repository
type FileRef struct {
	Owner  string
	Repo   string
	Path   string
	Branch string // empty means the repository default branch
}

func (r FileRef) String() string {
	s := fmt.Sprintf("%s/%s/%s", r.Owner, r.Repo, r.Path)
	if r.Branch != "" {
		s += "@" + r.Branch
	}
	return s
}

// FileStore reads and writes one file in a remote repository.
//
// Update is expected to hand the caller's sha to the remote side unchanged;
// rejecting stale writes is the remote's job.
type FileStore interface {
	Fetch(ctx context.Context, ref FileRef) (relayproto.FileSnapshot, error)
	Update(ctx context.Context, ref FileRef, req relayproto.UpdateRequest) (json.RawMessage, error)
}
