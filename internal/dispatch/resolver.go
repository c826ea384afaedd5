package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tessen/pkg/botapi"
	"tessen/pkg/tessen"
)

// FileGateway is the external file-lookup collaborator: it turns a file
// identifier into a retrievable path and composes the download URL.
// *botapi.Client satisfies it.
type FileGateway interface {
	GetFile(ctx context.Context, fileID string) (*botapi.File, error)
	FileURL(filePath string) string
}

// Resolver enriches canonical messages with resolved attachment locations.
type Resolver struct {
	gateway FileGateway
}

// NewResolver creates an attachment resolver over one file gateway.
func NewResolver(gateway FileGateway) (*Resolver, error) {
	if gateway == nil {
		return nil, fmt.Errorf("new resolver: nil file gateway")
	}

	return &Resolver{gateway: gateway}, nil
}

// Enrich resolves every resolvable attachment reference on msg, including
// thumbnail sub-references, with full fan-out. Results land in place, so
// the original attachment order is preserved. Already-resolved references
// are left untouched, which makes enrichment idempotent.
// Failures propagate to the caller; error isolation is the caller's job.
func (r *Resolver) Enrich(ctx context.Context, msg *tessen.Message) error {
	if msg == nil || len(msg.Attachments) == 0 {
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, attachment := range msg.Attachments {
		for _, ref := range []*tessen.Attachment{attachment, attachment.Thumbnail} {
			if ref == nil || ref.File != nil || !ref.Resolvable() {
				continue
			}
			group.Go(func() error {
				return r.resolveInto(groupCtx, ref)
			})
		}
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("enrich message: %w", err)
	}

	return nil
}

// resolveInto resolves one reference and attaches the result under its file key.
func (r *Resolver) resolveInto(ctx context.Context, ref *tessen.Attachment) error {
	file, err := r.gateway.GetFile(ctx, ref.FileID)
	if err != nil {
		return fmt.Errorf("resolve %s attachment %s: %w", ref.Kind, ref.FileID, err)
	}
	ref.File = &tessen.ResolvedFile{
		FilePath: file.FilePath,
		URL:      r.gateway.FileURL(file.FilePath),
	}

	return nil
}
