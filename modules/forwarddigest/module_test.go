package forwarddigest

import (
	"strings"
	"testing"

	"tessen/pkg/botapi"
	"tessen/pkg/tessen"
)

func TestRenderDigestListsMessagesInOrder(t *testing.T) {
	t.Parallel()

	batch := []*tessen.Message{
		{
			Kind:    tessen.KindText,
			Payload: &botapi.Message{MessageID: 1, Text: "first note"},
		},
		{
			Kind: tessen.KindPhoto,
			Attachments: []*tessen.Attachment{
				{
					Kind:   tessen.AttachmentPhoto,
					FileID: "p1",
					File:   &tessen.ResolvedFile{FilePath: "photos/p1.jpg", URL: "https://files.example/photos/p1.jpg"},
				},
			},
		},
	}

	rendered := renderDigest(batch)

	if !strings.Contains(rendered, "Collected 2 forwarded message(s):") {
		t.Fatalf("unexpected header:\n%s", rendered)
	}
	if !strings.Contains(rendered, "1. first note") {
		t.Fatalf("text line missing:\n%s", rendered)
	}
	if !strings.Contains(rendered, "2. photo https://files.example/photos/p1.jpg") {
		t.Fatalf("attachment line missing:\n%s", rendered)
	}
	if strings.Index(rendered, "first note") > strings.Index(rendered, "photo ") {
		t.Fatalf("batch order lost:\n%s", rendered)
	}
}

func TestDescribeSkipsUnresolvedAttachments(t *testing.T) {
	t.Parallel()

	msg := &tessen.Message{
		Kind: tessen.KindDocument,
		Attachments: []*tessen.Attachment{
			{Kind: tessen.AttachmentDocument, FileID: "d1"},
		},
	}

	if got := describe(msg); got != "document" {
		t.Fatalf("describe = %q, want just the content kind", got)
	}
}

func TestModuleRegistersAsForwardsConsumer(t *testing.T) {
	t.Parallel()

	registration := tessen.Registration{}
	New(nil).Register(&registration)

	registry, err := tessen.NewRegistry(registration)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, found := registry.Forwards(); !found {
		t.Fatal("module must install the aggregated-forwards handler")
	}
}
