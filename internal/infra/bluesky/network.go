package bluesky

import (
	"context"

	"natrail-bot/internal/domain/entity"
)

// Login ensures an authenticated session exists.
func (c *Client) Login(ctx context.Context) error {
	_, err := c.EnsureSession(ctx)
	return err
}

// Upload stores a thumbnail and returns its reference.
func (c *Client) Upload(ctx context.Context, data []byte, mimeType string) (*entity.BlobRef, error) {
	b, err := c.UploadBlob(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	return &entity.BlobRef{Link: b.Ref.Link, MimeType: b.MimeType, Size: b.Size}, nil
}

// Send creates a post from draft.
func (c *Client) Send(ctx context.Context, draft *entity.PostDraft) (entity.PostRef, error) {
	var thumb *Blob
	if draft.Thumb != nil {
		thumb = &Blob{
			Type:     TypeBlob,
			Ref:      BlobRef{Link: draft.Thumb.Link},
			MimeType: draft.Thumb.MimeType,
			Size:     draft.Thumb.Size,
		}
	}
	return c.CreatePost(ctx, NewPost(draft.Text, draft.Spans, draft.Card, thumb, draft.CreatedAt))
}
