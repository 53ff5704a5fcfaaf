// Package social implements channels, messages, and the public feed as
// consumers of the kernel's pulse chain.
package social

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/pulse/internal/kernel"
	"github.com/lazypower/pulse/internal/store"
)

// Event names published by the social module.
const (
	EventChannelCreated = "channel:created"
	EventMessageSent    = "message:sent"
	EventFeedPosted     = "feed:posted"
)

// Service exposes social operations over the kernel.
type Service struct {
	k  *kernel.Kernel
	db *store.DB
}

// New creates a social Service.
func New(k *kernel.Kernel) *Service {
	return &Service{k: k, db: k.DB()}
}

// CreateChannel opens a channel with the current identity as first member.
func (s *Service) CreateChannel(name, description string, private bool) (*store.Channel, error) {
	did := s.k.CurrentDID()
	if did == "" {
		return nil, kernel.ErrNoActiveIdentity
	}
	if name == "" {
		return nil, fmt.Errorf("name required: %w", kernel.ErrInvalidArgument)
	}

	c := &store.Channel{
		ChannelID:   uuid.NewString(),
		Name:        name,
		Description: description,
		Private:     private,
		CreatedBy:   did,
		CreatedAt:   time.Now().UnixMilli(),
		Members:     []string{did},
	}
	if err := s.db.SaveChannel(c); err != nil {
		return nil, err
	}

	ctx, _ := json.Marshal(map[string]string{"channelId": c.ChannelID, "name": name})
	if _, err := s.k.Emit("channel_created", 2, ctx, "", nil); err != nil {
		return nil, err
	}

	s.k.Publish(EventChannelCreated, c)
	return c, nil
}

// Channels lists channels visible to the current identity: public ones
// plus private ones it belongs to.
func (s *Service) Channels() ([]store.Channel, error) {
	channels, err := s.db.GetChannels()
	if err != nil {
		return nil, err
	}

	did := s.k.CurrentDID()
	visible := channels[:0]
	for _, c := range channels {
		if !c.Private || slices.Contains(c.Members, did) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// JoinChannel adds the current identity to a public channel. Joining a
// channel you are already in is a no-op.
func (s *Service) JoinChannel(channelID string) (*store.Channel, error) {
	did := s.k.CurrentDID()
	if did == "" {
		return nil, kernel.ErrNoActiveIdentity
	}

	c, err := s.db.GetChannel(channelID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, kernel.ErrNotFound)
	}
	if c.Private {
		return nil, fmt.Errorf("cannot join private channel: %w", kernel.ErrInvalidArgument)
	}

	if !slices.Contains(c.Members, did) {
		if err := s.db.AddChannelMember(channelID, did, time.Now().UnixMilli()); err != nil {
			return nil, err
		}
		c.Members = append(c.Members, did)
	}
	return c, nil
}

// SendMessage posts a message to a channel.
func (s *Service) SendMessage(channelID, content string) (*store.Message, error) {
	did := s.k.CurrentDID()
	if did == "" {
		return nil, kernel.ErrNoActiveIdentity
	}

	c, err := s.db.GetChannel(channelID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, kernel.ErrNotFound)
	}

	m := &store.Message{
		MessageID: uuid.NewString(),
		ChannelID: channelID,
		DID:       did,
		Content:   content,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.db.SaveMessage(m); err != nil {
		return nil, err
	}

	ctx, _ := json.Marshal(map[string]string{"channelId": channelID})
	if _, err := s.k.Emit("message_sent", 0.5, ctx, "", nil); err != nil {
		return nil, err
	}

	s.k.Publish(EventMessageSent, m)
	return m, nil
}

// Messages returns the last `limit` messages of a channel in
// chronological order.
func (s *Service) Messages(channelID string, limit int) ([]store.Message, error) {
	return s.db.GetMessages(channelID, limit)
}

// CreatePost publishes a feed post with optional tags.
func (s *Service) CreatePost(content string, tags []string) (*store.FeedPost, error) {
	did := s.k.CurrentDID()
	if did == "" {
		return nil, kernel.ErrNoActiveIdentity
	}

	p := &store.FeedPost{
		PostID:    uuid.NewString(),
		DID:       did,
		Content:   content,
		Tags:      tags,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.db.SaveFeedPost(p); err != nil {
		return nil, err
	}

	ctx, _ := json.Marshal(map[string]string{"postId": p.PostID})
	if _, err := s.k.Emit("feed_post_created", 1, ctx, "", nil); err != nil {
		return nil, err
	}

	s.k.Publish(EventFeedPosted, p)
	return p, nil
}

// Posts returns feed posts newest-first.
func (s *Service) Posts(limit int) ([]store.FeedPost, error) {
	return s.db.GetFeedPosts(limit)
}

// React records a reaction on a post. A repeat reaction of the same kind
// by the same identity is a no-op and emits nothing.
func (s *Service) React(postID, kind string) (*store.FeedPost, error) {
	did := s.k.CurrentDID()
	if did == "" {
		return nil, kernel.ErrNoActiveIdentity
	}

	p, err := s.db.GetFeedPost(postID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("post %s: %w", postID, kernel.ErrNotFound)
	}

	added, err := s.db.AddReaction(postID, did, kind, time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	if added {
		ctx, _ := json.Marshal(map[string]string{"postId": postID, "reaction": kind})
		if _, err := s.k.Emit("reaction_added", 0.1, ctx, "", nil); err != nil {
			return nil, err
		}
	}

	return s.db.GetFeedPost(postID)
}
