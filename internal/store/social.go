package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Channel is a named message space, optionally private to its members.
type Channel struct {
	ID          int64    `json:"-"`
	ChannelID   string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Private     bool     `json:"isPrivate"`
	CreatedBy   string   `json:"createdBy"`
	CreatedAt   int64    `json:"createdAt"`
	Members     []string `json:"members,omitempty"`
}

// Message is one chat message in a channel.
type Message struct {
	ID        int64  `json:"-"`
	MessageID string `json:"id"`
	ChannelID string `json:"channelId"`
	DID       string `json:"did"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"timestamp"`
}

// FeedPost is a public post with tags and per-identity reactions.
type FeedPost struct {
	ID        int64               `json:"-"`
	PostID    string              `json:"id"`
	DID       string              `json:"did"`
	Content   string              `json:"content"`
	Tags      []string            `json:"tags"`
	CreatedAt int64               `json:"timestamp"`
	Reactions map[string][]string `json:"reactions,omitempty"`
}

// SaveChannel inserts a channel and its creator membership atomically.
func (db *DB) SaveChannel(c *Channel) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin channel: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO channels (channel_id, name, description, is_private, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ChannelID, c.Name, c.Description, c.Private, c.CreatedBy, c.CreatedAt); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert channel: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO channel_members (channel_id, did, joined_at) VALUES (?, ?, ?)
	`, c.ChannelID, c.CreatedBy, c.CreatedAt); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert creator membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit channel: %w", err)
	}
	return nil
}

// GetChannel returns a channel with its member list, or nil if absent.
func (db *DB) GetChannel(channelID string) (*Channel, error) {
	var c Channel
	var private int
	err := db.QueryRow(`
		SELECT id, channel_id, name, description, is_private, created_by, created_at
		FROM channels WHERE channel_id = ?
	`, channelID).Scan(&c.ID, &c.ChannelID, &c.Name, &c.Description, &private, &c.CreatedBy, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	c.Private = private != 0

	members, err := db.channelMembers(c.ChannelID)
	if err != nil {
		return nil, err
	}
	c.Members = members
	return &c, nil
}

// GetChannels returns every channel with member lists, newest-first.
func (db *DB) GetChannels() ([]Channel, error) {
	rows, err := db.Query(`
		SELECT id, channel_id, name, description, is_private, created_by, created_at
		FROM channels ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("get channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		var private int
		if err := rows.Scan(&c.ID, &c.ChannelID, &c.Name, &c.Description, &private, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		c.Private = private != 0
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range channels {
		members, err := db.channelMembers(channels[i].ChannelID)
		if err != nil {
			return nil, err
		}
		channels[i].Members = members
	}
	return channels, nil
}

func (db *DB) channelMembers(channelID string) ([]string, error) {
	rows, err := db.Query(`
		SELECT did FROM channel_members WHERE channel_id = ? ORDER BY joined_at ASC, id ASC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("channel members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, did)
	}
	return members, rows.Err()
}

// AddChannelMember adds a DID to a channel. Joining twice is a no-op.
func (db *DB) AddChannelMember(channelID, did string, joinedAt int64) error {
	_, err := db.Exec(`
		INSERT INTO channel_members (channel_id, did, joined_at) VALUES (?, ?, ?)
		ON CONFLICT(channel_id, did) DO NOTHING
	`, channelID, did, joinedAt)
	if err != nil {
		return fmt.Errorf("add channel member: %w", err)
	}
	return nil
}

// SaveMessage inserts a chat message.
func (db *DB) SaveMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (message_id, channel_id, did, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.MessageID, m.ChannelID, m.DID, m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// GetMessages returns the last `limit` messages of a channel in
// chronological order.
func (db *DB) GetMessages(channelID string, limit int) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, message_id, channel_id, did, content, created_at FROM (
			SELECT id, message_id, channel_id, did, content, created_at
			FROM messages WHERE channel_id = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at ASC, id ASC
	`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.MessageID, &m.ChannelID, &m.DID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveFeedPost inserts a feed post.
func (db *DB) SaveFeedPost(p *FeedPost) error {
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO feed_posts (post_id, did, content, tags, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.PostID, p.DID, p.Content, string(tags), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("save feed post: %w", err)
	}
	return nil
}

// GetFeedPost returns a post with its reactions, or nil if absent.
func (db *DB) GetFeedPost(postID string) (*FeedPost, error) {
	row := db.QueryRow(`
		SELECT id, post_id, did, content, tags, created_at FROM feed_posts WHERE post_id = ?
	`, postID)
	p, err := scanFeedPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feed post: %w", err)
	}
	if err := db.attachReactions(p); err != nil {
		return nil, err
	}
	return p, nil
}

func scanFeedPost(row interface{ Scan(...any) error }) (*FeedPost, error) {
	var p FeedPost
	var tags string
	err := row.Scan(&p.ID, &p.PostID, &p.DID, &p.Content, &tags, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if tags != "" && tags != "null" {
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return &p, nil
}

// GetFeedPosts returns posts newest-first with reactions attached.
func (db *DB) GetFeedPosts(limit int) ([]FeedPost, error) {
	rows, err := db.Query(`
		SELECT id, post_id, did, content, tags, created_at
		FROM feed_posts ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get feed posts: %w", err)
	}
	defer rows.Close()

	var posts []FeedPost
	for rows.Next() {
		p, err := scanFeedPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feed post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range posts {
		if err := db.attachReactions(&posts[i]); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

func (db *DB) attachReactions(p *FeedPost) error {
	rows, err := db.Query(`
		SELECT kind, did FROM reactions WHERE post_id = ? ORDER BY created_at ASC, id ASC
	`, p.PostID)
	if err != nil {
		return fmt.Errorf("get reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, did string
		if err := rows.Scan(&kind, &did); err != nil {
			return fmt.Errorf("scan reaction: %w", err)
		}
		if p.Reactions == nil {
			p.Reactions = make(map[string][]string)
		}
		p.Reactions[kind] = append(p.Reactions[kind], did)
	}
	return rows.Err()
}

// AddReaction records a reaction. Returns false if this DID already
// reacted with the same kind.
func (db *DB) AddReaction(postID, did, kind string, createdAt int64) (bool, error) {
	res, err := db.Exec(`
		INSERT INTO reactions (post_id, did, kind, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(post_id, did, kind) DO NOTHING
	`, postID, did, kind, createdAt)
	if err != nil {
		return false, fmt.Errorf("add reaction: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}
