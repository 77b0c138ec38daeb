package model

import "time"

// TargetType identifies what a reaction or comment is attached to.
type TargetType string

const (
	TargetCheckIn  TargetType = "checkin"
	TargetProgress TargetType = "progress"
)

// ReactionType is the kind of reaction left on a target.
type ReactionType string

const (
	ReactionLike      ReactionType = "LIKE"
	ReactionCheer     ReactionType = "CHEER"
	ReactionFire      ReactionType = "FIRE"
	ReactionClap      ReactionType = "CLAP"
	ReactionSupport   ReactionType = "SUPPORT"
	ReactionCelebrate ReactionType = "CELEBRATE"
)

// ReactionTypes lists every reaction type in declaration order.
var ReactionTypes = []ReactionType{
	ReactionLike,
	ReactionCheer,
	ReactionFire,
	ReactionClap,
	ReactionSupport,
	ReactionCelebrate,
}

// Valid reports whether t is a known reaction type.
func (t ReactionType) Valid() bool {
	for _, known := range ReactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Reaction is unique per (target, user); re-reacting overwrites Type.
type Reaction struct {
	ID         uint         `gorm:"primaryKey"`
	TargetType TargetType   `gorm:"size:16;not null;uniqueIndex:idx_reaction_target_user,priority:1"`
	TargetID   uint         `gorm:"not null;uniqueIndex:idx_reaction_target_user,priority:2"`
	UserID     uint         `gorm:"not null;uniqueIndex:idx_reaction_target_user,priority:3"`
	Type       ReactionType `gorm:"size:16;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Comment is a member comment on a check-in or progress day.
type Comment struct {
	ID         uint       `gorm:"primaryKey"`
	TargetType TargetType `gorm:"size:16;not null;index:idx_comment_target,priority:1"`
	TargetID   uint       `gorm:"not null;index:idx_comment_target,priority:2"`
	AuthorID   uint       `gorm:"not null;index"`
	Content    string     `gorm:"type:text;not null"`
	CreatedAt  time.Time  `gorm:"index:idx_comment_target,priority:3"`
	EditedAt   *time.Time
}
