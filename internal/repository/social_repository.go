package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planpact/internal/model"
)

// SocialRepository stores reactions and comments.
type SocialRepository struct {
	db *gorm.DB
}

func NewSocialRepository(db *gorm.DB) *SocialRepository {
	return &SocialRepository{db: db}
}

// UpsertReaction creates the user's reaction on the target or overwrites
// the type of the existing one.
func (r *SocialRepository) UpsertReaction(ctx context.Context, reaction *model.Reaction) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
	}).Create(reaction).Error; err != nil {
		return fmt.Errorf("upsert reaction: %w", err)
	}
	return nil
}

// DeleteReaction removes the user's reaction and reports whether one existed.
func (r *SocialRepository) DeleteReaction(ctx context.Context, target model.TargetType, targetID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ?", target, targetID, userID).
		Delete(&model.Reaction{})
	if res.Error != nil {
		return false, fmt.Errorf("delete reaction: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *SocialRepository) ListReactions(ctx context.Context, target model.TargetType, targetID uint) ([]model.Reaction, error) {
	var reactions []model.Reaction
	if err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", target, targetID).
		Order("id ASC").
		Find(&reactions).Error; err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	return reactions, nil
}

func (r *SocialRepository) CreateComment(ctx context.Context, comment *model.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (r *SocialRepository) GetComment(ctx context.Context, id uint) (*model.Comment, error) {
	var comment model.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateCommentContent rewrites the content and stamps EditedAt.
func (r *SocialRepository) UpdateCommentContent(ctx context.Context, comment *model.Comment) error {
	if err := r.db.WithContext(ctx).Model(comment).Updates(map[string]interface{}{
		"content":   comment.Content,
		"edited_at": comment.EditedAt,
	}).Error; err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return nil
}

// ListComments returns the target's comments in creation order.
func (r *SocialRepository) ListComments(ctx context.Context, target model.TargetType, targetID uint) ([]model.Comment, error) {
	var comments []model.Comment
	if err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", target, targetID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
