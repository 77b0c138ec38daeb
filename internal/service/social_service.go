package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"planpact/internal/model"
	"planpact/internal/push"
	"planpact/internal/repository"
)

const unknownMember = "Unknown member"

// Target addresses a check-in or a progress day.
type Target struct {
	Type model.TargetType
	ID   uint
}

// ParseTargetType accepts the wire names of target types.
func ParseTargetType(s string) (model.TargetType, error) {
	switch model.TargetType(strings.ToLower(s)) {
	case model.TargetCheckIn:
		return model.TargetCheckIn, nil
	case model.TargetProgress:
		return model.TargetProgress, nil
	}
	return "", invalid("unknown target type %q", s)
}

// ReactionSummary is the per-type rollup of reactions on a target.
type ReactionSummary struct {
	Type            model.ReactionType `json:"type"`
	Count           int                `json:"count"`
	ReactedByViewer bool               `json:"reactedByViewer"`
}

// CommentView is a comment with its author name resolved.
type CommentView struct {
	ID         uint       `json:"id"`
	AuthorID   uint       `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
}

// Overlay is the social layer shown on top of a target.
type Overlay struct {
	Comments  []CommentView     `json:"comments"`
	Reactions []ReactionSummary `json:"reactions"`
}

// SummarizeReactions groups reactions by type. Only types that occur are
// returned, in ReactionTypes order. With a nil viewer no flag is set.
func SummarizeReactions(reactions []model.Reaction, viewerID *uint) []ReactionSummary {
	byType := make(map[model.ReactionType]*ReactionSummary)
	for _, r := range reactions {
		sum, ok := byType[r.Type]
		if !ok {
			sum = &ReactionSummary{Type: r.Type}
			byType[r.Type] = sum
		}
		sum.Count++
		if viewerID != nil && r.UserID == *viewerID {
			sum.ReactedByViewer = true
		}
	}

	out := make([]ReactionSummary, 0, len(byType))
	for _, t := range model.ReactionTypes {
		if sum, ok := byType[t]; ok {
			out = append(out, *sum)
			delete(byType, t)
		}
	}
	// Types that are no longer declared go last, by name.
	var rest []model.ReactionType
	for t := range byType {
		rest = append(rest, t)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, t := range rest {
		out = append(out, *byType[t])
	}
	return out
}

// BuildComments resolves author names. Authors missing from users are
// shown as unknown.
func BuildComments(comments []model.Comment, users map[uint]model.User) []CommentView {
	out := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		name := unknownMember
		if u, ok := users[c.AuthorID]; ok {
			name = u.DisplayName()
		}
		out = append(out, CommentView{
			ID:         c.ID,
			AuthorID:   c.AuthorID,
			AuthorName: name,
			Content:    c.Content,
			CreatedAt:  c.CreatedAt,
			EditedAt:   c.EditedAt,
		})
	}
	return out
}

// SocialService serves reactions and comments on check-ins and progress days.
type SocialService struct {
	plans    *repository.PlanRepository
	progress *repository.ProgressRepository
	social   *repository.SocialRepository
	users    *repository.UserRepository
	notifier Notifier
	push     push.Broadcaster
	now      func() time.Time
	log      *logrus.Entry
}

func NewSocialService(
	plans *repository.PlanRepository,
	progress *repository.ProgressRepository,
	social *repository.SocialRepository,
	users *repository.UserRepository,
	notifier Notifier,
	broadcaster push.Broadcaster,
	log *logrus.Logger,
) *SocialService {
	return &SocialService{
		plans:    plans,
		progress: progress,
		social:   social,
		users:    users,
		notifier: notifier,
		push:     broadcaster,
		now:      time.Now,
		log:      log.WithField("component", "social"),
	}
}

// targetInfo is what the write paths need to know about a target.
type targetInfo struct {
	planID        uint
	ownerMemberID uint
	label         string
}

func (s *SocialService) resolveTarget(ctx context.Context, target Target) (*targetInfo, error) {
	switch target.Type {
	case model.TargetCheckIn:
		event, err := s.progress.GetCheckIn(ctx, target.ID)
		if err != nil {
			return nil, notFound(err, "check-in")
		}
		return &targetInfo{planID: event.PlanID, ownerMemberID: event.MemberID, label: "check-in"}, nil
	case model.TargetProgress:
		day, err := s.progress.GetProgress(ctx, target.ID)
		if err != nil {
			return nil, notFound(err, "progress")
		}
		return &targetInfo{planID: day.PlanID, ownerMemberID: day.MemberID, label: "progress on " + day.Day}, nil
	}
	return nil, invalid("unknown target type %q", target.Type)
}

// requireMember returns the actor's membership in planID or ErrAccessDenied.
func (s *SocialService) requireMember(ctx context.Context, planID, userID uint) (*model.PlanMember, error) {
	member, err := s.plans.FindMember(ctx, planID, userID)
	if err != nil {
		return nil, denied(err, planID, userID)
	}
	return member, nil
}

// Overlay returns the comments and reaction summaries of a target. A nil
// viewer gets every ReactedByViewer flag false; a known viewer must be a
// member of the target's plan.
func (s *SocialService) Overlay(ctx context.Context, target Target, viewerID *uint) (*Overlay, error) {
	info, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	if viewerID != nil {
		if _, err := s.requireMember(ctx, info.planID, *viewerID); err != nil {
			return nil, err
		}
	}
	return s.overlay(ctx, target, viewerID)
}

func (s *SocialService) overlay(ctx context.Context, target Target, viewerID *uint) (*Overlay, error) {
	reactions, err := s.social.ListReactions(ctx, target.Type, target.ID)
	if err != nil {
		return nil, err
	}
	comments, err := s.social.ListComments(ctx, target.Type, target.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	return &Overlay{
		Comments:  BuildComments(comments, users),
		Reactions: SummarizeReactions(reactions, viewerID),
	}, nil
}

// React sets the actor's reaction on the target, replacing any earlier one.
func (s *SocialService) React(ctx context.Context, actorID uint, target Target, reaction model.ReactionType) ([]ReactionSummary, error) {
	if !reaction.Valid() {
		return nil, invalid("unknown reaction type %q", reaction)
	}
	info, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	actor, err := s.requireMember(ctx, info.planID, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.social.UpsertReaction(ctx, &model.Reaction{
		TargetType: target.Type,
		TargetID:   target.ID,
		UserID:     actorID,
		Type:       reaction,
	}); err != nil {
		return nil, err
	}

	summary, err := s.summary(ctx, target, actorID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, info.planID, push.TypeReactionUpdated, target, map[string]interface{}{"reactions": summary})
	s.notifyOwner(ctx, info, actor, model.NotifyReaction,
		fmt.Sprintf("%s reacted %s to your %s", actor.User.DisplayName(), reactionEmoji(reaction), info.label), target)
	return summary, nil
}

// Unreact removes the actor's reaction. Removing a missing reaction is a no-op.
func (s *SocialService) Unreact(ctx context.Context, actorID uint, target Target) ([]ReactionSummary, error) {
	info, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, info.planID, actorID); err != nil {
		return nil, err
	}

	removed, err := s.social.DeleteReaction(ctx, target.Type, target.ID, actorID)
	if err != nil {
		return nil, err
	}
	summary, err := s.summary(ctx, target, actorID)
	if err != nil {
		return nil, err
	}
	if removed {
		s.publish(ctx, info.planID, push.TypeReactionUpdated, target, map[string]interface{}{"reactions": summary})
	}
	return summary, nil
}

type commentInput struct {
	Content string `validate:"required,max=2000"`
}

// AddComment adds a comment by the actor to the target.
func (s *SocialService) AddComment(ctx context.Context, actorID uint, target Target, content string) (*CommentView, error) {
	content = strings.TrimSpace(content)
	if err := validateStruct(commentInput{Content: content}); err != nil {
		return nil, err
	}
	info, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	actor, err := s.requireMember(ctx, info.planID, actorID)
	if err != nil {
		return nil, err
	}

	comment := model.Comment{
		TargetType: target.Type,
		TargetID:   target.ID,
		AuthorID:   actorID,
		Content:    content,
	}
	if err := s.social.CreateComment(ctx, &comment); err != nil {
		return nil, err
	}

	view := BuildComments([]model.Comment{comment}, map[uint]model.User{actor.User.ID: actor.User})[0]
	s.publish(ctx, info.planID, push.TypeCommentAdded, target, map[string]interface{}{"comment": view})
	s.notifyOwner(ctx, info, actor, model.NotifyComment,
		fmt.Sprintf("%s commented on your %s: %s", actor.User.DisplayName(), info.label, preview(content)), target)
	return &view, nil
}

// EditComment replaces the content of the actor's own comment.
func (s *SocialService) EditComment(ctx context.Context, actorID, commentID uint, content string) (*CommentView, error) {
	content = strings.TrimSpace(content)
	if err := validateStruct(commentInput{Content: content}); err != nil {
		return nil, err
	}
	comment, err := s.social.GetComment(ctx, commentID)
	if err != nil {
		return nil, notFound(err, "comment")
	}
	if comment.AuthorID != actorID {
		return nil, fmt.Errorf("comment %d belongs to another user: %w", commentID, ErrAccessDenied)
	}

	edited := s.now().UTC()
	comment.Content = content
	comment.EditedAt = &edited
	if err := s.social.UpdateCommentContent(ctx, comment); err != nil {
		return nil, err
	}

	users, err := s.users.FindByIDs(ctx, []uint{actorID})
	if err != nil {
		return nil, err
	}
	view := BuildComments([]model.Comment{*comment}, users)[0]
	return &view, nil
}

func (s *SocialService) summary(ctx context.Context, target Target, viewerID uint) ([]ReactionSummary, error) {
	reactions, err := s.social.ListReactions(ctx, target.Type, target.ID)
	if err != nil {
		return nil, err
	}
	return SummarizeReactions(reactions, &viewerID), nil
}

func (s *SocialService) publish(ctx context.Context, planID uint, t push.MessageType, target Target, payload map[string]interface{}) {
	payload["targetType"] = target.Type
	payload["targetId"] = target.ID
	if err := s.push.Publish(ctx, push.PlanChannel(planID), push.NewMessage(t, planID, 0, payload)); err != nil {
		s.log.WithError(err).WithField("plan_id", planID).Warn("Push failed")
	}
}

// notifyOwner tells the target's owner about the actor's activity. Own
// activity and vanished owners are skipped.
func (s *SocialService) notifyOwner(ctx context.Context, info *targetInfo, actor *model.PlanMember, kind model.NotificationKind, message string, target Target) {
	if info.ownerMemberID == actor.ID {
		return
	}
	owner, err := s.plans.GetMember(ctx, info.ownerMemberID)
	if err != nil || owner.User.ID == 0 {
		return
	}
	link := fmt.Sprintf("/plans/%d/%s/%d", info.planID, target.Type, target.ID)
	if _, err := s.notifier.Notify(ctx, owner.User, kind, message, link); err != nil {
		s.log.WithError(err).WithField("user_id", owner.User.ID).Warn("Failed to notify target owner")
	}
}

func reactionEmoji(t model.ReactionType) string {
	switch t {
	case model.ReactionLike:
		return "👍"
	case model.ReactionCheer:
		return "🙌"
	case model.ReactionFire:
		return "🔥"
	case model.ReactionClap:
		return "👏"
	case model.ReactionSupport:
		return "🤝"
	case model.ReactionCelebrate:
		return "🎉"
	}
	return string(t)
}

func preview(s string) string {
	const limit = 80
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
