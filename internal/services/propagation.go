package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dimitrije/lorewiki-api/internal/models"
)

// PropagationResult counts the pages rewritten for each role the account
// plays on them.
type PropagationResult struct {
	Authored int64
	Edited   int64
}

// PropagateIdentity copies the fields that differ between before and after
// onto every page the account authored or last edited. Both sets are
// rewritten in one transaction. Unchanged identities touch nothing.
func (s *PageService) PropagateIdentity(ctx context.Context, before, after *models.User) (PropagationResult, error) {
	var res PropagationResult
	if before != nil && before.SameIdentity(after) {
		return res, nil
	}

	nameChanged := before == nil || before.DisplayName != after.DisplayName
	avatarChanged := before == nil || !sameURL(before.AvatarURL, after.AvatarURL)

	var args []any
	var authorSet, editorSet []string
	if nameChanged {
		args = append(args, after.DisplayName)
		authorSet = append(authorSet, fmt.Sprintf("author_display_name = $%d", len(args)))
		editorSet = append(editorSet, fmt.Sprintf("last_editor_display_name = $%d", len(args)))
	}
	if avatarChanged {
		args = append(args, after.AvatarURL)
		authorSet = append(authorSet, fmt.Sprintf("author_avatar_url = $%d", len(args)))
		editorSet = append(editorSet, fmt.Sprintf("last_editor_avatar_url = $%d", len(args)))
	}
	args = append(args, after.ID)
	idParam := len(args)

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, fmt.Sprintf(
		`UPDATE wiki_pages SET %s WHERE author_id = $%d`, strings.Join(authorSet, ", "), idParam), args...)
	if err != nil {
		return res, fmt.Errorf("failed to update authored pages: %w", err)
	}
	res.Authored = tag.RowsAffected()

	tag, err = tx.Exec(ctx, fmt.Sprintf(
		`UPDATE wiki_pages SET %s WHERE last_editor_id = $%d`, strings.Join(editorSet, ", "), idParam), args...)
	if err != nil {
		return res, fmt.Errorf("failed to update edited pages: %w", err)
	}
	res.Edited = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return PropagationResult{}, fmt.Errorf("failed to commit propagation: %w", err)
	}
	return res, nil
}
