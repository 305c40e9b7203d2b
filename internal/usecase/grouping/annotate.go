package grouping

import "chat-timeline/internal/domain"

// annotate вычисляет позиции по хронологической последовательности дня
// и возвращает строки в обратном порядке: самое новое сообщение первым.
func annotate(messages []domain.ChatMessage, chatType domain.ChatType, withComments bool) []domain.MessageRow {
	rows := make([]domain.MessageRow, len(messages))
	for i, m := range messages {
		next, prev := neighbours(messages, i, chatType)
		row := domain.MessageRow{
			Message:         m,
			PositionInGroup: groupPosition(m, next, prev),
		}
		if withComments {
			pos := commentsPosition(m, next, prev)
			row.PositionInCommentsGroup = &pos
		}
		rows[len(messages)-1-i] = row
	}
	return rows
}

// neighbours возвращает следующее и предыдущее сообщение. Для comments
// направления меняются местами.
func neighbours(messages []domain.ChatMessage, i int, chatType domain.ChatType) (next, prev *domain.ChatMessage) {
	after, before := i+1, i-1
	if chatType == domain.ChatTypeComments {
		after, before = before, after
	}
	if after >= 0 && after < len(messages) {
		next = &messages[after]
	}
	if before >= 0 && before < len(messages) {
		prev = &messages[before]
	}
	return next, prev
}

func groupPosition(m domain.ChatMessage, next, prev *domain.ChatMessage) domain.PositionInGroup {
	nextExists := next != nil
	nextSameUser := nextExists && next.UserID() == m.UserID()
	prevSameUser := prev != nil && prev.UserID() == m.UserID()

	switch {
	case nextExists && nextSameUser && prevSameUser:
		return domain.PositionMiddle
	case !nextExists || (!nextSameUser && !prevSameUser):
		return domain.PositionSingle
	case nextSameUser:
		return domain.PositionFirst
	default:
		return domain.PositionLast
	}
}

func commentsPosition(m domain.ChatMessage, next, prev *domain.ChatMessage) domain.PositionInCommentsGroup {
	firstLevel := m.IsFirstLevel()

	switch {
	case next == nil && firstLevel:
		return domain.CommentsLatestFirstLevelPost
	case next == nil:
		return domain.CommentsLatestCommentInLatestGroup
	case firstLevel && next.IsFirstLevel():
		return domain.CommentsSingleFirstLevelPost
	case firstLevel:
		return domain.CommentsFirstLevelPost
	case next.IsFirstLevel():
		return domain.CommentsLastComment
	case prev == nil || prev.IsFirstLevel():
		// отсутствующий сосед считается постом первого уровня
		return domain.CommentsFirstComment
	default:
		return domain.CommentsMiddleComment
	}
}
