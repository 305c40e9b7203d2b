package grouping

import "chat-timeline/internal/domain"

// splitTopology делит упорядоченные сообщения на посты первого уровня и ответы,
// сгруппированные по идентификатору родителя. Порядок внутри групп хронологический.
func splitTopology(ordered []domain.ChatMessage) ([]domain.ChatMessage, map[string][]domain.ChatMessage) {
	firstLevel := make([]domain.ChatMessage, 0, len(ordered))
	replies := make(map[string][]domain.ChatMessage)
	for _, m := range ordered {
		parentID, ok := m.ParentID()
		if !ok {
			firstLevel = append(firstLevel, m)
			continue
		}
		replies[parentID] = append(replies[parentID], m)
	}
	return firstLevel, replies
}

// interleaveReplies ставит прямые ответы рядом с их постом. В conversation пост идёт
// перед ответами, в comments после них. Ответы на ответы сюда не попадают.
func interleaveReplies(dayFirstLevel []domain.ChatMessage, replies map[string][]domain.ChatMessage, chatType domain.ChatType) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(dayFirstLevel))
	for _, post := range dayFirstLevel {
		if chatType != domain.ChatTypeComments {
			out = append(out, post)
		}
		out = append(out, replies[post.ID]...)
		if chatType == domain.ChatTypeComments {
			out = append(out, post)
		}
	}
	return out
}

// DroppedReplies возвращает ответы, которые не попадут в раскладку режима answer:
// ответы на отсутствующие сообщения и ответы на ответы.
func DroppedReplies(messages []domain.ChatMessage) []domain.ChatMessage {
	firstLevel := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		if m.IsFirstLevel() {
			firstLevel[m.ID] = struct{}{}
		}
	}
	var dropped []domain.ChatMessage
	for _, m := range messages {
		parentID, ok := m.ParentID()
		if !ok {
			continue
		}
		if _, attached := firstLevel[parentID]; !attached {
			dropped = append(dropped, m)
		}
	}
	return dropped
}
