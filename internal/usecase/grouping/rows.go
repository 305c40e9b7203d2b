package grouping

import "chat-timeline/internal/domain"

// RowRef указывает на строку внутри результата Build.
type RowRef struct {
	Section int
	Row     int
}

// IDs возвращает идентификаторы сообщений во входном порядке.
func IDs(messages []domain.ChatMessage) []string {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	return ids
}

// Rows разворачивает секции в плоский список строк в порядке отображения.
func Rows(sections []domain.DateSection) []domain.MessageRow {
	var total int
	for _, s := range sections {
		total += len(s.Rows)
	}
	rows := make([]domain.MessageRow, 0, total)
	for _, s := range sections {
		rows = append(rows, s.Rows...)
	}
	return rows
}

// IndexByID строит индекс строк по идентификатору сообщения.
func IndexByID(sections []domain.DateSection) map[string]RowRef {
	index := make(map[string]RowRef)
	for si, s := range sections {
		for ri, row := range s.Rows {
			index[row.Message.ID] = RowRef{Section: si, Row: ri}
		}
	}
	return index
}

// Attachments собирает вложения всех строк в порядке отображения,
// например для полноэкранного просмотра медиа.
func Attachments(sections []domain.DateSection) []domain.Attachment {
	var out []domain.Attachment
	for _, s := range sections {
		for _, row := range s.Rows {
			out = append(out, row.Message.Attachments...)
		}
	}
	return out
}
