package store

import "time"

// Document 已摄取的法律文档
type Document struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Filename   string    `gorm:"size:512;not null"`
	FileType   string    `gorm:"size:32"`
	UploadDate time.Time `gorm:"autoCreateTime"`
}

// Chunk 文档切块，摄取管道写入后只读
type Chunk struct {
	ID         string    `gorm:"primaryKey;size:64"`
	DocumentID string    `gorm:"size:64;index;not null"`
	ChunkType  string    `gorm:"size:64;index"`
	Text       string    `gorm:"type:text;not null"`
	StartChar  int       `gorm:""`
	EndChar    int       `gorm:""`
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`

	Document Document `gorm:"foreignKey:DocumentID"`
}

// ChatSession 对话会话
type ChatSession struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Title     string    `gorm:"size:256"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// ChatMessage 对话消息，Metadata 为序列化后的 JSON
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"size:64;index;not null"`
	Role      string    `gorm:"size:16;not null"`
	Content   string    `gorm:"type:text;not null"`
	Metadata  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// Models 返回参与 AutoMigrate 的全部模型
func Models() []any {
	return []any{&Document{}, &Chunk{}, &ChatSession{}, &ChatMessage{}}
}
