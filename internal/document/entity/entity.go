package entity

import (
	"time"

	"github.com/bitfantasy/procurement/internal/shared/model"
)

// Mail directions
const (
	DirectionIncoming = "INCOMING"
	DirectionOutgoing = "OUTGOING"
)

// DocumentType kind of document, partitioned by scope
type DocumentType struct {
	ID                int64 `gorm:"primaryKey;autoIncrement"`
	model.Designation `gorm:"embedded"`
	Scope             int `gorm:"not null;default:0"`
}

func (DocumentType) TableName() string { return "doc_document_types" }

func (d *DocumentType) GetID() int64 { return d.ID }

// File metadata of a stored blob
type File struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	OriginalName string `gorm:"size:255"`
	Extension    string `gorm:"size:20"`
	Size         int64  `gorm:"not null"`
	Path         string `gorm:"size:500;not null"`
	FileType     string `gorm:"size:100"`
	UploadedBy   string `gorm:"size:100"`
	CreatedAt    time.Time
}

func (File) TableName() string { return "doc_files" }

func (f *File) GetID() int64 { return f.ID }

// Mail registered incoming or outgoing correspondence
type Mail struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Reference      string    `gorm:"size:100;not null"`
	Subject        string    `gorm:"size:500;not null"`
	Direction      string    `gorm:"size:10;not null"`
	MailDate       time.Time `gorm:"not null"`
	Sender         string    `gorm:"size:200"`
	Recipient      string    `gorm:"size:200"`
	DocumentTypeID int64     `gorm:"not null;index"`
	FileID         *int64    `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	DocumentType *DocumentType `gorm:"foreignKey:DocumentTypeID"`
	File         *File         `gorm:"foreignKey:FileID"`
}

func (Mail) TableName() string { return "doc_mails" }

func (m *Mail) GetID() int64 { return m.ID }
