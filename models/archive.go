package models

import "time"

type ArchiveItemType string

const (
	ArchiveTypeOCR      ArchiveItemType = "ocr"
	ArchiveTypeAudio    ArchiveItemType = "audio"
	ArchiveTypeContract ArchiveItemType = "contract"
)

type ArchiveItem struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	CaseNumber string          `json:"caseNumber,omitempty"`
	ClientName string          `json:"clientName,omitempty"`
	Type       ArchiveItemType `json:"type"`
	Content    string          `json:"content"`
	CreatedAt  time.Time       `json:"timestamp"`
	Tags       []string        `json:"tags"`
}

// CaseFolder groups archive items that share a case number.
type CaseFolder struct {
	CaseNumber  string        `json:"caseNumber"`
	ClientName  string        `json:"clientName"`
	Items       []ArchiveItem `json:"items"`
	LastUpdated time.Time     `json:"lastUpdated"`
}
