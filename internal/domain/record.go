package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// FieldMap is a custom type for storing a row's extra columns as JSON
// in the database.
type FieldMap map[string]string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the map.
//   - error: non-nil if marshaling fails.
func (m FieldMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (m *FieldMap) Scan(value interface{}) error {
	if value == nil {
		*m = FieldMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan FieldMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// Record represents one parsed data row from an ingested report file.
// Every row points back at the ingestion-log entry of the file that
// carried it, so the origin of any business datum is auditable.
type Record struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	EntryID    string    `gorm:"type:text;not null;index:idx_records_entry" json:"entry_id"`
	FileName   string    `gorm:"type:text;not null" json:"file_name"`
	ReportDate time.Time `gorm:"index:idx_records_report_date" json:"report_date"`
	Metric     string    `gorm:"type:text;not null" json:"metric"`
	Value      float64   `json:"value"`
	Extra      FieldMap  `gorm:"type:text" json:"extra"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Record.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Record) TableName() string {
	return "records"
}
