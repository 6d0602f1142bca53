// Change feed models. Three related tables, append-only: rows are never
// updated or deleted once written, so concurrent appends need no locking
// beyond the store's own transactions.
package database

// Change is one catalog mutation. The acting user is whoever performed
// the operation, which may differ from the owner of the affected file.
type Change struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	User string `gorm:"size:16;index" json:"user"`
	// Date is the mutation time in unix seconds.
	Date int64 `gorm:"index" json:"date"`
}

// TableName maps Change to the changes table.
func (Change) TableName() string {
	return "changes"
}

// ChangeFile links a change to the single file it affected.
type ChangeFile struct {
	ChangeID int64 `gorm:"index" json:"change_id"`
	FileID   int64 `gorm:"index" json:"file_id"`
}

// TableName maps ChangeFile to the change_files table.
func (ChangeFile) TableName() string {
	return "change_files"
}

// ChangeRecipient links a change to one user who must observe it.
// Recipients are owner plus rights at the time of the change; the
// "public" sentinel is stored verbatim.
type ChangeRecipient struct {
	ChangeID int64  `gorm:"index" json:"change_id"`
	User     string `gorm:"size:16;index" json:"user"`
}

// TableName maps ChangeRecipient to the change_recipients table.
func (ChangeRecipient) TableName() string {
	return "change_recipients"
}
