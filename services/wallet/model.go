package wallet

import (
	"time"
)

// Wallet is a stored on-chain account. The signing key is sealed with the
// process-wide cipher before it ever touches the database.
type Wallet struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	OwnerID      int64     `gorm:"column:owner_id;index" json:"owner_id"`
	Address      string    `gorm:"column:address;uniqueIndex" json:"address"`
	EncryptedKey string    `gorm:"column:encrypted_key" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}
