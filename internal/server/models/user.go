package models

// UserRecord is the single stored document per user. Data is nil until the
// first successful sync-merge.
type UserRecord struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Data     *DataBundle `json:"data"`
}
